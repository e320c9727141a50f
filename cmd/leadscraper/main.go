package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/shpitdev/leadscraper/internal/app"
	"github.com/shpitdev/leadscraper/internal/config"
	"github.com/shpitdev/leadscraper/internal/explore"
	"github.com/shpitdev/leadscraper/internal/metrics"
	"github.com/shpitdev/leadscraper/internal/pipeline"
	"github.com/shpitdev/leadscraper/internal/secrets"
	"github.com/shpitdev/leadscraper/internal/version"
	"github.com/shpitdev/leadscraper/pkg/pipeline/redact"
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := dispatch(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func dispatch(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}

	switch args[0] {
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	case "version", "--version":
		_, _ = fmt.Fprintf(stdout, "leadscraper %s\n", version.Current)
		return 0
	case "run":
		return runQuery(ctx, args[1:], stdout, stderr)
	case "serve":
		return runServe(ctx, args[1:], stdout, stderr)
	case "explore":
		return runExplore(args[1:], stdout, stderr)
	case "key":
		return runKey(args[1:], stdin, stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command: %s\n\n", args[0])
		usage(stderr)
		return 2
	}
}

func runQuery(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	query := fs.String("query", "", "Search query, e.g. \"accounting firms in Pune\"")
	pages := fs.Int("pages", app.DefaultPages, fmt.Sprintf("Result pages to search (%d-%d)", app.MinPages, app.MaxPages))
	outputDir := fs.String("output-dir", "", "Directory for the result CSV (env: OUTPUT_DIR)")
	configPath := fs.String("config", "", "YAML config file (env: "+config.PathEnv+")")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*query) == "" {
		_, _ = fmt.Fprintln(stderr, "run requires --query")
		return 2
	}
	if *pages < app.MinPages || *pages > app.MaxPages {
		_, _ = fmt.Fprintf(stderr, "--pages must be between %d and %d\n", app.MinPages, app.MaxPages)
		return 2
	}

	cfg, err := loadConfig(*configPath, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}
	if strings.TrimSpace(*outputDir) != "" {
		cfg.Output.Dir = *outputDir
	}

	scraper, err := buildScraper(ctx, cfg, nil, log.New(stderr, "", log.LstdFlags))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}

	res, err := scraper.Run(ctx, *query, *pages)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "run failed: %s\n", redact.Secrets(err.Error()))
		return 1
	}
	if len(res.Leads) == 0 {
		_, _ = fmt.Fprintln(stdout, "No leads found. Try another query.")
		return 0
	}
	if err := printLeads(stdout, res.Leads); err != nil {
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "\nScraping complete. Saved to %s\n", res.File)
	return 0
}

func runServe(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "", "Listen address (env: SERVE_ADDR)")
	outputDir := fs.String("output-dir", "", "Directory for result CSVs (env: OUTPUT_DIR)")
	configPath := fs.String("config", "", "YAML config file (env: "+config.PathEnv+")")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}
	if strings.TrimSpace(*addr) != "" {
		cfg.Serve.Addr = *addr
	}
	if strings.TrimSpace(*outputDir) != "" {
		cfg.Output.Dir = *outputDir
	}

	logger := log.New(stdout, "", log.LstdFlags)
	m := metrics.New()
	deps := app.ServerDeps{OutputDir: cfg.Output.Dir, Metrics: m, Logger: logger}

	// The page stays up without a key and explains what is missing on each run.
	scraper, err := buildScraper(ctx, cfg, m, logger)
	if err != nil {
		logger.Printf("scraper unavailable: %s", redact.Secrets(err.Error()))
		deps.RunnerErr = err
	} else {
		deps.Runner = scraper
	}

	srv := &http.Server{
		Addr:              cfg.Serve.Addr,
		Handler:           app.NewServer(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Printf("serving on %s (output dir %s)", cfg.Serve.Addr, cfg.Output.Dir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		_, _ = fmt.Fprintf(stderr, "server error: %v\n", err)
		return 1
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_, _ = fmt.Fprintf(stderr, "shutdown error: %v\n", err)
		return 1
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		_, _ = fmt.Fprintf(stderr, "server error: %v\n", err)
		return 1
	}
	return 0
}

func runExplore(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("explore", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("file", "", "Result CSV to summarize")
	top := fs.Int("top-domains", explore.DefaultTopDomains, "How many email domains to list")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*path) == "" {
		_, _ = fmt.Fprintln(stderr, "explore requires --file")
		return 2
	}

	f, err := os.Open(*path)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "explore failed: %v\n", err)
		return 1
	}
	defer f.Close()

	d, err := explore.Load(f)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "explore failed: %v\n", err)
		return 1
	}
	if err := explore.WriteReport(stdout, d, *top); err != nil {
		_, _ = fmt.Fprintf(stderr, "explore failed: %v\n", err)
		return 1
	}
	return 0
}

func runKey(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 || (args[0] != "set" && args[0] != "delete") {
		_, _ = fmt.Fprintln(stderr, "usage: leadscraper key set|delete --provider groq|gemini")
		return 2
	}
	action := args[0]

	fs := flag.NewFlagSet("key "+action, flag.ContinueOnError)
	fs.SetOutput(stderr)
	provider := fs.String("provider", config.ProviderGroq, "Completion backend the key belongs to")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if *provider != config.ProviderGroq && *provider != config.ProviderGemini {
		_, _ = fmt.Fprintf(stderr, "unknown provider %q\n", *provider)
		return 2
	}

	if action == "delete" {
		if err := secrets.DeleteAPIKey(*provider); err != nil {
			_, _ = fmt.Fprintf(stderr, "key delete failed: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "deleted %s key from the keyring\n", *provider)
		return 0
	}

	_, _ = fmt.Fprintf(stderr, "paste the %s API key and press enter: ", *provider)
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		_, _ = fmt.Fprintf(stderr, "\nread key: %v\n", err)
		return 1
	}
	if err := secrets.SetAPIKey(*provider, line); err != nil {
		_, _ = fmt.Fprintf(stderr, "\nkey set failed: %s\n", redact.Secrets(err.Error()))
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "\nstored %s key in the keyring\n", *provider)
	return 0
}

// loadConfig layers defaults, the YAML file and environment overrides, then
// validates. Warnings go to stderr.
func loadConfig(path string, stderr io.Writer) (config.Config, error) {
	if strings.TrimSpace(path) == "" {
		path = os.Getenv(config.PathEnv)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err = config.ApplyEnv(cfg)
	if err != nil {
		return config.Config{}, err
	}
	cfg, v := config.NormalizeAndValidate(cfg)
	for _, w := range v.Warnings {
		_, _ = fmt.Fprintf(stderr, "config warning: %s\n", w)
	}
	if err := v.Err(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func buildScraper(ctx context.Context, cfg config.Config, m *metrics.Metrics, logger *log.Logger) (*app.Scraper, error) {
	key, err := secrets.APIKey(cfg.Classifier.Provider)
	if err != nil {
		return nil, err
	}
	backend, model, err := app.NewBackend(ctx, cfg, key)
	if err != nil {
		return nil, err
	}
	opts := []app.Option{app.WithLogger(logger)}
	if m != nil {
		opts = append(opts, app.WithMetrics(m))
	}
	return app.NewScraper(cfg, backend, model, opts...)
}

func printLeads(w io.Writer, leads []pipeline.Lead) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(pipeline.Header(), "\t"))
	for _, l := range leads {
		rec := l.Record()
		for i := range rec {
			rec[i] = strings.Join(strings.Fields(rec[i]), " ")
		}
		_, _ = fmt.Fprintln(tw, strings.Join(rec, "\t"))
	}
	return tw.Flush()
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintf(w, `leadscraper: find business websites, pull contact emails, classify each lead

Usage:
  leadscraper <command> [flags]

Commands:
  run      Search, scrape and classify one query; writes <query>_leads.csv
  serve    Start the interactive web page (default :8501)
  explore  Summarize a result CSV
  key      Store or remove a completion API key in the OS keyring
  version  Print the version

Examples:
  leadscraper run --query "accounting firms in Pune" --pages 3
  leadscraper explore --file accounting_firms_in_Pune_leads.csv
  leadscraper key set --provider groq

Environment:
  GROQ_API_KEY          Groq API key (provider groq, default)
  GEMINI_API_KEY        Gemini API key (provider gemini)
  CLASSIFIER_PROVIDER   groq or gemini
  CLASSIFIER_MODEL      Model name override
  CLASSIFIER_BASE_URL   Completion API base URL override (proxies/testing)
  SEARCH_BASE_URL       Search endpoint override (proxies/testing)
  OUTPUT_DIR            Directory for result CSVs
  %s    YAML config file

Variables are also read from a .env file in the working directory.
`, config.PathEnv)
}
