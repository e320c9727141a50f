package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/shpitdev/leadscraper/pkg/pipeline/core"
	"github.com/shpitdev/leadscraper/pkg/pipeline/io/local"
	"github.com/shpitdev/leadscraper/pkg/pipeline/schema"
)

// FileSuffix ends every persisted result file name.
const FileSuffix = "_leads.csv"

// Column names of the persisted lead file.
const (
	ColURL          = "URL"
	ColEmail        = "Email"
	ColBusinessType = "B2B/B2C"
	ColOutsourcing  = "Outsourcing?"
	ColIndustry     = "Industry"
)

// Lead is one prospective contact derived from a single web page.
type Lead struct {
	URL          string
	Email        string
	BusinessType string
	Outsourcing  string
	Industry     string
}

// Contract is the stable column contract of the lead file.
var Contract = schema.DatasetContract{Fields: []schema.Field{
	{Name: ColURL, Type: "string"},
	{Name: ColEmail, Type: "string"},
	{Name: ColBusinessType, Type: "string", Nullable: true},
	{Name: ColOutsourcing, Type: "string", Nullable: true},
	{Name: ColIndustry, Type: "string", Nullable: true},
}}

// Header returns the stable CSV header for Lead.
func Header() []string {
	return Contract.Header()
}

// Record returns l's fields in Header order.
func (l Lead) Record() []string {
	return []string{l.URL, l.Email, l.BusinessType, l.Outsourcing, l.Industry}
}

// FileName derives the result file name for a query: spaces become underscores.
// Path separators are replaced too so the file always lands in the output directory.
func FileName(query string) string {
	name := strings.NewReplacer(" ", "_", "/", "_", `\`, "_").Replace(query)
	return name + FileSuffix
}

// Store writes leads to dir under the name derived from query, replacing any previous
// file of that name, and returns the name.
func Store(ctx context.Context, dir, query string, leads []Lead) (string, error) {
	name := FileName(query)
	var out core.OutputAdapter[Lead] = local.CSVFile[Lead]{
		Path:   filepath.Join(dir, name),
		Header: Header(),
		Encode: Lead.Record,
	}
	if err := out.Store(ctx, leads); err != nil {
		return "", fmt.Errorf("store %s: %w", name, err)
	}
	return name, nil
}

// ReadCSV reads leads from a CSV using the stable Header() contract.
//
// Extra columns are ignored. Required columns from Header() must exist.
func ReadCSV(r io.Reader) ([]Lead, error) {
	header, recs, err := local.ReadRecords(r)
	if err != nil {
		return nil, err
	}
	if missing := Contract.Missing(header); len(missing) > 0 {
		return nil, fmt.Errorf("missing required column %q", missing[0])
	}
	index := Contract.Index(header)

	leads := make([]Lead, 0, len(recs))
	for _, rec := range recs {
		get := func(col string) string {
			i := index[col]
			if i < 0 || i >= len(rec) {
				return ""
			}
			return rec[i]
		}
		leads = append(leads, Lead{
			URL:          get(ColURL),
			Email:        get(ColEmail),
			BusinessType: get(ColBusinessType),
			Outsourcing:  get(ColOutsourcing),
			Industry:     get(ColIndustry),
		})
	}
	return leads, nil
}
