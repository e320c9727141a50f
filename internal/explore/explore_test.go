package explore_test

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"github.com/shpitdev/leadscraper/internal/explore"
)

const leadsCSV = "URL,Email,B2B/B2C,Outsourcing?,Industry\n" +
	"https://a.test,info@a.test,B2B,Yes,Finance\n" +
	"https://b.test,sales@b.test,\"This company is B2C, selling to consumers.\",No,Retail\n" +
	"https://c.test,hr@a.test,Unknown,Unknown,Finance\n" +
	"https://d.test,,\"B2B2C marketplace\",No,Retail\n" +
	"https://e.test,ops@e.test,\"Mostly B2B.\",Yes,Finance\n"

func load(t *testing.T) *explore.Dataset {
	t.Helper()
	d, err := explore.Load(strings.NewReader(leadsCSV))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return d
}

func TestCleanBusinessType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "B2B", want: "B2B"},
		{in: "This company is B2C.", want: "B2C"},
		{in: "Both B2C and B2B", want: "B2C"},
		{in: "B2B2C", want: ""},
		{in: "b2b", want: ""},
		{in: "Unknown", want: ""},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := explore.CleanBusinessType(tt.in); got != tt.want {
				t.Fatalf("CleanBusinessType(%q)=%q want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEmailDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "info@acme.test", want: "acme.test"},
		{in: "a@b@c.test", want: "c.test"},
		{in: "no-at-sign", want: "no-at-sign"},
		{in: "", want: explore.UnknownDomain},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := explore.EmailDomain(tt.in); got != tt.want {
				t.Fatalf("EmailDomain(%q)=%q want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoad_RequiresSchema(t *testing.T) {
	t.Parallel()

	if _, err := explore.Load(strings.NewReader("URL,Email\nhttps://a.test,a@a.test\n")); err == nil {
		t.Fatalf("expected error for missing columns")
	}
}

func TestTotalsAndFilter(t *testing.T) {
	t.Parallel()

	d := load(t)
	if got := d.Totals(); got != (explore.Totals{B2B: 2, B2C: 1}) {
		t.Fatalf("unexpected totals: %+v", got)
	}

	b2b, err := d.Filter(explore.B2B)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	var urls []string
	for _, r := range b2b.Rows {
		urls = append(urls, r.URL)
	}
	if !slices.Equal(urls, []string{"https://a.test", "https://e.test"}) {
		t.Fatalf("unexpected B2B rows: %v", urls)
	}
	if b2b.Rows[1].RawBusinessType != "Mostly B2B." {
		t.Fatalf("expected raw answer to be kept, got %q", b2b.Rows[1].RawBusinessType)
	}

	all, err := d.Filter(explore.All)
	if err != nil || len(all.Rows) != 5 {
		t.Fatalf("expected all 5 rows, got %v (err=%v)", all, err)
	}
	if _, err := d.Filter("B2G"); err == nil {
		t.Fatalf("expected error for unknown filter")
	}
}

func TestValueCountsAndTopDomains(t *testing.T) {
	t.Parallel()

	d := load(t)
	counts, err := d.ValueCounts("Industry")
	if err != nil {
		t.Fatalf("ValueCounts: %v", err)
	}
	want := []explore.Count{{Value: "Finance", N: 3}, {Value: "Retail", N: 2}}
	if !slices.Equal(counts, want) {
		t.Fatalf("unexpected counts: %+v", counts)
	}

	domains := d.TopDomains(2)
	wantDomains := []explore.Count{{Value: "a.test", N: 2}, {Value: "b.test", N: 1}}
	if !slices.Equal(domains, wantDomains) {
		t.Fatalf("unexpected domains: %+v", domains)
	}
	all := d.TopDomains(explore.DefaultTopDomains)
	if len(all) != 4 || all[len(all)-1].Value != explore.UnknownDomain {
		t.Fatalf("expected unknown domain last, got %+v", all)
	}

	if _, err := d.ValueCounts("Nope"); err == nil {
		t.Fatalf("expected error for unknown column")
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	var bt explore.ColumnSummary
	for _, s := range load(t).Summary() {
		if s.Column == "B2B/B2C" {
			bt = s
		}
	}
	if bt != (explore.ColumnSummary{Column: "B2B/B2C", Count: 3, Unique: 2, Top: "B2B", Freq: 2}) {
		t.Fatalf("unexpected summary: %+v", bt)
	}
}

func TestCrossTab(t *testing.T) {
	t.Parallel()

	ct := load(t).CrossTab()
	if !slices.Equal(ct.Industries, []string{"Finance", "Retail"}) || !slices.Equal(ct.Types, []string{"B2B", "B2C"}) {
		t.Fatalf("unexpected axes: %+v", ct)
	}
	if !slices.Equal(ct.Counts[0], []int{2, 0}) || !slices.Equal(ct.Counts[1], []int{0, 1}) {
		t.Fatalf("unexpected counts: %v", ct.Counts)
	}
}

func TestWriteReport(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := explore.WriteReport(&buf, load(t), explore.DefaultTopDomains); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"rows  5", "Total B2B  2", "Email Domain", "Finance"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}
