// Package explore summarizes a persisted lead file: column profiles, value counts,
// email domains, a business-type filter and an industry cross-tabulation.
package explore

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/shpitdev/leadscraper/internal/pipeline"
)

// Business-type filter values.
const (
	All = "All"
	B2B = "B2B"
	B2C = "B2C"
)

// DomainColumn is the derived email-domain column.
const DomainColumn = "Email Domain"

// UnknownDomain stands in for the domain of a row without an email.
const UnknownDomain = "unknown"

// DefaultTopDomains is how many domains TopDomains reports by default.
const DefaultTopDomains = 10

var businessTypeRe = regexp.MustCompile(`\b(B2B|B2C)\b`)

// Row is a lead with its derived columns. BusinessType holds the cleaned token
// ("B2B", "B2C" or empty) and RawBusinessType the classifier's original answer.
type Row struct {
	pipeline.Lead
	RawBusinessType string
	Domain          string
}

// Dataset is a loaded lead file.
type Dataset struct {
	Rows []Row
}

// Load parses a lead file. Missing required columns are an error.
func Load(r io.Reader) (*Dataset, error) {
	leads, err := pipeline.ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("load leads: %w", err)
	}
	return FromLeads(leads), nil
}

// FromLeads cleans the business-type column and derives email domains.
func FromLeads(leads []pipeline.Lead) *Dataset {
	d := &Dataset{Rows: make([]Row, 0, len(leads))}
	for _, l := range leads {
		raw := l.BusinessType
		l.BusinessType = CleanBusinessType(raw)
		d.Rows = append(d.Rows, Row{Lead: l, RawBusinessType: raw, Domain: EmailDomain(l.Email)})
	}
	return d
}

// CleanBusinessType keeps the first standalone "B2B" or "B2C" token in s, or returns "".
func CleanBusinessType(s string) string {
	return businessTypeRe.FindString(s)
}

// EmailDomain returns the text after the last "@", the whole value when there is
// none, and UnknownDomain for an empty email.
func EmailDomain(email string) string {
	if email == "" {
		return UnknownDomain
	}
	return email[strings.LastIndex(email, "@")+1:]
}

// Columns lists the columns Summary and ValueCounts understand.
func Columns() []string {
	return append(pipeline.Header(), DomainColumn)
}

func (r Row) value(column string) (string, bool) {
	switch column {
	case pipeline.ColURL:
		return r.URL, true
	case pipeline.ColEmail:
		return r.Email, true
	case pipeline.ColBusinessType:
		return r.BusinessType, true
	case pipeline.ColOutsourcing:
		return r.Outsourcing, true
	case pipeline.ColIndustry:
		return r.Industry, true
	case DomainColumn:
		return r.Domain, true
	}
	return "", false
}

// Count is one distinct value and how often it occurs.
type Count struct {
	Value string
	N     int
}

// ValueCounts counts the non-empty values of column, most frequent first and ties
// broken alphabetically.
func (d *Dataset) ValueCounts(column string) ([]Count, error) {
	if !knownColumn(column) {
		return nil, fmt.Errorf("unknown column %q", column)
	}
	counts := map[string]int{}
	for _, r := range d.Rows {
		v, _ := r.value(column)
		if v == "" {
			continue
		}
		counts[v]++
	}
	return sortCounts(counts), nil
}

// TopDomains returns the n most common email domains.
func (d *Dataset) TopDomains(n int) []Count {
	counts, _ := d.ValueCounts(DomainColumn)
	if n >= 0 && len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

// ColumnSummary profiles one column: non-empty count, distinct values, and the
// most frequent value with its frequency.
type ColumnSummary struct {
	Column string
	Count  int
	Unique int
	Top    string
	Freq   int
}

// Summary profiles every persisted column.
func (d *Dataset) Summary() []ColumnSummary {
	out := make([]ColumnSummary, 0, len(pipeline.Header()))
	for _, col := range pipeline.Header() {
		counts, _ := d.ValueCounts(col)
		s := ColumnSummary{Column: col, Unique: len(counts)}
		for _, c := range counts {
			s.Count += c.N
		}
		if len(counts) > 0 {
			s.Top, s.Freq = counts[0].Value, counts[0].N
		}
		out = append(out, s)
	}
	return out
}

// Totals are the B2B and B2C row counts.
type Totals struct {
	B2B int
	B2C int
}

// Totals counts rows whose cleaned business type is B2B or B2C.
func (d *Dataset) Totals() Totals {
	var t Totals
	for _, r := range d.Rows {
		switch r.BusinessType {
		case B2B:
			t.B2B++
		case B2C:
			t.B2C++
		}
	}
	return t
}

// Filter returns the rows whose cleaned business type is kind. All keeps every row.
func (d *Dataset) Filter(kind string) (*Dataset, error) {
	switch kind {
	case All, "":
		return d, nil
	case B2B, B2C:
	default:
		return nil, fmt.Errorf("unknown business type filter %q", kind)
	}
	out := &Dataset{}
	for _, r := range d.Rows {
		if r.BusinessType == kind {
			out.Rows = append(out.Rows, r)
		}
	}
	return out, nil
}

// CrossTab counts rows by industry (rows) and business type (columns). Rows missing
// either value are left out; both axes are sorted.
type CrossTab struct {
	Industries []string
	Types      []string
	Counts     [][]int
}

func (d *Dataset) CrossTab() CrossTab {
	cells := map[[2]string]int{}
	industries := map[string]struct{}{}
	types := map[string]struct{}{}
	for _, r := range d.Rows {
		if r.Industry == "" || r.BusinessType == "" {
			continue
		}
		industries[r.Industry] = struct{}{}
		types[r.BusinessType] = struct{}{}
		cells[[2]string{r.Industry, r.BusinessType}]++
	}

	ct := CrossTab{Industries: sortedKeys(industries), Types: sortedKeys(types)}
	ct.Counts = make([][]int, len(ct.Industries))
	for i, ind := range ct.Industries {
		ct.Counts[i] = make([]int, len(ct.Types))
		for j, typ := range ct.Types {
			ct.Counts[i][j] = cells[[2]string{ind, typ}]
		}
	}
	return ct
}

func knownColumn(column string) bool {
	_, ok := Row{}.value(column)
	return ok
}

func sortCounts(counts map[string]int) []Count {
	out := make([]Count, 0, len(counts))
	for v, n := range counts {
		out = append(out, Count{Value: v, N: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Value < out[j].Value
	})
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
