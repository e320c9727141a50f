package explore

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// WriteReport prints every summary of d as aligned plain-text tables.
func WriteReport(w io.Writer, d *Dataset, topDomains int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "rows\t%d\n\n", len(d.Rows))

	fmt.Fprintln(tw, "column\tcount\tunique\ttop\tfreq")
	for _, s := range d.Summary() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%d\n", s.Column, s.Count, s.Unique, oneLine(s.Top), s.Freq)
	}

	t := d.Totals()
	fmt.Fprintf(tw, "\nTotal B2B\t%d\nTotal B2C\t%d\n", t.B2B, t.B2C)

	for _, col := range []string{"B2B/B2C", "Outsourcing?", "Industry"} {
		counts, err := d.ValueCounts(col)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "\n%s\tcount\n", col)
		for _, c := range counts {
			fmt.Fprintf(tw, "%s\t%d\n", oneLine(c.Value), c.N)
		}
	}

	fmt.Fprintf(tw, "\n%s\tcount\n", DomainColumn)
	for _, c := range d.TopDomains(topDomains) {
		fmt.Fprintf(tw, "%s\t%d\n", c.Value, c.N)
	}

	ct := d.CrossTab()
	if len(ct.Industries) > 0 {
		fmt.Fprintf(tw, "\nIndustry\t%s\n", strings.Join(ct.Types, "\t"))
		for i, ind := range ct.Industries {
			cells := make([]string, len(ct.Types))
			for j := range ct.Types {
				cells[j] = fmt.Sprint(ct.Counts[i][j])
			}
			fmt.Fprintf(tw, "%s\t%s\n", oneLine(ind), strings.Join(cells, "\t"))
		}
	}
	return tw.Flush()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
