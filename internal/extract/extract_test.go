package extract_test

import (
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shpitdev/leadscraper/internal/extract"
)

func TestEmails(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "none", in: "<p>call us</p>", want: []string{}},
		{name: "empty", in: "", want: []string{}},
		{name: "single", in: `<a href="mailto:contact@acme.test">mail</a>`, want: []string{"contact@acme.test"}},
		{
			name: "dedupes keeping first-seen order",
			in:   "sales@b.test info@a.test sales@b.test info@a.test",
			want: []string{"sales@b.test", "info@a.test"},
		},
		{name: "plus and dots", in: "x first.last+tag@mail-host.co.uk y", want: []string{"first.last+tag@mail-host.co.uk"}},
		{name: "case preserved", in: "Info@Acme.Test info@acme.test", want: []string{"Info@Acme.Test", "info@acme.test"}},
		{name: "needs a dot after domain label", in: "user@localhost", want: []string{}},
		{name: "asset false positives are kept", in: "logo@2x.png", want: []string{"logo@2x.png"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extract.Emails(tt.in)
			if got == nil {
				t.Fatalf("Emails must not return nil")
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("Emails(%q)=%q want=%q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEmails_Idempotent(t *testing.T) {
	in := "a@x.test b@y.test a@x.test c@z.test"
	first := extract.Emails(in)
	second := extract.Emails(in)
	if !slices.Equal(first, second) {
		t.Fatalf("not idempotent: %q vs %q", first, second)
	}
	seen := map[string]bool{}
	for _, e := range first {
		if seen[e] {
			t.Fatalf("duplicate %q in %q", e, first)
		}
		seen[e] = true
	}
}

func TestText(t *testing.T) {
	page := `<html><head><title>Acme  Ltd</title><style>body{color:red}</style></head>
<body><script>var x = "hidden";</script>
<h1>Acme</h1>
<p>We do   <b>accounting</b>
for businesses.</p><!-- comment --></body></html>`

	got := extract.Text(page)
	want := "Acme Ltd Acme We do accounting for businesses."
	if got != want {
		t.Fatalf("Text()=%q want=%q", got, want)
	}
	if strings.Contains(got, "hidden") || strings.Contains(got, "color") {
		t.Fatalf("script/style leaked into text: %q", got)
	}
}

func TestText_PlainInput(t *testing.T) {
	if got := extract.Text("  just\n\ttext  "); got != "just text" {
		t.Fatalf("Text()=%q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: "hello", n: 10, want: "hello"},
		{in: "hello", n: 3, want: "hel"},
		{in: "héllo", n: 2, want: "hé"},
		{in: "abc", n: 0, want: ""},
	}
	for _, tt := range tests {
		got := extract.Truncate(tt.in, tt.n)
		if got != tt.want {
			t.Fatalf("Truncate(%q,%d)=%q want=%q", tt.in, tt.n, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Fatalf("Truncate produced invalid utf8: %q", got)
		}
	}
}
