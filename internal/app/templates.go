package app

import "html/template"

var templateFuncs = template.FuncMap{
	"pageRange": func() []int {
		out := make([]int, 0, MaxPages-MinPages+1)
		for i := MinPages; i <= MaxPages; i++ {
			out = append(out, i)
		}
		return out
	},
}

const pageTemplate = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Lead Scraper</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; max-width: 72rem; }
table { border-collapse: collapse; margin: 0.5rem 0 1.5rem; }
th, td { border: 1px solid #ccc; padding: 0.25rem 0.5rem; text-align: left; vertical-align: top; }
.error { background: #fde2e2; padding: 0.5rem; }
.warning { background: #fff4ce; padding: 0.5rem; }
.success { background: #dff6dd; padding: 0.5rem; }
</style>
</head>
<body>
<h1>Web Lead Scraper</h1>

{{with .Error}}<p class="error">{{.}}</p>{{end}}
{{with .Warning}}<p class="warning">{{.}}</p>{{end}}
{{with .Success}}<p class="success">{{.}}</p>{{end}}

<form method="post" action="/run">
<label>Enter your search query: <input type="text" name="query" value="{{.Query}}" size="50"></label><br>
<label>How many result pages to search?
<input type="range" name="pages" min="1" max="10" value="{{.Pages}}" list="page-marks" oninput="this.nextElementSibling.value=this.value">
<output>{{.Pages}}</output></label>
<datalist id="page-marks">{{range pageRange}}<option value="{{.}}"></option>{{end}}</datalist><br>
<button type="submit">Run Scraper</button>
</form>

{{if .Leads}}
<h2>Leads</h2>
<table>
<tr><th>URL</th><th>Email</th><th>B2B/B2C</th><th>Outsourcing?</th><th>Industry</th></tr>
{{range .Leads}}<tr><td>{{.URL}}</td><td>{{.Email}}</td><td>{{.BusinessType}}</td><td>{{.Outsourcing}}</td><td>{{.Industry}}</td></tr>
{{end}}</table>
<p><a href="/download?file={{.File}}">Download CSV</a></p>
{{end}}

<h2>Explore</h2>
<form method="post" action="/explore" enctype="multipart/form-data">
<label>Upload a CSV file: <input type="file" name="file" accept=".csv"></label>
<button type="submit">Explore</button>
</form>
{{if .Files}}<p>Or pick from existing files:</p>
<ul>{{range .Files}}<li><a href="/explore?file={{.}}">{{.}}</a> (<a href="/download?file={{.}}">download</a>)</li>{{end}}</ul>
{{end}}

{{with .Explore}}
<h2>{{.Source}}</h2>
<h3>Column Summary</h3>
<table>
<tr><th>column</th><th>count</th><th>unique</th><th>top</th><th>freq</th></tr>
{{range .Summary}}<tr><td>{{.Column}}</td><td>{{.Count}}</td><td>{{.Unique}}</td><td>{{.Top}}</td><td>{{.Freq}}</td></tr>
{{end}}</table>

<h3>Business Type (B2B/B2C) Breakdown</h3>
<p>Total B2B: <strong>{{.Totals.B2B}}</strong> &middot; Total B2C: <strong>{{.Totals.B2C}}</strong></p>
<table>
<tr><th>B2B/B2C</th><th>count</th></tr>
{{range .BusinessTypes}}<tr><td>{{.Value}}</td><td>{{.N}}</td></tr>{{end}}
</table>

<h3>Outsourcing?</h3>
<table>
<tr><th>Outsourcing?</th><th>count</th></tr>
{{range .Outsourcing}}<tr><td>{{.Value}}</td><td>{{.N}}</td></tr>{{end}}
</table>

<h3>Industry</h3>
<table>
<tr><th>Industry</th><th>count</th></tr>
{{range .Industries}}<tr><td>{{.Value}}</td><td>{{.N}}</td></tr>{{end}}
</table>

<h3>Inspect Leads by Type</h3>
{{if .Stored}}<p>{{$src := .Source}}{{$cur := .Filter}}{{range .Filters}}{{if eq . $cur}}<strong>{{.}}</strong>{{else}}<a href="/explore?file={{$src}}&amp;type={{.}}">{{.}}</a>{{end}} {{end}}</p>{{end}}
<table>
<tr><th>URL</th><th>Email</th><th>B2B/B2C</th><th>Outsourcing?</th><th>Industry</th><th>Email Domain</th></tr>
{{range .Rows}}<tr><td>{{.URL}}</td><td>{{.Email}}</td><td>{{.BusinessType}}</td><td>{{.Outsourcing}}</td><td>{{.Industry}}</td><td>{{.Domain}}</td></tr>
{{end}}</table>

<h3>Top 10 Email Domains</h3>
<table>
<tr><th>Email Domain</th><th>count</th></tr>
{{range .Domains}}<tr><td>{{.Value}}</td><td>{{.N}}</td></tr>{{end}}
</table>

{{if .CrossTab.Industries}}
<h3>Industry vs Business Type</h3>
<table>
<tr><th>Industry</th>{{range .CrossTab.Types}}<th>{{.}}</th>{{end}}</tr>
{{$counts := .CrossTab.Counts}}{{range $i, $ind := .CrossTab.Industries}}<tr><td>{{$ind}}</td>{{range index $counts $i}}<td>{{.}}</td>{{end}}</tr>
{{end}}</table>
{{end}}
{{end}}

<footer><small>leadscraper {{.Version}}</small></footer>
</body>
</html>
`
