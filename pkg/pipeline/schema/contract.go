package schema

import (
	"strings"
)

// Field captures the minimal behavior-relevant schema fields.
type Field struct {
	Name     string
	Type     string
	Nullable bool
}

// DatasetContract is the logical column contract of a tabular file.
type DatasetContract struct {
	Fields []Field
}

// Header returns the column names in contract order.
func (c DatasetContract) Header() []string {
	out := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		out = append(out, f.Name)
	}
	return out
}

// Missing returns contract columns absent from header, in contract order.
// Header names are compared after trimming surrounding whitespace (and a UTF-8 BOM
// on the first column, which spreadsheet exports like to add).
func (c DatasetContract) Missing(header []string) []string {
	have := make(map[string]struct{}, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		have[strings.TrimSpace(name)] = struct{}{}
	}
	var missing []string
	for _, f := range c.Fields {
		if _, ok := have[f.Name]; !ok {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// Index maps each contract column to its position in header, or -1 when absent.
func (c DatasetContract) Index(header []string) map[string]int {
	pos := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.TrimSpace(name)
		if _, dup := pos[name]; !dup {
			pos[name] = i
		}
	}
	out := make(map[string]int, len(c.Fields))
	for _, f := range c.Fields {
		if i, ok := pos[f.Name]; ok {
			out[f.Name] = i
			continue
		}
		out[f.Name] = -1
	}
	return out
}
