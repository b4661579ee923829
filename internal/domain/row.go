package domain

import (
	"sort"
	"strconv"
	"strings"
)

// Row is one scraped table row: ordered cell text plus named fields
// mapped by the source adapter. Derived fields added later in the
// pipeline (coordinates, zone) only ever go into Fields.
type Row struct {
	Cells  []string          `json:"cells"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Field returns a trimmed named field.
func (r Row) Field(name string) string {
	if r.Fields == nil {
		return ""
	}
	return strings.TrimSpace(r.Fields[name])
}

// FloatField parses a named field as a float.
func (r Row) FloatField(name string) (float64, bool) {
	raw := r.Field(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// WithField returns a copy of r with name set to value.
func (r Row) WithField(name, value string) Row {
	fields := make(map[string]string, len(r.Fields)+1)
	for k, v := range r.Fields {
		fields[k] = v
	}
	fields[name] = value
	return Row{Cells: r.Cells, Fields: fields}
}

// HashInput returns the values content hashing is computed over: the cells
// when present, otherwise the fields as sorted key=value pairs.
func (r Row) HashInput() []string {
	if len(r.Cells) > 0 {
		return r.Cells
	}
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+r.Fields[k])
	}
	return out
}
