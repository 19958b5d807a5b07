package schema

import (
	"slices"
	"strings"
)

// Schema is the ordered list of column names that governs both input parsing
// and output serialization. It is established once from the input header.
type Schema struct {
	fields []string
}

// New returns a schema over the given field names in order.
func New(fields ...string) Schema {
	return Schema{fields: slices.Clone(fields)}
}

// Fields returns a copy of the ordered field names.
func (s Schema) Fields() []string {
	return slices.Clone(s.fields)
}

func (s Schema) Len() int {
	return len(s.fields)
}

func (s Schema) Has(name string) bool {
	return slices.Contains(s.fields, name)
}

// WithColumn returns the schema extended with name as the last column.
//
// A column that is already present is reused in place, never duplicated.
func (s Schema) WithColumn(name string) Schema {
	if s.Has(name) {
		return s
	}
	return Schema{fields: append(slices.Clone(s.fields), name)}
}

func (s Schema) String() string {
	return strings.Join(s.fields, ",")
}

// NormalizeHeader strips a leading byte order mark from the first column.
// Names are otherwise kept verbatim, surrounding whitespace included.
func NormalizeHeader(header []string) []string {
	out := slices.Clone(header)
	if len(out) > 0 {
		out[0] = strings.TrimPrefix(out[0], "\ufeff")
	}
	return out
}
