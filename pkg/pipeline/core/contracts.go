package core

import (
	"context"
	"slices"
)

// Record is an ordered mapping from field name to value for a single CSV row.
type Record struct {
	keys     []string
	values   map[string]string
	overflow []string
}

// NewRecord builds a record from parallel key/value slices. Values without a
// matching key are kept as overflow.
func NewRecord(keys []string, values []string) Record {
	r := Record{values: make(map[string]string, len(keys))}
	for i, k := range keys {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		r.Set(k, v)
	}
	if len(values) > len(keys) {
		r.overflow = slices.Clone(values[len(keys):])
	}
	return r
}

// Get returns the value stored under name and whether the field is present.
func (r Record) Get(name string) (string, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Set stores value under name, appending name to the key order on first use.
func (r *Record) Set(name, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, ok := r.values[name]; !ok {
		r.keys = append(r.keys, name)
	}
	r.values[name] = value
}

// Keys returns the field names in insertion order.
func (r Record) Keys() []string {
	return slices.Clone(r.keys)
}

// Overflow returns values that had no column in the header.
func (r Record) Overflow() []string {
	return slices.Clone(r.overflow)
}

// Source yields records in input order. Next returns io.EOF when exhausted.
type Source interface {
	Next(ctx context.Context) (Record, error)
}

// Sink persists records in the order they are received.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (Record, error)

func (f SourceFunc) Next(ctx context.Context) (Record, error) {
	return f(ctx)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, rec Record) error

func (f SinkFunc) Write(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}
