package local

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/palantir/palantir-compute-module-feature-matrix/pkg/pipeline/core"
	"github.com/palantir/palantir-compute-module-feature-matrix/pkg/pipeline/schema"
)

var (
	// ErrMissingField is returned by Writer.Write when a record lacks a schema column.
	ErrMissingField = errors.New("record is missing a schema field")
	// ErrUnexpectedFields is returned by Writer.Write when a record carries values beyond the schema.
	ErrUnexpectedFields = errors.New("record contains fields not in schema")
)

// Reader yields one record per CSV data row, keyed by the header.
type Reader struct {
	cr     *csv.Reader
	schema schema.Schema
}

// NewReader reads the header from r. An empty or unparsable header yields an
// empty schema and a reader with no records. Stray quotes inside unquoted
// fields are kept as literal text.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	out := &Reader{cr: cr}
	header, err := cr.Read()
	if err != nil {
		return out
	}
	out.schema = schema.New(schema.NormalizeHeader(header)...)
	return out
}

// Schema returns the fields discovered from the header.
func (r *Reader) Schema() schema.Schema {
	return r.schema
}

// Next returns the next record, or io.EOF once the input is exhausted.
func (r *Reader) Next(ctx context.Context) (core.Record, error) {
	if err := ctx.Err(); err != nil {
		return core.Record{}, err
	}
	if r.schema.Len() == 0 {
		return core.Record{}, io.EOF
	}
	rec, err := r.cr.Read()
	if err == io.EOF {
		return core.Record{}, io.EOF
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("read row: %w", err)
	}
	return core.NewRecord(r.schema.Fields(), rec), nil
}

// Writer serializes records in schema order, flushing after every record.
type Writer struct {
	cw     *csv.Writer
	fields []string
}

// NewWriter writes the header for s to w. Lines end in CRLF.
func NewWriter(w io.Writer, s schema.Schema) (*Writer, error) {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(s.Fields()); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return &Writer{cw: cw, fields: s.Fields()}, nil
}

func (w *Writer) Write(_ context.Context, rec core.Record) error {
	if extra := rec.Overflow(); len(extra) > 0 {
		return fmt.Errorf("%w: %q", ErrUnexpectedFields, extra)
	}
	line := make([]string, len(w.fields))
	for i, name := range w.fields {
		v, ok := rec.Get(name)
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingField, name)
		}
		line[i] = v
	}
	if err := w.cw.Write(line); err != nil {
		return err
	}
	w.cw.Flush()
	return w.cw.Error()
}
