package local_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/palantir/palantir-compute-module-feature-matrix/pkg/pipeline/core"
	"github.com/palantir/palantir-compute-module-feature-matrix/pkg/pipeline/io/local"
	"github.com/palantir/palantir-compute-module-feature-matrix/pkg/pipeline/schema"
)

func readAll(t *testing.T, r *local.Reader) []core.Record {
	t.Helper()
	var out []core.Record
	for {
		rec, err := r.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out = append(out, rec)
	}
}

func TestReader(t *testing.T) {
	t.Run("reads records in order", func(t *testing.T) {
		in := "Features,OtherCol\nSingle Sign-On,foo\nMFA,bar\n"
		r := local.NewReader(strings.NewReader(in))
		if diff := cmp.Diff([]string{"Features", "OtherCol"}, r.Schema().Fields()); diff != "" {
			t.Fatalf("schema mismatch (-want +got):\n%s", diff)
		}
		recs := readAll(t, r)
		if len(recs) != 2 {
			t.Fatalf("expected 2 records, got %d", len(recs))
		}
		if v, _ := recs[0].Get("Features"); v != "Single Sign-On" {
			t.Fatalf("unexpected record[0]: %q", v)
		}
		if v, _ := recs[1].Get("OtherCol"); v != "bar" {
			t.Fatalf("unexpected record[1]: %q", v)
		}
	})

	t.Run("empty input yields empty schema", func(t *testing.T) {
		r := local.NewReader(strings.NewReader(""))
		if r.Schema().Len() != 0 {
			t.Fatalf("expected empty schema, got %v", r.Schema().Fields())
		}
		if recs := readAll(t, r); len(recs) != 0 {
			t.Fatalf("expected no records, got %d", len(recs))
		}
	})

	t.Run("bare quotes in header are literal", func(t *testing.T) {
		r := local.NewReader(strings.NewReader("Feat\"ures,x\nfoo,bar\n"))
		if diff := cmp.Diff([]string{"Feat\"ures", "x"}, r.Schema().Fields()); diff != "" {
			t.Fatalf("schema mismatch (-want +got):\n%s", diff)
		}
		if recs := readAll(t, r); len(recs) != 1 {
			t.Fatalf("expected 1 record, got %d", len(recs))
		}
	})

	t.Run("bare quotes in data rows are literal", func(t *testing.T) {
		r := local.NewReader(strings.NewReader("Features,OtherCol\nSSO,a\nSupport for \"SSO\" tokens,b\nMFA,c\n"))
		recs := readAll(t, r)
		if len(recs) != 3 {
			t.Fatalf("expected 3 records, got %d", len(recs))
		}
		if v, _ := recs[1].Get("Features"); v != `Support for "SSO" tokens` {
			t.Fatalf("unexpected record[1]: %q", v)
		}
	})

	t.Run("header names are kept verbatim", func(t *testing.T) {
		r := local.NewReader(strings.NewReader("\ufeffFeatures, OtherCol\nSSO,a\n"))
		if diff := cmp.Diff([]string{"Features", " OtherCol"}, r.Schema().Fields()); diff != "" {
			t.Fatalf("schema mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("short rows get empty values", func(t *testing.T) {
		r := local.NewReader(strings.NewReader("Features,OtherCol\nMFA\n"))
		recs := readAll(t, r)
		v, ok := recs[0].Get("OtherCol")
		if !ok || v != "" {
			t.Fatalf("expected empty OtherCol, got %q ok=%v", v, ok)
		}
	})

	t.Run("long rows keep overflow", func(t *testing.T) {
		r := local.NewReader(strings.NewReader("Features\nMFA,extra\n"))
		recs := readAll(t, r)
		if diff := cmp.Diff([]string{"extra"}, recs[0].Overflow()); diff != "" {
			t.Fatalf("overflow mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestWriter(t *testing.T) {
	ctx := context.Background()
	s := schema.New("Features", "OtherCol").WithColumn("CyberArk")

	t.Run("writes header and rows in schema order", func(t *testing.T) {
		var buf bytes.Buffer
		w, err := local.NewWriter(&buf, s)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var rec core.Record
		rec.Set("OtherCol", "foo")
		rec.Set("CyberArk", "Yes")
		rec.Set("Features", "Single Sign-On")
		if err := w.Write(ctx, rec); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "Features,OtherCol,CyberArk\r\nSingle Sign-On,foo,Yes\r\n"
		if buf.String() != want {
			t.Fatalf("unexpected output: %q want %q", buf.String(), want)
		}
	})

	t.Run("header only", func(t *testing.T) {
		var buf bytes.Buffer
		if _, err := local.NewWriter(&buf, s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if buf.String() != "Features,OtherCol,CyberArk\r\n" {
			t.Fatalf("unexpected output: %q", buf.String())
		}
	})

	t.Run("quotes are escaped on output", func(t *testing.T) {
		var buf bytes.Buffer
		w, err := local.NewWriter(&buf, schema.New("Features"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		rec := core.NewRecord([]string{"Features"}, []string{`Support for "SSO" tokens`})
		if err := w.Write(ctx, rec); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "Features\r\n\"Support for \"\"SSO\"\" tokens\"\r\n"
		if buf.String() != want {
			t.Fatalf("unexpected output: %q want %q", buf.String(), want)
		}
	})

	t.Run("missing field errors", func(t *testing.T) {
		w, err := local.NewWriter(io.Discard, s)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		rec := core.NewRecord([]string{"Features"}, []string{"MFA"})
		if err := w.Write(ctx, rec); !errors.Is(err, local.ErrMissingField) {
			t.Fatalf("expected ErrMissingField, got %v", err)
		}
	})

	t.Run("overflow errors", func(t *testing.T) {
		w, err := local.NewWriter(io.Discard, schema.New("Features"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		rec := core.NewRecord([]string{"Features"}, []string{"MFA", "extra"})
		if err := w.Write(ctx, rec); !errors.Is(err, local.ErrUnexpectedFields) {
			t.Fatalf("expected ErrUnexpectedFields, got %v", err)
		}
	})
}
