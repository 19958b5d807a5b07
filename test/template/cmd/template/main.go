package main

import (
	"context"
	"fmt"
	"os"

	"github.com/palantir/palantir-compute-module-feature-matrix/pkg/pipeline/io/local"
	"github.com/palantir/palantir-compute-module-feature-matrix/test/template/processor"
)

// Reads CSV on stdin and writes it to stdout with an UPPER column derived from Name.
func main() {
	p := processor.Processor{From: "Name", Column: "UPPER"}

	r := local.NewReader(os.Stdin)
	w, err := local.NewWriter(os.Stdout, r.Schema().WithColumn(p.Column))
	if err != nil {
		panic(err)
	}
	if err := p.Run(context.Background(), r, w, 1); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "template: %v\n", err)
		os.Exit(1)
	}
}
