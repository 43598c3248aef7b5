// Package jsonextract implements the json_Extract primitive spec.md
// §1 and §4.7 treat as an external collaborator consumed by the
// Value Store ("JSON parsing ... is a primitive that's consumed").
// It is backed by gjson rather than hand-rolled, per this module's
// rule of reaching for the corpus's own libraries instead of the
// standard library wherever the corpus shows one.
package jsonextract

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// ResultKind classifies the shape of an extraction result, which in
// turn determines what kind of Sample the caller should construct.
type ResultKind uint8

const (
	ResultString ResultKind = iota
	ResultBool
	ResultNumeric
	ResultJSON // object or array — re-encoded verbatim as a JSON sample
	ResultNull
)

// Result is the outcome of extracting a path from a JSON document.
type Result struct {
	Kind ResultKind
	Str  string
	Bool bool
	Num  float64
	// Raw holds the verbatim JSON text for ResultJSON results.
	Raw string
}

// Extract evaluates a gjson path expression against body and
// classifies the result. It reports an error if the path does not
// resolve to anything in body (spec.md §4.7: "Returns null on
// extraction failure, with a diagnostic").
func Extract(body string, path string) (Result, error) {
	if !gjson.Valid(body) {
		return Result{}, fmt.Errorf("jsonextract: invalid JSON body")
	}

	r := gjson.Get(body, path)
	if !r.Exists() {
		return Result{}, fmt.Errorf("jsonextract: path %q did not match", path)
	}

	switch r.Type {
	case gjson.True, gjson.False:
		return Result{Kind: ResultBool, Bool: r.Bool()}, nil
	case gjson.Number:
		return Result{Kind: ResultNumeric, Num: r.Float()}, nil
	case gjson.String:
		return Result{Kind: ResultString, Str: r.String()}, nil
	case gjson.Null:
		return Result{Kind: ResultNull}, nil
	case gjson.JSON:
		return Result{Kind: ResultJSON, Raw: r.Raw}, nil
	default:
		return Result{}, fmt.Errorf("jsonextract: unrecognized result type for path %q", path)
	}
}
