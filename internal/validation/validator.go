// Package validation decides whether an OCR verification response carries
// usable receipt data.
package validation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed receipt.schema.json
var receiptSchema []byte

const (
	ModeStrict  = "strict"
	ModeLenient = "lenient"
)

// Result is the classification of one OCR response. Data always holds the
// payload: the parsed JSON when it parses, otherwise the raw text as a JSON string.
type Result struct {
	Valid  bool
	Data   json.RawMessage
	Reason string
}

// Validator classifies raw OCR verification text
type Validator interface {
	Validate(raw []byte) Result
}

// NewValidator returns the validator for the configured mode
func NewValidator(mode string) (Validator, error) {
	switch strings.ToLower(mode) {
	case "", ModeStrict:
		return NewStrictValidator()
	case ModeLenient:
		return LenientValidator{}, nil
	}
	return nil, fmt.Errorf("unknown validation mode %q", mode)
}

// StrictValidator requires a JSON object with no null fields and a truthy emitente_cnpj
type StrictValidator struct {
	schema *jsonschema.Schema
}

func NewStrictValidator() (*StrictValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("receipt.schema.json", bytes.NewReader(receiptSchema)); err != nil {
		return nil, fmt.Errorf("add receipt schema: %w", err)
	}
	schema, err := compiler.Compile("receipt.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile receipt schema: %w", err)
	}
	return &StrictValidator{schema: schema}, nil
}

func (v *StrictValidator) Validate(raw []byte) Result {
	payload, data, ok := parse(raw)
	if !ok {
		return Result{Valid: false, Data: data, Reason: "response is not JSON"}
	}

	if err := v.schema.Validate(payload); err != nil {
		return Result{Valid: false, Data: data, Reason: describe(err)}
	}
	return Result{Valid: true, Data: data}
}

// LenientValidator accepts any non-empty text or non-empty JSON object
type LenientValidator struct{}

func (LenientValidator) Validate(raw []byte) Result {
	payload, data, ok := parse(raw)
	if len(bytes.TrimSpace(raw)) == 0 {
		return Result{Valid: false, Data: data, Reason: "response is empty"}
	}
	if !ok {
		return Result{Valid: true, Data: data}
	}
	switch t := payload.(type) {
	case nil:
		return Result{Valid: false, Data: data, Reason: "response is null"}
	case map[string]any:
		if len(t) == 0 {
			return Result{Valid: false, Data: data, Reason: "response object is empty"}
		}
	}
	return Result{Valid: true, Data: data}
}

// parse decodes raw as JSON. When it is not JSON, data is the raw text
// encoded as a JSON string so it can still be stored and displayed.
func parse(raw []byte) (any, json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	var payload any
	if len(trimmed) > 0 && json.Unmarshal(trimmed, &payload) == nil {
		return payload, append(json.RawMessage(nil), trimmed...), true
	}
	text, _ := json.Marshal(string(raw))
	return nil, text, false
}

func describe(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var reasons []string
	collectLeaves(ve, &reasons)
	if len(reasons) == 0 {
		return ve.Message
	}
	return strings.Join(reasons, "; ")
}

func collectLeaves(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*out = append(*out, fmt.Sprintf("%s: %s", loc, ve.Message))
		return
	}
	for _, c := range ve.Causes {
		collectLeaves(c, out)
	}
}
