package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Shape tags which wire contract a response body followed.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeFlat
	ShapeWrapped
	ShapeLegacy
)

func (s Shape) String() string {
	switch s {
	case ShapeFlat:
		return "flat"
	case ShapeWrapped:
		return "wrapped"
	case ShapeLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// wireFields covers every field name seen across service versions.
type wireFields struct {
	IsAnomaly      *bool    `json:"is_anomaly"`
	Confidence     *float64 `json:"confidence"`
	Criticality    *string  `json:"criticality"`
	Summary        *string  `json:"summary"`
	Actions        []string `json:"actions"`
	Mode           *string  `json:"mode"`
	Classification *string  `json:"classification"`
	Suggestion     *string  `json:"suggestion"`
}

// Envelope is the parsed response body tagged with its shape.
// Nothing outside this package sees wire fields.
type Envelope struct {
	Shape  Shape
	fields wireFields
}

// DecodeOptions controls which shapes are normalized.
type DecodeOptions struct {
	// AcceptLegacy maps classification/suggestion bodies instead of rejecting them.
	AcceptLegacy bool
}

// DecodeResult parses and normalizes a 2xx body in one step.
func DecodeResult(body []byte, opts DecodeOptions) (Result, Shape, error) {
	env, err := ParseEnvelope(body)
	if err != nil {
		return Result{}, ShapeUnknown, err
	}
	res, err := env.Normalize(opts)
	return res, env.Shape, err
}

// ParseEnvelope classifies a body as flat, wrapped or legacy.
func ParseEnvelope(body []byte) (Envelope, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return Envelope{}, malformed(fmt.Errorf("decode body: %w", err))
	}
	if top == nil {
		return Envelope{}, malformed(fmt.Errorf("body is not an object"))
	}

	shape := ShapeFlat
	raw := body
	if inner, ok := top["result"]; ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(inner, &nested); err != nil || nested == nil {
			return Envelope{}, malformed(fmt.Errorf("result is not an object"))
		}
		shape = ShapeWrapped
		raw = inner
		top = nested
	}
	if isLegacy(top) {
		shape = ShapeLegacy
	}

	var f wireFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return Envelope{}, malformed(fmt.Errorf("decode fields: %w", err))
	}
	return Envelope{Shape: shape, fields: f}, nil
}

// Normalize converts the envelope into the single internal Result shape.
func (e Envelope) Normalize(opts DecodeOptions) (Result, error) {
	f := e.fields
	if e.Shape == ShapeLegacy && !opts.AcceptLegacy {
		return Result{}, malformed(fmt.Errorf("legacy classification/suggestion shape is not accepted"))
	}
	if f.IsAnomaly == nil {
		return Result{}, malformed(fmt.Errorf("missing is_anomaly"))
	}
	if f.Confidence == nil {
		return Result{}, malformed(fmt.Errorf("missing confidence"))
	}
	if *f.Confidence < 0 || *f.Confidence > 1 {
		return Result{}, malformed(fmt.Errorf("confidence %v outside [0,1]", *f.Confidence))
	}

	res := Result{
		IsAnomaly:  *f.IsAnomaly,
		Confidence: *f.Confidence,
		Actions:    []string{},
	}
	if f.Criticality != nil {
		res.Criticality = Criticality(strings.ToLower(strings.TrimSpace(*f.Criticality)))
	}
	if e.Shape == ShapeLegacy {
		res.Summary = deref(f.Suggestion)
		res.Mode = deref(f.Classification)
		return res, nil
	}
	res.Summary = deref(f.Summary)
	res.Mode = deref(f.Mode)
	if len(f.Actions) > 0 {
		res.Actions = append(res.Actions, f.Actions...)
	}
	return res, nil
}

// isLegacy is true when only the classification/suggestion naming is present.
func isLegacy(m map[string]json.RawMessage) bool {
	_, cls := m["classification"]
	_, sug := m["suggestion"]
	if !cls && !sug {
		return false
	}
	for _, k := range []string{"criticality", "summary", "actions", "mode"} {
		if _, ok := m[k]; ok {
			return false
		}
	}
	return true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func malformed(cause error) *Failure {
	return NewFailure(ErrMalformedResponse, cause)
}
