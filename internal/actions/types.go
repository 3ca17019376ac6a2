package actions

import (
	"encoding/json"
	"fmt"
)

// Candidate is an untrusted action as produced by the generator: a loose
// field map tagged with a "type" entry. It must pass through Validate before
// anything executes it.
type Candidate map[string]any

// Kind returns the candidate's declared kind, or "" when absent.
func (c Candidate) Kind() Kind {
	kind, _ := c["type"].(string)
	return Kind(kind)
}

// Action is a validated action: a known kind plus only the fields its schema
// declares, with numeric fields already coerced to float64.
type Action struct {
	Kind   Kind
	Fields map[string]any
}

// Str returns the named string field, or "" when absent.
func (a Action) Str(field string) string {
	value, _ := a.Fields[field].(string)
	return value
}

// Num returns the named numeric field and whether it was present.
func (a Action) Num(field string) (float64, bool) {
	value, ok := a.Fields[field].(float64)
	return value, ok
}

// ID returns the named numeric field as a record identifier.
func (a Action) ID(field string) int64 {
	value, _ := a.Num(field)
	return int64(value)
}

// Strings returns the named array field as a string slice, dropping
// non-string elements.
func (a Action) Strings(field string) []string {
	raw, ok := a.Fields[field].([]any)
	if !ok {
		return nil
	}
	items := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			items = append(items, s)
		}
	}
	return items
}

// Has reports whether the named field was present in the input.
func (a Action) Has(field string) bool {
	_, ok := a.Fields[field]
	return ok
}

// Without returns a copy of the action with the named fields removed.
func (a Action) Without(fields ...string) Action {
	clean := Action{Kind: a.Kind, Fields: make(map[string]any, len(a.Fields))}
	for k, v := range a.Fields {
		clean.Fields[k] = v
	}
	for _, f := range fields {
		delete(clean.Fields, f)
	}
	return clean
}

// MarshalJSON flattens the action to {"type": kind, ...fields}, matching the
// wire shape candidates arrive in.
func (a Action) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(a.Fields)+1)
	for k, v := range a.Fields {
		flat[k] = v
	}
	flat["type"] = string(a.Kind)
	return json.Marshal(flat)
}

// UnmarshalJSON parses the flattened wire shape back into kind plus fields.
func (a *Action) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	kind, ok := flat["type"].(string)
	if !ok {
		return fmt.Errorf("action is missing a type field")
	}
	delete(flat, "type")
	a.Kind = Kind(kind)
	a.Fields = flat
	return nil
}
