package actions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Result is the outcome of validating a candidate batch. Valid is true only
// when Errors is empty; when a structural precondition fails (not an array,
// empty, over the batch limit) Actions is empty regardless of item contents.
type Result struct {
	Valid   bool     `json:"valid"`
	Actions []Action `json:"actions"`
	Errors  []string `json:"errors"`
}

// ValidateJSON validates a raw JSON value that is expected to be an array of
// candidate actions. A non-array payload is a structural rejection.
func ValidateJSON(raw json.RawMessage) Result {
	var candidates []Candidate
	if err := json.Unmarshal(raw, &candidates); err != nil {
		return Result{Actions: []Action{}, Errors: []string{"response is not an array of actions"}}
	}
	return Validate(candidates)
}

// Validate checks a candidate batch against the schema registry and returns
// the sanitized actions together with every validation error found. Items are
// checked independently: one bad action is excluded and reported without
// aborting its siblings.
func Validate(candidates []Candidate) Result {
	if len(candidates) > MaxBatchSize {
		return Result{
			Actions: []Action{},
			Errors:  []string{fmt.Sprintf("Too many actions (%d). Maximum is %d.", len(candidates), MaxBatchSize)},
		}
	}
	if len(candidates) == 0 {
		return Result{Actions: []Action{}, Errors: []string{"No actions provided"}}
	}

	var errs []string
	validated := make([]Action, 0, len(candidates))

	for i, candidate := range candidates {
		prefix := fmt.Sprintf("Action #%d", i+1)

		kind := candidate.Kind()
		if kind == "" {
			errs = append(errs, fmt.Sprintf("%s: Missing \"type\" field", prefix))
			continue
		}
		if IsBlocked(kind) {
			errs = append(errs, fmt.Sprintf("%s: Action %q is blocked and not allowed", prefix, kind))
			continue
		}
		schema, ok := Lookup(kind)
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: Unknown action type %q", prefix, kind))
			continue
		}

		var missing []string
		for _, field := range schema.Required {
			if _, ok := candidate[field]; !ok {
				missing = append(missing, field)
			}
		}
		if len(missing) > 0 {
			errs = append(errs, fmt.Sprintf("%s (%s): Missing required fields: %s", prefix, kind, strings.Join(missing, ", ")))
			continue
		}

		action := Action{Kind: kind, Fields: make(map[string]any)}
		fieldErr := false
		for _, field := range append(append([]string{}, schema.Required...), schema.Optional...) {
			value, present := candidate[field]
			if !present {
				continue
			}
			switch schema.FieldTypes[field] {
			case FieldNumber:
				num, ok := coerceNumber(value)
				if !ok {
					errs = append(errs, fmt.Sprintf("%s (%s): Field %q must be a number, got %q", prefix, kind, field, fmt.Sprint(value)))
					fieldErr = true
					continue
				}
				action.Fields[field] = num
			case FieldString:
				str, ok := value.(string)
				if !ok {
					errs = append(errs, fmt.Sprintf("%s (%s): Field %q must be a string", prefix, kind, field))
					fieldErr = true
					continue
				}
				if field == "title" && utf8.RuneCountInString(str) > maxTitleLength {
					errs = append(errs, fmt.Sprintf("%s (%s): Title is too long (max %d characters)", prefix, kind, maxTitleLength))
					fieldErr = true
					continue
				}
				action.Fields[field] = str
			case FieldArray:
				if _, ok := value.([]any); !ok {
					errs = append(errs, fmt.Sprintf("%s (%s): Field %q must be an array", prefix, kind, field))
					fieldErr = true
					continue
				}
				action.Fields[field] = value
			default:
				// Field has no declared type; keep it as-is.
				action.Fields[field] = value
			}
		}
		if fieldErr {
			continue
		}
		// Fields outside the schema are silently dropped.
		validated = append(validated, action)
	}

	return Result{
		Valid:   len(errs) == 0,
		Actions: validated,
		Errors:  errs,
	}
}

func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		num, err := v.Float64()
		return num, err == nil
	case string:
		num, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return num, err == nil
	default:
		return 0, false
	}
}
