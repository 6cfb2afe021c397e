package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrInvalidCheck marks a record that must be skipped for this cycle.
// The wrapped validation.Errors names every failing field.
var ErrInvalidCheck = errors.New("invalid check")

const (
	IDLength        = 20
	UserPhoneLength = 10
	MinTimeout      = 1
	MaxTimeout      = 5
)

// ValidateRecord type- and shape-checks a persisted record and returns the
// typed check. Every required field is checked independently; any failure
// rejects the whole record. A missing or unknown state becomes "down" and a
// missing lastChecked means "never". The record itself is never modified.
func ValidateRecord(rec Record) (Check, error) {
	if rec == nil {
		rec = Record{}
	}

	errs := validation.Errors{
		"id":             validation.Validate(rec["id"], validation.Required, validation.By(trimmedLength(IDLength))),
		"userPhone":      validation.Validate(rec["userPhone"], validation.Required, validation.By(trimmedLength(UserPhoneLength))),
		"protocol":       validation.Validate(rec["protocol"], validation.Required, validation.In(string(ProtocolHTTP), string(ProtocolHTTPS))),
		"url":            validation.Validate(rec["url"], validation.Required, validation.By(nonBlankString)),
		"method":         validation.Validate(rec["method"], validation.Required, validation.In(string(MethodGet), string(MethodPost), string(MethodPut), string(MethodDelete))),
		"successCodes":   validation.Validate(rec["successCodes"], validation.Required, validation.By(codeList)),
		"timeoutSeconds": validation.Validate(rec["timeoutSeconds"], validation.Required, validation.By(timeoutRange)),
	}
	if err := errs.Filter(); err != nil {
		return Check{}, fmt.Errorf("%w: %w", ErrInvalidCheck, err)
	}

	codes, _ := asCodes(rec["successCodes"])
	timeout, _ := asInt(rec["timeoutSeconds"])
	c := Check{
		ID:             strings.TrimSpace(rec["id"].(string)),
		UserPhone:      strings.TrimSpace(rec["userPhone"].(string)),
		Protocol:       Protocol(rec["protocol"].(string)),
		URL:            strings.TrimSpace(rec["url"].(string)),
		Method:         Method(rec["method"].(string)),
		SuccessCodes:   codes,
		TimeoutSeconds: int(timeout),
		State:          StateDown,
	}
	if s, ok := rec["state"].(string); ok && (s == string(StateUp) || s == string(StateDown)) {
		c.State = State(s)
	}
	if ts, ok := asInt(rec["lastChecked"]); ok && ts > 0 {
		c.LastChecked = ts
	}
	return c, nil
}

func trimmedLength(n int) validation.RuleFunc {
	return func(v any) error {
		s, ok := v.(string)
		if !ok {
			return validation.NewError("validation_not_string", "must be a string")
		}
		if len(strings.TrimSpace(s)) != n {
			return validation.NewError("validation_length_exact", fmt.Sprintf("must be exactly %d characters", n))
		}
		return nil
	}
}

func nonBlankString(v any) error {
	s, ok := v.(string)
	if !ok {
		return validation.NewError("validation_not_string", "must be a string")
	}
	if strings.TrimSpace(s) == "" {
		return validation.ErrRequired
	}
	return nil
}

func codeList(v any) error {
	codes, ok := asCodes(v)
	if !ok {
		return validation.NewError("validation_not_codes", "must be a list of integer status codes")
	}
	if len(codes) == 0 {
		return validation.ErrRequired
	}
	return nil
}

func timeoutRange(v any) error {
	n, ok := asInt(v)
	if !ok {
		return validation.NewError("validation_not_integer", "must be a whole number of seconds")
	}
	if n < MinTimeout || n > MaxTimeout {
		return validation.NewError("validation_out_of_range", fmt.Sprintf("must be between %d and %d", MinTimeout, MaxTimeout))
	}
	return nil
}

// asInt accepts the numeric shapes the stores produce: float64 from JSON,
// fixed-size ints from SQL drivers, json.Number.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// asCodes returns the distinct codes in their original order.
func asCodes(v any) ([]int, bool) {
	var raw []any
	switch s := v.(type) {
	case []any:
		raw = s
	case []int:
		for _, c := range s {
			raw = append(raw, c)
		}
	case []int32:
		for _, c := range s {
			raw = append(raw, c)
		}
	case []int64:
		for _, c := range s {
			raw = append(raw, c)
		}
	default:
		return nil, false
	}
	seen := make(map[int]bool, len(raw))
	out := make([]int, 0, len(raw))
	for _, e := range raw {
		n, ok := asInt(e)
		if !ok {
			return nil, false
		}
		if !seen[int(n)] {
			seen[int(n)] = true
			out = append(out, int(n))
		}
	}
	return out, true
}
