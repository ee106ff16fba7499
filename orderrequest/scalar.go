package orderrequest

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

var errNotNumeric = errors.New("not a numeric value")

// Scalar is a JSON value of unknown shape. Cart state and request bodies
// arrive with numbers encoded as strings as often as not, so numeric fields
// are kept raw until validation decides what they are.
type Scalar struct {
	raw json.RawMessage
}

// Number wraps a float as a Scalar.
func Number(v float64) Scalar {
	b, _ := json.Marshal(v)
	return Scalar{raw: b}
}

// Int wraps an integer as a Scalar.
func Int(v int) Scalar {
	return Scalar{raw: []byte(strconv.Itoa(v))}
}

// String wraps a string as a Scalar.
func String(v string) Scalar {
	b, _ := json.Marshal(v)
	return Scalar{raw: b}
}

func (s *Scalar) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		s.raw = nil
		return nil
	}
	s.raw = append(json.RawMessage(nil), b...)
	return nil
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	if s.raw == nil {
		return []byte("null"), nil
	}
	return s.raw, nil
}

// Present reports whether the value was sent and is not null.
func (s Scalar) Present() bool {
	return len(s.raw) > 0
}

// Text returns the value as a string. Numbers are returned in their JSON
// spelling; objects, arrays and booleans are not text.
func (s Scalar) Text() (string, bool) {
	if !s.Present() {
		return "", false
	}
	switch s.raw[0] {
	case '"':
		var v string
		if err := json.Unmarshal(s.raw, &v); err != nil {
			return "", false
		}
		return v, true
	case '{', '[', 't', 'f':
		return "", false
	default:
		return string(s.raw), true
	}
}

// Float coerces the value to a finite float64. JSON numbers and strings that
// parse completely as numbers are accepted.
func (s Scalar) Float() (float64, error) {
	if !s.Present() {
		return 0, errNotNumeric
	}

	var text string
	switch s.raw[0] {
	case '"':
		if err := json.Unmarshal(s.raw, &text); err != nil {
			return 0, errNotNumeric
		}
		text = strings.TrimSpace(text)
	case '{', '[', 't', 'f':
		return 0, errNotNumeric
	default:
		text = string(s.raw)
	}

	// ParseFloat also takes hex floats like 0x1p3; prices are decimal only.
	if digits := strings.TrimLeft(text, "+-"); len(digits) > 1 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		return 0, errNotNumeric
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, errNotNumeric
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotNumeric
	}
	return v, nil
}
