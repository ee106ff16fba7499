package orderrequest

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a validation failure. The kinds drive different user copy:
// a missing or mistyped field means the cart is corrupted, a bad value means
// the cart needs attention before retrying.
type Kind int

const (
	MissingField Kind = iota + 1
	InvalidType
	InvalidValue
)

var (
	ErrMissingField = errors.New("missing field")
	ErrInvalidType  = errors.New("invalid type")
	ErrInvalidValue = errors.New("invalid value")
)

func (k Kind) String() string {
	switch k {
	case MissingField:
		return "missing_field"
	case InvalidType:
		return "invalid_type"
	case InvalidValue:
		return "invalid_value"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case MissingField:
		return ErrMissingField
	case InvalidType:
		return ErrInvalidType
	default:
		return ErrInvalidValue
	}
}

// ValidationError describes why a request or one of its items was rejected.
// Index is the item position, or -1 for request-level fields.
type ValidationError struct {
	Kind   Kind
	Index  int
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	where := "request"
	if e.Index >= 0 {
		where = fmt.Sprintf("item %d", e.Index)
	}
	fields := strings.Join(e.Fields, ", ")

	switch e.Kind {
	case MissingField:
		return fmt.Sprintf("%s: missing %s", where, fields)
	case InvalidType:
		return fmt.Sprintf("%s: %s has an invalid type", where, fields)
	default:
		if e.Reason != "" {
			return fmt.Sprintf("%s: %s %s", where, fields, e.Reason)
		}
		return fmt.Sprintf("%s: invalid %s", where, fields)
	}
}

func (e *ValidationError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Details is the structured form sent back to callers and written to logs.
func (e *ValidationError) Details() map[string]any {
	d := map[string]any{
		"kind":   e.Kind.String(),
		"fields": e.Fields,
	}
	if e.Index >= 0 {
		d["index"] = e.Index
	}
	if e.Reason != "" {
		d["reason"] = e.Reason
	}
	return d
}

func missing(index int, fields ...string) *ValidationError {
	return &ValidationError{Kind: MissingField, Index: index, Fields: fields}
}

func invalidType(index int, field string) *ValidationError {
	return &ValidationError{Kind: InvalidType, Index: index, Fields: []string{field}}
}

func invalidValue(index int, field, reason string) *ValidationError {
	return &ValidationError{Kind: InvalidValue, Index: index, Fields: []string{field}, Reason: reason}
}

// UserMessage returns copy suitable for a toast.
func UserMessage(err error) string {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return "Couldn't process your order. Please refresh and try again."
	}
	switch ve.Kind {
	case MissingField, InvalidType:
		return "Some items in your cart are invalid. Please refresh your cart and try again."
	default:
		return "Couldn't process your order: " + ve.Error() + ". Please update your cart and try again."
	}
}
