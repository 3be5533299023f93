// Package rules computes which fields of a draft are still missing from a
// declarative list of rules and renders plain-text draft summaries.
package rules

import (
	"math"
	"reflect"
	"strings"

	"github.com/Chative-core-poc-v1/draftflow/internal/draft"
)

// Kind selects the presence predicate of a Rule.
type Kind string

const (
	KindNumber Kind = "number"
	KindString Kind = "string"
	KindRef    Kind = "ref"
	KindCustom Kind = "custom"
)

// Rule declares when field Key of a draft D counts as present.
type Rule[D any] struct {
	Key  string
	Kind Kind
	// Value reads the field from the draft.
	Value func(D) any
	// Validate is consulted for KindCustom and receives the whole draft so a
	// field can depend on its siblings.
	Validate func(value any, d D) bool
}

// Number requires a finite number greater than zero.
func Number[D any](key string, value func(D) any) Rule[D] {
	return Rule[D]{Key: key, Kind: KindNumber, Value: value}
}

// String requires a non-blank string.
func String[D any](key string, value func(D) any) Rule[D] {
	return Rule[D]{Key: key, Kind: KindString, Value: value}
}

// Ref requires a reference with a known id.
func Ref[D any](key string, value func(D) any) Rule[D] {
	return Rule[D]{Key: key, Kind: KindRef, Value: value}
}

// Custom delegates presence to validate.
func Custom[D any](key string, value func(D) any, validate func(value any, d D) bool) Rule[D] {
	return Rule[D]{Key: key, Kind: KindCustom, Value: value, Validate: validate}
}

// ComputeMissing returns the keys of the rules whose predicate fails, in
// declaration order.
func ComputeMissing[D any](d D, rules []Rule[D]) []string {
	missing := []string{}
	for _, r := range rules {
		if !r.Present(d) {
			missing = append(missing, r.Key)
		}
	}
	return missing
}

// Present evaluates the rule against d.
func (r Rule[D]) Present(d D) bool {
	var v any
	if r.Value != nil {
		v = r.Value(d)
	}
	switch r.Kind {
	case KindNumber:
		return IsPositiveNumber(v)
	case KindString:
		return IsNonBlankString(v)
	case KindRef:
		return HasRefID(v)
	case KindCustom:
		return r.Validate != nil && r.Validate(v, d)
	default:
		return false
	}
}

func indirect(v any) (reflect.Value, bool) {
	if v == nil {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	return rv, true
}

// IsPositiveNumber reports whether v is a finite number greater than zero.
func IsPositiveNumber(v any) bool {
	rv, ok := indirect(v)
	if !ok {
		return false
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() > 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() > 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0) && f > 0
	default:
		return false
	}
}

// IsNonBlankString reports whether v is a string with non-space content.
func IsNonBlankString(v any) bool {
	rv, ok := indirect(v)
	if !ok || rv.Kind() != reflect.String {
		return false
	}
	return strings.TrimSpace(rv.String()) != ""
}

// HasRefID reports whether v is a reference with a non-empty id.
func HasRefID(v any) bool {
	switch r := v.(type) {
	case *draft.IDNameRef:
		return r != nil && r.IDValue() != ""
	case draft.IDNameRef:
		return r.IDValue() != ""
	default:
		return false
	}
}
