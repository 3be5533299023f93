// Package refs merges free-form id/name reference values into draft.IDNameRef
// and matches them against selection lists.
//
// A reference field distinguishes three caller intents: absent (leave the
// reference untouched), explicit null (clear it) and a value (merge it).
// Callers must keep absent and null apart; conflating them silently wipes
// references.
package refs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Incoming is a reference value as received from a caller: a JSON string,
// number, object with id/name keys, or null.
type Incoming struct {
	set     bool
	null    bool
	str     *string
	num     *string
	id      field
	name    field
	isField bool
}

type field struct {
	set   bool
	value *string
}

// Absent is the zero Incoming: merging it is a no-op.
func Absent() Incoming { return Incoming{} }

// Null clears the reference when merged.
func Null() Incoming { return Incoming{set: true, null: true} }

// Name sets only the name when merged.
func Name(s string) Incoming { return Incoming{set: true, str: &s} }

// ID sets only the id when merged.
func ID(id string) Incoming {
	return Incoming{set: true, isField: true, id: field{set: true, value: &id}}
}

// Ref sets both id and name when merged.
func Ref(id, name string) Incoming {
	return Incoming{
		set:     true,
		isField: true,
		id:      field{set: true, value: &id},
		name:    field{set: true, value: &name},
	}
}

// IsSet reports whether the caller supplied a value, null included.
func (in Incoming) IsSet() bool { return in.set }

// IsNull reports whether the caller explicitly supplied null.
func (in Incoming) IsNull() bool { return in.null }

// UnmarshalJSON accepts strings, numbers, objects and null.
func (in *Incoming) UnmarshalJSON(b []byte) error {
	*in = Incoming{set: true}
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		in.null = true
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		in.str = &s
		return nil
	case len(b) > 0 && b[0] == '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		in.isField = true
		var err error
		if raw, ok := obj["id"]; ok {
			if in.id, err = scalar(raw); err != nil {
				return fmt.Errorf("ref id: %w", err)
			}
		}
		if raw, ok := obj["name"]; ok {
			if in.name, err = scalar(raw); err != nil {
				return fmt.Errorf("ref name: %w", err)
			}
		}
		return nil
	default:
		f, err := scalar(b)
		if err != nil {
			return fmt.Errorf("unsupported reference value %s", string(b))
		}
		in.num = f.value
		return nil
	}
}

// MarshalJSON renders the value back in its original shape; absent renders as null.
func (in Incoming) MarshalJSON() ([]byte, error) {
	switch {
	case !in.set || in.null:
		return []byte("null"), nil
	case in.str != nil:
		return json.Marshal(*in.str)
	case in.num != nil:
		return []byte(*in.num), nil
	}
	obj := map[string]*string{}
	if in.id.set {
		obj["id"] = in.id.value
	}
	if in.name.set {
		obj["name"] = in.name.value
	}
	return json.Marshal(obj)
}

// scalar reads a string, number or null object member.
func scalar(raw json.RawMessage) (field, error) {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return field{set: true}, nil
	}
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return field{}, err
		}
		return field{set: true, value: &s}, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return field{}, fmt.Errorf("unsupported value %s", string(raw))
	}
	s := canonicalNumber(n.String())
	return field{set: true, value: &s}, nil
}

// canonicalNumber keeps integer literals verbatim and rewrites integral
// decimal forms such as "5.0" or "1e3" as integers.
func canonicalNumber(s string) string {
	if !strings.ContainsAny(s, ".eE") {
		return s
	}
	f, ok := new(big.Float).SetPrec(512).SetString(s)
	if !ok || !f.IsInt() {
		return s
	}
	i, _ := f.Int(nil)
	return i.String()
}

func cleaned(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
