package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind is the semantic type of a preference field.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a type name from a descriptor file to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bool", "boolean":
		return KindBool, nil
	case "int", "integer", "int64":
		return KindInt, nil
	case "float", "float64", "number":
		return KindFloat, nil
	case "string", "text":
		return KindString, nil
	}
	return 0, fmt.Errorf("unknown field type %q", s)
}

// Scalar is the set of Go types a field value can hold.
type Scalar interface {
	bool | int64 | float64 | string
}

// Descriptor is the kind-erased view of a field used by codecs and the record.
type Descriptor interface {
	Name() string
	Key() string
	Kind() Kind
	Default() any
	// Parse converts command-line or form text to a value of the field's kind.
	Parse(raw string) (any, error)
}

// Field is a typed field handle. The zero value is not usable; build fields
// with Bool, Int, Float or String.
type Field[T Scalar] struct {
	name string
	key  string
	kind Kind
	def  T
}

func Bool(name string, def bool) Field[bool] {
	return Field[bool]{name: name, key: name, kind: KindBool, def: def}
}

func Int(name string, def int64) Field[int64] {
	return Field[int64]{name: name, key: name, kind: KindInt, def: def}
}

func Float(name string, def float64) Field[float64] {
	return Field[float64]{name: name, key: name, kind: KindFloat, def: def}
}

func String(name string, def string) Field[string] {
	return Field[string]{name: name, key: name, kind: KindString, def: def}
}

// StoredAs returns a copy of f persisted under key instead of its name.
// Renaming a field in code while keeping its key preserves stored values.
func (f Field[T]) StoredAs(key string) Field[T] {
	f.key = key
	return f
}

func (f Field[T]) Name() string                  { return f.name }
func (f Field[T]) Key() string                   { return f.key }
func (f Field[T]) Kind() Kind                    { return f.kind }
func (f Field[T]) Default() any                  { return f.def }
func (f Field[T]) DefaultValue() T               { return f.def }
func (f Field[T]) String() string                { return f.name + ":" + f.kind.String() }
func (f Field[T]) Parse(raw string) (any, error) { return ParseValue(f.kind, raw) }

// NewField builds a field of the given kind with a default that is coerced to
// that kind. It is the untyped counterpart of Bool/Int/Float/String used when
// fields come from a descriptor file.
func NewField(name string, kind Kind, def any, key string) (Descriptor, error) {
	if def == nil {
		def = zero(kind)
	}
	v, ok := Coerce(kind, def)
	if !ok {
		return nil, fmt.Errorf("default %v (%T) for field %q is not a %s", def, def, name, kind)
	}
	var d Descriptor
	switch kind {
	case KindBool:
		d = Bool(name, v.(bool)).StoredAs(keyOr(key, name))
	case KindInt:
		d = Int(name, v.(int64)).StoredAs(keyOr(key, name))
	case KindFloat:
		d = Float(name, v.(float64)).StoredAs(keyOr(key, name))
	case KindString:
		d = String(name, v.(string)).StoredAs(keyOr(key, name))
	default:
		return nil, fmt.Errorf("field %q has unsupported kind %s", name, kind)
	}
	return d, nil
}

func keyOr(key, name string) string {
	if key == "" {
		return name
	}
	return key
}

func zero(k Kind) any {
	switch k {
	case KindBool:
		return false
	case KindInt:
		return int64(0)
	case KindFloat:
		return float64(0)
	default:
		return ""
	}
}

// Coerce converts v to the canonical Go type of kind k: bool, int64, float64
// or string. Integers of any width are accepted for int fields and widen to
// float64 for float fields. A float never narrows to an integer, because both
// stored formats keep the two apart. Strings must be valid UTF-8. Anything
// else reports false.
func Coerce(k Kind, v any) (any, bool) {
	switch k {
	case KindBool:
		b, ok := v.(bool)
		return b, ok
	case KindString:
		s, ok := v.(string)
		if !ok || !utf8.ValidString(s) {
			return nil, false
		}
		return s, true
	case KindInt:
		switch n := v.(type) {
		case int:
			return int64(n), true
		case int8:
			return int64(n), true
		case int16:
			return int64(n), true
		case int32:
			return int64(n), true
		case int64:
			return n, true
		case uint8:
			return int64(n), true
		case uint16:
			return int64(n), true
		case uint32:
			return int64(n), true
		case uint:
			if uint64(n) > math.MaxInt64 {
				return nil, false
			}
			return int64(n), true
		case uint64:
			if n > math.MaxInt64 {
				return nil, false
			}
			return int64(n), true
		}
	case KindFloat:
		switch n := v.(type) {
		case float64:
			return n, true
		case float32:
			return float64(n), true
		case int:
			return float64(n), true
		case int32:
			return float64(n), true
		case int64:
			return float64(n), true
		case uint64:
			return float64(n), true
		}
	}
	return nil, false
}

// ParseValue parses raw text into a value of kind k.
func ParseValue(k Kind, raw string) (any, error) {
	switch k {
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q: %w", raw, err)
		}
		return b, nil
	case KindInt:
		i, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", raw, err)
		}
		return i, nil
	case KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q: %w", raw, err)
		}
		return f, nil
	case KindString:
		if !utf8.ValidString(raw) {
			return nil, fmt.Errorf("invalid text %q: not valid UTF-8", raw)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("unsupported kind %s", k)
}
