// Package codec converts preference records to and from their stored text.
//
// Decoding is driven by the schema: each field takes the value stored under
// its key when that value has the field's kind, and its default otherwise.
// Keys the schema does not know are ignored. This is the whole migration
// story: adding a field shows its default, removing one drops its value.
package codec

import (
	"fmt"

	"github.com/kalambet/prefs/schema"
)

// Values maps field names to current values.
type Values map[string]any

// Clone returns a shallow copy of v.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Codec is a text format for records.
type Codec interface {
	Name() string
	// Extension is appended to the schema base name to form the storage key.
	Extension() string
	Decode(content string, s *schema.Schema) (Values, error)
	Encode(s *schema.Schema, v Values) (string, error)
}

// DecodeError reports content that could not be parsed at all, or, in
// strict mode, a stored value of the wrong kind.
type DecodeError struct {
	Location string
	Key      string
	Err      error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := "codec: decode"
	if e.Location != "" {
		msg += " " + e.Location
	}
	if e.Key != "" {
		msg += fmt.Sprintf(" key %q", e.Key)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Strict wraps c so that a stored value whose type does not match its field
// is a DecodeError instead of falling back to the default.
func Strict(c Codec) Codec {
	if sc, ok := c.(strictCodec); ok {
		return sc
	}
	return strictCodec{Codec: c}
}

type strictCodec struct {
	Codec
}

func (c strictCodec) Decode(content string, s *schema.Schema) (Values, error) {
	raw, err := rawDecode(c.Codec, content)
	if err != nil {
		return nil, err
	}
	return fromRaw(raw, s, true)
}

// rawDecoder is implemented by the built-in codecs so Strict can reuse their
// parsers.
type rawDecoder interface {
	decodeRaw(content string) (map[string]any, error)
}

func rawDecode(c Codec, content string) (map[string]any, error) {
	rd, ok := c.(rawDecoder)
	if !ok {
		return nil, fmt.Errorf("codec %s does not support strict decoding", c.Name())
	}
	return rd.decodeRaw(content)
}

// fromRaw applies the schema to a parsed key/value document.
func fromRaw(raw map[string]any, s *schema.Schema, strict bool) (Values, error) {
	out := make(Values, s.Len())
	for _, f := range s.Fields() {
		stored, present := raw[f.Key()]
		if !present {
			out[f.Name()] = f.Default()
			continue
		}
		v, ok := schema.Coerce(f.Kind(), stored)
		if !ok {
			if strict {
				return nil, &DecodeError{
					Key: f.Key(),
					Err: fmt.Errorf("value %v (%T) is not a %s", stored, stored, f.Kind()),
				}
			}
			out[f.Name()] = f.Default()
			continue
		}
		out[f.Name()] = v
	}
	return out, nil
}

// toRaw keys every field's current value by its storage key. Missing values
// are written as defaults. A value that does not fit its field is an error:
// it would not decode back.
func toRaw(s *schema.Schema, v Values) (map[string]any, error) {
	out := make(map[string]any, s.Len())
	for _, f := range s.Fields() {
		cur, present := v[f.Name()]
		if !present {
			out[f.Key()] = f.Default()
			continue
		}
		val, ok := schema.Coerce(f.Kind(), cur)
		if !ok {
			return nil, fmt.Errorf("codec: encode field %q: value %q (%T) is not a valid %s",
				f.Name(), fmt.Sprint(cur), cur, f.Kind())
		}
		out[f.Key()] = val
	}
	return out, nil
}

// ByName returns the built-in codec called name ("toml" or "yaml").
func ByName(name string) (Codec, error) {
	switch name {
	case "", "toml":
		return TOML(), nil
	case "yaml", "yml":
		return YAML(), nil
	}
	return nil, fmt.Errorf("unknown format %q", name)
}
