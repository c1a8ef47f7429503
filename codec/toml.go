package codec

import (
	"github.com/pelletier/go-toml/v2"

	"github.com/kalambet/prefs/schema"
)

type tomlCodec struct{}

// TOML returns the default codec: one flat TOML table per record.
func TOML() Codec { return tomlCodec{} }

func (tomlCodec) Name() string      { return "toml" }
func (tomlCodec) Extension() string { return "toml" }

func (c tomlCodec) Decode(content string, s *schema.Schema) (Values, error) {
	raw, err := c.decodeRaw(content)
	if err != nil {
		return nil, err
	}
	return fromRaw(raw, s, false)
}

func (tomlCodec) decodeRaw(content string) (map[string]any, error) {
	raw := map[string]any{}
	if err := toml.Unmarshal([]byte(content), &raw); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return raw, nil
}

func (tomlCodec) Encode(s *schema.Schema, v Values) (string, error) {
	raw, err := toRaw(s, v)
	if err != nil {
		return "", err
	}
	data, err := toml.Marshal(raw)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
