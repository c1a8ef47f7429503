package codec

import (
	"gopkg.in/yaml.v3"

	"github.com/kalambet/prefs/schema"
)

type yamlCodec struct{}

// YAML returns a codec storing each record as a flat YAML mapping.
func YAML() Codec { return yamlCodec{} }

func (yamlCodec) Name() string      { return "yaml" }
func (yamlCodec) Extension() string { return "yaml" }

func (c yamlCodec) Decode(content string, s *schema.Schema) (Values, error) {
	raw, err := c.decodeRaw(content)
	if err != nil {
		return nil, err
	}
	return fromRaw(raw, s, false)
}

func (yamlCodec) decodeRaw(content string) (map[string]any, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal([]byte(content), &raw); err != nil {
		return nil, &DecodeError{Err: err}
	}
	// An empty or comment-only document decodes to a nil map.
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

func (yamlCodec) Encode(s *schema.Schema, v Values) (string, error) {
	raw, err := toRaw(s, v)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
