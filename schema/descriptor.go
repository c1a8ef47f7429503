package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// descriptorFile is the on-disk form of a schema:
//
//	name: app-settings
//	file: app-settings
//	fields:
//	  - name: dark_mode
//	    type: bool
//	    default: false
//	  - name: font_size
//	    type: int
//	    default: 14
//	    key: fontSize
type descriptorFile struct {
	Name   string            `yaml:"name"`
	File   string            `yaml:"file"`
	Fields []descriptorField `yaml:"fields"`
}

type descriptorField struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Default any    `yaml:"default"`
	Key     string `yaml:"key"`
}

// ParseDescriptor builds a Schema from a YAML descriptor. The file name
// defaults to the schema name when omitted.
func ParseDescriptor(data []byte) (*Schema, error) {
	var df descriptorFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("parsing schema descriptor: %w", err)
	}
	if df.File == "" {
		df.File = df.Name
	}

	fields := make([]Descriptor, 0, len(df.Fields))
	for i, f := range df.Fields {
		kind, err := ParseKind(f.Type)
		if err != nil {
			return nil, fmt.Errorf("schema %q field %d (%s): %w", df.Name, i, f.Name, err)
		}
		d, err := NewField(f.Name, kind, f.Default, f.Key)
		if err != nil {
			return nil, fmt.Errorf("schema %q: %w", df.Name, err)
		}
		fields = append(fields, d)
	}
	return New(df.Name, df.File, fields...)
}

// LoadDescriptor reads and parses a YAML schema descriptor file.
func LoadDescriptor(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema descriptor: %w", err)
	}
	return ParseDescriptor(data)
}
