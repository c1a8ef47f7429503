// Package schema describes preference sets: an ordered table of typed,
// defaulted fields with stable storage keys, plus the base name of the file or
// record that holds them.
package schema

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	// ErrDuplicateKey is returned by New when two fields share a storage key.
	ErrDuplicateKey = errors.New("schema: duplicate storage key")
	// ErrDuplicateField is returned by New when two fields share a name.
	ErrDuplicateField = errors.New("schema: duplicate field name")
)

var seq atomic.Uint64

// Schema is an immutable, validated field table. Each Schema value is a
// distinct preference-set type: two schemas built from identical arguments
// still have different IDs.
type Schema struct {
	id       string
	name     string
	baseName string
	fields   []Descriptor
	byName   map[string]int
	byKey    map[string]int
}

// New validates fields and returns the schema. Field and storage key
// uniqueness is checked here, once, rather than on every load.
func New(name, baseName string, fields ...Descriptor) (*Schema, error) {
	if name == "" {
		return nil, errors.New("schema: name is required")
	}
	if baseName == "" {
		return nil, fmt.Errorf("schema %q: base name is required", name)
	}

	s := &Schema{
		id:       fmt.Sprintf("%s#%d", name, seq.Add(1)),
		name:     name,
		baseName: baseName,
		fields:   make([]Descriptor, 0, len(fields)),
		byName:   make(map[string]int, len(fields)),
		byKey:    make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if f == nil {
			return nil, fmt.Errorf("schema %q: nil field", name)
		}
		if f.Name() == "" {
			return nil, fmt.Errorf("schema %q: field name is required", name)
		}
		if f.Key() == "" {
			return nil, fmt.Errorf("schema %q: field %q has an empty storage key", name, f.Name())
		}
		if _, dup := s.byName[f.Name()]; dup {
			return nil, fmt.Errorf("%w: %q in schema %q", ErrDuplicateField, f.Name(), name)
		}
		if prev, dup := s.byKey[f.Key()]; dup {
			return nil, fmt.Errorf("%w: %q used by fields %q and %q in schema %q",
				ErrDuplicateKey, f.Key(), s.fields[prev].Name(), f.Name(), name)
		}
		if _, ok := Coerce(f.Kind(), f.Default()); !ok {
			return nil, fmt.Errorf("schema %q: default for field %q is not a %s", name, f.Name(), f.Kind())
		}
		s.byName[f.Name()] = len(s.fields)
		s.byKey[f.Key()] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustNew is like New but panics on an invalid field table. It is meant for
// package-level schema variables.
func MustNew(name, baseName string, fields ...Descriptor) *Schema {
	s, err := New(name, baseName, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// ID identifies the schema type within this process.
func (s *Schema) ID() string { return s.id }

func (s *Schema) Name() string { return s.name }

func (s *Schema) BaseName() string { return s.baseName }

// FileName is the storage key of a record: the base name plus extension.
func (s *Schema) FileName(ext string) string {
	if ext == "" {
		return s.baseName
	}
	return s.baseName + "." + ext
}

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []Descriptor {
	out := make([]Descriptor, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s *Schema) Len() int { return len(s.fields) }

// Field looks up a field by its in-memory name.
func (s *Schema) Field(name string) (Descriptor, bool) {
	i, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.fields[i], true
}

// FieldByKey looks up a field by its storage key.
func (s *Schema) FieldByKey(key string) (Descriptor, bool) {
	i, ok := s.byKey[key]
	if !ok {
		return nil, false
	}
	return s.fields[i], true
}

// Defaults returns a fresh map of every field's default keyed by field name.
func (s *Schema) Defaults() map[string]any {
	out := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		out[f.Name()] = f.Default()
	}
	return out
}
