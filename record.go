// Package prefs keeps a typed set of named preferences in memory, backed by
// durable storage.
//
// A record is described by a *schema.Schema. At most one record per schema
// may be loaded at a time within a process; Close frees the slot. Every save
// rewrites the whole record atomically. Edits made through a transaction are
// flushed once, when the transaction ends, and only if something changed.
//
//	var (
//		Count    = schema.Int("count", 0)
//		Name     = schema.String("name", "")
//		Settings = schema.MustNew("settings", "settings", Count, Name)
//	)
//
//	r, err := prefs.Load(Settings, dir)
//	if err != nil {
//		return err
//	}
//	defer r.Close()
//
//	tx := r.Edit()
//	prefs.Set(tx, Count, 5)
//	prefs.Set(tx, Name, "x")
//	return tx.Commit()
package prefs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kalambet/prefs/codec"
	"github.com/kalambet/prefs/lock"
	"github.com/kalambet/prefs/schema"
	"github.com/kalambet/prefs/storage"
)

var (
	// ErrInstanceAlreadyLoaded is returned by Load while another record for the
	// same schema is open.
	ErrInstanceAlreadyLoaded = lock.ErrAlreadyLoaded
	// ErrUnknownField is returned when a name is not a field of the schema.
	ErrUnknownField = errors.New("prefs: unknown field")
	// ErrKindMismatch is returned when a value does not have its field's kind.
	ErrKindMismatch = errors.New("prefs: value has wrong kind")
	// ErrClosed is returned by saves on a closed record.
	ErrClosed = errors.New("prefs: record is closed")
	// ErrEditing is returned by direct saves, Reload and Close while a
	// transaction is open on the record.
	ErrEditing = errors.New("prefs: transaction in progress")
)

// Record is the live, in-memory copy of one preference set. A Record is not
// safe for concurrent use; callers serialize access.
type Record struct {
	schema   *schema.Schema
	values   codec.Values
	backend  storage.Backend
	codec    codec.Codec
	key      string
	location string
	token    *lock.Token
	logger   *slog.Logger
	slowEdit time.Duration

	editing bool
	closed  bool
	cleanup func() error
}

func newRecord(s *schema.Schema, location string, o *options) *Record {
	return &Record{
		schema:   s,
		values:   codec.Values(s.Defaults()),
		backend:  o.backendFor(location),
		codec:    o.codec,
		key:      s.FileName(o.codec.Extension()),
		location: location,
		logger:   o.logger.With("schema", s.Name()),
		slowEdit: o.slowEdit,
	}
}

// Load claims the schema's instance slot and reads its stored record from
// location. A missing record yields defaults. On any error the slot is
// released again and no record is returned.
func Load(s *schema.Schema, location string, opts ...Option) (*Record, error) {
	o := newOptions(opts)
	tok, err := o.registry.TryAcquire(s.ID())
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", s.Name(), err)
	}

	r := newRecord(s, location, o)
	if err := r.read(); err != nil {
		tok.Release()
		return nil, err
	}
	r.token = tok
	r.logger.Debug("preferences loaded", "location", r.Describe())
	return r, nil
}

// LoadDefault returns a record holding defaults without reading storage or
// claiming the instance slot. Saves still write to location.
func LoadDefault(s *schema.Schema, location string, opts ...Option) *Record {
	return newRecord(s, location, newOptions(opts))
}

// LoadTesting returns a record stored in a fresh temporary directory, with the
// defaults already written. It does not claim the instance slot. Close
// removes the directory.
func LoadTesting(s *schema.Schema, opts ...Option) (*Record, error) {
	dir, err := os.MkdirTemp("", "prefs-"+s.BaseName()+"-*")
	if err != nil {
		return nil, fmt.Errorf("creating test directory: %w", err)
	}
	r := newRecord(s, dir, newOptions(opts))
	r.cleanup = func() error { return os.RemoveAll(dir) }
	if err := r.SaveAll(); err != nil {
		_ = r.cleanup()
		return nil, err
	}
	return r, nil
}

// read replaces the in-memory values with the stored record, or leaves them
// untouched when nothing is stored.
func (r *Record) read() error {
	content, ok, err := r.backend.Read(r.key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	vals, err := r.codec.Decode(content, r.schema)
	if err != nil {
		var derr *codec.DecodeError
		if errors.As(err, &derr) && derr.Location == "" {
			derr.Location = r.Describe()
		}
		return err
	}
	r.values = vals
	return nil
}

// Reload re-reads the stored record, discarding unsaved in-memory values. A
// missing record resets every field to its default.
func (r *Record) Reload() error {
	if r.editing {
		return fmt.Errorf("reloading %s: %w", r.schema.Name(), ErrEditing)
	}
	prev := r.values
	r.values = codec.Values(r.schema.Defaults())
	if err := r.read(); err != nil {
		r.values = prev
		return err
	}
	return nil
}

func (r *Record) Schema() *schema.Schema { return r.schema }

// Location is the location argument the record was loaded with.
func (r *Record) Location() string { return r.location }

// Key is the storage key: the schema base name plus the codec extension.
func (r *Record) Key() string { return r.key }

// Describe names where the record is stored, e.g. a file path or
// "localStorage::prefs_app_settings.toml".
func (r *Record) Describe() string {
	return r.backend.Describe(r.key)
}

// Value returns the current value of the named field.
func (r *Record) Value(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Values returns a copy of every field's current value keyed by field name.
func (r *Record) Values() codec.Values {
	return r.values.Clone()
}

// Encode returns the record as it would be written by SaveAll.
func (r *Record) Encode() (string, error) {
	return r.codec.Encode(r.schema, r.values)
}

// Get returns the current value of f. It panics if f is not a field of the
// record's schema.
func Get[T schema.Scalar](r *Record, f schema.Field[T]) T {
	r.mustOwn(f)
	return r.values[f.Name()].(T)
}

// Save sets f to v and writes the record if the value changed.
func Save[T schema.Scalar](r *Record, f schema.Field[T], v T) error {
	return r.SaveValue(f.Name(), v)
}

// SaveValue is the untyped form of Save. v is converted to the field's kind;
// an unknown field or a value of another kind is rejected before anything is
// modified.
func (r *Record) SaveValue(name string, v any) error {
	if r.editing {
		return fmt.Errorf("saving %s: %w", name, ErrEditing)
	}
	changed, err := r.set(name, v)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return r.SaveAll()
}

// SaveAll encodes every field and replaces the stored record. Inside a
// transaction use Commit instead.
func (r *Record) SaveAll() error {
	if r.editing {
		return fmt.Errorf("saving %s: %w", r.schema.Name(), ErrEditing)
	}
	return r.save()
}

func (r *Record) save() error {
	if r.closed {
		return ErrClosed
	}
	content, err := r.codec.Encode(r.schema, r.values)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", r.schema.Name(), err)
	}
	if err := r.backend.Write(r.key, content); err != nil {
		return err
	}
	r.logger.Debug("preferences saved", "location", r.Describe())
	return nil
}

// Close releases the instance slot so the schema can be loaded again. It is
// safe to call more than once. While a transaction is open Close returns
// ErrEditing and the record stays loaded.
func (r *Record) Close() error {
	if r.closed {
		return nil
	}
	if r.editing {
		return fmt.Errorf("closing %s: %w", r.schema.Name(), ErrEditing)
	}
	r.closed = true
	r.token.Release()
	if r.cleanup != nil {
		if err := r.cleanup(); err != nil {
			return fmt.Errorf("removing test directory: %w", err)
		}
	}
	return nil
}

// set validates and stores v, reporting whether the value changed.
func (r *Record) set(name string, v any) (bool, error) {
	f, ok := r.schema.Field(name)
	if !ok {
		return false, fmt.Errorf("%w %q in schema %s", ErrUnknownField, name, r.schema.Name())
	}
	cv, ok := schema.Coerce(f.Kind(), v)
	if !ok {
		return false, fmt.Errorf("%w: field %q is %s, got %T", ErrKindMismatch, name, f.Kind(), v)
	}
	if r.values[name] == cv {
		return false, nil
	}
	r.values[name] = cv
	return true, nil
}

func (r *Record) mustOwn(f schema.Descriptor) {
	own, ok := r.schema.Field(f.Name())
	if !ok || own.Kind() != f.Kind() {
		panic(fmt.Sprintf("prefs: field %s does not belong to schema %s", f.Name(), r.schema.Name()))
	}
}
