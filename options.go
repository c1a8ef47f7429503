package prefs

import (
	"log/slog"
	"time"

	"github.com/kalambet/prefs/codec"
	"github.com/kalambet/prefs/lock"
	"github.com/kalambet/prefs/storage"
)

// Option configures Load, LoadDefault and LoadTesting.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	backend     storage.Backend
	store       storage.KVStore
	codec       codec.Codec
	strict      bool
	slowEdit    time.Duration
	slowEditSet bool
	registry    *lock.Registry
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.codec == nil {
		o.codec = codec.TOML()
	}
	if o.strict {
		o.codec = codec.Strict(o.codec)
	}
	if !o.slowEditSet {
		o.slowEdit = defaultSlowEditThreshold
	}
	if o.registry == nil {
		o.registry = lock.Default()
	}
	return o
}

// backendFor resolves where a record at location lives. An explicit backend
// wins, then a KV store namespaced by location, then the platform default.
func (o *options) backendFor(location string) storage.Backend {
	switch {
	case o.backend != nil:
		return o.backend
	case o.store != nil:
		return storage.NewKVBackend(o.store, location)
	default:
		return storage.ForLocation(location)
	}
}

// WithLogger sets the logger for load, save and transaction diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBackend stores the record in b. The location argument is then only used
// for log output.
func WithBackend(b storage.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithStore stores the record in kv, namespaced by the location argument.
func WithStore(kv storage.KVStore) Option {
	return func(o *options) { o.store = kv }
}

// WithCodec selects the on-disk format. The default is TOML.
func WithCodec(c codec.Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithStrictTypes makes a stored value of the wrong kind a load error instead
// of falling back to the field default.
func WithStrictTypes() Option {
	return func(o *options) { o.strict = true }
}

// WithSlowEditThreshold logs a warning when a transaction stays open longer
// than d. Zero disables the check.
func WithSlowEditThreshold(d time.Duration) Option {
	return func(o *options) {
		o.slowEdit = d
		o.slowEditSet = true
	}
}

// WithRegistry uses r instead of the process-wide lock registry.
func WithRegistry(r *lock.Registry) Option {
	return func(o *options) { o.registry = r }
}
