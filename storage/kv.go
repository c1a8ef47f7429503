package storage

import (
	"strings"
)

// KVStore is a flat string key/value store whose Set is atomic per key.
type KVStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	// Name labels the store in Describe output, e.g. "localStorage".
	Name() string
}

// KVBackend stores records in a KVStore under a namespace prefix so that
// several applications can share one store.
type KVBackend struct {
	store  KVStore
	prefix string
}

// NewKVBackend returns a backend whose keys are prefixed with
// "prefs_<namespace>_", with "/" and "." in the namespace replaced by "_".
func NewKVBackend(store KVStore, namespace string) *KVBackend {
	return &KVBackend{store: store, prefix: KeyPrefix(namespace)}
}

// KeyPrefix returns the prefix KVBackend applies for namespace.
func KeyPrefix(namespace string) string {
	clean := strings.NewReplacer("/", "_", ".", "_").Replace(namespace)
	return "prefs_" + clean + "_"
}

// FullKey returns the store key used for key.
func (b *KVBackend) FullKey(key string) string {
	return b.prefix + key
}

func (b *KVBackend) Read(key string) (string, bool, error) {
	v, ok, err := b.store.Get(b.FullKey(key))
	if err != nil {
		return "", false, readError(b.Describe(key), err)
	}
	return v, ok, nil
}

func (b *KVBackend) Write(key, content string) error {
	if err := b.store.Set(b.FullKey(key), content); err != nil {
		return writeError(b.Describe(key), err)
	}
	return nil
}

func (b *KVBackend) Describe(key string) string {
	return b.store.Name() + "::" + b.FullKey(key)
}
