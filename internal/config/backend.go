package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kalambet/prefs"
	"github.com/kalambet/prefs/codec"
	"github.com/kalambet/prefs/schema"
)

// ConfigBackend abstracts where prefsctl keeps its own settings.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}

func newPlatformBackend() ConfigBackend {
	return newRecordBackend(configDir())
}

// recordBackend stores settings in a prefs record, one field per non-secret
// key. Empty strings and zero integers mean "unset" so that defaults apply.
type recordBackend struct {
	dir    string
	schema *schema.Schema
	values codec.Values
}

func newRecordBackend(dir string) *recordBackend {
	b := &recordBackend{dir: dir, schema: settingsSchema()}
	b.load()
	return b
}

// settingsSchema builds a fresh schema type on every call; each backend holds
// its record only briefly.
func settingsSchema() *schema.Schema {
	var fields []schema.Descriptor
	for _, s := range specs {
		if s.secret {
			continue
		}
		key := strings.ReplaceAll(s.key, ".", "_")
		switch s.typ {
		case kInt:
			fields = append(fields, schema.Int(s.key, 0).StoredAs(key))
		default:
			fields = append(fields, schema.String(s.key, "").StoredAs(key))
		}
	}
	return schema.MustNew("prefsctl-config", "config", fields...)
}

func (b *recordBackend) load() {
	r, err := prefs.Load(b.schema, b.dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] could not read config file in %s: %v. Using default values.\n", b.dir, err)
		b.values = codec.Values(b.schema.Defaults())
		return
	}
	defer r.Close()
	b.values = r.Values()
}

func (b *recordBackend) GetString(key string) (string, bool, error) {
	v, ok := b.values[key]
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", true, fmt.Errorf("invalid type for %s", key)
	}
	return s, s != "", nil
}

func (b *recordBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.values[key]
	if !ok {
		return 0, false, nil
	}
	i, ok := v.(int64)
	if !ok {
		return 0, true, fmt.Errorf("invalid type for %s", key)
	}
	return int(i), i != 0, nil
}

func (b *recordBackend) SetString(key, val string) error {
	return b.save(key, val)
}

func (b *recordBackend) SetInt(key string, val int) error {
	return b.save(key, int64(val))
}

func (b *recordBackend) Delete(key string) error {
	f, ok := b.schema.Field(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	return b.save(key, f.Default())
}

func (b *recordBackend) save(key string, v any) error {
	r, err := prefs.Load(b.schema, b.dir)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer r.Close()
	if err := r.SaveValue(key, v); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	b.values = r.Values()
	return nil
}

// Path returns the settings file location.
func (b *recordBackend) Path() string {
	return prefs.LoadDefault(b.schema, b.dir).Describe()
}
