package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "storage.dir", typ: kString, env: "PREFSCTL_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Dir },
	},
	{
		key: "storage.namespace", typ: kString, env: "PREFSCTL_NAMESPACE",
		apply:   func(cfg *Config, v any) { cfg.Storage.Namespace = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Namespace },
	},
	{
		key: "storage.backend", typ: kString, env: "PREFSCTL_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Backend },
	},
	{
		key: "storage.format", typ: kString, env: "PREFSCTL_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Storage.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Format },
	},
	{
		key: "storage.strict", typ: kBool, env: "PREFSCTL_STRICT",
		apply:   func(cfg *Config, v any) { cfg.Storage.Strict = v.(bool) },
		extract: func(cfg Config) any { return cfg.Storage.Strict },
	},
	{
		key: "schema.path", typ: kString, env: "PREFSCTL_SCHEMA",
		apply:   func(cfg *Config, v any) { cfg.Schema.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Schema.Path },
	},
	{
		key: "server.addr", typ: kString, env: "PREFSCTL_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Server.Addr = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Addr },
	},
	{
		key: "server.read_header_timeout", typ: kInt, env: "PREFSCTL_READ_HEADER_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Server.ReadHeaderTimeout = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.ReadHeaderTimeout },
	},
	{
		key: "server.token", typ: kString, env: "PREFSCTL_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "log.level", typ: kString, env: "PREFSCTL_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
