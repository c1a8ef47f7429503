package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/kalambet/prefs"
	"github.com/kalambet/prefs/codec"
	"github.com/kalambet/prefs/internal/config"
	"github.com/kalambet/prefs/schema"
	"github.com/kalambet/prefs/storage"
	"github.com/kalambet/prefs/storage/badgerkv"
	"github.com/kalambet/prefs/storage/sqlitekv"
)

// session is a loaded record together with the store it lives in.
type session struct {
	rec     *prefs.Record
	closers []func() error
}

func (s *session) Close() error {
	errs := []error{s.rec.Close()}
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

func loadSchema(c config.Config) (*schema.Schema, error) {
	if c.Schema.Path == "" {
		return nil, errors.New("no schema descriptor: pass --schema or set PREFSCTL_SCHEMA")
	}
	return schema.LoadDescriptor(c.Schema.Path)
}

// openSession loads the configured record. The caller must Close it.
func openSession(c config.Config) (*session, error) {
	sch, err := loadSchema(c)
	if err != nil {
		return nil, err
	}
	cdc, err := codec.ByName(c.Storage.Format)
	if err != nil {
		return nil, err
	}

	opts := []prefs.Option{prefs.WithLogger(slog.Default()), prefs.WithCodec(cdc)}
	if c.Storage.Strict {
		opts = append(opts, prefs.WithStrictTypes())
	}

	s := &session{}
	location := c.Storage.Dir
	switch c.Storage.Backend {
	case "file":
	case "sqlite":
		st, err := sqlitekv.Open(c.Storage.Dir)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		s.closers = append(s.closers, st.Close)
		opts = append(opts, prefs.WithStore(st))
		location = c.Storage.Namespace
	case "badger":
		bcfg := badgerkv.DefaultConfig(filepath.Join(c.Storage.Dir, "badger"))
		bcfg.Logger = slog.Default().With("component", "badger")
		st, err := badgerkv.Open(bcfg)
		if err != nil {
			return nil, fmt.Errorf("opening badger store: %w", err)
		}
		s.closers = append(s.closers, st.Close)
		opts = append(opts, prefs.WithStore(st))
		location = c.Storage.Namespace
	case "memory":
		opts = append(opts, prefs.WithStore(storage.NewMemoryStore()))
		location = c.Storage.Namespace
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Storage.Backend)
	}

	rec, err := prefs.Load(sch, location, opts...)
	if err != nil {
		for _, closeFn := range s.closers {
			closeFn()
		}
		return nil, err
	}
	s.rec = rec
	return s, nil
}

// withSession opens the configured record, runs fn and closes the record.
func withSession(fn func(rec *prefs.Record) error) error {
	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	return errors.Join(fn(s.rec), s.Close())
}
