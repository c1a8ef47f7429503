package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/kalambet/prefs"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the record again whenever its file changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Storage.Backend != "file" {
			return fmt.Errorf("watch needs the file backend, not %q", cfg.Storage.Backend)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return withSession(func(rec *prefs.Record) error {
			return watchRecord(ctx, rec, cmd.OutOrStdout())
		})
	},
}

// watchDebounce coalesces the several events one atomic save produces.
const watchDebounce = 50 * time.Millisecond

// watchRecord watches the directory holding the record rather than the file
// itself: atomic saves replace the file, which would end a file watch.
func watchRecord(ctx context.Context, rec *prefs.Record, out io.Writer) error {
	path := rec.Describe()
	dir, base := filepath.Split(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Clean(dir)); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	printValues(out, rec)
	slog.Debug("watching record", "path", path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
				pending = time.After(watchDebounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				pending = time.After(watchDebounce)
				continue
			}
			return fmt.Errorf("watching %s: %w", path, err)
		case <-pending:
			pending = nil
			if err := rec.Reload(); err != nil {
				printWarning("could not reload %s: %v", path, err)
				continue
			}
			fmt.Fprintf(out, "%s changed at %s\n", path, time.Now().Format(time.TimeOnly))
			printValues(out, rec)
		}
	}
}
