package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileBackend stores each key as a file under a base directory.
type FileBackend struct {
	dir string
}

func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

// Dir is the base directory keys are resolved against.
func (b *FileBackend) Dir() string { return b.dir }

// Path returns the file path for key.
func (b *FileBackend) Path(key string) string {
	return filepath.Join(b.dir, key)
}

func (b *FileBackend) Read(key string) (string, bool, error) {
	path := b.Path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, readError(path, err)
	}
	return string(data), true, nil
}

// Write stages content in a temp file in the target directory and renames it
// over the target, so the path holds either the old or the new content.
func (b *FileBackend) Write(key, content string) error {
	path := b.Path(key)
	if err := writeAtomic(path, []byte(content)); err != nil {
		return writeError(path, err)
	}
	return nil
}

func (b *FileBackend) Describe(key string) string {
	return b.Path(key)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("setting file mode: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}
