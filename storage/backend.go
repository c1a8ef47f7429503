package storage

import (
	"errors"
	"fmt"
)

// Backend abstracts where a serialized record lives. The native build uses
// files under a directory; browser builds use localStorage; any KVStore can
// be plugged in through KVBackend.
type Backend interface {
	// Read returns the content stored under key. A missing key is not an
	// error: ok is false and err is nil.
	Read(key string) (content string, ok bool, err error)
	// Write replaces the content under key. Readers never observe a partial
	// write.
	Write(key, content string) error
	// Describe returns a human-readable location for key, for diagnostics.
	Describe(key string) string
}

// ErrUnavailable reports that the host environment lacks the store a backend
// needs (for example, no window.localStorage).
var ErrUnavailable = errors.New("storage unavailable")

// Error wraps every failure surfaced by a Backend.
type Error struct {
	Op       string // "read" or "write"
	Location string
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Location, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func readError(location string, err error) error {
	return &Error{Op: "read", Location: location, Err: err}
}

func writeError(location string, err error) error {
	return &Error{Op: "write", Location: location, Err: err}
}
