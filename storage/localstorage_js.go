//go:build js && wasm

package storage

import (
	"fmt"
	"syscall/js"
)

// LocalStorage is a KVStore over the browser's window.localStorage.
type LocalStorage struct{}

func (LocalStorage) storage() (js.Value, error) {
	window := js.Global().Get("window")
	if window.IsUndefined() || window.IsNull() {
		return js.Value{}, fmt.Errorf("window not available: %w", ErrUnavailable)
	}
	ls := window.Get("localStorage")
	if ls.IsUndefined() || ls.IsNull() {
		return js.Value{}, fmt.Errorf("localStorage not available: %w", ErrUnavailable)
	}
	return ls, nil
}

func (s LocalStorage) Get(key string) (value string, ok bool, err error) {
	ls, err := s.storage()
	if err != nil {
		return "", false, err
	}
	defer func() {
		if r := recover(); r != nil {
			value, ok, err = "", false, fmt.Errorf("reading localStorage: %v", r)
		}
	}()
	v := ls.Call("getItem", key)
	if v.IsNull() || v.IsUndefined() {
		return "", false, nil
	}
	return v.String(), true, nil
}

// Set panics inside the JS runtime on quota errors; those are recovered and
// returned.
func (s LocalStorage) Set(key, value string) (err error) {
	ls, err := s.storage()
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("writing localStorage: %v", r)
		}
	}()
	ls.Call("setItem", key, value)
	return nil
}

func (LocalStorage) Name() string { return "localStorage" }
