//go:build js && wasm

package storage

// ForLocation returns the platform default backend for location. Browser
// builds treat location as an application namespace in localStorage.
func ForLocation(location string) Backend {
	return NewKVBackend(LocalStorage{}, location)
}
