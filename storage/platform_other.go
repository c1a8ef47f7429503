//go:build !(js && wasm)

package storage

// ForLocation returns the platform default backend for location. Native
// builds treat location as a directory.
func ForLocation(location string) Backend {
	return NewFileBackend(location)
}
