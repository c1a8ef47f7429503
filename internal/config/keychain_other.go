//go:build !darwin

package config

import "errors"

var errNoKeychain = errors.New("keychain not available on this platform")

func keychainExec(service, account string) ([]byte, error) {
	return nil, errNoKeychain
}

func tokenHint() string {
	return ""
}
