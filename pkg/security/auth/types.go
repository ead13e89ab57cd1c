package auth

import "errors"

var (
	// ErrMissingKey is returned when no source carries a key.
	ErrMissingKey = errors.New("missing admin key")

	// ErrInvalidKey is returned for secrets that match no key.
	ErrInvalidKey = errors.New("invalid admin key")

	// ErrKeyDisabled is returned for a known but disabled key.
	ErrKeyDisabled = errors.New("admin key disabled")
)

// Key is a named admin credential.
type Key struct {
	Name    string
	Secret  string
	Enabled bool
}

// KeyStore validates admin secrets.
type KeyStore interface {
	Validate(secret string) (*Key, error)
	List() []*Key
}
