package auth

import (
	"crypto/subtle"
	"sort"
	"sync"
)

// KeyValidator validates secrets against a fixed set of keys.
type KeyValidator struct {
	mu   sync.RWMutex
	keys map[string]*Key
}

// NewKeyValidator creates a validator. Keys are indexed by name; a later key
// with the same name replaces an earlier one.
func NewKeyValidator(keys []*Key) *KeyValidator {
	keyMap := make(map[string]*Key, len(keys))
	for _, key := range keys {
		keyMap[key.Name] = key
	}
	return &KeyValidator{keys: keyMap}
}

// Validate returns the key whose secret matches. Every configured secret is
// compared so the time taken does not depend on which key matched.
func (v *KeyValidator) Validate(secret string) (*Key, error) {
	if secret == "" {
		return nil, ErrMissingKey
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	var match *Key
	for _, key := range v.keys {
		if subtle.ConstantTimeCompare([]byte(key.Secret), []byte(secret)) == 1 {
			match = key
		}
	}

	if match == nil {
		return nil, ErrInvalidKey
	}
	if !match.Enabled {
		return nil, ErrKeyDisabled
	}
	return match, nil
}

// List returns all keys sorted by name.
func (v *KeyValidator) List() []*Key {
	v.mu.RLock()
	defer v.mu.RUnlock()

	keys := make([]*Key, 0, len(v.keys))
	for _, key := range v.keys {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Name < keys[j].Name })
	return keys
}

// Add adds or replaces a key.
func (v *KeyValidator) Add(key *Key) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[key.Name] = key
}

// Remove deletes the named key.
func (v *KeyValidator) Remove(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.keys, name)
}
