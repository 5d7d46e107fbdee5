package crypto

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrUnknownKey = errors.New("unknown encryption key")

// Keyring maps workspace encryption key ids to encryptors. New workspaces are
// assigned the primary key id; existing rows keep whatever id they were
// created with so keys can be rotated by adding a new primary.
type Keyring struct {
	mu      sync.RWMutex
	keys    map[string]*Encryptor
	primary string
}

func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[string]*Encryptor)}
}

// ParseKeyring reads a comma separated list of id=AGE-SECRET-KEY-... pairs.
// When primary is empty the first listed id becomes primary.
func ParseKeyring(list, primary string) (*Keyring, error) {
	kr := NewKeyring()

	first := ""
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, key, ok := strings.Cut(entry, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("malformed key entry %q", entry)
		}
		enc, err := NewEncryptor(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", id, err)
		}
		if err := kr.Add(id, enc); err != nil {
			return nil, err
		}
		if first == "" {
			first = id
		}
	}

	if primary == "" {
		primary = first
	}
	if primary != "" {
		if err := kr.SetPrimary(primary); err != nil {
			return nil, err
		}
	}

	return kr, nil
}

func (k *Keyring) Add(id string, enc *Encryptor) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, exists := k.keys[id]; exists {
		return fmt.Errorf("duplicate key id %q", id)
	}
	k.keys[id] = enc
	return nil
}

func (k *Keyring) SetPrimary(id string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.keys[id]; !ok {
		return fmt.Errorf("primary key %q: %w", id, ErrUnknownKey)
	}
	k.primary = id
	return nil
}

// Primary returns the id assigned to new workspaces, or "" if the ring is empty.
func (k *Keyring) Primary() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.primary
}

func (k *Keyring) Get(id string) (*Encryptor, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	enc, ok := k.keys[id]
	if !ok {
		return nil, fmt.Errorf("key %q: %w", id, ErrUnknownKey)
	}
	return enc, nil
}

func (k *Keyring) IDs() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	ids := make([]string, 0, len(k.keys))
	for id := range k.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (k *Keyring) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys)
}
