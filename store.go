// Copyright (c) 2025-2026 complex (complex@ft.hn)
// See LICENSE for licensing information

package keychain

import (
	"fmt"
	"sync"
)

// Store is a namespaced secret store: a map from fingerprint to an opaque
// secret payload plus a parallel map from fingerprint to label. It performs
// no validation of its own; the Keychain enforces all invariants.
//
// Implementations must be safe for concurrent use and must enumerate
// fingerprints in insertion order.
type Store interface {
	StoreSecret(fingerprint uint32, payload []byte) error
	LoadSecret(fingerprint uint32) ([]byte, bool, error)
	DeleteSecret(fingerprint uint32) error
	ListFingerprints() ([]uint32, error)

	SetLabel(fingerprint uint32, label string) error
	GetLabel(fingerprint uint32) (string, bool, error)
	DeleteLabel(fingerprint uint32) error

	// Clear removes every secret and label in the namespace.
	Clear() error
}

// recordDeleter is implemented by stores that can drop a secret and its
// label in a single write.
type recordDeleter interface {
	DeleteRecord(fingerprint uint32) error
}

// storeLocker is implemented by stores that several Keychains may share.
// LockStore holds the namespace exclusively until unlock is called, so a
// check-then-write over several store calls can't interleave with another
// Keychain's.
type storeLocker interface {
	LockStore() (unlock func(), err error)
}

// encodeSecret builds the stored payload for a key: the compressed public
// key followed by the entropy. A public-only key is stored as the public key
// alone.
func encodeSecret(pk *PublicKey, entropy []byte) []byte {
	payload := make([]byte, 0, PublicKeySize+len(entropy))
	payload = append(payload, pk.Bytes()...)
	return append(payload, entropy...)
}

// decodeSecret is the inverse of encodeSecret. entropy is nil for
// public-only payloads.
func decodeSecret(payload []byte) (*PublicKey, []byte, error) {
	if len(payload) < PublicKeySize {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrCorruptSecret, len(payload))
	}
	pk, err := PublicKeyFromBytes(payload[:PublicKeySize])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorruptSecret, err)
	}
	entropy := payload[PublicKeySize:]
	if len(entropy) == 0 {
		return pk, nil, nil
	}
	if !validEntropyLength(len(entropy)) {
		return nil, nil, fmt.Errorf("%w: entropy of %d bytes", ErrCorruptSecret, len(entropy))
	}
	out := make([]byte, len(entropy))
	copy(out, entropy)
	return pk, out, nil
}

// MemoryStore is an in-process Store. It's used in tests and for keychains
// that must not touch disk.
type MemoryStore struct {
	tx sync.Mutex

	mu      sync.RWMutex
	order   []uint32
	secrets map[uint32][]byte
	labels  map[uint32]string
}

var (
	_ Store       = (*MemoryStore)(nil)
	_ storeLocker = (*MemoryStore)(nil)
)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		secrets: make(map[uint32][]byte),
		labels:  make(map[uint32]string),
	}
}

func (m *MemoryStore) StoreSecret(fingerprint uint32, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.secrets[fingerprint]; !ok {
		m.order = append(m.order, fingerprint)
	}
	m.secrets[fingerprint] = append([]byte(nil), payload...)
	return nil
}

func (m *MemoryStore) LoadSecret(fingerprint uint32) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	payload, ok := m.secrets[fingerprint]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), payload...), true, nil
}

func (m *MemoryStore) DeleteSecret(fingerprint uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteSecretLocked(fingerprint)
	return nil
}

func (m *MemoryStore) deleteSecretLocked(fingerprint uint32) {
	if _, ok := m.secrets[fingerprint]; !ok {
		return
	}
	delete(m.secrets, fingerprint)
	m.order = removeFingerprint(m.order, fingerprint)
}

func (m *MemoryStore) ListFingerprints() ([]uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]uint32(nil), m.order...), nil
}

func (m *MemoryStore) SetLabel(fingerprint uint32, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.labels[fingerprint] = label
	return nil
}

func (m *MemoryStore) GetLabel(fingerprint uint32) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	label, ok := m.labels[fingerprint]
	return label, ok, nil
}

func (m *MemoryStore) DeleteLabel(fingerprint uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.labels, fingerprint)
	return nil
}

// DeleteRecord drops the secret and label of fingerprint together.
func (m *MemoryStore) DeleteRecord(fingerprint uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteSecretLocked(fingerprint)
	delete(m.labels, fingerprint)
	return nil
}

// LockStore serializes Keychains sharing this store.
func (m *MemoryStore) LockStore() (func(), error) {
	m.tx.Lock()
	return m.tx.Unlock, nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.order = nil
	m.secrets = make(map[uint32][]byte)
	m.labels = make(map[uint32]string)
	return nil
}

func removeFingerprint(order []uint32, fingerprint uint32) []uint32 {
	out := order[:0]
	for _, fp := range order {
		if fp != fingerprint {
			out = append(out, fp)
		}
	}
	return out
}
