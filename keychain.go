// Copyright (c) 2025-2026 complex (complex@ft.hn)
// See LICENSE for licensing information

// Package keychain turns BIP-39 mnemonic phrases into BLS12-381 key material
// and keeps that material in a secure store, indexed by a 32-bit
// fingerprint with optional unique labels.
//
// The mnemonic codec (EntropyToMnemonic, MnemonicToEntropy,
// MnemonicFromShortWords, MnemonicToSeed) is pure and safe for concurrent
// use. The Keychain type layers fingerprint and label invariants over a
// Store, which is either an in-memory map or a namespace of an encrypted
// keyring file.
//
// Keys can be stored with their secrets, from a mnemonic, or public-only,
// from a bech32m encoded public key ("bls1238...").
package keychain

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Keychain manages the keys of one store namespace. Every mutation runs its
// check-then-write sequence under an exclusive lock; readers share a lock
// and observe either the state before or after any mutation. When the store
// can be locked (see LockStore on MemoryStore and keyring namespaces) the
// mutation also holds that lock, which extends the exclusion to every
// Keychain and process sharing the store.
type Keychain struct {
	mu      sync.RWMutex
	store   Store
	metrics *Metrics
	closer  io.Closer
}

// Option configures a Keychain.
type Option func(*Keychain)

// WithMetrics records operations on m.
func WithMetrics(m *Metrics) Option {
	return func(k *Keychain) {
		k.metrics = m
	}
}

// New returns a Keychain over store.
func New(store Store, opts ...Option) *Keychain {
	k := &Keychain{store: store}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Open opens the keyring file named by cfg and returns a Keychain bound to
// the configured service and user. The keyring is closed with the Keychain.
func Open(cfg *Config, passphrase string, opts ...Option) (*Keychain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ring, err := OpenFileKeyring(cfg.KeyringPath,
		WithPassphrase(passphrase),
		WithPassphraseHint(cfg.PassphraseHint),
		WithKDFParams(cfg.KDF),
	)
	if err != nil {
		return nil, fmt.Errorf("could not open keyring: %w", err)
	}

	k := New(ring.Namespace(cfg.Service, cfg.User), opts...)
	k.closer = ring
	return k, nil
}

// Close releases the keyring opened by Open. It is a no-op for keychains
// created with New.
func (k *Keychain) Close() error {
	if k.closer == nil {
		return nil
	}
	return k.closer.Close()
}

// AddKey stores a key given either a mnemonic (full or short words) or a
// bech32m public key string. A non-empty label is validated and must not be
// in use. When private is false, or for a public key string, only the public
// key is persisted.
//
// The returned record carries the derived secrets for a mnemonic input, even
// when they weren't persisted; PrivateKey on it returns ErrSecretsMissing for
// a public key import.
func (k *Keychain) AddKey(mnemonicOrPublicKey, label string, private bool) (kd *KeyData, err error) {
	defer func() { k.metrics.observe("add_key", err) }()

	// Derivation is pure and runs before taking the lock.
	var (
		pk      *PublicKey
		secrets *KeyDataSecrets
	)
	if IsPublicKeyString(mnemonicOrPublicKey) {
		pk, err = DecodePublicKey(strings.TrimSpace(mnemonicOrPublicKey))
		if err != nil {
			return nil, err
		}
	} else {
		secrets, err = SecretsFromMnemonic(mnemonicOrPublicKey)
		if err != nil {
			return nil, err
		}
		pk = secrets.PrivateKey.PublicKey()
	}
	fingerprint := pk.Fingerprint()

	k.mu.Lock()
	defer k.mu.Unlock()
	unlock, err := k.lockStore()
	if err != nil {
		return nil, err
	}
	defer unlock()

	_, exists, err := k.store.LoadSecret(fingerprint)
	if err != nil {
		return nil, fmt.Errorf("could not load key %d: %w", fingerprint, err)
	}
	if exists {
		existing, _, err := k.store.GetLabel(fingerprint)
		if err != nil {
			return nil, fmt.Errorf("could not load label of key %d: %w", fingerprint, err)
		}
		return nil, &FingerprintExistsError{Fingerprint: fingerprint, Label: existing}
	}

	if label != "" {
		if err := k.checkLabelLocked(fingerprint, label); err != nil {
			return nil, err
		}
	}

	var entropy []byte
	if secrets != nil && private {
		entropy = secrets.Entropy
	}
	if err := k.store.StoreSecret(fingerprint, encodeSecret(pk, entropy)); err != nil {
		return nil, fmt.Errorf("could not store key %d: %w", fingerprint, err)
	}
	if label != "" {
		if err := k.store.SetLabel(fingerprint, label); err != nil {
			if rbErr := k.store.DeleteSecret(fingerprint); rbErr != nil {
				log.Errorf("Could not roll back key %d after label failure: %v", fingerprint, rbErr)
			}
			return nil, fmt.Errorf("could not store label of key %d: %w", fingerprint, err)
		}
	}

	log.Infof("Added key %d (secrets stored: %v)", fingerprint, entropy != nil)
	k.updateKeyCountsLocked()

	return &KeyData{
		Fingerprint: fingerprint,
		PublicKey:   pk,
		Label:       label,
		Secrets:     secrets,
	}, nil
}

// GetKey returns the key with the given fingerprint. Secrets are included
// only when includeSecrets is set and the key was stored with them.
func (k *Keychain) GetKey(fingerprint uint32, includeSecrets bool) (kd *KeyData, err error) {
	defer func() { k.metrics.observe("get_key", err) }()

	k.mu.RLock()
	defer k.mu.RUnlock()

	kd, found, err := k.loadKeyLocked(fingerprint, includeSecrets)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &FingerprintNotFoundError{Fingerprint: fingerprint}
	}
	return kd, nil
}

// GetKeys returns all keys in the order they were added.
func (k *Keychain) GetKeys(includeSecrets bool) (keys []*KeyData, err error) {
	defer func() { k.metrics.observe("get_keys", err) }()

	k.mu.RLock()
	defer k.mu.RUnlock()

	return k.loadAllLocked(includeSecrets)
}

// DeleteKeyByFingerprint removes a key together with its label.
func (k *Keychain) DeleteKeyByFingerprint(fingerprint uint32) (err error) {
	defer func() { k.metrics.observe("delete_key", err) }()

	k.mu.Lock()
	defer k.mu.Unlock()
	unlock, err := k.lockStore()
	if err != nil {
		return err
	}
	defer unlock()

	if err := k.requireKeyLocked(fingerprint); err != nil {
		return err
	}

	if d, ok := k.store.(recordDeleter); ok {
		if err := d.DeleteRecord(fingerprint); err != nil {
			return fmt.Errorf("could not delete key %d: %w", fingerprint, err)
		}
	} else {
		// Label first: a crash in between leaves an unlabeled key, never a
		// label without a key.
		if err := k.store.DeleteLabel(fingerprint); err != nil {
			return fmt.Errorf("could not delete label of key %d: %w", fingerprint, err)
		}
		if err := k.store.DeleteSecret(fingerprint); err != nil {
			return fmt.Errorf("could not delete key %d: %w", fingerprint, err)
		}
	}

	log.Infof("Deleted key %d", fingerprint)
	k.updateKeyCountsLocked()
	return nil
}

// DeleteAllKeys removes every key and label of the namespace.
func (k *Keychain) DeleteAllKeys() (err error) {
	defer func() { k.metrics.observe("delete_all_keys", err) }()

	k.mu.Lock()
	defer k.mu.Unlock()
	unlock, err := k.lockStore()
	if err != nil {
		return err
	}
	defer unlock()

	if err := k.store.Clear(); err != nil {
		return fmt.Errorf("could not delete keys: %w", err)
	}

	log.Infof("Deleted all keys")
	k.updateKeyCountsLocked()
	return nil
}

// SetLabel assigns label to the key with the given fingerprint, replacing
// any previous label. Re-setting a key's own label is allowed.
func (k *Keychain) SetLabel(fingerprint uint32, label string) (err error) {
	defer func() { k.metrics.observe("set_label", err) }()

	k.mu.Lock()
	defer k.mu.Unlock()
	unlock, err := k.lockStore()
	if err != nil {
		return err
	}
	defer unlock()

	if err := k.requireKeyLocked(fingerprint); err != nil {
		return err
	}
	if err := k.checkLabelLocked(fingerprint, label); err != nil {
		return err
	}
	if err := k.store.SetLabel(fingerprint, label); err != nil {
		return fmt.Errorf("could not store label of key %d: %w", fingerprint, err)
	}

	log.Debugf("Set label of key %d", fingerprint)
	return nil
}

// DeleteLabel removes the label of a key. Deleting a missing label is not an
// error, but the key must exist.
func (k *Keychain) DeleteLabel(fingerprint uint32) (err error) {
	defer func() { k.metrics.observe("delete_label", err) }()

	k.mu.Lock()
	defer k.mu.Unlock()
	unlock, err := k.lockStore()
	if err != nil {
		return err
	}
	defer unlock()

	if err := k.requireKeyLocked(fingerprint); err != nil {
		return err
	}
	if err := k.store.DeleteLabel(fingerprint); err != nil {
		return fmt.Errorf("could not delete label of key %d: %w", fingerprint, err)
	}

	log.Debugf("Deleted label of key %d", fingerprint)
	return nil
}

// GetFirstPrivateKey returns the private key of the oldest key that has
// secrets. The boolean is false when there is none.
func (k *Keychain) GetFirstPrivateKey() (*PrivateKey, bool, error) {
	keys, err := k.GetAllPrivateKeys()
	if err != nil || len(keys) == 0 {
		return nil, false, err
	}
	return keys[0], true, nil
}

// GetAllPrivateKeys returns the private keys of every key that has secrets,
// in the order the keys were added.
func (k *Keychain) GetAllPrivateKeys() ([]*PrivateKey, error) {
	keys, err := k.GetKeys(true)
	if err != nil {
		return nil, err
	}
	var out []*PrivateKey
	for _, kd := range keys {
		if kd.Secrets != nil {
			out = append(out, kd.Secrets.PrivateKey)
		}
	}
	return out, nil
}

// GetPrivateKeyByFingerprint returns the private key of one key, or
// ErrSecretsMissing when it was stored public-only.
func (k *Keychain) GetPrivateKeyByFingerprint(fingerprint uint32) (*PrivateKey, error) {
	kd, err := k.GetKey(fingerprint, true)
	if err != nil {
		return nil, err
	}
	return kd.PrivateKey()
}

// GetFirstPublicKey returns the public key of the oldest key, public-only
// keys included.
func (k *Keychain) GetFirstPublicKey() (*PublicKey, bool, error) {
	keys, err := k.GetAllPublicKeys()
	if err != nil || len(keys) == 0 {
		return nil, false, err
	}
	return keys[0], true, nil
}

// GetAllPublicKeys returns the public keys of all keys, public-only keys
// included, in the order they were added.
func (k *Keychain) GetAllPublicKeys() ([]*PublicKey, error) {
	keys, err := k.GetKeys(false)
	if err != nil {
		return nil, err
	}
	out := make([]*PublicKey, 0, len(keys))
	for _, kd := range keys {
		out = append(out, kd.PublicKey)
	}
	return out, nil
}

// lockStore takes the store's own lock, if it has one.
func (k *Keychain) lockStore() (func(), error) {
	l, ok := k.store.(storeLocker)
	if !ok {
		return func() {}, nil
	}
	unlock, err := l.LockStore()
	if err != nil {
		return nil, fmt.Errorf("could not lock store: %w", err)
	}
	return unlock, nil
}

func (k *Keychain) requireKeyLocked(fingerprint uint32) error {
	_, found, err := k.store.LoadSecret(fingerprint)
	if err != nil {
		return fmt.Errorf("could not load key %d: %w", fingerprint, err)
	}
	if !found {
		return &FingerprintNotFoundError{Fingerprint: fingerprint}
	}
	return nil
}

// checkLabelLocked validates label and makes sure no key other than
// fingerprint holds it.
func (k *Keychain) checkLabelLocked(fingerprint uint32, label string) error {
	if err := ValidateLabel(label); err != nil {
		return err
	}
	fps, err := k.store.ListFingerprints()
	if err != nil {
		return fmt.Errorf("could not list keys: %w", err)
	}
	for _, fp := range fps {
		if fp == fingerprint {
			continue
		}
		existing, ok, err := k.store.GetLabel(fp)
		if err != nil {
			return fmt.Errorf("could not load label of key %d: %w", fp, err)
		}
		if ok && existing == label {
			return &LabelExistsError{Fingerprint: fp, Label: label}
		}
	}
	return nil
}

func (k *Keychain) loadKeyLocked(fingerprint uint32, includeSecrets bool) (*KeyData, bool, error) {
	payload, found, err := k.store.LoadSecret(fingerprint)
	if err != nil {
		return nil, false, fmt.Errorf("could not load key %d: %w", fingerprint, err)
	}
	if !found {
		return nil, false, nil
	}
	label, _, err := k.store.GetLabel(fingerprint)
	if err != nil {
		return nil, false, fmt.Errorf("could not load label of key %d: %w", fingerprint, err)
	}

	pk, entropy, err := decodeSecret(payload)
	if err != nil {
		return nil, false, fmt.Errorf("key %d: %w", fingerprint, err)
	}

	var secrets *KeyDataSecrets
	if includeSecrets && entropy != nil {
		secrets, err = SecretsFromEntropy(entropy)
		if err != nil {
			return nil, false, fmt.Errorf("key %d: %w", fingerprint, err)
		}
	}

	kd, err := NewKeyData(fingerprint, pk, label, secrets)
	if err != nil {
		return nil, false, fmt.Errorf("key %d: %w: %v", fingerprint, ErrCorruptSecret, err)
	}
	return kd, true, nil
}

func (k *Keychain) loadAllLocked(includeSecrets bool) ([]*KeyData, error) {
	fps, err := k.store.ListFingerprints()
	if err != nil {
		return nil, fmt.Errorf("could not list keys: %w", err)
	}
	keys := make([]*KeyData, 0, len(fps))
	for _, fp := range fps {
		kd, found, err := k.loadKeyLocked(fp, includeSecrets)
		if err != nil {
			return nil, err
		}
		if found {
			keys = append(keys, kd)
		}
	}
	return keys, nil
}

// updateKeyCountsLocked refreshes the key gauges after a mutation.
func (k *Keychain) updateKeyCountsLocked() {
	if k.metrics == nil {
		return
	}
	fps, err := k.store.ListFingerprints()
	if err != nil {
		log.Warnf("Could not count keys: %v", err)
		return
	}
	var private, publicOnly int
	for _, fp := range fps {
		payload, found, err := k.store.LoadSecret(fp)
		if err != nil || !found {
			continue
		}
		if len(payload) > PublicKeySize {
			private++
		} else {
			publicOnly++
		}
	}
	k.metrics.setKeyCounts(private, publicOnly)
}
