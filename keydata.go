// Copyright (c) 2025-2026 complex (complex@ft.hn)
// See LICENSE for licensing information

package keychain

import (
	"bytes"
	"fmt"
	"strings"
)

// KeyDataSecrets holds the secret material of a key. The three fields are
// redundant encodings of the same secret and are kept consistent by
// NewKeyDataSecrets.
type KeyDataSecrets struct {
	Mnemonic   []string
	Entropy    []byte
	PrivateKey *PrivateKey
}

// NewKeyDataSecrets validates and assembles secret material. The mnemonic
// must decode to entropy and the mnemonic's seed must derive privateKey,
// otherwise a *KeyDataMismatchError naming the offending field is returned.
func NewKeyDataSecrets(mnemonic []string, entropy []byte, privateKey *PrivateKey) (*KeyDataSecrets, error) {
	decoded, err := MnemonicToEntropy(MnemonicString(mnemonic))
	if err != nil {
		return nil, &KeyDataMismatchError{Field: "mnemonic"}
	}
	if !bytes.Equal(decoded, entropy) {
		return nil, &KeyDataMismatchError{Field: "entropy"}
	}

	derived, err := PrivateKeyFromSeed(MnemonicToSeed(MnemonicString(mnemonic), ""))
	if err != nil {
		return nil, fmt.Errorf("could not derive private key: %w", err)
	}
	if !derived.Equal(privateKey) {
		return nil, &KeyDataMismatchError{Field: "private_key"}
	}

	words := make([]string, len(mnemonic))
	copy(words, mnemonic)
	ent := make([]byte, len(entropy))
	copy(ent, entropy)

	return &KeyDataSecrets{
		Mnemonic:   words,
		Entropy:    ent,
		PrivateKey: privateKey,
	}, nil
}

// SecretsFromMnemonic builds secrets from a mnemonic phrase. Short-word
// mnemonics are expanded.
func SecretsFromMnemonic(mnemonic string) (*KeyDataSecrets, error) {
	entropy, err := MnemonicToEntropy(mnemonic)
	if err != nil {
		return nil, err
	}
	return SecretsFromEntropy(entropy)
}

// SecretsFromEntropy builds secrets from raw entropy.
func SecretsFromEntropy(entropy []byte) (*KeyDataSecrets, error) {
	words, err := EntropyToMnemonic(entropy)
	if err != nil {
		return nil, err
	}
	sk, err := PrivateKeyFromSeed(MnemonicToSeed(MnemonicString(words), ""))
	if err != nil {
		return nil, err
	}
	return NewKeyDataSecrets(words, entropy, sk)
}

// GenerateSecrets builds secrets from a fresh 24 word mnemonic.
func GenerateSecrets() (*KeyDataSecrets, error) {
	return GenerateSecretsBits(DefaultEntropyBits)
}

// GenerateSecretsBits builds secrets from fresh entropy of the given size.
func GenerateSecretsBits(bits int) (*KeyDataSecrets, error) {
	words, err := GenerateMnemonicBits(bits)
	if err != nil {
		return nil, err
	}
	return SecretsFromMnemonic(MnemonicString(words))
}

// MnemonicString returns the space separated mnemonic.
func (s *KeyDataSecrets) MnemonicString() string {
	return MnemonicString(s.Mnemonic)
}

// Equal reports whether both secrets carry the same material.
func (s *KeyDataSecrets) Equal(other *KeyDataSecrets) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.MnemonicString() == other.MnemonicString() &&
		bytes.Equal(s.Entropy, other.Entropy) &&
		s.PrivateKey.Equal(other.PrivateKey)
}

// KeyData is a key record: fingerprint, public key, optional label and,
// unless the key was imported public-only, its secrets.
type KeyData struct {
	Fingerprint uint32
	PublicKey   *PublicKey

	// Label is empty when the key has no label.
	Label string

	// Secrets is nil for public-only keys.
	Secrets *KeyDataSecrets
}

// NewKeyData validates and assembles a key record. The public key must
// match the secrets' private key when secrets are present, and the
// fingerprint must match the public key.
func NewKeyData(fingerprint uint32, publicKey *PublicKey, label string, secrets *KeyDataSecrets) (*KeyData, error) {
	if publicKey == nil {
		return nil, &KeyDataMismatchError{Field: "public_key"}
	}
	if secrets != nil && (secrets.PrivateKey == nil || !secrets.PrivateKey.PublicKey().Equal(publicKey)) {
		return nil, &KeyDataMismatchError{Field: "public_key"}
	}
	if publicKey.Fingerprint() != fingerprint {
		return nil, &KeyDataMismatchError{Field: "fingerprint"}
	}
	return &KeyData{
		Fingerprint: fingerprint,
		PublicKey:   publicKey,
		Label:       label,
		Secrets:     secrets,
	}, nil
}

// KeyDataFromMnemonic builds a full key record from a mnemonic.
func KeyDataFromMnemonic(mnemonic, label string) (*KeyData, error) {
	secrets, err := SecretsFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	return keyDataFromSecrets(secrets, label)
}

// KeyDataFromEntropy builds a full key record from raw entropy.
func KeyDataFromEntropy(entropy []byte, label string) (*KeyData, error) {
	secrets, err := SecretsFromEntropy(entropy)
	if err != nil {
		return nil, err
	}
	return keyDataFromSecrets(secrets, label)
}

// GenerateKeyData builds a key record from a fresh 24 word mnemonic.
func GenerateKeyData(label string) (*KeyData, error) {
	secrets, err := GenerateSecrets()
	if err != nil {
		return nil, err
	}
	return keyDataFromSecrets(secrets, label)
}

func keyDataFromSecrets(secrets *KeyDataSecrets, label string) (*KeyData, error) {
	pk := secrets.PrivateKey.PublicKey()
	return NewKeyData(pk.Fingerprint(), pk, label, secrets)
}

// Mnemonic returns the mnemonic words or ErrSecretsMissing.
func (k *KeyData) Mnemonic() ([]string, error) {
	if k.Secrets == nil {
		return nil, ErrSecretsMissing
	}
	return k.Secrets.Mnemonic, nil
}

// MnemonicString returns the space separated mnemonic or ErrSecretsMissing.
func (k *KeyData) MnemonicString() (string, error) {
	if k.Secrets == nil {
		return "", ErrSecretsMissing
	}
	return k.Secrets.MnemonicString(), nil
}

// Entropy returns the entropy or ErrSecretsMissing.
func (k *KeyData) Entropy() ([]byte, error) {
	if k.Secrets == nil {
		return nil, ErrSecretsMissing
	}
	return k.Secrets.Entropy, nil
}

// PrivateKey returns the private key or ErrSecretsMissing.
func (k *KeyData) PrivateKey() (*PrivateKey, error) {
	if k.Secrets == nil {
		return nil, ErrSecretsMissing
	}
	return k.Secrets.PrivateKey, nil
}

// HasSecrets reports whether the record carries secret material.
func (k *KeyData) HasSecrets() bool {
	return k.Secrets != nil
}

// WithoutSecrets returns a copy of k with the secrets dropped.
func (k *KeyData) WithoutSecrets() *KeyData {
	c := *k
	c.Secrets = nil
	return &c
}

// WithLabel returns a copy of k carrying label.
func (k *KeyData) WithLabel(label string) *KeyData {
	c := *k
	c.Label = label
	return &c
}

// Equal reports whether both records are identical, secrets included.
func (k *KeyData) Equal(other *KeyData) bool {
	if k == nil || other == nil {
		return k == other
	}
	return k.Fingerprint == other.Fingerprint &&
		k.PublicKey.Equal(other.PublicKey) &&
		k.Label == other.Label &&
		k.Secrets.Equal(other.Secrets)
}

func (k *KeyData) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "fingerprint=%d", k.Fingerprint)
	if k.Label != "" {
		fmt.Fprintf(&b, " label=%q", k.Label)
	}
	if k.Secrets == nil {
		b.WriteString(" public-only")
	}
	return b.String()
}
