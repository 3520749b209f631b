// Copyright (c) 2025-2026 complex (complex@ft.hn)
// See LICENSE for licensing information

package keychain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. The typed errors below match these through errors.Is so
// callers can branch on the condition without caring about the payload.
var (
	// ErrInvalidMnemonic is the parent of every mnemonic decoding failure.
	ErrInvalidMnemonic = errors.New("invalid mnemonic")

	// ErrMnemonicLength is returned when a mnemonic does not have 12, 15,
	// 18, 21 or 24 words.
	ErrMnemonicLength = fmt.Errorf("%w: invalid mnemonic length", ErrInvalidMnemonic)

	// ErrChecksum is returned when the trailing checksum bits of a mnemonic
	// don't match the SHA-256 of its entropy.
	ErrChecksum = fmt.Errorf("%w: invalid order of mnemonic words", ErrInvalidMnemonic)

	// ErrEntropyLength is returned for entropy that isn't 16, 20, 24, 28 or
	// 32 bytes long.
	ErrEntropyLength = errors.New("entropy must be 16, 20, 24, 28 or 32 bytes")

	ErrFingerprintExists   = errors.New("fingerprint already exists")
	ErrFingerprintNotFound = errors.New("fingerprint not found")
	ErrLabelExists         = errors.New("label already exists")
	ErrLabelInvalid        = errors.New("invalid label")
	ErrKeyDataMismatch     = errors.New("key data mismatch")

	// ErrSecretsMissing is returned when secret material is requested from a
	// public-only key record.
	ErrSecretsMissing = errors.New("key has no secrets")

	// ErrInvalidPublicKey is returned for malformed public key encodings.
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrInvalidPrivateKey is returned for malformed private key encodings.
	ErrInvalidPrivateKey = errors.New("invalid private key")

	// ErrCorruptSecret is returned when a stored secret payload can't be
	// decoded.
	ErrCorruptSecret = errors.New("corrupt secret payload")

	// ErrBadPassphrase is returned when a keyring file can't be decrypted
	// with the supplied passphrase.
	ErrBadPassphrase = errors.New("keyring passphrase is incorrect")

	// ErrKeyringCorrupt is returned when a keyring file is structurally
	// invalid.
	ErrKeyringCorrupt = errors.New("keyring file is corrupt")

	// ErrKeyringClosed is returned when a closed FileKeyring is used.
	ErrKeyringClosed = errors.New("keyring is closed")
)

// UnknownWordError reports a mnemonic word (or short-word prefix) that is
// not in the dictionary.
type UnknownWordError struct {
	Word string
}

func (e *UnknownWordError) Error() string {
	return fmt.Sprintf("'%s' is not in the mnemonic dictionary; may be misspelled", e.Word)
}

// Is makes UnknownWordError match ErrInvalidMnemonic.
func (e *UnknownWordError) Is(target error) bool {
	return target == ErrInvalidMnemonic
}

// AmbiguousWordError reports a short-word prefix that matches more than one
// dictionary word.
type AmbiguousWordError struct {
	Prefix  string
	Matches []string
}

func (e *AmbiguousWordError) Error() string {
	return fmt.Sprintf("'%s' is ambiguous; could be any of: %s", e.Prefix, strings.Join(e.Matches, ", "))
}

// Is makes AmbiguousWordError match ErrInvalidMnemonic.
func (e *AmbiguousWordError) Is(target error) bool {
	return target == ErrInvalidMnemonic
}

// FingerprintExistsError is returned by AddKey when a key with the same
// fingerprint is already stored.
type FingerprintExistsError struct {
	Fingerprint uint32
	Label       string
}

func (e *FingerprintExistsError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("fingerprint %d already exists (label: %q)", e.Fingerprint, e.Label)
	}
	return fmt.Sprintf("fingerprint %d already exists", e.Fingerprint)
}

func (e *FingerprintExistsError) Is(target error) bool {
	return target == ErrFingerprintExists
}

// FingerprintNotFoundError is returned for operations on a fingerprint that
// isn't stored.
type FingerprintNotFoundError struct {
	Fingerprint uint32
}

func (e *FingerprintNotFoundError) Error() string {
	return fmt.Sprintf("fingerprint %d not found", e.Fingerprint)
}

func (e *FingerprintNotFoundError) Is(target error) bool {
	return target == ErrFingerprintNotFound
}

// LabelExistsError is returned when a label is already assigned to another
// key. Fingerprint identifies the key that holds the label.
type LabelExistsError struct {
	Fingerprint uint32
	Label       string
}

func (e *LabelExistsError) Error() string {
	return fmt.Sprintf("label %q already exists for fingerprint %d", e.Label, e.Fingerprint)
}

func (e *LabelExistsError) Is(target error) bool {
	return target == ErrLabelExists
}

// LabelInvalidError is returned for labels that fail validation. Reason is
// a human readable description of the violated rule.
type LabelInvalidError struct {
	Label  string
	Reason string
}

func (e *LabelInvalidError) Error() string {
	return fmt.Sprintf("invalid label %q: %s", e.Label, e.Reason)
}

func (e *LabelInvalidError) Is(target error) bool {
	return target == ErrLabelInvalid
}

// KeyDataMismatchError names the field of a key record that is inconsistent
// with the rest of the record.
type KeyDataMismatchError struct {
	Field string
}

func (e *KeyDataMismatchError) Error() string {
	return fmt.Sprintf("key data mismatch: %s", e.Field)
}

func (e *KeyDataMismatchError) Is(target error) bool {
	return target == ErrKeyDataMismatch
}
