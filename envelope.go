// Copyright (c) 2025-2026 complex (complex@ft.hn)
// See LICENSE for licensing information

package keychain

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"gopkg.in/yaml.v3"
)

const (
	envelopeVersion = 1
	envelopeKDF     = "argon2id"
	saltSize        = 16

	// Upper bounds for argon2id parameters. They are read from the file
	// header before anything is authenticated.
	maxKDFTime     = 16
	maxKDFMemoryKB = 4 * 1024 * 1024
)

// KDFParams are the argon2id parameters used to turn a keyring passphrase
// into an encryption key.
type KDFParams struct {
	Time     uint32 `yaml:"time"`
	MemoryKB uint32 `yaml:"memory_kb"`
	Threads  uint8  `yaml:"threads"`
}

// DefaultKDFParams are used for new keyring files.
var DefaultKDFParams = KDFParams{
	Time:     2,
	MemoryKB: 64 * 1024,
	Threads:  1,
}

// Validate rejects parameters argon2 can't run with, and parameters too
// costly to be legitimate.
func (p KDFParams) Validate() error {
	switch {
	case p.Time < 1:
		return errors.New("kdf time must be at least 1")
	case p.Time > maxKDFTime:
		return fmt.Errorf("kdf time must be at most %d", maxKDFTime)
	case p.MemoryKB > maxKDFMemoryKB:
		return fmt.Errorf("kdf memory must be at most %d KiB", maxKDFMemoryKB)
	case p.Threads < 1:
		return errors.New("kdf threads must be at least 1")
	case p.MemoryKB < 8*uint32(p.Threads):
		return fmt.Errorf("kdf memory must be at least %d KiB", 8*uint32(p.Threads))
	}
	return nil
}

// envelope is the on-disk keyring document. Everything but the passphrase
// hint is authenticated: the header fields are bound to the ciphertext as
// associated data.
type envelope struct {
	Version        int       `yaml:"version"`
	KDF            string    `yaml:"kdf"`
	Params         KDFParams `yaml:"kdf_params"`
	Salt           string    `yaml:"salt"`
	Nonce          string    `yaml:"nonce"`
	Data           string    `yaml:"data"`
	PassphraseHint string    `yaml:"passphrase_hint,omitempty"`
}

func (e *envelope) associatedData() []byte {
	return []byte(fmt.Sprintf("keychain/v%d/%s/%d/%d/%d/%s",
		e.Version, e.KDF, e.Params.Time, e.Params.MemoryKB, e.Params.Threads, e.Salt))
}

// sealer holds a derived key for one salt. The key is derived once and
// reused for every write; each write uses a fresh nonce.
type sealer struct {
	params KDFParams
	salt   []byte
	key    []byte
}

// newSealer derives a key for passphrase under a fresh random salt.
func newSealer(passphrase string, params KDFParams) (*sealer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("could not generate salt: %w", err)
	}
	return &sealer{
		params: params,
		salt:   salt,
		key:    deriveFileKey(passphrase, salt, params),
	}, nil
}

// matches reports whether s was derived for the header of env.
func (s *sealer) matches(env *envelope) bool {
	salt, err := hex.DecodeString(env.Salt)
	return err == nil && s.params == env.Params && bytes.Equal(s.salt, salt)
}

// seal encrypts plaintext into a new envelope.
func (s *sealer) seal(plaintext []byte, hint string) (*envelope, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("could not generate nonce: %w", err)
	}

	env := &envelope{
		Version:        envelopeVersion,
		KDF:            envelopeKDF,
		Params:         s.params,
		Salt:           hex.EncodeToString(s.salt),
		Nonce:          hex.EncodeToString(nonce),
		PassphraseHint: hint,
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, env.associatedData())
	env.Data = base64.StdEncoding.EncodeToString(ciphertext)
	return env, nil
}

// open decrypts env. A failed authentication is reported as
// ErrBadPassphrase since a wrong passphrase and a tampered file are
// indistinguishable.
func (s *sealer) open(env *envelope) ([]byte, error) {
	nonce, err := hex.DecodeString(env.Nonce)
	if err != nil || len(nonce) != chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("%w: bad nonce", ErrKeyringCorrupt)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: bad data encoding", ErrKeyringCorrupt)
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, env.associatedData())
	if err != nil {
		return nil, ErrBadPassphrase
	}
	return plaintext, nil
}

// sealerFor derives the key for an existing envelope's header.
func sealerFor(passphrase string, env *envelope) (*sealer, error) {
	if env.Version != envelopeVersion || env.KDF != envelopeKDF {
		return nil, fmt.Errorf("%w: unsupported version %d/%s", ErrKeyringCorrupt, env.Version, env.KDF)
	}
	if err := env.Params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyringCorrupt, err)
	}
	salt, err := hex.DecodeString(env.Salt)
	if err != nil || len(salt) != saltSize {
		return nil, fmt.Errorf("%w: bad salt", ErrKeyringCorrupt)
	}
	return &sealer{
		params: env.Params,
		salt:   salt,
		key:    deriveFileKey(passphrase, salt, env.Params),
	}, nil
}

func (s *sealer) wipe() {
	zeroBytes(s.key)
}

func parseEnvelope(raw []byte) (*envelope, error) {
	var env envelope
	if err := yaml.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyringCorrupt, err)
	}
	return &env, nil
}

func deriveFileKey(passphrase string, salt []byte, p KDFParams) []byte {
	return argon2.IDKey([]byte(passphrase), salt, p.Time, p.MemoryKB, p.Threads, chacha20poly1305.KeySize)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
