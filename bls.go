// Copyright (c) 2025-2026 complex (complex@ft.hn)
// See LICENSE for licensing information

package keychain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/cloudflare/circl/sign/bls"
)

const (
	// PublicKeySize is the length of a compressed G1 public key.
	PublicKeySize = 48

	// PrivateKeySize is the length of a serialized private key scalar.
	PrivateKeySize = 32

	// PublicKeyHRP is the human readable part used when encoding public
	// keys as bech32m strings. Any string starting with PublicKeyPrefix is
	// treated as an encoded public key by AddKey.
	PublicKeyHRP    = "bls1238"
	PublicKeyPrefix = PublicKeyHRP

	// keyGenSalt is the BLS KeyGen salt (draft-irtf-cfrg-bls-signature).
	keyGenSalt = "BLS-SIG-KEYGEN-SALT-"
)

// PrivateKey is a BLS12-381 private key whose public key lives in G1.
// The public key is computed once at construction so a PrivateKey can be
// shared between goroutines.
type PrivateKey struct {
	sk  *bls.PrivateKey[bls.KeyG1SigG2]
	pub *PublicKey
}

// PublicKey is a BLS12-381 G1 public key.
type PublicKey struct {
	pk  *bls.PublicKey[bls.KeyG1SigG2]
	raw []byte
}

// PrivateKeyFromSeed derives the master private key for a seed (the output
// of MnemonicToSeed) with BLS KeyGen: HKDF-SHA256 over seed||0x00 with salt
// "BLS-SIG-KEYGEN-SALT-", reduced modulo the group order.
func PrivateKeyFromSeed(seed []byte) (*PrivateKey, error) {
	sk, err := bls.KeyGen[bls.KeyG1SigG2](seed, []byte(keyGenSalt), nil)
	if err != nil {
		return nil, fmt.Errorf("could not derive private key: %w", err)
	}
	return newPrivateKey(sk)
}

// PrivateKeyFromMnemonic derives the master private key for a mnemonic with
// an empty passphrase. The words are resolved to their lowercase dictionary
// form first, matching the key a Keychain stores for the same mnemonic.
func PrivateKeyFromMnemonic(mnemonic string) (*PrivateKey, error) {
	entropy, err := MnemonicToEntropy(mnemonic)
	if err != nil {
		return nil, err
	}
	words, err := EntropyToMnemonic(entropy)
	if err != nil {
		return nil, err
	}
	return PrivateKeyFromSeed(MnemonicToSeed(MnemonicString(words), ""))
}

// PrivateKeyFromBytes parses a 32 byte big-endian private key scalar.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPrivateKey, PrivateKeySize, len(b))
	}
	sk := new(bls.PrivateKey[bls.KeyG1SigG2])
	if err := sk.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return newPrivateKey(sk)
}

func newPrivateKey(sk *bls.PrivateKey[bls.KeyG1SigG2]) (*PrivateKey, error) {
	raw, err := sk.PublicKey().MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("could not encode public key: %w", err)
	}
	return &PrivateKey{
		sk:  sk,
		pub: &PublicKey{pk: sk.PublicKey(), raw: raw},
	}, nil
}

// PublicKey returns the G1 public key of k.
func (k *PrivateKey) PublicKey() *PublicKey {
	return k.pub
}

// Bytes returns the 32 byte big-endian scalar.
func (k *PrivateKey) Bytes() []byte {
	b, err := k.sk.MarshalBinary()
	if err != nil {
		// Scalar marshaling never fails.
		panic(err)
	}
	return b
}

// Hex returns the private key as lowercase hex.
func (k *PrivateKey) Hex() string {
	return hex.EncodeToString(k.Bytes())
}

// Equal reports whether k and other are the same key.
func (k *PrivateKey) Equal(other *PrivateKey) bool {
	if k == nil || other == nil {
		return k == other
	}
	return k.sk.Equal(other.sk)
}

// Sign signs msg with the basic BLS scheme. It's used to prove possession
// of a stored key without exporting it.
func (k *PrivateKey) Sign(msg []byte) []byte {
	return bls.Sign(k.sk, msg)
}

// PublicKeyFromBytes parses a 48 byte compressed G1 point. The identity
// point is rejected.
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	if len(b) != PublicKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, PublicKeySize, len(b))
	}
	if b[0]&0x80 == 0 {
		return nil, fmt.Errorf("%w: not in compressed form", ErrInvalidPublicKey)
	}
	pk := new(bls.PublicKey[bls.KeyG1SigG2])
	if err := pk.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if !pk.Validate() {
		return nil, fmt.Errorf("%w: not a valid G1 point", ErrInvalidPublicKey)
	}
	raw := make([]byte, PublicKeySize)
	copy(raw, b)
	return &PublicKey{pk: pk, raw: raw}, nil
}

// DecodePublicKey parses a bech32m encoded public key such as the ones
// produced by (*PublicKey).Encode. The human readable part must start with
// PublicKeyPrefix.
func DecodePublicKey(s string) (*PublicKey, error) {
	if !IsPublicKeyString(s) {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrInvalidPublicKey, PublicKeyPrefix)
	}
	_, data, version, err := bech32.DecodeNoLimitWithVersion(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if version != bech32.VersionM {
		return nil, fmt.Errorf("%w: not bech32m encoded", ErrInvalidPublicKey)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return PublicKeyFromBytes(raw)
}

// IsPublicKeyString reports whether s looks like a bech32m public key
// rather than a mnemonic.
func IsPublicKeyString(s string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), PublicKeyPrefix)
}

// Bytes returns the 48 byte compressed encoding.
func (p *PublicKey) Bytes() []byte {
	b := make([]byte, len(p.raw))
	copy(b, p.raw)
	return b
}

// Hex returns the compressed encoding as lowercase hex.
func (p *PublicKey) Hex() string {
	return hex.EncodeToString(p.raw)
}

// Encode returns the bech32m string form of the public key.
func (p *PublicKey) Encode() (string, error) {
	data, err := bech32.ConvertBits(p.raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("could not convert public key bits: %w", err)
	}
	s, err := bech32.EncodeM(PublicKeyHRP, data)
	if err != nil {
		return "", fmt.Errorf("could not encode public key: %w", err)
	}
	return s, nil
}

// Fingerprint is the first four bytes of SHA-256 over the compressed public
// key, read as a big-endian integer.
func (p *PublicKey) Fingerprint() uint32 {
	sum := sha256.Sum256(p.raw)
	return binary.BigEndian.Uint32(sum[:4])
}

// Equal reports whether p and other encode the same point.
func (p *PublicKey) Equal(other *PublicKey) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.pk.Equal(other.pk)
}

// Verify checks a signature produced by (*PrivateKey).Sign.
func (p *PublicKey) Verify(msg, sig []byte) bool {
	return bls.Verify(p.pk, msg, sig)
}

func (p *PublicKey) String() string {
	return p.Hex()
}
