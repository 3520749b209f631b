// Copyright (c) 2025-2026 complex (complex@ft.hn)
// See LICENSE for licensing information

package keychain

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func mustSecrets(t *testing.T, mnemonic string) *KeyDataSecrets {
	t.Helper()
	is := is.New(t)

	s, err := SecretsFromMnemonic(mnemonic)
	is.NoErr(err)
	return s
}

func TestKeyDataSecretsConstructors(t *testing.T) {
	is := is.New(t)

	entropy, err := hex.DecodeString(keyInfo24.entropy)
	is.NoErr(err)

	fromMnemonic := mustSecrets(t, keyInfo24.mnemonic)
	fromEntropy, err := SecretsFromEntropy(entropy)
	is.NoErr(err)

	is.True(fromMnemonic.Equal(fromEntropy))
	is.Equal(fromMnemonic.MnemonicString(), keyInfo24.mnemonic)
	is.Equal(fromMnemonic.Entropy, entropy)
	is.Equal(fromMnemonic.PrivateKey.Hex(), keyInfo24.privateKey)

	// A short-word mnemonic expands to the same secrets.
	short := mustSecrets(t, ShortMnemonic(strings.Fields(keyInfo24.mnemonic)))
	is.True(short.Equal(fromMnemonic))
}

func TestGenerateSecrets(t *testing.T) {
	is := is.New(t)

	s, err := GenerateSecrets()
	is.NoErr(err)
	is.Equal(len(s.Mnemonic), 24)

	sk, err := PrivateKeyFromSeed(MnemonicToSeed(s.MnemonicString(), ""))
	is.NoErr(err)
	is.True(s.PrivateKey.Equal(sk))

	entropy, err := MnemonicToEntropy(s.MnemonicString())
	is.NoErr(err)
	is.Equal(s.Entropy, entropy)

	s12, err := GenerateSecretsBits(128)
	is.NoErr(err)
	is.Equal(len(s12.Mnemonic), 12)
}

func TestNewKeyDataSecretsMismatch(t *testing.T) {
	good24 := mustSecrets(t, keyInfo24.mnemonic)
	good12 := mustSecrets(t, keyInfo12.mnemonic)

	badMnemonic := append([]string(nil), good24.Mnemonic...)
	badMnemonic[0], badMnemonic[1] = badMnemonic[1], badMnemonic[0]

	tests := []struct {
		name     string
		mnemonic []string
		entropy  []byte
		sk       *PrivateKey
		field    string
	}{
		{"undecodable mnemonic", badMnemonic, good24.Entropy, good24.PrivateKey, "mnemonic"},
		{"foreign entropy", good24.Mnemonic, good12.Entropy, good24.PrivateKey, "entropy"},
		{"foreign private key", good24.Mnemonic, good24.Entropy, good12.PrivateKey, "private_key"},
		{"missing private key", good24.Mnemonic, good24.Entropy, nil, "private_key"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)

			_, err := NewKeyDataSecrets(tc.mnemonic, tc.entropy, tc.sk)
			var mismatch *KeyDataMismatchError
			is.True(errors.As(err, &mismatch))
			is.Equal(mismatch.Field, tc.field)
			is.True(errors.Is(err, ErrKeyDataMismatch))
		})
	}

	t.Run("consistent", func(t *testing.T) {
		is := is.New(t)

		s, err := NewKeyDataSecrets(good12.Mnemonic, good12.Entropy, good12.PrivateKey)
		is.NoErr(err)
		is.True(s.Equal(good12))
	})
}

func TestNewKeyData(t *testing.T) {
	s24 := mustSecrets(t, keyInfo24.mnemonic)
	s12 := mustSecrets(t, keyInfo12.mnemonic)
	pk24 := s24.PrivateKey.PublicKey()

	t.Run("valid", func(t *testing.T) {
		is := is.New(t)

		kd, err := NewKeyData(keyInfo24.fingerprint, pk24, "key", s24)
		is.NoErr(err)
		is.Equal(kd.Fingerprint, keyInfo24.fingerprint)
		is.Equal(kd.Label, "key")

		sk, err := kd.PrivateKey()
		is.NoErr(err)
		is.Equal(sk.Hex(), keyInfo24.privateKey)

		m, err := kd.MnemonicString()
		is.NoErr(err)
		is.Equal(m, keyInfo24.mnemonic)
	})

	t.Run("public key mismatch", func(t *testing.T) {
		is := is.New(t)

		_, err := NewKeyData(keyInfo24.fingerprint, pk24, "", s12)
		var mismatch *KeyDataMismatchError
		is.True(errors.As(err, &mismatch))
		is.Equal(mismatch.Field, "public_key")
	})

	t.Run("secrets without private key", func(t *testing.T) {
		is := is.New(t)

		_, err := NewKeyData(keyInfo24.fingerprint, pk24, "", &KeyDataSecrets{})
		var mismatch *KeyDataMismatchError
		is.True(errors.As(err, &mismatch))
		is.Equal(mismatch.Field, "public_key")
	})

	t.Run("fingerprint mismatch", func(t *testing.T) {
		is := is.New(t)

		_, err := NewKeyData(keyInfo12.fingerprint, pk24, "", s24)
		var mismatch *KeyDataMismatchError
		is.True(errors.As(err, &mismatch))
		is.Equal(mismatch.Field, "fingerprint")
	})

	t.Run("public only", func(t *testing.T) {
		is := is.New(t)

		kd, err := NewKeyData(keyInfo24.fingerprint, pk24, "", nil)
		is.NoErr(err)
		is.True(!kd.HasSecrets())

		_, err = kd.PrivateKey()
		is.True(errors.Is(err, ErrSecretsMissing))
		_, err = kd.Mnemonic()
		is.True(errors.Is(err, ErrSecretsMissing))
		_, err = kd.MnemonicString()
		is.True(errors.Is(err, ErrSecretsMissing))
		_, err = kd.Entropy()
		is.True(errors.Is(err, ErrSecretsMissing))
	})
}

func TestKeyDataConstructors(t *testing.T) {
	is := is.New(t)

	entropy, err := hex.DecodeString(keyInfo12.entropy)
	is.NoErr(err)

	fromMnemonic, err := KeyDataFromMnemonic(keyInfo12.mnemonic, "twelve")
	is.NoErr(err)
	fromEntropy, err := KeyDataFromEntropy(entropy, "twelve")
	is.NoErr(err)

	is.True(fromMnemonic.Equal(fromEntropy))
	is.Equal(fromMnemonic.Fingerprint, keyInfo12.fingerprint)
	is.Equal(fromMnemonic.PublicKey.Hex(), keyInfo12.publicKey)

	is.True(!fromMnemonic.Equal(fromMnemonic.WithoutSecrets()))
	is.True(!fromMnemonic.Equal(fromMnemonic.WithLabel("other")))
	is.True(fromMnemonic.HasSecrets())

	generated, err := GenerateKeyData("")
	is.NoErr(err)
	is.Equal(generated.Fingerprint, generated.PublicKey.Fingerprint())
	is.True(generated.HasSecrets())
}

func TestSecretPayload(t *testing.T) {
	is := is.New(t)

	s := mustSecrets(t, keyInfo12.mnemonic)
	pk := s.PrivateKey.PublicKey()

	full := encodeSecret(pk, s.Entropy)
	is.Equal(len(full), PublicKeySize+16)
	gotPK, gotEntropy, err := decodeSecret(full)
	is.NoErr(err)
	is.True(gotPK.Equal(pk))
	is.Equal(gotEntropy, s.Entropy)

	public := encodeSecret(pk, nil)
	is.Equal(len(public), PublicKeySize)
	gotPK, gotEntropy, err = decodeSecret(public)
	is.NoErr(err)
	is.True(gotPK.Equal(pk))
	is.True(gotEntropy == nil)

	_, _, err = decodeSecret(full[:PublicKeySize+3])
	is.True(errors.Is(err, ErrCorruptSecret))
	_, _, err = decodeSecret(full[:10])
	is.True(errors.Is(err, ErrCorruptSecret))
}
