// Copyright (c) 2025-2026 complex (complex@ft.hn)
// See LICENSE for licensing information

package keychain

import (
	"crypto/sha512"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tyler-smith/go-bip39"
	"github.com/tyler-smith/go-bip39/wordlists"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultEntropyBits is the entropy size used by GenerateMnemonic.
	// 256 bits yield a 24 word mnemonic.
	DefaultEntropyBits = 256

	// seedIterations and seedLength are the BIP-39 PBKDF2 parameters.
	seedIterations = 2048
	seedLength     = 64

	// shortWordLength is the prefix length that is unique for every word
	// of the English dictionary.
	shortWordLength = 4
)

// wordList is the English dictionary go-bip39 encodes with by default. It
// backs prefix lookups; encoding and checksums are left to bip39.
var (
	wordList  = wordlists.English
	wordIndex = func() map[string]int {
		m := make(map[string]int, len(wordList))
		for i, w := range wordList {
			m[w] = i
		}
		return m
	}()
)

// entropySizeForWordCount maps accepted mnemonic lengths to the entropy size
// in bytes they encode.
var entropySizeForWordCount = map[int]int{
	12: 16,
	15: 20,
	18: 24,
	21: 28,
	24: 32,
}

// GenerateMnemonic returns a fresh 24 word mnemonic built from 256 bits of
// secure random entropy.
func GenerateMnemonic() ([]string, error) {
	return GenerateMnemonicBits(DefaultEntropyBits)
}

// GenerateMnemonicBits returns a fresh mnemonic for the given entropy size.
// bits must be one of 128, 160, 192, 224 or 256.
func GenerateMnemonicBits(bits int) ([]string, error) {
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return nil, fmt.Errorf("could not generate entropy: %w", err)
	}
	return EntropyToMnemonic(entropy)
}

// EntropyToMnemonic encodes entropy as BIP-39 mnemonic words.
func EntropyToMnemonic(entropy []byte) ([]string, error) {
	if !validEntropyLength(len(entropy)) {
		return nil, fmt.Errorf("%w: got %d", ErrEntropyLength, len(entropy))
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("could not create a mnemonic set of words: %w", err)
	}
	return strings.Fields(mnemonic), nil
}

// MnemonicToEntropy decodes a mnemonic back to its entropy, verifying the
// checksum. Words may be given in full or as their unique prefix (usually
// the first four letters), see MnemonicFromShortWords.
func MnemonicToEntropy(mnemonic string) ([]byte, error) {
	words, err := resolveWords(strings.Fields(mnemonic))
	if err != nil {
		return nil, err
	}

	entropy, err := bip39.EntropyFromMnemonic(MnemonicString(words))
	if errors.Is(err, bip39.ErrChecksumIncorrect) {
		return nil, ErrChecksum
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	return entropy, nil
}

// MnemonicFromShortWords expands a mnemonic where every word may be
// abbreviated to a prefix. A token that is a dictionary word itself resolves
// to that word; otherwise it must be the prefix of exactly one word.
//
// Many offline backups store only the first four letters of each word, which
// are unique in the English dictionary.
func MnemonicFromShortWords(short string) (string, error) {
	words, err := resolveWords(strings.Fields(short))
	if err != nil {
		return "", err
	}
	return MnemonicString(words), nil
}

// MnemonicToSeed stretches a mnemonic and optional passphrase into a 64 byte
// seed: PBKDF2-HMAC-SHA512 with 2048 iterations, salt "mnemonic"+passphrase.
// Both inputs are NFKD normalized first so composed and decomposed forms of
// the same text produce the same seed.
//
// The mnemonic is not checked against the dictionary. A mnemonic that
// abbreviates at least one word is expanded first, so it yields the same seed
// as its full form. Anything else, including full words in another case, is
// hashed as given.
func MnemonicToSeed(mnemonic, passphrase string) []byte {
	if full, ok := expandShortWords(mnemonic); ok {
		mnemonic = full
	}
	password := norm.NFKD.String(mnemonic)
	salt := "mnemonic" + norm.NFKD.String(passphrase)
	return pbkdf2.Key([]byte(password), []byte(salt), seedIterations, seedLength, sha512.New)
}

// MnemonicString joins mnemonic words with single spaces.
func MnemonicString(words []string) string {
	return strings.Join(words, " ")
}

// ShortMnemonic abbreviates every word of a mnemonic to its first four
// letters, the form MnemonicFromShortWords accepts.
func ShortMnemonic(words []string) string {
	short := make([]string, len(words))
	for i, w := range words {
		if len(w) > shortWordLength {
			w = w[:shortWordLength]
		}
		short[i] = w
	}
	return MnemonicString(short)
}

// resolveWords validates the word count and maps each token to its
// dictionary word.
func resolveWords(tokens []string) ([]string, error) {
	if _, ok := entropySizeForWordCount[len(tokens)]; !ok {
		return nil, fmt.Errorf("%w: got %d words", ErrMnemonicLength, len(tokens))
	}

	words := make([]string, len(tokens))
	for i, tok := range tokens {
		w, err := lookupWord(tok)
		if err != nil {
			return nil, err
		}
		words[i] = w
	}
	return words, nil
}

// expandShortWords returns the full form of a mnemonic in which some token
// is a strict prefix of its word. ok is false when the mnemonic doesn't
// resolve or already spells every word out.
func expandShortWords(mnemonic string) (full string, ok bool) {
	tokens := strings.Fields(mnemonic)
	words, err := resolveWords(tokens)
	if err != nil {
		return "", false
	}
	for i, tok := range tokens {
		if foldWord(tok) != words[i] {
			return MnemonicString(words), true
		}
	}
	return "", false
}

func foldWord(token string) string {
	return strings.ToLower(norm.NFKD.String(token))
}

// lookupWord resolves a full word or a unique prefix, ignoring case.
func lookupWord(token string) (string, error) {
	word := foldWord(token)
	if _, ok := wordIndex[word]; ok {
		return word, nil
	}

	// wordList is sorted, so all words sharing the prefix are contiguous.
	start := sort.SearchStrings(wordList, word)
	var matches []string
	for i := start; i < len(wordList) && strings.HasPrefix(wordList[i], word); i++ {
		matches = append(matches, wordList[i])
	}

	switch len(matches) {
	case 0:
		return "", &UnknownWordError{Word: token}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousWordError{Prefix: token, Matches: matches}
	}
}

func validEntropyLength(n int) bool {
	for _, size := range entropySizeForWordCount {
		if size == n {
			return true
		}
	}
	return false
}
