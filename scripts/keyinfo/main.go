// Copyright (c) 2025-2026 complex (complex@ft.hn)
// See LICENSE for licensing information

// keyinfo prints the fingerprint and public key derived from a mnemonic (full
// or short words) or a bech32m public key, without touching any keyring.
//
// Usage:
//
//	go run ./scripts/keyinfo "your 24 word seed phrase here"
//
// Or with stdin:
//
//	echo "your 24 word seed phrase" | go run ./scripts/keyinfo
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/complex-gh/keychain"
)

func main() {
	var input string

	if len(os.Args) > 1 {
		input = strings.Join(os.Args[1:], " ")
	} else {
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			input = strings.TrimSpace(scanner.Text())
		}
	}

	if input == "" {
		fmt.Fprintln(os.Stderr, "Usage: keyinfo \"24 word seed phrase\"")
		fmt.Fprintln(os.Stderr, "   or: echo \"seed phrase\" | keyinfo")
		os.Exit(1)
	}

	pk, err := publicKey(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	encoded, err := pk.Encode()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("fingerprint: %d\n", pk.Fingerprint())
	fmt.Printf("public key:  %s\n", pk.Hex())
	fmt.Printf("bech32m:     %s\n", encoded)
}

func publicKey(input string) (*keychain.PublicKey, error) {
	if keychain.IsPublicKeyString(input) {
		return keychain.DecodePublicKey(input)
	}
	sk, err := keychain.PrivateKeyFromMnemonic(input)
	if err != nil {
		return nil, err
	}
	return sk.PublicKey(), nil
}
