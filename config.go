// Copyright (c) 2025-2026 complex (complex@ft.hn)
// See LICENSE for licensing information

package keychain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultService and DefaultUser name the namespace used when the
	// configuration doesn't set one.
	DefaultService = "keychain"
	DefaultUser    = "keychain-user"

	defaultKeyringDir  = ".keychain"
	defaultKeyringFile = "keyring.yaml"
)

// Config describes where keys are stored.
type Config struct {
	// Service and User select the keyring namespace.
	Service string `yaml:"service"`
	User    string `yaml:"user"`

	// KeyringPath is the encrypted keyring file.
	KeyringPath string `yaml:"keyring_path"`

	// PassphraseHint is stored with a newly created keyring.
	PassphraseHint string `yaml:"passphrase_hint"`

	// KDF are the argon2id parameters for new keyring files.
	KDF KDFParams `yaml:"kdf"`
}

// DefaultConfig returns the configuration used when no file is given. The
// keyring lives in ~/.keychain/keyring.yaml.
func DefaultConfig() *Config {
	path := filepath.Join(defaultKeyringDir, defaultKeyringFile)
	if home, err := os.UserHomeDir(); err == nil {
		path = filepath.Join(home, path)
	}
	return &Config{
		Service:     DefaultService,
		User:        DefaultUser,
		KeyringPath: path,
		KDF:         DefaultKDFParams,
	}
}

// LoadConfig reads a YAML configuration file. Fields missing from the file
// keep their defaults. A leading "~/" in keyring_path is expanded.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("could not parse config %s: %w", path, err)
	}
	cfg.KeyringPath = expandHome(cfg.KeyringPath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Service) == "":
		return errors.New("service must be set")
	case strings.TrimSpace(c.User) == "":
		return errors.New("user must be set")
	case strings.Contains(c.Service, "/"):
		return errors.New("service can't contain '/'")
	case strings.TrimSpace(c.KeyringPath) == "":
		return errors.New("keyring_path must be set")
	}
	if err := c.KDF.Validate(); err != nil {
		return fmt.Errorf("kdf: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
