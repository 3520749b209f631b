// Copyright (c) 2025-2026 complex (complex@ft.hn)
// See LICENSE for licensing information

package keychain

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

// defaultPassphrase encrypts keyring files when the user hasn't set a
// passphrase. The file is still unreadable without it, but the protection
// then only comes from file permissions.
const defaultPassphrase = "$ keychain passphrase set DEFAULT_PASSPHRASE_IF_NO_MASTER_PASSPHRASE"

// keyringContent is the decrypted keyring document.
type keyringContent struct {
	Namespaces map[string]*namespaceContent `yaml:"namespaces"`
}

// namespaceContent holds the secrets and labels of one (service, user)
// namespace. Order records insertion order of the secrets.
type namespaceContent struct {
	Order   []uint32          `yaml:"order"`
	Secrets map[uint32]string `yaml:"secrets"`
	Labels  map[uint32]string `yaml:"labels,omitempty"`
}

func newKeyringContent() *keyringContent {
	return &keyringContent{Namespaces: make(map[string]*namespaceContent)}
}

// namespace returns the named namespace, creating it if create is set.
// It returns nil when the namespace doesn't exist and create is false.
func (c *keyringContent) namespace(name string, create bool) *namespaceContent {
	ns, ok := c.Namespaces[name]
	if !ok && create {
		ns = &namespaceContent{
			Secrets: make(map[uint32]string),
			Labels:  make(map[uint32]string),
		}
		c.Namespaces[name] = ns
	}
	if ns != nil {
		if ns.Secrets == nil {
			ns.Secrets = make(map[uint32]string)
		}
		if ns.Labels == nil {
			ns.Labels = make(map[uint32]string)
		}
	}
	return ns
}

// FileOption configures OpenFileKeyring.
type FileOption func(*fileOptions)

type fileOptions struct {
	passphrase string
	hint       string
	params     KDFParams
}

// WithPassphrase sets the passphrase used to decrypt the keyring and, for a
// new file, to encrypt it. An empty passphrase selects the built-in default.
func WithPassphrase(passphrase string) FileOption {
	return func(o *fileOptions) {
		o.passphrase = passphrase
	}
}

// WithPassphraseHint stores a hint next to a newly created keyring.
func WithPassphraseHint(hint string) FileOption {
	return func(o *fileOptions) {
		o.hint = hint
	}
}

// WithKDFParams sets the argon2id parameters for newly written keys. An
// existing file keeps the parameters it was written with until its
// passphrase is changed.
func WithKDFParams(params KDFParams) FileOption {
	return func(o *fileOptions) {
		o.params = params
	}
}

// FileKeyring is an encrypted keyring file. The decrypted document is
// cached in memory and reloaded whenever the file on disk changes, so
// several processes can share one keyring. Writers are serialized across
// processes with a lock file next to the keyring.
type FileKeyring struct {
	path string
	lock *flock.Flock

	// tx is held for the duration of a LockStore section.
	tx sync.Mutex

	mu         sync.Mutex
	held       bool // lock file held exclusively by a LockStore section
	passphrase string
	hint       string
	params     KDFParams
	sealer     *sealer
	content    *keyringContent
	lastRaw    []byte
	closed     bool
}

// OpenFileKeyring opens the keyring at path, creating it (and its directory)
// if needed. The passphrase is verified against an existing file.
func OpenFileKeyring(path string, opts ...FileOption) (*FileKeyring, error) {
	o := fileOptions{params: DefaultKDFParams}
	for _, opt := range opts {
		opt(&o)
	}
	if o.passphrase == "" {
		o.passphrase = defaultPassphrase
	}
	if err := o.params.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("could not create keyring directory: %w", err)
	}

	k := &FileKeyring{
		path:       path,
		lock:       flock.New(path + ".lock"),
		passphrase: o.passphrase,
		hint:       o.hint,
		params:     o.params,
	}

	// A new keyring is written up front so the passphrase and permissions
	// are fixed from the start. An existing one is read to check the
	// passphrase.
	noop := func(*keyringContent) error { return nil }
	var err error
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		err = k.update(noop)
	} else {
		err = k.read(noop)
	}
	if err != nil {
		return nil, err
	}

	log.Debugf("Opened keyring file %s", path)
	return k, nil
}

// Path returns the keyring file path.
func (k *FileKeyring) Path() string {
	return k.path
}

// Namespace returns the Store for one (service, user) namespace of the
// keyring.
func (k *FileKeyring) Namespace(service, user string) Store {
	return &fileNamespace{keyring: k, name: service + "/" + user}
}

// PassphraseHint returns the hint stored with the keyring, if any.
func (k *FileKeyring) PassphraseHint() (string, error) {
	var hint string
	err := k.read(func(*keyringContent) error {
		hint = k.hint
		return nil
	})
	return hint, err
}

// ReadPassphraseHint returns the hint of the keyring at path without
// decrypting it. A missing file has no hint.
func ReadPassphraseHint(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("could not read keyring: %w", err)
	}
	env, err := parseEnvelope(raw)
	if err != nil {
		return "", err
	}
	return env.PassphraseHint, nil
}

// IsDefaultPassphrase reports whether the keyring is protected by the
// built-in default passphrase only.
func (k *FileKeyring) IsDefaultPassphrase() bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.passphrase == defaultPassphrase
}

// ChangePassphrase re-encrypts the keyring under next with a fresh salt.
// current must match the passphrase the file is encrypted with. An empty
// next reverts to the built-in default.
func (k *FileKeyring) ChangePassphrase(current, next, hint string) error {
	if current == "" {
		current = defaultPassphrase
	}
	if next == "" {
		next = defaultPassphrase
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return ErrKeyringClosed
	}
	release, err := k.acquireLocked(true)
	if err != nil {
		return err
	}
	defer release()

	if err := k.refreshLocked(); err != nil {
		return err
	}

	// Verify current against the file itself rather than our cached
	// passphrase so a concurrent change by another process is detected.
	raw, err := os.ReadFile(k.path)
	if err != nil {
		return fmt.Errorf("could not read keyring: %w", err)
	}
	env, err := parseEnvelope(raw)
	if err != nil {
		return err
	}
	check, err := sealerFor(current, env)
	if err != nil {
		return err
	}
	_, err = check.open(env)
	check.wipe()
	if err != nil {
		return err
	}

	s, err := newSealer(next, k.params)
	if err != nil {
		return err
	}
	old, oldHint := k.sealer, k.hint
	k.sealer = s
	k.hint = hint
	if err := k.writeLocked(); err != nil {
		s.wipe()
		k.sealer, k.hint = old, oldHint
		return err
	}
	if old != nil {
		old.wipe()
	}
	k.passphrase = next

	log.Infof("Changed keyring passphrase for %s", k.path)
	return nil
}

// Close drops the cached key material. The keyring can't be used after.
func (k *FileKeyring) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil
	}
	k.closed = true
	if k.sealer != nil {
		k.sealer.wipe()
	}
	k.content = nil
	k.lastRaw = nil
	return nil
}

// read runs fn against an up to date view of the keyring.
func (k *FileKeyring) read(fn func(*keyringContent) error) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return ErrKeyringClosed
	}
	release, err := k.acquireLocked(false)
	if err != nil {
		return err
	}
	defer release()

	if err := k.refreshLocked(); err != nil {
		return err
	}
	return fn(k.content)
}

// update runs fn against an up to date view of the keyring and writes the
// result back. Nothing is written if fn fails.
func (k *FileKeyring) update(fn func(*keyringContent) error) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return ErrKeyringClosed
	}
	release, err := k.acquireLocked(true)
	if err != nil {
		return err
	}
	defer release()

	if err := k.refreshLocked(); err != nil {
		return err
	}

	// Work on a copy so a failing fn leaves the cache untouched.
	working := cloneContent(k.content)
	if err := fn(working); err != nil {
		return err
	}

	prev := k.content
	k.content = working
	if err := k.writeLocked(); err != nil {
		k.content = prev
		return err
	}
	return nil
}

// lockExclusive takes the lock file for writing and keeps it until unlock is
// called. Calls made in between reuse it instead of locking per call; they
// still reload the file, which no other process can change meanwhile.
func (k *FileKeyring) lockExclusive() (unlock func(), err error) {
	k.tx.Lock()

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		k.tx.Unlock()
		return nil, ErrKeyringClosed
	}
	if err := k.lock.Lock(); err != nil {
		k.tx.Unlock()
		return nil, fmt.Errorf("could not lock keyring: %w", err)
	}
	k.held = true

	return func() {
		k.mu.Lock()
		k.held = false
		k.unlockFile()
		k.mu.Unlock()
		k.tx.Unlock()
	}, nil
}

// acquireLocked takes the lock file for one call unless a LockStore section
// already holds it. k.mu must be held.
func (k *FileKeyring) acquireLocked(exclusive bool) (release func(), err error) {
	if k.held {
		return func() {}, nil
	}
	lock := k.lock.RLock
	if exclusive {
		lock = k.lock.Lock
	}
	if err := lock(); err != nil {
		return nil, fmt.Errorf("could not lock keyring: %w", err)
	}
	return k.unlockFile, nil
}

func (k *FileKeyring) unlockFile() {
	if err := k.lock.Unlock(); err != nil {
		log.Warnf("Could not unlock keyring %s: %v", k.path, err)
	}
}

// refreshLocked reloads the keyring when the file differs from what we
// last read or wrote.
func (k *FileKeyring) refreshLocked() error {
	raw, err := os.ReadFile(k.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		k.content = newKeyringContent()
		k.lastRaw = nil
		return nil
	case err != nil:
		return fmt.Errorf("could not read keyring: %w", err)
	}

	if k.content != nil && bytes.Equal(raw, k.lastRaw) {
		return nil
	}

	env, err := parseEnvelope(raw)
	if err != nil {
		return err
	}
	if k.sealer == nil || !k.sealer.matches(env) {
		s, err := sealerFor(k.passphrase, env)
		if err != nil {
			return err
		}
		if k.sealer != nil {
			k.sealer.wipe()
		}
		k.sealer = s
	}

	plaintext, err := k.sealer.open(env)
	if err != nil {
		return err
	}
	defer zeroBytes(plaintext)

	content := newKeyringContent()
	if err := yaml.Unmarshal(plaintext, content); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyringCorrupt, err)
	}
	if content.Namespaces == nil {
		content.Namespaces = make(map[string]*namespaceContent)
	}

	if k.content != nil {
		log.Debugf("Reloaded keyring %s after external change", k.path)
	}
	k.content = content
	k.hint = env.PassphraseHint
	k.lastRaw = raw
	return nil
}

// writeLocked encrypts the cached content and atomically replaces the
// keyring file.
func (k *FileKeyring) writeLocked() error {
	if k.sealer == nil {
		s, err := newSealer(k.passphrase, k.params)
		if err != nil {
			return err
		}
		k.sealer = s
	}

	plaintext, err := yaml.Marshal(k.content)
	if err != nil {
		return fmt.Errorf("could not encode keyring: %w", err)
	}
	defer zeroBytes(plaintext)

	env, err := k.sealer.seal(plaintext, k.hint)
	if err != nil {
		return fmt.Errorf("could not encrypt keyring: %w", err)
	}
	raw, err := yaml.Marshal(env)
	if err != nil {
		return fmt.Errorf("could not encode keyring: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(k.path), filepath.Base(k.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("could not write keyring: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write keyring: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write keyring: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write keyring: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not write keyring: %w", err)
	}
	if err := os.Rename(tmpName, k.path); err != nil {
		return fmt.Errorf("could not write keyring: %w", err)
	}

	k.lastRaw = raw
	return nil
}

func cloneContent(c *keyringContent) *keyringContent {
	out := newKeyringContent()
	for name, ns := range c.Namespaces {
		cp := &namespaceContent{
			Order:   append([]uint32(nil), ns.Order...),
			Secrets: make(map[uint32]string, len(ns.Secrets)),
			Labels:  make(map[uint32]string, len(ns.Labels)),
		}
		for fp, s := range ns.Secrets {
			cp.Secrets[fp] = s
		}
		for fp, l := range ns.Labels {
			cp.Labels[fp] = l
		}
		out.Namespaces[name] = cp
	}
	return out
}

// fileNamespace is the Store view of one keyring namespace.
type fileNamespace struct {
	keyring *FileKeyring
	name    string
}

var (
	_ Store         = (*fileNamespace)(nil)
	_ storeLocker   = (*fileNamespace)(nil)
	_ recordDeleter = (*fileNamespace)(nil)
)

// LockStore holds the keyring's lock file exclusively, shutting out other
// processes and other FileKeyring values opened on the same path.
func (f *fileNamespace) LockStore() (func(), error) {
	return f.keyring.lockExclusive()
}

func (f *fileNamespace) StoreSecret(fingerprint uint32, payload []byte) error {
	return f.keyring.update(func(c *keyringContent) error {
		ns := c.namespace(f.name, true)
		if _, ok := ns.Secrets[fingerprint]; !ok {
			ns.Order = append(ns.Order, fingerprint)
		}
		ns.Secrets[fingerprint] = hex.EncodeToString(payload)
		return nil
	})
}

func (f *fileNamespace) LoadSecret(fingerprint uint32) ([]byte, bool, error) {
	var (
		payload []byte
		found   bool
	)
	err := f.keyring.read(func(c *keyringContent) error {
		ns := c.namespace(f.name, false)
		if ns == nil {
			return nil
		}
		s, ok := ns.Secrets[fingerprint]
		if !ok {
			return nil
		}
		b, err := hex.DecodeString(s)
		if err != nil {
			return fmt.Errorf("%w: fingerprint %d", ErrCorruptSecret, fingerprint)
		}
		payload, found = b, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return payload, found, nil
}

func (f *fileNamespace) DeleteSecret(fingerprint uint32) error {
	return f.keyring.update(func(c *keyringContent) error {
		ns := c.namespace(f.name, false)
		if ns == nil {
			return nil
		}
		delete(ns.Secrets, fingerprint)
		ns.Order = removeFingerprint(ns.Order, fingerprint)
		return nil
	})
}

func (f *fileNamespace) ListFingerprints() ([]uint32, error) {
	var fps []uint32
	err := f.keyring.read(func(c *keyringContent) error {
		ns := c.namespace(f.name, false)
		if ns == nil {
			return nil
		}
		fps = append(fps, ns.Order...)
		return nil
	})
	return fps, err
}

func (f *fileNamespace) SetLabel(fingerprint uint32, label string) error {
	return f.keyring.update(func(c *keyringContent) error {
		c.namespace(f.name, true).Labels[fingerprint] = label
		return nil
	})
}

func (f *fileNamespace) GetLabel(fingerprint uint32) (string, bool, error) {
	var (
		label string
		found bool
	)
	err := f.keyring.read(func(c *keyringContent) error {
		ns := c.namespace(f.name, false)
		if ns == nil {
			return nil
		}
		label, found = ns.Labels[fingerprint]
		return nil
	})
	return label, found, err
}

func (f *fileNamespace) DeleteLabel(fingerprint uint32) error {
	return f.keyring.update(func(c *keyringContent) error {
		ns := c.namespace(f.name, false)
		if ns == nil {
			return nil
		}
		delete(ns.Labels, fingerprint)
		return nil
	})
}

// DeleteRecord drops the secret and label of fingerprint in one write.
func (f *fileNamespace) DeleteRecord(fingerprint uint32) error {
	return f.keyring.update(func(c *keyringContent) error {
		ns := c.namespace(f.name, false)
		if ns == nil {
			return nil
		}
		delete(ns.Secrets, fingerprint)
		delete(ns.Labels, fingerprint)
		ns.Order = removeFingerprint(ns.Order, fingerprint)
		return nil
	})
}

func (f *fileNamespace) Clear() error {
	return f.keyring.update(func(c *keyringContent) error {
		delete(c.Namespaces, f.name)
		return nil
	})
}
