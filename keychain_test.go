// Copyright (c) 2025-2026 complex (complex@ft.hn)
// See LICENSE for licensing information

package keychain

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/sync/errgroup"
)

// testKDFParams keep argon2 cheap in tests.
var testKDFParams = KDFParams{Time: 1, MemoryKB: 64, Threads: 1}

// backend builds a fresh Store for one test.
type backend struct {
	name string
	new  func(t *testing.T) Store
}

var backends = []backend{
	{
		name: "memory",
		new: func(t *testing.T) Store {
			return NewMemoryStore()
		},
	},
	{
		name: "file",
		new: func(t *testing.T) Store {
			t.Helper()
			ring, err := OpenFileKeyring(
				filepath.Join(t.TempDir(), "keyring.yaml"),
				WithPassphrase("test passphrase"),
				WithKDFParams(testKDFParams),
			)
			if err != nil {
				t.Fatalf("open keyring: %v", err)
			}
			t.Cleanup(func() { ring.Close() })
			return ring.Namespace("testing", "user")
		},
	},
}

// forEachBackend runs fn once per Store implementation.
func forEachBackend(t *testing.T, fn func(t *testing.T, store Store, kc *Keychain)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store := b.new(t)
			fn(t, store, New(store))
		})
	}
}

// testEntropy returns deterministic 32 byte entropy for key number i.
func testEntropy(i int) []byte {
	return bytes.Repeat([]byte{byte(i + 1)}, 32)
}

func testMnemonic(t *testing.T, i int) string {
	t.Helper()
	words, err := EntropyToMnemonic(testEntropy(i))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return MnemonicString(words)
}

func TestAddKeyAndGetKey(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store, kc *Keychain) {
		is := is.New(t)

		added, err := kc.AddKey(keyInfo24.mnemonic, "primary", true)
		is.NoErr(err)
		is.Equal(added.Fingerprint, keyInfo24.fingerprint)
		sk, err := added.PrivateKey()
		is.NoErr(err)
		is.Equal(sk.Hex(), keyInfo24.privateKey)

		want, err := KeyDataFromMnemonic(keyInfo24.mnemonic, "primary")
		is.NoErr(err)

		got, err := kc.GetKey(keyInfo24.fingerprint, true)
		is.NoErr(err)
		is.True(got.Equal(want))

		public, err := kc.GetKey(keyInfo24.fingerprint, false)
		is.NoErr(err)
		is.True(public.Equal(want.WithoutSecrets()))

		_, err = kc.GetKey(keyInfo12.fingerprint, true)
		var notFound *FingerprintNotFoundError
		is.True(errors.As(err, &notFound))
		is.Equal(notFound.Fingerprint, keyInfo12.fingerprint)
	})
}

// TestAddKeyAbandonVector checks the master key of the all-zero mnemonic.
func TestAddKeyAbandonVector(t *testing.T) {
	is := is.New(t)
	kc := New(NewMemoryStore())

	kd, err := kc.AddKey("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about", "", true)
	is.NoErr(err)
	sk, err := kd.PrivateKey()
	is.NoErr(err)
	is.Equal(sk.Hex(), "11da8b4a2874a49dc42984b6aa127b68ef73adddc333319c36fd0446705204a9")
}

func TestAddKeyShortWords(t *testing.T) {
	is := is.New(t)
	kc := New(NewMemoryStore())

	kd, err := kc.AddKey("stea rely trum cake bann easy cons crea marr harv trul shri", "", true)
	is.NoErr(err)
	is.Equal(kd.Fingerprint, keyInfo12.fingerprint)

	m, err := kd.MnemonicString()
	is.NoErr(err)
	is.Equal(m, keyInfo12.mnemonic)
}

func TestAddKeyFingerprintExists(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store, kc *Keychain) {
		is := is.New(t)

		_, err := kc.AddKey(keyInfo24.mnemonic, "first", true)
		is.NoErr(err)

		_, err = kc.AddKey(keyInfo24.mnemonic, "second", true)
		var exists *FingerprintExistsError
		is.True(errors.As(err, &exists))
		is.Equal(exists.Fingerprint, keyInfo24.fingerprint)
		is.Equal(exists.Label, "first")
		is.True(errors.Is(err, ErrFingerprintExists))

		// A public-only add of the same key collides too.
		_, err = kc.AddKey(keyInfo24.bech32, "", false)
		is.True(errors.Is(err, ErrFingerprintExists))

		// Nothing was overwritten.
		label, ok, err := store.GetLabel(keyInfo24.fingerprint)
		is.NoErr(err)
		is.True(ok)
		is.Equal(label, "first")

		kd, err := kc.GetKey(keyInfo24.fingerprint, true)
		is.NoErr(err)
		is.True(kd.HasSecrets())

		keys, err := kc.GetKeys(false)
		is.NoErr(err)
		is.Equal(len(keys), 1)
	})
}

func TestAddKeyLabelExists(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store, kc *Keychain) {
		is := is.New(t)

		_, err := kc.AddKey(keyInfo24.mnemonic, "shared", true)
		is.NoErr(err)

		_, err = kc.AddKey(keyInfo12.mnemonic, "shared", true)
		var exists *LabelExistsError
		is.True(errors.As(err, &exists))
		is.Equal(exists.Fingerprint, keyInfo24.fingerprint)
		is.Equal(exists.Label, "shared")

		// The second key was not stored at all.
		_, found, err := store.LoadSecret(keyInfo12.fingerprint)
		is.NoErr(err)
		is.True(!found)
		_, found, err = store.GetLabel(keyInfo12.fingerprint)
		is.NoErr(err)
		is.True(!found)
	})
}

func TestAddKeyInvalidLabel(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store, kc *Keychain) {
		is := is.New(t)

		_, err := kc.AddKey(keyInfo24.mnemonic, "bad\tlabel", true)
		var invalid *LabelInvalidError
		is.True(errors.As(err, &invalid))
		is.Equal(invalid.Reason, "label can't contain newline or tab")

		fps, err := store.ListFingerprints()
		is.NoErr(err)
		is.Equal(len(fps), 0)
	})
}

func TestAddKeyInvalidMnemonic(t *testing.T) {
	is := is.New(t)
	kc := New(NewMemoryStore())

	_, err := kc.AddKey("ZZZZZZ abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about", "", true)
	is.True(errors.Is(err, ErrInvalidMnemonic))

	keys, err := kc.GetKeys(false)
	is.NoErr(err)
	is.Equal(len(keys), 0)
}

func TestAddPublicKey(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store, kc *Keychain) {
		is := is.New(t)

		kd, err := kc.AddKey(keyInfo12.bech32, "watch only", true)
		is.NoErr(err)
		is.Equal(kd.Fingerprint, keyInfo12.fingerprint)
		is.Equal(kd.PublicKey.Hex(), keyInfo12.publicKey)

		_, err = kd.PrivateKey()
		is.True(errors.Is(err, ErrSecretsMissing))

		got, err := kc.GetKey(keyInfo12.fingerprint, true)
		is.NoErr(err)
		is.True(got.Secrets == nil)
		is.Equal(got.Label, "watch only")

		payload, found, err := store.LoadSecret(keyInfo12.fingerprint)
		is.NoErr(err)
		is.True(found)
		is.Equal(len(payload), PublicKeySize)

		pks, err := kc.GetAllPublicKeys()
		is.NoErr(err)
		is.Equal(len(pks), 1)
		is.Equal(pks[0].Hex(), keyInfo12.publicKey)

		sks, err := kc.GetAllPrivateKeys()
		is.NoErr(err)
		is.Equal(len(sks), 0)

		_, ok, err := kc.GetFirstPrivateKey()
		is.NoErr(err)
		is.True(!ok)

		_, err = kc.GetPrivateKeyByFingerprint(keyInfo12.fingerprint)
		is.True(errors.Is(err, ErrSecretsMissing))
	})
}

func TestAddKeyWithoutPrivate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store, kc *Keychain) {
		is := is.New(t)

		kd, err := kc.AddKey(keyInfo24.mnemonic, "", false)
		is.NoErr(err)

		// The derived key is returned but not persisted.
		sk, err := kd.PrivateKey()
		is.NoErr(err)
		is.Equal(sk.Hex(), keyInfo24.privateKey)

		got, err := kc.GetKey(keyInfo24.fingerprint, true)
		is.NoErr(err)
		is.True(got.Secrets == nil)
	})
}

// TestTenKeys adds ten keys, checks enumeration order and then deletes them
// in reverse order.
func TestTenKeys(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store, kc *Keychain) {
		is := is.New(t)

		const n = 10
		var want []*KeyData
		for i := 0; i < n; i++ {
			label := fmt.Sprintf("key %d", i)
			kd, err := kc.AddKey(testMnemonic(t, i), label, true)
			is.NoErr(err)

			expected, err := KeyDataFromEntropy(testEntropy(i), label)
			is.NoErr(err)
			is.True(kd.Equal(expected))
			want = append(want, expected)
		}

		keys, err := kc.GetKeys(true)
		is.NoErr(err)
		is.Equal(len(keys), n)
		for i := range keys {
			is.True(keys[i].Equal(want[i]))
		}

		for i := n - 1; i >= 0; i-- {
			fp := want[i].Fingerprint
			is.NoErr(kc.DeleteKeyByFingerprint(fp))

			_, err := kc.GetKey(fp, false)
			is.True(errors.Is(err, ErrFingerprintNotFound))

			keys, err := kc.GetKeys(false)
			is.NoErr(err)
			is.Equal(len(keys), i)
			for j := range keys {
				is.True(keys[j].Equal(want[j].WithoutSecrets()))
			}
		}
	})
}

func TestDeleteKeyRemovesLabel(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store, kc *Keychain) {
		is := is.New(t)

		_, err := kc.AddKey(keyInfo24.mnemonic, "gone", true)
		is.NoErr(err)
		is.NoErr(kc.DeleteKeyByFingerprint(keyInfo24.fingerprint))

		_, found, err := store.GetLabel(keyInfo24.fingerprint)
		is.NoErr(err)
		is.True(!found)
		_, found, err = store.LoadSecret(keyInfo24.fingerprint)
		is.NoErr(err)
		is.True(!found)

		// The label is free again.
		_, err = kc.AddKey(keyInfo12.mnemonic, "gone", true)
		is.NoErr(err)

		err = kc.DeleteKeyByFingerprint(keyInfo24.fingerprint)
		is.True(errors.Is(err, ErrFingerprintNotFound))
	})
}

// TestDeleteKeyWithoutRecordDeleter covers stores that can only delete the
// secret and label separately.
func TestDeleteKeyWithoutRecordDeleter(t *testing.T) {
	is := is.New(t)

	store := struct{ Store }{NewMemoryStore()}
	kc := New(store)

	_, err := kc.AddKey(keyInfo24.mnemonic, "label", true)
	is.NoErr(err)
	is.NoErr(kc.DeleteKeyByFingerprint(keyInfo24.fingerprint))

	_, found, err := store.GetLabel(keyInfo24.fingerprint)
	is.NoErr(err)
	is.True(!found)
	_, found, err = store.LoadSecret(keyInfo24.fingerprint)
	is.NoErr(err)
	is.True(!found)
}

func TestDeleteAllKeys(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store, kc *Keychain) {
		is := is.New(t)

		_, err := kc.AddKey(keyInfo24.mnemonic, "a", true)
		is.NoErr(err)
		_, err = kc.AddKey(keyInfo12.bech32, "b", true)
		is.NoErr(err)

		is.NoErr(kc.DeleteAllKeys())

		keys, err := kc.GetKeys(false)
		is.NoErr(err)
		is.Equal(len(keys), 0)

		for _, fp := range []uint32{keyInfo24.fingerprint, keyInfo12.fingerprint} {
			_, found, err := store.GetLabel(fp)
			is.NoErr(err)
			is.True(!found)
		}
	})
}

func TestSetLabel(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store, kc *Keychain) {
		is := is.New(t)

		err := kc.SetLabel(keyInfo24.fingerprint, "nobody")
		is.True(errors.Is(err, ErrFingerprintNotFound))

		_, err = kc.AddKey(keyInfo24.mnemonic, "", true)
		is.NoErr(err)
		_, err = kc.AddKey(keyInfo12.mnemonic, "twelve", true)
		is.NoErr(err)

		is.NoErr(kc.SetLabel(keyInfo24.fingerprint, "twenty four"))
		kd, err := kc.GetKey(keyInfo24.fingerprint, false)
		is.NoErr(err)
		is.Equal(kd.Label, "twenty four")

		// Re-setting a key's own label is fine.
		is.NoErr(kc.SetLabel(keyInfo24.fingerprint, "twenty four"))

		err = kc.SetLabel(keyInfo24.fingerprint, "twelve")
		var exists *LabelExistsError
		is.True(errors.As(err, &exists))
		is.Equal(exists.Fingerprint, keyInfo12.fingerprint)

		err = kc.SetLabel(keyInfo24.fingerprint, "")
		is.True(errors.Is(err, ErrLabelInvalid))

		// Failed attempts left both labels alone.
		label, ok, err := store.GetLabel(keyInfo24.fingerprint)
		is.NoErr(err)
		is.True(ok)
		is.Equal(label, "twenty four")
		label, ok, err = store.GetLabel(keyInfo12.fingerprint)
		is.NoErr(err)
		is.True(ok)
		is.Equal(label, "twelve")
	})
}

func TestSetLabelInvalid(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store, kc *Keychain) {
		is := is.New(t)

		_, err := kc.AddKey(keyInfo24.mnemonic, "valid", true)
		is.NoErr(err)

		for _, tc := range invalidLabels {
			err := kc.SetLabel(keyInfo24.fingerprint, tc.label)
			var invalid *LabelInvalidError
			is.True(errors.As(err, &invalid))
			is.Equal(invalid.Label, tc.label)
			is.Equal(invalid.Reason, tc.reason)
		}

		kd, err := kc.GetKey(keyInfo24.fingerprint, false)
		is.NoErr(err)
		is.Equal(kd.Label, "valid")
	})
}

func TestDeleteLabel(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store, kc *Keychain) {
		is := is.New(t)

		err := kc.DeleteLabel(keyInfo24.fingerprint)
		is.True(errors.Is(err, ErrFingerprintNotFound))

		_, err = kc.AddKey(keyInfo24.mnemonic, "label", true)
		is.NoErr(err)

		is.NoErr(kc.DeleteLabel(keyInfo24.fingerprint))
		kd, err := kc.GetKey(keyInfo24.fingerprint, false)
		is.NoErr(err)
		is.Equal(kd.Label, "")

		// Deleting again is a no-op.
		is.NoErr(kc.DeleteLabel(keyInfo24.fingerprint))

		// The key itself survives.
		_, found, err := store.LoadSecret(keyInfo24.fingerprint)
		is.NoErr(err)
		is.True(found)
	})
}

func TestConvenienceViews(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store, kc *Keychain) {
		is := is.New(t)

		_, ok, err := kc.GetFirstPrivateKey()
		is.NoErr(err)
		is.True(!ok)
		_, ok, err = kc.GetFirstPublicKey()
		is.NoErr(err)
		is.True(!ok)

		_, err = kc.AddKey(keyInfo12.bech32, "", true)
		is.NoErr(err)
		_, err = kc.AddKey(keyInfo24.mnemonic, "", true)
		is.NoErr(err)

		first, ok, err := kc.GetFirstPrivateKey()
		is.NoErr(err)
		is.True(ok)
		is.Equal(first.Hex(), keyInfo24.privateKey)

		firstPK, ok, err := kc.GetFirstPublicKey()
		is.NoErr(err)
		is.True(ok)
		is.Equal(firstPK.Hex(), keyInfo12.publicKey)

		sks, err := kc.GetAllPrivateKeys()
		is.NoErr(err)
		is.Equal(len(sks), 1)

		pks, err := kc.GetAllPublicKeys()
		is.NoErr(err)
		is.Equal(len(pks), 2)
		is.Equal(pks[1].Hex(), keyInfo24.publicKey)

		sk, err := kc.GetPrivateKeyByFingerprint(keyInfo24.fingerprint)
		is.NoErr(err)
		is.Equal(sk.Hex(), keyInfo24.privateKey)
	})
}

// TestConcurrentAddSameLabel races several adds for one label; exactly one
// may win.
func TestConcurrentAddSameLabel(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store, kc *Keychain) {
		is := is.New(t)

		const n = 8
		mnemonics := make([]string, n)
		for i := range mnemonics {
			mnemonics[i] = testMnemonic(t, i)
		}

		var (
			wins   atomic.Int32
			losses atomic.Int32
			g      errgroup.Group
		)
		for _, m := range mnemonics {
			m := m
			g.Go(func() error {
				_, err := kc.AddKey(m, "contested", true)
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, ErrLabelExists):
					losses.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		is.NoErr(g.Wait())
		is.Equal(wins.Load(), int32(1))
		is.Equal(losses.Load(), int32(n-1))

		keys, err := kc.GetKeys(false)
		is.NoErr(err)
		is.Equal(len(keys), 1)
		is.Equal(keys[0].Label, "contested")
	})
}

// pausingStore runs onStore the first time a secret is stored, which is in
// the middle of the wrapping Keychain's AddKey.
type pausingStore struct {
	Store
	once    sync.Once
	onStore func()
}

func (p *pausingStore) StoreSecret(fingerprint uint32, payload []byte) error {
	p.once.Do(p.onStore)
	return p.Store.StoreSecret(fingerprint, payload)
}

func (p *pausingStore) LockStore() (func(), error) {
	return p.Store.(storeLocker).LockStore()
}

func openSharedKeyring(t *testing.T, path string) *FileKeyring {
	t.Helper()
	ring, err := OpenFileKeyring(path,
		WithPassphrase("test passphrase"),
		WithKDFParams(testKDFParams),
	)
	if err != nil {
		t.Fatalf("open keyring: %v", err)
	}
	t.Cleanup(func() { ring.Close() })
	return ring
}

// TestAddKeySameLabelAcrossKeyrings starts a second add of the same label,
// through another FileKeyring on the same file, while the first add is
// between its label check and its write.
func TestAddKeySameLabelAcrossKeyrings(t *testing.T) {
	is := is.New(t)

	path := filepath.Join(t.TempDir(), "keyring.yaml")
	ringA := openSharedKeyring(t, path)
	ringB := openSharedKeyring(t, path)

	kcB := New(ringB.Namespace("testing", "user"))
	resultB := make(chan error, 1)

	storeA := &pausingStore{Store: ringA.Namespace("testing", "user")}
	storeA.onStore = func() {
		go func() {
			_, err := kcB.AddKey(keyInfo12.mnemonic, "dup", true)
			resultB <- err
		}()
		// The second add has to wait for the first to finish.
		select {
		case err := <-resultB:
			t.Errorf("second add finished during the first: %v", err)
			resultB <- err
		case <-time.After(200 * time.Millisecond):
		}
	}
	kcA := New(storeA)

	_, err := kcA.AddKey(keyInfo24.mnemonic, "dup", true)
	is.NoErr(err)

	err = <-resultB
	var exists *LabelExistsError
	is.True(errors.As(err, &exists))
	is.Equal(exists.Fingerprint, keyInfo24.fingerprint)

	keys, err := kcB.GetKeys(false)
	is.NoErr(err)
	is.Equal(len(keys), 1)
	is.Equal(keys[0].Fingerprint, keyInfo24.fingerprint)
	is.Equal(keys[0].Label, "dup")
}

// TestConcurrentAddSameLabelAcrossKeychains races adds for one label through
// separate Keychains sharing a store; exactly one may win.
func TestConcurrentAddSameLabelAcrossKeychains(t *testing.T) {
	const n = 6

	setups := []struct {
		name   string
		stores func(t *testing.T) []Store
	}{
		{"memory", func(t *testing.T) []Store {
			store := NewMemoryStore()
			stores := make([]Store, n)
			for i := range stores {
				stores[i] = store
			}
			return stores
		}},
		{"file", func(t *testing.T) []Store {
			path := filepath.Join(t.TempDir(), "keyring.yaml")
			stores := make([]Store, n)
			for i := range stores {
				stores[i] = openSharedKeyring(t, path).Namespace("testing", "user")
			}
			return stores
		}},
	}
	for _, setup := range setups {
		t.Run(setup.name, func(t *testing.T) {
			is := is.New(t)

			stores := setup.stores(t)
			var (
				wins   atomic.Int32
				losses atomic.Int32
				g      errgroup.Group
			)
			for i, store := range stores {
				kc := New(store)
				m := testMnemonic(t, i)
				g.Go(func() error {
					_, err := kc.AddKey(m, "contested", true)
					switch {
					case err == nil:
						wins.Add(1)
					case errors.Is(err, ErrLabelExists):
						losses.Add(1)
					default:
						return err
					}
					return nil
				})
			}
			is.NoErr(g.Wait())
			is.Equal(wins.Load(), int32(1))
			is.Equal(losses.Load(), int32(n-1))

			keys, err := New(stores[0]).GetKeys(false)
			is.NoErr(err)
			is.Equal(len(keys), 1)
			is.Equal(keys[0].Label, "contested")
		})
	}
}

// TestConcurrentReadersDuringDeletes checks that readers never see a key
// whose label belongs to a deleted record, or a partially deleted record.
func TestConcurrentReadersDuringDeletes(t *testing.T) {
	is := is.New(t)

	store := NewMemoryStore()
	kc := New(store)

	const n = 6
	labels := make(map[uint32]string)
	for i := 0; i < n; i++ {
		label := fmt.Sprintf("key %d", i)
		kd, err := kc.AddKey(testMnemonic(t, i), label, true)
		is.NoErr(err)
		labels[kd.Fingerprint] = label
	}

	var g errgroup.Group
	g.Go(func() error {
		for fp := range labels {
			if err := kc.DeleteKeyByFingerprint(fp); err != nil {
				return err
			}
		}
		return nil
	})
	for r := 0; r < 4; r++ {
		g.Go(func() error {
			for i := 0; i < 50; i++ {
				keys, err := kc.GetKeys(false)
				if err != nil {
					return err
				}
				for _, kd := range keys {
					if kd.Label != labels[kd.Fingerprint] {
						return fmt.Errorf("key %d has label %q", kd.Fingerprint, kd.Label)
					}
				}
			}
			return nil
		})
	}
	is.NoErr(g.Wait())

	fps, err := store.ListFingerprints()
	is.NoErr(err)
	is.Equal(len(fps), 0)
	for fp := range labels {
		_, found, err := store.GetLabel(fp)
		is.NoErr(err)
		is.True(!found)
	}
}

func TestKeychainMetrics(t *testing.T) {
	is := is.New(t)

	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	is.NoErr(err)

	kc := New(NewMemoryStore(), WithMetrics(m))

	_, err = kc.AddKey(keyInfo24.mnemonic, "", true)
	is.NoErr(err)
	_, err = kc.AddKey(keyInfo24.mnemonic, "", true)
	is.True(errors.Is(err, ErrFingerprintExists))
	_, err = kc.AddKey(keyInfo12.bech32, "", true)
	is.NoErr(err)

	is.Equal(testutil.ToFloat64(m.operations.WithLabelValues("add_key", "ok")), 2.0)
	is.Equal(testutil.ToFloat64(m.operations.WithLabelValues("add_key", "fingerprint_exists")), 1.0)
	is.Equal(testutil.ToFloat64(m.keys.WithLabelValues("private")), 1.0)
	is.Equal(testutil.ToFloat64(m.keys.WithLabelValues("public_only")), 1.0)

	_, err = kc.GetKey(1, false)
	is.True(errors.Is(err, ErrFingerprintNotFound))
	is.Equal(testutil.ToFloat64(m.operations.WithLabelValues("get_key", "fingerprint_not_found")), 1.0)

	is.NoErr(kc.DeleteAllKeys())
	is.Equal(testutil.ToFloat64(m.keys.WithLabelValues("private")), 0.0)

	// Registering twice on the same registry fails.
	_, err = NewMetrics(reg)
	is.True(err != nil)
}

func TestOpenFromConfig(t *testing.T) {
	is := is.New(t)

	cfg := DefaultConfig()
	cfg.KeyringPath = filepath.Join(t.TempDir(), "keys", "keyring.yaml")
	cfg.KDF = testKDFParams

	kc, err := Open(cfg, "hunter2")
	is.NoErr(err)
	_, err = kc.AddKey(keyInfo24.mnemonic, "persisted", true)
	is.NoErr(err)
	is.NoErr(kc.Close())

	kc, err = Open(cfg, "hunter2")
	is.NoErr(err)
	defer kc.Close()

	kd, err := kc.GetKey(keyInfo24.fingerprint, true)
	is.NoErr(err)
	is.Equal(kd.Label, "persisted")
	sk, err := kd.PrivateKey()
	is.NoErr(err)
	is.Equal(sk.Hex(), keyInfo24.privateKey)

	_, err = Open(cfg, "wrong")
	is.True(errors.Is(err, ErrBadPassphrase))
}
