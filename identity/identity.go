// Package identity implements the Identity Store: creation, persistence,
// and retrieval of named ed25519 signing keys under keys/.
package identity

import (
	"crypto/ed25519"
	crand "crypto/rand"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/faffhub/faff-go/canon"
	"github.com/faffhub/faff-go/ledgererr"
	"github.com/faffhub/faff-go/model"
	"github.com/faffhub/faff-go/storage"
)

// LockTimeout bounds how long a mutation waits on another process's lock
// before failing LockContention.
const LockTimeout = 5 * time.Second

// Store is the Identity Store.
type Store struct {
	storage *storage.Storage
	logger  *logrus.Logger
}

// New constructs a Store over an already-located ledger root.
func New(st *storage.Storage, logger *logrus.Logger) *Store {
	return &Store{storage: st, logger: logger}
}

// Create generates a fresh ed25519 keypair and persists it to
// keys/<name>.toml, restricted to owner read/write. Fails IdentityExists
// unless overwrite is set.
func (s *Store) Create(name string, overwrite bool) (model.Identity, error) {
	path := s.storage.KeyPath(name)
	var result model.Identity
	err := storage.WithExclusiveLock(path, LockTimeout, func() error {
		if _, err := os.Stat(path); err == nil && !overwrite {
			return ledgererr.New(ledgererr.IdentityExists, "identity %q already exists", name)
		}
		pub, sec, err := ed25519.GenerateKey(crand.Reader)
		if err != nil {
			return ledgererr.Wrap(ledgererr.IdentityExists, err, "generating keypair for %q", name)
		}
		id := model.Identity{Name: name, PublicKey: pub, SecretKey: sec}
		text := canon.MarshalIdentity(id)
		if err := storage.WriteAtomic(path, []byte(text), 0o600); err != nil {
			return err
		}
		result = id
		return nil
	})
	if err != nil {
		return model.Identity{}, err
	}
	s.logger.WithField("name", name).Info("created identity")
	return result, nil
}

// Get loads the named identity, if present.
func (s *Store) Get(name string) (model.Identity, bool, error) {
	path := s.storage.KeyPath(name)
	var id model.Identity
	found := false
	err := storage.WithSharedLock(path, LockTimeout, func() error {
		data, err := storage.ReadText(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		parsed, err := canon.UnmarshalIdentity(path, string(data))
		if err != nil {
			return err
		}
		id = parsed
		found = true
		return nil
	})
	if err != nil {
		return model.Identity{}, false, err
	}
	return id, found, nil
}

// List returns every known identity's name mapped to its public key.
func (s *Store) List() (map[string]ed25519.PublicKey, error) {
	entries, err := os.ReadDir(s.storage.KeysDir())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ed25519.PublicKey{}, nil
		}
		return nil, ledgererr.Wrap(ledgererr.IdentityNotFound, err, "listing %s", s.storage.KeysDir())
	}
	out := make(map[string]ed25519.PublicKey, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := trimTOMLSuffix(e.Name())
		if name == "" {
			continue
		}
		id, found, err := s.Get(name)
		if err != nil {
			return nil, err
		}
		if found {
			out[name] = id.PublicKey
		}
	}
	return out, nil
}

func trimTOMLSuffix(filename string) string {
	const suffix = ".toml"
	if len(filename) <= len(suffix) || filename[len(filename)-len(suffix):] != suffix {
		return ""
	}
	return filename[:len(filename)-len(suffix)]
}
