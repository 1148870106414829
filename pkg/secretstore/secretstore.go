package secretstore

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// ErrNotOpened is returned by every accessor on a nil or closed store.
var ErrNotOpened = errors.New("secretstore: not opened")

// Store is a small KV wrapper over Badger used to keep the API agent key off
// the environment. Encryption at rest comes from Badger's own options.
type Store struct {
	db *badger.DB
}

type OpenOptions struct {
	Path          string
	EncryptionKey []byte // 32 bytes; nil opens the DB unencrypted
	ReadOnly      bool
}

func Open(opts OpenOptions) (*Store, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("secretstore: path is required")
	}
	bopts := badger.DefaultOptions(opts.Path).
		WithLogger(nil).
		WithReadOnly(opts.ReadOnly)
	if len(opts.EncryptionKey) > 0 {
		// encrypted workloads need an index cache
		bopts = bopts.
			WithEncryptionKey(opts.EncryptionKey).
			WithIndexCacheSize(16 << 20)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, errors.Wrapf(err, "secretstore: open %s", opts.Path)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func normalizeKey(key string) ([]byte, error) {
	k := []byte(strings.TrimSpace(key))
	if len(k) == 0 {
		return nil, errors.New("secretstore: key is empty")
	}
	return k, nil
}

// GetString returns the value and whether the key exists.
func (s *Store) GetString(key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, ErrNotOpened
	}
	k, err := normalizeKey(key)
	if err != nil {
		return "", false, err
	}
	var (
		out   string
		found bool
	)
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			out = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false, errors.Wrapf(err, "secretstore: get %s", key)
	}
	return out, found, nil
}

func (s *Store) SetString(key string, val string) error {
	if s == nil || s.db == nil {
		return ErrNotOpened
	}
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, []byte(val))
	})
}

func (s *Store) Delete(key string) error {
	if s == nil || s.db == nil {
		return ErrNotOpened
	}
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	})
}

// ParseKey expects 32 bytes, hex (optionally 0x-prefixed) or base64.
// Returns nil for empty input.
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if b, err := hex.DecodeString(strings.TrimPrefix(raw, "0x")); err == nil {
		if len(b) != 32 {
			return nil, errors.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		if len(b) != 32 {
			return nil, errors.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}
	return nil, errors.New("key must be base64(32 bytes) or hex(32 bytes)")
}
