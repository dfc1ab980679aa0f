package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/pixperk/lockttl/pkg/crypto"
	"github.com/pixperk/lockttl/pkg/types"
)

var spoolBucket = []byte("deadletter")

// Spool is a local on-disk sink of last resort, used when the primary
// dead-letter queue is unreachable. Entries are encrypted before they
// touch disk, same key scheme as the rest of the pipeline.
type Spool struct {
	db     *bolt.DB
	cipher crypto.Cipher
}

func OpenSpool(path string, cipher crypto.Cipher) (*Spool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open spool %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(spoolBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create spool bucket: %w", err)
	}

	return &Spool{db: db, cipher: cipher}, nil
}

func (s *Spool) Enqueue(ctx context.Context, entry types.DeadLetterEntry) error {
	plain, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal spool entry %s: %w", entry.ID, err)
	}
	sealed, err := s.cipher.Encrypt(ctx, plain)
	if err != nil {
		return fmt.Errorf("encrypt spool entry %s: %w", entry.ID, err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(spoolBucket).Put([]byte(entry.ID), sealed)
	})
}

// Entries decrypts and returns everything in the spool, for offline triage.
func (s *Spool) Entries(ctx context.Context) ([]types.DeadLetterEntry, error) {
	var sealed [][]byte
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(spoolBucket).ForEach(func(_, v []byte) error {
			cp := make([]byte, len(v))
			copy(cp, v)
			sealed = append(sealed, cp)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	entries := make([]types.DeadLetterEntry, 0, len(sealed))
	for _, blob := range sealed {
		plain, err := s.cipher.Decrypt(ctx, blob)
		if err != nil {
			return nil, fmt.Errorf("decrypt spool entry: %w", err)
		}
		var entry types.DeadLetterEntry
		if err := json.Unmarshal(plain, &entry); err != nil {
			return nil, fmt.Errorf("unmarshal spool entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Spool) Close() error {
	return s.db.Close()
}
