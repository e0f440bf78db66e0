package persistence

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/neogan74/droppy-api/internal/logger"
	bolt "go.etcd.io/bbolt"
)

var dryBucket = []byte("dry")

// expiryHeaderSize is the length of the big-endian expiry prefix stored in
// front of every value: unix milliseconds, zero for no expiry.
const expiryHeaderSize = 8

var errCorruptRecord = errors.New("corrupt record")

// BoltEngine implements Engine on top of a single bbolt file. Expired
// records are hidden on read and reclaimed by Sweep.
type BoltEngine struct {
	db  *bolt.DB
	log logger.Logger
	now func() time.Time
}

// NewBoltEngine opens (or creates) the database file at path
func NewBoltEngine(path string, syncWrites bool, log logger.Logger) (*BoltEngine, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second, NoSync: !syncWrites})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(dryBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	log.Info("bbolt store initialized", logger.String("path", path))

	return &BoltEngine{db: db, log: log, now: time.Now}, nil
}

func (b *BoltEngine) Get(_ context.Context, key string) (string, error) {
	var (
		value string
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(dryBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		expiresAt, payload, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		if isExpired(expiresAt, b.now()) {
			return nil
		}
		// raw is only valid inside the transaction
		value = string(payload)
		found = true
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("bolt get %q: %w", key, err)
	}
	if !found {
		return "", ErrKeyNotFound
	}
	return value, nil
}

func (b *BoltEngine) Put(_ context.Context, key, value string, opts PutOptions) error {
	var expiresAt int64
	if opts.ExpirationTTL > 0 {
		expiresAt = b.now().Add(opts.ExpirationTTL).UnixMilli()
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(dryBucket).Put([]byte(key), encodeRecord(expiresAt, value))
	})
	if err != nil {
		return fmt.Errorf("bolt put %q: %w", key, err)
	}
	return nil
}

// Sweep deletes expired records and returns how many were removed
func (b *BoltEngine) Sweep(_ context.Context) (int, error) {
	now := b.now()
	removed := 0

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(dryBucket)

		var expired [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			expiresAt, _, err := decodeRecord(v)
			if err != nil {
				b.log.Warn("Dropping corrupt record", logger.String("key", string(k)))
			}
			if err != nil || isExpired(expiresAt, now) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		removed = len(expired)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("bolt sweep: %w", err)
	}
	return removed, nil
}

func (b *BoltEngine) Close() error {
	return b.db.Close()
}

func encodeRecord(expiresAt int64, value string) []byte {
	buf := make([]byte, expiryHeaderSize+len(value))
	binary.BigEndian.PutUint64(buf[:expiryHeaderSize], uint64(expiresAt))
	copy(buf[expiryHeaderSize:], value)
	return buf
}

func decodeRecord(raw []byte) (int64, []byte, error) {
	if len(raw) < expiryHeaderSize {
		return 0, nil, errCorruptRecord
	}
	return int64(binary.BigEndian.Uint64(raw[:expiryHeaderSize])), raw[expiryHeaderSize:], nil
}

func isExpired(expiresAtMillis int64, now time.Time) bool {
	return expiresAtMillis > 0 && now.UnixMilli() >= expiresAtMillis
}
