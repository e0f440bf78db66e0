package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/neogan74/droppy-api/internal/logger"
)

const (
	recordPrefix = "dry:"
	gcInterval   = 5 * time.Minute
	gcDiscard    = 0.5
)

// BadgerEngine implements Engine using BadgerDB. Expiration is native:
// records written with a TTL become invisible to reads once it elapses and
// are dropped during compaction.
type BadgerEngine struct {
	db        *badger.DB
	log       logger.Logger
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewBadgerEngine opens (or creates) a BadgerDB database in dataDir
func NewBadgerEngine(dataDir string, syncWrites bool, log logger.Logger) (*BadgerEngine, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	opts := badger.DefaultOptions(dataDir)
	opts.SyncWrites = syncWrites
	opts.Logger = nil

	// Records are tiny and short lived; keep tables and value logs small.
	opts.ValueLogFileSize = 16 << 20
	opts.MemTableSize = 16 << 20
	opts.NumMemtables = 3
	opts.Compression = options.Snappy

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	engine := &BadgerEngine{
		db:   db,
		log:  log,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go engine.runGarbageCollection()

	log.Info("BadgerDB store initialized",
		logger.String("data_dir", dataDir),
		logger.Bool("sync_writes", syncWrites))

	return engine, nil
}

func (b *BadgerEngine) runGarbageCollection() {
	defer close(b.done)

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(gcDiscard)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				b.log.Warn("BadgerDB garbage collection failed", logger.Error(err))
			}
		case <-b.stop:
			return
		}
	}
}

func (b *BadgerEngine) Get(_ context.Context, key string) (string, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordPrefix + key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("badger get %q: %w", key, err)
	}
	return string(value), nil
}

func (b *BadgerEngine) Put(_ context.Context, key, value string, opts PutOptions) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(recordPrefix+key), []byte(value))
		if opts.ExpirationTTL > 0 {
			entry = entry.WithTTL(opts.ExpirationTTL)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("badger put %q: %w", key, err)
	}
	return nil
}

// Close stops the GC loop and closes the database. It is safe to call more
// than once.
func (b *BadgerEngine) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stop)
		<-b.done
		err = b.db.Close()
	})
	return err
}
