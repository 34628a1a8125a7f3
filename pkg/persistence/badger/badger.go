package badger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Layr-Labs/approval-signer-go/pkg/persistence"
	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Key prefixes for namespacing
const (
	keyPrefixApproval    = "approval:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"

	maxConflictRetries = 10
)

// BadgerPersistence is a durable nonce ledger backed by Badger.
// Suitable for a single signer process; use the redis backend when several processes share a signer.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerPersistence opens (or creates) the ledger at dataPath.
// SyncWrites is enabled so a consumed nonce survives a crash immediately after signing.
// A background goroutine is started for garbage collection.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger nonce ledger initialized", "path", absPath)

	return bp, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}
		return nil
	})
}

func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badgerdb.ErrNoRewrite) {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func keyPrefix(key persistence.NonceKey) []byte {
	return []byte(fmt.Sprintf("%s%s:", keyPrefixApproval, key.String()))
}

// recordKey zero-pads the nonce so that badger's byte ordering is nonce ordering.
func recordKey(key persistence.NonceKey, nonce uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", keyPrefixApproval, key.String(), nonce))
}

func (b *BadgerPersistence) checkOpen() error {
	if b.closed {
		return persistence.ErrClosed
	}
	return nil
}

// update runs fn in a read-write transaction, retrying when a concurrent writer wins the commit.
func (b *BadgerPersistence) update(fn func(txn *badgerdb.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = b.db.Update(fn)
		if !errors.Is(err, badgerdb.ErrConflict) {
			return err
		}
		b.logger.Sugar().Debugw("Badger transaction conflict, retrying", "attempt", attempt+1)
	}
	return err
}

func readRecord(txn *badgerdb.Txn, k []byte) (*persistence.ApprovalRecord, error) {
	item, err := txn.Get(k)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var data []byte
	if err := item.Value(func(val []byte) error {
		data = append([]byte{}, val...)
		return nil
	}); err != nil {
		return nil, err
	}
	return persistence.UnmarshalApprovalRecord(data)
}

func (b *BadgerPersistence) ConsumeNonce(record *persistence.ApprovalRecord) error {
	if record == nil {
		return fmt.Errorf("cannot consume nonce for nil ApprovalRecord")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkOpen(); err != nil {
		return err
	}

	data, err := persistence.MarshalApprovalRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ApprovalRecord: %w", err)
	}

	k := recordKey(record.Key, record.Nonce)
	return b.update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(k)
		if err == nil {
			return persistence.ErrNonceConsumed
		}
		if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		return txn.Set(k, data)
	})
}

func (b *BadgerPersistence) ReleaseNonce(key persistence.NonceKey, nonce uint64) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkOpen(); err != nil {
		return err
	}

	k := recordKey(key, nonce)
	return b.update(func(txn *badgerdb.Txn) error {
		record, err := readRecord(txn, k)
		if err != nil {
			return err
		}
		if record == nil {
			return nil
		}
		if record.State == persistence.ApprovalState_Submitted {
			return persistence.ErrNonceSubmitted
		}
		return txn.Delete(k)
	})
}

func (b *BadgerPersistence) IsNonceConsumed(key persistence.NonceKey, nonce uint64) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkOpen(); err != nil {
		return false, err
	}

	var consumed bool
	err := b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(recordKey(key, nonce))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		consumed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to check nonce: %w", err)
	}
	return consumed, nil
}

func (b *BadgerPersistence) LoadApprovalRecord(key persistence.NonceKey, nonce uint64) (*persistence.ApprovalRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var record *persistence.ApprovalRecord
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		record, err = readRecord(txn, recordKey(key, nonce))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load ApprovalRecord: %w", err)
	}
	return record, nil
}

// ListApprovalRecords iterates the key's prefix; records come back in nonce order.
func (b *BadgerPersistence) ListApprovalRecords(key persistence.NonceKey) ([]*persistence.ApprovalRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	records := make([]*persistence.ApprovalRecord, 0)
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = keyPrefix(key)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			var data []byte
			if err := item.Value(func(val []byte) error {
				data = append([]byte{}, val...)
				return nil
			}); err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			record, err := persistence.UnmarshalApprovalRecord(data)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to unmarshal ApprovalRecord, skipping",
					"key", string(item.Key()), "error", err)
				continue
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ApprovalRecords: %w", err)
	}
	return records, nil
}

func (b *BadgerPersistence) MarkSubmitted(key persistence.NonceKey, nonce uint64, txHash common.Hash) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkOpen(); err != nil {
		return err
	}

	k := recordKey(key, nonce)
	return b.update(func(txn *badgerdb.Txn) error {
		record, err := readRecord(txn, k)
		if err != nil {
			return err
		}
		if record == nil {
			return persistence.ErrRecordNotFound
		}
		record.State = persistence.ApprovalState_Submitted
		record.TxHash = txHash

		data, err := persistence.MarshalApprovalRecord(record)
		if err != nil {
			return fmt.Errorf("failed to marshal ApprovalRecord: %w", err)
		}
		return txn.Set(k, data)
	})
}

// Close stops GC and closes the database. Idempotent.
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger nonce ledger closed")
	return nil
}

func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkOpen(); err != nil {
		return err
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
