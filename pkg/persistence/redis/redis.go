package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Layr-Labs/approval-signer-go/pkg/persistence"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixRecord      = "approvals:record:"
	keyPrefixIndex       = "approvals:index:"
	keySchemaVersion     = "approvals:metadata:schema_version"
	currentSchemaVersion = "v1"

	maxWatchRetries  = 10
	operationTimeout = 5 * time.Second
)

// RedisPersistence is a nonce ledger shared by every signer process pointed at the same Redis.
// Each nonce record lives under its own key; a sorted set per NonceKey indexes them for listing.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, e.g. "mainnet:" gives "mainnet:approvals:record:...".
	KeyPrefix string
}

// NewRedisPersistence connects to Redis and validates the schema version.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis nonce ledger initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)
	return rp, nil
}

func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

func (r *RedisPersistence) recordKey(key persistence.NonceKey, nonce uint64) string {
	return r.prefixKey(fmt.Sprintf("%s%s:%d", keyPrefixRecord, key.String(), nonce))
}

func (r *RedisPersistence) indexKey(key persistence.NonceKey) string {
	return r.prefixKey(keyPrefixIndex + key.String())
}

func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	// SetNX so concurrent first starts agree on one value
	if _, err := r.client.SetNX(ctx, schemaKey, currentSchemaVersion, 0).Result(); err != nil {
		return fmt.Errorf("failed to write schema version: %w", err)
	}
	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}
	return nil
}

func (r *RedisPersistence) checkOpen() error {
	if r.closed {
		return persistence.ErrClosed
	}
	return nil
}

// watch runs fn under WATCH on keys, retrying when another client modified them before EXEC.
func (r *RedisPersistence) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	var err error
	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err = r.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		r.logger.Sugar().Debugw("Redis transaction lost a race, retrying", "attempt", attempt+1, "keys", keys)
	}
	return err
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getRecord(ctx context.Context, cmd stringGetter, k string) (*persistence.ApprovalRecord, error) {
	data, err := cmd.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return persistence.UnmarshalApprovalRecord(data)
}

func (r *RedisPersistence) ConsumeNonce(record *persistence.ApprovalRecord) error {
	if record == nil {
		return fmt.Errorf("cannot consume nonce for nil ApprovalRecord")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkOpen(); err != nil {
		return err
	}

	data, err := persistence.MarshalApprovalRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ApprovalRecord: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	k := r.recordKey(record.Key, record.Nonce)
	idx := r.indexKey(record.Key)
	return r.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, k).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return persistence.ErrNonceConsumed
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, 0)
			pipe.ZAdd(ctx, idx, redis.Z{Score: float64(record.Nonce), Member: strconv.FormatUint(record.Nonce, 10)})
			return nil
		})
		return err
	}, k)
}

func (r *RedisPersistence) ReleaseNonce(key persistence.NonceKey, nonce uint64) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkOpen(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	k := r.recordKey(key, nonce)
	idx := r.indexKey(key)
	return r.watch(ctx, func(tx *redis.Tx) error {
		record, err := getRecord(ctx, tx, k)
		if err != nil {
			return err
		}
		if record == nil {
			return nil
		}
		if record.State == persistence.ApprovalState_Submitted {
			return persistence.ErrNonceSubmitted
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, k)
			pipe.ZRem(ctx, idx, strconv.FormatUint(nonce, 10))
			return nil
		})
		return err
	}, k)
}

func (r *RedisPersistence) IsNonceConsumed(key persistence.NonceKey, nonce uint64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkOpen(); err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	n, err := r.client.Exists(ctx, r.recordKey(key, nonce)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check nonce: %w", err)
	}
	return n > 0, nil
}

func (r *RedisPersistence) LoadApprovalRecord(key persistence.NonceKey, nonce uint64) (*persistence.ApprovalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	record, err := getRecord(ctx, r.client, r.recordKey(key, nonce))
	if err != nil {
		return nil, fmt.Errorf("failed to load ApprovalRecord: %w", err)
	}
	return record, nil
}

func (r *RedisPersistence) ListApprovalRecords(key persistence.NonceKey) ([]*persistence.ApprovalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	idx := r.indexKey(key)
	members, err := r.client.ZRange(ctx, idx, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list nonces: %w", err)
	}
	if len(members) == 0 {
		return []*persistence.ApprovalRecord{}, nil
	}

	keys := make([]string, 0, len(members))
	for _, m := range members {
		nonce, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			r.logger.Sugar().Warnw("Invalid nonce in index, skipping", "index", idx, "member", m)
			continue
		}
		keys = append(keys, r.recordKey(key, nonce))
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ApprovalRecords: %w", err)
	}

	records := make([]*persistence.ApprovalRecord, 0, len(values))
	for i, val := range values {
		if val == nil {
			continue
		}
		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for ApprovalRecord", "key", keys[i])
			continue
		}
		record, err := persistence.UnmarshalApprovalRecord([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal ApprovalRecord, skipping", "key", keys[i], "error", err)
			continue
		}
		records = append(records, record)
	}

	// float scores lose precision above 2^53
	sort.Slice(records, func(i, j int) bool {
		return records[i].Nonce < records[j].Nonce
	})
	return records, nil
}

func (r *RedisPersistence) MarkSubmitted(key persistence.NonceKey, nonce uint64, txHash common.Hash) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkOpen(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	k := r.recordKey(key, nonce)
	return r.watch(ctx, func(tx *redis.Tx) error {
		record, err := getRecord(ctx, tx, k)
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
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, 0)
			return nil
		})
		return err
	}, k)
}

// Close shuts down the client. Idempotent.
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis nonce ledger closed")
	return nil
}

func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkOpen(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	return nil
}
