package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Layr-Labs/approval-signer-go/pkg/persistence"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// MemoryPersistence is an in-memory implementation of IApprovalPersistence.
// This implementation is intended for TESTING and single-process development only.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex; records are deep copied in and out.
type MemoryPersistence struct {
	mu sync.RWMutex

	// NonceKey.String() -> nonce -> record
	records map[string]map[uint64]*persistence.ApprovalRecord

	closed bool
}

// NewMemoryPersistence creates a new in-memory ledger.
func NewMemoryPersistence(logger *zap.Logger) *MemoryPersistence {
	logger.Sugar().Warnw("Using in-memory nonce ledger - consumed nonces are lost on restart",
		"hint", "set APPROVAL_PERSISTENCE_TYPE=badger or redis for durable storage",
	)
	return &MemoryPersistence{
		records: make(map[string]map[uint64]*persistence.ApprovalRecord),
	}
}

func (m *MemoryPersistence) ConsumeNonce(record *persistence.ApprovalRecord) error {
	if record == nil {
		return fmt.Errorf("cannot consume nonce for nil ApprovalRecord")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	k := record.Key.String()
	nonces, ok := m.records[k]
	if !ok {
		nonces = make(map[uint64]*persistence.ApprovalRecord)
		m.records[k] = nonces
	}
	if _, exists := nonces[record.Nonce]; exists {
		return persistence.ErrNonceConsumed
	}
	nonces[record.Nonce] = record.Copy()
	return nil
}

func (m *MemoryPersistence) ReleaseNonce(key persistence.NonceKey, nonce uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	nonces := m.records[key.String()]
	record, exists := nonces[nonce]
	if !exists {
		return nil
	}
	if record.State == persistence.ApprovalState_Submitted {
		return persistence.ErrNonceSubmitted
	}
	delete(nonces, nonce)
	return nil
}

func (m *MemoryPersistence) IsNonceConsumed(key persistence.NonceKey, nonce uint64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, persistence.ErrClosed
	}

	_, exists := m.records[key.String()][nonce]
	return exists, nil
}

func (m *MemoryPersistence) LoadApprovalRecord(key persistence.NonceKey, nonce uint64) (*persistence.ApprovalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	record, exists := m.records[key.String()][nonce]
	if !exists {
		return nil, nil // Not found is not an error
	}
	return record.Copy(), nil
}

func (m *MemoryPersistence) ListApprovalRecords(key persistence.NonceKey) ([]*persistence.ApprovalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	nonces := m.records[key.String()]
	result := make([]*persistence.ApprovalRecord, 0, len(nonces))
	for _, record := range nonces {
		result = append(result, record.Copy())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Nonce < result[j].Nonce
	})
	return result, nil
}

func (m *MemoryPersistence) MarkSubmitted(key persistence.NonceKey, nonce uint64, txHash common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	record, exists := m.records[key.String()][nonce]
	if !exists {
		return persistence.ErrRecordNotFound
	}
	record.State = persistence.ApprovalState_Submitted
	record.TxHash = txHash
	return nil
}

// Close marks the ledger closed. Idempotent.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}
	return nil
}
