package memory

import (
	"sync"
	"testing"

	"github.com/Layr-Labs/approval-signer-go/pkg/logger"
	"github.com/Layr-Labs/approval-signer-go/pkg/persistence"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryPersistence(t *testing.T) *MemoryPersistence {
	t.Helper()
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)
	return NewMemoryPersistence(l)
}

func TestMemoryPersistence_ConsumeAndLoad(t *testing.T) {
	mp := newTestMemoryPersistence(t)
	defer func() { _ = mp.Close() }()

	key := persistence.NewTestNonceKey("permit")
	record := persistence.NewTestApprovalRecord(key, 4)

	require.NoError(t, mp.ConsumeNonce(record))

	consumed, err := mp.IsNonceConsumed(key, 4)
	require.NoError(t, err)
	assert.True(t, consumed)

	loaded, err := mp.LoadApprovalRecord(key, 4)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, record, loaded)
}

func TestMemoryPersistence_ConsumeNonce_Twice(t *testing.T) {
	mp := newTestMemoryPersistence(t)
	defer func() { _ = mp.Close() }()

	key := persistence.NewTestNonceKey("permit")
	require.NoError(t, mp.ConsumeNonce(persistence.NewTestApprovalRecord(key, 0)))

	err := mp.ConsumeNonce(persistence.NewTestApprovalRecord(key, 0))
	require.ErrorIs(t, err, persistence.ErrNonceConsumed)
}

func TestMemoryPersistence_ConsumeNonce_Nil(t *testing.T) {
	mp := newTestMemoryPersistence(t)
	defer func() { _ = mp.Close() }()

	err := mp.ConsumeNonce(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil ApprovalRecord")
}

func TestMemoryPersistence_KeysAreIndependent(t *testing.T) {
	mp := newTestMemoryPersistence(t)
	defer func() { _ = mp.Close() }()

	key := persistence.NewTestNonceKey("permit")
	otherKind := key
	otherKind.Kind = "masterApproval"
	otherChain := key
	otherChain.ChainId = 1

	require.NoError(t, mp.ConsumeNonce(persistence.NewTestApprovalRecord(key, 0)))
	require.NoError(t, mp.ConsumeNonce(persistence.NewTestApprovalRecord(otherKind, 0)))
	require.NoError(t, mp.ConsumeNonce(persistence.NewTestApprovalRecord(otherChain, 0)))
}

func TestMemoryPersistence_LoadApprovalRecord_NotFound(t *testing.T) {
	mp := newTestMemoryPersistence(t)
	defer func() { _ = mp.Close() }()

	loaded, err := mp.LoadApprovalRecord(persistence.NewTestNonceKey("permit"), 99)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestMemoryPersistence_ReleaseNonce(t *testing.T) {
	mp := newTestMemoryPersistence(t)
	defer func() { _ = mp.Close() }()

	key := persistence.NewTestNonceKey("permit")
	require.NoError(t, mp.ConsumeNonce(persistence.NewTestApprovalRecord(key, 1)))
	require.NoError(t, mp.ReleaseNonce(key, 1))

	consumed, err := mp.IsNonceConsumed(key, 1)
	require.NoError(t, err)
	assert.False(t, consumed)

	// released nonces can be signed again
	require.NoError(t, mp.ConsumeNonce(persistence.NewTestApprovalRecord(key, 1)))
}

func TestMemoryPersistence_ReleaseNonce_Idempotent(t *testing.T) {
	mp := newTestMemoryPersistence(t)
	defer func() { _ = mp.Close() }()

	require.NoError(t, mp.ReleaseNonce(persistence.NewTestNonceKey("permit"), 12))
}

func TestMemoryPersistence_ReleaseNonce_Submitted(t *testing.T) {
	mp := newTestMemoryPersistence(t)
	defer func() { _ = mp.Close() }()

	key := persistence.NewTestNonceKey("permit")
	require.NoError(t, mp.ConsumeNonce(persistence.NewTestApprovalRecord(key, 2)))
	require.NoError(t, mp.MarkSubmitted(key, 2, common.HexToHash("0xabc")))

	err := mp.ReleaseNonce(key, 2)
	require.ErrorIs(t, err, persistence.ErrNonceSubmitted)

	consumed, err := mp.IsNonceConsumed(key, 2)
	require.NoError(t, err)
	assert.True(t, consumed)
}

func TestMemoryPersistence_MarkSubmitted(t *testing.T) {
	mp := newTestMemoryPersistence(t)
	defer func() { _ = mp.Close() }()

	key := persistence.NewTestNonceKey("positionApproval")
	require.NoError(t, mp.ConsumeNonce(persistence.NewTestApprovalRecord(key, 3)))

	txHash := common.HexToHash("0x1234")
	require.NoError(t, mp.MarkSubmitted(key, 3, txHash))

	loaded, err := mp.LoadApprovalRecord(key, 3)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, persistence.ApprovalState_Submitted, loaded.State)
	assert.Equal(t, txHash, loaded.TxHash)
}

func TestMemoryPersistence_MarkSubmitted_NotFound(t *testing.T) {
	mp := newTestMemoryPersistence(t)
	defer func() { _ = mp.Close() }()

	err := mp.MarkSubmitted(persistence.NewTestNonceKey("permit"), 0, common.HexToHash("0x1"))
	require.ErrorIs(t, err, persistence.ErrRecordNotFound)
}

func TestMemoryPersistence_ListApprovalRecords(t *testing.T) {
	mp := newTestMemoryPersistence(t)
	defer func() { _ = mp.Close() }()

	key := persistence.NewTestNonceKey("permit")
	for _, nonce := range []uint64{5, 1, 3} {
		require.NoError(t, mp.ConsumeNonce(persistence.NewTestApprovalRecord(key, nonce)))
	}
	// a different key must not show up
	require.NoError(t, mp.ConsumeNonce(persistence.NewTestApprovalRecord(persistence.NewTestNonceKey("permit"), 2)))

	records, err := mp.ListApprovalRecords(key)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, uint64(1), records[0].Nonce)
	assert.Equal(t, uint64(3), records[1].Nonce)
	assert.Equal(t, uint64(5), records[2].Nonce)
}

func TestMemoryPersistence_ListApprovalRecords_Empty(t *testing.T) {
	mp := newTestMemoryPersistence(t)
	defer func() { _ = mp.Close() }()

	records, err := mp.ListApprovalRecords(persistence.NewTestNonceKey("permit"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMemoryPersistence_Close(t *testing.T) {
	mp := newTestMemoryPersistence(t)
	key := persistence.NewTestNonceKey("permit")

	require.NoError(t, mp.Close())

	require.ErrorIs(t, mp.ConsumeNonce(persistence.NewTestApprovalRecord(key, 0)), persistence.ErrClosed)
	require.ErrorIs(t, mp.ReleaseNonce(key, 0), persistence.ErrClosed)
	_, err := mp.IsNonceConsumed(key, 0)
	require.ErrorIs(t, err, persistence.ErrClosed)
	_, err = mp.LoadApprovalRecord(key, 0)
	require.ErrorIs(t, err, persistence.ErrClosed)
	_, err = mp.ListApprovalRecords(key)
	require.ErrorIs(t, err, persistence.ErrClosed)
	require.ErrorIs(t, mp.MarkSubmitted(key, 0, common.Hash{}), persistence.ErrClosed)
}

func TestMemoryPersistence_Close_Idempotent(t *testing.T) {
	mp := newTestMemoryPersistence(t)
	require.NoError(t, mp.Close())
	require.NoError(t, mp.Close())
}

func TestMemoryPersistence_HealthCheck(t *testing.T) {
	mp := newTestMemoryPersistence(t)
	require.NoError(t, mp.HealthCheck())

	require.NoError(t, mp.Close())
	require.ErrorIs(t, mp.HealthCheck(), persistence.ErrClosed)
}

func TestMemoryPersistence_ConcurrentConsume(t *testing.T) {
	mp := newTestMemoryPersistence(t)
	defer func() { _ = mp.Close() }()

	key := persistence.NewTestNonceKey("permit")

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := mp.ConsumeNonce(persistence.NewTestApprovalRecord(key, 7))
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, persistence.ErrNonceConsumed)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestMemoryPersistence_DeepCopy_Mutation(t *testing.T) {
	mp := newTestMemoryPersistence(t)
	defer func() { _ = mp.Close() }()

	key := persistence.NewTestNonceKey("permit")
	record := persistence.NewTestApprovalRecord(key, 0)
	require.NoError(t, mp.ConsumeNonce(record))

	// mutate the caller's copy after storing
	record.Signature.V = 99
	record.TicketId = "mutated"

	loaded, err := mp.LoadApprovalRecord(key, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(27), loaded.Signature.V)
	assert.NotEqual(t, "mutated", loaded.TicketId)

	// mutate the loaded copy
	loaded.State = persistence.ApprovalState_Submitted
	again, err := mp.LoadApprovalRecord(key, 0)
	require.NoError(t, err)
	assert.Equal(t, persistence.ApprovalState_Signed, again.State)
}
