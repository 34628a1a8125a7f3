package blockClock

import (
	"context"
	"fmt"
	"testing"

	"github.com/Layr-Labs/approval-signer-go/pkg/contractCaller/caller"
	"github.com/Layr-Labs/approval-signer-go/pkg/logger"
	"github.com/Layr-Labs/approval-signer-go/pkg/testutil"
	chainPoller "github.com/Layr-Labs/chain-indexer/pkg/chainPollers"
	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	time  uint64
	err   error
	calls int
}

func (f *fakeNode) LatestBlockTime(ctx context.Context) (uint64, error) {
	f.calls++
	return f.time, f.err
}

func Test_BlockClock(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("Tracks blocks from the poller", func(t *testing.T) {
		node := &fakeNode{time: 1}
		clock := NewBlockClock(node, l)
		poller := testutil.NewMockChainPoller([]chainPoller.IBlockHandler{clock}, l)
		require.NoError(t, poller.Start(ctx))
		defer poller.Stop()

		require.NoError(t, poller.EmitBlock(1_700_000_000))
		ts, err := clock.BlockTime(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(1_700_000_000), ts)

		require.NoError(t, poller.EmitBlock(1_700_000_012))
		ts, err = clock.BlockTime(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(1_700_000_012), ts)

		number, _, ok := clock.LatestBlock()
		require.True(t, ok)
		require.Equal(t, uint64(2), number)
		require.Equal(t, 0, node.calls)
	})

	t.Run("Falls back to the node", func(t *testing.T) {
		node := &fakeNode{time: 1234}
		clock := NewBlockClock(node, l)

		ts, err := clock.BlockTime(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(1234), ts)
		require.Equal(t, 1, node.calls)

		// asks the node again until a poller block arrives
		node.time = 1246
		ts, err = clock.BlockTime(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(1246), ts)
		require.Equal(t, 2, node.calls)

		_, _, ok := clock.LatestBlock()
		require.False(t, ok)
	})

	t.Run("Node errors surface", func(t *testing.T) {
		clock := NewBlockClock(&fakeNode{err: fmt.Errorf("connection refused")}, l)
		_, err := clock.BlockTime(ctx)
		require.Error(t, err)
		require.Contains(t, err.Error(), "connection refused")
	})

	t.Run("No source at all", func(t *testing.T) {
		clock := NewBlockClock(nil, l)
		_, err := clock.BlockTime(ctx)
		require.Error(t, err)
	})

	t.Run("Reorg falls back to the node", func(t *testing.T) {
		node := &fakeNode{time: 500}
		clock := NewBlockClock(node, l)
		poller := testutil.NewMockChainPoller([]chainPoller.IBlockHandler{clock}, l)
		require.NoError(t, poller.Start(ctx))
		defer poller.Stop()

		require.NoError(t, poller.EmitBlock(900))
		require.NoError(t, poller.EmitBlock(912))
		poller.EmitReorg(2)

		ts, err := clock.BlockTime(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(500), ts)
		require.Equal(t, 1, node.calls)
	})

	t.Run("Reorged block is replaced", func(t *testing.T) {
		clock := NewBlockClock(nil, l)
		poller := testutil.NewMockChainPoller([]chainPoller.IBlockHandler{clock}, l)
		require.NoError(t, poller.Start(ctx))
		defer poller.Stop()

		require.NoError(t, poller.EmitBlock(100))
		require.NoError(t, poller.EmitBlock(200))
		poller.EmitReorg(2)
		require.NoError(t, poller.EmitBlock(150))

		number, ts, ok := clock.LatestBlock()
		require.True(t, ok)
		require.Equal(t, uint64(2), number)
		require.Equal(t, uint64(150), ts)
	})

	t.Run("Older blocks are ignored", func(t *testing.T) {
		clock := NewBlockClock(nil, l)
		require.NoError(t, clock.HandleBlock(ctx, &ethereum.EthereumBlock{
			Number:    ethereum.EthereumQuantity(10),
			Timestamp: ethereum.EthereumQuantity(1000),
		}))
		require.NoError(t, clock.HandleBlock(ctx, &ethereum.EthereumBlock{
			Number:    ethereum.EthereumQuantity(9),
			Timestamp: ethereum.EthereumQuantity(988),
		}))

		ts, err := clock.BlockTime(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(1000), ts)
	})
}

func Test_BlockClock_SimulatedChain(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)
	ctx := context.Background()

	chain := testutil.NewSimulatedChain(t)
	chain.Backend.Commit()

	header, err := chain.Client.HeaderByNumber(ctx, nil)
	require.NoError(t, err)

	cc, err := caller.NewContractCaller(chain.Client, nil, l)
	require.NoError(t, err)

	clock := NewBlockClock(cc, l)
	ts, err := clock.BlockTime(ctx)
	require.NoError(t, err)
	require.Equal(t, header.Time, ts)
}
