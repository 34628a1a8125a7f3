package blockClock

import (
	"context"
	"fmt"
	"sync"

	chainPoller "github.com/Layr-Labs/chain-indexer/pkg/chainPollers"
	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"go.uber.org/zap"
)

// IBlockClock reports chain time. Implementations must never substitute host wall-clock time.
type IBlockClock interface {
	// BlockTime returns the timestamp of the most recent block, in unix seconds.
	BlockTime(ctx context.Context) (uint64, error)
}

// ILatestBlockTimeReader is satisfied by the contract caller.
type ILatestBlockTimeReader interface {
	LatestBlockTime(ctx context.Context) (uint64, error)
}

// BlockClock tracks the latest block delivered by a chain poller. Until the first block arrives,
// or after a reorg invalidates the tracked block, every read goes to the node.
type BlockClock struct {
	mu          sync.RWMutex
	latestBlock uint64
	latestTime  uint64
	hasBlock    bool

	node   ILatestBlockTimeReader
	logger *zap.Logger
}

var _ chainPoller.IBlockHandler = (*BlockClock)(nil)
var _ IBlockClock = (*BlockClock)(nil)

// NewBlockClock creates a clock. node may be nil, in which case BlockTime fails until a block
// has been handled.
func NewBlockClock(node ILatestBlockTimeReader, logger *zap.Logger) *BlockClock {
	return &BlockClock{
		node:   node,
		logger: logger,
	}
}

func (c *BlockClock) HandleBlock(ctx context.Context, block *ethereum.EthereumBlock) error {
	if block == nil {
		return nil
	}
	number := block.Number.Value()
	timestamp := block.Timestamp.Value()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasBlock && number < c.latestBlock {
		c.logger.Sugar().Debugw("Ignoring older block", "block", number, "latest", c.latestBlock)
		return nil
	}
	c.latestBlock = number
	c.latestTime = timestamp
	c.hasBlock = true
	c.logger.Sugar().Debugw("Block clock advanced", "block", number, "timestamp", timestamp)
	return nil
}

func (c *BlockClock) HandleLog(ctx context.Context, logWithBlock *chainPoller.LogWithBlock) error {
	return nil
}

// HandleReorgBlock drops the tracked block if it was reorged out.
func (c *BlockClock) HandleReorgBlock(ctx context.Context, blockNumber uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasBlock && c.latestBlock >= blockNumber {
		c.logger.Sugar().Infow("Block clock reset by reorg", "reorgBlock", blockNumber, "latest", c.latestBlock)
		c.hasBlock = false
	}
}

// LatestBlock returns the tracked block number and timestamp.
func (c *BlockClock) LatestBlock() (number uint64, timestamp uint64, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latestBlock, c.latestTime, c.hasBlock
}

func (c *BlockClock) BlockTime(ctx context.Context) (uint64, error) {
	if _, ts, ok := c.LatestBlock(); ok {
		return ts, nil
	}
	if c.node == nil {
		return 0, fmt.Errorf("no block observed yet and no node configured")
	}

	// not recorded: the block number is unknown, so it could not be ordered against poller blocks
	ts, err := c.node.LatestBlockTime(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read latest block time: %w", err)
	}
	return ts, nil
}
