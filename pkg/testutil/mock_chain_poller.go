package testutil

import (
	"context"
	"fmt"
	"sync"

	chainPoller "github.com/Layr-Labs/chain-indexer/pkg/chainPollers"
	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"go.uber.org/zap"
)

// MockChainPoller broadcasts blocks to handlers without polling a chain.
// Block timestamps are supplied by the test so block time can be controlled exactly.
type MockChainPoller struct {
	blockHandlers []chainPoller.IBlockHandler
	logger        *zap.Logger
	currentBlock  uint64
	ctx           context.Context
	cancel        context.CancelFunc
	mu            sync.Mutex
}

func NewMockChainPoller(blockHandlers []chainPoller.IBlockHandler, logger *zap.Logger) *MockChainPoller {
	return &MockChainPoller{
		blockHandlers: blockHandlers,
		logger:        logger,
	}
}

// Start enables emission; blocks are only emitted on EmitBlock calls.
func (m *MockChainPoller) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.logger.Sugar().Info("MockChainPoller started")
	return nil
}

func (m *MockChainPoller) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
		m.logger.Sugar().Info("MockChainPoller stopped")
	}
}

// EmitBlock emits the next block with the given timestamp to every handler.
func (m *MockChainPoller) EmitBlock(timestamp uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return fmt.Errorf("poller not started")
	}

	m.currentBlock++
	block := &ethereum.EthereumBlock{
		Number:     ethereum.EthereumQuantity(m.currentBlock),
		Hash:       ethereum.EthereumHexString(generateBlockHash(m.currentBlock)),
		ParentHash: ethereum.EthereumHexString(generateBlockHash(m.currentBlock - 1)),
		Timestamp:  ethereum.EthereumQuantity(timestamp),
	}

	for i, handler := range m.blockHandlers {
		if err := handler.HandleBlock(m.ctx, block); err != nil {
			m.logger.Sugar().Warnw("Failed to send block to handler",
				"block", m.currentBlock,
				"handler", i,
				"error", err,
			)
		}
	}
	return nil
}

// EmitReorg notifies handlers that blockNumber was reorged out.
func (m *MockChainPoller) EmitReorg(blockNumber uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, handler := range m.blockHandlers {
		handler.HandleReorgBlock(m.ctx, blockNumber)
	}
	if blockNumber > 0 && blockNumber <= m.currentBlock {
		m.currentBlock = blockNumber - 1
	}
}

func (m *MockChainPoller) GetCurrentBlock() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentBlock
}

func generateBlockHash(blockNumber uint64) string {
	return fmt.Sprintf("0x%064x", blockNumber)
}
