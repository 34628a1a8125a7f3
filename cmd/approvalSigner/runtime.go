package main

import (
	"context"
	"fmt"
	"time"

	awsInternal "github.com/Layr-Labs/approval-signer-go/internal/aws"
	"github.com/Layr-Labs/approval-signer-go/pkg/approvals"
	"github.com/Layr-Labs/approval-signer-go/pkg/blockClock"
	"github.com/Layr-Labs/approval-signer-go/pkg/config"
	"github.com/Layr-Labs/approval-signer-go/pkg/contractCaller/caller"
	"github.com/Layr-Labs/approval-signer-go/pkg/persistence"
	"github.com/Layr-Labs/approval-signer-go/pkg/persistence/badger"
	"github.com/Layr-Labs/approval-signer-go/pkg/persistence/memory"
	"github.com/Layr-Labs/approval-signer-go/pkg/persistence/redis"
	"github.com/Layr-Labs/approval-signer-go/pkg/signer"
	"github.com/Layr-Labs/approval-signer-go/pkg/transactionSigner"
	EVMChainPoller "github.com/Layr-Labs/chain-indexer/pkg/chainPollers/evm"
	pollerMemory "github.com/Layr-Labs/chain-indexer/pkg/chainPollers/persistence/memory"
	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	chainIndexerConfig "github.com/Layr-Labs/chain-indexer/pkg/config"
	"github.com/Layr-Labs/chain-indexer/pkg/contractStore/inMemoryContractStore"
	"github.com/Layr-Labs/chain-indexer/pkg/transactionLogParser"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const blockPollingInterval = time.Second

// chainConnection is a node connection plus a read-only or writing contract caller.
type chainConnection struct {
	ethClient *ethereum.EthereumClient
	client    *ethclient.Client
	caller    *caller.ContractCaller
}

// connectChain dials rpcUrl and checks the node serves chainId. A non-empty txPrivateKey enables
// transaction submission.
func connectChain(ctx context.Context, cfg *config.ApprovalSignerConfig, txPrivateKey string, l *zap.Logger) (*chainConnection, error) {
	if cfg.RpcUrl == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	ethClient := ethereum.NewEthereumClient(&ethereum.EthereumClientConfig{
		BaseUrl:   cfg.RpcUrl,
		BlockType: ethereum.BlockType_Latest,
	}, l)

	client, err := ethClient.GetEthereumContractCaller()
	if err != nil {
		return nil, fmt.Errorf("failed to get Ethereum contract caller: %w", err)
	}

	var txSigner transactionSigner.ITransactionSigner
	if txPrivateKey != "" {
		txSigner, err = transactionSigner.NewTransactionSigner(&transactionSigner.SignerConfig{
			PrivateKey: txPrivateKey,
		}, client, l)
		if err != nil {
			return nil, fmt.Errorf("failed to create transaction signer: %w", err)
		}
	}

	cc, err := caller.NewContractCaller(client, txSigner, l)
	if err != nil {
		return nil, fmt.Errorf("failed to create contract caller: %w", err)
	}

	chainId, err := cc.ChainId(ctx)
	if err != nil {
		return nil, err
	}
	if chainId != uint64(cfg.ChainID) {
		return nil, fmt.Errorf("rpc node serves chain %d, configured chain is %d", chainId, cfg.ChainID)
	}

	return &chainConnection{ethClient: ethClient, client: client, caller: cc}, nil
}

// startBlockClock starts an EVM chain poller feeding a block clock. The poller stops when ctx is
// cancelled; until its first block arrives the clock asks the node directly.
func startBlockClock(ctx context.Context, cfg *config.ApprovalSignerConfig, conn *chainConnection, l *zap.Logger) (*blockClock.BlockClock, error) {
	clock := blockClock.NewBlockClock(conn.caller, l)

	// logs are not parsed, but the poller requires a parser
	cs := inMemoryContractStore.NewInMemoryContractStore(nil, l)
	logParser := transactionLogParser.NewTransactionLogParser(cs, l)

	poller, err := EVMChainPoller.NewEVMChainPoller(
		conn.ethClient,
		logParser,
		&EVMChainPoller.EVMChainPollerConfig{
			ChainId:         chainIndexerConfig.ChainId(cfg.ChainID),
			PollingInterval: blockPollingInterval,
		},
		pollerMemory.NewInMemoryChainPollerPersistence(), clock, l)
	if err != nil {
		return nil, fmt.Errorf("failed to create EVM chain poller: %w", err)
	}
	if err := poller.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start EVM chain poller: %w", err)
	}
	return clock, nil
}

func newLedger(cfg *config.ApprovalSignerConfig, l *zap.Logger) (persistence.IApprovalPersistence, error) {
	switch cfg.PersistenceType {
	case config.PersistenceType_Memory, "":
		return memory.NewMemoryPersistence(l), nil
	case config.PersistenceType_Badger:
		if cfg.BadgerPath == "" {
			return nil, fmt.Errorf("badger path is required for badger persistence")
		}
		return badger.NewBadgerPersistence(cfg.BadgerPath, l)
	case config.PersistenceType_Redis:
		return redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, l)
	default:
		return nil, fmt.Errorf("unsupported persistence type %q", cfg.PersistenceType)
	}
}

func newDigestSigner(ctx context.Context, cfg *config.ApprovalSignerConfig, l *zap.Logger) (signer.IDigestSigner, error) {
	var kmsClient signer.KMSAPI
	if cfg.AWSKMSKeyID != "" {
		client, err := awsInternal.NewKMSClient(ctx, cfg.AWSRegion, l)
		if err != nil {
			return nil, err
		}
		kmsClient = client
	}
	return signer.NewDigestSigner(ctx, cfg, kmsClient, l)
}

// signingRuntime is everything the approve command needs.
type signingRuntime struct {
	conn      *chainConnection
	ledger    persistence.IApprovalPersistence
	approver  *approvals.Approver
	submitter *approvals.Submitter
}

func (r *signingRuntime) Close() error {
	return r.ledger.Close()
}

func newSigningRuntime(ctx context.Context, cfg *config.ApprovalSignerConfig, txPrivateKey string, l *zap.Logger) (*signingRuntime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	l.Sugar().Infow("Using chain", "name", cfg.ChainName, "chain_id", cfg.ChainID)

	if txPrivateKey == "" {
		txPrivateKey = cfg.PrivateKey
	}
	conn, err := connectChain(ctx, cfg, txPrivateKey, l)
	if err != nil {
		return nil, err
	}

	clock, err := startBlockClock(ctx, cfg, conn, l)
	if err != nil {
		return nil, err
	}

	digestSigner, err := newDigestSigner(ctx, cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}

	ledger, err := newLedger(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to open nonce ledger: %w", err)
	}

	approver, err := approvals.NewApprover(&approvals.ApproverConfig{
		ChainId:                uint64(cfg.ChainID),
		DeadlineWindow:         cfg.DeadlineWindow,
		NonceRequestsPerSecond: cfg.NonceRequestsPerSecond,
		AllowFallback:          cfg.AllowFallback,
	}, conn.caller, clock, digestSigner, ledger, l)
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}

	return &signingRuntime{
		conn:      conn,
		ledger:    ledger,
		approver:  approver,
		submitter: approvals.NewSubmitter(conn.caller, approver, l),
	}, nil
}
