package caller

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/Layr-Labs/approval-signer-go/pkg/clients"
	"github.com/Layr-Labs/approval-signer-go/pkg/transactionSigner"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type ContractCaller struct {
	backend clients.IChainBackend
	signer  transactionSigner.ITransactionSigner
	logger  *zap.Logger

	approvalsAbi abi.ABI
}

// NewContractCaller creates a caller over backend. signer may be nil for read-only use.
func NewContractCaller(
	backend clients.IChainBackend,
	signer transactionSigner.ITransactionSigner,
	logger *zap.Logger,
) (*ContractCaller, error) {
	parsed, err := abi.JSON(strings.NewReader(approvalsABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse approvals ABI: %w", err)
	}

	return &ContractCaller{
		backend:      backend,
		signer:       signer,
		logger:       logger,
		approvalsAbi: parsed,
	}, nil
}

func (cc *ContractCaller) boundContract(address common.Address) *bind.BoundContract {
	return bind.NewBoundContract(address, cc.approvalsAbi, cc.backend, cc.backend, cc.backend)
}

func (cc *ContractCaller) ChainId(ctx context.Context) (uint64, error) {
	chainId, err := cc.backend.ChainID(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get chain ID")
	}
	return chainId.Uint64(), nil
}

// LatestBlockTime returns the timestamp of the latest block header.
func (cc *ContractCaller) LatestBlockTime(ctx context.Context) (uint64, error) {
	header, err := cc.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get latest block header")
	}
	return header.Time, nil
}

// GetNonce reads nonces(owner) from contract.
func (cc *ContractCaller) GetNonce(ctx context.Context, contract common.Address, owner common.Address) (uint64, error) {
	var out []interface{}
	err := cc.boundContract(contract).Call(&bind.CallOpts{Context: ctx}, &out, "nonces", owner)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to call nonces(%s) on %s", owner.String(), contract.String())
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("nonces returned %d values", len(out))
	}
	nonce, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("nonces returned unexpected type %T", out[0])
	}
	if !nonce.IsUint64() {
		return 0, fmt.Errorf("nonce %s does not fit in uint64", nonce.String())
	}
	return nonce.Uint64(), nil
}

// GetDomainSeparator reads DOMAIN_SEPARATOR() from contract.
func (cc *ContractCaller) GetDomainSeparator(ctx context.Context, contract common.Address) (common.Hash, error) {
	var out []interface{}
	err := cc.boundContract(contract).Call(&bind.CallOpts{Context: ctx}, &out, "DOMAIN_SEPARATOR")
	if err != nil {
		return common.Hash{}, errors.Wrapf(err, "failed to call DOMAIN_SEPARATOR on %s", contract.String())
	}
	if len(out) != 1 {
		return common.Hash{}, fmt.Errorf("DOMAIN_SEPARATOR returned %d values", len(out))
	}
	sep, ok := out[0].([32]byte)
	if !ok {
		return common.Hash{}, fmt.Errorf("DOMAIN_SEPARATOR returned unexpected type %T", out[0])
	}
	return common.Hash(sep), nil
}
