package contractCaller

import (
	"context"

	"github.com/Layr-Labs/approval-signer-go/pkg/contractCaller/caller"
	"github.com/Layr-Labs/approval-signer-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

type IContractCaller interface {
	ChainId(ctx context.Context) (uint64, error)

	// LatestBlockTime returns the timestamp of the latest block.
	LatestBlockTime(ctx context.Context) (uint64, error)

	// GetNonce reads the replay-protection nonce of owner from contract.
	GetNonce(ctx context.Context, contract common.Address, owner common.Address) (uint64, error)

	// GetDomainSeparator reads the separator a contract verifies against.
	GetDomainSeparator(ctx context.Context, contract common.Address) (common.Hash, error)

	SetMasterContractApproval(
		ctx context.Context,
		bentoBox common.Address,
		user common.Address,
		masterContract common.Address,
		approved bool,
		sig *types.Signature,
	) (*ethereumTypes.Receipt, error)

	SetApproval(
		ctx context.Context,
		pair common.Address,
		user common.Address,
		approved bool,
		sig *types.Signature,
	) (*ethereumTypes.Receipt, error)

	PermitToken(
		ctx context.Context,
		pair common.Address,
		token common.Address,
		owner common.Address,
		spender common.Address,
		value *uint256.Int,
		deadline uint64,
		sig *types.Signature,
	) (*ethereumTypes.Receipt, error)
}

var _ IContractCaller = (*caller.ContractCaller)(nil)
