package caller

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/approval-signer-go/pkg/types"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

func (cc *ContractCaller) buildTransactionOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if cc.signer == nil {
		return nil, fmt.Errorf("contract caller has no transaction signer")
	}
	return cc.signer.GetTransactOpts(ctx)
}

func (cc *ContractCaller) signAndSendTransaction(ctx context.Context, tx *ethereumTypes.Transaction, operation string) (*ethereumTypes.Receipt, error) {
	cc.logger.Sugar().Infow("Signing and sending transaction",
		"operation", operation,
		"from", cc.signer.GetFromAddress().Hex(),
		"to", tx.To().Hex(),
	)

	return cc.signer.SignAndSendTransaction(ctx, tx)
}

func (cc *ContractCaller) transact(ctx context.Context, contract common.Address, method string, params ...interface{}) (*ethereumTypes.Receipt, error) {
	opts, err := cc.buildTransactionOpts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build transaction options")
	}

	tx, err := cc.boundContract(contract).Transact(opts, method, params...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build %s transaction", method)
	}

	return cc.signAndSendTransaction(ctx, tx, method)
}

// SetMasterContractApproval calls BentoBox.setMasterContractApproval. A sentinel signature submits
// v = 0 with zero r and s, which BentoBox accepts only from whitelisted callers.
func (cc *ContractCaller) SetMasterContractApproval(
	ctx context.Context,
	bentoBox common.Address,
	user common.Address,
	masterContract common.Address,
	approved bool,
	sig *types.Signature,
) (*ethereumTypes.Receipt, error) {
	return cc.transact(ctx, bentoBox, "setMasterContractApproval",
		user, masterContract, approved, sig.V, [32]byte(sig.R), [32]byte(sig.S))
}

// SetApproval calls setApproval on a lending pair, which forwards the approval to BentoBox.
func (cc *ContractCaller) SetApproval(
	ctx context.Context,
	pair common.Address,
	user common.Address,
	approved bool,
	sig *types.Signature,
) (*ethereumTypes.Receipt, error) {
	return cc.transact(ctx, pair, "setApproval",
		user, approved, sig.V, [32]byte(sig.R), [32]byte(sig.S))
}

// PermitToken calls permitToken on a lending pair, which forwards the permit to token.
func (cc *ContractCaller) PermitToken(
	ctx context.Context,
	pair common.Address,
	token common.Address,
	owner common.Address,
	spender common.Address,
	value *uint256.Int,
	deadline uint64,
	sig *types.Signature,
) (*ethereumTypes.Receipt, error) {
	return cc.transact(ctx, pair, "permitToken",
		token, owner, spender, value.ToBig(), new(big.Int).SetUint64(deadline), sig.V, [32]byte(sig.R), [32]byte(sig.S))
}
