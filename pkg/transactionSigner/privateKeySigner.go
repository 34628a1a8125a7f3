package transactionSigner

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/approval-signer-go/pkg/clients"
	"github.com/Layr-Labs/approval-signer-go/pkg/util"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// PrivateKeyTransactionSigner implements ITransactionSigner with a local key
type PrivateKeyTransactionSigner struct {
	backend     clients.IChainBackend
	logger      *zap.Logger
	chainID     *big.Int
	privateKey  *ecdsa.PrivateKey
	fromAddress common.Address
}

func NewPrivateKeyTransactionSigner(privateKey string, backend clients.IChainBackend, logger *zap.Logger) (*PrivateKeyTransactionSigner, error) {
	pk, err := util.StringToECDSAPrivateKey(privateKey)
	if err != nil {
		return nil, err
	}

	chainID, err := backend.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	fromAddress, err := util.DeriveAddressFromECDSAPrivateKey(pk)
	if err != nil {
		return nil, err
	}

	return &PrivateKeyTransactionSigner{
		backend:     backend,
		logger:      logger,
		chainID:     chainID,
		privateKey:  pk,
		fromAddress: fromAddress,
	}, nil
}

// GetTransactOpts returns keyed transactor options with NoSend set; the bound contract signs the
// transaction and SignAndSendTransaction submits it.
func (p *PrivateKeyTransactionSigner) GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(p.privateKey, p.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyed transactor: %w", err)
	}
	opts.Context = ctx
	opts.NoSend = true
	return opts, nil
}

func (p *PrivateKeyTransactionSigner) SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	signedTx := tx
	if v, r, s := tx.RawSignatureValues(); v == nil || (v.Sign() == 0 && r.Sign() == 0 && s.Sign() == 0) {
		var err error
		signedTx, err = types.SignTx(tx, types.LatestSignerForChainID(p.chainID), p.privateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to sign transaction: %w", err)
		}
	}

	if err := p.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	p.logger.Sugar().Infow("SignAndSendTransaction: transaction sent",
		"txHash", signedTx.Hash().Hex(),
		"to", signedTx.To().Hex(),
		"nonce", signedTx.Nonce(),
	)

	receipt, err := bind.WaitMined(ctx, p.backend, signedTx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for transaction receipt: %w", err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		p.logger.Sugar().Errorw("SignAndSendTransaction: transaction failed",
			"txHash", receipt.TxHash.Hex(),
			"status", receipt.Status,
			"gasUsed", receipt.GasUsed,
		)
		return nil, fmt.Errorf("transaction failed with status %d", receipt.Status)
	}

	p.logger.Sugar().Infow("SignAndSendTransaction: transaction succeeded",
		"txHash", receipt.TxHash.Hex(),
		"gasUsed", receipt.GasUsed,
		"blockNumber", receipt.BlockNumber.Uint64(),
	)

	return receipt, nil
}

func (p *PrivateKeyTransactionSigner) GetFromAddress() common.Address {
	return p.fromAddress
}
