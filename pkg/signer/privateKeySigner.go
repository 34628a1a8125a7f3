package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/Layr-Labs/approval-signer-go/pkg/types"
	"github.com/Layr-Labs/approval-signer-go/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// PrivateKeySigner signs with a local secp256k1 key. Signatures are RFC6979 deterministic and low-S,
// so the same key and digest always give the same bytes.
type PrivateKeySigner struct {
	privateKey  *ecdsa.PrivateKey
	fromAddress common.Address
	logger      *zap.Logger
}

func NewPrivateKeySigner(privateKey string, logger *zap.Logger) (*PrivateKeySigner, error) {
	pk, err := util.StringToECDSAPrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return NewPrivateKeySignerFromKey(pk, logger), nil
}

func NewPrivateKeySignerFromKey(pk *ecdsa.PrivateKey, logger *zap.Logger) *PrivateKeySigner {
	return &PrivateKeySigner{
		privateKey:  pk,
		fromAddress: crypto.PubkeyToAddress(pk.PublicKey),
		logger:      logger,
	}
}

func (p *PrivateKeySigner) SignDigest(ctx context.Context, digest common.Hash) (*types.Signature, error) {
	raw, err := crypto.Sign(digest[:], p.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}
	sig := &types.Signature{
		R: common.BytesToHash(raw[0:32]),
		S: common.BytesToHash(raw[32:64]),
		V: raw[64] + 27,
	}
	p.logger.Sugar().Debugw("Signed digest",
		"signer", p.fromAddress.String(),
		"digest", digest.String(),
		"v", sig.V,
	)
	return sig, nil
}

func (p *PrivateKeySigner) GetFromAddress() common.Address {
	return p.fromAddress
}
