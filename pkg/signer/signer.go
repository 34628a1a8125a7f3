package signer

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/approval-signer-go/pkg/config"
	"github.com/Layr-Labs/approval-signer-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// IDigestSigner produces secp256k1 signatures over 32-byte digests
type IDigestSigner interface {
	// SignDigest signs digest as-is; no prefix or additional hashing is applied
	SignDigest(ctx context.Context, digest common.Hash) (*types.Signature, error)

	// GetFromAddress returns the address recovered from signatures made by this signer
	GetFromAddress() common.Address
}

// NewDigestSigner picks the backend configured in cfg. kmsClient is only required when an AWS KMS
// key id is configured.
func NewDigestSigner(ctx context.Context, cfg *config.ApprovalSignerConfig, kmsClient KMSAPI, logger *zap.Logger) (IDigestSigner, error) {
	switch {
	case cfg.PrivateKey != "" && cfg.AWSKMSKeyID != "":
		return nil, fmt.Errorf("private key and AWS KMS key id are mutually exclusive")
	case cfg.PrivateKey != "":
		return NewPrivateKeySigner(cfg.PrivateKey, logger)
	case cfg.AWSKMSKeyID != "":
		if kmsClient == nil {
			return nil, fmt.Errorf("AWS KMS key id configured but no KMS client provided")
		}
		return NewAWSKMSSigner(ctx, kmsClient, cfg.AWSKMSKeyID, logger)
	default:
		return nil, fmt.Errorf("no signing backend configured")
	}
}

// RecoverSigner returns the address that produced sig over digest.
func RecoverSigner(digest common.Hash, sig *types.Signature) (common.Address, error) {
	if sig == nil || sig.IsSentinel() {
		return common.Address{}, fmt.Errorf("cannot recover signer from an empty signature")
	}
	recId, err := sig.RecoveryId()
	if err != nil {
		return common.Address{}, err
	}
	raw := sig.Bytes()
	raw[64] = recId

	pub, err := crypto.SigToPub(digest[:], raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
