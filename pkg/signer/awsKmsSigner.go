package signer

import (
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/approval-signer-go/pkg/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmsTypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// KMSAPI is the subset of the AWS KMS client used for signing
type KMSAPI interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
}

var (
	secp256k1N, _  = new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141", 16)
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

type asn1EcSig struct {
	R asn1.RawValue
	S asn1.RawValue
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

// AWSKMSSigner signs digests with an ECC_SECG_P256K1 key held in AWS KMS.
// KMS signatures are not deterministic; only the recovered address is stable.
type AWSKMSSigner struct {
	client      KMSAPI
	keyId       string
	publicKey   *ecdsa.PublicKey
	fromAddress common.Address
	logger      *zap.Logger
}

func NewAWSKMSSigner(ctx context.Context, client KMSAPI, keyId string, logger *zap.Logger) (*AWSKMSSigner, error) {
	out, err := client.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(keyId),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for key %s", keyId)
	}

	pub, err := parseECDSAPublicKey(out.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key for key %s", keyId)
	}

	s := &AWSKMSSigner{
		client:      client,
		keyId:       keyId,
		publicKey:   pub,
		fromAddress: crypto.PubkeyToAddress(*pub),
		logger:      logger,
	}
	logger.Sugar().Infow("Loaded AWS KMS signing key",
		"keyId", keyId,
		"address", s.fromAddress.String(),
	)
	return s, nil
}

func parseECDSAPublicKey(derBytes []byte) (*ecdsa.PublicKey, error) {
	var asn1pubk asn1EcPublicKey
	if _, err := asn1.Unmarshal(derBytes, &asn1pubk); err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}
	return crypto.UnmarshalPubkey(asn1pubk.PublicKey.Bytes)
}

func (a *AWSKMSSigner) SignDigest(ctx context.Context, digest common.Hash) (*types.Signature, error) {
	out, err := a.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(a.keyId),
		Message:          digest.Bytes(),
		SigningAlgorithm: kmsTypes.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      kmsTypes.MessageTypeDigest,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign digest with key %s", a.keyId)
	}

	var sigAsn1 asn1EcSig
	if _, err := asn1.Unmarshal(out.Signature, &sigAsn1); err != nil {
		return nil, errors.Wrap(err, "failed to decode KMS signature")
	}

	r := new(big.Int).SetBytes(sigAsn1.R.Bytes)
	s := new(big.Int).SetBytes(sigAsn1.S.Bytes)
	if s.Cmp(secp256k1HalfN) > 0 {
		s = new(big.Int).Sub(secp256k1N, s)
	}

	sig := &types.Signature{
		R: common.BigToHash(r),
		S: common.BigToHash(s),
	}

	raw := sig.Bytes()
	for recoveryId := byte(0); recoveryId < 2; recoveryId++ {
		raw[64] = recoveryId
		recovered, err := crypto.SigToPub(digest[:], raw)
		if err != nil {
			a.logger.Sugar().Debugw("Ecrecover failed", "recoveryId", recoveryId, "error", err)
			continue
		}
		if recovered.X.Cmp(a.publicKey.X) == 0 && recovered.Y.Cmp(a.publicKey.Y) == 0 {
			sig.V = 27 + recoveryId
			return sig, nil
		}
	}
	return nil, fmt.Errorf("could not determine recovery id for KMS signature over %s", digest.String())
}

func (a *AWSKMSSigner) GetFromAddress() common.Address {
	return a.fromAddress
}
