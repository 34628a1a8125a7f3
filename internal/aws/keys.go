package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmsTypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// IKeyCreator is the subset of the KMS client used to provision approval keys.
type IKeyCreator interface {
	CreateKey(ctx context.Context, params *kms.CreateKeyInput, optFns ...func(*kms.Options)) (*kms.CreateKeyOutput, error)
	CreateAlias(ctx context.Context, params *kms.CreateAliasInput, optFns ...func(*kms.Options)) (*kms.CreateAliasOutput, error)
}

// CreateSigningKey creates a secp256k1 sign/verify key tagged for environment and points
// alias/<aliasName> at it. An empty aliasName skips the alias. Returns the key id.
func CreateSigningKey(ctx context.Context, client IKeyCreator, keyName, aliasName, environment string, logger *zap.Logger) (string, error) {
	if keyName == "" {
		return "", fmt.Errorf("key name is required")
	}

	res, err := client.CreateKey(ctx, &kms.CreateKeyInput{
		KeyUsage:    kmsTypes.KeyUsageTypeSignVerify,
		KeySpec:     kmsTypes.KeySpecEccSecgP256k1,
		Description: aws.String(fmt.Sprintf("EIP-712 approval signing key - %s", keyName)),
		Tags: []kmsTypes.Tag{
			{TagKey: aws.String("Name"), TagValue: aws.String(keyName)},
			{TagKey: aws.String("Environment"), TagValue: aws.String(environment)},
			{TagKey: aws.String("Purpose"), TagValue: aws.String("approval-signing")},
			{TagKey: aws.String("Curve"), TagValue: aws.String("secp256k1")},
		},
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to create KMS key %s", keyName)
	}
	if res.KeyMetadata == nil || res.KeyMetadata.KeyId == nil {
		return "", fmt.Errorf("KMS returned no key id for %s", keyName)
	}
	keyId := aws.ToString(res.KeyMetadata.KeyId)

	if aliasName != "" {
		_, err = client.CreateAlias(ctx, &kms.CreateAliasInput{
			AliasName:   aws.String("alias/" + aliasName),
			TargetKeyId: aws.String(keyId),
		})
		if err != nil {
			return "", errors.Wrapf(err, "failed to create alias %s for key %s", aliasName, keyId)
		}
	}

	logger.Sugar().Infow("Created KMS signing key", "keyId", keyId, "alias", aliasName, "environment", environment)
	return keyId, nil
}
