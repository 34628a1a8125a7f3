package aws

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"
)

const serviceAccountTokenPath = "/var/run/secrets/kubernetes.io/serviceaccount/token"

func LoadAWSConfig(ctx context.Context, regionOverride string) (aws.Config, error) {
	var options []func(*config.LoadOptions) error

	// Only use profile if we're not in a K8s environment
	if !isInKubernetes() {
		options = append(options, config.WithSharedConfigProfile(getProfile()))
	}

	if regionOverride != "" {
		options = append(options, config.WithRegion(regionOverride))
	}

	return config.LoadDefaultConfig(ctx, options...)
}

// NewKMSClient loads the ambient AWS config and returns a KMS client for the approval key.
// The caller identity is logged so it is clear which role the key is used under.
func NewKMSClient(ctx context.Context, regionOverride string, logger *zap.Logger) (*kms.Client, error) {
	cfg, err := LoadAWSConfig(ctx, regionOverride)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	identity, err := GetCallerIdentity(ctx, cfg)
	if err != nil {
		logger.Sugar().Warnw("Failed to get AWS caller identity", "error", err)
	} else {
		logger.Sugar().Infow("Using AWS identity", "arn", aws.ToString(identity.Arn), "region", cfg.Region)
	}

	return kms.NewFromConfig(cfg), nil
}

func isInKubernetes() bool {
	return fileExists(serviceAccountTokenPath)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func getProfile() string {
	if profile := os.Getenv("AWS_PROFILE"); profile != "" {
		return profile
	}
	return "default"
}

func GetCallerIdentity(ctx context.Context, cfg aws.Config) (*sts.GetCallerIdentityOutput, error) {
	stsClient := sts.NewFromConfig(cfg)
	return stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
}
