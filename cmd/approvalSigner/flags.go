package main

import (
	"fmt"

	"github.com/Layr-Labs/approval-signer-go/pkg/approvals"
	"github.com/Layr-Labs/approval-signer-go/pkg/config"
	"github.com/Layr-Labs/approval-signer-go/pkg/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "rpc-url",
			Aliases: []string{"rpc"},
			Usage:   "Ethereum RPC endpoint URL",
			Value:   "http://localhost:8545",
			EnvVars: []string{config.EnvApprovalRPCURL},
		},
		&cli.Uint64Flag{
			Name:    "chain-id",
			Aliases: []string{"chain"},
			Usage:   fmt.Sprintf("Ethereum chain ID: %s", config.GetSupportedChainIDsString()),
			Value:   uint64(config.ChainId_EthereumAnvil),
			EnvVars: []string{config.EnvApprovalChainID},
		},
		&cli.StringFlag{
			Name:    "private-key",
			Usage:   "Hex private key that signs approvals",
			EnvVars: []string{config.EnvApprovalPrivateKey},
		},
		&cli.StringFlag{
			Name:    "aws-kms-key-id",
			Usage:   "AWS KMS key id or ARN that signs approvals (ECC_SECG_P256K1)",
			EnvVars: []string{config.EnvApprovalAWSKMSKeyID},
		},
		&cli.StringFlag{
			Name:    "aws-region",
			Usage:   "AWS region override for the KMS key",
			EnvVars: []string{config.EnvApprovalAWSRegion},
		},
		&cli.StringFlag{
			Name:    "tx-private-key",
			Usage:   "Hex private key that pays for submitted transactions (defaults to --private-key)",
			EnvVars: []string{config.EnvApprovalTxPrivateKey},
		},
		&cli.StringFlag{
			Name:    "persistence-type",
			Usage:   "Nonce ledger backend: memory, badger or redis",
			Value:   string(config.PersistenceType_Memory),
			EnvVars: []string{config.EnvApprovalPersistenceType},
		},
		&cli.StringFlag{
			Name:    "badger-path",
			Usage:   "Badger ledger directory",
			EnvVars: []string{config.EnvApprovalBadgerPath},
		},
		&cli.StringFlag{
			Name:    "redis-address",
			Usage:   "Redis ledger address (host:port)",
			EnvVars: []string{config.EnvApprovalRedisAddress},
		},
		&cli.StringFlag{
			Name:    "redis-password",
			EnvVars: []string{config.EnvApprovalRedisPassword},
		},
		&cli.IntFlag{
			Name:    "redis-db",
			EnvVars: []string{config.EnvApprovalRedisDB},
		},
		&cli.StringFlag{
			Name:    "redis-key-prefix",
			Usage:   "Prefix for every ledger key, e.g. mainnet:",
			EnvVars: []string{config.EnvApprovalRedisKeyPrefix},
		},
		&cli.Uint64Flag{
			Name:    "deadline-window",
			Usage:   "Seconds added to the latest block time to form permit deadlines",
			Value:   config.DefaultPermitDeadlineWindow,
			EnvVars: []string{config.EnvApprovalDeadlineWindow},
		},
		&cli.Float64Flag{
			Name:    "nonce-rps",
			Usage:   "Maximum nonce reads per second against the RPC node",
			Value:   config.DefaultNonceRequestsPerSecond,
			EnvVars: []string{config.EnvApprovalNonceRPS},
		},
		&cli.BoolFlag{
			Name:    "allow-fallback",
			Usage:   "Allow unsigned fallback approvals (test and admin use only)",
			EnvVars: []string{config.EnvApprovalAllowFallback},
		},
		&cli.StringSliceFlag{
			Name:    "contract",
			Usage:   "Named contract as name=0x..., usable wherever an address is expected",
			EnvVars: []string{config.EnvApprovalContracts},
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{config.EnvApprovalVerbose},
		},
	}
}

func requestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "kind",
			Usage:    "masterApproval, positionApproval or tokenPermit",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "signer",
			Usage: "Approving account (defaults to the signing key's address)",
		},
		&cli.StringFlag{
			Name:     "counterparty",
			Usage:    "Master contract, lending pair or permit spender",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "verifying-contract",
			Usage:    "BentoBox for approvals, the token for permits",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "approved",
			Usage: "Approval flag; --approved=false revokes",
			Value: true,
		},
		&cli.StringFlag{
			Name:  "value",
			Usage: "Permit amount (decimal)",
		},
		&cli.StringFlag{
			Name:  "submit-via",
			Usage: "Lending pair that forwards a permit",
		},
		&cli.BoolFlag{
			Name:  "fallback",
			Usage: "Produce an unsigned fallback approval",
		},
	}
}

func parseConfig(c *cli.Context) *config.ApprovalSignerConfig {
	return &config.ApprovalSignerConfig{
		RpcUrl:          c.String("rpc-url"),
		ChainID:         config.ChainId(c.Uint64("chain-id")),
		PrivateKey:      c.String("private-key"),
		AWSKMSKeyID:     c.String("aws-kms-key-id"),
		AWSRegion:       c.String("aws-region"),
		PersistenceType: config.PersistenceType(c.String("persistence-type")),
		BadgerPath:      c.String("badger-path"),
		Redis: config.RedisConfig{
			Address:   c.String("redis-address"),
			Password:  c.String("redis-password"),
			DB:        c.Int("redis-db"),
			KeyPrefix: c.String("redis-key-prefix"),
		},
		DeadlineWindow:         c.Uint64("deadline-window"),
		NonceRequestsPerSecond: c.Float64("nonce-rps"),
		AllowFallback:          c.Bool("allow-fallback"),
		Debug:                  c.Bool("verbose"),
	}
}

func parseRegistry(c *cli.Context) (*registry.ContractRegistry, error) {
	r := registry.NewContractRegistry()
	if err := r.RegisterEntries(c.StringSlice("contract")); err != nil {
		return nil, err
	}
	return r, nil
}

// parseRequest builds a request from the request flags. defaultSigner is used when --signer is
// not given; a zero defaultSigner makes --signer mandatory.
func parseRequest(c *cli.Context, contracts *registry.ContractRegistry, defaultSigner common.Address) (approvals.Request, error) {
	kind, err := approvals.ParseKind(c.String("kind"))
	if err != nil {
		return approvals.Request{}, err
	}

	req := approvals.Request{
		Kind:     kind,
		Signer:   defaultSigner,
		Approved: c.Bool("approved"),
		Fallback: c.Bool("fallback"),
	}

	if s := c.String("signer"); s != "" {
		if req.Signer, err = contracts.Resolve(s); err != nil {
			return approvals.Request{}, fmt.Errorf("invalid signer: %w", err)
		}
	}
	if req.Counterparty, err = contracts.Resolve(c.String("counterparty")); err != nil {
		return approvals.Request{}, fmt.Errorf("invalid counterparty: %w", err)
	}
	if req.VerifyingContract, err = contracts.Resolve(c.String("verifying-contract")); err != nil {
		return approvals.Request{}, fmt.Errorf("invalid verifying contract: %w", err)
	}
	if s := c.String("submit-via"); s != "" {
		if req.SubmitVia, err = contracts.Resolve(s); err != nil {
			return approvals.Request{}, fmt.Errorf("invalid submit-via: %w", err)
		}
	}
	if s := c.String("value"); s != "" {
		if req.Value, err = uint256.FromDecimal(s); err != nil {
			return approvals.Request{}, fmt.Errorf("invalid value %q: %w", s, err)
		}
	}

	if err := req.Validate(); err != nil {
		return approvals.Request{}, err
	}
	return req, nil
}
