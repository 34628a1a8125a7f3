package config

import (
	"fmt"
	"strings"

	"github.com/Layr-Labs/approval-signer-go/pkg/util"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for the approval signer
const (
	EnvApprovalRPCURL          = "APPROVAL_RPC_URL"
	EnvApprovalChainID         = "APPROVAL_CHAIN_ID"
	EnvApprovalPrivateKey      = "APPROVAL_PRIVATE_KEY"
	EnvApprovalAWSKMSKeyID     = "APPROVAL_AWS_KMS_KEY_ID"
	EnvApprovalAWSRegion       = "APPROVAL_AWS_REGION"
	EnvApprovalPersistenceType = "APPROVAL_PERSISTENCE_TYPE"
	EnvApprovalBadgerPath      = "APPROVAL_BADGER_PATH"
	EnvApprovalRedisAddress    = "APPROVAL_REDIS_ADDRESS"
	EnvApprovalRedisPassword   = "APPROVAL_REDIS_PASSWORD"
	EnvApprovalRedisDB         = "APPROVAL_REDIS_DB"
	EnvApprovalDeadlineWindow  = "APPROVAL_DEADLINE_WINDOW"
	EnvApprovalNonceRPS        = "APPROVAL_NONCE_RPS"
	EnvApprovalAllowFallback   = "APPROVAL_ALLOW_FALLBACK"
	EnvApprovalVerbose         = "APPROVAL_VERBOSE"
	EnvApprovalTxPrivateKey    = "APPROVAL_TX_PRIVATE_KEY"
	EnvApprovalRedisKeyPrefix  = "APPROVAL_REDIS_KEY_PREFIX"
	EnvApprovalContracts       = "APPROVAL_CONTRACTS"
)

const (
	// BentoBoxDomainName is the EIP-712 domain name the BentoBox contract hashes into its separator.
	BentoBoxDomainName = "BentoBox V2"

	// DefaultPermitDeadlineWindow is added to the latest block timestamp to form a permit deadline.
	DefaultPermitDeadlineWindow uint64 = 10000

	// DefaultNonceRequestsPerSecond throttles nonce reads against the RPC node.
	DefaultNonceRequestsPerSecond = 10.0
)

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
}
var ChainNameToId = map[ChainName]ChainId{
	ChainName_EthereumMainnet: ChainId_EthereumMainnet,
	ChainName_EthereumSepolia: ChainId_EthereumSepolia,
	ChainName_EthereumAnvil:   ChainId_EthereumAnvil,
}

// GetSupportedChainIDsString returns supported chain IDs as strings for CLI help
func GetSupportedChainIDsString() string {
	return fmt.Sprintf("%d (mainnet), %d (sepolia), %d (anvil/hardhat)",
		ChainId_EthereumMainnet, ChainId_EthereumSepolia, ChainId_EthereumAnvil)
}

type PersistenceType string

const (
	PersistenceType_Memory PersistenceType = "memory"
	PersistenceType_Badger PersistenceType = "badger"
	PersistenceType_Redis  PersistenceType = "redis"
)

type RedisConfig struct {
	Address   string `json:"address" yaml:"address"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// ApprovalSignerConfig is the full configuration of an approval signing process.
type ApprovalSignerConfig struct {
	RpcUrl    string    `json:"rpc_url"`
	ChainID   ChainId   `json:"chain_id"`
	ChainName ChainName `json:"chain_name"`

	// Exactly one signing backend must be set.
	PrivateKey  string `json:"-"`
	AWSKMSKeyID string `json:"aws_kms_key_id"`
	AWSRegion   string `json:"aws_region"`

	PersistenceType PersistenceType `json:"persistence_type"`
	BadgerPath      string          `json:"badger_path"`
	Redis           RedisConfig     `json:"redis"`

	DeadlineWindow         uint64  `json:"deadline_window"`
	NonceRequestsPerSecond float64 `json:"nonce_requests_per_second"`

	// AllowFallback permits sentinel (unsigned) approvals. Test and admin use only.
	AllowFallback bool `json:"allow_fallback"`

	Debug bool `json:"debug"`
}

// Validate checks the configuration and fills derived fields such as ChainName.
func (c *ApprovalSignerConfig) Validate() error {
	var allErrors field.ErrorList

	if c.RpcUrl == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("rpcUrl"), "rpcUrl is required"))
	}

	chainName, ok := ChainIdToName[c.ChainID]
	if !ok {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("chainId"), c.ChainID, []string{
			fmt.Sprint(ChainId_EthereumMainnet), fmt.Sprint(ChainId_EthereumSepolia), fmt.Sprint(ChainId_EthereumAnvil),
		}))
	} else {
		c.ChainName = chainName
	}

	switch {
	case c.PrivateKey == "" && c.AWSKMSKeyID == "":
		allErrors = append(allErrors, field.Required(field.NewPath("privateKey"), "one of privateKey or awsKmsKeyId is required"))
	case c.PrivateKey != "" && c.AWSKMSKeyID != "":
		allErrors = append(allErrors, field.Forbidden(field.NewPath("awsKmsKeyId"), "cannot be combined with privateKey"))
	case c.PrivateKey != "":
		if err := validatePrivateKeyHex(c.PrivateKey); err != nil {
			allErrors = append(allErrors, field.Invalid(field.NewPath("privateKey"), "<redacted>", err.Error()))
		}
	}

	switch c.PersistenceType {
	case PersistenceType_Memory:
	case PersistenceType_Badger:
		if c.BadgerPath == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("badgerPath"), "badgerPath is required for badger persistence"))
		}
	case PersistenceType_Redis:
		if c.Redis.Address == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redis", "address"), "redis address is required for redis persistence"))
		}
		if c.Redis.DB < 0 || c.Redis.DB > 15 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redis", "db"), c.Redis.DB, "must be between 0 and 15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("persistenceType"), c.PersistenceType, []string{
			string(PersistenceType_Memory), string(PersistenceType_Badger), string(PersistenceType_Redis),
		}))
	}

	if c.DeadlineWindow == 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("deadlineWindow"), c.DeadlineWindow, "must be greater than 0"))
	}
	if c.NonceRequestsPerSecond <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("nonceRequestsPerSecond"), c.NonceRequestsPerSecond, "must be greater than 0"))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func validatePrivateKeyHex(key string) error {
	key = strings.TrimPrefix(key, "0x")
	if len(key) != 64 {
		return fmt.Errorf("private key must be 32 bytes (64 hex chars), got %d chars", len(key))
	}
	if _, err := util.DeriveAddressFromECDSAPrivateKeyString(key); err != nil {
		return err
	}
	return nil
}
