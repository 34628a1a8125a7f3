package approvals

import (
	"fmt"
	"strings"

	"github.com/Layr-Labs/approval-signer-go/pkg/config"
	"github.com/Layr-Labs/approval-signer-go/pkg/typedData"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Kind is the closed set of approvals this package can build.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindMasterApproval
	KindPositionApproval
	KindTokenPermit
)

var kindNames = map[Kind]string{
	KindMasterApproval:   "masterApproval",
	KindPositionApproval: "positionApproval",
	KindTokenPermit:      "tokenPermit",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// ParseKind accepts the String() form of a kind, case-insensitively.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// NonceScope names the contract counter a kind consumes. Master and position approvals are both
// counted by BentoBox.nonces, so they share a scope.
func (k Kind) NonceScope() string {
	switch k {
	case KindMasterApproval, KindPositionApproval:
		return "bentoBox"
	case KindTokenPermit:
		return "permit"
	default:
		return k.String()
	}
}

const (
	MasterApprovalTypeSignature = "SetMasterContractApproval(string warning,address user,address masterContract,bool approved,uint256 nonce)"
	PermitTypeSignature         = "Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)"

	// The warning text is hashed into the message, so it must match BentoBox byte for byte.
	ApproveWarning = "Give FULL access to funds in (and approved to) BentoBox?"
	RevokeWarning  = "Revoke access to BentoBox?"
)

var (
	MasterApprovalType = typedData.MustStructType("SetMasterContractApproval",
		typedData.FieldDef{Name: "warning", Type: "string"},
		typedData.FieldDef{Name: "user", Type: "address"},
		typedData.FieldDef{Name: "masterContract", Type: "address"},
		typedData.FieldDef{Name: "approved", Type: "bool"},
		typedData.FieldDef{Name: "nonce", Type: "uint256"},
	)

	PermitType = typedData.MustStructType("Permit",
		typedData.FieldDef{Name: "owner", Type: "address"},
		typedData.FieldDef{Name: "spender", Type: "address"},
		typedData.FieldDef{Name: "value", Type: "uint256"},
		typedData.FieldDef{Name: "nonce", Type: "uint256"},
		typedData.FieldDef{Name: "deadline", Type: "uint256"},
	)
)

func init() {
	if MasterApprovalType.Signature() != MasterApprovalTypeSignature || PermitType.Signature() != PermitTypeSignature {
		panic("approval struct types do not match their type signatures")
	}
}

// Warning returns the warning string hashed into a master approval.
func Warning(approved bool) string {
	if approved {
		return ApproveWarning
	}
	return RevokeWarning
}

// BentoBoxDomain is the domain BentoBox verifies master and position approvals against.
func BentoBoxDomain(chainId uint64, bentoBox common.Address) typedData.DomainDescriptor {
	return typedData.NewDomainDescriptor(chainId, bentoBox, typedData.WithName(config.BentoBoxDomainName))
}

// TokenDomain is the domain a permit-capable token verifies against: chain id and contract only.
func TokenDomain(chainId uint64, token common.Address) typedData.DomainDescriptor {
	return typedData.NewDomainDescriptor(chainId, token)
}

// the builders pass values whose types are fixed by their signatures, so construction cannot fail
func mustMessage(t *typedData.StructType, values ...typedData.FieldValue) *typedData.StructuredMessage {
	m, err := typedData.NewStructuredMessage(t, values...)
	if err != nil {
		panic(err)
	}
	return m
}

// BuildMasterApproval grants (or revokes) masterContract authority over user's BentoBox balance.
func BuildMasterApproval(user, masterContract common.Address, approved bool, nonce uint64) *typedData.StructuredMessage {
	return mustMessage(MasterApprovalType,
		typedData.String(Warning(approved)),
		typedData.Address(user),
		typedData.Address(masterContract),
		typedData.Bool(approved),
		typedData.Uint64(nonce),
	)
}

// BuildPositionApproval is a master approval whose counterparty is a lending pair.
func BuildPositionApproval(user, pair common.Address, approved bool, nonce uint64) *typedData.StructuredMessage {
	return BuildMasterApproval(user, pair, approved, nonce)
}

func BuildTokenPermit(owner, spender common.Address, value *uint256.Int, nonce, deadline uint64) *typedData.StructuredMessage {
	return mustMessage(PermitType,
		typedData.Address(owner),
		typedData.Address(spender),
		typedData.Uint256(value),
		typedData.Uint64(nonce),
		typedData.Uint64(deadline),
	)
}
