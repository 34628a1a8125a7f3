package typedData

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

const domainTypeName = "EIP712Domain"

// DomainDescriptor identifies the verifying contract instance a signature is bound to.
// Name and Version are optional; which of them are set selects the domain type signature.
type DomainDescriptor struct {
	Name              *string
	Version           *string
	ChainId           uint256.Int
	VerifyingContract common.Address
}

type DomainOption func(*DomainDescriptor)

func WithName(name string) DomainOption {
	return func(d *DomainDescriptor) {
		d.Name = &name
	}
}

func WithVersion(version string) DomainOption {
	return func(d *DomainDescriptor) {
		d.Version = &version
	}
}

func NewDomainDescriptor(chainId uint64, verifyingContract common.Address, opts ...DomainOption) DomainDescriptor {
	d := DomainDescriptor{VerifyingContract: verifyingContract}
	d.ChainId.SetUint64(chainId)
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// TypeSignature returns the EIP712Domain type string containing exactly the present fields.
func (d DomainDescriptor) TypeSignature() string {
	parts := make([]string, 0, 4)
	if d.Name != nil {
		parts = append(parts, "string name")
	}
	if d.Version != nil {
		parts = append(parts, "string version")
	}
	parts = append(parts, "uint256 chainId", "address verifyingContract")
	return domainTypeName + "(" + strings.Join(parts, ",") + ")"
}

// TypeHash returns keccak256 of TypeSignature().
func (d DomainDescriptor) TypeHash() common.Hash {
	return crypto.Keccak256Hash([]byte(d.TypeSignature()))
}

// Fields returns the encoded domain fields in declaration order.
func (d DomainDescriptor) Fields() []TypedField {
	fields := make([]TypedField, 0, 4)
	if d.Name != nil {
		fields = append(fields, TypedField{Name: "name", Value: String(*d.Name)})
	}
	if d.Version != nil {
		fields = append(fields, TypedField{Name: "version", Value: String(*d.Version)})
	}
	chainId := d.ChainId
	fields = append(fields,
		TypedField{Name: "chainId", Value: Uint256(&chainId)},
		TypedField{Name: "verifyingContract", Value: Address(d.VerifyingContract)},
	)
	return fields
}

func (d DomainDescriptor) key() domainKey {
	k := domainKey{
		chainId:  d.ChainId.Bytes32(),
		contract: d.VerifyingContract,
	}
	if d.Name != nil {
		k.hasName, k.name = true, *d.Name
	}
	if d.Version != nil {
		k.hasVersion, k.version = true, *d.Version
	}
	return k
}

type domainKey struct {
	hasName    bool
	name       string
	hasVersion bool
	version    string
	chainId    [32]byte
	contract   common.Address
}
