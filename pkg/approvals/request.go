package approvals

import (
	"fmt"

	"github.com/Layr-Labs/approval-signer-go/pkg/typedData"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Request describes one approval to sign.
//
//   - MasterApproval: VerifyingContract is BentoBox, Counterparty the master contract.
//   - PositionApproval: VerifyingContract is BentoBox, Counterparty the lending pair, which is
//     also where the approval is submitted.
//   - TokenPermit: VerifyingContract is the token, Counterparty the spender, SubmitVia the
//     lending pair that forwards the permit.
type Request struct {
	Kind              Kind           `json:"kind"`
	Signer            common.Address `json:"signer"`
	Counterparty      common.Address `json:"counterparty"`
	VerifyingContract common.Address `json:"verifyingContract"`

	// Approved is the flag of master and position approvals.
	Approved bool `json:"approved"`

	// Value is the permit amount.
	Value *uint256.Int `json:"value,omitempty"`

	SubmitVia common.Address `json:"submitVia"`

	// Fallback requests carry the sentinel signature and skip signing entirely.
	Fallback bool `json:"fallback"`
}

func (r *Request) Validate() error {
	if _, ok := kindNames[r.Kind]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, r.Kind)
	}
	if r.Signer == (common.Address{}) {
		return fmt.Errorf("%w: signer is required", ErrInvalidRequest)
	}
	if r.Counterparty == (common.Address{}) {
		return fmt.Errorf("%w: counterparty is required", ErrInvalidRequest)
	}
	if r.VerifyingContract == (common.Address{}) {
		return fmt.Errorf("%w: verifying contract is required", ErrInvalidRequest)
	}
	if r.Kind == KindTokenPermit && r.Value == nil {
		return fmt.Errorf("%w: permit value is required", ErrInvalidRequest)
	}
	if r.Kind != KindTokenPermit && r.Value != nil {
		return fmt.Errorf("%w: value is only valid for permits", ErrInvalidRequest)
	}
	// a permit with a zero signature and deadline is rejected by every token
	if r.Kind == KindTokenPermit && r.Fallback {
		return fmt.Errorf("%w: permits cannot use fallback signatures", ErrInvalidRequest)
	}
	return nil
}

// Domain returns the domain the request's verifying contract hashes on chainId.
func (r *Request) Domain(chainId uint64) typedData.DomainDescriptor {
	if r.Kind == KindTokenPermit {
		return TokenDomain(chainId, r.VerifyingContract)
	}
	return BentoBoxDomain(chainId, r.VerifyingContract)
}

// Message builds the structured message for nonce. deadline is ignored by approvals.
func (r *Request) Message(nonce, deadline uint64) *typedData.StructuredMessage {
	switch r.Kind {
	case KindMasterApproval:
		return BuildMasterApproval(r.Signer, r.Counterparty, r.Approved, nonce)
	case KindPositionApproval:
		return BuildPositionApproval(r.Signer, r.Counterparty, r.Approved, nonce)
	case KindTokenPermit:
		return BuildTokenPermit(r.Signer, r.Counterparty, r.Value, nonce, deadline)
	default:
		panic(fmt.Sprintf("unhandled approval kind %s", r.Kind))
	}
}
