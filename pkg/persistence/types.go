package persistence

import (
	"fmt"
	"strings"

	"github.com/Layr-Labs/approval-signer-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

type ApprovalState string

const (
	ApprovalState_Signed    ApprovalState = "signed"
	ApprovalState_Submitted ApprovalState = "submitted"
)

// NonceKey scopes a nonce sequence. Contracts keep one nonce counter per signer, and
// each approval kind reads it from a different contract, so all four parts are needed.
type NonceKey struct {
	Kind              string         `json:"kind"`
	ChainId           uint64         `json:"chainId"`
	VerifyingContract common.Address `json:"verifyingContract"`
	Signer            common.Address `json:"signer"`
}

// String renders the key in a form safe for use inside storage keys.
func (k NonceKey) String() string {
	return fmt.Sprintf("%s:%d:%s:%s",
		k.Kind,
		k.ChainId,
		strings.ToLower(k.VerifyingContract.Hex()),
		strings.ToLower(k.Signer.Hex()),
	)
}

// ApprovalRecord is the ledger entry written when a nonce is signed over.
type ApprovalRecord struct {
	Key   NonceKey `json:"key"`
	Nonce uint64   `json:"nonce"`

	// TicketId identifies the request that consumed the nonce.
	TicketId string `json:"ticketId"`

	// Digest is the signing digest the signature covers.
	Digest    common.Hash      `json:"digest"`
	Signature *types.Signature `json:"signature,omitempty"`

	State  ApprovalState `json:"state"`
	TxHash common.Hash   `json:"txHash"`

	// CreatedAt is the Unix timestamp the record was written.
	CreatedAt int64 `json:"createdAt"`
}

// Copy returns a deep copy of the record.
func (r *ApprovalRecord) Copy() *ApprovalRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.Signature != nil {
		sig := *r.Signature
		out.Signature = &sig
	}
	return &out
}
