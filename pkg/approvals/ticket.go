package approvals

import (
	"github.com/Layr-Labs/approval-signer-go/pkg/persistence"
	"github.com/Layr-Labs/approval-signer-go/pkg/typedData"
	"github.com/Layr-Labs/approval-signer-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

type State uint8

const (
	StateRequested State = iota
	StateNonceFetched
	StateDigestComputed
	StateSigned
	StateSubmitted
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StateNonceFetched:
		return "nonceFetched"
	case StateDigestComputed:
		return "digestComputed"
	case StateSigned:
		return "signed"
	case StateSubmitted:
		return "submitted"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Ticket follows one request through Requested -> NonceFetched -> DigestComputed -> Signed -> Submitted.
// Tickets are not persisted; the ledger only records nonces once they are signed over.
type Ticket struct {
	Id      string  `json:"id"`
	Request Request `json:"request"`
	State   State   `json:"state"`

	ChainId  uint64 `json:"chainId"`
	Nonce    uint64 `json:"nonce"`
	Deadline uint64 `json:"deadline"`

	Domain  typedData.DomainDescriptor   `json:"-"`
	Message *typedData.StructuredMessage `json:"-"`

	DomainSeparator common.Hash `json:"domainSeparator"`
	MessageDigest   common.Hash `json:"messageDigest"`
	Digest          common.Hash `json:"digest"`

	Signature *types.Signature `json:"signature,omitempty"`
	TxHash    common.Hash      `json:"txHash"`
}

// NonceKey identifies the nonce counter the ticket consumes.
func (t *Ticket) NonceKey() persistence.NonceKey {
	return NonceKeyFor(t.Request, t.ChainId)
}

// NonceKeyFor returns the ledger key the nonce of r is tracked under on chainId.
func NonceKeyFor(r Request, chainId uint64) persistence.NonceKey {
	return persistence.NonceKey{
		Kind:              r.Kind.NonceScope(),
		ChainId:           chainId,
		VerifyingContract: r.VerifyingContract,
		Signer:            r.Signer,
	}
}
