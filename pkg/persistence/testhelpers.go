package persistence

import (
	"fmt"
	"time"

	"github.com/Layr-Labs/approval-signer-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// NewTestNonceKey returns a key with a random signer so tests sharing a backend don't collide.
func NewTestNonceKey(kind string) NonceKey {
	id := uuid.New()
	return NonceKey{
		Kind:              kind,
		ChainId:           31337,
		VerifyingContract: common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		Signer:            common.BytesToAddress(id[:]),
	}
}

// NewTestApprovalRecord returns a signed record for key and nonce with a placeholder signature.
func NewTestApprovalRecord(key NonceKey, nonce uint64) *ApprovalRecord {
	digest := crypto.Keccak256Hash([]byte(fmt.Sprintf("%s:%d", key, nonce)))
	return &ApprovalRecord{
		Key:      key,
		Nonce:    nonce,
		TicketId: uuid.NewString(),
		Digest:   digest,
		Signature: &types.Signature{
			R: digest,
			S: crypto.Keccak256Hash(digest[:]),
			V: 27,
		},
		State:     ApprovalState_Signed,
		CreatedAt: time.Now().Unix(),
	}
}
