package persistence

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNonceConsumed is returned when a nonce has already been recorded for a key.
	ErrNonceConsumed = errors.New("nonce already consumed")

	// ErrNonceSubmitted is returned when releasing a nonce whose approval was already submitted.
	ErrNonceSubmitted = errors.New("nonce already submitted")

	// ErrRecordNotFound is returned by updates targeting a nonce that was never consumed.
	ErrRecordNotFound = errors.New("approval record not found")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("persistence layer is closed")
)

// IApprovalPersistence is the ledger of nonces that have been signed over.
// All implementations must be thread-safe; ConsumeNonce must be an atomic check-and-set so that
// two signers sharing a backend can never both sign over the same nonce.
//
// The interface supports:
// - Nonce consumption and release (consume, release, check)
// - Approval record lookup (load, list)
// - Submission tracking
// - Lifecycle management (close, health check)
type IApprovalPersistence interface {
	// Nonce Ledger

	// ConsumeNonce records that record.Nonce has been signed over for record.Key.
	// Returns ErrNonceConsumed if a record already exists for that key and nonce.
	ConsumeNonce(record *ApprovalRecord) error

	// ReleaseNonce removes a signed but unsubmitted record so the nonce may be signed again.
	// Idempotent - returns nil if nothing was recorded.
	// Returns ErrNonceSubmitted if the approval was already submitted.
	ReleaseNonce(key NonceKey, nonce uint64) error

	// IsNonceConsumed reports whether a record exists for key and nonce.
	IsNonceConsumed(key NonceKey, nonce uint64) (bool, error)

	// Records

	// LoadApprovalRecord returns the record for key and nonce.
	// Returns nil if it doesn't exist, error only on storage failure.
	LoadApprovalRecord(key NonceKey, nonce uint64) (*ApprovalRecord, error)

	// ListApprovalRecords returns every record for key sorted by nonce (ascending).
	ListApprovalRecords(key NonceKey) ([]*ApprovalRecord, error)

	// MarkSubmitted moves a record to the submitted state and stores the transaction hash.
	// Returns ErrRecordNotFound if the nonce was never consumed.
	MarkSubmitted(key NonceKey, nonce uint64, txHash common.Hash) error

	// Lifecycle Management

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	HealthCheck() error
}
