package approvals

import "errors"

var (
	// ErrNonceFetch wraps failures reading the authoritative nonce. Retryable from scratch.
	ErrNonceFetch = errors.New("failed to fetch nonce")

	// ErrBlockTime wraps failures reading the latest block time. Retryable from scratch.
	ErrBlockTime = errors.New("failed to read block time")

	// ErrStaleNonce means the ticket's nonce is no longer the next one to sign: the contract moved
	// on or the ledger already recorded a signature over it. Prepare a new ticket.
	ErrStaleNonce = errors.New("stale nonce")

	// ErrNonceUnsubmitted means the ledger holds a signature over the current contract nonce that
	// was never submitted. Retrying cannot succeed until that signature is submitted or its nonce
	// is released.
	ErrNonceUnsubmitted = errors.New("nonce signed but not submitted")

	// ErrNonceInFlight means another request for the same signer and nonce counter holds the lock.
	ErrNonceInFlight = errors.New("another approval for this nonce counter is in flight")

	// ErrSigningFailed is terminal for the request.
	ErrSigningFailed = errors.New("signing failed")

	ErrFallbackDisabled = errors.New("fallback signatures are disabled")
	ErrInvalidState     = errors.New("invalid ticket state")
	ErrUnknownKind      = errors.New("unknown approval kind")
	ErrInvalidRequest   = errors.New("invalid approval request")
)

// IsRetryable reports whether a request that failed with err can be retried from the start.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNonceFetch) ||
		errors.Is(err, ErrBlockTime) ||
		errors.Is(err, ErrStaleNonce) ||
		errors.Is(err, ErrNonceInFlight)
}
