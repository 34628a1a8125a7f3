package approvals

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/approval-signer-go/pkg/blockClock"
	"github.com/Layr-Labs/approval-signer-go/pkg/persistence"
	"github.com/Layr-Labs/approval-signer-go/pkg/signer"
	"github.com/Layr-Labs/approval-signer-go/pkg/typedData"
	"github.com/Layr-Labs/approval-signer-go/pkg/types"
	"github.com/Layr-Labs/approval-signer-go/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// INonceSource reads the authoritative replay-protection nonce of owner from contract.
type INonceSource interface {
	GetNonce(ctx context.Context, contract common.Address, owner common.Address) (uint64, error)
}

type ApproverConfig struct {
	ChainId uint64

	// DeadlineWindow is added to the latest block time to form permit deadlines.
	DeadlineWindow uint64

	NonceRequestsPerSecond float64

	AllowFallback bool
}

// Approver builds, signs and records approvals for a single signing key.
type Approver struct {
	config     *ApproverConfig
	nonces     INonceSource
	clock      blockClock.IBlockClock
	signer     signer.IDigestSigner
	ledger     persistence.IApprovalPersistence
	separators *typedData.DomainSeparatorCache
	limiter    *rate.Limiter
	logger     *zap.Logger

	// NonceKey.String() -> struct{} while a request holds the counter
	inFlight sync.Map
}

func NewApprover(
	cfg *ApproverConfig,
	nonces INonceSource,
	clock blockClock.IBlockClock,
	digestSigner signer.IDigestSigner,
	ledger persistence.IApprovalPersistence,
	logger *zap.Logger,
) (*Approver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("approver config is required")
	}
	if cfg.DeadlineWindow == 0 {
		return nil, fmt.Errorf("deadline window must be greater than 0")
	}
	if cfg.NonceRequestsPerSecond <= 0 {
		return nil, fmt.Errorf("nonce requests per second must be greater than 0")
	}
	if nonces == nil || clock == nil || digestSigner == nil || ledger == nil {
		return nil, fmt.Errorf("nonce source, block clock, signer and ledger are required")
	}

	burst := int(cfg.NonceRequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	return &Approver{
		config:     cfg,
		nonces:     nonces,
		clock:      clock,
		signer:     digestSigner,
		ledger:     ledger,
		separators: typedData.NewDomainSeparatorCache(),
		limiter:    rate.NewLimiter(rate.Limit(cfg.NonceRequestsPerSecond), burst),
		logger:     logger,
	}, nil
}

// SignerAddress is the address approvals are signed by.
func (a *Approver) SignerAddress() common.Address {
	return a.signer.GetFromAddress()
}

func (a *Approver) acquire(key persistence.NonceKey) (func(), error) {
	k := key.String()
	if _, loaded := a.inFlight.LoadOrStore(k, struct{}{}); loaded {
		return nil, fmt.Errorf("%w: %s", ErrNonceInFlight, k)
	}
	return func() { a.inFlight.Delete(k) }, nil
}

func (a *Approver) fetchNonce(ctx context.Context, r Request) (uint64, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNonceFetch, err)
	}
	nonce, err := a.nonces.GetNonce(ctx, r.VerifyingContract, r.Signer)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNonceFetch, err)
	}
	return nonce, nil
}

func (a *Approver) fallbackTicket(req Request) (*Ticket, error) {
	if !a.config.AllowFallback {
		return nil, ErrFallbackDisabled
	}
	a.logger.Sugar().Warnw("Issuing fallback approval without a signature",
		"kind", req.Kind.String(),
		"signer", req.Signer.String(),
		"counterparty", req.Counterparty.String(),
	)
	return &Ticket{
		Id:        uuid.NewString(),
		Request:   req,
		State:     StateSigned,
		ChainId:   a.config.ChainId,
		Signature: types.SentinelSignature(),
	}, nil
}

// Prepare fetches a fresh nonce and computes the digests for req. For permits the deadline is
// the latest block time plus the configured window. Nothing is recorded, so a failure here can
// be retried from scratch.
func (a *Approver) Prepare(ctx context.Context, req Request) (*Ticket, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Fallback {
		return a.fallbackTicket(req)
	}
	if req.Signer != a.signer.GetFromAddress() {
		return nil, fmt.Errorf("%w: request signer %s does not match signing key %s",
			ErrInvalidRequest, req.Signer.String(), a.signer.GetFromAddress().String())
	}

	ticket := &Ticket{
		Id:      uuid.NewString(),
		Request: req,
		State:   StateRequested,
		ChainId: a.config.ChainId,
	}

	nonce, err := a.fetchNonce(ctx, req)
	if err != nil {
		return nil, err
	}
	ticket.Nonce = nonce
	ticket.State = StateNonceFetched

	if req.Kind == KindTokenPermit {
		blockTime, err := a.clock.BlockTime(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBlockTime, err)
		}
		ticket.Deadline = blockTime + a.config.DeadlineWindow
	}

	ticket.Domain = req.Domain(a.config.ChainId)
	ticket.Message = req.Message(ticket.Nonce, ticket.Deadline)
	ticket.DomainSeparator = a.separators.Get(ticket.Domain)
	ticket.MessageDigest = typedData.MessageDigest(ticket.Message)
	ticket.Digest = typedData.SigningDigest(ticket.DomainSeparator, ticket.MessageDigest)
	ticket.State = StateDigestComputed

	a.logger.Sugar().Debugw("Prepared approval",
		"ticket", ticket.Id,
		"kind", req.Kind.String(),
		"signer", util.ShortAddress(req.Signer),
		"verifyingContract", util.ShortAddress(req.VerifyingContract),
		"nonce", ticket.Nonce,
		"deadline", ticket.Deadline,
		"digest", ticket.Digest.Hex(),
	)
	return ticket, nil
}

// Sign signs a prepared ticket. The nonce is re-read first; if the contract has moved past it,
// ErrStaleNonce is returned and nothing is signed. If the ledger holds an unsubmitted signature
// over it, ErrNonceUnsubmitted is returned.
func (a *Approver) Sign(ctx context.Context, ticket *Ticket) error {
	if ticket == nil || ticket.State != StateDigestComputed {
		return fmt.Errorf("%w: ticket must be in state %s", ErrInvalidState, StateDigestComputed)
	}

	release, err := a.acquire(ticket.NonceKey())
	if err != nil {
		return err
	}
	defer release()

	return a.signLocked(ctx, ticket)
}

func (a *Approver) signLocked(ctx context.Context, ticket *Ticket) error {
	key := ticket.NonceKey()

	current, err := a.fetchNonce(ctx, ticket.Request)
	if err != nil {
		return err
	}
	if current != ticket.Nonce {
		return fmt.Errorf("%w: ticket nonce %d, contract nonce %d", ErrStaleNonce, ticket.Nonce, current)
	}

	record, err := a.ledger.LoadApprovalRecord(key, ticket.Nonce)
	if err != nil {
		return fmt.Errorf("failed to check nonce ledger: %w", err)
	}
	if record != nil {
		if record.State == persistence.ApprovalState_Signed {
			return fmt.Errorf("%w: nonce %d for %s (ticket %s)", ErrNonceUnsubmitted, ticket.Nonce, key.String(), record.TicketId)
		}
		// submitted but not yet reflected in the contract nonce
		return fmt.Errorf("%w: nonce %d already submitted for %s", ErrStaleNonce, ticket.Nonce, key.String())
	}

	sig, err := a.signer.SignDigest(ctx, ticket.Digest)
	if err != nil {
		a.logger.Sugar().Errorw("Failed to sign approval digest",
			"ticket", ticket.Id,
			"digest", ticket.Digest.Hex(),
			"error", err,
		)
		return fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	// a concurrent signer on a shared ledger can still win here; the signature is then discarded
	err = a.ledger.ConsumeNonce(&persistence.ApprovalRecord{
		Key:       key,
		Nonce:     ticket.Nonce,
		TicketId:  ticket.Id,
		Digest:    ticket.Digest,
		Signature: sig,
		State:     persistence.ApprovalState_Signed,
		CreatedAt: time.Now().Unix(),
	})
	if errors.Is(err, persistence.ErrNonceConsumed) {
		return fmt.Errorf("%w: nonce %d already signed for %s", ErrStaleNonce, ticket.Nonce, key.String())
	}
	if err != nil {
		return fmt.Errorf("failed to record nonce: %w", err)
	}

	ticket.Signature = sig
	ticket.State = StateSigned

	a.logger.Sugar().Infow("Signed approval",
		"ticket", ticket.Id,
		"kind", ticket.Request.Kind.String(),
		"signer", util.ShortAddress(ticket.Request.Signer),
		"nonce", ticket.Nonce,
		"digest", ticket.Digest.Hex(),
	)
	return nil
}

// Approve prepares and signs req while holding its nonce counter, so a concurrent request for
// the same signer and counter fails with ErrNonceInFlight instead of reading the same nonce.
func (a *Approver) Approve(ctx context.Context, req Request) (*Ticket, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Fallback {
		return a.fallbackTicket(req)
	}

	release, err := a.acquire(NonceKeyFor(req, a.config.ChainId))
	if err != nil {
		return nil, err
	}
	defer release()

	ticket, err := a.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := a.signLocked(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// Abandon gives up on a ticket that will not be submitted. A signed nonce is released from the
// ledger so the next request, after fetching the nonce again, may sign over it.
func (a *Approver) Abandon(ctx context.Context, ticket *Ticket) error {
	if ticket == nil {
		return fmt.Errorf("%w: ticket is nil", ErrInvalidState)
	}

	switch ticket.State {
	case StateSubmitted:
		return fmt.Errorf("%w: ticket %s was already submitted", ErrInvalidState, ticket.Id)
	case StateAbandoned:
		return nil
	case StateSigned:
		if !ticket.Request.Fallback {
			if err := a.ledger.ReleaseNonce(ticket.NonceKey(), ticket.Nonce); err != nil {
				return fmt.Errorf("failed to release nonce: %w", err)
			}
		}
	}

	ticket.State = StateAbandoned
	a.logger.Sugar().Infow("Abandoned approval", "ticket", ticket.Id, "nonce", ticket.Nonce)
	return nil
}

// MarkSubmitted records that a signed ticket was included on chain in txHash.
func (a *Approver) MarkSubmitted(ctx context.Context, ticket *Ticket, txHash common.Hash) error {
	if ticket == nil || ticket.State != StateSigned {
		return fmt.Errorf("%w: ticket must be in state %s", ErrInvalidState, StateSigned)
	}
	if !ticket.Request.Fallback {
		if err := a.ledger.MarkSubmitted(ticket.NonceKey(), ticket.Nonce, txHash); err != nil {
			return fmt.Errorf("failed to mark nonce submitted: %w", err)
		}
	}
	ticket.TxHash = txHash
	ticket.State = StateSubmitted
	return nil
}

// SignOffline signs req with an explicit nonce and deadline, without a chain or ledger.
// Nothing protects the nonce from reuse; callers own that.
func SignOffline(
	ctx context.Context,
	digestSigner signer.IDigestSigner,
	req Request,
	chainId uint64,
	nonce uint64,
	deadline uint64,
) (*Ticket, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Fallback {
		return nil, fmt.Errorf("%w: offline signing cannot produce fallback approvals", ErrInvalidRequest)
	}

	ticket := &Ticket{
		Id:       uuid.NewString(),
		Request:  req,
		ChainId:  chainId,
		Nonce:    nonce,
		Deadline: deadline,
		Domain:   req.Domain(chainId),
		Message:  req.Message(nonce, deadline),
	}
	ticket.DomainSeparator = typedData.DomainSeparator(ticket.Domain)
	ticket.MessageDigest = typedData.MessageDigest(ticket.Message)
	ticket.Digest = typedData.SigningDigest(ticket.DomainSeparator, ticket.MessageDigest)
	ticket.State = StateDigestComputed

	if digestSigner == nil {
		return ticket, nil
	}
	if digestSigner.GetFromAddress() != req.Signer {
		return nil, fmt.Errorf("%w: request signer %s does not match signing key %s",
			ErrInvalidRequest, req.Signer.String(), digestSigner.GetFromAddress().String())
	}

	sig, err := digestSigner.SignDigest(ctx, ticket.Digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}
	ticket.Signature = sig
	ticket.State = StateSigned
	return ticket, nil
}
