package approvals

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/approval-signer-go/pkg/contractCaller"
	"github.com/ethereum/go-ethereum/common"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Submitter hands signed tickets to the contract entry point that verifies them.
type Submitter struct {
	caller   contractCaller.IContractCaller
	approver *Approver
	logger   *zap.Logger
}

func NewSubmitter(caller contractCaller.IContractCaller, approver *Approver, logger *zap.Logger) *Submitter {
	return &Submitter{
		caller:   caller,
		approver: approver,
		logger:   logger,
	}
}

// Submit sends the ticket and marks it submitted once the transaction succeeds. On failure the
// ticket stays signed; call Approver.Abandon if it will not be retried.
func (s *Submitter) Submit(ctx context.Context, ticket *Ticket) (*ethereumTypes.Receipt, error) {
	if ticket == nil || ticket.State != StateSigned || ticket.Signature == nil {
		return nil, fmt.Errorf("%w: only signed tickets can be submitted", ErrInvalidState)
	}

	req := ticket.Request
	var (
		receipt *ethereumTypes.Receipt
		err     error
	)
	switch req.Kind {
	case KindMasterApproval:
		receipt, err = s.caller.SetMasterContractApproval(ctx,
			req.VerifyingContract, req.Signer, req.Counterparty, req.Approved, ticket.Signature)
	case KindPositionApproval:
		receipt, err = s.caller.SetApproval(ctx,
			req.Counterparty, req.Signer, req.Approved, ticket.Signature)
	case KindTokenPermit:
		if req.SubmitVia == (common.Address{}) {
			return nil, fmt.Errorf("%w: permits are submitted through a lending pair; SubmitVia is required", ErrInvalidRequest)
		}
		receipt, err = s.caller.PermitToken(ctx,
			req.SubmitVia, req.VerifyingContract, req.Signer, req.Counterparty, req.Value, ticket.Deadline, ticket.Signature)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, req.Kind)
	}
	if err != nil {
		s.logger.Sugar().Errorw("Failed to submit approval",
			"ticket", ticket.Id,
			"kind", req.Kind.String(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to submit %s: %w", req.Kind, err)
	}

	if err := s.approver.MarkSubmitted(ctx, ticket, receipt.TxHash); err != nil {
		return receipt, err
	}

	s.logger.Sugar().Infow("Submitted approval",
		"ticket", ticket.Id,
		"kind", req.Kind.String(),
		"txHash", receipt.TxHash.Hex(),
		"fallback", req.Fallback,
	)
	return receipt, nil
}
