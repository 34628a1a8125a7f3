package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	awsInternal "github.com/Layr-Labs/approval-signer-go/internal/aws"
	"github.com/Layr-Labs/approval-signer-go/pkg/approvals"
	"github.com/Layr-Labs/approval-signer-go/pkg/config"
	"github.com/Layr-Labs/approval-signer-go/pkg/logger"
	"github.com/Layr-Labs/approval-signer-go/pkg/persistence"
	"github.com/Layr-Labs/approval-signer-go/pkg/signer"
	"github.com/Layr-Labs/approval-signer-go/pkg/typedData"
	"github.com/Layr-Labs/approval-signer-go/pkg/types"
	"github.com/Layr-Labs/approval-signer-go/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

type approvalOutput struct {
	Ticket            string           `json:"ticket"`
	Kind              string           `json:"kind"`
	State             string           `json:"state"`
	ChainId           uint64           `json:"chainId"`
	Signer            common.Address   `json:"signer"`
	Counterparty      common.Address   `json:"counterparty"`
	VerifyingContract string           `json:"verifyingContract"`
	Nonce             uint64           `json:"nonce"`
	Deadline          uint64           `json:"deadline,omitempty"`
	DomainSeparator   common.Hash      `json:"domainSeparator"`
	MessageDigest     common.Hash      `json:"messageDigest"`
	Digest            common.Hash      `json:"digest"`
	Signature         *types.Signature `json:"signature,omitempty"`
	SignatureHex      string           `json:"signatureHex,omitempty"`
	TxHash            *common.Hash     `json:"txHash,omitempty"`
	Warning           string           `json:"warning,omitempty"`
}

func newApprovalOutput(t *approvals.Ticket, label func(common.Address) string) approvalOutput {
	out := approvalOutput{
		Ticket:            t.Id,
		Kind:              t.Request.Kind.String(),
		State:             t.State.String(),
		ChainId:           t.ChainId,
		Signer:            t.Request.Signer,
		Counterparty:      t.Request.Counterparty,
		VerifyingContract: label(t.Request.VerifyingContract),
		Nonce:             t.Nonce,
		Deadline:          t.Deadline,
		DomainSeparator:   t.DomainSeparator,
		MessageDigest:     t.MessageDigest,
		Digest:            t.Digest,
		Signature:         t.Signature,
	}
	if t.Signature != nil {
		out.SignatureHex = t.Signature.String()
	}
	if t.TxHash != (common.Hash{}) {
		h := t.TxHash
		out.TxHash = &h
	}
	if t.Request.Kind != approvals.KindTokenPermit {
		out.Warning = approvals.Warning(t.Request.Approved)
	}
	return out
}

func writeJSON(c *cli.Context, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(c.App.Writer, string(b))
	return err
}

func newCommandLogger(c *cli.Context) (*zap.Logger, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}

// domainSeparatorCommand prints the separator of a BentoBox or token domain, and compares it
// with the contract's DOMAIN_SEPARATOR() when --check is set.
func domainSeparatorCommand(c *cli.Context) error {
	l, err := newCommandLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	contracts, err := parseRegistry(c)
	if err != nil {
		return err
	}
	kind, err := approvals.ParseKind(c.String("kind"))
	if err != nil {
		return err
	}
	contract, err := contracts.Resolve(c.String("verifying-contract"))
	if err != nil {
		return fmt.Errorf("invalid verifying contract: %w", err)
	}

	cfg := parseConfig(c)
	req := approvals.Request{Kind: kind, VerifyingContract: contract}
	domain := req.Domain(uint64(cfg.ChainID))
	separator := typedData.DomainSeparator(domain)

	out := map[string]any{
		"kind":              kind.String(),
		"chainId":           uint64(cfg.ChainID),
		"verifyingContract": contracts.Label(contract),
		"typeSignature":     domain.TypeSignature(),
		"domainSeparator":   separator,
	}

	if c.Bool("check") {
		conn, err := connectChain(c.Context, cfg, "", l)
		if err != nil {
			return err
		}
		onChain, err := conn.caller.GetDomainSeparator(c.Context, contract)
		if err != nil {
			return err
		}
		out["onChainDomainSeparator"] = onChain
		out["matches"] = onChain == separator
		if onChain != separator {
			l.Sugar().Warnw("Domain separator mismatch",
				"contract", contracts.Label(contract),
				"computed", separator.Hex(),
				"onChain", onChain.Hex(),
			)
		}
	}
	return writeJSON(c, out)
}

// digestCommand computes (and with a private key, signs) an approval for an explicit nonce and
// deadline. Nothing is read from chain and no ledger is consulted.
func digestCommand(c *cli.Context) error {
	l, err := newCommandLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	contracts, err := parseRegistry(c)
	if err != nil {
		return err
	}

	var digestSigner signer.IDigestSigner
	var defaultSigner common.Address
	if pk := c.String("private-key"); pk != "" {
		pkSigner, err := signer.NewPrivateKeySigner(pk, l)
		if err != nil {
			return err
		}
		digestSigner = pkSigner
		defaultSigner = pkSigner.GetFromAddress()
	}

	req, err := parseRequest(c, contracts, defaultSigner)
	if err != nil {
		return err
	}

	ticket, err := approvals.SignOffline(c.Context, digestSigner, req, c.Uint64("chain-id"), c.Uint64("nonce"), c.Uint64("deadline"))
	if err != nil {
		return err
	}
	return writeJSON(c, newApprovalOutput(ticket, contracts.Label))
}

// approveCommand signs an approval against live chain state and the configured ledger,
// optionally submitting it.
func approveCommand(c *cli.Context) error {
	l, err := newCommandLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	contracts, err := parseRegistry(c)
	if err != nil {
		return err
	}

	// stops the chain poller
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	rt, err := newSigningRuntime(ctx, parseConfig(c), c.String("tx-private-key"), l)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			l.Sugar().Errorw("Failed to close nonce ledger", "error", err)
		}
	}()

	req, err := parseRequest(c, contracts, rt.approver.SignerAddress())
	if err != nil {
		return err
	}

	ticket, err := rt.approver.Approve(ctx, req)
	if err != nil {
		if approvals.IsRetryable(err) {
			l.Sugar().Warnw("Approval failed; safe to retry", "error", err)
		}
		if errors.Is(err, approvals.ErrNonceUnsubmitted) {
			l.Sugar().Warnw("Ledger holds an unsubmitted signature; submit it or run release-nonce", "error", err)
		}
		return err
	}

	if c.Bool("submit") {
		receipt, err := rt.submitter.Submit(ctx, ticket)
		if err != nil {
			if abandonErr := rt.approver.Abandon(ctx, ticket); abandonErr != nil {
				l.Sugar().Errorw("Failed to abandon ticket", "ticket", ticket.Id, "error", abandonErr)
			}
			return fmt.Errorf("failed to submit approval: %w", err)
		}
		l.Sugar().Infow("Submitted approval",
			"ticket", ticket.Id,
			"txHash", receipt.TxHash.Hex(),
			"block", receipt.BlockNumber.Uint64(),
		)
	}

	return writeJSON(c, newApprovalOutput(ticket, contracts.Label))
}

// verifyCommand recovers the signer of a digest and checks it against --expected when given.
func verifyCommand(c *cli.Context) error {
	digestBytes, err := hexutil.Decode(c.String("digest"))
	if err != nil || len(digestBytes) != common.HashLength {
		return fmt.Errorf("digest must be 32 hex-encoded bytes")
	}
	sigBytes, err := hexutil.Decode(c.String("signature"))
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	sig, err := types.SignatureFromBytes(sigBytes)
	if err != nil {
		return err
	}

	recovered, err := signer.RecoverSigner(common.BytesToHash(digestBytes), sig)
	if err != nil {
		return err
	}

	out := map[string]any{"signer": recovered}
	if expected := c.String("expected"); expected != "" {
		contracts, err := parseRegistry(c)
		if err != nil {
			return err
		}
		want, err := contracts.Resolve(expected)
		if err != nil {
			return fmt.Errorf("invalid expected signer: %w", err)
		}
		out["valid"] = want == recovered
		if err := writeJSON(c, out); err != nil {
			return err
		}
		if want != recovered {
			return cli.Exit(fmt.Sprintf("signature was made by %s, expected %s", recovered.Hex(), want.Hex()), 1)
		}
		return nil
	}
	return writeJSON(c, out)
}

// noncesCommand shows the contract nonce of a signer next to what the ledger has recorded.
func noncesCommand(c *cli.Context) error {
	l, err := newCommandLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	contracts, err := parseRegistry(c)
	if err != nil {
		return err
	}
	kind, err := approvals.ParseKind(c.String("kind"))
	if err != nil {
		return err
	}
	owner, err := contracts.Resolve(c.String("signer"))
	if err != nil {
		return fmt.Errorf("invalid signer: %w", err)
	}
	contract, err := contracts.Resolve(c.String("verifying-contract"))
	if err != nil {
		return fmt.Errorf("invalid verifying contract: %w", err)
	}

	cfg := parseConfig(c)
	conn, err := connectChain(c.Context, cfg, "", l)
	if err != nil {
		return err
	}
	onChain, err := conn.caller.GetNonce(c.Context, contract, owner)
	if err != nil {
		return err
	}

	ledger, err := newLedger(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to open nonce ledger: %w", err)
	}
	defer func() { _ = ledger.Close() }()

	key := approvals.NonceKeyFor(approvals.Request{Kind: kind, Signer: owner, VerifyingContract: contract}, uint64(cfg.ChainID))
	records, err := ledger.ListApprovalRecords(key)
	if err != nil {
		return err
	}

	unsubmitted := util.Filter(records, func(r *persistence.ApprovalRecord) bool {
		return r.State == persistence.ApprovalState_Signed
	})
	nextLedgerNonce := util.Reduce(records, func(next uint64, r *persistence.ApprovalRecord) uint64 {
		if r.Nonce+1 > next {
			return r.Nonce + 1
		}
		return next
	}, 0)
	if nextLedgerNonce > onChain {
		l.Sugar().Warnw("Ledger holds signatures the contract has not seen",
			"key", key.String(),
			"onChainNonce", onChain,
			"nextLedgerNonce", nextLedgerNonce,
		)
	}

	return writeJSON(c, map[string]any{
		"key":             key.String(),
		"onChainNonce":    onChain,
		"nextLedgerNonce": nextLedgerNonce,
		"unsubmitted":     util.Map(unsubmitted, func(r *persistence.ApprovalRecord, _ uint64) uint64 { return r.Nonce }),
		"records":         records,
	})
}

// releaseNonceCommand drops a signed but unsubmitted record from the ledger, so the nonce can be
// signed again. The released signature must never be submitted afterwards.
func releaseNonceCommand(c *cli.Context) error {
	l, err := newCommandLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	contracts, err := parseRegistry(c)
	if err != nil {
		return err
	}
	kind, err := approvals.ParseKind(c.String("kind"))
	if err != nil {
		return err
	}
	owner, err := contracts.Resolve(c.String("signer"))
	if err != nil {
		return fmt.Errorf("invalid signer: %w", err)
	}
	contract, err := contracts.Resolve(c.String("verifying-contract"))
	if err != nil {
		return fmt.Errorf("invalid verifying contract: %w", err)
	}
	nonce := c.Uint64("nonce")

	cfg := parseConfig(c)
	ledger, err := newLedger(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to open nonce ledger: %w", err)
	}
	defer func() { _ = ledger.Close() }()

	key := approvals.NonceKeyFor(approvals.Request{Kind: kind, Signer: owner, VerifyingContract: contract}, uint64(cfg.ChainID))
	record, err := ledger.LoadApprovalRecord(key, nonce)
	if err != nil {
		return err
	}
	if err := ledger.ReleaseNonce(key, nonce); err != nil {
		return fmt.Errorf("failed to release nonce %d for %s: %w", nonce, key.String(), err)
	}

	out := map[string]any{
		"key":      key.String(),
		"nonce":    nonce,
		"released": record != nil,
	}
	if record != nil {
		out["ticket"] = record.TicketId
		out["digest"] = record.Digest
		l.Sugar().Infow("Released nonce", "key", key.String(), "nonce", nonce, "ticket", record.TicketId)
	}
	return writeJSON(c, out)
}

// createKMSKeyCommand provisions a secp256k1 KMS key for approval signing and prints its address.
func createKMSKeyCommand(c *cli.Context) error {
	l, err := newCommandLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	cfg := parseConfig(c)
	chainName, ok := config.ChainIdToName[cfg.ChainID]
	if !ok {
		return fmt.Errorf("unsupported chain id %d", cfg.ChainID)
	}

	client, err := awsInternal.NewKMSClient(c.Context, cfg.AWSRegion, l)
	if err != nil {
		return err
	}
	keyId, err := awsInternal.CreateSigningKey(c.Context, client, c.String("name"), c.String("alias"), string(chainName), l)
	if err != nil {
		return err
	}

	kmsSigner, err := signer.NewAWSKMSSigner(c.Context, client, keyId, l)
	if err != nil {
		return fmt.Errorf("created key %s but failed to load it: %w", keyId, err)
	}
	return writeJSON(c, map[string]any{
		"keyId":   keyId,
		"address": kmsSigner.GetFromAddress(),
	})
}
