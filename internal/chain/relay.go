package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/farhanm/clubchain/internal/apperror"
)

// RelayConfig holds the per-stage deadlines for the transaction pipeline.
//
// Three independent deadlines, not one aggregate, because the stages have
// structurally different latency profiles: submission is local acceptance
// by the bundler, the hash appears once the operation is bundled into a
// transaction, and confirmation waits on block inclusion. A single shared
// timeout would have to be either too generous for submission or too strict
// for inclusion.
type RelayConfig struct {
	// SubmitTimeout bounds handing the operation to the bundler.
	SubmitTimeout time.Duration
	// HashTimeout bounds waiting for the operation's transaction hash.
	HashTimeout time.Duration
	// ConfirmTimeout bounds waiting for on-chain confirmation.
	ConfirmTimeout time.Duration
}

// DefaultRelayConfig mirrors the deadlines the pipeline was tuned with.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		SubmitTimeout:  60 * time.Second,
		HashTimeout:    60 * time.Second,
		ConfirmTimeout: 120 * time.Second,
	}
}

// Relay drives one logical transaction through three sequential stages:
//
//	Built → Submitted → HashObtained → Confirmed
//
// Each transition runs under its own deadline; a timeout or rejection at any
// stage is terminal for the attempt and surfaces a stage-specific error.
// The relay never retries — nothing has been persisted locally at this
// point, so a failed attempt leaves no local state to clean up, and whether
// to retry a stateful on-chain effect is the caller's call.
//
// A timed-out attempt is cancelled locally only. The remote operation
// cannot generally be recalled once submitted, so a timed-out submission
// may still land on-chain later; such late arrivals are not reconciled.
type Relay struct {
	cfg    RelayConfig
	logger *slog.Logger
}

// NewRelay creates a Relay with the given stage deadlines.
func NewRelay(cfg RelayConfig, logger *slog.Logger) *Relay {
	return &Relay{cfg: cfg, logger: logger}
}

// Run submits call through account and sees it through to confirmation,
// always requesting sponsored-fee mode.
//
// On success it returns the transaction hash — possibly empty, if the relay
// never reported one; callers must treat an empty hash as "confirmed but
// not trackable". The full receipt is observed here for logging only;
// callers that need log data fetch the receipt themselves via the RPC
// endpoint, keyed by the returned hash.
func (r *Relay) Run(ctx context.Context, account SmartAccount, call Call) (string, error) {
	// Stage 1: submit.
	submitCtx, cancel := context.WithTimeout(ctx, r.cfg.SubmitTimeout)
	handle, err := account.Submit(submitCtx, call)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperror.StageTimeout(apperror.ErrSubmissionTimeout, "submission")
		}
		return "", fmt.Errorf("chain: submitting operation: %w", err)
	}

	r.logger.Debug("operation submitted",
		slog.String("sender", account.Address().Hex()),
		slog.String("to", call.To.Hex()),
	)

	// Stage 2: obtain the transaction hash. The raw response shape varies
	// by relay; normalize it here, at the boundary, so later stages and
	// callers only ever see a plain string.
	hashCtx, cancel := context.WithTimeout(ctx, r.cfg.HashTimeout)
	raw, err := handle.WaitForHash(hashCtx)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperror.StageTimeout(apperror.ErrHashTimeout, "hash")
		}
		return "", fmt.Errorf("chain: waiting for transaction hash: %w", err)
	}
	txHash := NormalizeTxHash(raw)

	// Stage 3: await confirmation.
	confirmCtx, cancel := context.WithTimeout(ctx, r.cfg.ConfirmTimeout)
	receipt, err := handle.WaitForConfirmation(confirmCtx)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperror.StageTimeout(apperror.ErrConfirmationTimeout, "confirmation")
		}
		return "", fmt.Errorf("chain: waiting for confirmation: %w", err)
	}

	if receipt != nil {
		r.logger.Info("operation confirmed",
			slog.String("txHash", txHash),
			slog.Uint64("status", receipt.Status),
			slog.Int("logs", len(receipt.Logs)),
		)
	} else {
		r.logger.Info("operation confirmed", slog.String("txHash", txHash))
	}

	return txHash, nil
}
