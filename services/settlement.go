// services/settlement.go
package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"reward-settlement-system/models"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/semaphore"
)

const DefaultConfirmTimeout = 90 * time.Second

// SettlementService coordinates moving a submission from pending to a
// blockchain-confirmed approved state exactly once.
//
// Approvals are single-flight process-wide: the transaction-sending
// primitive has no request-id deduplication, so two concurrent approvals
// could double-credit what the operator believes is one action. A second
// Approve while one is in flight fails immediately with
// ErrConcurrencyConflict; it is never queued.
type SettlementService struct {
	Store  *SubmissionStore
	Ledger LedgerGateway

	ConfirmTimeout time.Duration

	// One permit, acquired before any XP-credit transaction is sent and
	// released only on a terminal outcome (confirmed, rejected, or
	// timeout-resolved).
	approvalPermit *semaphore.Weighted
}

func NewSettlementService(store *SubmissionStore, ledger LedgerGateway, confirmTimeout time.Duration) *SettlementService {
	if confirmTimeout <= 0 {
		confirmTimeout = DefaultConfirmTimeout
	}
	return &SettlementService{
		Store:          store,
		Ledger:         ledger,
		ConfirmTimeout: confirmTimeout,
		approvalPermit: semaphore.NewWeighted(1),
	}
}

// Approve settles one pending submission: credit XP on the ledger, then —
// only after the credit is confirmed — mark the submission approved.
//
// The ordering is deliberate. The ledger is authoritative: if the store
// write fails after ledger confirmation the submission stays pending with
// XP already credited, which is recoverable (surfaced as
// *StoreWriteFailureError, picked up by the reconciliation pass). The
// reverse ordering could mark a reward approved that was never paid.
func (s *SettlementService) Approve(ctx context.Context, submissionID string) (*models.Submission, error) {
	sub, err := s.Store.Get(submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.SubmissionStatusPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrAlreadyReviewed, sub.ID, sub.Status)
	}
	if !common.IsHexAddress(sub.MemberAddress) {
		return nil, fmt.Errorf("%w: malformed member address %q", ErrInvalidInput, sub.MemberAddress)
	}

	if !s.approvalPermit.TryAcquire(1) {
		return nil, ErrConcurrencyConflict
	}
	defer s.approvalPermit.Release(1)

	// Baseline read: if confirmation times out, the only safe way to learn
	// the outcome is to compare ledger XP against this value.
	before, err := s.Ledger.ReadMember(ctx, sub.MemberAddress)
	if err != nil {
		return nil, fmt.Errorf("pre-settlement ledger read failed: %w", err)
	}

	handle, err := s.Ledger.SendXPIncrement(ctx, sub.MemberAddress, sub.XPReward)
	if err != nil {
		// LedgerRejectedError passes through with its reason code; the
		// submission stays pending and nothing retries automatically.
		return nil, err
	}

	status, err := s.Ledger.AwaitConfirmation(ctx, handle, s.ConfirmTimeout)
	switch status {
	case TxConfirmed:
		// fall through to the store write
	case TxFailed:
		log.Printf("❌ [SETTLEMENT] tx %s reverted for submission %s; left pending", handle.Hash, sub.ID)
		return nil, &LedgerRejectedError{Reason: ReasonLedgerRejected}
	case TxTimedOut:
		// Unknown outcome. Never resubmit: the original may still land.
		// Re-read the ledger; only a visible credit lets us proceed.
		credited, rerr := s.creditLanded(ctx, sub, before)
		if rerr != nil {
			return nil, fmt.Errorf("%w: re-read after timeout also failed: %v", ErrLedgerTimeout, rerr)
		}
		if !credited {
			if err != nil {
				log.Printf("⏳ [SETTLEMENT] confirmation wait error for tx %s: %v", handle.Hash, err)
			}
			return nil, fmt.Errorf("%w: tx %s", ErrLedgerTimeout, handle.Hash)
		}
		log.Printf("✅ [SETTLEMENT] tx %s confirmed via ledger re-read after timeout", handle.Hash)
	}

	if err := s.Store.MarkApproved(sub.ID, handle.Hash); err != nil {
		// High-priority inconsistency: XP is already credited on-chain.
		failure := &StoreWriteFailureError{SubmissionID: sub.ID, TxHash: handle.Hash, Cause: err}
		log.Printf("🚨 [SETTLEMENT] %v", failure)
		return nil, failure
	}

	log.Printf("✅ [SETTLEMENT] submission %s approved: +%d XP to %s (tx %s)",
		sub.ID, sub.XPReward, sub.MemberAddress, handle.Hash)

	updated, err := s.Store.Get(sub.ID)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// creditLanded re-reads the member record and reports whether the reward is
// reflected. Member XP is only ever mutated by operator transactions, and
// those are serialized by the approval permit, so a delta of at least the
// reward means this credit landed.
func (s *SettlementService) creditLanded(ctx context.Context, sub *models.Submission, before MemberLedgerRecord) (bool, error) {
	after, err := s.Ledger.ReadMember(ctx, sub.MemberAddress)
	if err != nil {
		return false, err
	}
	return after.XP >= before.XP+sub.XPReward, nil
}

// Reject marks a pending submission rejected. Store-only; always safe to
// retry because a terminal row just returns ErrInvalidTransition.
func (s *SettlementService) Reject(ctx context.Context, submissionID string) (*models.Submission, error) {
	sub, err := s.Store.Get(submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.SubmissionStatusPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrAlreadyReviewed, sub.ID, sub.Status)
	}
	if err := s.Store.MarkRejected(sub.ID); err != nil {
		return nil, err
	}
	log.Printf("🗑️ [SETTLEMENT] submission %s rejected", sub.ID)
	return s.Store.Get(sub.ID)
}

// GrantXP is the manual operator award (no submission attached). It shares
// the approval permit: it drives the same non-deduplicating transaction
// primitive, so it must not interleave with a settlement in flight.
func (s *SettlementService) GrantXP(ctx context.Context, address string, amount int64) (TxHandle, error) {
	if !common.IsHexAddress(address) {
		return TxHandle{}, fmt.Errorf("%w: malformed address %q", ErrInvalidInput, address)
	}
	if amount <= 0 {
		return TxHandle{}, fmt.Errorf("%w: xp amount must be positive", ErrInvalidInput)
	}

	if !s.approvalPermit.TryAcquire(1) {
		return TxHandle{}, ErrConcurrencyConflict
	}
	defer s.approvalPermit.Release(1)

	addr := strings.ToLower(address)
	handle, err := s.Ledger.SendXPIncrement(ctx, addr, amount)
	if err != nil {
		return TxHandle{}, err
	}

	status, err := s.Ledger.AwaitConfirmation(ctx, handle, s.ConfirmTimeout)
	switch status {
	case TxConfirmed:
		log.Printf("✅ [SETTLEMENT] manual grant confirmed: +%d XP to %s (tx %s)", amount, addr, handle.Hash)
		return handle, nil
	case TxFailed:
		return TxHandle{}, &LedgerRejectedError{Reason: ReasonLedgerRejected}
	default:
		if err != nil {
			log.Printf("⏳ [SETTLEMENT] grant confirmation wait error for tx %s: %v", handle.Hash, err)
		}
		return TxHandle{}, fmt.Errorf("%w: tx %s", ErrLedgerTimeout, handle.Hash)
	}
}

// Mint runs the guarded mint flow for a member: fresh ledger read, mint
// guard, then the mint transaction with the effective tier's metadata URI.
// The guard re-reads immediately before the send, so a mint that raced in
// from another flow is caught here instead of wasting gas on a revert.
func (s *SettlementService) Mint(ctx context.Context, address string) (TxHandle, MintDecision, error) {
	if !common.IsHexAddress(address) {
		return TxHandle{}, MintDecision{}, fmt.Errorf("%w: malformed address %q", ErrInvalidInput, address)
	}
	addr := strings.ToLower(address)

	fresh, err := s.Ledger.ReadMember(ctx, addr)
	if err != nil {
		return TxHandle{}, MintDecision{}, fmt.Errorf("pre-mint ledger read failed: %w", err)
	}

	decision := CanMint(fresh)
	if !decision.Eligible {
		return TxHandle{}, decision, nil
	}

	tier := ResolveTier(fresh.XP, fresh.Tier)
	handle, err := s.Ledger.SendMint(ctx, addr, TierMetadata[tier].MetadataURI)
	if err != nil {
		return TxHandle{}, decision, err
	}

	status, err := s.Ledger.AwaitConfirmation(ctx, handle, s.ConfirmTimeout)
	switch status {
	case TxConfirmed:
		log.Printf("🎨 [SETTLEMENT] identity NFT minted for %s (tier %d, tx %s)", addr, tier, handle.Hash)
		return handle, decision, nil
	case TxFailed:
		return TxHandle{}, decision, &LedgerRejectedError{Reason: ReasonLedgerRejected}
	default:
		if err != nil {
			log.Printf("⏳ [SETTLEMENT] mint confirmation wait error for tx %s: %v", handle.Hash, err)
		}
		return TxHandle{}, decision, fmt.Errorf("%w: tx %s", ErrLedgerTimeout, handle.Hash)
	}
}
