// services/errors.go
package services

import (
	"errors"
	"fmt"
)

// Sentinel errors for the settlement core. Handlers map these onto HTTP
// statuses; the raw transport error never reaches the client.
var (
	// ErrInvalidInput: malformed address, empty proof, unknown task.
	// Rejected before any I/O.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConcurrencyConflict: a second approval attempted while one is in
	// flight. The caller retries after the first reaches a terminal state.
	ErrConcurrencyConflict = errors.New("approval already in progress")

	// ErrLedgerTimeout: confirmation not observed within the timeout window
	// AND a ledger re-read could not establish that the credit landed. The
	// outcome stays unknown; the submission stays pending.
	ErrLedgerTimeout = errors.New("ledger confirmation timed out; outcome unknown")

	// ErrNotFound: no submission with the given id.
	ErrNotFound = errors.New("submission not found")

	// ErrAlreadyReviewed: the submission already reached approved/rejected.
	ErrAlreadyReviewed = errors.New("submission already reviewed")

	// ErrInvalidTransition: a status write that would leave a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicateSubmission: a one-time task already has a non-rejected
	// submission for this member.
	ErrDuplicateSubmission = errors.New("task already submitted")
)

// Machine-readable reason codes for ledger rejections. The EVM adapter maps
// contract revert strings onto these; raw revert text is logged, never
// surfaced.
const (
	ReasonAlreadyMinted     = "already-minted"
	ReasonNotEligible       = "not-eligible"
	ReasonTierNotMet        = "tier-not-met"
	ReasonInsufficientXP    = "insufficient-xp"
	ReasonNotRegistered     = "not-registered"
	ReasonMintingNotAllowed = "minting-not-allowed"
	ReasonInvalidTier       = "invalid-tier"
	ReasonUnauthorized      = "unauthorized"
	ReasonLedgerRejected    = "ledger-rejected" // fallback for unrecognized reverts
)

// LedgerRejectedError: the ledger declined the transaction. Reason is one of
// the reason code constants above.
type LedgerRejectedError struct {
	Reason string
}

func (e *LedgerRejectedError) Error() string {
	return fmt.Sprintf("ledger rejected transaction: %s", e.Reason)
}

// StoreWriteFailureError: the ledger credit confirmed but the status write
// failed. The member's XP is already correct on-chain; only the off-chain
// bookkeeping lags. Reconciled by an operator re-marking the submission or
// by the reconciliation pass.
type StoreWriteFailureError struct {
	SubmissionID string
	TxHash       string
	Cause        error
}

func (e *StoreWriteFailureError) Error() string {
	return fmt.Sprintf("XP credited on-chain (tx %s) but status write failed for submission %s: %v",
		e.TxHash, e.SubmissionID, e.Cause)
}

func (e *StoreWriteFailureError) Unwrap() error { return e.Cause }
