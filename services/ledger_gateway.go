package services

import (
	"context"
	"time"
)

// MemberLedgerRecord is a point-in-time read of the authoritative on-chain
// member record. The core holds no writable copy; off-chain state must
// never contradict it once confirmed.
type MemberLedgerRecord struct {
	XP     int64 `json:"xp"`
	Tier   uint8 `json:"tier"`
	HasNFT bool  `json:"has_nft"`
}

// TxHandle identifies a transaction already accepted by the network. Once a
// handle exists the transaction cannot be cancelled; the only terminal
// actions are waiting for confirmation or resolving a timeout by re-reading
// ledger state.
type TxHandle struct {
	Hash string `json:"hash"`
}

// ConfirmationStatus is the outcome of waiting on a transaction.
type ConfirmationStatus int

const (
	TxConfirmed ConfirmationStatus = iota
	TxFailed                       // mined but reverted
	TxTimedOut                     // not observed within the window; outcome unknown
)

// LedgerGateway is the typed boundary to the on-chain identity registry
// contract. Implementations must surface contract rejections as
// *LedgerRejectedError with a reason code, never raw revert strings.
type LedgerGateway interface {
	// ReadMember returns the member's current record. Side-effect-free.
	ReadMember(ctx context.Context, address string) (MemberLedgerRecord, error)

	// SendXPIncrement submits an updateXP transaction crediting amount to
	// the member. Requires the operator/admin role on the contract.
	SendXPIncrement(ctx context.Context, address string, amount int64) (TxHandle, error)

	// SendMint submits a mintIdentityNFT transaction with the given tokenURI.
	SendMint(ctx context.Context, address string, metadataURI string) (TxHandle, error)

	// AwaitConfirmation blocks until the transaction is mined, fails, or the
	// timeout elapses. TxTimedOut means UNKNOWN, not failed.
	AwaitConfirmation(ctx context.Context, tx TxHandle, timeout time.Duration) (ConfirmationStatus, error)
}
