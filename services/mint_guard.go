package services

// Mint guard refusal reasons (member-facing, distinct from the ledger
// rejection reason codes).
const (
	MintRefusalAlreadyMinted  = "already minted"
	MintRefusalInsufficientXP = "insufficient XP"
)

// MintDecision is the outcome of a pre-flight mint eligibility check.
type MintDecision struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// CanMint gates whether a mint transaction may be constructed and sent.
//
// It must be evaluated against a FRESHLY re-read ledger record taken
// immediately before transaction submission, never a cached or mirrored
// one — the point is to close the race between "UI believes mint is
// allowed" and ledger truth at send time. A failed guard short-circuits
// before any transaction exists, so no gas is spent on a send the
// contract would revert.
func CanMint(fresh MemberLedgerRecord) MintDecision {
	if fresh.HasNFT {
		return MintDecision{Eligible: false, Reason: MintRefusalAlreadyMinted}
	}
	if ResolveTier(fresh.XP, fresh.Tier) == 0 {
		return MintDecision{Eligible: false, Reason: MintRefusalInsufficientXP}
	}
	return MintDecision{Eligible: true}
}
