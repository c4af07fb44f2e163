// services/reconciliation.go
package services

import (
	"context"
	"log"
	"time"

	"reward-settlement-system/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// ReconciliationService detects the recoverable inconsistency left behind
// when a ledger credit confirmed but the approved-status write failed: the
// member's on-chain XP exceeds the sum of their approved submissions while
// old pending submissions exist that account for the gap.
//
// It never auto-approves. The outcome of an ambiguous settlement is
// established by an operator reading the report, not by the core guessing.
type ReconciliationService struct {
	DB     *gorm.DB
	Store  *SubmissionStore
	Ledger LedgerGateway

	// Pending submissions younger than this are still plausibly mid-review
	// and excluded from the report.
	PendingAge time.Duration
}

func NewReconciliationService(db *gorm.DB, store *SubmissionStore, ledger LedgerGateway, pendingAge time.Duration) *ReconciliationService {
	if pendingAge <= 0 {
		pendingAge = 10 * time.Minute
	}
	return &ReconciliationService{DB: db, Store: store, Ledger: ledger, PendingAge: pendingAge}
}

// InconsistencyReport flags one member whose ledger XP is ahead of the
// store's approved bookkeeping.
type InconsistencyReport struct {
	MemberAddress string              `json:"member_address"`
	LedgerXP      int64               `json:"ledger_xp"`
	ApprovedXP    int64               `json:"approved_xp"`
	UnaccountedXP int64               `json:"unaccounted_xp"`
	Candidates    []models.Submission `json:"candidates"` // stale pending submissions that could explain the gap
}

// Run compares ledger XP deltas to unmarked pending submissions and returns
// the members needing operator attention.
func (r *ReconciliationService) Run(ctx context.Context) ([]InconsistencyReport, error) {
	cutoff := time.Now().Add(-r.PendingAge)
	stale, err := r.Store.PendingOlderThan(cutoff)
	if err != nil {
		return nil, err
	}
	if len(stale) == 0 {
		return nil, nil
	}

	byAddress := make(map[string][]models.Submission)
	for _, sub := range stale {
		byAddress[sub.MemberAddress] = append(byAddress[sub.MemberAddress], sub)
	}

	var reports []InconsistencyReport
	for address, candidates := range byAddress {
		record, err := r.Ledger.ReadMember(ctx, address)
		if err != nil {
			log.Printf("⚠️ [RECONCILE] ledger read failed for %s: %v", address, err)
			continue
		}
		approved, err := r.Store.ApprovedXPTotal(address)
		if err != nil {
			log.Printf("⚠️ [RECONCILE] approved-XP sum failed for %s: %v", address, err)
			continue
		}

		// Manual grants also raise ledger XP above the approved sum, so a
		// positive gap is a lead, not proof. Only gaps at least as large as
		// some stale pending reward are worth the operator's time.
		gap := record.XP - approved
		if gap <= 0 {
			continue
		}
		var matching []models.Submission
		for _, sub := range candidates {
			if sub.XPReward <= gap {
				matching = append(matching, sub)
			}
		}
		if len(matching) == 0 {
			continue
		}

		report := InconsistencyReport{
			MemberAddress: address,
			LedgerXP:      record.XP,
			ApprovedXP:    approved,
			UnaccountedXP: gap,
			Candidates:    matching,
		}
		reports = append(reports, report)
		log.Printf("🚨 [RECONCILE] %s: ledger XP %d vs approved %d (%d unaccounted, %d stale pending)",
			address, record.XP, approved, gap, len(matching))
	}

	return reports, nil
}

// StartReconciliationScheduler runs the pass on an interval.
func (r *ReconciliationService) StartReconciliationScheduler(ctx context.Context, interval time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			reports, err := r.Run(ctx)
			if err != nil {
				log.Printf("[Reconcile] pass failed: %v", err)
				return
			}
			if len(reports) == 0 {
				log.Println("[Reconcile] clean — no unaccounted ledger credits")
			}
		}),
	)

	go func() {
		<-ctx.Done()
		_ = sched.Shutdown()
	}()
}
