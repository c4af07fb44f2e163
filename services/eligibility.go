package services

import (
	"reward-settlement-system/models"
)

// TaskState is the member-facing availability of one catalog task.
type TaskState string

const (
	TaskStateAvailable      TaskState = "available"
	TaskStateAwaitingReview TaskState = "awaiting-review"
	TaskStateLocked         TaskState = "locked"
)

// TaskView is one catalog task projected against a member's submission
// history.
type TaskView struct {
	models.Task
	State       TaskState                `json:"state"`
	Submittable bool                     `json:"submittable"`
	LastStatus  *models.SubmissionStatus `json:"last_status,omitempty"`
}

// MemberView is the full member-facing projection: task availability plus
// the ledger-derived identity status.
type MemberView struct {
	Tasks         []TaskView   `json:"tasks"`
	XP            int64        `json:"xp"`
	EffectiveTier uint8        `json:"effective_tier"`
	TierName      string       `json:"tier_name"`
	HasNFT        bool         `json:"has_nft"`
	Mint          MintDecision `json:"mint"` // display preview only; the send path re-reads and re-guards
}

// Project derives the member view from a store snapshot and a ledger read.
// Pure: recomputed in full on every store change or ledger refresh, never
// patched incrementally.
//
// Task state is a display rule. The authoritative prevention of duplicate
// rewarding is the settlement coordinator's single-flight discipline plus
// rewards being tied to submission ids: a duplicate pending row is an
// operator review problem, not a ledger-consistency problem.
func Project(subs []models.Submission, ledger MemberLedgerRecord, catalog []models.Task) MemberView {
	tier := ResolveTier(ledger.XP, ledger.Tier)
	view := MemberView{
		Tasks:         projectTasks(subs, catalog),
		XP:            ledger.XP,
		EffectiveTier: tier,
		TierName:      TierName(tier),
		HasNFT:        ledger.HasNFT,
		Mint:          CanMint(ledger),
	}
	return view
}

func projectTasks(subs []models.Submission, catalog []models.Task) []TaskView {
	// Latest non-rejected status per task. Approved beats pending: a
	// one-time task with an approved submission stays locked even if a
	// stray pending duplicate exists.
	approved := make(map[string]bool)
	pending := make(map[string]bool)
	for _, sub := range subs {
		switch sub.Status {
		case models.SubmissionStatusApproved:
			approved[sub.TaskID] = true
		case models.SubmissionStatusPending:
			pending[sub.TaskID] = true
		}
	}

	views := make([]TaskView, 0, len(catalog))
	for _, t := range catalog {
		v := TaskView{Task: t, State: TaskStateAvailable, Submittable: true}

		switch {
		case t.OneTime && approved[t.ID]:
			v.State = TaskStateLocked
			v.Submittable = false
			status := models.SubmissionStatusApproved
			v.LastStatus = &status
		case t.OneTime && pending[t.ID]:
			v.State = TaskStateAwaitingReview
			v.Submittable = false
			status := models.SubmissionStatusPending
			v.LastStatus = &status
		case pending[t.ID]:
			// Repeatable task with a review in flight: show the state but
			// keep it submittable.
			v.State = TaskStateAwaitingReview
			status := models.SubmissionStatusPending
			v.LastStatus = &status
		case approved[t.ID]:
			status := models.SubmissionStatusApproved
			v.LastStatus = &status
		}

		views = append(views, v)
	}
	return views
}
