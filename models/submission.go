package models

import (
	"time"
)

// SubmissionStatus is the review state of a task submission
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusApproved SubmissionStatus = "approved"
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

// Submission represents one claim of task completion awaiting operator review.
// Rows are never deleted; status only ever moves pending → approved or
// pending → rejected (enforced in the store gateway).
type Submission struct {
	ID            string           `gorm:"primaryKey;type:uuid" json:"id"`
	MemberAddress string           `gorm:"type:varchar(64);not null;index" json:"member_address"` // lowercase-normalized
	TaskID        string           `gorm:"type:varchar(64);not null;index" json:"task_id"`
	TaskTitle     string           `gorm:"not null" json:"task_title"`
	Proof         string           `gorm:"type:text;not null" json:"proof"`
	XPReward      int64            `gorm:"not null" json:"xp_reward"` // snapshot at submission time, immune to catalog edits
	Status        SubmissionStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	TxHash        string           `gorm:"type:varchar(80)" json:"tx_hash,omitempty"` // hash of the settling XP transaction
	ReviewedAt    *time.Time       `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Terminal reports whether the submission can no longer change status.
func (s *Submission) Terminal() bool {
	return s.Status == SubmissionStatusApproved || s.Status == SubmissionStatusRejected
}
