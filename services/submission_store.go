// services/submission_store.go
package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"reward-settlement-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChangeEvent describes one insert/update in the submission store.
type ChangeEvent struct {
	SubmissionID  string                  `json:"submission_id"`
	MemberAddress string                  `json:"member_address"`
	Status        models.SubmissionStatus `json:"status"`
}

// SubmissionStore is the typed gateway to the off-chain submission queue.
// All writes to the submissions table go through it, so it is also the
// single place status transitions are enforced and change events published.
type SubmissionStore struct {
	DB *gorm.DB

	mu          sync.Mutex
	subscribers map[int]chan ChangeEvent
	nextSubID   int
}

func NewSubmissionStore(db *gorm.DB) *SubmissionStore {
	return &SubmissionStore{
		DB:          db,
		subscribers: make(map[int]chan ChangeEvent),
	}
}

// Insert persists a new submission as pending, assigning the id and
// normalizing the member address. One-time duplicate checks happen at the
// route layer where the catalog entry is in hand.
func (s *SubmissionStore) Insert(sub *models.Submission) error {
	if strings.TrimSpace(sub.Proof) == "" {
		return fmt.Errorf("%w: proof must not be empty", ErrInvalidInput)
	}
	sub.ID = uuid.NewString()
	sub.MemberAddress = strings.ToLower(strings.TrimSpace(sub.MemberAddress))
	sub.Status = models.SubmissionStatusPending
	sub.TxHash = ""
	sub.ReviewedAt = nil

	if err := s.DB.Create(sub).Error; err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}

	s.notify(ChangeEvent{SubmissionID: sub.ID, MemberAddress: sub.MemberAddress, Status: sub.Status})
	return nil
}

// Get returns one submission by id.
func (s *SubmissionStore) Get(id string) (*models.Submission, error) {
	var sub models.Submission
	if err := s.DB.First(&sub, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch submission: %w", err)
	}
	return &sub, nil
}

// ListByStatus returns submissions with the given status, oldest first so
// the operator queue reads top-down.
func (s *SubmissionStore) ListByStatus(status models.SubmissionStatus) ([]models.Submission, error) {
	var subs []models.Submission
	err := s.DB.Where("status = ?", status).
		Order("created_at ASC").
		Find(&subs).Error
	return subs, err
}

// ListByAddress returns all submissions for a member, newest first.
func (s *SubmissionStore) ListByAddress(address string) ([]models.Submission, error) {
	var subs []models.Submission
	err := s.DB.Where("member_address = ?", strings.ToLower(address)).
		Order("created_at DESC").
		Find(&subs).Error
	return subs, err
}

// DistinctAddresses returns every member address that has ever submitted.
func (s *SubmissionStore) DistinctAddresses() ([]string, error) {
	var addrs []string
	err := s.DB.Model(&models.Submission{}).
		Distinct("member_address").
		Pluck("member_address", &addrs).Error
	return addrs, err
}

// HasActiveSubmission reports whether the member has a pending or approved
// submission for the task. Used to lock one-time tasks at the write boundary.
func (s *SubmissionStore) HasActiveSubmission(address, taskID string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.Submission{}).
		Where("member_address = ? AND task_id = ? AND status <> ?",
			strings.ToLower(address), taskID, models.SubmissionStatusRejected).
		Count(&count).Error
	return count > 0, err
}

// MarkApproved transitions pending → approved, recording the settling
// transaction hash. Called only after the ledger credit is confirmed.
func (s *SubmissionStore) MarkApproved(id, txHash string) error {
	return s.updateStatus(id, models.SubmissionStatusApproved, txHash)
}

// MarkRejected transitions pending → rejected. No ledger interaction, safe
// to retry: a repeat on an already-rejected row is a no-op error the
// operator can ignore.
func (s *SubmissionStore) MarkRejected(id string) error {
	return s.updateStatus(id, models.SubmissionStatusRejected, "")
}

// updateStatus enforces the transition rules inside a transaction: nothing
// ever leaves approved or rejected.
func (s *SubmissionStore) updateStatus(id string, next models.SubmissionStatus, txHash string) error {
	var updated models.Submission

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var sub models.Submission
		if err := tx.First(&sub, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if sub.Terminal() {
			return fmt.Errorf("%w: %s is already %s", ErrInvalidTransition, sub.ID, sub.Status)
		}

		now := time.Now()
		sub.Status = next
		sub.ReviewedAt = &now
		if txHash != "" {
			sub.TxHash = txHash
		}
		if err := tx.Save(&sub).Error; err != nil {
			return err
		}
		updated = sub
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(ChangeEvent{SubmissionID: updated.ID, MemberAddress: updated.MemberAddress, Status: updated.Status})
	return nil
}

// ApprovedXPTotal sums the XP of approved submissions for a member. Used by
// the reconciliation pass to compare against ledger XP.
func (s *SubmissionStore) ApprovedXPTotal(address string) (int64, error) {
	var total int64
	err := s.DB.Model(&models.Submission{}).
		Where("member_address = ? AND status = ?", strings.ToLower(address), models.SubmissionStatusApproved).
		Select("COALESCE(SUM(xp_reward), 0)").
		Scan(&total).Error
	return total, err
}

// PendingOlderThan returns pending submissions created before the cutoff —
// candidates for the reconciliation pass.
func (s *SubmissionStore) PendingOlderThan(cutoff time.Time) ([]models.Submission, error) {
	var subs []models.Submission
	err := s.DB.Where("status = ? AND created_at < ?", models.SubmissionStatusPending, cutoff).
		Order("created_at ASC").
		Find(&subs).Error
	return subs, err
}

// Subscribe registers a change-event channel. Any number of observers may
// subscribe; each gets every insert/update. The returned cancel func must be
// called when the observer goes away.
func (s *SubmissionStore) Subscribe() (<-chan ChangeEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan ChangeEvent, 16)
	s.subscribers[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(existing)
		}
	}
	return ch, cancel
}

func (s *SubmissionStore) notify(ev ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow consumer: drop rather than block writes. Observers
			// re-fetch on every event, so a dropped event only delays the
			// next refresh until the following change.
			log.Printf("⚠️ [STORE] subscriber %d lagging, dropped change event for %s", id, ev.SubmissionID)
		}
	}
}
