package workers

import (
	"context"
	"log"
	"time"

	"reward-settlement-system/models"
	"reward-settlement-system/services"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerSyncClient mirrors on-chain member records into the member_mirror
// table so list views and the reconciliation pass read locally instead of
// hammering the RPC endpoint. The mirror is display-only: guard decisions
// always re-read the ledger.
type LedgerSyncClient struct {
	DB     *gorm.DB
	Store  *services.SubmissionStore
	Ledger services.LedgerGateway
}

func NewLedgerSyncClient(db *gorm.DB, store *services.SubmissionStore, ledger services.LedgerGateway) *LedgerSyncClient {
	return &LedgerSyncClient{DB: db, Store: store, Ledger: ledger}
}

// SyncOnce reads every member that has ever submitted and upserts their
// current ledger record.
func (c *LedgerSyncClient) SyncOnce(ctx context.Context) (int, error) {
	addresses, err := c.Store.DistinctAddresses()
	if err != nil {
		return 0, err
	}
	if len(addresses) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	mirrors := make([]models.MemberMirror, 0, len(addresses))
	for _, address := range addresses {
		record, err := c.Ledger.ReadMember(ctx, address)
		if err != nil {
			log.Printf("❌ [LEDGER_SYNC] read failed for %s: %v", address, err)
			continue
		}
		mirrors = append(mirrors, models.MemberMirror{
			Address:      address,
			XP:           record.XP,
			Tier:         record.Tier,
			HasNFT:       record.HasNFT,
			LastSyncedAt: now,
		})
	}
	if len(mirrors) == 0 {
		return 0, nil
	}

	// Batch upsert: one statement on PostgreSQL.
	if err := c.DB.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"xp",
				"tier",
				"has_nft",
				"last_synced_at",
				"updated_at",
			}),
		},
	).Create(&mirrors).Error; err != nil {
		return 0, err
	}

	return len(mirrors), nil
}

// PollLedger keeps the mirror fresh until the context is cancelled.
func PollLedger(ctx context.Context, client *LedgerSyncClient, pollInterval time.Duration) {
	log.Println("Starting ledger mirror polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Ledger mirror polling stopped.")
			return
		case <-ticker.C:
			count, err := client.SyncOnce(ctx)
			if err != nil {
				log.Printf("❌ [LEDGER_SYNC] mirror sync failed: %v", err)
				continue
			}
			if count > 0 {
				log.Printf("📥 [LEDGER_SYNC] mirrored %d member record(s)", count)
			}
		}
	}
}

// GetMirrorByAddress returns the cached ledger view for one member.
func GetMirrorByAddress(db *gorm.DB, address string) (models.MemberMirror, bool, error) {
	var mirror models.MemberMirror
	if err := db.Where("address = ?", address).First(&mirror).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return mirror, false, nil
		}
		return mirror, false, err
	}
	return mirror, true, nil
}
