// models/member_mirror.go
package models

import (
	"time"
)

// MemberMirror mirrors the on-chain member record for display and
// reconciliation. Table name: member_mirror.
//
// The mirror is a point-in-time copy and is NEVER consulted for guard
// decisions (mint eligibility, approval settlement) — those always re-read
// the ledger. It exists so list views and the reconciliation pass don't
// hammer the RPC endpoint.
type MemberMirror struct {
	Address      string    `gorm:"primaryKey;type:varchar(64)" json:"address"` // lowercase-normalized
	XP           int64     `gorm:"not null;default:0" json:"xp"`
	Tier         uint8     `gorm:"not null;default:0" json:"tier"`
	HasNFT       bool      `gorm:"not null;default:false" json:"has_nft"`
	LastSyncedAt time.Time `gorm:"not null" json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (MemberMirror) TableName() string {
	return "member_mirror"
}
