package services

// Tier thresholds: XP required to reach each tier when the ledger has not
// recalculated the tier field yet.
const (
	BronzeThreshold int64 = 100
	SilverThreshold int64 = 500
	GoldThreshold   int64 = 1000
)

// TierInfo describes one tier badge.
type TierInfo struct {
	Tier        uint8  `json:"tier"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Threshold   int64  `json:"threshold"`
	MetadataURI string `json:"metadata_uri,omitempty"` // tokenURI passed to the mint transaction
}

// TierMetadata indexed by tier number.
var TierMetadata = map[uint8]TierInfo{
	0: {Tier: 0, Name: "No Tier", Color: "#ffffff", Threshold: 0},
	1: {Tier: 1, Name: "Bronze", Color: "#CD7F32", Threshold: BronzeThreshold, MetadataURI: "ipfs://QmBronzeURI"},
	2: {Tier: 2, Name: "Silver", Color: "#C0C0C0", Threshold: SilverThreshold, MetadataURI: "ipfs://QmSilverURI"},
	3: {Tier: 3, Name: "Gold", Color: "#FFD700", Threshold: GoldThreshold, MetadataURI: "ipfs://QmGoldURI"},
}

// ResolveTier computes the effective tier from a ledger read.
//
// The ledger's own tier field may lag behind a freshly confirmed XP write,
// so when it reports 0 the tier is recomputed from XP alone. A non-zero
// ledger tier always wins: the override only ever raises the displayed
// tier, never lowers it. The mint guard re-validates against the fresh
// record anyway, so this cannot grant eligibility the ledger would refuse.
func ResolveTier(xp int64, ledgerTier uint8) uint8 {
	if ledgerTier != 0 {
		return ledgerTier
	}
	switch {
	case xp >= GoldThreshold:
		return 3
	case xp >= SilverThreshold:
		return 2
	case xp >= BronzeThreshold:
		return 1
	default:
		return 0
	}
}

// TierName returns the display name for a tier, defaulting to "No Tier".
func TierName(tier uint8) string {
	if info, ok := TierMetadata[tier]; ok {
		return info.Name
	}
	return TierMetadata[0].Name
}
