package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type BetStatus string

const (
	BetPending   BetStatus = "pending"
	BetWon       BetStatus = "won"
	BetLost      BetStatus = "lost"
	BetVoid      BetStatus = "void"
	BetCashedOut BetStatus = "cashed_out"
	BetFailed    BetStatus = "failed"
)

// Terminal reports whether no further transition may leave the status.
func (s BetStatus) Terminal() bool {
	switch s {
	case BetWon, BetLost, BetVoid, BetCashedOut:
		return true
	}
	return false
}

// SettlementPath values persisted on settled bets.
const (
	PathOnChain       = "onchain"
	PathLegacyOffline = "legacy_offchain"
)

type Bet struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Bettor  string `gorm:"type:varchar(100);not null;index" json:"bettor"`
	EventID string `gorm:"type:varchar(100);not null;index" json:"event_id"`

	Prediction string `gorm:"type:varchar(200);not null" json:"prediction"`
	Currency   string `gorm:"type:varchar(10);not null;index" json:"currency"`

	Stake           decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"stake"`
	Odds            decimal.Decimal `gorm:"type:numeric(20,10);not null" json:"odds"`
	PotentialPayout decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"potential_payout"`

	Status string `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	// Nullable on-chain references. A nil ObjectRef marks a legacy bet that
	// can only be settled through the off-chain ledger. Never backfilled.
	ObjectRef *string `gorm:"column:chain_object_ref;type:varchar(100);index" json:"chain_object_ref,omitempty"`
	TxRef     *string `gorm:"column:chain_tx_ref;type:varchar(100)" json:"chain_tx_ref,omitempty"`

	SettlementPath string         `gorm:"type:varchar(30)" json:"settlement_path,omitempty"`
	AuditNote      datatypes.JSON `gorm:"type:jsonb" json:"audit_note,omitempty"`

	SettledAt *time.Time `gorm:"type:timestamptz" json:"settled_at,omitempty"`
	CreatedAt time.Time  `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (Bet) TableName() string {
	return "bets"
}

type BackingKind int

const (
	BackingOnChain BackingKind = iota
	BackingLegacy
)

// Backing is the bet's settlement route, resolved once at load time so that
// downstream settlement code switches on Kind instead of re-checking field
// presence.
type Backing struct {
	Kind      BackingKind
	ObjectRef string // set only for BackingOnChain
}

func (b *Bet) Backing() Backing {
	if b.ObjectRef != nil && *b.ObjectRef != "" {
		return Backing{Kind: BackingOnChain, ObjectRef: *b.ObjectRef}
	}
	return Backing{Kind: BackingLegacy}
}
