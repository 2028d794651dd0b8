package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outcome of a settlement decision.
type Outcome string

const (
	OutcomeWon  Outcome = "won"
	OutcomeLost Outcome = "lost"
	OutcomeVoid Outcome = "void"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeWon, OutcomeLost, OutcomeVoid:
		return true
	}
	return false
}

func (o Outcome) BetStatus() BetStatus {
	switch o {
	case OutcomeWon:
		return BetWon
	case OutcomeLost:
		return BetLost
	case OutcomeVoid:
		return BetVoid
	}
	return BetFailed
}

// SettlementDecision is the unsigned intent to resolve a bet. Its fields are
// canonicalized in a fixed order before signing.
type SettlementDecision struct {
	BetID     uint64          `json:"bet_id"`
	EventID   string          `json:"event_id"`
	Outcome   Outcome         `json:"outcome"`
	Payout    decimal.Decimal `json:"payout"`
	DecidedAt time.Time       `json:"decided_at"`
}

// SignedSettlement bundles a decision with its signature. Verified is set only
// after an independent re-verification; a decision must not drive an on-chain
// call or an off-chain credit before that.
type SignedSettlement struct {
	Decision  SettlementDecision `json:"decision"`
	Signature string             `json:"signature"`
	SignedBy  string             `json:"signed_by"`
	Verified  bool               `json:"verified"`
}
