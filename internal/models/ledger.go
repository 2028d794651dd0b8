package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger entry kinds.
const (
	LedgerPayoutCredit  = "payout_credit"
	LedgerStakeRefund   = "stake_refund"
	LedgerStakeRetained = "stake_retained"
	LedgerCashOutCredit = "cashout_credit"
)

// LedgerEntry records an off-chain balance movement, used for legacy bets
// that have no on-chain object to settle against.
type LedgerEntry struct {
	ID       uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	BetID    uint64          `gorm:"not null;index" json:"bet_id"`
	Bettor   string          `gorm:"type:varchar(100);not null;index" json:"bettor"`
	Currency string          `gorm:"type:varchar(10);not null;index" json:"currency"`
	Kind     string          `gorm:"type:varchar(30);not null" json:"kind"`
	Amount   decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"amount"`
	Note     string          `gorm:"type:text" json:"note"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// FeeWithdrawal is the audit record of one successful treasury fee
// withdrawal.
type FeeWithdrawal struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Currency  string          `gorm:"type:varchar(10);not null;index" json:"currency"`
	GrossFees decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"gross_fees"`
	Amount    decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"amount"`
	TxRef     string          `gorm:"type:varchar(100);not null" json:"tx_ref"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
}

func (FeeWithdrawal) TableName() string {
	return "fee_withdrawals"
}
