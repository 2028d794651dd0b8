package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TreasuryState is a read-only snapshot of the on-chain platform object for
// one currency. The engine mutates nothing here except, indirectly, the
// accrued-fee balance via a successful withdrawal.
type TreasuryState struct {
	Currency    Currency        `json:"currency"`
	Balance     decimal.Decimal `json:"balance"`
	TotalStaked decimal.Decimal `json:"total_staked"`
	Liability   decimal.Decimal `json:"liability"`
	AccruedFees decimal.Decimal `json:"accrued_fees"`
	MinBet      decimal.Decimal `json:"min_bet"`
	MaxBet      decimal.Decimal `json:"max_bet"`
	Paused      bool            `json:"paused"`
	FetchedAt   time.Time       `json:"fetched_at"`
}

// WithdrawCycleResult is the outcome of one auto-withdraw tick. It is not
// persisted as an entity; the scheduler retains the latest one plus the cycle
// timestamp as process state.
type WithdrawCycleResult struct {
	RanAt     time.Time                    `json:"ran_at"`
	Withdrawn map[Currency]decimal.Decimal `json:"withdrawn"`
	TxRefs    map[Currency]string          `json:"tx_refs"`
	Errors    []string                     `json:"errors"`
}

func NewWithdrawCycleResult(now time.Time) WithdrawCycleResult {
	return WithdrawCycleResult{
		RanAt:     now,
		Withdrawn: make(map[Currency]decimal.Decimal),
		TxRefs:    make(map[Currency]string),
	}
}
