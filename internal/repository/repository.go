package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"suiwager/internal/models"
)

// ErrStaleStatus is returned when a status update finds the bet no longer in
// the expected prior state; transitions only move forward.
var ErrStaleStatus = errors.New("bet status changed concurrently")

var ErrNotFound = errors.New("record not found")

type ListPendingParams struct {
	Currency *models.Currency
	Limit    int
	Offset   int
}

// BetStatusUpdate carries the terminal-state fields set during settlement.
type BetStatusUpdate struct {
	Status         models.BetStatus
	SettledAt      *time.Time
	TxRef          *string
	SettlementPath string
	AuditNote      datatypes.JSON
}

// BetStore is the off-chain record store the reconciliation engine depends
// on.
type BetStore interface {
	CreateBet(ctx context.Context, bet *models.Bet) error
	GetBet(ctx context.Context, id uint64) (*models.Bet, error)
	ListPending(ctx context.Context, params ListPendingParams) ([]models.Bet, error)

	// UpdateBetStatus transitions a pending bet to the given status. It
	// fails with ErrStaleStatus when the bet already left pending, so a
	// terminal state is never overwritten.
	UpdateBetStatus(ctx context.Context, id uint64, update BetStatusUpdate) error

	// SetBetObjectRef stores the on-chain references created at placement.
	SetBetObjectRef(ctx context.Context, id uint64, objectRef, txRef string) error

	// AttachSettlementTransfer records the best-effort transfer reference
	// (and the amended audit note) on a bet that is already terminal.
	AttachSettlementTransfer(ctx context.Context, id uint64, txRef string, note datatypes.JSON) error

	// SumPendingPayout totals potential payouts of pending bets for one
	// currency; onChainOnly restricts it to bets with an object reference,
	// which is the figure subtracted from on-chain liability to derive
	// phantom liability.
	SumPendingPayout(ctx context.Context, currency models.Currency, onChainOnly bool) (decimal.Decimal, error)

	InsertLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error
	InsertFeeWithdrawal(ctx context.Context, withdrawal *models.FeeWithdrawal) error
	ListFeeWithdrawals(ctx context.Context, currency *models.Currency, limit int) ([]models.FeeWithdrawal, error)
}
