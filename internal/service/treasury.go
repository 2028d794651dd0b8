package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"suiwager/internal/chain"
	"suiwager/internal/metrics"
	"suiwager/internal/models"
	"suiwager/internal/repository"
)

// ErrCycleInFlight is returned when a withdraw cycle is requested while one
// is already running. Overlapping cycles would race on the same fee balance.
var ErrCycleInFlight = errors.New("withdraw cycle already in flight")

// TreasuryExecutor is the slice of the chain executor the scheduler drives.
type TreasuryExecutor interface {
	WithdrawFees(ctx context.Context, currency models.Currency, amount decimal.Decimal) chain.Result
	GetPlatformState(ctx context.Context, currency models.Currency) (models.TreasuryState, error)
}

type TreasuryConfig struct {
	Currencies   []models.Currency
	SafetyFactor decimal.Decimal
	MinThreshold map[models.Currency]decimal.Decimal
}

// Treasury periodically sweeps accrued fees out of the on-chain treasury.
// All scheduler state is owned by this one instance; start/stop/status are
// the only mutators.
type Treasury struct {
	Exec      TreasuryExecutor
	Store     repository.BetStore
	Config    TreasuryConfig
	Logger    *zap.Logger
	Metrics   *metrics.Set
	HasSigner bool

	// runMu serializes cycles: a tick arriving while one is in flight is
	// skipped, not queued.
	runMu sync.Mutex

	stateMu    sync.Mutex
	lastRun    time.Time
	lastResult *models.WithdrawCycleResult
}

func (t *Treasury) safetyFactor() decimal.Decimal {
	if t.Config.SafetyFactor.IsPositive() && t.Config.SafetyFactor.LessThanOrEqual(decimal.NewFromInt(1)) {
		return t.Config.SafetyFactor
	}
	// Leave a buffer so fees accruing while the withdrawal is in flight
	// cannot overdraw the fee sub-balance.
	return decimal.RequireFromString("0.95")
}

func (t *Treasury) currencies() []models.Currency {
	if len(t.Config.Currencies) > 0 {
		return t.Config.Currencies
	}
	return models.Currencies()
}

// RunCycle executes one withdraw pass over every configured currency. The
// manual operator trigger calls this exact method, so threshold and
// safety-factor policy cannot drift between automatic and manual invocation.
func (t *Treasury) RunCycle(ctx context.Context) (models.WithdrawCycleResult, error) {
	if !t.runMu.TryLock() {
		return models.WithdrawCycleResult{}, ErrCycleInFlight
	}
	defer t.runMu.Unlock()

	now := time.Now().UTC()
	result := models.NewWithdrawCycleResult(now)

	if !t.HasSigner {
		// One log line per cycle, not one per currency check.
		if t.Logger != nil {
			t.Logger.Warn("auto-withdraw skipped, no operator key configured")
		}
		result.Errors = append(result.Errors, "no operator key configured")
		t.record(now, result)
		return result, nil
	}

	for _, currency := range t.currencies() {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", currency, ctx.Err()))
			break
		}
		t.withdrawCurrency(ctx, currency, &result)
	}

	t.record(now, result)
	return result, nil
}

func (t *Treasury) withdrawCurrency(ctx context.Context, currency models.Currency, result *models.WithdrawCycleResult) {
	state, err := t.Exec.GetPlatformState(ctx, currency)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: platform state: %v", currency, err))
		return
	}
	threshold := t.Config.MinThreshold[currency]
	if state.AccruedFees.LessThan(threshold) || !state.AccruedFees.IsPositive() {
		// Below threshold is the normal idle outcome, not an error.
		return
	}

	amount := state.AccruedFees.Mul(t.safetyFactor()).Truncate(currency.Scale())
	if !amount.IsPositive() {
		return
	}

	res := t.Exec.WithdrawFees(ctx, currency, amount)
	if !res.Success {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: withdraw (%s): %s", currency, res.Code, res.Reason))
		if t.Logger != nil {
			t.Logger.Warn("fee withdrawal failed",
				zap.String("currency", string(currency)),
				zap.String("code", string(res.Code)),
				zap.String("reason", res.Reason),
			)
		}
		return
	}

	result.Withdrawn[currency] = amount
	result.TxRefs[currency] = res.TxRef
	t.Metrics.ObserveWithdrawal(string(currency), amount.InexactFloat64())
	if t.Logger != nil {
		t.Logger.Info("fees withdrawn",
			zap.String("currency", string(currency)),
			zap.String("amount", amount.String()),
			zap.String("tx_ref", res.TxRef),
		)
	}
	if t.Store != nil {
		if err := t.Store.InsertFeeWithdrawal(ctx, &models.FeeWithdrawal{
			Currency:  string(currency),
			GrossFees: state.AccruedFees,
			Amount:    amount,
			TxRef:     res.TxRef,
		}); err != nil && t.Logger != nil {
			t.Logger.Warn("fee withdrawal audit record failed", zap.Error(err))
		}
	}
}

// record updates lastRun regardless of whether any currency moved: the
// timestamp is a liveness signal for the scheduler, not a success flag.
func (t *Treasury) record(now time.Time, result models.WithdrawCycleResult) {
	t.stateMu.Lock()
	t.lastRun = now
	t.lastResult = &result
	t.stateMu.Unlock()
	t.Metrics.MarkWithdrawCycle(now)
}

type SchedulerStatus struct {
	LastWithdrawTime *time.Time                  `json:"last_withdraw_time,omitempty"`
	InFlight         bool                        `json:"in_flight"`
	LastResult       *models.WithdrawCycleResult `json:"last_result,omitempty"`
}

func (t *Treasury) Status() SchedulerStatus {
	inFlight := !t.runMu.TryLock()
	if !inFlight {
		t.runMu.Unlock()
	}

	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	status := SchedulerStatus{
		InFlight:   inFlight,
		LastResult: t.lastResult,
	}
	if !t.lastRun.IsZero() {
		lastRun := t.lastRun
		status.LastWithdrawTime = &lastRun
	}
	return status
}
