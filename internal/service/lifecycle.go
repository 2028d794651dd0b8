package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"suiwager/internal/chain"
	"suiwager/internal/metrics"
	"suiwager/internal/models"
	"suiwager/internal/repository"
	"suiwager/internal/signer"
)

var (
	ErrBetNotPending     = errors.New("bet is not pending")
	ErrSignatureMismatch = errors.New("settlement signature failed re-verification")
	ErrInvalidStake      = errors.New("stake must be positive")
	ErrInvalidOdds       = errors.New("odds must exceed 1")
)

// ChainError surfaces an executor failure to the settlement caller while the
// bet stays pending.
type ChainError struct {
	Code   chain.FailureCode
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("chain call failed (%s): %s", e.Code, e.Reason)
}

// SettlementExecutor is the slice of the chain executor the coordinator
// drives.
type SettlementExecutor interface {
	PlaceBet(ctx context.Context, currency models.Currency, bettor, eventID, prediction string, stake, odds decimal.Decimal) chain.Result
	Settle(ctx context.Context, currency models.Currency, betObjectRef string, won bool) chain.Result
	Void(ctx context.Context, currency models.Currency, betObjectRef string) chain.Result
	CashOut(ctx context.Context, currency models.Currency, betObjectRef string, value decimal.Decimal) chain.Result
	Payout(ctx context.Context, currency models.Currency, recipient string, amount decimal.Decimal) chain.Result
}

// EventStateProvider is the odds collaborator boundary.
type EventStateProvider interface {
	GetEventState(ctx context.Context, eventID string) (signer.EventState, error)
	GetCashOutQuote(ctx context.Context, eventID, prediction string) (decimal.Decimal, error)
}

// Lifecycle owns a bet record from creation through settlement or void,
// reconciling the off-chain record with the on-chain object when one exists.
type Lifecycle struct {
	Store   repository.BetStore
	Exec    SettlementExecutor
	Signer  *signer.SettlementSigner
	Events  EventStateProvider
	Logger  *zap.Logger
	Metrics *metrics.Set
}

type PlaceRequest struct {
	Bettor     string
	EventID    string
	Prediction string
	Currency   models.Currency
	Stake      decimal.Decimal
	Odds       decimal.Decimal
}

// Place accepts a wager: the potential payout is computed once at creation
// and immutable thereafter. When the chain is configured the on-chain place
// call runs after the record exists, so a placement that fails on-chain is
// still visible for reconciliation.
func (l *Lifecycle) Place(ctx context.Context, req PlaceRequest) (*models.Bet, error) {
	if !req.Stake.IsPositive() {
		return nil, ErrInvalidStake
	}
	if req.Odds.LessThanOrEqual(decimal.NewFromInt(1)) {
		return nil, ErrInvalidOdds
	}
	bet := &models.Bet{
		Bettor:          req.Bettor,
		EventID:         req.EventID,
		Prediction:      req.Prediction,
		Currency:        string(req.Currency),
		Stake:           req.Stake,
		Odds:            req.Odds,
		PotentialPayout: req.Stake.Mul(req.Odds),
		Status:          string(models.BetPending),
	}
	if err := l.Store.CreateBet(ctx, bet); err != nil {
		return nil, fmt.Errorf("create bet: %w", err)
	}

	res := l.Exec.PlaceBet(ctx, req.Currency, req.Bettor, req.EventID, req.Prediction, req.Stake, req.Odds)
	switch {
	case res.Success:
		if err := l.Store.SetBetObjectRef(ctx, bet.ID, res.ObjectRef, res.TxRef); err != nil {
			return nil, fmt.Errorf("store chain refs: %w", err)
		}
		if res.ObjectRef != "" {
			bet.ObjectRef = &res.ObjectRef
		}
		if res.TxRef != "" {
			bet.TxRef = &res.TxRef
		}
	case res.Code == chain.FailureNotConfigured:
		// Off-chain only mode; the bet stays without an object reference.
		if l.Logger != nil {
			l.Logger.Info("bet placed off-chain only", zap.Uint64("bet_id", bet.ID), zap.String("reason", res.Reason))
		}
	default:
		if l.Logger != nil {
			l.Logger.Warn("on-chain placement failed, bet recorded without object reference",
				zap.Uint64("bet_id", bet.ID),
				zap.String("code", string(res.Code)),
				zap.String("reason", res.Reason),
			)
		}
	}
	return bet, nil
}

// SettleOutcome reports one completed settlement.
type SettleOutcome struct {
	Bet   *models.Bet `json:"bet"`
	TxRef string      `json:"tx_ref,omitempty"`
	Path  string      `json:"path"`
}

func settlementPayout(bet *models.Bet, outcome models.Outcome) decimal.Decimal {
	switch outcome {
	case models.OutcomeWon:
		return bet.PotentialPayout
	case models.OutcomeVoid:
		return bet.Stake
	default:
		return decimal.Zero
	}
}

// SettleBet drives one bet to a terminal state: validate, sign, verify, then
// settle on-chain or through the off-chain ledger depending on the bet's
// backing. Any failure before on-chain confirmation leaves the bet pending.
func (l *Lifecycle) SettleBet(ctx context.Context, betID uint64, outcome models.Outcome, reason string) (SettleOutcome, error) {
	bet, err := l.Store.GetBet(ctx, betID)
	if err != nil {
		return SettleOutcome{}, err
	}
	if models.BetStatus(bet.Status) != models.BetPending {
		return SettleOutcome{}, fmt.Errorf("%w: bet %d is %s", ErrBetNotPending, betID, bet.Status)
	}
	currency, err := models.ParseCurrency(bet.Currency)
	if err != nil {
		return SettleOutcome{}, err
	}

	decision := models.SettlementDecision{
		BetID:     bet.ID,
		EventID:   bet.EventID,
		Outcome:   outcome,
		Payout:    settlementPayout(bet, outcome),
		DecidedAt: time.Now().UTC(),
	}

	// Void bets do not depend on event completion, so skip the event fetch.
	var eventState signer.EventState
	if outcome != models.OutcomeVoid {
		eventState, err = l.Events.GetEventState(ctx, bet.EventID)
		if err != nil {
			return SettleOutcome{}, fmt.Errorf("event state for %s: %w", bet.EventID, err)
		}
	} else {
		eventState = signer.EventState{Finished: true}
	}
	if err := l.Signer.Validate(decision, bet.Stake, eventState); err != nil {
		return SettleOutcome{}, err
	}

	signed, err := l.Signer.Sign(decision)
	if err != nil {
		return SettleOutcome{}, err
	}
	// Immediate re-verification guards against corrupted signer state. A
	// mismatch is an internal inconsistency, not a user error.
	if !l.Signer.Verify(signed) {
		if l.Logger != nil {
			l.Logger.Error("settlement signature failed re-verification, operator attention required",
				zap.Uint64("bet_id", bet.ID))
		}
		return SettleOutcome{}, ErrSignatureMismatch
	}
	signed.Verified = true

	switch backing := bet.Backing(); backing.Kind {
	case models.BackingOnChain:
		return l.settleOnChain(ctx, bet, currency, backing.ObjectRef, signed)
	default:
		return l.settleLegacy(ctx, bet, currency, signed, reason)
	}
}

func (l *Lifecycle) settleOnChain(ctx context.Context, bet *models.Bet, currency models.Currency, objectRef string, signed models.SignedSettlement) (SettleOutcome, error) {
	outcome := signed.Decision.Outcome

	var res chain.Result
	if outcome == models.OutcomeVoid {
		res = l.Exec.Void(ctx, currency, objectRef)
	} else {
		res = l.Exec.Settle(ctx, currency, objectRef, outcome == models.OutcomeWon)
	}
	if !res.Success {
		// Marking the bet settled without on-chain confirmation would
		// desynchronize the record from the liability still held on-chain.
		l.Metrics.IncSettlementFailure(string(res.Code))
		if l.Logger != nil {
			l.Logger.Warn("on-chain settlement failed, bet stays pending",
				zap.Uint64("bet_id", bet.ID),
				zap.String("code", string(res.Code)),
				zap.String("reason", res.Reason),
			)
		}
		return SettleOutcome{}, &ChainError{Code: res.Code, Reason: res.Reason}
	}

	now := signed.Decision.DecidedAt
	update := repository.BetStatusUpdate{
		Status:         outcome.BetStatus(),
		SettledAt:      &now,
		TxRef:          &res.TxRef,
		SettlementPath: models.PathOnChain,
	}
	if err := l.Store.UpdateBetStatus(ctx, bet.ID, update); err != nil {
		return SettleOutcome{}, err
	}
	bet.Status = string(update.Status)
	bet.SettledAt = &now
	bet.TxRef = &res.TxRef
	bet.SettlementPath = models.PathOnChain
	l.Metrics.IncSettlement(string(outcome), models.PathOnChain)
	return SettleOutcome{Bet: bet, TxRef: res.TxRef, Path: models.PathOnChain}, nil
}

// legacyAudit is the structurally required audit note on every settlement
// that resolved phantom liability off-chain.
type legacyAudit struct {
	Path             string `json:"path"`
	PhantomLiability bool   `json:"phantom_liability"`
	TransferTx       string `json:"transfer_tx,omitempty"`
	Reason           string `json:"reason,omitempty"`
	Note             string `json:"note"`
}

func (l *Lifecycle) settleLegacy(ctx context.Context, bet *models.Bet, currency models.Currency, signed models.SignedSettlement, reason string) (SettleOutcome, error) {
	outcome := signed.Decision.Outcome
	payout := signed.Decision.Payout
	now := signed.Decision.DecidedAt

	audit := func(transferTx string) (datatypes.JSON, error) {
		note, err := json.Marshal(legacyAudit{
			Path:             models.PathLegacyOffline,
			PhantomLiability: true,
			TransferTx:       transferTx,
			Reason:           reason,
			Note:             "settled without on-chain object reference; liability was never tracked on-chain",
		})
		return datatypes.JSON(note), err
	}
	note, err := audit("")
	if err != nil {
		return SettleOutcome{}, err
	}

	// Claim the terminal transition before the ledger write and the
	// compensating transfer: an attempt losing a settlement race stops
	// here with no side effects.
	update := repository.BetStatusUpdate{
		Status:         outcome.BetStatus(),
		SettledAt:      &now,
		SettlementPath: models.PathLegacyOffline,
		AuditNote:      note,
	}
	if err := l.Store.UpdateBetStatus(ctx, bet.ID, update); err != nil {
		return SettleOutcome{}, err
	}
	bet.Status = string(update.Status)
	bet.SettledAt = &now
	bet.SettlementPath = models.PathLegacyOffline
	bet.AuditNote = note

	entry := &models.LedgerEntry{
		BetID:    bet.ID,
		Bettor:   bet.Bettor,
		Currency: bet.Currency,
	}
	switch outcome {
	case models.OutcomeWon:
		entry.Kind = models.LedgerPayoutCredit
		entry.Amount = payout
		entry.Note = "legacy bet won, payout credited off-chain"
	case models.OutcomeVoid:
		entry.Kind = models.LedgerStakeRefund
		entry.Amount = bet.Stake
		entry.Note = "legacy bet voided, stake refunded off-chain"
	default:
		entry.Kind = models.LedgerStakeRetained
		entry.Amount = bet.Stake
		entry.Note = "legacy bet lost, stake retained as treasury revenue"
	}
	if err := l.Store.InsertLedgerEntry(ctx, entry); err != nil {
		return SettleOutcome{}, fmt.Errorf("ledger entry: %w", err)
	}

	// Best-effort compensating transfer for winning payouts. Its absence
	// does not block settlement: the on-chain liability for this bet was
	// never tracked, which is exactly what the audit note records.
	transferTx := ""
	if outcome == models.OutcomeWon && payout.IsPositive() {
		res := l.Exec.Payout(ctx, currency, bet.Bettor, payout)
		if res.Success {
			transferTx = res.TxRef
			if amended, err := audit(transferTx); err == nil {
				if err := l.Store.AttachSettlementTransfer(ctx, bet.ID, transferTx, amended); err == nil {
					bet.TxRef = &transferTx
					bet.AuditNote = amended
				} else if l.Logger != nil {
					l.Logger.Warn("recording legacy payout transfer failed",
						zap.Uint64("bet_id", bet.ID), zap.Error(err))
				}
			}
		} else if l.Logger != nil {
			l.Logger.Warn("best-effort legacy payout transfer failed",
				zap.Uint64("bet_id", bet.ID),
				zap.String("code", string(res.Code)),
				zap.String("reason", res.Reason),
			)
		}
	}

	l.Metrics.IncSettlement(string(outcome), models.PathLegacyOffline)
	return SettleOutcome{Bet: bet, TxRef: transferTx, Path: models.PathLegacyOffline}, nil
}

type BulkFailure struct {
	BetID  uint64 `json:"bet_id"`
	Reason string `json:"reason"`
}

type BulkSettlementResult struct {
	SettledCount int           `json:"settled_count"`
	Failures     []BulkFailure `json:"failures"`
}

// SettleAllPending applies the per-bet settlement algorithm sequentially.
// Prior successes are never rolled back; partial completion is the expected
// behavior and is reported as counts.
func (l *Lifecycle) SettleAllPending(ctx context.Context, outcome models.Outcome, currency *models.Currency, reason string) (BulkSettlementResult, error) {
	var result BulkSettlementResult
	bets, err := l.Store.ListPending(ctx, repository.ListPendingParams{Currency: currency})
	if err != nil {
		return result, err
	}
	for _, bet := range bets {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if _, err := l.SettleBet(ctx, bet.ID, outcome, reason); err != nil {
			result.Failures = append(result.Failures, BulkFailure{BetID: bet.ID, Reason: err.Error()})
			continue
		}
		result.SettledCount++
	}
	return result, nil
}

// CashOut settles a pending bet early. The pricing multiplier comes from the
// odds collaborator (or an explicit operator override) and is clamped to
// [0, potential payout].
func (l *Lifecycle) CashOut(ctx context.Context, betID uint64, multiplier *decimal.Decimal) (SettleOutcome, error) {
	bet, err := l.Store.GetBet(ctx, betID)
	if err != nil {
		return SettleOutcome{}, err
	}
	if models.BetStatus(bet.Status) != models.BetPending {
		return SettleOutcome{}, fmt.Errorf("%w: bet %d is %s", ErrBetNotPending, betID, bet.Status)
	}
	currency, err := models.ParseCurrency(bet.Currency)
	if err != nil {
		return SettleOutcome{}, err
	}

	mult := decimal.Zero
	if multiplier != nil {
		mult = *multiplier
	} else {
		mult, err = l.Events.GetCashOutQuote(ctx, bet.EventID, bet.Prediction)
		if err != nil {
			return SettleOutcome{}, fmt.Errorf("cash-out quote for %s: %w", bet.EventID, err)
		}
	}
	if mult.IsNegative() {
		mult = decimal.Zero
	}
	value := bet.Stake.Mul(mult)
	if value.GreaterThan(bet.PotentialPayout) {
		value = bet.PotentialPayout
	}
	now := time.Now().UTC()

	switch backing := bet.Backing(); backing.Kind {
	case models.BackingOnChain:
		res := l.Exec.CashOut(ctx, currency, backing.ObjectRef, value)
		if !res.Success {
			l.Metrics.IncSettlementFailure(string(res.Code))
			return SettleOutcome{}, &ChainError{Code: res.Code, Reason: res.Reason}
		}
		update := repository.BetStatusUpdate{
			Status:         models.BetCashedOut,
			SettledAt:      &now,
			TxRef:          &res.TxRef,
			SettlementPath: models.PathOnChain,
		}
		if err := l.Store.UpdateBetStatus(ctx, bet.ID, update); err != nil {
			return SettleOutcome{}, err
		}
		bet.Status = string(models.BetCashedOut)
		bet.SettledAt = &now
		bet.TxRef = &res.TxRef
		l.Metrics.IncSettlement("cash_out", models.PathOnChain)
		return SettleOutcome{Bet: bet, TxRef: res.TxRef, Path: models.PathOnChain}, nil
	default:
		note, err := json.Marshal(legacyAudit{
			Path:             models.PathLegacyOffline,
			PhantomLiability: true,
			Note:             "cashed out without on-chain object reference",
		})
		if err != nil {
			return SettleOutcome{}, err
		}
		// Claim the transition before crediting the ledger; see
		// settleLegacy.
		update := repository.BetStatusUpdate{
			Status:         models.BetCashedOut,
			SettledAt:      &now,
			SettlementPath: models.PathLegacyOffline,
			AuditNote:      datatypes.JSON(note),
		}
		if err := l.Store.UpdateBetStatus(ctx, bet.ID, update); err != nil {
			return SettleOutcome{}, err
		}
		if err := l.Store.InsertLedgerEntry(ctx, &models.LedgerEntry{
			BetID:    bet.ID,
			Bettor:   bet.Bettor,
			Currency: bet.Currency,
			Kind:     models.LedgerCashOutCredit,
			Amount:   value,
			Note:     "legacy bet cashed out off-chain",
		}); err != nil {
			return SettleOutcome{}, fmt.Errorf("ledger entry: %w", err)
		}
		bet.Status = string(models.BetCashedOut)
		bet.SettledAt = &now
		bet.SettlementPath = models.PathLegacyOffline
		bet.AuditNote = datatypes.JSON(note)
		l.Metrics.IncSettlement("cash_out", models.PathLegacyOffline)
		return SettleOutcome{Bet: bet, Path: models.PathLegacyOffline}, nil
	}
}
