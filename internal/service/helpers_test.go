package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"suiwager/internal/chain"
	"suiwager/internal/models"
	"suiwager/internal/repository"
	"suiwager/internal/signer"
)

// fakeStore is an in-memory BetStore. updateStatusErr, when set, is returned
// by every UpdateBetStatus call without applying the transition, mimicking a
// concurrent settlement winning the forward-only guard.
type fakeStore struct {
	bets            map[uint64]*models.Bet
	ledger          []models.LedgerEntry
	withdrawals     []models.FeeWithdrawal
	nextID          uint64
	updateStatusErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{bets: map[uint64]*models.Bet{}, nextID: 1}
}

func (s *fakeStore) CreateBet(_ context.Context, bet *models.Bet) error {
	bet.ID = s.nextID
	s.nextID++
	bet.CreatedAt = time.Now().UTC()
	cp := *bet
	s.bets[bet.ID] = &cp
	return nil
}

func (s *fakeStore) GetBet(_ context.Context, id uint64) (*models.Bet, error) {
	bet, ok := s.bets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *bet
	return &cp, nil
}

func (s *fakeStore) ListPending(_ context.Context, params repository.ListPendingParams) ([]models.Bet, error) {
	ids := make([]uint64, 0, len(s.bets))
	for id := range s.bets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []models.Bet
	for _, id := range ids {
		bet := s.bets[id]
		if models.BetStatus(bet.Status) != models.BetPending {
			continue
		}
		if params.Currency != nil && bet.Currency != string(*params.Currency) {
			continue
		}
		out = append(out, *bet)
	}
	return out, nil
}

func (s *fakeStore) UpdateBetStatus(_ context.Context, id uint64, update repository.BetStatusUpdate) error {
	if s.updateStatusErr != nil {
		return s.updateStatusErr
	}
	bet, ok := s.bets[id]
	if !ok {
		return repository.ErrNotFound
	}
	if models.BetStatus(bet.Status) != models.BetPending {
		return repository.ErrStaleStatus
	}
	bet.Status = string(update.Status)
	bet.SettledAt = update.SettledAt
	if update.TxRef != nil {
		bet.TxRef = update.TxRef
	}
	bet.SettlementPath = update.SettlementPath
	bet.AuditNote = update.AuditNote
	return nil
}

func (s *fakeStore) SetBetObjectRef(_ context.Context, id uint64, objectRef, txRef string) error {
	bet, ok := s.bets[id]
	if !ok {
		return repository.ErrNotFound
	}
	if objectRef != "" {
		bet.ObjectRef = &objectRef
	}
	if txRef != "" {
		bet.TxRef = &txRef
	}
	return nil
}

func (s *fakeStore) AttachSettlementTransfer(_ context.Context, id uint64, txRef string, note datatypes.JSON) error {
	bet, ok := s.bets[id]
	if !ok {
		return repository.ErrNotFound
	}
	bet.TxRef = &txRef
	if note != nil {
		bet.AuditNote = note
	}
	return nil
}

func (s *fakeStore) SumPendingPayout(_ context.Context, currency models.Currency, onChainOnly bool) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, bet := range s.bets {
		if models.BetStatus(bet.Status) != models.BetPending || bet.Currency != string(currency) {
			continue
		}
		if onChainOnly && bet.Backing().Kind != models.BackingOnChain {
			continue
		}
		total = total.Add(bet.PotentialPayout)
	}
	return total, nil
}

func (s *fakeStore) InsertLedgerEntry(_ context.Context, entry *models.LedgerEntry) error {
	s.ledger = append(s.ledger, *entry)
	return nil
}

func (s *fakeStore) InsertFeeWithdrawal(_ context.Context, withdrawal *models.FeeWithdrawal) error {
	s.withdrawals = append(s.withdrawals, *withdrawal)
	return nil
}

func (s *fakeStore) ListFeeWithdrawals(_ context.Context, _ *models.Currency, _ int) ([]models.FeeWithdrawal, error) {
	return s.withdrawals, nil
}

// fakeExec is a programmable chain executor. Unset hooks succeed.
type fakeExec struct {
	placeFn    func(models.Currency, string, string, string, decimal.Decimal, decimal.Decimal) chain.Result
	settleFn   func(models.Currency, string, bool) chain.Result
	voidFn     func(models.Currency, string) chain.Result
	cashOutFn  func(models.Currency, string, decimal.Decimal) chain.Result
	payoutFn   func(models.Currency, string, decimal.Decimal) chain.Result
	withdrawFn func(models.Currency, decimal.Decimal) chain.Result
	stateFn    func(models.Currency) (models.TreasuryState, error)

	settleCalls   int
	payoutCalls   int
	withdrawCalls int
}

func ok(tx string) chain.Result {
	return chain.Result{Success: true, TxRef: tx}
}

func (e *fakeExec) PlaceBet(_ context.Context, c models.Currency, bettor, eventID, prediction string, stake, odds decimal.Decimal) chain.Result {
	if e.placeFn != nil {
		return e.placeFn(c, bettor, eventID, prediction, stake, odds)
	}
	return chain.Result{Success: true, TxRef: "0xplace", ObjectRef: "0xbetobj"}
}

func (e *fakeExec) Settle(_ context.Context, c models.Currency, ref string, won bool) chain.Result {
	e.settleCalls++
	if e.settleFn != nil {
		return e.settleFn(c, ref, won)
	}
	return ok("0xsettle")
}

func (e *fakeExec) Void(_ context.Context, c models.Currency, ref string) chain.Result {
	if e.voidFn != nil {
		return e.voidFn(c, ref)
	}
	return ok("0xvoid")
}

func (e *fakeExec) CashOut(_ context.Context, c models.Currency, ref string, value decimal.Decimal) chain.Result {
	if e.cashOutFn != nil {
		return e.cashOutFn(c, ref, value)
	}
	return ok("0xcashout")
}

func (e *fakeExec) Payout(_ context.Context, c models.Currency, recipient string, amount decimal.Decimal) chain.Result {
	e.payoutCalls++
	if e.payoutFn != nil {
		return e.payoutFn(c, recipient, amount)
	}
	return ok("0xpayout")
}

func (e *fakeExec) WithdrawFees(_ context.Context, c models.Currency, amount decimal.Decimal) chain.Result {
	e.withdrawCalls++
	if e.withdrawFn != nil {
		return e.withdrawFn(c, amount)
	}
	return ok("0xwithdraw")
}

func (e *fakeExec) GetPlatformState(_ context.Context, c models.Currency) (models.TreasuryState, error) {
	if e.stateFn != nil {
		return e.stateFn(c)
	}
	return models.TreasuryState{Currency: c, FetchedAt: time.Now().UTC()}, nil
}

// fakeEvents is a canned odds collaborator.
type fakeEvents struct {
	states map[string]signer.EventState
	quote  decimal.Decimal
	err    error
}

func (f *fakeEvents) GetEventState(_ context.Context, eventID string) (signer.EventState, error) {
	if f.err != nil {
		return signer.EventState{}, f.err
	}
	if st, ok := f.states[eventID]; ok {
		return st, nil
	}
	return signer.EventState{Finished: true, Result: "home_win"}, nil
}

func (f *fakeEvents) GetCashOutQuote(_ context.Context, _, _ string) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.quote, nil
}
