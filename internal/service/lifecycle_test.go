package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"suiwager/internal/chain"
	"suiwager/internal/keystore"
	"suiwager/internal/models"
	"suiwager/internal/repository"
	"suiwager/internal/signer"
)

func testLifecycle(t *testing.T, store *fakeStore, exec *fakeExec, events *fakeEvents) *Lifecycle {
	t.Helper()
	key, err := keystore.Load("0x"+strings.Repeat("5a", 32), nil)
	if err != nil {
		t.Fatalf("load key: %v", err)
	}
	if events == nil {
		events = &fakeEvents{}
	}
	return &Lifecycle{
		Store:  store,
		Exec:   exec,
		Signer: &signer.SettlementSigner{Key: key},
		Events: events,
	}
}

func seedBet(store *fakeStore, currency models.Currency, objectRef string) *models.Bet {
	bet := &models.Bet{
		Bettor:          "0xbettor",
		EventID:         "evt-1",
		Prediction:      "home_win",
		Currency:        string(currency),
		Stake:           decimal.RequireFromString("2"),
		Odds:            decimal.RequireFromString("1.85"),
		PotentialPayout: decimal.RequireFromString("3.7"),
		Status:          string(models.BetPending),
	}
	if objectRef != "" {
		bet.ObjectRef = &objectRef
	}
	_ = store.CreateBet(context.Background(), bet)
	return bet
}

func TestSettleBet_OnChainWon(t *testing.T) {
	store := newFakeStore()
	bet := seedBet(store, models.SUI, "0xbetobj")
	exec := &fakeExec{settleFn: func(c models.Currency, ref string, won bool) chain.Result {
		if c != models.SUI || ref != "0xbetobj" || !won {
			t.Fatalf("settle args: %s %s won=%v", c, ref, won)
		}
		return ok("0xabc")
	}}
	l := testLifecycle(t, store, exec, nil)

	out, err := l.SettleBet(context.Background(), bet.ID, models.OutcomeWon, "event finished")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if out.TxRef != "0xabc" || out.Path != models.PathOnChain {
		t.Fatalf("out=%+v", out)
	}
	stored := store.bets[bet.ID]
	if stored.Status != string(models.BetWon) {
		t.Fatalf("status=%s", stored.Status)
	}
	if stored.SettledAt == nil {
		t.Fatalf("settled_at not set")
	}
	if stored.TxRef == nil || *stored.TxRef != "0xabc" {
		t.Fatalf("tx ref=%v", stored.TxRef)
	}
}

func TestSettleBet_LegacyLostRetainsStake(t *testing.T) {
	store := newFakeStore()
	bet := seedBet(store, models.SUI, "")
	l := testLifecycle(t, store, &fakeExec{}, nil)

	out, err := l.SettleBet(context.Background(), bet.ID, models.OutcomeLost, "event finished")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if out.Path != models.PathLegacyOffline {
		t.Fatalf("path=%s", out.Path)
	}
	stored := store.bets[bet.ID]
	if stored.Status != string(models.BetLost) {
		t.Fatalf("status=%s", stored.Status)
	}
	if stored.TxRef != nil {
		t.Fatalf("lost legacy bet must have no tx ref, got %v", *stored.TxRef)
	}
	if len(store.ledger) != 1 {
		t.Fatalf("ledger entries=%d", len(store.ledger))
	}
	entry := store.ledger[0]
	if entry.Kind != models.LedgerStakeRetained || !entry.Amount.Equal(bet.Stake) {
		t.Fatalf("entry=%+v", entry)
	}
}

func TestSettleBet_LegacyAuditNoteIsRequired(t *testing.T) {
	store := newFakeStore()
	bet := seedBet(store, models.USDC, "")
	exec := &fakeExec{payoutFn: func(models.Currency, string, decimal.Decimal) chain.Result {
		return chain.Result{Code: chain.FailureNetwork, Reason: "node unreachable"}
	}}
	l := testLifecycle(t, store, exec, nil)

	if _, err := l.SettleBet(context.Background(), bet.ID, models.OutcomeWon, "manual"); err != nil {
		t.Fatalf("best-effort transfer failure must not block settlement: %v", err)
	}
	stored := store.bets[bet.ID]
	if stored.Status != string(models.BetWon) {
		t.Fatalf("status=%s", stored.Status)
	}
	if len(stored.AuditNote) == 0 {
		t.Fatalf("audit note missing on legacy settlement")
	}
	var note map[string]any
	if err := json.Unmarshal(stored.AuditNote, &note); err != nil {
		t.Fatalf("audit note undecodable: %v", err)
	}
	if note["phantom_liability"] != true {
		t.Fatalf("note=%v", note)
	}
	if tx, _ := note["transfer_tx"].(string); tx != "" {
		t.Fatalf("transfer_tx=%q want empty after failed transfer", tx)
	}
}

func TestSettleBet_LegacyWonStoresBestEffortTransfer(t *testing.T) {
	store := newFakeStore()
	bet := seedBet(store, models.SUI, "")
	l := testLifecycle(t, store, &fakeExec{}, nil)

	out, err := l.SettleBet(context.Background(), bet.ID, models.OutcomeWon, "")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if out.TxRef != "0xpayout" {
		t.Fatalf("tx ref=%q", out.TxRef)
	}
	if len(store.ledger) != 1 || store.ledger[0].Kind != models.LedgerPayoutCredit {
		t.Fatalf("ledger=%+v", store.ledger)
	}
	if !store.ledger[0].Amount.Equal(decimal.RequireFromString("3.7")) {
		t.Fatalf("credited=%s", store.ledger[0].Amount)
	}
}

func TestSettleBet_LostLegacyRaceHasNoSideEffects(t *testing.T) {
	store := newFakeStore()
	bet := seedBet(store, models.SUI, "")
	store.updateStatusErr = repository.ErrStaleStatus
	exec := &fakeExec{}
	l := testLifecycle(t, store, exec, nil)

	_, err := l.SettleBet(context.Background(), bet.ID, models.OutcomeWon, "")
	if !errors.Is(err, repository.ErrStaleStatus) {
		t.Fatalf("err=%v want ErrStaleStatus", err)
	}
	if len(store.ledger) != 0 {
		t.Fatalf("ledger credited by losing attempt: %+v", store.ledger)
	}
	if exec.payoutCalls != 0 {
		t.Fatalf("payout transferred by losing attempt")
	}
}

func TestCashOut_LostLegacyRaceHasNoSideEffects(t *testing.T) {
	store := newFakeStore()
	bet := seedBet(store, models.SUI, "")
	store.updateStatusErr = repository.ErrStaleStatus
	exec := &fakeExec{}
	events := &fakeEvents{quote: decimal.RequireFromString("1.4")}
	l := testLifecycle(t, store, exec, events)

	_, err := l.CashOut(context.Background(), bet.ID, nil)
	if !errors.Is(err, repository.ErrStaleStatus) {
		t.Fatalf("err=%v want ErrStaleStatus", err)
	}
	if len(store.ledger) != 0 {
		t.Fatalf("ledger credited by losing attempt: %+v", store.ledger)
	}
}

func TestSettleBet_ChainRejectionLeavesPending(t *testing.T) {
	store := newFakeStore()
	bet := seedBet(store, models.SUI, "0xbetobj")
	exec := &fakeExec{settleFn: func(models.Currency, string, bool) chain.Result {
		return chain.Result{Code: chain.FailureRejected, Reason: "insufficient treasury balance"}
	}}
	l := testLifecycle(t, store, exec, nil)

	_, err := l.SettleBet(context.Background(), bet.ID, models.OutcomeWon, "")
	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("err=%v want ChainError", err)
	}
	if chainErr.Code != chain.FailureRejected {
		t.Fatalf("code=%s", chainErr.Code)
	}
	if store.bets[bet.ID].Status != string(models.BetPending) {
		t.Fatalf("bet must stay pending, got %s", store.bets[bet.ID].Status)
	}
}

func TestSettleBet_NotConfiguredLeavesPending(t *testing.T) {
	store := newFakeStore()
	bet := seedBet(store, models.SUI, "0xbetobj")
	exec := &fakeExec{settleFn: func(models.Currency, string, bool) chain.Result {
		return chain.Result{Code: chain.FailureNotConfigured, Reason: "admin capability not configured"}
	}}
	l := testLifecycle(t, store, exec, nil)

	if _, err := l.SettleBet(context.Background(), bet.ID, models.OutcomeWon, ""); err == nil {
		t.Fatalf("expected error")
	}
	if store.bets[bet.ID].Status != string(models.BetPending) {
		t.Fatalf("status=%s", store.bets[bet.ID].Status)
	}
}

func TestSettleBet_TerminalBetRejectedWithoutSideEffects(t *testing.T) {
	store := newFakeStore()
	bet := seedBet(store, models.SUI, "0xbetobj")
	store.bets[bet.ID].Status = string(models.BetWon)
	exec := &fakeExec{}
	l := testLifecycle(t, store, exec, nil)

	_, err := l.SettleBet(context.Background(), bet.ID, models.OutcomeLost, "")
	if !errors.Is(err, ErrBetNotPending) {
		t.Fatalf("err=%v want ErrBetNotPending", err)
	}
	if exec.settleCalls != 0 {
		t.Fatalf("executor called on terminal bet")
	}
	if len(store.ledger) != 0 {
		t.Fatalf("ledger touched on terminal bet")
	}
}

func TestSettleBet_UnfinishedEventRejectedButVoidExempt(t *testing.T) {
	store := newFakeStore()
	events := &fakeEvents{states: map[string]signer.EventState{
		"evt-1": {Finished: false},
	}}
	wonBet := seedBet(store, models.SUI, "0xbetobj")
	l := testLifecycle(t, store, &fakeExec{}, events)

	_, err := l.SettleBet(context.Background(), wonBet.ID, models.OutcomeWon, "")
	if !errors.Is(err, signer.ErrEventNotFinished) {
		t.Fatalf("err=%v want ErrEventNotFinished", err)
	}
	if store.bets[wonBet.ID].Status != string(models.BetPending) {
		t.Fatalf("status=%s", store.bets[wonBet.ID].Status)
	}

	voidBet := seedBet(store, models.SUI, "0xbetobj")
	if _, err := l.SettleBet(context.Background(), voidBet.ID, models.OutcomeVoid, "match abandoned"); err != nil {
		t.Fatalf("void must not depend on event completion: %v", err)
	}
	if store.bets[voidBet.ID].Status != string(models.BetVoid) {
		t.Fatalf("status=%s", store.bets[voidBet.ID].Status)
	}
}

func TestSettleAllPending_PartialCompletion(t *testing.T) {
	store := newFakeStore()
	good1 := seedBet(store, models.SUI, "0xbet1")
	bad := seedBet(store, models.SUI, "0xbet2")
	good2 := seedBet(store, models.SUI, "0xbet3")
	exec := &fakeExec{settleFn: func(_ models.Currency, ref string, _ bool) chain.Result {
		if ref == "0xbet2" {
			return chain.Result{Code: chain.FailureRejected, Reason: "object version conflict"}
		}
		return ok("0xsettled")
	}}
	l := testLifecycle(t, store, exec, nil)

	result, err := l.SettleAllPending(context.Background(), models.OutcomeLost, nil, "bulk")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if result.SettledCount != 2 {
		t.Fatalf("settled=%d want 2", result.SettledCount)
	}
	if len(result.Failures) != 1 || result.Failures[0].BetID != bad.ID {
		t.Fatalf("failures=%+v", result.Failures)
	}
	if store.bets[good1.ID].Status != string(models.BetLost) || store.bets[good2.ID].Status != string(models.BetLost) {
		t.Fatalf("successes must not be rolled back")
	}
	if store.bets[bad.ID].Status != string(models.BetPending) {
		t.Fatalf("failed bet must stay pending")
	}
}

func TestCashOut_OnChainClampsToPotentialPayout(t *testing.T) {
	store := newFakeStore()
	bet := seedBet(store, models.SUI, "0xbetobj")
	var cashedValue decimal.Decimal
	exec := &fakeExec{cashOutFn: func(_ models.Currency, _ string, value decimal.Decimal) chain.Result {
		cashedValue = value
		return ok("0xcash")
	}}
	l := testLifecycle(t, store, exec, nil)

	mult := decimal.RequireFromString("9.99")
	out, err := l.CashOut(context.Background(), bet.ID, &mult)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !cashedValue.Equal(decimal.RequireFromString("3.7")) {
		t.Fatalf("value=%s want clamp at potential payout", cashedValue)
	}
	if out.Bet.Status != string(models.BetCashedOut) {
		t.Fatalf("status=%s", out.Bet.Status)
	}
	if store.bets[bet.ID].SettledAt == nil {
		t.Fatalf("settled_at not set on cash-out")
	}
}

func TestCashOut_QuoteFromOddsCollaborator(t *testing.T) {
	store := newFakeStore()
	bet := seedBet(store, models.SUI, "0xbetobj")
	var cashedValue decimal.Decimal
	exec := &fakeExec{cashOutFn: func(_ models.Currency, _ string, value decimal.Decimal) chain.Result {
		cashedValue = value
		return ok("0xcash")
	}}
	events := &fakeEvents{quote: decimal.RequireFromString("1.4")}
	l := testLifecycle(t, store, exec, events)

	if _, err := l.CashOut(context.Background(), bet.ID, nil); err != nil {
		t.Fatalf("err=%v", err)
	}
	if !cashedValue.Equal(decimal.RequireFromString("2.8")) {
		t.Fatalf("value=%s want 2.8 (stake 2 x quote 1.4)", cashedValue)
	}
}

func TestCashOut_NonPendingRejected(t *testing.T) {
	store := newFakeStore()
	bet := seedBet(store, models.SUI, "0xbetobj")
	store.bets[bet.ID].Status = string(models.BetVoid)
	l := testLifecycle(t, store, &fakeExec{}, nil)

	if _, err := l.CashOut(context.Background(), bet.ID, nil); !errors.Is(err, ErrBetNotPending) {
		t.Fatalf("err=%v want ErrBetNotPending", err)
	}
}

func TestPlace_ComputesPayoutAndStoresChainRefs(t *testing.T) {
	store := newFakeStore()
	l := testLifecycle(t, store, &fakeExec{}, nil)

	bet, err := l.Place(context.Background(), PlaceRequest{
		Bettor:     "0xbettor",
		EventID:    "evt-9",
		Prediction: "draw",
		Currency:   models.SUI,
		Stake:      decimal.RequireFromString("2"),
		Odds:       decimal.RequireFromString("1.85"),
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !bet.PotentialPayout.Equal(decimal.RequireFromString("3.7")) {
		t.Fatalf("payout=%s", bet.PotentialPayout)
	}
	stored := store.bets[bet.ID]
	if stored.ObjectRef == nil || *stored.ObjectRef != "0xbetobj" {
		t.Fatalf("object ref=%v", stored.ObjectRef)
	}
}

func TestPlace_RejectsNonPositiveStake(t *testing.T) {
	l := testLifecycle(t, newFakeStore(), &fakeExec{}, nil)
	_, err := l.Place(context.Background(), PlaceRequest{
		Currency: models.SUI,
		Stake:    decimal.Zero,
		Odds:     decimal.RequireFromString("1.85"),
	})
	if !errors.Is(err, ErrInvalidStake) {
		t.Fatalf("err=%v want ErrInvalidStake", err)
	}
}
