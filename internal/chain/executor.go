package chain

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"suiwager/internal/keystore"
	"suiwager/internal/models"
)

// FailureCode classifies a failed chain operation for the caller.
type FailureCode string

const (
	FailureNone          FailureCode = ""
	FailureNotConfigured FailureCode = "not_configured"
	FailureRejected      FailureCode = "rejected_by_contract"
	FailureNetwork       FailureCode = "network_or_timeout"
	FailureUnknown       FailureCode = "unknown"
)

// Result is the normalized outcome of one on-chain operation. Failures are
// values, never panics or uncatchable errors.
type Result struct {
	Success bool        `json:"success"`
	TxRef   string      `json:"tx_ref,omitempty"`
	Code    FailureCode `json:"code,omitempty"`
	Reason  string      `json:"reason,omitempty"`

	// ObjectRef is set by PlaceBet: the created on-chain bet object.
	ObjectRef string `json:"object_ref,omitempty"`
}

// Retryable reports whether repeating the identical call can succeed.
func (r Result) Retryable() bool {
	return r.Code == FailureNetwork
}

type PlatformConfig struct {
	ObjectID string
	CoinType string
}

type Config struct {
	PackageID   string
	Module      string
	AdminCapID  string
	GasBudget   uint64
	CallTimeout time.Duration
	Platforms   map[models.Currency]PlatformConfig
}

// Executor submits typed Move calls against the betting package and polls
// transaction finality.
type Executor struct {
	Client *Client
	Key    *keystore.Signer
	Cfg    Config
	Logger *zap.Logger
}

const (
	defaultModule      = "betting"
	defaultGasBudget   = 50_000_000
	defaultCallTimeout = 20 * time.Second
)

func (e *Executor) module() string {
	if e.Cfg.Module != "" {
		return e.Cfg.Module
	}
	return defaultModule
}

func (e *Executor) gasBudget() string {
	budget := e.Cfg.GasBudget
	if budget == 0 {
		budget = defaultGasBudget
	}
	return strconv.FormatUint(budget, 10)
}

func (e *Executor) callTimeout() time.Duration {
	if e.Cfg.CallTimeout > 0 {
		return e.Cfg.CallTimeout
	}
	return defaultCallTimeout
}

// preflight checks operator configuration before any network work. A missing
// key or capability is an operator problem, distinguishable from a network
// failure.
func (e *Executor) preflight(currency models.Currency) (PlatformConfig, *Result) {
	if e.Key == nil {
		return PlatformConfig{}, &Result{Code: FailureNotConfigured, Reason: "no operator key configured"}
	}
	if e.Cfg.AdminCapID == "" {
		return PlatformConfig{}, &Result{Code: FailureNotConfigured, Reason: "admin capability not configured"}
	}
	platform, ok := e.Cfg.Platforms[currency]
	if !ok || platform.ObjectID == "" {
		return PlatformConfig{}, &Result{Code: FailureNotConfigured, Reason: fmt.Sprintf("no platform object configured for %s", currency)}
	}
	return platform, nil
}

// signTransaction produces the serialized Sui signature for raw transaction
// bytes: ed25519 over blake2b-256 of the intent-prefixed payload, wrapped
// with the scheme flag and public key.
func (e *Executor) signTransaction(txBytes []byte) string {
	msg := make([]byte, 0, 3+len(txBytes))
	msg = append(msg, 0, 0, 0) // intent: TransactionData, V0, Sui
	msg = append(msg, txBytes...)
	digest := blake2b.Sum256(msg)
	sig := e.Key.Sign(digest[:])

	serialized := make([]byte, 0, 1+len(sig)+len(e.Key.PublicKey()))
	serialized = append(serialized, 0x00) // ed25519 flag
	serialized = append(serialized, sig...)
	serialized = append(serialized, e.Key.PublicKey()...)
	return base64.StdEncoding.EncodeToString(serialized)
}

// moveCall builds, signs and executes one Move call, waiting for local
// execution effects.
func (e *Executor) moveCall(ctx context.Context, function string, typeArgs []string, args []any) (txBlockResponse, Result) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout())
	defer cancel()

	if typeArgs == nil {
		typeArgs = []string{}
	}
	var built struct {
		TxBytes string `json:"txBytes"`
	}
	err := e.Client.Call(ctx, "unsafe_moveCall", []any{
		e.Key.Address(),
		e.Cfg.PackageID,
		e.module(),
		function,
		typeArgs,
		args,
		nil, // let the node pick a gas object
		e.gasBudget(),
	}, &built)
	if err != nil {
		return txBlockResponse{}, e.classify(function, err)
	}
	raw, err := base64.StdEncoding.DecodeString(built.TxBytes)
	if err != nil {
		return txBlockResponse{}, Result{Code: FailureUnknown, Reason: "node returned undecodable tx bytes"}
	}

	var executed txBlockResponse
	err = e.Client.Call(ctx, "sui_executeTransactionBlock", []any{
		built.TxBytes,
		[]string{e.signTransaction(raw)},
		map[string]any{"showEffects": true, "showObjectChanges": true},
		"WaitForLocalExecution",
	}, &executed)
	if err != nil {
		return txBlockResponse{}, e.classify(function, err)
	}
	if executed.Effects == nil {
		return txBlockResponse{}, Result{Code: FailureUnknown, Reason: "execution response missing effects"}
	}
	if executed.Effects.Status.Status != "success" {
		return txBlockResponse{}, Result{
			Code:   FailureRejected,
			Reason: executed.Effects.Status.Error,
		}
	}
	return executed, Result{Success: true, TxRef: executed.Digest}
}

// classify maps transport and RPC failures onto the failure taxonomy.
func (e *Executor) classify(function string, err error) Result {
	reason := err.Error()

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Result{Code: FailureNetwork, Reason: reason}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return Result{Code: FailureNetwork, Reason: reason}
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Status >= 500 || httpErr.Status == 429 {
			return Result{Code: FailureNetwork, Reason: reason}
		}
		return Result{Code: FailureUnknown, Reason: reason}
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		msg := strings.ToLower(rpcErr.Message)
		if strings.Contains(msg, "moveabort") ||
			strings.Contains(msg, "abort") ||
			strings.Contains(msg, "insufficient") ||
			strings.Contains(msg, "invalidgas") {
			return Result{Code: FailureRejected, Reason: rpcErr.Message}
		}
		if e.Logger != nil {
			e.Logger.Error("unclassified rpc failure",
				zap.String("function", function),
				zap.Int("code", rpcErr.Code),
				zap.String("message", rpcErr.Message),
			)
		}
		return Result{Code: FailureUnknown, Reason: rpcErr.Message}
	}
	if e.Logger != nil {
		e.Logger.Error("unclassified chain failure", zap.String("function", function), zap.Error(err))
	}
	return Result{Code: FailureUnknown, Reason: reason}
}

func (e *Executor) baseUnitsArg(currency models.Currency, amount decimal.Decimal) (string, error) {
	units, err := currency.BaseUnits(amount)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(units, 10), nil
}

// PlaceBet submits the on-chain place call for an accepted wager and returns
// the created bet object reference on success.
func (e *Executor) PlaceBet(ctx context.Context, currency models.Currency, bettor, eventID, prediction string, stake, odds decimal.Decimal) Result {
	platform, pre := e.preflight(currency)
	if pre != nil {
		return *pre
	}
	stakeArg, err := e.baseUnitsArg(currency, stake)
	if err != nil {
		return Result{Code: FailureRejected, Reason: err.Error()}
	}
	oddsBps := odds.Mul(decimal.NewFromInt(10_000)).Floor().String()

	executed, res := e.moveCall(ctx, "place_bet",
		[]string{platform.CoinType},
		[]any{platform.ObjectID, e.Cfg.AdminCapID, bettor, eventID, prediction, stakeArg, oddsBps},
	)
	if !res.Success {
		return res
	}
	suffix := "::" + e.module() + "::Bet"
	for _, change := range executed.ObjectChanges {
		if change.Type == "created" && strings.HasSuffix(change.ObjectType, suffix) {
			res.ObjectRef = change.ObjectID
			break
		}
	}
	return res
}

// Settle invokes the contract settlement entry point, which pays the bettor
// automatically when won and otherwise retains the stake in treasury.
func (e *Executor) Settle(ctx context.Context, currency models.Currency, betObjectRef string, won bool) Result {
	platform, pre := e.preflight(currency)
	if pre != nil {
		return *pre
	}
	_, res := e.moveCall(ctx, "settle_bet",
		[]string{platform.CoinType},
		[]any{platform.ObjectID, e.Cfg.AdminCapID, betObjectRef, won},
	)
	return res
}

// Void invokes the refund entry point.
func (e *Executor) Void(ctx context.Context, currency models.Currency, betObjectRef string) Result {
	platform, pre := e.preflight(currency)
	if pre != nil {
		return *pre
	}
	_, res := e.moveCall(ctx, "void_bet",
		[]string{platform.CoinType},
		[]any{platform.ObjectID, e.Cfg.AdminCapID, betObjectRef},
	)
	return res
}

// CashOut settles a bet early at the supplied value.
func (e *Executor) CashOut(ctx context.Context, currency models.Currency, betObjectRef string, value decimal.Decimal) Result {
	platform, pre := e.preflight(currency)
	if pre != nil {
		return *pre
	}
	valueArg, err := e.baseUnitsArg(currency, value)
	if err != nil {
		return Result{Code: FailureRejected, Reason: err.Error()}
	}
	_, res := e.moveCall(ctx, "cash_out",
		[]string{platform.CoinType},
		[]any{platform.ObjectID, e.Cfg.AdminCapID, betObjectRef, valueArg},
	)
	return res
}

// WithdrawFees moves accrued fees from the treasury to the operator wallet.
// The amount is converted to base units by truncation, never rounded up.
func (e *Executor) WithdrawFees(ctx context.Context, currency models.Currency, amount decimal.Decimal) Result {
	platform, pre := e.preflight(currency)
	if pre != nil {
		return *pre
	}
	amountArg, err := e.baseUnitsArg(currency, amount)
	if err != nil {
		return Result{Code: FailureRejected, Reason: err.Error()}
	}
	_, res := e.moveCall(ctx, "withdraw_fees",
		[]string{platform.CoinType},
		[]any{platform.ObjectID, e.Cfg.AdminCapID, amountArg},
	)
	return res
}

// Payout is the direct transfer fallback for legacy bets with no on-chain
// object to settle against.
func (e *Executor) Payout(ctx context.Context, currency models.Currency, recipient string, amount decimal.Decimal) Result {
	platform, pre := e.preflight(currency)
	if pre != nil {
		return *pre
	}
	amountArg, err := e.baseUnitsArg(currency, amount)
	if err != nil {
		return Result{Code: FailureRejected, Reason: err.Error()}
	}
	_, res := e.moveCall(ctx, "operator_payout",
		[]string{platform.CoinType},
		[]any{platform.ObjectID, e.Cfg.AdminCapID, recipient, amountArg},
	)
	return res
}

// VerifyTransaction polls the chain for a submitted transaction's effects,
// used to upgrade a bet from submitted to confirmed.
func (e *Executor) VerifyTransaction(ctx context.Context, digest string) (TxFinality, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout())
	defer cancel()

	var block txBlockResponse
	err := e.Client.Call(ctx, "sui_getTransactionBlock", []any{
		digest,
		map[string]any{"showEffects": true},
	}, &block)
	if err != nil {
		return TxFinality{}, err
	}
	fin := TxFinality{
		Digest:     block.Digest,
		Checkpoint: block.Checkpoint,
	}
	if block.Effects != nil {
		fin.Status = block.Effects.Status.Status
		fin.Error = block.Effects.Status.Error
		fin.Confirmed = block.Effects.Status.Status == "success" && block.Checkpoint != nil
	}
	return fin, nil
}

// GetPlatformState fetches the read-only treasury snapshot for one currency.
func (e *Executor) GetPlatformState(ctx context.Context, currency models.Currency) (models.TreasuryState, error) {
	platform, ok := e.Cfg.Platforms[currency]
	if !ok || platform.ObjectID == "" {
		return models.TreasuryState{}, fmt.Errorf("no platform object configured for %s", currency)
	}
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout())
	defer cancel()

	var resp objectResponse
	err := e.Client.Call(ctx, "sui_getObject", []any{
		platform.ObjectID,
		map[string]any{"showContent": true},
	}, &resp)
	if err != nil {
		return models.TreasuryState{}, err
	}
	return parsePlatformState(resp, currency, time.Now().UTC())
}
