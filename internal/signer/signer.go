// Package signer produces and checks signed settlement artifacts so that a
// compromised backend cannot forge settlement decisions.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"suiwager/internal/keystore"
	"suiwager/internal/models"
)

var (
	ErrNoSigner         = errors.New("no operator key configured")
	ErrNegativePayout   = errors.New("settlement payout is negative")
	ErrBadOutcome       = errors.New("settlement outcome is not won, lost or void")
	ErrEventNotFinished = errors.New("event is not finished")
)

// EventState is the external event result consumed from the odds
// collaborator.
type EventState struct {
	Finished bool   `json:"finished"`
	Result   string `json:"result"`
}

// SettlementSigner builds, signs and verifies settlement decisions with a
// keyed hash over a canonical field serialization.
type SettlementSigner struct {
	Key    *keystore.Signer
	Logger *zap.Logger

	// MaxPayoutMultiplier flags (but does not reject) payouts above
	// stake*multiplier for operator review. Zero disables the check.
	MaxPayoutMultiplier decimal.Decimal
}

// canonical serializes decision fields in a fixed order: bet id, event id,
// outcome, payout, timestamp. Changing this order invalidates every stored
// signature.
func canonical(d models.SettlementDecision) []byte {
	parts := []string{
		strconv.FormatUint(d.BetID, 10),
		d.EventID,
		string(d.Outcome),
		d.Payout.String(),
		strconv.FormatInt(d.DecidedAt.UTC().Unix(), 10),
	}
	return []byte(strings.Join(parts, "|"))
}

func (s *SettlementSigner) mac(d models.SettlementDecision) []byte {
	h := hmac.New(sha256.New, s.Key.Seed())
	h.Write(canonical(d))
	return h.Sum(nil)
}

// Sign returns the decision bundled with its hex-encoded digest and the
// signer's public identity. Verified starts false.
func (s *SettlementSigner) Sign(d models.SettlementDecision) (models.SignedSettlement, error) {
	if s == nil || s.Key == nil {
		return models.SignedSettlement{}, ErrNoSigner
	}
	return models.SignedSettlement{
		Decision:  d,
		Signature: hex.EncodeToString(s.mac(d)),
		SignedBy:  s.Key.Address(),
	}, nil
}

// Verify recomputes the keyed hash from signed.Decision and compares it to
// the supplied signature in constant time. A failure is a boolean, not an
// error: the caller refuses to act on the settlement.
func (s *SettlementSigner) Verify(signed models.SignedSettlement) bool {
	if s == nil || s.Key == nil {
		return false
	}
	supplied, err := hex.DecodeString(signed.Signature)
	if err != nil {
		return false
	}
	return hmac.Equal(supplied, s.mac(signed.Decision))
}

// Validate runs sanity checks on an unsigned decision against the external
// event state. Void settlements do not depend on event completion.
func (s *SettlementSigner) Validate(d models.SettlementDecision, stake decimal.Decimal, ev EventState) error {
	if d.Payout.IsNegative() {
		return ErrNegativePayout
	}
	if !d.Outcome.Valid() {
		return ErrBadOutcome
	}
	if d.Outcome != models.OutcomeVoid && !ev.Finished {
		return fmt.Errorf("%w: event %s", ErrEventNotFinished, d.EventID)
	}
	if s != nil && s.MaxPayoutMultiplier.IsPositive() && stake.IsPositive() {
		if d.Payout.GreaterThan(stake.Mul(s.MaxPayoutMultiplier)) && s.Logger != nil {
			s.Logger.Warn("settlement payout exceeds sanity multiplier, flagged for review",
				zap.Uint64("bet_id", d.BetID),
				zap.String("payout", d.Payout.String()),
				zap.String("stake", stake.String()),
				zap.String("max_multiplier", s.MaxPayoutMultiplier.String()),
			)
		}
	}
	return nil
}
