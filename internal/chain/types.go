package chain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"suiwager/internal/models"
)

// DecodeError reports a platform object payload missing or mangling a field
// the engine depends on. Decoding fails closed: a zero fallback on a balance
// or liability field is financially dangerous.
type DecodeError struct {
	Field string
	Cause error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("platform object field %q: %v", e.Field, e.Cause)
	}
	return fmt.Sprintf("platform object field %q missing", e.Field)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// sui_getObject response envelope.
type objectResponse struct {
	Data  *objectData  `json:"data"`
	Error *objectError `json:"error"`
}

type objectError struct {
	Code     string `json:"code"`
	ObjectID string `json:"object_id"`
}

type objectData struct {
	ObjectID string       `json:"objectId"`
	Version  string       `json:"version"`
	Digest   string       `json:"digest"`
	Content  *moveContent `json:"content"`
}

type moveContent struct {
	DataType string                     `json:"dataType"`
	Type     string                     `json:"type"`
	Fields   map[string]json.RawMessage `json:"fields"`
}

// u64Field decodes a Move u64 (serialized as a JSON string) and scales it
// down to a decimal amount for the given currency.
func (m *moveContent) u64Field(name string, c models.Currency) (decimal.Decimal, error) {
	raw, ok := m.Fields[name]
	if !ok {
		return decimal.Zero, &DecodeError{Field: name}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return decimal.Zero, &DecodeError{Field: name, Cause: err}
	}
	units, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &DecodeError{Field: name, Cause: err}
	}
	return units.Shift(-c.Scale()), nil
}

func (m *moveContent) boolField(name string) (bool, error) {
	raw, ok := m.Fields[name]
	if !ok {
		return false, &DecodeError{Field: name}
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, &DecodeError{Field: name, Cause: err}
	}
	return b, nil
}

// parsePlatformState turns a fetched platform object into a TreasuryState
// snapshot. Every balance-bearing field is required.
func parsePlatformState(resp objectResponse, currency models.Currency, now time.Time) (models.TreasuryState, error) {
	if resp.Error != nil {
		return models.TreasuryState{}, fmt.Errorf("platform object fetch: %s (%s)", resp.Error.Code, resp.Error.ObjectID)
	}
	if resp.Data == nil || resp.Data.Content == nil || resp.Data.Content.Fields == nil {
		return models.TreasuryState{}, &DecodeError{Field: "content"}
	}
	content := resp.Data.Content

	st := models.TreasuryState{Currency: currency, FetchedAt: now}
	var err error
	if st.Balance, err = content.u64Field("balance", currency); err != nil {
		return models.TreasuryState{}, err
	}
	if st.TotalStaked, err = content.u64Field("total_staked", currency); err != nil {
		return models.TreasuryState{}, err
	}
	if st.Liability, err = content.u64Field("total_liability", currency); err != nil {
		return models.TreasuryState{}, err
	}
	if st.AccruedFees, err = content.u64Field("accrued_fees", currency); err != nil {
		return models.TreasuryState{}, err
	}
	if st.MinBet, err = content.u64Field("min_bet", currency); err != nil {
		return models.TreasuryState{}, err
	}
	if st.MaxBet, err = content.u64Field("max_bet", currency); err != nil {
		return models.TreasuryState{}, err
	}
	if st.Paused, err = content.boolField("paused"); err != nil {
		return models.TreasuryState{}, err
	}
	return st, nil
}

// Transaction execution / lookup shapes.

type executionStatus struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type txEffects struct {
	Status executionStatus `json:"status"`
}

type objectChange struct {
	Type       string `json:"type"`
	ObjectType string `json:"objectType"`
	ObjectID   string `json:"objectId"`
}

type txBlockResponse struct {
	Digest        string         `json:"digest"`
	Effects       *txEffects     `json:"effects"`
	ObjectChanges []objectChange `json:"objectChanges"`
	Checkpoint    *string        `json:"checkpoint"`
	TimestampMs   *string        `json:"timestampMs"`
}

// TxFinality is the normalized confirmation state of a submitted transaction.
type TxFinality struct {
	Digest     string  `json:"digest"`
	Confirmed  bool    `json:"confirmed"`
	Status     string  `json:"status"`
	Error      string  `json:"error,omitempty"`
	Checkpoint *string `json:"checkpoint,omitempty"`
}
