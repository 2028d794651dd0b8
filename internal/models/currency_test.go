package models

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestBaseUnits_TruncatesSubUnitFraction(t *testing.T) {
	units, err := SUI.BaseUnits(decimal.RequireFromString("0.6649999999"))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if units != 664999999 {
		t.Fatalf("units=%d want 664999999", units)
	}

	units, err = USDC.BaseUnits(decimal.RequireFromString("1.0000009"))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if units != 1000000 {
		t.Fatalf("units=%d want 1000000", units)
	}
}

func TestBaseUnits_RejectsNegative(t *testing.T) {
	if _, err := SUI.BaseUnits(decimal.RequireFromString("-0.1")); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

func TestBaseUnits_RejectsAmountBeyondUint64(t *testing.T) {
	// 2e13 USDC is 2e19 micro-units, past the 64-bit ceiling; wrapping it
	// would submit a small wrong amount the contract would accept.
	_, err := USDC.BaseUnits(decimal.RequireFromString("20000000000000"))
	if err == nil {
		t.Fatalf("expected error for amount beyond uint64")
	}
	if !strings.Contains(err.Error(), "64-bit") {
		t.Fatalf("err=%v", err)
	}
}
