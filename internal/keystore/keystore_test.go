package keystore

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func TestLoad_HexSeed(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	s, err := Load("0x"+hex.EncodeToString(seed), nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if s == nil {
		t.Fatalf("signer is nil")
	}
	if !strings.HasPrefix(s.Address(), "0x") || len(s.Address()) != 66 {
		t.Fatalf("address=%q", s.Address())
	}
}

func TestLoad_FlagPrefixStripped(t *testing.T) {
	// 33 bytes: scheme flag followed by the seed.
	raw := make([]byte, 33)
	for i := 1; i < len(raw); i++ {
		raw[i] = byte(i)
	}
	s, err := Load(base64.StdEncoding.EncodeToString(raw), nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got := len(s.Seed()); got != 32 {
		t.Fatalf("seed len=%d want 32", got)
	}
	if s.Seed()[0] != raw[1] {
		t.Fatalf("seed not aligned after flag strip")
	}
}

func TestLoad_ExpandedKeyTruncated(t *testing.T) {
	// 64 bytes: seed followed by a public-key suffix.
	raw := make([]byte, 64)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	s, err := Load(base64.StdEncoding.EncodeToString(raw), nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if s.Seed()[31] != raw[31] {
		t.Fatalf("seed not the leading 32 bytes")
	}
}

func TestLoad_ShortKeyFails(t *testing.T) {
	raw := make([]byte, 31)
	_, err := Load(base64.StdEncoding.EncodeToString(raw), nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	var kfe *KeyFormatError
	if !errors.As(err, &kfe) {
		t.Fatalf("err=%T want KeyFormatError", err)
	}
	if kfe.Length != 31 {
		t.Fatalf("length=%d want 31", kfe.Length)
	}
	if !strings.Contains(err.Error(), "31") {
		t.Fatalf("error %q does not name offending length", err)
	}
}

func TestLoad_EmptySecretIsNilSigner(t *testing.T) {
	s, err := Load("   ", nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if s != nil {
		t.Fatalf("expected nil signer")
	}
}

func TestLoad_GarbageFails(t *testing.T) {
	if _, err := Load("not-any-known-encoding!!", nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSigner_DeterministicAddress(t *testing.T) {
	seed := "0x" + strings.Repeat("ab", 32)
	a, err := Load(seed, nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	b, err := Load(seed, nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if a.Address() != b.Address() {
		t.Fatalf("address not deterministic: %q vs %q", a.Address(), b.Address())
	}
}
