// Package keystore loads the operator signing key from its configured
// encoding and exposes a reusable signer handle. The raw secret is never
// logged or echoed into error messages.
package keystore

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

const (
	// bech32 human-readable prefix of wrapped Sui private keys.
	keyHRP = "suiprivkey"

	// ed25519 signature scheme flag, prefixed to public keys in address
	// derivation and to serialized transaction signatures.
	flagED25519 = 0x00

	seedSize = ed25519.SeedSize
)

// KeyFormatError reports secret material that does not reduce to a seed of
// the expected width.
type KeyFormatError struct {
	Length int
}

func (e *KeyFormatError) Error() string {
	return fmt.Sprintf("operator key decodes to %d bytes, want %d-byte seed", e.Length, seedSize)
}

// Signer holds the operator's ed25519 key material for the lifetime of the
// process.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	seed []byte
	addr string
}

// Load decodes configured secret material and returns a signer handle.
// Supported encodings: bech32-wrapped ("suiprivkey1..."), 0x-prefixed hex,
// and base64. An empty secret returns (nil, nil): an expected state that
// disables on-chain writes without failing the process.
func Load(secret string, logger *zap.Logger) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		if logger != nil {
			logger.Info("no operator key configured, on-chain writes disabled")
		}
		return nil, nil
	}

	raw, err := decode(secret)
	if err != nil {
		return nil, err
	}
	seed, err := normalizeSeed(raw)
	if err != nil {
		return nil, err
	}

	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	s := &Signer{
		priv: priv,
		pub:  pub,
		seed: seed,
		addr: deriveAddress(pub),
	}
	if logger != nil {
		logger.Info("operator key loaded",
			zap.String("address", s.addr),
			zap.Int("seed_bytes", len(seed)),
		)
	}
	return s, nil
}

func decode(secret string) ([]byte, error) {
	if strings.HasPrefix(secret, keyHRP+"1") {
		hrp, data, err := bech32.Decode(secret)
		if err != nil {
			return nil, fmt.Errorf("bech32 decode failed: %w", err)
		}
		if hrp != keyHRP {
			return nil, fmt.Errorf("unexpected bech32 prefix %q", hrp)
		}
		raw, err := bech32.ConvertBits(data, 5, 8, false)
		if err != nil {
			return nil, fmt.Errorf("bech32 regroup failed: %w", err)
		}
		return raw, nil
	}
	if strings.HasPrefix(secret, "0x") || strings.HasPrefix(secret, "0X") {
		raw, err := hex.DecodeString(secret[2:])
		if err != nil {
			return nil, fmt.Errorf("hex decode failed: %w", err)
		}
		return raw, nil
	}
	raw, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("base64 decode failed: %w", err)
	}
	return raw, nil
}

// normalizeSeed reduces decoded key bytes to the 32-byte seed: a leading
// scheme flag byte is stripped, and a trailing public-key suffix (expanded
// 64-byte private keys) is truncated.
func normalizeSeed(raw []byte) ([]byte, error) {
	switch len(raw) {
	case seedSize + 1, 2*seedSize + 1:
		raw = raw[1:]
	}
	if len(raw) == 2*seedSize {
		raw = raw[:seedSize]
	}
	if len(raw) != seedSize {
		return nil, &KeyFormatError{Length: len(raw)}
	}
	seed := make([]byte, seedSize)
	copy(seed, raw)
	return seed, nil
}

// deriveAddress computes the Sui address: blake2b-256 over the scheme flag
// followed by the public key.
func deriveAddress(pub ed25519.PublicKey) string {
	buf := make([]byte, 0, 1+len(pub))
	buf = append(buf, flagED25519)
	buf = append(buf, pub...)
	sum := blake2b.Sum256(buf)
	return "0x" + hex.EncodeToString(sum[:])
}

// Address is the derived public identity of the operator key.
func (s *Signer) Address() string {
	if s == nil {
		return ""
	}
	return s.addr
}

func (s *Signer) PublicKey() ed25519.PublicKey {
	if s == nil {
		return nil
	}
	return s.pub
}

// Seed is the raw 32-byte seed, used as the keyed-hash secret for settlement
// signatures. Callers must not log or persist it.
func (s *Signer) Seed() []byte {
	if s == nil {
		return nil
	}
	return s.seed
}

// Sign produces an ed25519 signature over msg.
func (s *Signer) Sign(msg []byte) []byte {
	if s == nil {
		return nil
	}
	return ed25519.Sign(s.priv, msg)
}
