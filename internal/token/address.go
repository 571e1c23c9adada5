package token

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address identifies an account on the ledger (20 bytes, hex-encoded on the wire).
type Address [20]byte

// ZeroAddress is the all-zero address. Mint entries use it as the source side
// and burn entries as the destination side in the entry log.
var ZeroAddress = Address{}

// ParseAddress decodes a 0x-prefixed (or bare) 40-char hex string.
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s) != 40 {
		return a, fmt.Errorf("address must be 20 hex bytes, got %d chars", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("decode address: %w", err)
	}
	copy(a[:], b)
	return a, nil
}

// MustParseAddress is ParseAddress that panics. Test helper.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// MarshalText implements encoding.TextMarshaler so addresses serialize as hex
// in JSON payloads and map keys.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
