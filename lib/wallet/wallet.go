// Package wallet implements validation and normalization of end-user wallet addresses for the supported chains.
// Validation is a pure function: it performs no I/O and either yields the canonical form of the address for its
// chain or an error.
package wallet

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"
)

// ChainType identifies the chain an address belongs to.
type ChainType string

// Supported chain types.
const (
	Arweave ChainType = "arweave"
	EVM     ChainType = "evm"
	Solana  ChainType = "solana"
)

// Errors returned by Normalize.
var (
	ErrUnknownFormat = errors.New("address does not match any supported chain format")
	ErrChecksum      = errors.New("EVM address checksum mismatch")
)

const (
	arweaveAddrLen = 43 // base64url encoding of a 32-byte hash
	pubKeyLen      = 32 // solana ed25519 public key and arweave address hash
)

// Wallet holds a validated address in the canonical representation of its chain.
type Wallet struct {
	Type    ChainType `json:"type"`
	Address string    `json:"address"`
}

// Normalize classifies a raw address string and returns its canonical form. Formats are tried in a fixed order:
// EVM (the 0x prefix is unambiguous), then arweave, then solana. A mixed-case EVM address is treated as an
// asserted checksum and must match the canonical checksummed encoding exactly; single-case input is re-cased to
// the canonical form.
func Normalize(raw string) (Wallet, error) {
	// IsHexAddress alone also accepts bare 40-digit strings; the EVM format requires the 0x prefix
	if strings.HasPrefix(raw, "0x") && common.IsHexAddress(raw) {
		canonical, err := normalizeEVM(raw)
		if err != nil {
			return Wallet{}, err
		}

		return Wallet{Type: EVM, Address: canonical}, nil
	}

	if len(raw) == arweaveAddrLen {
		if b, err := base64.RawURLEncoding.DecodeString(raw); err == nil && len(b) == pubKeyLen {
			return Wallet{Type: Arweave, Address: raw}, nil
		}
	}

	if b := base58.Decode(raw); len(b) == pubKeyLen {
		return Wallet{Type: Solana, Address: raw}, nil
	}

	return Wallet{}, fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
}

// normalizeEVM re-encodes a hex address to its checksummed form, verifying the checksum first when the input
// asserts one by mixing letter case.
func normalizeEVM(raw string) (string, error) {
	canonical := common.HexToAddress(raw).Hex()

	if mixedCase(raw[2:]) && raw != canonical {
		return "", fmt.Errorf("%w: got %s want %s", ErrChecksum, raw, canonical)
	}

	return canonical, nil
}

// mixedCase reports whether the hex digits contain both upper and lower case letters.
func mixedCase(hexDigits string) bool {
	var upper, lower bool

	for _, c := range hexDigits {
		switch {
		case c >= 'A' && c <= 'F':
			upper = true
		case c >= 'a' && c <= 'f':
			lower = true
		}
	}

	return upper && lower
}
