package chains

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/btcsuite/btcutil/bech32"
	gethcommon "github.com/ethereum/go-ethereum/common"
)

// AddressFamily is the closed set of payout address formats the engine understands.
type AddressFamily string

const (
	AddressFamily_EVM    AddressFamily = "evm"
	AddressFamily_Ripple AddressFamily = "ripple"
	AddressFamily_Base58 AddressFamily = "base58"
	AddressFamily_UTXO   AddressFamily = "utxo"
)

// KnownChainFamilies maps the chains the engine ships defaults for to their address
// family. Chains outside this map must declare a family in the seed file.
var KnownChainFamilies = map[string]AddressFamily{
	"ethereum":  AddressFamily_EVM,
	"bsc":       AddressFamily_EVM,
	"polygon":   AddressFamily_EVM,
	"arbitrum":  AddressFamily_EVM,
	"optimism":  AddressFamily_EVM,
	"base":      AddressFamily_EVM,
	"avalanche": AddressFamily_EVM,
	"xrp":       AddressFamily_Ripple,
	"solana":    AddressFamily_Base58,
	"bitcoin":   AddressFamily_UTXO,
}

// AddressValidator returns nil for a well formed address, or an error whose message
// is the human readable rejection reason.
type AddressValidator func(address string) error

var validators = map[AddressFamily]AddressValidator{
	AddressFamily_EVM:    validateEvmAddress,
	AddressFamily_Ripple: validateRippleAddress,
	AddressFamily_Base58: validateBase58Address,
	AddressFamily_UTXO:   validateUtxoAddress,
}

func (f AddressFamily) IsKnown() bool {
	_, ok := validators[f]
	return ok
}

type InvalidAddressError struct {
	Family  AddressFamily
	Address string
	Reason  string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid %s address '%s': %s", e.Family, e.Address, e.Reason)
}

// ValidateAddress dispatches to the validator of the given family. An unknown family
// is always an error.
func ValidateAddress(family AddressFamily, address string) error {
	validator, ok := validators[family]
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrUnknownAddressFamily, family)
	}
	if err := validator(address); err != nil {
		return &InvalidAddressError{Family: family, Address: address, Reason: err.Error()}
	}
	return nil
}

// FamilyForChain resolves a chain name through KnownChainFamilies.
func FamilyForChain(chain string) (AddressFamily, error) {
	family, ok := KnownChainFamilies[strings.ToLower(chain)]
	if !ok {
		return "", fmt.Errorf("%w: '%s'", ErrUnknownChain, chain)
	}
	return family, nil
}

func validateEvmAddress(address string) error {
	if !strings.HasPrefix(address, "0x") {
		return fmt.Errorf("must start with 0x")
	}
	if len(address) != 42 {
		return fmt.Errorf("must be 0x followed by 40 hex characters, got %d", len(address)-2)
	}
	if !gethcommon.IsHexAddress(address) {
		return fmt.Errorf("contains non-hex characters")
	}
	body := address[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		// mixed case means EIP-55 checksummed
		if gethcommon.HexToAddress(address).Hex() != address {
			return fmt.Errorf("EIP-55 checksum mismatch")
		}
	}
	return nil
}

const rippleAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

func validateRippleAddress(address string) error {
	if !strings.HasPrefix(address, "r") {
		return fmt.Errorf("must start with 'r'")
	}
	if len(address) < 25 || len(address) > 35 {
		return fmt.Errorf("length must be between 25 and 35 characters, got %d", len(address))
	}
	for i, c := range address {
		if !strings.ContainsRune(rippleAlphabet, c) {
			return fmt.Errorf("invalid character '%c' at position %d", c, i)
		}
	}
	return nil
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

func firstNonBase58(address string) (rune, int, bool) {
	for i, c := range address {
		if !strings.ContainsRune(base58Alphabet, c) {
			return c, i, true
		}
	}
	return 0, 0, false
}

func validateBase58Address(address string) error {
	if len(address) < 32 || len(address) > 44 {
		return fmt.Errorf("length must be between 32 and 44 characters, got %d", len(address))
	}
	if c, i, found := firstNonBase58(address); found {
		return fmt.Errorf("invalid base58 character '%c' at position %d", c, i)
	}
	if decoded := base58.Decode(address); len(decoded) != 32 {
		return fmt.Errorf("must decode to a 32 byte public key, got %d bytes", len(decoded))
	}
	return nil
}

const (
	utxoPubKeyHashVersion byte = 0x00
	utxoScriptHashVersion byte = 0x05
)

func validateUtxoAddress(address string) error {
	lower := strings.ToLower(address)
	switch {
	case strings.HasPrefix(lower, "bc1"):
		return validateBech32UtxoAddress(address)
	case strings.HasPrefix(address, "1"), strings.HasPrefix(address, "3"):
		return validateLegacyUtxoAddress(address)
	default:
		return fmt.Errorf("must start with '1', '3' or 'bc1'")
	}
}

func validateLegacyUtxoAddress(address string) error {
	if len(address) < 26 || len(address) > 35 {
		return fmt.Errorf("legacy address length must be between 26 and 35 characters, got %d", len(address))
	}
	if c, i, found := firstNonBase58(address); found {
		return fmt.Errorf("invalid base58 character '%c' at position %d", c, i)
	}
	_, version, err := base58.CheckDecode(address)
	if err != nil {
		return fmt.Errorf("base58check decoding failed: %v", err)
	}
	expected := utxoPubKeyHashVersion
	if strings.HasPrefix(address, "3") {
		expected = utxoScriptHashVersion
	}
	if version != expected {
		return fmt.Errorf("unexpected version byte 0x%02x", version)
	}
	return nil
}

func validateBech32UtxoAddress(address string) error {
	if len(address) < 42 || len(address) > 62 {
		return fmt.Errorf("bech32 address length must be between 42 and 62 characters, got %d", len(address))
	}
	if address != strings.ToLower(address) && address != strings.ToUpper(address) {
		return fmt.Errorf("bech32 address must not mix upper and lower case")
	}
	lower := strings.ToLower(address)
	if strings.HasPrefix(lower, "bc1p") {
		// taproot uses the bech32m checksum which the decoder does not implement;
		// fall back to a charset check
		for i, c := range lower[4:] {
			if !strings.ContainsRune(bech32Charset, c) {
				return fmt.Errorf("invalid bech32 character '%c' at position %d", c, i+4)
			}
		}
		return nil
	}
	hrp, _, err := bech32.Decode(lower)
	if err != nil {
		return fmt.Errorf("bech32 decoding failed: %v", err)
	}
	if hrp != "bc" {
		return fmt.Errorf("unexpected human readable part '%s'", hrp)
	}
	return nil
}

const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"
