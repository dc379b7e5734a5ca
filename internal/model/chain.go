package model

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/sha3"
)

// ErrInvalidAddress is returned for malformed chain addresses.
var ErrInvalidAddress = errors.New("invalid address")

// Chain identifies a supported blockchain.
type Chain string

const (
	// ChainTRX is the TRON network.
	ChainTRX Chain = "TRX"
	// ChainETH is the Ethereum mainnet.
	ChainETH Chain = "ETH"
)

// tronAddressVersion is the leading byte of every base58check TRON address.
const tronAddressVersion = 0x41

// ParseChain accepts case-insensitive chain names.
func ParseChain(s string) (Chain, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRX", "TRON":
		return ChainTRX, nil
	case "ETH", "ETHEREUM":
		return ChainETH, nil
	default:
		return "", fmt.Errorf("unsupported chain %q", s)
	}
}

// ValidateAddress checks that addr is well formed for chain.
//
// Ethereum addresses must be 0x-prefixed 20-byte hex; mixed-case input must
// carry a valid EIP-55 checksum. TRON addresses must be base58check with
// the 0x41 version byte.
func ValidateAddress(chain Chain, addr string) error {
	switch chain {
	case ChainETH:
		return validateEthAddress(addr)
	case ChainTRX:
		return validateTronAddress(addr)
	default:
		return fmt.Errorf("%w: unsupported chain %q", ErrInvalidAddress, chain)
	}
}

func validateEthAddress(addr string) error {
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return fmt.Errorf("%w: %q is not a 0x-prefixed 20-byte address", ErrInvalidAddress, addr)
	}
	body := addr[2:]
	if _, err := hex.DecodeString(body); err != nil {
		return fmt.Errorf("%w: %q is not hex", ErrInvalidAddress, addr)
	}
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return nil
	}
	if ChecksumEthAddress(addr) != "0x"+body {
		return fmt.Errorf("%w: %q fails EIP-55 checksum", ErrInvalidAddress, addr)
	}
	return nil
}

// ChecksumEthAddress returns the EIP-55 mixed-case form of a hex address.
func ChecksumEthAddress(addr string) string {
	body := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X"))
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(body))
	digest := h.Sum(nil)

	out := []byte(body)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out)
}

func validateTronAddress(addr string) error {
	if len(addr) != 34 || addr[0] != 'T' {
		return fmt.Errorf("%w: %q is not a base58 TRON address", ErrInvalidAddress, addr)
	}
	payload, version, err := base58.CheckDecode(addr)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAddress, addr, err)
	}
	if version != tronAddressVersion || len(payload) != 20 {
		return fmt.Errorf("%w: %q has unexpected version 0x%02x", ErrInvalidAddress, addr, version)
	}
	return nil
}
