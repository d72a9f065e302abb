package core

import (
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/iden3/go-iden3-crypto/keccak256"
	"github.com/iden3/go-iden3-crypto/poseidon"
)

// SemaphoreHash hashes a value into the scalar field the way Semaphore does for
// scopes and messages: keccak256 of the 32-byte big-endian encoding, shifted
// right by 8 bits so the result always fits below 2^248.
func SemaphoreHash(v *big.Int) (Field, error) {
	if v.Sign() < 0 || v.BitLen() > 256 {
		return Field{}, fmt.Errorf("value %s does not fit in 32 bytes", v.String())
	}
	buf := make([]byte, 32)
	v.FillBytes(buf)
	digest := new(big.Int).SetBytes(keccak256.Hash(buf))
	return FieldFromBigInt(digest.Rsh(digest, 8))
}

// HashPoseidon is the circomlib-compatible Poseidon hash over BN254, used for
// identity commitments, nullifiers and group nodes.
func HashPoseidon(inputs ...Field) (Field, error) {
	ints := make([]*big.Int, len(inputs))
	for i, in := range inputs {
		ints[i] = in.BigInt()
	}
	out, err := poseidon.Hash(ints)
	if err != nil {
		return Field{}, err
	}
	return FieldFromBigInt(out)
}

// ToBigInt converts a Semaphore message or scope into an integer.
// Decimal and 0x-hex strings are read as numbers. Anything else is treated as
// text and encoded as a right-padded bytes32 string (at most 31 bytes).
func ToBigInt(value string) (*big.Int, error) {
	if v, ok := parseInteger(value); ok {
		if v.Sign() < 0 {
			return nil, fmt.Errorf("negative value %s cannot be hashed", value)
		}
		return v, nil
	}
	if !utf8.ValidString(value) {
		return nil, fmt.Errorf("value is not valid UTF-8")
	}
	if len(value) > 31 {
		return nil, fmt.Errorf("string %q is too long to encode as bytes32", value)
	}
	buf := make([]byte, 32)
	copy(buf, value)
	return new(big.Int).SetBytes(buf), nil
}

func parseInteger(value string) (*big.Int, bool) {
	if value == "" {
		return nil, false
	}
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return new(big.Int).SetString(value[2:], 16)
	}
	if value[0] == '-' {
		return new(big.Int).SetString(value, 10)
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return nil, false
		}
	}
	return new(big.Int).SetString(value, 10)
}
