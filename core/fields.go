package core

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// FieldSize is the byte length of a serialized BN254 scalar.
const FieldSize = 32

// A Field is an element of the BN254 scalar field, the native field of the
// Noir circuits. Fields are exchanged with nargo and bb as 0x-prefixed,
// zero-padded 32-byte hex strings.
type Field struct {
	e fr.Element
}

func NewField(v uint64) Field {
	var f Field
	f.e.SetUint64(v)
	return f
}

// FieldFromBigInt fails if v is negative or not below the field modulus.
func FieldFromBigInt(v *big.Int) (Field, error) {
	var f Field
	if v.Sign() < 0 {
		return f, fmt.Errorf("negative field value %s", v.String())
	}
	if v.Cmp(fr.Modulus()) >= 0 {
		return f, fmt.Errorf("value %s exceeds the BN254 scalar field", v.String())
	}
	f.e.SetBigInt(v)
	return f, nil
}

// ParseField accepts decimal strings or 0x-prefixed hex strings.
func ParseField(s string) (Field, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Field{}, fmt.Errorf("empty field value")
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return Field{}, fmt.Errorf("invalid field value %q", s)
	}
	return FieldFromBigInt(v)
}

func MustParseField(s string) Field {
	f, err := ParseField(s)
	if err != nil {
		panic(err)
	}
	return f
}

// FieldFromBytes interprets buf as a big-endian integer of at most 32 bytes.
func FieldFromBytes(buf []byte) (Field, error) {
	if len(buf) > FieldSize {
		return Field{}, fmt.Errorf("field chunk is %d bytes, expected at most %d", len(buf), FieldSize)
	}
	return FieldFromBigInt(new(big.Int).SetBytes(buf))
}

func (f Field) Bytes() [FieldSize]byte {
	return f.e.Bytes()
}

func (f Field) BigInt() *big.Int {
	return f.e.BigInt(new(big.Int))
}

func (f Field) IsZero() bool {
	return f.e.IsZero()
}

func (f Field) Equal(other Field) bool {
	return f.e.Equal(&other.e)
}

// Hex renders the field the way bb writes proof_fields.json.
func (f Field) Hex() string {
	b := f.Bytes()
	return "0x" + hex.EncodeToString(b[:])
}

// Decimal renders the field the way Semaphore proofs carry roots and nullifiers.
func (f Field) Decimal() string {
	return f.BigInt().String()
}

func (f Field) String() string {
	return f.Hex()
}

func (f Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Hex())
}

func (f *Field) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseField(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MarshalText lets fields appear directly in Prover TOML files.
func (f Field) MarshalText() ([]byte, error) {
	return []byte(f.Hex()), nil
}

func (f *Field) UnmarshalText(text []byte) error {
	parsed, err := ParseField(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// DeflattenFields splits a flat proof buffer into 32-byte field chunks.
func DeflattenFields(buf []byte) ([]Field, error) {
	fields := make([]Field, 0, (len(buf)+FieldSize-1)/FieldSize)
	for i := 0; i < len(buf); i += FieldSize {
		end := i + FieldSize
		if end > len(buf) {
			end = len(buf)
		}
		f, err := FieldFromBytes(buf[i:end])
		if err != nil {
			return nil, fmt.Errorf("proof chunk %d: %w", i/FieldSize, err)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// FlattenFields concatenates fields into a flat buffer, 32 bytes per field.
func FlattenFields(fields []Field) []byte {
	buf := make([]byte, 0, len(fields)*FieldSize)
	for _, f := range fields {
		b := f.Bytes()
		buf = append(buf, b[:]...)
	}
	return buf
}

func ParseFields(values []string) ([]Field, error) {
	fields := make([]Field, len(values))
	for i, v := range values {
		f, err := ParseField(v)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		fields[i] = f
	}
	return fields, nil
}

func FieldsToHex(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Hex()
	}
	return out
}

// CloneFields copies a field slice so callers cannot alias proof data.
func CloneFields(fields []Field) []Field {
	if fields == nil {
		return nil
	}
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}
