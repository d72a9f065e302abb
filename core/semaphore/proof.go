// Package semaphore holds Semaphore Noir membership proofs and generates
// them in a form the batch circuits can recursively verify.
package semaphore

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/liamzebedee/noirbatch-go/core"
)

// PublicInputsCount is the number of public inputs of the Semaphore circuit:
// hashed scope, hashed message, tree root and nullifier.
const PublicInputsCount = 4

// HexBytes encodes as a 0x-prefixed hex string in JSON.
type HexBytes []byte

func (b HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal("0x" + hex.EncodeToString(b))
}

// UnmarshalJSON accepts a hex string or an array of byte values.
func (b *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
		buf, err := hex.DecodeString(s)
		if err != nil {
			return fmt.Errorf("invalid proof bytes: %w", err)
		}
		*b = buf
		return nil
	}

	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return fmt.Errorf("proof bytes must be a hex string or byte array")
	}
	arr := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("proof byte %d out of range: %d", i, v)
		}
		arr[i] = byte(v)
	}
	*b = arr
	return nil
}

// Proof is a Semaphore Noir membership proof. Root, nullifier, message and
// scope are decimal integer strings. ProofBytes is the flattened proof with
// the public inputs stripped.
type Proof struct {
	MerkleTreeDepth int      `json:"merkleTreeDepth"`
	MerkleTreeRoot  string   `json:"merkleTreeRoot"`
	Nullifier       string   `json:"nullifier"`
	Message         string   `json:"message"`
	Scope           string   `json:"scope"`
	ProofBytes      HexBytes `json:"proofBytes"`
}

// PublicInputs returns [hash(scope), hash(message), root, nullifier], the
// order in which the circuit exposes them.
func (p *Proof) PublicInputs() ([]core.Field, error) {
	scope, err := core.ToBigInt(p.Scope)
	if err != nil {
		return nil, fmt.Errorf("scope: %w", err)
	}
	message, err := core.ToBigInt(p.Message)
	if err != nil {
		return nil, fmt.Errorf("message: %w", err)
	}
	hashedScope, err := core.SemaphoreHash(scope)
	if err != nil {
		return nil, err
	}
	hashedMessage, err := core.SemaphoreHash(message)
	if err != nil {
		return nil, err
	}
	root, err := core.ParseField(p.MerkleTreeRoot)
	if err != nil {
		return nil, fmt.Errorf("merkle tree root: %w", err)
	}
	nullifier, err := core.ParseField(p.Nullifier)
	if err != nil {
		return nil, fmt.Errorf("nullifier: %w", err)
	}
	return []core.Field{hashedScope, hashedMessage, root, nullifier}, nil
}

// ProofFields splits ProofBytes into field elements.
func (p *Proof) ProofFields() ([]core.Field, error) {
	return core.DeflattenFields(p.ProofBytes)
}

func (p *Proof) Validate() error {
	if p.MerkleTreeDepth < core.MinDepth || p.MerkleTreeDepth > core.MaxDepth {
		return fmt.Errorf("the tree depth must be a number between %d and %d", core.MinDepth, core.MaxDepth)
	}
	if len(p.ProofBytes) == 0 {
		return fmt.Errorf("proof bytes are empty")
	}
	if len(p.ProofBytes)%core.FieldSize != 0 {
		return fmt.Errorf("proof bytes length %d is not a multiple of %d", len(p.ProofBytes), core.FieldSize)
	}
	return nil
}

// ReadProofs decodes a JSON array of proofs.
func ReadProofs(r io.Reader) ([]Proof, error) {
	var proofs []Proof
	if err := json.NewDecoder(r).Decode(&proofs); err != nil {
		return nil, fmt.Errorf("decoding proofs: %w", err)
	}
	return proofs, nil
}

func LoadProofsFile(path string) ([]Proof, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadProofs(f)
}

func WriteProofsFile(path string, proofs []Proof) error {
	data, err := json.MarshalIndent(proofs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
