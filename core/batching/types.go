// Package batching folds many Semaphore Noir proofs into one recursive batch
// proof. Pairs of membership proofs are verified by the leaves circuit, pairs
// of batch proofs by the nodes circuit, until a single root proof remains.
package batching

import (
	"path/filepath"

	"github.com/liamzebedee/noirbatch-go/core"
	"github.com/liamzebedee/noirbatch-go/core/bb"
)

// Origin records which circuit produced a unit, and so which verification
// key folds it further.
type Origin int

const (
	LeafOrigin Origin = iota
	NodeOrigin
)

func (o Origin) String() string {
	switch o {
	case LeafOrigin:
		return "leaf"
	case NodeOrigin:
		return "node"
	default:
		return "unknown"
	}
}

// BatchProof is the output of a batch circuit. PublicInputs has one element,
// the hash the circuit commits to over everything it verified.
type BatchProof struct {
	PublicInputs []core.Field `json:"publicInputs"`
	Proof        []core.Field `json:"proof"`
}

// batchProofFromFields splits proof_fields.json: the first field is the
// circuit output, the rest is the proof.
func batchProofFromFields(fields []core.Field) (BatchProof, error) {
	if len(fields) < 2 {
		return BatchProof{}, errShortProof(len(fields))
	}
	return BatchProof{
		PublicInputs: core.CloneFields(fields[:1]),
		Proof:        core.CloneFields(fields[1:]),
	}, nil
}

type BatchUnit struct {
	Proof  BatchProof `json:"proof"`
	Origin Origin     `json:"origin"`
	// Directory holding the proof artifacts bb wrote for this unit.
	Dir string `json:"dir"`
}

func (u BatchUnit) ProofPath() string {
	return filepath.Join(u.Dir, bb.ProofFile)
}

type EntryKind int

const (
	// Folded units were proven from a pair of units of the previous layer.
	Folded EntryKind = iota
	// Promoted units had no sibling and were carried up unchanged.
	Promoted
)

func (k EntryKind) String() string {
	if k == Promoted {
		return "promoted"
	}
	return "folded"
}

type LayerEntry struct {
	Kind EntryKind `json:"kind"`
	Unit BatchUnit `json:"unit"`
}

type Layer []LayerEntry

func (l Layer) Units() []BatchUnit {
	units := make([]BatchUnit, len(l))
	for i, e := range l {
		units[i] = e.Unit
	}
	return units
}

func (l Layer) Folds() int {
	n := 0
	for _, e := range l {
		if e.Kind == Folded {
			n++
		}
	}
	return n
}

// Result of a batch run. Layers[0] is the leaf layer and the last layer holds
// only the root.
type Result struct {
	Root      BatchUnit
	ProofPath string
	// Working directory holding all intermediate artifacts.
	Dir    string
	Layers []Layer

	LeafCount       int
	MerkleTreeDepth int
	Keccak          bool

	// SelfPaired is set when the input count was odd and the last proof was
	// paired with itself. SelfPairedIndex is its input index, or -1.
	SelfPaired      bool
	SelfPairedIndex int
}

// ProverCalls is the number of prover invocations the batch took.
func (r *Result) ProverCalls() int {
	n := 0
	for _, l := range r.Layers {
		n += l.Folds()
	}
	return n
}
