package batching

import (
	"github.com/liamzebedee/noirbatch-go/core/semaphore"
)

// A LeafPair is one leaves-circuit invocation. Index is the position of Left
// in the padded input list, which also names the pair's artifacts.
type LeafPair struct {
	Index      int
	Left       *semaphore.Proof
	Right      *semaphore.Proof
	SelfPaired bool
}

// PairLeaves checks that proofs can be batched and pairs them in order. With
// an odd count the last proof is paired with itself.
func PairLeaves(proofs []semaphore.Proof) ([]LeafPair, error) {
	if len(proofs) < MinProofs {
		return nil, configErrorf("at least three Semaphore proofs are required for batching, got %d", len(proofs))
	}

	depth := proofs[0].MerkleTreeDepth
	for i := range proofs {
		if proofs[i].MerkleTreeDepth != depth {
			return nil, configErrorf("all Semaphore proofs must have the same merkleTreeDepth: proof %d has depth %d, expected %d", i, proofs[i].MerkleTreeDepth, depth)
		}
		if err := proofs[i].Validate(); err != nil {
			return nil, configErrorf("proof %d: %s", i, err)
		}
	}

	pairs := make([]LeafPair, 0, (len(proofs)+1)/2)
	for i := 0; i < len(proofs); i += 2 {
		pair := LeafPair{Index: i, Left: &proofs[i]}
		if i+1 < len(proofs) {
			pair.Right = &proofs[i+1]
		} else {
			pair.Right = &proofs[i]
			pair.SelfPaired = true
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// A Step is one slot of the next layer: either a fold of units Left and
// Left+1, or the promotion of unit Left.
type Step struct {
	Left     int
	Promoted bool
}

// PlanLayer pairs n units of a layer. A trailing unit without a sibling is
// promoted.
func PlanLayer(n int) []Step {
	steps := make([]Step, 0, (n+1)/2)
	for i := 0; i < n; i += 2 {
		steps = append(steps, Step{Left: i, Promoted: i+1 >= n})
	}
	return steps
}

// LayerSizes returns the size of every layer for n input proofs, leaves
// first and root last.
func LayerSizes(n int) []int {
	if n < 1 {
		return nil
	}
	size := (n + 1) / 2
	sizes := []int{size}
	for size > 1 {
		size = (size + 1) / 2
		sizes = append(sizes, size)
	}
	return sizes
}
