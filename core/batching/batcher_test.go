package batching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/liamzebedee/noirbatch-go/core/bb"
	"github.com/liamzebedee/noirbatch-go/core/nargo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchLayerCount(t *testing.T) {
	for n := 3; n <= 40; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			assert := assert.New(t)
			h := newHarness(t)

			result, err := h.batcher.Batch(context.Background(), makeProofs(t, n, 10))
			require.NoError(t, err)

			wantLayers := int(math.Ceil(math.Log2(float64(n))))
			assert.Len(result.Layers, wantLayers)
			assert.Len(result.Layers[len(result.Layers)-1], 1)
			assert.Equal(LayerSizes(n), layerSizes(result))

			// One fold per leaf pair and one per node pair.
			leafPairs := (n + 1) / 2
			assert.Equal(2*leafPairs-1, len(h.prover.calls))
			assert.Equal(len(h.prover.calls), result.ProverCalls())
			assert.Equal(len(h.prover.calls), h.witness.calls)

			assert.Equal(n%2 == 1, result.SelfPaired)
			assert.True(h.verify(t, result))
		})
	}
}

func layerSizes(r *Result) []int {
	sizes := make([]int, len(r.Layers))
	for i, l := range r.Layers {
		sizes[i] = len(l)
	}
	return sizes
}

func TestBatchOddSelfPairsLastProofOnce(t *testing.T) {
	assert := assert.New(t)
	h := newHarness(t)

	result, err := h.batcher.Batch(context.Background(), makeProofs(t, 5, 4))
	require.NoError(t, err)

	assert.True(result.SelfPaired)
	assert.Equal(4, result.SelfPairedIndex)
	assert.Len(result.Layers[0], 3)

	leafCalls := 0
	for _, call := range h.prover.calls {
		if call.Circuit == h.cfg.LeavesCircuit.ArtifactPath() {
			leafCalls++
		}
	}
	assert.Equal(3, leafCalls)
	assert.Equal(filepath.Join(result.Dir, "recursion", "leaves_4"), result.Layers[0][2].Unit.Dir)
}

func TestBatchEvenDoesNotSelfPair(t *testing.T) {
	h := newHarness(t)
	result, err := h.batcher.Batch(context.Background(), makeProofs(t, 6, 4))
	require.NoError(t, err)
	assert.False(t, result.SelfPaired)
	assert.Equal(t, -1, result.SelfPairedIndex)
}

func TestBatchRejectsTooFewProofs(t *testing.T) {
	for _, n := range []int{0, 1, 2} {
		h := newHarness(t)
		_, err := h.batcher.Batch(context.Background(), makeProofs(t, n, 4))

		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr), "n=%d", n)
		assert.Empty(t, h.prover.calls)
		assert.Zero(t, h.witness.calls)
	}
}

func TestBatchRejectsMismatchedDepth(t *testing.T) {
	h := newHarness(t)
	proofs := makeProofs(t, 4, 10)
	proofs[2] = makeProof(t, 2, 11)

	_, err := h.batcher.Batch(context.Background(), proofs)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "merkleTreeDepth")
	assert.Empty(t, h.prover.calls)
}

func TestBatchRejectsSelfPairWhenDisabled(t *testing.T) {
	h := newHarness(t)
	h.cfg.AllowSelfPair = false
	batcher := NewBatcher(h.cfg, h.witness, h.prover)

	_, err := batcher.Batch(context.Background(), makeProofs(t, 3, 4))
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Empty(t, h.prover.calls)

	_, err = batcher.Batch(context.Background(), makeProofs(t, 4, 4))
	assert.NoError(t, err)
}

func TestBatchRejectsMissingKeys(t *testing.T) {
	h := newHarness(t)
	h.cfg.Keys.Nodes = nil
	_, err := NewBatcher(h.cfg, h.witness, h.prover).Batch(context.Background(), makeProofs(t, 3, 4))

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Empty(t, h.prover.calls)
}

func TestBatchTamperedPublicInputFailsVerification(t *testing.T) {
	h := newHarness(t)
	proofs := makeProofs(t, 7, 4)
	proofs[3].Nullifier = "1004"

	result, err := h.batcher.Batch(context.Background(), proofs)
	require.NoError(t, err)
	assert.False(t, h.verify(t, result))
}

func TestVerifyIsRepeatable(t *testing.T) {
	h := newHarness(t)
	result, err := h.batcher.Batch(context.Background(), makeProofs(t, 3, 4))
	require.NoError(t, err)

	first := h.verify(t, result)
	second := h.verify(t, result)
	assert.True(t, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, h.verifier.calls)
}

func TestBatchKeccakOnlyOnFinalFold(t *testing.T) {
	for _, n := range []int{3, 5, 8, 11} {
		h := newHarness(t)
		result, err := h.batcher.WithKeccak(true).Batch(context.Background(), makeProofs(t, n, 4))
		require.NoError(t, err)

		calls := h.prover.calls
		for i, call := range calls[:len(calls)-1] {
			assert.Empty(t, call.OracleHash, "n=%d call %d", n, i)
		}
		final := calls[len(calls)-1]
		assert.Equal(t, bb.OracleHashKeccak, final.OracleHash)
		assert.Equal(t, filepath.Dir(result.ProofPath), final.OutDir)
		assert.True(t, result.Keccak)
		assert.True(t, h.verify(t, result))
	}
}

func TestBatchWithoutKeccak(t *testing.T) {
	h := newHarness(t)
	_, err := h.batcher.Batch(context.Background(), makeProofs(t, 4, 4))
	require.NoError(t, err)
	for _, call := range h.prover.calls {
		assert.Empty(t, call.OracleHash)
		assert.True(t, call.Recursive)
		assert.Equal(t, bb.OutputBytesAndFields, call.OutputFormat)
	}
}

func TestBatchNodeVKFollowsOrigin(t *testing.T) {
	assert := assert.New(t)
	h := newHarness(t)

	// 5 proofs: leaves [A B C], layer 1 folds A+B and promotes C (a leaf unit),
	// layer 2 folds a node unit with a leaf unit.
	result, err := h.batcher.Batch(context.Background(), makeProofs(t, 5, 4))
	require.NoError(t, err)

	require.Len(t, result.Layers, 3)
	assert.Equal(Promoted, result.Layers[1][1].Kind)
	assert.Equal(LeafOrigin, result.Layers[1][1].Unit.Origin)
	assert.Equal(NodeOrigin, result.Layers[1][0].Unit.Origin)
	assert.Equal(result.Layers[0][2].Unit, result.Layers[1][1].Unit)

	in := nodeInputsFor(t, h, len(h.prover.calls)-1)
	assert.Equal(testNodesVK, in.BP[0].VerificationKey)
	assert.Equal(testLeavesVK, in.BP[1].VerificationKey)
	assert.True(h.verify(t, result))
}

func TestBatchArtifactPaths(t *testing.T) {
	assert := assert.New(t)
	h := newHarness(t)

	result, err := h.batcher.Batch(context.Background(), makeProofs(t, 4, 4))
	require.NoError(t, err)

	recursion := filepath.Join(result.Dir, "recursion")
	calls := h.prover.calls
	require.Len(t, calls, 3)
	assert.Equal(filepath.Join(recursion, "witness_0.gz"), calls[0].Witness)
	assert.Equal(filepath.Join(recursion, "leaves_0"), calls[0].OutDir)
	assert.Equal(filepath.Join(recursion, "witness_2.gz"), calls[1].Witness)
	assert.Equal(filepath.Join(recursion, "leaves_2"), calls[1].OutDir)
	assert.Equal(filepath.Join(recursion, "witness_nodes_1_0.gz"), calls[2].Witness)
	assert.Equal(filepath.Join(recursion, "node_1_0"), calls[2].OutDir)
	assert.Equal(filepath.Join(recursion, "node_1_0", "proof"), result.ProofPath)
	assert.Equal("/circuits/batch_2_nodes/target/batch_2_nodes.json", calls[2].Circuit)
}

func TestBatchAbortsOnProverFailure(t *testing.T) {
	h := newHarness(t)
	h.prover.failAt = 2

	_, err := h.batcher.Batch(context.Background(), makeProofs(t, 6, 4))
	var proverErr *bb.ProverInvocationError
	require.True(t, errors.As(err, &proverErr))
	assert.Contains(t, err.Error(), "fake prover failure")
	assert.Len(t, h.prover.calls, 2)

	// The error names the artifacts left behind.
	dir := filepath.Dir(filepath.Dir(h.prover.calls[0].OutDir))
	assert.Contains(t, err.Error(), dir)
	assert.DirExists(t, dir)
}

func TestBatchRejectsArtifactOnlyCircuit(t *testing.T) {
	h := newHarness(t)
	h.cfg.NodesCircuit = nargo.Circuit{Name: NodesCircuitName, Artifact: "/circuits/batch_2_nodes.json"}
	_, err := NewBatcher(h.cfg, h.witness, h.prover).Batch(context.Background(), makeProofs(t, 3, 4))

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "nodes circuit")
	assert.Zero(t, h.witness.calls)
}
