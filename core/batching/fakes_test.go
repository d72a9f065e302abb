package batching

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/liamzebedee/noirbatch-go/core"
	"github.com/liamzebedee/noirbatch-go/core/bb"
	"github.com/liamzebedee/noirbatch-go/core/nargo"
	"github.com/liamzebedee/noirbatch-go/core/semaphore"
	"github.com/stretchr/testify/require"
)

// The fakes below stand in for nargo and bb. The "circuits" check what the
// real ones would: a Semaphore proof is valid when its proof field signs its
// public inputs, and a batch proof is valid when both of its inputs were
// valid and were checked against the vk matching their origin.

var (
	testSemaphoreVK = []core.Field{core.NewField(101), core.NewField(102)}
	testLeavesVK    = []core.Field{core.NewField(201), core.NewField(202)}
	testNodesVK     = []core.Field{core.NewField(301), core.NewField(302)}
)

const (
	tagLeaves = 1
	tagNodes  = 2
)

func sign(t *testing.T, publicInputs []core.Field) core.Field {
	sig, err := core.HashPoseidon(publicInputs...)
	require.NoError(t, err)
	return sig
}

func makeProof(t *testing.T, i, depth int) semaphore.Proof {
	p := semaphore.Proof{
		MerkleTreeDepth: depth,
		MerkleTreeRoot:  "12345",
		Nullifier:       fmt.Sprintf("%d", 1000+i),
		Message:         fmt.Sprintf("%d", i),
		Scope:           "7",
	}
	publicInputs, err := p.PublicInputs()
	require.NoError(t, err)
	p.ProofBytes = core.FlattenFields([]core.Field{sign(t, publicInputs)})
	return p
}

func makeProofs(t *testing.T, n, depth int) []semaphore.Proof {
	proofs := make([]semaphore.Proof, n)
	for i := range proofs {
		proofs[i] = makeProof(t, i, depth)
	}
	return proofs
}

type fakeWitness struct {
	calls int
}

func (w *fakeWitness) GenerateWitness(ctx context.Context, c nargo.Circuit, inputs any, witnessPath string) error {
	w.calls++
	data, err := json.Marshal(inputs)
	if err != nil {
		return err
	}
	return os.WriteFile(witnessPath, data, 0644)
}

type fakeProver struct {
	t          *testing.T
	leavesPath string
	calls      []bb.ProveArgs
	// failAt makes the nth call (1-based) fail.
	failAt int
}

func fieldsEqual(a, b []core.Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Batch proof layout: [output, valid, tag, output].
func (p *fakeProver) Prove(ctx context.Context, args bb.ProveArgs) error {
	p.calls = append(p.calls, args)
	if p.failAt == len(p.calls) {
		return &bb.ProverInvocationError{Args: args.Args(), ExitCode: 1, Stderr: "fake prover failure"}
	}

	data, err := os.ReadFile(args.Witness)
	if err != nil {
		return err
	}

	valid := true
	var outputs []core.Field
	tag := tagNodes
	if args.Circuit == p.leavesPath {
		tag = tagLeaves
		var in leavesInputs
		if err := json.Unmarshal(data, &in); err != nil {
			return err
		}
		for _, sp := range in.SP {
			ok := fieldsEqual(sp.VerificationKey, testSemaphoreVK) &&
				len(sp.Proof) == 1 && sp.Proof[0].Equal(sign(p.t, sp.PublicInputs))
			valid = valid && ok
			outputs = append(outputs, sp.PublicInputs...)
		}
	} else {
		var in nodesInputs
		if err := json.Unmarshal(data, &in); err != nil {
			return err
		}
		for _, bp := range in.BP {
			wantVK := testNodesVK
			if bp.Proof[1].Equal(core.NewField(tagLeaves)) {
				wantVK = testLeavesVK
			}
			ok := bp.Proof[0].Equal(core.NewField(1)) &&
				fieldsEqual(bp.VerificationKey, wantVK) &&
				bp.Proof[2].Equal(bp.PublicInputsHash)
			valid = valid && ok
			outputs = append(outputs, bp.PublicInputsHash)
		}
	}

	output := sign(p.t, outputs)
	marker := core.NewField(0)
	if valid {
		marker = core.NewField(1)
	}
	fields := []core.Field{output, marker, core.NewField(uint64(tag)), output}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(args.OutDir, bb.ProofFieldsFile), encoded, 0644); err != nil {
		return err
	}

	proof := fmt.Sprintf("valid=%t oracle=%s", valid, args.OracleHash)
	return os.WriteFile(filepath.Join(args.OutDir, bb.ProofFile), []byte(proof), 0644)
}

type fakeVerifier struct {
	calls int
}

func (v *fakeVerifier) Verify(ctx context.Context, args bb.VerifyArgs) (bool, error) {
	v.calls++
	data, err := os.ReadFile(args.Proof)
	if err != nil {
		return false, &bb.VerifierInvocationError{Args: args.Args(), Err: err}
	}
	want := fmt.Sprintf("valid=true oracle=%s", args.OracleHash)
	return string(data) == want, nil
}

type harness struct {
	cfg      Config
	witness  *fakeWitness
	prover   *fakeProver
	verifier *fakeVerifier
	batcher  *Batcher
}

func newHarness(t *testing.T) *harness {
	leaves, nodes := CircuitsFromDir("/circuits")
	cfg := DefaultConfig()
	cfg.LeavesCircuit = leaves
	cfg.NodesCircuit = nodes
	cfg.Keys = Keys{Semaphore: testSemaphoreVK, Leaves: testLeavesVK, Nodes: testNodesVK}
	cfg.WorkDir = t.TempDir()

	h := &harness{
		cfg:      cfg,
		witness:  &fakeWitness{},
		prover:   &fakeProver{t: t, leavesPath: leaves.ArtifactPath()},
		verifier: &fakeVerifier{},
	}
	h.batcher = NewBatcher(cfg, h.witness, h.prover)
	return h
}

func (h *harness) verify(t *testing.T, r *Result) bool {
	valid, err := VerifyResult(context.Background(), h.verifier, r, "/keys/nodes/vk")
	require.NoError(t, err)
	return valid
}

func nodeInputsFor(t *testing.T, h *harness, call int) nodesInputs {
	data, err := os.ReadFile(h.prover.calls[call].Witness)
	require.NoError(t, err)
	var in nodesInputs
	require.NoError(t, json.Unmarshal(data, &in))
	return in
}
