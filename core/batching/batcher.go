package batching

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/liamzebedee/noirbatch-go/core"
	"github.com/liamzebedee/noirbatch-go/core/bb"
	"github.com/liamzebedee/noirbatch-go/core/nargo"
	"github.com/liamzebedee/noirbatch-go/core/semaphore"
)

type WitnessGenerator interface {
	GenerateWitness(ctx context.Context, c nargo.Circuit, inputs any, witnessPath string) error
}

type Prover interface {
	Prove(ctx context.Context, args bb.ProveArgs) error
}

// leafInput is one entry of the leaves circuit `sp` input.
type leafInput struct {
	VerificationKey []core.Field `toml:"verification_key"`
	Proof           []core.Field `toml:"proof"`
	PublicInputs    []core.Field `toml:"public_inputs"`
	KeyHash         core.Field   `toml:"key_hash"`
}

type leavesInputs struct {
	SP []leafInput `toml:"sp"`
}

// nodeInput is one entry of the nodes circuit `bp` input.
type nodeInput struct {
	VerificationKey  []core.Field `toml:"verification_key"`
	Proof            []core.Field `toml:"proof"`
	KeyHash          core.Field   `toml:"key_hash"`
	PublicInputsHash core.Field   `toml:"public_inputs_hash"`
}

type nodesInputs struct {
	BP []nodeInput `toml:"bp"`
}

// Batcher runs the batch pipeline. Every witness and proof step is a blocking
// call; a batch runs strictly sequentially and aborts on the first failure.
type Batcher struct {
	cfg     Config
	witness WitnessGenerator
	prover  Prover

	log *log.Logger
}

func NewBatcher(cfg Config, witness WitnessGenerator, prover Prover) *Batcher {
	return &Batcher{
		cfg:     cfg,
		witness: witness,
		prover:  prover,
		log:     core.NewLogger("batch", ""),
	}
}

func (b *Batcher) Config() Config {
	return b.cfg
}

// WithKeccak returns a batcher that differs only in the final fold's oracle hash.
func (b *Batcher) WithKeccak(keccak bool) *Batcher {
	clone := *b
	clone.cfg.Keccak = keccak
	return &clone
}

// Batch folds proofs into a single root proof. All inputs are checked before
// the first subprocess starts. The returned Result.ProofPath is the root
// proof, verifiable with the nodes circuit vk.
func (b *Batcher) Batch(ctx context.Context, proofs []semaphore.Proof) (*Result, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	pairs, err := PairLeaves(proofs)
	if err != nil {
		return nil, err
	}

	result := &Result{
		LeafCount:       len(proofs),
		MerkleTreeDepth: proofs[0].MerkleTreeDepth,
		Keccak:          b.cfg.Keccak,
		SelfPairedIndex: -1,
	}
	if last := pairs[len(pairs)-1]; last.SelfPaired {
		if !b.cfg.AllowSelfPair {
			return nil, configErrorf("odd number of proofs (%d) and self-pairing is disabled", len(proofs))
		}
		result.SelfPaired = true
		result.SelfPairedIndex = last.Index
	}

	// Leaf public inputs are decoded up front so a bad proof fails before proving.
	publicInputs := make([][]core.Field, len(proofs))
	proofFields := make([][]core.Field, len(proofs))
	for i := range proofs {
		if publicInputs[i], err = proofs[i].PublicInputs(); err != nil {
			return nil, configErrorf("proof %d: %s", i, err)
		}
		if proofFields[i], err = proofs[i].ProofFields(); err != nil {
			return nil, configErrorf("proof %d: %s", i, err)
		}
	}

	dir, err := os.MkdirTemp(b.cfg.WorkDir, "semaphore_artifacts_")
	if err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	recursion := filepath.Join(dir, "recursion")
	if err := os.MkdirAll(recursion, 0755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	result.Dir = dir

	b.log.Printf("batching %d proofs depth=%d dir=%s\n", len(proofs), result.MerkleTreeDepth, color.HiBlueString(dir))

	leaves := make(Layer, 0, len(pairs))
	for _, pair := range pairs {
		right := pair.Index + 1
		if pair.SelfPaired {
			right = pair.Index
		}
		inputs := leavesInputs{SP: []leafInput{
			b.leafInput(proofFields[pair.Index], publicInputs[pair.Index]),
			b.leafInput(proofFields[right], publicInputs[right]),
		}}
		unit, err := b.fold(ctx, fold{
			circuit: b.cfg.LeavesCircuit,
			inputs:  inputs,
			witness: filepath.Join(recursion, fmt.Sprintf("witness_%d.gz", pair.Index)),
			outDir:  filepath.Join(recursion, fmt.Sprintf("leaves_%d", pair.Index)),
			origin:  LeafOrigin,
		})
		if err != nil {
			return nil, artifactsError(dir, err)
		}
		leaves = append(leaves, LayerEntry{Kind: Folded, Unit: unit})
	}
	result.Layers = append(result.Layers, leaves)

	current := leaves.Units()
	for layer := 1; len(current) > 1; layer++ {
		// The last fold of the batch is the only one proven for on-chain use.
		final := len(current) == 2

		next := make(Layer, 0, (len(current)+1)/2)
		for _, step := range PlanLayer(len(current)) {
			left := current[step.Left]
			if step.Promoted {
				b.log.Printf("layer %d: promoting unit %d\n", layer, step.Left)
				next = append(next, LayerEntry{Kind: Promoted, Unit: left})
				continue
			}
			right := current[step.Left+1]

			inputs := nodesInputs{BP: []nodeInput{
				b.nodeInput(left),
				b.nodeInput(right),
			}}
			f := fold{
				circuit: b.cfg.NodesCircuit,
				inputs:  inputs,
				witness: filepath.Join(recursion, fmt.Sprintf("witness_nodes_%d_%d.gz", layer, step.Left)),
				outDir:  filepath.Join(recursion, fmt.Sprintf("node_%d_%d", layer, step.Left)),
				origin:  NodeOrigin,
			}
			if final && b.cfg.Keccak {
				f.oracleHash = bb.OracleHashKeccak
			}
			unit, err := b.fold(ctx, f)
			if err != nil {
				return nil, artifactsError(dir, err)
			}
			next = append(next, LayerEntry{Kind: Folded, Unit: unit})
		}
		result.Layers = append(result.Layers, next)
		current = next.Units()
	}

	result.Root = current[0]
	result.ProofPath = result.Root.ProofPath()
	b.log.Printf("root proof %s\n", color.HiGreenString(result.ProofPath))
	return result, nil
}

func (b *Batcher) leafInput(proof, publicInputs []core.Field) leafInput {
	return leafInput{
		VerificationKey: b.cfg.Keys.Semaphore,
		Proof:           proof,
		PublicInputs:    publicInputs,
		KeyHash:         b.cfg.KeyHash,
	}
}

func (b *Batcher) nodeInput(u BatchUnit) nodeInput {
	return nodeInput{
		VerificationKey:  b.cfg.Keys.ForOrigin(u.Origin),
		Proof:            u.Proof.Proof,
		KeyHash:          b.cfg.KeyHash,
		PublicInputsHash: u.Proof.PublicInputs[0],
	}
}

type fold struct {
	circuit    nargo.Circuit
	inputs     any
	witness    string
	outDir     string
	origin     Origin
	oracleHash string
}

// fold generates the witness for one pair, proves it and reads back the unit.
func (b *Batcher) fold(ctx context.Context, f fold) (BatchUnit, error) {
	b.log.Printf("proving %s\n", color.HiYellowString(filepath.Base(f.outDir)))

	if err := b.witness.GenerateWitness(ctx, f.circuit, f.inputs, f.witness); err != nil {
		return BatchUnit{}, err
	}
	if err := os.MkdirAll(f.outDir, 0755); err != nil {
		return BatchUnit{}, fmt.Errorf("creating proof directory: %w", err)
	}
	err := b.prover.Prove(ctx, bb.ProveArgs{
		Circuit:      f.circuit.ArtifactPath(),
		Witness:      f.witness,
		OutDir:       f.outDir,
		OutputFormat: bb.OutputBytesAndFields,
		Recursive:    true,
		OracleHash:   f.oracleHash,
	})
	if err != nil {
		return BatchUnit{}, err
	}

	fields, err := bb.ReadProofFields(f.outDir)
	if err != nil {
		return BatchUnit{}, fmt.Errorf("reading %s: %w", filepath.Base(f.outDir), err)
	}
	proof, err := batchProofFromFields(fields)
	if err != nil {
		return BatchUnit{}, err
	}
	return BatchUnit{Proof: proof, Origin: f.origin, Dir: f.outDir}, nil
}
