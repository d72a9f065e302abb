package semaphore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/liamzebedee/noirbatch-go/core"
	"github.com/liamzebedee/noirbatch-go/core/bb"
	"github.com/liamzebedee/noirbatch-go/core/nargo"
)

type WitnessGenerator interface {
	GenerateWitness(ctx context.Context, c nargo.Circuit, inputs any, witnessPath string) error
}

type Prover interface {
	Prove(ctx context.Context, args bb.ProveArgs) error
}

// circuitInputs is the Prover.toml layout of the Semaphore Noir circuit.
type circuitInputs struct {
	SecretKey         core.Field   `toml:"secret_key"`
	IndexBits         []int        `toml:"index_bits"`
	HashPath          []core.Field `toml:"hash_path"`
	MerkleProofLength int          `toml:"merkle_proof_length"`
	HashedScope       core.Field   `toml:"hashed_scope"`
	HashedMessage     core.Field   `toml:"hashed_message"`
}

// A Request describes one member proof. Exactly one of Group or MerkleProof
// must be set. Depth is optional and defaults to the Merkle proof length.
type Request struct {
	Identity    *core.Identity
	Group       *core.Group
	MerkleProof *core.MerkleProof
	Message     string
	Scope       string
	Depth       int
}

// Generator produces Semaphore proofs with the recursion flags the batch
// circuits require. Proofs made without those flags cannot be batched.
type Generator struct {
	Circuit nargo.Circuit
	Witness WitnessGenerator
	Prover  Prover
	// Parent of the per-proof artifact directories. Empty means os.TempDir().
	WorkDir string

	log *log.Logger
}

func NewGenerator(circuit nargo.Circuit, witness WitnessGenerator, prover Prover) *Generator {
	return &Generator{
		Circuit: circuit,
		Witness: witness,
		Prover:  prover,
		log:     core.NewLogger("semaphore", "prove"),
	}
}

func (g *Generator) merkleProof(req Request) (*core.MerkleProof, error) {
	if req.MerkleProof != nil {
		return req.MerkleProof, nil
	}
	if req.Group == nil {
		return nil, errors.New("a group or a merkle proof is required")
	}
	commitment, err := req.Identity.Commitment()
	if err != nil {
		return nil, err
	}
	index := req.Group.IndexOf(commitment)
	if index < 0 {
		return nil, fmt.Errorf("identity %s is not a member of the group", commitment.Hex())
	}
	return req.Group.GenerateMerkleProof(index)
}

// Generate builds the circuit inputs, runs the witness generator and proves
// the witness with UltraHonk.
func (g *Generator) Generate(ctx context.Context, req Request) (*Proof, error) {
	if req.Identity == nil {
		return nil, errors.New("identity is required")
	}

	message, err := core.ToBigInt(req.Message)
	if err != nil {
		return nil, fmt.Errorf("message: %w", err)
	}
	scope, err := core.ToBigInt(req.Scope)
	if err != nil {
		return nil, fmt.Errorf("scope: %w", err)
	}

	mp, err := g.merkleProof(req)
	if err != nil {
		return nil, err
	}

	proofLength := len(mp.Siblings)
	depth := req.Depth
	if depth != 0 {
		if depth < core.MinDepth || depth > core.MaxDepth {
			return nil, fmt.Errorf("the tree depth must be a number between %d and %d", core.MinDepth, core.MaxDepth)
		}
	} else if proofLength != 0 {
		depth = proofLength
	} else {
		depth = 1
	}
	if proofLength > depth {
		return nil, fmt.Errorf("merkle proof has %d siblings but the circuit depth is %d", proofLength, depth)
	}

	hashedScope, err := core.SemaphoreHash(scope)
	if err != nil {
		return nil, err
	}
	hashedMessage, err := core.SemaphoreHash(message)
	if err != nil {
		return nil, err
	}

	// Missing siblings are zero. The circuit ignores levels past merkle_proof_length.
	hashPath := make([]core.Field, depth)
	copy(hashPath, mp.Siblings)
	inputs := circuitInputs{
		SecretKey:         req.Identity.SecretScalar(),
		IndexBits:         core.PathBitsFromIndex(mp.Index, depth).Ints(),
		HashPath:          hashPath,
		MerkleProofLength: proofLength,
		HashedScope:       hashedScope,
		HashedMessage:     hashedMessage,
	}

	dir, err := os.MkdirTemp(g.WorkDir, "semaphore_artifacts_")
	if err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	witnessPath := filepath.Join(dir, "witness.gz")
	outDir := filepath.Join(dir, "proof")

	g.log.Printf("proving membership depth=%d root=%s\n", depth, color.HiBlueString(mp.Root.Hex()))

	if err := g.Witness.GenerateWitness(ctx, g.Circuit, inputs, witnessPath); err != nil {
		return nil, err
	}
	err = g.Prover.Prove(ctx, bb.ProveArgs{
		Circuit:            g.Circuit.ArtifactPath(),
		Witness:            witnessPath,
		OutDir:             outDir,
		Scheme:             bb.SchemeUltraHonk,
		OutputFormat:       bb.OutputBytesAndFields,
		HonkRecursion:      1,
		Recursive:          true,
		InitKZGAccumulator: true,
	})
	if err != nil {
		return nil, err
	}

	fields, err := bb.ReadProofFields(outDir)
	if err != nil {
		return nil, err
	}
	if len(fields) <= PublicInputsCount {
		return nil, fmt.Errorf("proof has %d fields, expected more than %d", len(fields), PublicInputsCount)
	}
	publicInputs := fields[:PublicInputsCount]

	return &Proof{
		MerkleTreeDepth: depth,
		MerkleTreeRoot:  mp.Root.Decimal(),
		Nullifier:       publicInputs[3].Decimal(),
		Message:         message.String(),
		Scope:           scope.String(),
		ProofBytes:      core.FlattenFields(fields[PublicInputsCount:]),
	}, nil
}
