package batching

import (
	"path/filepath"

	"github.com/liamzebedee/noirbatch-go/core"
	"github.com/liamzebedee/noirbatch-go/core/nargo"
)

const (
	LeavesCircuitName = "batch_2_leaves"
	NodesCircuitName  = "batch_2_nodes"

	// MinProofs is the smallest batch the circuits support.
	MinProofs = 3
)

// Keys are the verification keys, as field arrays, that the batch circuits
// recursively verify against.
type Keys struct {
	// Semaphore circuit vk for the depth of the proofs being batched.
	Semaphore []core.Field
	Leaves    []core.Field
	Nodes     []core.Field
}

// ForOrigin returns the key that verifies a unit of the given origin.
func (k Keys) ForOrigin(o Origin) []core.Field {
	if o == LeafOrigin {
		return k.Leaves
	}
	return k.Nodes
}

type Config struct {
	LeavesCircuit nargo.Circuit
	NodesCircuit  nargo.Circuit
	Keys          Keys

	// Keccak makes the final fold use the keccak oracle hash, which the
	// on-chain verifier requires.
	Keccak bool

	// Parent of the per-batch temp directory. Empty means os.TempDir().
	WorkDir string

	// AllowSelfPair permits odd batches, where the last proof is paired with
	// itself in the leaf layer.
	AllowSelfPair bool

	// KeyHash is passed alongside every vk. The circuits do not check it.
	KeyHash core.Field
}

func DefaultConfig() Config {
	return Config{
		AllowSelfPair: true,
	}
}

// CircuitsFromDir locates the two batch circuit packages under dir.
func CircuitsFromDir(dir string) (leaves nargo.Circuit, nodes nargo.Circuit) {
	return nargo.NewCircuit(filepath.Join(dir, LeavesCircuitName)),
		nargo.NewCircuit(filepath.Join(dir, NodesCircuitName))
}

func (c Config) Validate() error {
	// Witnesses are generated inside the package, so an artifact alone is not enough.
	if c.LeavesCircuit.ProgramDir == "" {
		return configErrorf("leaves circuit package directory is not configured")
	}
	if c.NodesCircuit.ProgramDir == "" {
		return configErrorf("nodes circuit package directory is not configured")
	}
	if len(c.Keys.Semaphore) == 0 {
		return configErrorf("semaphore verification key is missing")
	}
	if len(c.Keys.Leaves) == 0 {
		return configErrorf("leaves circuit verification key is missing")
	}
	if len(c.Keys.Nodes) == 0 {
		return configErrorf("nodes circuit verification key is missing")
	}
	return nil
}
