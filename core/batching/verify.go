package batching

import (
	"context"

	"github.com/liamzebedee/noirbatch-go/core/bb"
)

type Verifier interface {
	Verify(ctx context.Context, args bb.VerifyArgs) (bool, error)
}

// Verify checks a batch proof against a vk with UltraHonk. A rejected proof
// is (false, nil); an error means the verifier could not be run.
func Verify(ctx context.Context, v Verifier, proofPath, vkPath string, keccak bool) (bool, error) {
	args := bb.VerifyArgs{
		Proof:  proofPath,
		VK:     vkPath,
		Scheme: bb.SchemeUltraHonk,
	}
	if keccak {
		args.OracleHash = bb.OracleHashKeccak
	}
	return v.Verify(ctx, args)
}

// VerifyResult verifies the root of a batch with the nodes circuit vk at vkPath.
func VerifyResult(ctx context.Context, v Verifier, r *Result, vkPath string) (bool, error) {
	return Verify(ctx, v, r.ProofPath, vkPath, r.Keccak)
}
