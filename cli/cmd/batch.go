package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/liamzebedee/noirbatch-go/core/batching"
	"github.com/liamzebedee/noirbatch-go/core/semaphore"
	"github.com/liamzebedee/noirbatch-go/core/store"
	"github.com/urfave/cli/v2"
)

func RunBatch(cmdCtx *cli.Context) error {
	db, err := openDB(cmdCtx)
	if err != nil {
		return err
	}
	defer db.Close()

	proofs, err := semaphore.LoadProofsFile(cmdCtx.String("proofs"))
	if err != nil {
		return err
	}
	cfg, paths, err := batchConfig(cmdCtx, db)
	if err != nil {
		return err
	}

	// Resolve the verification key before spending time on proving.
	var verifyVK string
	if cmdCtx.Bool("verify") {
		if verifyVK, err = rootVK(paths, cfg.Keccak); err != nil {
			return err
		}
	}

	id, err := batching.BatchID(proofs, cfg.Keys, cfg.Keccak)
	if err != nil {
		return err
	}

	prover := newBB(cmdCtx)
	batcher := batching.NewBatcher(cfg, newNargo(cmdCtx), prover)
	result, err := batcher.Batch(cmdCtx.Context, proofs)
	if err != nil {
		var cfgErr *batching.ConfigurationError
		if !errors.As(err, &cfgErr) && len(proofs) > 0 {
			if markErr := store.MarkBatchFailed(db, id, len(proofs), proofs[0].MerkleTreeDepth, cfg.Keccak, err); markErr != nil {
				fmt.Println(color.HiRedString("recording failed batch: %s", markErr))
			}
		}
		return cli.Exit(err.Error(), 1)
	}
	if err := store.SaveBatch(db, id, result); err != nil {
		return err
	}

	if result.SelfPaired {
		fmt.Printf("proof #%d was paired with itself (odd batch)\n", result.SelfPairedIndex)
	}
	fmt.Printf("batch %s: %d proofs, %d layers, %d prover calls\n", color.HiYellowString(store.ShortID(id)), result.LeafCount, len(result.Layers), result.ProverCalls())

	if cmdCtx.Bool("verify") {
		valid, err := batching.VerifyResult(cmdCtx.Context, prover, result, verifyVK)
		if err != nil {
			return err
		}
		if !valid {
			return cli.Exit(color.HiRedString("root proof failed verification"), 1)
		}
		fmt.Println(color.HiGreenString("root proof verified"))
	}

	// The proof path goes last so scripts can take the final line.
	fmt.Println(result.ProofPath)
	return nil
}
