package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/liamzebedee/noirbatch-go/core"
	"github.com/liamzebedee/noirbatch-go/core/pool"
	"github.com/liamzebedee/noirbatch-go/core/semaphore"
	"github.com/urfave/cli/v2"
)

// RunProve generates a batchable membership proof for every --secret. The
// group is every secret's commitment followed by any extra --members, in
// order.
func RunProve(cmdCtx *cli.Context) error {
	secrets := cmdCtx.StringSlice("secret")
	if len(secrets) == 0 {
		return fmt.Errorf("at least one --secret is required")
	}

	identities := make([]*core.Identity, len(secrets))
	group := core.NewGroup()
	for i, secret := range secrets {
		id, err := core.IdentityFromSecret(secret)
		if err != nil {
			return err
		}
		commitment, err := id.Commitment()
		if err != nil {
			return err
		}
		identities[i] = id
		group.AddMember(commitment)
	}
	for _, member := range cmdCtx.StringSlice("members") {
		commitment, err := core.ParseField(member)
		if err != nil {
			return fmt.Errorf("invalid member %q: %w", member, err)
		}
		group.AddMember(commitment)
	}

	generator := semaphore.NewGenerator(circuitFlag(cmdCtx.String("circuit")), newNargo(cmdCtx), newBB(cmdCtx))
	generator.WorkDir = cmdCtx.String("work-dir")

	message := cmdCtx.String("message")
	scope := cmdCtx.String("scope")
	depth := cmdCtx.Int("depth")

	numWorkers := cmdCtx.Int("workers")
	if numWorkers < 1 {
		numWorkers = 1
	}
	workers := make([]*pool.Worker[semaphore.Proof], numWorkers)
	for i := range workers {
		workers[i] = &pool.Worker[semaphore.Proof]{
			ID: fmt.Sprintf("worker-%d", i),
			Do: func(ctx context.Context, job int) (semaphore.Proof, error) {
				proof, err := generator.Generate(ctx, semaphore.Request{
					Identity: identities[job],
					Group:    group,
					Message:  message,
					Scope:    scope,
					Depth:    depth,
				})
				if err != nil {
					return semaphore.Proof{}, err
				}
				return *proof, nil
			},
		}
	}

	proofs, err := pool.Run(cmdCtx.Context, len(identities), workers)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	out := cmdCtx.String("out")
	if err := semaphore.WriteProofsFile(out, proofs); err != nil {
		return err
	}
	root, err := group.Root()
	if err != nil {
		return err
	}
	fmt.Printf("wrote %d proofs for group root %s to %s\n", len(proofs), color.HiYellowString(root.Decimal()), out)
	return nil
}
