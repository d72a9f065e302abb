package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func RunCompile(cmdCtx *cli.Context) error {
	runner := newNargo(cmdCtx)
	for _, dir := range cmdCtx.StringSlice("circuit") {
		circuit := circuitFlag(dir)
		if err := runner.Compile(cmdCtx.Context, circuit); err != nil {
			return cli.Exit(err.Error(), 1)
		}
		fmt.Println(circuit.ArtifactPath())
	}
	return nil
}
