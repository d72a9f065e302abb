package cmd

import (
	"fmt"

	"github.com/liamzebedee/noirbatch-go/core/bb"
	"github.com/urfave/cli/v2"
)

// RunWriteVK writes the verification key of a compiled circuit.
func RunWriteVK(cmdCtx *cli.Context) error {
	circuit := circuitFlag(cmdCtx.String("circuit"))
	args := bb.WriteVKArgs{
		Circuit: circuit.ArtifactPath(),
		OutDir:  cmdCtx.String("out"),
	}
	if cmdCtx.Bool("keccak") {
		args.OracleHash = bb.OracleHashKeccak
	}
	if err := newBB(cmdCtx).WriteVK(cmdCtx.Context, args); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Println(args.OutDir)
	return nil
}
