package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/liamzebedee/noirbatch-go/core/batching"
	"github.com/urfave/cli/v2"
)

func RunVerify(cmdCtx *cli.Context) error {
	proofPath := cmdCtx.String("proof")
	vkPath := vkFile(cmdCtx.String("vk"))

	valid, err := batching.Verify(cmdCtx.Context, newBB(cmdCtx), proofPath, vkPath, cmdCtx.Bool("keccak"))
	if err != nil {
		return err
	}
	if !valid {
		return cli.Exit(color.HiRedString("invalid"), 1)
	}
	fmt.Println(color.HiGreenString("valid"))
	return nil
}
