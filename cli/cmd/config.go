package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/liamzebedee/noirbatch-go/core/store"
	"github.com/urfave/cli/v2"
)

func RunConfigShow(cmdCtx *cli.Context) error {
	db, err := openDB(cmdCtx)
	if err != nil {
		return err
	}
	defer db.Close()

	defaults, err := loadDefaults(db)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(defaults, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// RunConfigSet saves defaults for the batch flags. Only flags given on the
// command line are changed.
func RunConfigSet(cmdCtx *cli.Context) error {
	db, err := openDB(cmdCtx)
	if err != nil {
		return err
	}
	defer db.Close()

	defaults, err := loadDefaults(db)
	if err != nil {
		return err
	}

	paths := map[string]*string{
		"circuits":     &defaults.CircuitsDir,
		"semaphore-vk": &defaults.SemaphoreVK,
		"leaves-vk":    &defaults.LeavesVK,
		"nodes-vk":     &defaults.NodesVK,
		"verify-vk":    &defaults.VerifyVK,
	}
	for flag, dst := range paths {
		if !cmdCtx.IsSet(flag) {
			continue
		}
		abs, err := filepath.Abs(cmdCtx.String(flag))
		if err != nil {
			return err
		}
		*dst = abs
	}
	if cmdCtx.IsSet("keccak") {
		defaults.Keccak = cmdCtx.Bool("keccak")
	}

	if err := store.SaveDataStore(db, defaultsKey, *defaults); err != nil {
		return err
	}
	return RunConfigShow(cmdCtx)
}
