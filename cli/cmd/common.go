package cmd

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/liamzebedee/noirbatch-go/core/batching"
	"github.com/liamzebedee/noirbatch-go/core/bb"
	"github.com/liamzebedee/noirbatch-go/core/nargo"
	"github.com/liamzebedee/noirbatch-go/core/store"
	"github.com/urfave/cli/v2"
)

const defaultsKey = "defaults"

func newBB(cmdCtx *cli.Context) *bb.Runner {
	return bb.NewRunner(cmdCtx.String("bb"))
}

func newNargo(cmdCtx *cli.Context) *nargo.Runner {
	return nargo.NewRunner(cmdCtx.String("nargo"))
}

func openDB(cmdCtx *cli.Context) (*sql.DB, error) {
	db, err := store.OpenDB(cmdCtx.String("db"))
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func loadDefaults(db *sql.DB) (*store.DefaultsStore, error) {
	return store.LoadDataStore[store.DefaultsStore](db, defaultsKey)
}

// stringOr returns the flag value when set, else the saved default.
func stringOr(cmdCtx *cli.Context, flag, fallback string) string {
	if cmdCtx.IsSet(flag) || fallback == "" {
		return cmdCtx.String(flag)
	}
	return fallback
}

// circuitFlag resolves a circuit flag that accepts either a Noir package
// directory or a compiled artifact inside one (<pkg>/target/<name>.json).
func circuitFlag(path string) nargo.Circuit {
	if filepath.Ext(path) != ".json" {
		return nargo.NewCircuit(path)
	}
	pkg := filepath.Dir(filepath.Dir(path))
	c := nargo.NewCircuit(pkg)
	c.Artifact = path
	return c
}

type keyPaths struct {
	Semaphore string
	Leaves    string
	Nodes     string
	// Optional. Only keccak root proofs need it.
	Verify string
}

// rootVK picks the vk a batch's root proof verifies against. Folding uses
// the recursive nodes vk, but a keccak root only verifies against a nodes vk
// written with `noirbatch vk --keccak`.
func rootVK(paths keyPaths, keccak bool) (string, error) {
	if !keccak {
		return vkFile(paths.Nodes), nil
	}
	if paths.Verify == "" {
		return "", fmt.Errorf("verifying a keccak batch needs --verify-vk, the nodes vk written with `noirbatch vk --keccak`")
	}
	return vkFile(paths.Verify), nil
}

// batchConfig builds a batching.Config from the batch flags, falling back to
// the defaults saved in the database. It also returns where the keys came from.
func batchConfig(cmdCtx *cli.Context, db *sql.DB) (batching.Config, keyPaths, error) {
	defaults, err := loadDefaults(db)
	if err != nil {
		return batching.Config{}, keyPaths{}, err
	}

	cfg := batching.DefaultConfig()
	circuitsDir := stringOr(cmdCtx, "circuits", defaults.CircuitsDir)
	if circuitsDir != "" {
		cfg.LeavesCircuit, cfg.NodesCircuit = batching.CircuitsFromDir(circuitsDir)
	}
	if v := cmdCtx.String("leaves-circuit"); v != "" {
		cfg.LeavesCircuit = circuitFlag(v)
	}
	if v := cmdCtx.String("nodes-circuit"); v != "" {
		cfg.NodesCircuit = circuitFlag(v)
	}

	paths := keyPaths{
		Semaphore: stringOr(cmdCtx, "semaphore-vk", defaults.SemaphoreVK),
		Leaves:    stringOr(cmdCtx, "leaves-vk", defaults.LeavesVK),
		Nodes:     stringOr(cmdCtx, "nodes-vk", defaults.NodesVK),
		Verify:    stringOr(cmdCtx, "verify-vk", defaults.VerifyVK),
	}
	if paths.Semaphore == "" || paths.Leaves == "" || paths.Nodes == "" {
		return batching.Config{}, keyPaths{}, fmt.Errorf("--semaphore-vk, --leaves-vk and --nodes-vk are required (or save them with `noirbatch config set`)")
	}
	cfg.Keys, err = batching.LoadKeys(store.NewVKCache(db), paths.Semaphore, paths.Leaves, paths.Nodes)
	if err != nil {
		return batching.Config{}, keyPaths{}, err
	}

	cfg.Keccak = cmdCtx.Bool("keccak") || (!cmdCtx.IsSet("keccak") && defaults.Keccak)
	cfg.WorkDir = cmdCtx.String("work-dir")
	cfg.AllowSelfPair = !cmdCtx.Bool("no-self-pair")
	return cfg, paths, nil
}

// vkFile returns the binary vk bb verifies with, given either the file or the
// directory `bb write_vk` wrote.
func vkFile(path string) string {
	if filepath.Base(path) == bb.VKFieldsFile {
		return filepath.Join(filepath.Dir(path), bb.VKFile)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, bb.VKFile)
	}
	return path
}

func DBFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "db",
		Usage:   "The path to the noirbatch database",
		Value:   "noirbatch.db",
		EnvVars: []string{"NOIRBATCH_DB"},
	}
}

// BatchFlags configure a batch run. They are shared by `batch` and `serve`.
var BatchFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "circuits",
		Usage: "Directory containing the batch_2_leaves and batch_2_nodes Noir packages",
	},
	&cli.StringFlag{
		Name:  "leaves-circuit",
		Usage: "Leaves circuit package directory or compiled artifact",
	},
	&cli.StringFlag{
		Name:  "nodes-circuit",
		Usage: "Nodes circuit package directory or compiled artifact",
	},
	&cli.StringFlag{
		Name:  "semaphore-vk",
		Usage: "Semaphore circuit vk_fields.json (or its directory) for the proofs' tree depth",
	},
	&cli.StringFlag{
		Name:  "leaves-vk",
		Usage: "Leaves circuit vk_fields.json (or its directory)",
	},
	&cli.StringFlag{
		Name:  "nodes-vk",
		Usage: "Nodes circuit vk_fields.json (or its directory)",
	},
	&cli.StringFlag{
		Name:  "verify-vk",
		Usage: "Nodes circuit vk written with --keccak, used to verify keccak root proofs",
	},
	&cli.BoolFlag{
		Name:  "keccak",
		Usage: "Prove the final fold with the keccak oracle hash, for on-chain verification",
	},
	&cli.StringFlag{
		Name:  "work-dir",
		Usage: "Directory for intermediate artifacts (defaults to the system temp dir)",
	},
	&cli.BoolFlag{
		Name:  "no-self-pair",
		Usage: "Reject an odd number of proofs instead of pairing the last proof with itself",
	},
	DBFlag(),
}
