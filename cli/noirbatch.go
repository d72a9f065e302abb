package main

import (
	"log"
	"os"

	"github.com/liamzebedee/noirbatch-go/cli/cmd"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:                 "noirbatch",
		Usage:                "batches Semaphore Noir proofs into one recursive proof",
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "bb",
				Usage:   "Path to the Barretenberg CLI",
				Value:   "bb",
				EnvVars: []string{"NOIRBATCH_BB"},
			},
			&cli.StringFlag{
				Name:    "nargo",
				Usage:   "Path to the Noir CLI",
				Value:   "nargo",
				EnvVars: []string{"NOIRBATCH_NARGO"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "batch",
				Usage:  "batches a JSON file of Semaphore proofs and prints the root proof path",
				Action: cmd.RunBatch,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "proofs",
						Usage:    "JSON array of Semaphore proofs generated with `noirbatch prove`",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "verify",
						Usage: "Verify the root proof with the nodes circuit vk (keccak batches use --verify-vk)",
					},
				}, cmd.BatchFlags...),
			},
			{
				Name:   "verify",
				Usage:  "verifies a proof, exiting 1 when it is invalid",
				Action: cmd.RunVerify,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "proof",
						Usage:    "The proof file",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "vk",
						Usage:    "The vk file, or the directory bb write_vk wrote",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "keccak",
						Usage: "The proof was made with the keccak oracle hash",
					},
				},
			},
			{
				Name:   "prove",
				Usage:  "generates batchable Semaphore membership proofs",
				Action: cmd.RunProve,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "circuit",
						Usage:    "Semaphore Noir package directory or compiled artifact",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "secret",
						Usage: "Identity secret scalar; one proof is generated per secret",
					},
					&cli.StringSliceFlag{
						Name:  "members",
						Usage: "Extra identity commitments in the group",
					},
					&cli.StringFlag{
						Name:  "message",
						Value: "0",
					},
					&cli.StringFlag{
						Name:  "scope",
						Value: "0",
					},
					&cli.IntFlag{
						Name:  "depth",
						Usage: "Tree depth the circuit was compiled for (defaults to the Merkle proof length)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of proofs generated in parallel",
						Value: 1,
					},
					&cli.StringFlag{
						Name:  "work-dir",
						Usage: "Directory for intermediate artifacts (defaults to the system temp dir)",
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "Where to write the proofs",
						Value: "proofs.json",
					},
				},
			},
			{
				Name:   "vk",
				Usage:  "writes the verification key of a compiled circuit",
				Action: cmd.RunWriteVK,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "circuit",
						Usage:    "Noir package directory or compiled artifact",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "out",
						Usage:    "Output directory",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "keccak",
						Usage: "Write the vk for keccak oracle hash proofs",
					},
				},
			},
			{
				Name:   "compile",
				Usage:  "compiles Noir circuit packages",
				Action: cmd.RunCompile,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "circuit",
						Usage:    "Noir package directory",
						Required: true,
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "runs the batch HTTP API",
				Action: cmd.RunServe,
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "port",
						Usage: "The port to run the API on",
						Value: 8080,
					},
				}, cmd.BatchFlags...),
			},
			{
				Name:   "history",
				Usage:  "lists recent batches",
				Action: cmd.RunHistory,
				Flags: []cli.Flag{
					cmd.DBFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
					},
				},
			},
			{
				Name:  "config",
				Usage: "shows or saves default batch settings",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Action: cmd.RunConfigShow,
						Flags:  []cli.Flag{cmd.DBFlag()},
					},
					{
						Name:   "set",
						Action: cmd.RunConfigSet,
						Flags:  cmd.BatchFlags,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
