package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/liamzebedee/noirbatch-go/api"
	"github.com/liamzebedee/noirbatch-go/core/batching"
	"github.com/urfave/cli/v2"
)

func RunServe(cmdCtx *cli.Context) error {
	db, err := openDB(cmdCtx)
	if err != nil {
		return err
	}
	defer db.Close()

	cfg, _, err := batchConfig(cmdCtx, db)
	if err != nil {
		return err
	}
	prover := newBB(cmdCtx)
	batcher := batching.NewBatcher(cfg, newNargo(cmdCtx), prover)

	server, err := api.NewServer(db, batcher, prover, cmdCtx.Int("port"))
	if err != nil {
		return err
	}

	// Handle process signals.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("Shutting down...")
		db.Close()
		os.Exit(1)
	}()

	return server.Start()
}
