package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/liamzebedee/noirbatch-go/core/store"
	"github.com/urfave/cli/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func timeAgo(t time.Time) string {
	duration := time.Since(t)
	switch {
	case duration < time.Minute:
		return fmt.Sprintf("%d seconds ago", int(duration.Seconds()))
	case duration < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(duration.Minutes()))
	case duration < time.Hour*24:
		return fmt.Sprintf("%d hours ago", int(duration.Hours()))
	default:
		return fmt.Sprintf("%d days ago", int(duration.Hours()/24))
	}
}

// RunHistory prints the most recent batches in the ledger.
func RunHistory(cmdCtx *cli.Context) error {
	db, err := openDB(cmdCtx)
	if err != nil {
		return err
	}
	defer db.Close()

	batches, err := store.ListBatches(db, cmdCtx.Int("limit"))
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		fmt.Println("no batches yet")
		return nil
	}

	p := message.NewPrinter(language.English)
	total := 0
	for _, b := range batches {
		status := color.HiGreenString(b.Status)
		if b.Status != store.StatusComplete {
			status = color.HiRedString(b.Status)
		}
		keccak := ""
		if b.Keccak {
			keccak = " keccak"
		}
		p.Printf("%s  %-8s  %6d proofs  depth=%-2d layers=%d%s  %s\n",
			color.HiYellowString(store.ShortID(b.ID)), status, b.NumProofs, b.MerkleTreeDepth, b.Layers, keccak, timeAgo(b.CreatedAt))
		if b.Error != "" {
			fmt.Printf("    %s\n", color.HiBlackString(b.Error))
		}
		if b.Status == store.StatusComplete {
			total += b.NumProofs
		}
	}
	p.Printf("%d batches, %d proofs batched\n", len(batches), total)
	return nil
}
