package core

import (
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
)

// NewLogger returns a logger whose lines look like:
//
//	2024/06/30 00:56:06 [prefix] (sub) message
func NewLogger(prefix string, sub string) *log.Logger {
	prefixFull := color.HiGreenString(fmt.Sprintf("[%s] ", prefix))
	if sub != "" {
		prefixFull += color.HiYellowString(fmt.Sprintf("(%s) ", sub))
	}
	return log.New(os.Stdout, prefixFull, log.Ldate|log.Ltime|log.Lmsgprefix)
}
