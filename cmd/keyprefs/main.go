package main

import (
	"os"

	"github.com/kalambet/keyprefs/internal/logging"
)

var version = "dev"

func main() {
	defer logging.Sync()
	if err := newRootCmd().Execute(); err != nil {
		printError(os.Stderr, "%v", err)
		os.Exit(1)
	}
}
