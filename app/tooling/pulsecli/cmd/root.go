// Package cmd contains the pulsecli commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/braidchain/pulse/foundation/braid/memchain"
	"github.com/braidchain/pulse/foundation/braid/storage"
)

var dbPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "zpulse/pulse.db", "Path to the chain database.")
}

var rootCmd = &cobra.Command{
	Use:   "pulsecli",
	Short: "Inspect and verify a beacon chain",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openChain opens the chain database and re-verifies its header record.
func openChain() (*storage.Store, *memchain.Header, error) {
	store, err := storage.New(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	record, err := store.Header()
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	header, err := memchain.DecodeHeader(record)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("decode header: %w", err)
	}

	return store, header, nil
}
