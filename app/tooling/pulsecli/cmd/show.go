package cmd

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/braidchain/pulse/foundation/braid/memchain"
	"github.com/braidchain/pulse/foundation/pulse"
)

var showCmd = &cobra.Command{
	Use:   "show <entry-hash>",
	Short: "Print one entry's randomness payload.",
	Args:  cobra.ExactArgs(1),
	RunE:  showRun,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func showRun(cmd *cobra.Command, args []string) error {
	hash, err := hexutil.Decode(args[0])
	if err != nil {
		return fmt.Errorf("parse entry hash: %w", err)
	}

	store, header, err := openChain()
	if err != nil {
		return err
	}
	defer store.Close()

	record, err := store.GetEntry(hash)
	if err != nil {
		return fmt.Errorf("read entry: %w", err)
	}

	entry, err := memchain.DecodeEntry(record, header)
	if err != nil {
		return fmt.Errorf("decode entry: %w", err)
	}

	payload, err := pulse.ExtractPayload(entry)
	if err != nil {
		return fmt.Errorf("extract payload: %w", err)
	}

	fmt.Printf("entry:     %s\n", hexutil.Encode(entry.Hash()))
	if prev, ok := entry.Previous(); ok {
		fmt.Printf("previous:  %s\n", hexutil.Encode(prev))
	} else {
		fmt.Printf("previous:  (first entry)\n")
	}
	fmt.Printf("salt:      %s\n", hexutil.Encode(payload.Salt()))
	fmt.Printf("pre:       %s\n", hexutil.Encode(payload.Pre()))
	fmt.Printf("timestamp: %s\n", payload.Timestamp().Format(time.RFC3339))

	return nil
}
