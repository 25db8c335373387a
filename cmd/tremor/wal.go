package main

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/jaysonsantos/tremor-runtime/event"
	walstore "github.com/jaysonsantos/tremor-runtime/storage/wal"
)

func walCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wal",
		Short: "inspect write-ahead logs",
	}
	cmd.AddCommand(walDumpCommand())
	return cmd
}

type dumpEntry struct {
	Key      uint64         `json:"key"`
	ID       uint64         `json:"id"`
	IngestNS uint64         `json:"ingest_ns"`
	IsBatch  bool           `json:"is_batch,omitempty"`
	Kind     string         `json:"kind,omitempty"`
	Meta     map[string]any `json:"meta"`
	Value    any            `json:"value"`
	Error    string         `json:"error,omitempty"`
}

func walDumpCommand() *cobra.Command {
	var from, to uint64
	var limit int
	cmd := &cobra.Command{
		Use:   "dump <path>",
		Short: "print the entries of a WAL directory as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := walstore.Open(walstore.Options{Path: args[0]})
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Range(from, to, limit)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, e := range entries {
				out := dumpEntry{Key: e.Key}
				ev, err := event.Unmarshal(e.Value)
				if err != nil {
					out.Error = err.Error()
				} else {
					out.ID, out.IngestNS, out.IsBatch = ev.ID, ev.IngestNS, ev.IsBatch
					out.Kind, out.Meta, out.Value = string(ev.Kind), ev.Meta, ev.Value
				}
				if err := enc.Encode(out); err != nil {
					return fmt.Errorf("write entry %d: %w", e.Key, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&from, "from", 1, "first key to print")
	cmd.Flags().Uint64Var(&to, "to", math.MaxUint64, "last key to print")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of entries, 0 for all")
	return cmd
}
