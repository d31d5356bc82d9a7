package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MacAttak/riskscan/pkg/config"
	"github.com/MacAttak/riskscan/pkg/labelindex"
	"github.com/MacAttak/riskscan/pkg/wire"
)

func newIndexCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect and manage the durable label index",
	}

	cmd.AddCommand(newIndexGetCmd(configPath))
	cmd.AddCommand(newIndexPutCmd(configPath))
	cmd.AddCommand(newIndexDeleteCmd(configPath))
	cmd.AddCommand(newIndexScanCmd(configPath))

	return cmd
}

func openIndex(configPath *string) (*labelindex.Index, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	idx, err := labelindex.Open(cfg.LabelIndex.Path)
	if err != nil {
		return nil, fmt.Errorf("open label index %s: %w", cfg.LabelIndex.Path, err)
	}
	return idx, nil
}

func newIndexGetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print the stored entry for id, if any",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := openIndex(configPath)
			if err != nil {
				return err
			}
			defer idx.Close()

			entry, ok, err := idx.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get %s: %w", args[0], err)
			}
			if !ok {
				return fmt.Errorf("no entry for %s", args[0])
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entry)
		},
	}
}

func newIndexPutCmd(configPath *string) *cobra.Command {
	var labelSetPath string

	cmd := &cobra.Command{
		Use:   "put <id>",
		Short: "Store a label set (from --labels, a wire.LabelSet JSON file) under id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if labelSetPath == "" {
				return fmt.Errorf("--labels is required")
			}
			raw, err := readInput(labelSetPath)
			if err != nil {
				return err
			}
			var set wire.LabelSet
			if err := json.Unmarshal(raw, &set); err != nil {
				return fmt.Errorf("parse %s: %w", labelSetPath, err)
			}

			idx, err := openIndex(configPath)
			if err != nil {
				return err
			}
			defer idx.Close()

			id := args[0]
			if err := idx.Put(cmd.Context(), id, labelindex.Entry{ID: id, LabelSet: set}); err != nil {
				return fmt.Errorf("put %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&labelSetPath, "labels", "", "path to a wire.LabelSet JSON file")
	return cmd
}

func newIndexDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove id from the label index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := openIndex(configPath)
			if err != nil {
				return err
			}
			defer idx.Close()

			existed, err := idx.Delete(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("delete %s: %w", args[0], err)
			}
			if existed {
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "no entry for %s\n", args[0])
			}
			return nil
		},
	}
}

func newIndexScanCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scan-prefix <prefix>",
		Short: "List every entry whose id starts with prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := openIndex(configPath)
			if err != nil {
				return err
			}
			defer idx.Close()

			entries, err := idx.PrefixScan(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("prefix scan %s: %w", args[0], err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		},
	}
}
