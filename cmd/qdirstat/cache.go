package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/qdirstat-go/qdirstat/internal/tree"
)

func newCacheCmd(logger *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Write or read a compressed tree cache file",
	}
	cmd.AddCommand(newCacheWriteCmd(logger))
	cmd.AddCommand(newCacheReadCmd(logger))
	return cmd
}

func newCacheWriteCmd(logger *logrus.Logger) *cobra.Command {
	flags := &scanFlags{includeHidden: true}
	cmd := &cobra.Command{
		Use:   "write <path> <cache-file>",
		Short: "Scan path and write the resulting tree to cache-file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := flags.buildRules()
			if err != nil {
				return fmt.Errorf("invalid --exclude pattern: %w", err)
			}
			t := tree.New(rules, nil, nil, logger)
			t.SetCrossFilesystems(flags.crossFilesystems)
			if err := t.OpenURL(args[0]); err != nil {
				return err
			}
			t.RunUntilIdle()
			if err := t.WriteCache(args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote cache to %s\n", args[1])
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newCacheReadCmd(logger *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "read <cache-file>",
		Short: "Read a cache file and print a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := tree.New(nil, nil, nil, logger)
			if err := t.ReadCache(args[0]); err != nil {
				return err
			}
			printSummary(cmd, t.Root())
			return nil
		},
	}
}
