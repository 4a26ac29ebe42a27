package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/qdirstat-go/qdirstat/internal/model"
	"github.com/qdirstat-go/qdirstat/internal/tree"
)

func newScanCmd(logger *logrus.Logger, configPath *string) *cobra.Command {
	flags := &scanFlags{includeHidden: true}
	cmd := &cobra.Command{
		Use:   "scan <path>",
		Short: "Scan a directory and print a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args[0], flags, *configPath, logger)
		},
	}
	flags.register(cmd)
	return cmd
}

func runScan(cmd *cobra.Command, target string, flags *scanFlags, configPath string, logger *logrus.Logger) error {
	rules, err := flags.buildRules()
	if err != nil {
		return fmt.Errorf("invalid --exclude pattern: %w", err)
	}
	if store, err := loadSettings(configPath); err == nil {
		if persisted, err := store.LoadExcludeRules(); err == nil {
			rules.Rules = append(rules.Rules, persisted.Rules...)
		} else {
			logger.WithError(err).WithField("path", configPath).Warn("could not load persisted exclude rules")
		}
	} else {
		logger.WithError(err).WithField("path", configPath).Warn("could not load settings")
	}

	var sawPermissionDenied bool
	obs := &scanObserver{onPermissionDenied: func() { sawPermissionDenied = true }}

	t := tree.New(rules, nil, obs, logger)
	t.SetCrossFilesystems(flags.crossFilesystems)
	if err := t.OpenURL(target); err != nil {
		return err
	}
	t.RunUntilIdle()

	printSummary(cmd, t.Root())
	if sawPermissionDenied {
		fmt.Fprintln(cmd.OutOrStdout(), "\nnote: some directories could not be read (permission denied)")
	}
	return nil
}

// scanObserver is a minimal tree.Observer for the CLI: it only cares
// about noticing a PermissionDenied directory for the end-of-scan
// notice spec.md §7 calls for; everything else is a no-op.
type scanObserver struct {
	tree.NopObserver
	onPermissionDenied func()
}

func (o *scanObserver) FinalizeLocal(dir *model.Node) {
	if dir.ReadState() == model.StatePermissionDenied {
		o.onPermissionDenied()
	}
}

func printSummary(cmd *cobra.Command, root *model.Node) {
	out := cmd.OutOrStdout()
	if root == nil {
		fmt.Fprintln(out, "empty tree")
		return
	}
	size, blocks, items, subDirs, files, latest := root.Totals()
	fmt.Fprintf(out, "%s\n", root.URL())
	fmt.Fprintf(out, "  total size:    %s (%s bytes)\n", humanize.Bytes(uint64(size)), humanize.Comma(size))
	fmt.Fprintf(out, "  allocated:     %s\n", humanize.Bytes(uint64(blocks*512)))
	fmt.Fprintf(out, "  items:         %s (%s files, %s subdirs)\n",
		humanize.Comma(items), humanize.Comma(files), humanize.Comma(subDirs))
	fmt.Fprintf(out, "  newest mtime:  %s\n", humanize.Time(latest))
	if root.Dir.ErrSubDirCount > 0 {
		fmt.Fprintf(out, "  read errors:   %d subdirectories\n", root.Dir.ErrSubDirCount)
	}
}
