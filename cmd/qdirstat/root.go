package main

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/qdirstat-go/qdirstat/internal/excludes"
	"github.com/qdirstat-go/qdirstat/internal/settings"
)

// scanFlags holds the flag surface shared by scan and cache subcommands,
// mirroring the teacher's own flag names (--exclude, --cross-filesystems,
// --hidden) where they still apply to this engine-only CLI.
type scanFlags struct {
	excludePatterns  []string
	crossFilesystems bool
	includeHidden    bool
}

func (f *scanFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.excludePatterns, "exclude", nil, "regexp pattern to exclude (repeatable)")
	cmd.Flags().BoolVar(&f.crossFilesystems, "cross-filesystems", false, "descend into mounted filesystems other than the scan root's")
	cmd.Flags().BoolVar(&f.includeHidden, "hidden", true, "include dot-directories (false excludes them; dotfiles are always counted)")
}

// buildRules compiles f.excludePatterns into an excludes.List. --hidden=false
// is implemented as a synthetic RegExp rule matching names that start with
// '.' rather than special engine logic, keeping "what counts as excluded"
// in one place. Exclude rules apply to directories only, so dotfiles are
// still scanned.
func (f *scanFlags) buildRules() (*excludes.List, error) {
	list := &excludes.List{}
	for _, p := range f.excludePatterns {
		list.Rules = append(list.Rules, &excludes.Rule{
			Pattern: p,
			Syntax:  excludes.RegExp,
			Enabled: true,
		})
	}
	if !f.includeHidden {
		list.Rules = append(list.Rules, &excludes.Rule{
			Pattern: `^\..+`,
			Syntax:  excludes.RegExp,
			Enabled: true,
		})
	}
	if err := list.Compile(); err != nil {
		return nil, err
	}
	return list, nil
}

// defaultConfigPath places the settings file under the user's config
// directory, the same QSettings-style location
// ("~/.config/<app>/<app>.conf" on Linux) the original implementation
// resolves to via QSettings(organizationName, applicationName).
func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "qdirstat", "qdirstat.conf")
	}
	return "qdirstat.conf"
}

// loadSettings loads the persisted settings store at path, per spec.md
// §6; a missing file starts an empty in-memory store rather than
// erroring (settings.Load's own documented behavior).
func loadSettings(path string) (*settings.Store, error) {
	return settings.Load(path)
}

func newRootCmd(logger *logrus.Logger) *cobra.Command {
	configPath := defaultConfigPath()

	root := &cobra.Command{
		Use:   "qdirstat",
		Short: "Interactive disk-usage scan engine",
		Long: "qdirstat scans a filesystem subtree,\n" +
			"builds an in-memory tree of aggregated sizes, and can persist that tree\n" +
			"to a compressed cache file for later reads without rescanning.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", configPath,
		"settings file (ExcludeRules/Rules, Cleanup_, MimeCategory_ namespaces)")

	root.AddCommand(newScanCmd(logger, &configPath))
	root.AddCommand(newCacheCmd(logger))
	root.AddCommand(newCleanupCmd(logger, &configPath))
	return root
}
