package main

import (
	"bufio"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/qdirstat-go/qdirstat/internal/cleanup"
	"github.com/qdirstat-go/qdirstat/internal/model"
	"github.com/qdirstat-go/qdirstat/internal/refresh"
	"github.com/qdirstat-go/qdirstat/internal/tree"
)

func newCleanupCmd(logger *logrus.Logger, configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Run a shell-command cleanup against selected paths",
	}
	cmd.AddCommand(newCleanupRunCmd(logger, configPath))
	return cmd
}

func newCleanupRunCmd(logger *logrus.Logger, configPath *string) *cobra.Command {
	var (
		command           string
		builtin           string
		name              string
		recurse           bool
		refreshPolicyName string
	)
	cmd := &cobra.Command{
		Use:   "run <path>...",
		Short: "Run an ad-hoc shell command, a built-in action, or a persisted cleanup, against one or more paths",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chosen := 0
			for _, v := range []string{command, builtin, name} {
				if v != "" {
					chosen++
				}
			}
			if chosen != 1 {
				return fmt.Errorf("specify exactly one of --command, --builtin, or --name")
			}
			return runCleanup(cmd, args, command, builtin, name, *configPath, recurse, refreshPolicyName, logger)
		},
	}
	cmd.Flags().StringVar(&command, "command", "", "shell command template (%p/%n/%d/%terminal/%filemanager expanded)")
	cmd.Flags().StringVar(&builtin, "builtin", "", "built-in action instead of a shell command: hard-delete")
	cmd.Flags().StringVar(&name, "name", "", "title of a cleanup loaded from the settings file's Cleanup_ namespace")
	cmd.Flags().BoolVar(&recurse, "recurse", false, "apply to every descendant before the item itself")
	cmd.Flags().StringVar(&refreshPolicyName, "refresh", "none", "none|this|parent|assume-deleted")
	return cmd
}

// namedCleanup looks up a persisted cleanup by Title in the settings
// file's Cleanup_ namespace (spec.md §6).
func namedCleanup(configPath, title string) (*cleanup.Cleanup, error) {
	store, err := loadSettings(configPath)
	if err != nil {
		return nil, fmt.Errorf("cannot load settings from %s: %w", configPath, err)
	}
	cleanups, err := store.LoadCleanups()
	if err != nil {
		return nil, err
	}
	for _, c := range cleanups {
		if c.Title == title {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no cleanup named %q in %s", title, configPath)
}

// builtinCleanup resolves a --builtin name to its Cleanup, grounded on
// the original's StdCleanup constructors.
func builtinCleanup(name string, recurse bool) (*cleanup.Cleanup, error) {
	switch name {
	case "hard-delete":
		c := cleanup.NewHardDeleteCleanup()
		c.Recurse = recurse
		return c, nil
	default:
		return nil, fmt.Errorf("unknown --builtin action %q", name)
	}
}

func parseRefreshPolicy(s string) (cleanup.RefreshPolicy, error) {
	switch s {
	case "none":
		return cleanup.NoRefresh, nil
	case "this":
		return cleanup.RefreshThis, nil
	case "parent":
		return cleanup.RefreshParent, nil
	case "assume-deleted":
		return cleanup.AssumeDeleted, nil
	default:
		return 0, fmt.Errorf("unknown --refresh value %q", s)
	}
}

// cliSink is an OutputSink for the CLI: lines are printed as they
// arrive and wg tracks every process started through countingRunner so
// runCleanup can wait for all of them before refreshing the tree.
// execRunner reports completion from its own goroutine per command, so
// every method locks mu.
type cliSink struct {
	mu  sync.Mutex
	out *bufio.Writer
	wg  sync.WaitGroup
}

func newCliSink(out *bufio.Writer) *cliSink {
	return &cliSink{out: out}
}

func (s *cliSink) AddLine(item *model.Node, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "[%s] %s\n", item.Name, line)
	s.out.Flush()
}

func (s *cliSink) ProcessFinished(item *model.Node, exitCode int, err error) {
	s.mu.Lock()
	if err != nil {
		fmt.Fprintf(s.out, "[%s] exit %d: %v\n", item.Name, exitCode, err)
	}
	s.out.Flush()
	s.mu.Unlock()
	s.wg.Done()
}

func (s *cliSink) AllProcessesFinished() {}

// Wait blocks until every process countingRunner started for this sink
// has reported completion via ProcessFinished.
func (s *cliSink) Wait() { s.wg.Wait() }

// countingRunner wraps a CommandRunner so cliSink's WaitGroup is
// incremented synchronously at the point a command is scheduled
// (before Execute's recursion moves on to the next node), matching the
// one Add per eventual ProcessFinished call that Cleanup.Execute's
// post-order recursion produces for Recurse=true cleanups.
type countingRunner struct {
	inner cleanup.CommandRunner
	sink  *cliSink
}

func (r countingRunner) Run(shell, script, workingDir string, item *model.Node, sink cleanup.OutputSink) error {
	r.sink.wg.Add(1)
	return r.inner.Run(shell, script, workingDir, item, sink)
}

// itemsToAssumeDeleted filters items down to the ones c actually
// WorksFor itself: per spec.md §4.6's AssumeDeleted semantics, only
// such an item was actually removed from disk by the cleanup's own
// command. A --recurse cleanup that only matched descendants (e.g. a
// file-only cleanup run against a directory path) must not drop the
// directory's own tree node.
func itemsToAssumeDeleted(c *cleanup.Cleanup, items []*model.Node) []*model.Node {
	var out []*model.Node
	for _, item := range items {
		if c.WorksFor(item) {
			out = append(out, item)
		}
	}
	return out
}

func runCleanup(cmd *cobra.Command, paths []string, command, builtin, name, configPath string, recurse bool, refreshPolicyName string, logger *logrus.Logger) error {
	policy, err := parseRefreshPolicy(refreshPolicyName)
	if err != nil {
		return err
	}

	t := tree.New(nil, nil, nil, logger)
	var items []*model.Node
	for _, p := range paths {
		if err := t.OpenURL(p); err != nil {
			return err
		}
		t.RunUntilIdle()
		if t.Root() != nil {
			items = append(items, t.Root())
		}
	}

	var c *cleanup.Cleanup
	switch {
	case builtin != "":
		c, err = builtinCleanup(builtin, recurse)
	case name != "":
		c, err = namedCleanup(configPath, name)
	default:
		c = &cleanup.Cleanup{
			Title:         "cli",
			Command:       command,
			Active:        true,
			Recurse:       recurse,
			WorksForDir:   true,
			WorksForFile:  true,
			RefreshPolicy: policy,
		}
	}
	if err != nil {
		return err
	}

	sink := newCliSink(bufio.NewWriter(cmd.OutOrStdout()))
	runner := countingRunner{inner: cleanup.NewExecRunner(), sink: sink}
	if c.Runner != nil {
		// A per-cleanup Runner override (e.g. NewHardDeleteCleanup's
		// NativeDeleteRunner) is invoked by Cleanup.runCommand directly,
		// bypassing the runner parameter entirely — wrap it too, or its
		// calls to sink.ProcessFinished underflow cliSink's WaitGroup.
		c.Runner = countingRunner{inner: c.Runner, sink: sink}
	}
	for _, item := range items {
		// Execute already checks WorksFor, both for item itself and
		// (when Recurse is set) independently for each descendant; an
		// outer WorksFor(item) gate here would skip a whole subtree
		// whenever the cleanup doesn't apply to the top item itself,
		// e.g. a file-only cleanup run with --recurse against a dir.
		if err := c.Execute(item, runner, sink); err != nil {
			return err
		}
	}
	// execRunner reports completion asynchronously; wait for every
	// spawned command before deciding how to refresh the tree.
	sink.Wait()

	if c.RefreshPolicy == cleanup.AssumeDeleted {
		for _, item := range refresh.Normalize(itemsToAssumeDeleted(c, items)) {
			if err := t.DeleteSubtree(item); err != nil {
				return err
			}
		}
	}
	return nil
}
