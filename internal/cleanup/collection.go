package cleanup

import (
	"fmt"
	"sync"

	"github.com/qdirstat-go/qdirstat/internal/model"
	"github.com/qdirstat-go/qdirstat/internal/refresh"
)

// Confirmer is the external confirmation collaborator a
// CleanupCollection consults before running a cleanup that has
// AskForConfirmation set.
type Confirmer interface {
	Confirm(c *Cleanup, items []*model.Node) bool
}

// AlwaysConfirm is a Confirmer that never prompts; useful for
// non-interactive hosts (the CLI) and tests.
type AlwaysConfirm struct{}

func (AlwaysConfirm) Confirm(*Cleanup, []*model.Node) bool { return true }

// Refresher is the subset of internal/refresh.Refresher that
// CleanupCollection needs: something that can be triggered once every
// process the triggered cleanup started has finished.
type Refresher interface {
	Trigger() error
}

// RefresherFactory builds a Refresher over either the selection itself
// (RefreshThis) or its normalised parent set (RefreshParent).
type RefresherFactory interface {
	RefreshSelection(items []*model.Node) Refresher
	RefreshParents(items []*model.Node) Refresher
}

// Tree is the subset of internal/tree.Tree CleanupCollection needs to
// implement AssumeDeleted.
type Tree interface {
	DeleteSubtree(item *model.Node) error
}

// SinkFactory creates a fresh OutputSink for one triggered action,
// honoring the cleanup's OutputWindowPolicy. The out-of-scope GUI
// supplies the real implementation (an output window); tests supply a
// recording fake.
type SinkFactory interface {
	NewSink(policy OutputWindowPolicy, timeoutSeconds int) OutputSink
}

// CleanupCollection holds an ordered list of Cleanups and runs the
// triggered-action sequence spec.md §4.6 describes: confirm, emit
// startingCleanup, create an output sink, wire a Refresher to it,
// execute against every selected item worksFor applies to, and handle
// AssumeDeleted immediately rather than waiting for the command.
type CleanupCollection struct {
	Cleanups []*Cleanup

	Runner     CommandRunner
	Confirmer  Confirmer
	Sinks      SinkFactory
	Refreshers RefresherFactory
	Tree       Tree

	// OnStartingCleanup fires once execution begins, after
	// confirmation, matching the startingCleanup notification
	// collaborators subscribe to.
	OnStartingCleanup func(c *Cleanup, items []*model.Node)
}

// New constructs a collection with the production CommandRunner and an
// always-confirming Confirmer; callers typically override Confirmer
// with a real UI-backed one.
func New(tree Tree, sinks SinkFactory, refreshers RefresherFactory) *CleanupCollection {
	return &CleanupCollection{
		Runner:     NewExecRunner(),
		Confirmer:  AlwaysConfirm{},
		Sinks:      sinks,
		Refreshers: refreshers,
		Tree:       tree,
	}
}

// Trigger runs cleanup against every item in selection for which
// WorksFor is true, per the six-step sequence in spec.md §4.6.
func (cc *CleanupCollection) Trigger(cleanup *Cleanup, selection []*model.Node) error {
	if cleanup.AskForConfirmation && cc.Confirmer != nil && !cc.Confirmer.Confirm(cleanup, selection) {
		return nil
	}

	if cc.OnStartingCleanup != nil {
		cc.OnStartingCleanup(cleanup, selection)
	}

	var sink OutputSink
	if cc.Sinks != nil {
		sink = cc.Sinks.NewSink(cleanup.OutputWindowPolicy, cleanup.Timeout)
	} else {
		sink = &discardSink{}
	}

	// Rather than rely on the OutputSink implementation to notice for
	// itself that every process it tracks has finished (which
	// discardSink, and any SinkFactory-supplied sink with no completion
	// bookkeeping of its own, never does), count completions directly:
	// the same sync.WaitGroup pattern cmd/qdirstat/cleanup_cmd.go's
	// cliSink+countingRunner uses. A per-cleanup Runner override (e.g.
	// NewHardDeleteCleanup's NativeDeleteRunner) is invoked by
	// Cleanup.runCommand directly, bypassing the runner parameter
	// entirely, so it needs wrapping too.
	runner := cc.Runner
	var tracked *trackingSink
	refresher := cc.buildRefresher(cleanup, selection)
	if refresher != nil {
		tracked = &trackingSink{OutputSink: sink}
		sink = tracked
		runner = trackingRunner{inner: cc.Runner, sink: tracked}
		// Guards the swap-and-restore below against a second,
		// concurrently-triggered call on this same *Cleanup
		// (refresh.Refresher.Trigger's detached-item skip anticipates
		// concurrent triggers; this serializes the window where Runner
		// temporarily points at a trackingRunner instead). Locked
		// unconditionally so the nil check below can't race a
		// concurrent Trigger call's own swap.
		cleanup.runnerMu.Lock()
		if originalRunner := cleanup.Runner; originalRunner != nil {
			cleanup.Runner = trackingRunner{inner: originalRunner, sink: tracked}
			defer func() {
				cleanup.Runner = originalRunner
				cleanup.runnerMu.Unlock()
			}()
		} else {
			cleanup.runnerMu.Unlock()
		}
	}

	applicable := make([]*model.Node, 0, len(selection))
	for _, item := range selection {
		if cleanup.WorksFor(item) {
			applicable = append(applicable, item)
		}
	}

	for _, item := range applicable {
		if err := cleanup.Execute(item, runner, sink); err != nil {
			return fmt.Errorf("cleanup %q on %s: %w", cleanup.Title, item.URL(), err)
		}
	}

	if tracked != nil {
		tracked.wg.Wait()
		if err := refresher.Trigger(); err != nil {
			return fmt.Errorf("cleanup %q: refresh after completion: %w", cleanup.Title, err)
		}
	}

	if cleanup.RefreshPolicy == AssumeDeleted && cc.Tree != nil {
		for _, item := range refresh.Normalize(applicable) {
			if err := cc.Tree.DeleteSubtree(item); err != nil {
				return err
			}
		}
	}

	return nil
}

func (cc *CleanupCollection) buildRefresher(cleanup *Cleanup, selection []*model.Node) Refresher {
	if cc.Refreshers == nil {
		return nil
	}
	switch cleanup.RefreshPolicy {
	case RefreshThis:
		return cc.Refreshers.RefreshSelection(selection)
	case RefreshParent:
		return cc.Refreshers.RefreshParents(selection)
	default:
		return nil
	}
}

type discardSink struct{}

func (discardSink) AddLine(*model.Node, string)             {}
func (discardSink) ProcessFinished(*model.Node, int, error) {}
func (discardSink) AllProcessesFinished()                   {}

// trackingSink counts in-flight processes via a WaitGroup so Trigger
// can wait for every one of them regardless of what the wrapped
// OutputSink itself does with ProcessFinished/AllProcessesFinished.
type trackingSink struct {
	OutputSink
	wg sync.WaitGroup
}

func (s *trackingSink) ProcessFinished(item *model.Node, exitCode int, err error) {
	s.OutputSink.ProcessFinished(item, exitCode, err)
	s.wg.Done()
}

// trackingRunner increments sink's WaitGroup synchronously before
// delegating, matching the one Add per eventual ProcessFinished call
// Cleanup.Execute's post-order recursion produces.
type trackingRunner struct {
	inner CommandRunner
	sink  *trackingSink
}

func (r trackingRunner) Run(shell, script, workingDir string, item *model.Node, sink OutputSink) error {
	r.sink.wg.Add(1)
	return r.inner.Run(shell, script, workingDir, item, sink)
}
