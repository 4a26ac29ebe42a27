// Package tree implements Tree (spec.md §4.6 lead-in, §6): the owner of
// exactly one root Dir, the dispatcher of ReadJobs through a
// queue.Queue, and the source of the childAdded/deletingChild/
// childDeleted/startingReading/finished/aborted/finalizeLocal/
// progressInfo notification set external collaborators subscribe to.
// Grounded on the teacher's scanner.ParallelScanner + model.Tree pair,
// generalized into the single owner the specification calls for.
package tree

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/qdirstat-go/qdirstat/internal/cache"
	"github.com/qdirstat-go/qdirstat/internal/excludes"
	"github.com/qdirstat-go/qdirstat/internal/model"
	"github.com/qdirstat-go/qdirstat/internal/queue"
	"github.com/qdirstat-go/qdirstat/internal/readjob"
)

// Observer is the publish/subscribe interface external collaborators
// (the out-of-scope GUI, the CLI summary printer, tests) implement to
// mirror the tree lazily. Per spec.md §9's design notes, handlers
// should treat the *model.Node pointers as stable for the duration of
// the call only; this package never mutates the tree from within a
// notification callback itself.
type Observer interface {
	ChildAdded(child *model.Node)
	DeletingChild(child *model.Node)
	ChildDeleted(child *model.Node)
	FinalizeLocal(dir *model.Node)
	StartingReading()
	Finished()
	Aborted()
	ProgressInfo(dir *model.Node)
}

// NopObserver implements Observer with no-ops.
type NopObserver struct{}

func (NopObserver) ChildAdded(*model.Node)    {}
func (NopObserver) DeletingChild(*model.Node) {}
func (NopObserver) ChildDeleted(*model.Node)  {}
func (NopObserver) FinalizeLocal(*model.Node) {}
func (NopObserver) StartingReading()          {}
func (NopObserver) Finished()                 {}
func (NopObserver) Aborted()                  {}
func (NopObserver) ProgressInfo(*model.Node)  {}

// Tree owns exactly one root Dir and dispatches the ReadJobs that
// populate it.
type Tree struct {
	root             *model.Node
	q                *queue.Queue
	rules            *excludes.List
	crossFilesystems bool
	sentinelName     string
	pkgSource        readjob.PackageSource
	observer         Observer
	logger           *logrus.Logger
}

// New creates an empty Tree (no root yet; call OpenURL or ReadCache to
// populate one). rules may be nil (no exclude rules); observer may be
// nil (defaults to NopObserver{}); pkgSource may be nil (pkg:/ URLs
// then fail with an error, and unpkg:/ URLs scan every file because no
// file is known to belong to a package).
func New(rules *excludes.List, pkgSource readjob.PackageSource, observer Observer, logger *logrus.Logger) *Tree {
	if observer == nil {
		observer = NopObserver{}
	}
	if rules == nil {
		rules = &excludes.List{}
	}
	t := &Tree{
		rules:        rules,
		sentinelName: cache.DefaultSentinelName,
		pkgSource:    pkgSource,
		observer:     observer,
		logger:       logger,
	}
	t.q = queue.New(treeQueueObserver{t}, logger)
	return t
}

// treeQueueObserver adapts Tree's richer Observer to queue.Observer,
// and — since every mutation here happens synchronously on one
// goroutine with no intervening "are you sure" step — immediately
// follows a queue-driven DeletingChild with the matching ChildDeleted,
// which Tree's own Refresh/DeleteSubtree paths emit explicitly instead.
type treeQueueObserver struct{ t *Tree }

func (o treeQueueObserver) ChildAdded(c *model.Node) { o.t.observer.ChildAdded(c) }
func (o treeQueueObserver) DeletingChild(c *model.Node) {
	o.t.observer.DeletingChild(c)
	o.t.observer.ChildDeleted(c)
}
func (o treeQueueObserver) FinalizeLocal(d *model.Node) { o.t.observer.FinalizeLocal(d) }
func (o treeQueueObserver) StartingReading()            { o.t.observer.StartingReading() }
func (o treeQueueObserver) Finished()                   { o.t.observer.Finished() }
func (o treeQueueObserver) Aborted()                    { o.t.observer.Aborted() }
func (o treeQueueObserver) ProgressInfo(d *model.Node)   { o.t.observer.ProgressInfo(d) }

// Root returns the tree's root node, or nil if nothing has been opened
// yet.
func (t *Tree) Root() *model.Node { return t.root }

// FirstToplevel returns root's first direct child (the node a UI
// typically expands to first), or nil.
func (t *Tree) FirstToplevel() *model.Node {
	if t.root == nil {
		return nil
	}
	children := t.root.Children()
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

// CrossFilesystems reports whether scans descend into mounted
// filesystems other than the one the scan started on.
func (t *Tree) CrossFilesystems() bool { return t.crossFilesystems }

// SetCrossFilesystems sets the crossFilesystems flag used by
// subsequently-created LocalDirReadJobs. It has no effect on jobs
// already in flight.
func (t *Tree) SetCrossFilesystems(v bool) { t.crossFilesystems = v }

// IsBusy reports whether any read job is still in flight anywhere in
// the tree.
func (t *Tree) IsBusy() bool {
	return t.root != nil && t.root.IsBusy()
}

// Clear discards the entire tree: queued jobs are killed and root is
// set to nil. No notifications are emitted (there is no single parent
// to report deletingChild/childDeleted against); callers that need
// notifications should DeleteSubtree(root) instead.
func (t *Tree) Clear() {
	if t.root != nil {
		t.q.KillAll(t.root)
	}
	t.root = nil
}

// Locate resolves path against the tree root. findDotEntries controls
// whether a terminal "." component resolves to a dot entry.
func (t *Tree) Locate(path string, findDotEntries bool) *model.Node {
	if t.root == nil {
		return nil
	}
	return t.root.Locate(path, findDotEntries)
}

// RunUntilIdle drives the read-job queue to completion synchronously,
// for hosts (the CLI, tests) with no event loop of their own.
func (t *Tree) RunUntilIdle() { t.q.RunUntilIdle() }

// Step performs exactly one scheduler time slice; a host event loop
// calls this once per idle tick. Returns whether work remains.
func (t *Tree) Step() bool { return t.q.TimeSlicedRead() }

// AbortReading cancels every in-flight read job: already-inserted
// nodes remain in the tree, in-flight Dirs are marked Aborted, and
// Aborted fires.
func (t *Tree) AbortReading() {
	t.q.Abort()
	t.observer.Aborted()
}

// OpenURL starts a scan of target, which is a local directory path, a
// "pkg:/<regex>" URL (packages whose name matches regex), or an
// "unpkg:/<dir>" URL (files under dir that no installed package
// claims). Clears any existing tree first.
func (t *Tree) OpenURL(target string) error {
	t.Clear()

	switch {
	case strings.HasPrefix(target, "pkg:/"):
		pattern := strings.TrimPrefix(target, "pkg:/")
		return t.openPkg(pattern)
	case strings.HasPrefix(target, "unpkg:/"):
		dir := strings.TrimPrefix(target, "unpkg:/")
		return t.openUnpkg(dir)
	default:
		return t.openLocal(target)
	}
}

func (t *Tree) openLocal(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("tree: cannot stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("tree: %s is not a directory", path)
	}
	root := model.NewDir(path, nil)
	t.root = root
	job := readjob.NewLocalDirReadJob(root, path, t.rules, t.crossFilesystems, t.sentinelName, t.logger)
	t.q.Enqueue(job)
	return nil
}

func (t *Tree) openPkg(pattern string) error {
	if t.pkgSource == nil {
		return fmt.Errorf("tree: no package source configured for pkg:/%s", pattern)
	}
	root := model.NewDir("pkg:/"+pattern, nil)
	root.Dir.Flags |= model.DirFlagPseudoDir
	t.root = root
	job := readjob.NewPkgReadJob(root, pattern, t.pkgSource, t.logger)
	t.q.Enqueue(job)
	return nil
}

func (t *Tree) openUnpkg(dir string) error {
	info, err := os.Lstat(dir)
	if err != nil {
		return fmt.Errorf("tree: cannot stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("tree: %s is not a directory", dir)
	}
	skip := map[string]bool{}
	if t.pkgSource != nil {
		pkgs, err := t.pkgSource.Packages(".*")
		if err != nil {
			return fmt.Errorf("tree: package query failed: %w", err)
		}
		for _, pkg := range pkgs {
			files, err := t.pkgSource.Files(pkg)
			if err != nil {
				continue
			}
			for _, f := range files {
				skip[f] = true
			}
		}
	}
	root := model.NewDir(dir, nil)
	t.root = root
	job := readjob.NewLocalDirReadJob(root, dir, t.rules, t.crossFilesystems, t.sentinelName, t.logger).WithSkipPaths(skip)
	t.q.Enqueue(job)
	return nil
}

// DeleteSubtree detaches item from its parent and discards it: any
// in-flight jobs under item are killed first (per spec.md §3's
// ownership note that a Dir must outlive its jobs), then item is
// unlinked with DeletingChild/ChildDeleted notifications bracketing
// the removal. Deleting the root clears the whole tree.
func (t *Tree) DeleteSubtree(item *model.Node) error {
	if item == nil {
		return fmt.Errorf("tree: cannot delete a nil node")
	}
	if item == t.root {
		t.observer.DeletingChild(item)
		t.Clear()
		t.observer.ChildDeleted(item)
		return nil
	}
	t.q.KillAll(item)
	t.observer.DeletingChild(item)
	item.Detach()
	t.observer.ChildDeleted(item)
	return nil
}

// Refresh re-scans each node in items: it is detached from its parent
// (deletingChild/childDeleted bracketing the removal), a fresh node is
// created from stat(item.URL()), and a new ReadJob is enqueued for it,
// per spec.md §4.7. deletingChild(old) precedes the first
// childAdded(new) for its replacement, per the ordering guarantee in
// §5.
func (t *Tree) Refresh(items []*model.Node) error {
	for _, item := range items {
		if err := t.refreshOne(item); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) refreshOne(item *model.Node) error {
	if item == t.root {
		url := item.URL()
		t.observer.DeletingChild(item)
		t.observer.ChildDeleted(item)
		if err := t.OpenURL(url); err != nil {
			return err
		}
		return nil
	}

	parent := item.Parent
	realParent := parent
	if realParent != nil && realParent.IsDotEntry() {
		realParent = realParent.Parent
	}
	url := item.URL()

	t.q.KillAll(item)
	t.observer.DeletingChild(item)
	item.Detach()
	t.observer.ChildDeleted(item)

	info, err := os.Lstat(url)
	if err != nil {
		// The item is simply gone; that is a valid post-refresh outcome
		// (spec.md §6 "Non-goals": no TOCTOU handling is attempted
		// beyond accepting that the item may no longer exist).
		return nil
	}

	name := item.Name
	if info.IsDir() {
		replacement := model.NewDir(name, nil)
		realParent.InsertChild(replacement)
		t.observer.ChildAdded(replacement)
		job := readjob.NewLocalDirReadJob(replacement, url, t.rules, t.crossFilesystems, t.sentinelName, t.logger)
		t.q.Enqueue(job)
		return nil
	}

	replacement := model.NewFile(name, nil)
	replacement.Mode = info.Mode()
	replacement.Size = info.Size()
	replacement.Mtime = info.ModTime()
	realParent.InsertChild(replacement)
	t.observer.ChildAdded(replacement)
	return nil
}

// WriteCache serialises the tree to path as a gzip-compressed cache
// file.
func (t *Tree) WriteCache(path string) error {
	if t.root == nil {
		return fmt.Errorf("tree: nothing to write, tree is empty")
	}
	return cache.WriteFile(t.root, path)
}

// ReadCache replaces the tree with the contents of the gzip-compressed
// cache file at path.
func (t *Tree) ReadCache(path string) error {
	t.Clear()
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("tree: cannot open cache file %s: %w", path, err)
	}
	defer f.Close()

	r, err := cache.NewReader(f, nil)
	if err != nil {
		return err
	}
	if err := r.ReadAll(); err != nil {
		return err
	}
	t.root = r.Root()
	if t.root != nil {
		t.root.FinalizeAll()
		t.root.SetReadState(model.StateCached)
	}
	return nil
}
