package readjob

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/qdirstat-go/qdirstat/internal/cache"
	"github.com/qdirstat-go/qdirstat/internal/excludes"
	"github.com/qdirstat-go/qdirstat/internal/model"
)

// sparseTolerance is the slack applied before a regular file's
// allocated blocks are considered meaningfully short of its logical
// size (filesystems round allocations up to a block, so an exact
// comparison would flag ordinary small files as sparse).
const sparseTolerance = 4096

// LocalDirReadJob performs a single opendir-and-stat pass over one
// local directory, per the algorithm the specification lays out in
// §4.3. Grounded on the teacher's ParallelScanner.scanDir, restructured
// from a goroutine-per-directory worker into the single non-yielding
// step a cooperative ReadJobQueue calls once per time slice.
type LocalDirReadJob struct {
	dir              *model.Node
	path             string
	rules            *excludes.List
	crossFilesystems bool
	sentinelName     string
	logger           *logrus.Logger
	finished         bool

	// skipPaths, when non-nil, holds absolute file paths to leave out of
	// the scan entirely (subdirectories are still descended into). Used
	// by the "unpkg:/<dir>" URL form to scan only files no installed
	// package claims ownership of.
	skipPaths map[string]bool

	// preloadedEntries, when non-nil, is used instead of a fresh
	// os.ReadDir(path) in Step: set when the parent directory's own
	// Step already had to list this directory's children to evaluate a
	// CheckAnyFileChild exclude rule against it, so there is no need to
	// list it again.
	preloadedEntries []os.DirEntry
}

// NewLocalDirReadJob constructs a job that will populate dir from path
// on its next Step call.
func NewLocalDirReadJob(dir *model.Node, path string, rules *excludes.List, crossFilesystems bool, sentinelName string, logger *logrus.Logger) *LocalDirReadJob {
	if sentinelName == "" {
		sentinelName = cache.DefaultSentinelName
	}
	return &LocalDirReadJob{
		dir:              dir,
		path:             path,
		rules:            rules,
		crossFilesystems: crossFilesystems,
		sentinelName:     sentinelName,
		logger:           logger,
	}
}

func (j *LocalDirReadJob) Dir() *model.Node { return j.dir }

// WithSkipPaths restricts the scan to leave out the given absolute
// file paths (directories are still descended into). Returns j for
// chaining.
func (j *LocalDirReadJob) WithSkipPaths(skip map[string]bool) *LocalDirReadJob {
	j.skipPaths = skip
	return j
}

// WithPreloadedEntries supplies entries already read by a caller (e.g.
// the parent directory's excluded() check), letting Step skip its own
// os.ReadDir call. Returns j for chaining.
func (j *LocalDirReadJob) WithPreloadedEntries(entries []os.DirEntry) *LocalDirReadJob {
	j.preloadedEntries = entries
	return j
}

// Step performs the entire directory read in one call: per §5, a
// single directory's entries are never interleaved with any other
// work, so this job always reports Done=true.
func (j *LocalDirReadJob) Step() Result {
	if j.finished {
		return Result{Done: true}
	}
	j.finished = true
	j.dir.SetReadState(model.StateReading)

	if selfInfo, statErr := os.Lstat(j.path); statErr == nil {
		applyDirStat(j.dir, selfInfo)
	}

	entries := j.preloadedEntries
	if entries == nil {
		var err error
		entries, err = os.ReadDir(j.path)
		if err != nil {
			if os.IsPermission(err) {
				j.dir.SetReadState(model.StatePermissionDenied)
			} else {
				j.dir.SetReadState(model.StateError)
			}
			j.bumpErrSubDirCount()
			if j.logger != nil {
				j.logger.WithError(err).WithField("path", j.path).Warn("cannot read directory")
			}
			j.dir.FinalizeLocal()
			return Result{Done: true, Err: err}
		}
	}

	var newChildren []*model.Node
	var newJobs []Job

	for _, e := range entries {
		name := e.Name()
		fullPath := filepath.Join(j.path, name)
		info, statErr := os.Lstat(fullPath)
		if statErr != nil {
			leaf := model.NewFile(name, nil)
			leaf.Flags |= model.FlagStatError
			j.dir.InsertChild(leaf)
			newChildren = append(newChildren, leaf)
			if j.logger != nil {
				j.logger.WithError(statErr).WithField("path", fullPath).Debug("lstat failed")
			}
			continue
		}

		if info.IsDir() {
			child, job := j.readSubdir(name, fullPath, info)
			newChildren = append(newChildren, child)
			if job != nil {
				newJobs = append(newJobs, job)
			}
			continue
		}

		if name == j.sentinelName {
			if firstDir, ok, peekErr := cache.PeekFirstDir(fullPath); peekErr == nil && ok && firstDir == j.dir.URL() {
				cacheJob := NewCacheReadJob(j.dir, fullPath, j.logger)
				// Entries already inserted earlier in this same Step
				// (e.g. dotfiles sorting before the sentinel name)
				// must still be reported via NewChildren: the queue
				// announces ChildAdded for them before DetachAllChildren
				// tears them back down for the cache replay, so an
				// observer mirroring the tree never sees a
				// DeletingChild for a node it was never told about.
				return Result{NewChildren: newChildren, ReplayFromCache: true, CacheJob: cacheJob, Done: true}
			}
		}

		if j.skipPaths[fullPath] {
			continue
		}

		leaf := model.NewFile(name, nil)
		applyLeafStat(leaf, info)
		j.dir.InsertChild(leaf)
		newChildren = append(newChildren, leaf)
	}

	j.dir.SetReadState(model.StateFinished)
	j.dir.FinalizeLocal()
	return Result{NewChildren: newChildren, NewJobs: newJobs, Done: true}
}

func (j *LocalDirReadJob) readSubdir(name, fullPath string, info os.FileInfo) (*model.Node, Job) {
	child := model.NewDir(name, nil)
	applyDirStat(child, info)

	excluded, entries := j.excluded(fullPath, name)
	if excluded {
		child.Dir.Flags |= model.DirFlagExcluded
		j.dir.InsertChild(child)
		child.SetReadState(model.StateOnRequestOnly)
		child.FinalizeLocal()
		return child, nil
	}

	if child.Device != j.dir.Device {
		child.Dir.Flags |= model.DirFlagMountPoint
		j.dir.InsertChild(child)
		if !j.crossFilesystems {
			child.SetReadState(model.StateOnRequestOnly)
			child.FinalizeLocal()
			return child, nil
		}
		return child, NewLocalDirReadJob(child, fullPath, j.rules, j.crossFilesystems, j.sentinelName, j.logger).WithSkipPaths(j.skipPaths).WithPreloadedEntries(entries)
	}

	j.dir.InsertChild(child)
	return child, NewLocalDirReadJob(child, fullPath, j.rules, j.crossFilesystems, j.sentinelName, j.logger).WithSkipPaths(j.skipPaths).WithPreloadedEntries(entries)
}

// childEntry is the minimal excludes.DirEntry view of a direct,
// unread child, built straight from os.ReadDir without a full lstat.
type childEntry struct {
	name     string
	fullPath string
}

func (e childEntry) Name() string     { return e.name }
func (e childEntry) FullPath() string { return e.fullPath }

// excluded reports whether fullPath/name itself matches an exclude
// rule, or a CheckAnyFileChild rule matches one of its direct
// children, per spec.md §4.2's "exclude a directory if any direct
// file child matches" rule, grounded on
// original_source/src/ExcludeRules.cpp's CheckAnyFileChild(). When it
// has to list fullPath to evaluate a CheckAnyFileChild rule, the
// listing is also returned so the caller can hand it to fullPath's own
// LocalDirReadJob instead of listing the same directory twice.
func (j *LocalDirReadJob) excluded(fullPath, name string) (bool, []os.DirEntry) {
	if j.rules.Match(fullPath, name) != nil {
		return true, nil
	}
	if !j.rules.HasAnyFileChildRules() {
		return false, nil
	}
	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return false, nil
	}
	children := make([]excludes.DirEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		children = append(children, childEntry{name: e.Name(), fullPath: filepath.Join(fullPath, e.Name())})
	}
	return j.rules.MatchAnyChild(children) != nil, entries
}

func (j *LocalDirReadJob) bumpErrSubDirCount() {
	for d := j.dir; d != nil; d = d.Parent {
		if d.Dir == nil {
			continue
		}
		d.Dir.ErrSubDirCount++
	}
}

func applyDirStat(n *model.Node, info os.FileInfo) {
	n.Mode = info.Mode()
	n.Mtime = info.ModTime()
	st := getStat(info)
	if st.available {
		n.Device = st.dev
		n.Inode = st.inode
		n.Blocks = st.blocks
	}
}

func applyLeafStat(n *model.Node, info os.FileInfo) {
	n.Mode = info.Mode()
	n.Size = info.Size()
	n.Mtime = info.ModTime()
	st := getStat(info)
	if !st.available {
		return
	}
	n.Device = st.dev
	n.Inode = st.inode
	n.Blocks = st.blocks
	n.Links = st.nlink
	if info.Mode().IsRegular() && st.blocks*512+sparseTolerance < info.Size() {
		n.Flags |= model.FlagSparseFile
	}
}
