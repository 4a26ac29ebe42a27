// Package readjob implements the polymorphic units of work that
// populate a Dir's children: a local directory read, a package-file
// enumeration, and a cache-file replay. Grounded on the teacher's
// scanner.ParallelScanner.scanDir (restructured from goroutine-per-
// directory concurrency into the single-step, cooperatively-scheduled
// jobs the specification calls for) and on klauspost/compress-backed
// cache parsing for the cache variant.
package readjob

import "github.com/qdirstat-go/qdirstat/internal/model"

// Job is a unit of work that populates a single Dir's direct children.
// Implementations must never block for more than one directory's worth
// of work (Local) or one bounded batch (Cache) per Step call, so the
// host scheduler can interleave other work between steps.
type Job interface {
	// Dir is the directory node this job populates.
	Dir() *model.Node

	// Step performs one read() call per the job's contract:
	//   - the first call transitions Dir to Reading and begins work;
	//   - later calls on an incremental job (Cache) continue the work;
	//   - later calls on a job that completed in one invocation (Local,
	//     Pkg) are no-ops.
	// It returns the children inserted into Dir during this step (for
	// observer notification), any new jobs that must be enqueued for
	// newly discovered subdirectories, and whether the job is now
	// finished and should be removed from the queue.
	Step() Result
}

// Result is the outcome of a single Step call.
type Result struct {
	NewChildren []*model.Node
	NewJobs     []Job
	Done        bool
	Err         error

	// ReplayFromCache is set when a LocalDirReadJob discovered a cache
	// sentinel file whose first directory matches Dir().URL(). The
	// caller (the queue/tree) must kill any other pending jobs under
	// Dir(), discard its partial subtree built so far, and enqueue
	// CacheJob in this job's place.
	ReplayFromCache bool
	CacheJob        Job
}
