// Package queue implements the time-sliced, cooperative read-job
// scheduler described in spec.md §4.4/§5: a FIFO of Jobs, one Step per
// time slice, with the ordering guarantee that every childAdded
// notification for a directory's direct children precedes its
// finalizeLocal notification. Grounded on the teacher's
// scanner.ParallelScanner dispatch loop, restructured from a
// goroutine-per-directory worker pool into the single-threaded stepper
// the specification mandates (a host with an event loop drives it one
// Step per idle tick; a host without one can call RunUntilIdle).
package queue

import (
	"github.com/sirupsen/logrus"

	"github.com/qdirstat-go/qdirstat/internal/model"
	"github.com/qdirstat-go/qdirstat/internal/readjob"
)

// Observer receives the notifications §5/§6 require external
// collaborators to subscribe to. A nil method receiver is never
// called; embed NopObserver to satisfy the interface selectively.
type Observer interface {
	ChildAdded(child *model.Node)
	DeletingChild(child *model.Node)
	FinalizeLocal(dir *model.Node)
	StartingReading()
	Finished()
	Aborted()
	ProgressInfo(dir *model.Node)
}

// NopObserver implements Observer with no-ops; embed it to avoid
// defining every method.
type NopObserver struct{}

func (NopObserver) ChildAdded(*model.Node)    {}
func (NopObserver) DeletingChild(*model.Node) {}
func (NopObserver) FinalizeLocal(*model.Node) {}
func (NopObserver) StartingReading()          {}
func (NopObserver) Finished()                 {}
func (NopObserver) Aborted()                  {}
func (NopObserver) ProgressInfo(*model.Node)  {}

// Queue is a FIFO of read jobs, stepped one at a time.
type Queue struct {
	jobs     []readjob.Job
	observer Observer
	logger   *logrus.Logger
}

// New creates an empty queue. observer may be NopObserver{} if the
// caller does not need notifications.
func New(observer Observer, logger *logrus.Logger) *Queue {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Queue{observer: observer, logger: logger}
}

// Len reports how many jobs remain queued (including the head job
// currently being stepped).
func (q *Queue) Len() int { return len(q.jobs) }

// Enqueue appends job to the queue, bumping its Dir's (and every
// ancestor's) pendingReadJobs counter. If the queue was empty,
// StartingReading fires.
func (q *Queue) Enqueue(job readjob.Job) {
	wasEmpty := len(q.jobs) == 0
	job.Dir().ReadJobAdded()
	q.jobs = append(q.jobs, job)
	if wasEmpty {
		q.observer.StartingReading()
	}
}

// TimeSlicedRead performs exactly one read() call on the head job, per
// the specification's time-slice contract, and returns whether the
// queue still has work afterward. A host event loop calls this once
// per idle tick; RunUntilIdle calls it in a loop for hosts without one.
func (q *Queue) TimeSlicedRead() bool {
	if len(q.jobs) == 0 {
		return false
	}
	job := q.jobs[0]
	result := job.Step()

	for _, c := range result.NewChildren {
		q.observer.ChildAdded(c)
	}

	if result.ReplayFromCache {
		dir := job.Dir()
		// Only descendant jobs are killed here (includeRoot=false): the
		// head job itself is still q.jobs[0] and is retired below via
		// jobFinished, which requires it still be present at the head.
		q.killSubtreeJobsLocked(dir, false)
		dir.DetachAllChildren(func(c *model.Node) { q.observer.DeletingChild(c) })
		q.jobFinished(job)
		q.Enqueue(result.CacheJob)
		return len(q.jobs) > 0
	}

	for _, nj := range result.NewJobs {
		q.Enqueue(nj)
	}

	if result.Done {
		q.observer.FinalizeLocal(job.Dir())
		q.jobFinished(job)
	} else {
		q.observer.ProgressInfo(job.Dir())
	}
	return len(q.jobs) > 0
}

// jobFinished removes job from the head of the queue (it must be the
// head: jobs always finish in FIFO order since only the head is ever
// stepped), decrements its pending-job counters, and emits Finished
// once the queue drains.
func (q *Queue) jobFinished(job readjob.Job) {
	if len(q.jobs) == 0 || q.jobs[0] != job {
		panic("queue: jobFinished called for a job that is not the current head")
	}
	q.jobs = q.jobs[1:]
	job.Dir().ReadJobFinished()
	if len(q.jobs) == 0 {
		q.observer.Finished()
	}
}

// RunUntilIdle drives TimeSlicedRead to completion synchronously, for
// hosts (CLI, tests) with no event loop of their own, per the
// specification's design-notes guidance.
func (q *Queue) RunUntilIdle() {
	for q.TimeSlicedRead() {
	}
}

// Abort drains the queue: every in-flight job's Dir (and its ancestor
// chain) is marked Aborted, pending-job counters are unwound to keep
// the invariant in §8 property 4 intact, and the jobs are discarded.
// The caller (Tree.abortReading) emits the Aborted notification once
// this returns; already-inserted nodes remain in the tree.
func (q *Queue) Abort() {
	for _, job := range q.jobs {
		job.Dir().ReadJobAborted()
		job.Dir().ReadJobFinished()
	}
	q.jobs = nil
}

// KillAll removes and discards every queued job whose Dir lies within
// subtree (subtree itself included), without marking anything aborted:
// the subtree is about to be deleted outright, so its read state no
// longer matters, but ancestors outside the subtree still need their
// pendingReadJobs counters unwound.
func (q *Queue) KillAll(subtree *model.Node) {
	q.killSubtreeJobsLocked(subtree, true)
}

// killSubtreeJobsLocked removes and discards every queued job whose Dir
// is a strict descendant of subtree, plus subtree's own job when
// includeRoot is true.
func (q *Queue) killSubtreeJobsLocked(subtree *model.Node, includeRoot bool) {
	kept := q.jobs[:0:0]
	for _, job := range q.jobs {
		d := job.Dir()
		affected := d != subtree && d.IsDescendantOf(subtree)
		if d == subtree && includeRoot {
			affected = true
		}
		if affected {
			d.ReadJobFinished()
			continue
		}
		kept = append(kept, job)
	}
	q.jobs = kept
}
