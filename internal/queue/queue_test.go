package queue

import (
	"testing"

	"github.com/qdirstat-go/qdirstat/internal/model"
	"github.com/qdirstat-go/qdirstat/internal/readjob"
)

// fakeJob lets tests control exactly how many Step calls a job takes
// and what it reports, without touching the filesystem.
type fakeJob struct {
	dir       *model.Node
	steps     []readjob.Result
	stepCount int
}

func (j *fakeJob) Dir() *model.Node { return j.dir }
func (j *fakeJob) Step() readjob.Result {
	r := j.steps[j.stepCount]
	j.stepCount++
	return r
}

type recordingObserver struct {
	NopObserver
	added      []*model.Node
	finalized  []*model.Node
	startedN   int
	finishedN  int
}

func (o *recordingObserver) ChildAdded(c *model.Node)    { o.added = append(o.added, c) }
func (o *recordingObserver) FinalizeLocal(d *model.Node) { o.finalized = append(o.finalized, d) }
func (o *recordingObserver) StartingReading()            { o.startedN++ }
func (o *recordingObserver) Finished()                   { o.finishedN++ }

func TestQueueOrderingChildAddedBeforeFinalizeLocal(t *testing.T) {
	root := model.NewDir("/t", nil)
	child := model.NewFile("f", root)

	obs := &recordingObserver{}
	q := New(obs, nil)

	job := &fakeJob{
		dir: root,
		steps: []readjob.Result{
			{NewChildren: []*model.Node{child}, Done: true},
		},
	}
	q.Enqueue(job)

	if obs.startedN != 1 {
		t.Fatalf("startedN = %d, want 1", obs.startedN)
	}

	more := q.TimeSlicedRead()
	if more {
		t.Fatal("expected queue to be drained after the single job finishes")
	}
	if len(obs.added) != 1 || obs.added[0] != child {
		t.Fatalf("ChildAdded not called with child: %v", obs.added)
	}
	if len(obs.finalized) != 1 || obs.finalized[0] != root {
		t.Fatalf("FinalizeLocal not called with root: %v", obs.finalized)
	}
	if obs.finishedN != 1 {
		t.Fatalf("finishedN = %d, want 1", obs.finishedN)
	}
}

func TestQueueIncrementalJobNotDoneKeepsRunning(t *testing.T) {
	root := model.NewDir("/t", nil)
	obs := &recordingObserver{}
	q := New(obs, nil)

	job := &fakeJob{
		dir: root,
		steps: []readjob.Result{
			{Done: false},
			{Done: false},
			{Done: true},
		},
	}
	q.Enqueue(job)

	for i := 0; i < 2; i++ {
		if !q.TimeSlicedRead() {
			t.Fatalf("step %d: expected queue to still have work", i)
		}
	}
	if q.TimeSlicedRead() {
		t.Fatal("expected queue drained after third step")
	}
	if obs.finishedN != 1 {
		t.Fatalf("finishedN = %d, want 1", obs.finishedN)
	}
}

func TestQueueAbortUnwindsPendingCounters(t *testing.T) {
	root := model.NewDir("/t", nil)
	sub := model.NewDir("sub", root)
	root.InsertChild(sub)

	q := New(nil, nil)
	rootJob := &fakeJob{dir: root, steps: []readjob.Result{{Done: false}}}
	subJob := &fakeJob{dir: sub, steps: []readjob.Result{{Done: false}}}
	q.Enqueue(rootJob)
	q.Enqueue(subJob)

	if root.Dir.PendingReadJobs != 2 {
		t.Fatalf("root pendingReadJobs = %d, want 2 (itself + sub)", root.Dir.PendingReadJobs)
	}

	q.Abort()

	if root.Dir.PendingReadJobs != 0 {
		t.Fatalf("root pendingReadJobs after abort = %d, want 0", root.Dir.PendingReadJobs)
	}
	if root.ReadState() != model.StateAborted {
		t.Fatalf("root readState = %v, want Aborted", root.ReadState())
	}
	if q.Len() != 0 {
		t.Fatalf("queue length after abort = %d, want 0", q.Len())
	}
}

func TestKillAllRemovesSubtreeJobsOnly(t *testing.T) {
	root := model.NewDir("/t", nil)
	a := model.NewDir("a", root)
	root.InsertChild(a)
	b := model.NewDir("b", root)
	root.InsertChild(b)

	q := New(nil, nil)
	aJob := &fakeJob{dir: a, steps: []readjob.Result{{Done: false}}}
	bJob := &fakeJob{dir: b, steps: []readjob.Result{{Done: false}}}
	q.Enqueue(aJob)
	q.Enqueue(bJob)

	q.KillAll(a)

	if q.Len() != 1 {
		t.Fatalf("queue length = %d, want 1 (only b's job left)", q.Len())
	}
	if a.Dir.PendingReadJobs != 0 {
		t.Fatalf("a pendingReadJobs = %d, want 0", a.Dir.PendingReadJobs)
	}
	if root.Dir.PendingReadJobs != 1 {
		t.Fatalf("root pendingReadJobs = %d, want 1 (only b's job)", root.Dir.PendingReadJobs)
	}
}
