package readjob

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/qdirstat-go/qdirstat/internal/cache"
	"github.com/qdirstat-go/qdirstat/internal/model"
)

// cacheBatchSize bounds how many cache lines a single CacheReadJob.Step
// call consumes, per the specification's "≈1000 lines per step" rule
// for bounding latency on large caches.
const cacheBatchSize = 1000

// CacheReadJob replays a gzip-compressed cache file into an existing
// Dir, in bounded batches so a large cache does not monopolise a
// scheduler time slice. Unlike LocalDirReadJob it is genuinely
// incremental: repeated Step calls continue consuming the stream.
type CacheReadJob struct {
	dir    *model.Node
	path   string
	logger *logrus.Logger

	f      *os.File
	reader *cache.Reader
	opened bool
}

// NewCacheReadJob constructs a job that will replay the cache file at
// path into dir.
func NewCacheReadJob(dir *model.Node, path string, logger *logrus.Logger) *CacheReadJob {
	return &CacheReadJob{dir: dir, path: path, logger: logger}
}

func (j *CacheReadJob) Dir() *model.Node { return j.dir }

func (j *CacheReadJob) Step() Result {
	if !j.opened {
		j.opened = true
		j.dir.SetReadState(model.StateReading)
		f, err := os.Open(j.path)
		if err != nil {
			j.dir.SetReadState(model.StateError)
			j.dir.FinalizeLocal()
			return Result{Done: true, Err: err}
		}
		j.f = f
		r, err := cache.NewReader(f, j.dir)
		if err != nil {
			f.Close()
			j.dir.SetReadState(model.StateError)
			j.dir.FinalizeLocal()
			return Result{Done: true, Err: err}
		}
		j.reader = r
	}

	j.reader.Step(cacheBatchSize)
	newChildren := j.reader.TakeInserted()

	if !j.reader.Done() {
		return Result{Done: false, NewChildren: newChildren}
	}

	j.f.Close()
	if err := j.reader.Err(); err != nil {
		j.dir.SetReadState(model.StateError)
		if j.logger != nil {
			j.logger.WithError(err).WithField("path", j.path).Warn("cache format error")
		}
		j.dir.FinalizeLocal()
		return Result{Done: true, Err: err, NewChildren: newChildren}
	}

	j.dir.SetReadState(model.StateFinished)
	j.dir.FinalizeAll()
	return Result{Done: true, NewChildren: newChildren}
}
