package cache

import (
	"os"
)

// PeekFirstDir opens the cache file at path and returns the path of its
// first directory (D) line, without building any tree. Used by a
// LocalDirReadJob to decide, per the specification's §4.3 cache-sentinel
// rule, whether a discovered ".qdirstat.cache.gz" file should replace
// the directory currently being scanned.
func PeekFirstDir(path string) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	cr, err := NewReader(f, nil)
	if err != nil {
		return "", false, err
	}
	for !cr.Done() {
		before := cr.root
		cr.Step(1)
		if cr.root != nil && before == nil {
			return cr.root.URL(), true, nil
		}
		if cr.Err() != nil {
			return "", false, cr.Err()
		}
	}
	return "", false, nil
}

// DefaultSentinelName is the default cache filename a LocalDirReadJob
// recognises inside a scanned directory.
const DefaultSentinelName = ".qdirstat.cache.gz"
