package readjob

import "os"

// stat holds the platform metadata a LocalDirReadJob needs beyond what
// os.FileInfo exposes directly. Adapted from the teacher scanner's
// stat_unix.go / stat_windows.go pair, which extracted the same fields
// for hardlink and allocated-block accounting.
type stat struct {
	inode     uint64
	dev       uint64
	blocks    int64 // 512-byte units actually allocated
	nlink     uint64
	available bool // false on platforms without syscall.Stat_t
}

func getStat(info os.FileInfo) stat {
	return platformStat(info)
}
