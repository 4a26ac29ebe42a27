//go:build !windows

package readjob

import (
	"os"
	"syscall"
)

func platformStat(info os.FileInfo) stat {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return stat{blocks: (info.Size() + 511) / 512}
	}
	return stat{
		inode:     st.Ino,
		dev:       uint64(st.Dev),
		blocks:    int64(st.Blocks),
		nlink:     uint64(st.Nlink),
		available: true,
	}
}
