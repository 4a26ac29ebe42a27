//go:build windows

package readjob

import "os"

// platformStat on Windows falls back to apparent size for allocated
// blocks. Inode/device/hardlink detection is not available.
func platformStat(info os.FileInfo) stat {
	return stat{blocks: (info.Size() + 511) / 512}
}
