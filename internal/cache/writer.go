package cache

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/klauspost/compress/gzip"

	"github.com/qdirstat-go/qdirstat/internal/model"
)

// errWriter wraps an io.Writer and captures the first write error;
// subsequent writes after an error are no-ops, avoiding a check after
// every line.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

// WriteFile serialises root to path as a gzip-compressed cache file,
// via a temp file in the same directory that is atomically renamed
// into place on success, so a partial cache is never left behind on
// error or interruption.
func WriteFile(root *model.Node, path string) (retErr error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".qdirstat-cache-*.tmp")
	if err != nil {
		return fmt.Errorf("cache: cannot create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if retErr != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := Write(root, tmp); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		if runtime.GOOS != "windows" {
			return err
		}
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return fmt.Errorf("cache: cannot replace %s: %w", path, err)
		}
		if err := os.Rename(tmpPath, path); err != nil {
			return err
		}
	}
	return nil
}

// Write serialises root onto out as a gzip-compressed stream. One line
// per node; every directory line (root and subdirectories alike) carries
// an absolute path, file lines the last path component only. A blank
// line separates each subdirectory's block from what precedes it.
func Write(root *model.Node, out io.Writer) error {
	gw := gzip.NewWriter(out)
	bw := bufio.NewWriterSize(gw, 64*1024)
	ew := &errWriter{w: bw}

	ew.printf("[qdirstat 1.0 cache file]\n")
	writeDir(ew, root)

	if ew.err != nil {
		return ew.err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return gw.Close()
}

func writeDir(ew *errWriter, dir *model.Node) {
	ew.printf("D %s %s %s\n", encodeName(dir.URL()), formatSize(dir.Size), formatMtimeHex(dir.Mtime.Unix()))

	for _, c := range dir.NonDirChildren() {
		writeEntry(ew, c)
	}
	for _, c := range dir.SubdirChildren() {
		ew.printf("\n")
		writeDir(ew, c)
	}
}

func writeEntry(ew *errWriter, n *model.Node) {
	if n.IsDir() {
		return
	}
	t := entryType(n)
	line := fmt.Sprintf("%s\t%s %s %s", t, encodeName(n.Name), formatSize(n.Size), formatMtimeHex(n.Mtime.Unix()))
	if n.Flags&model.FlagSparseFile != 0 {
		line += fmt.Sprintf(" blocks: %d", n.Blocks)
	}
	if n.Links > 1 {
		line += fmt.Sprintf(" links: %d", n.Links)
	}
	ew.printf("%s\n", line)
}

func entryType(n *model.Node) EntryType {
	switch {
	case n.IsSymLink():
		return TypeSymLink
	case n.IsBlockDevice():
		return TypeBlockDev
	case n.IsCharDevice():
		return TypeCharDev
	case n.IsFifo():
		return TypeFIFO
	case n.IsSocket():
		return TypeSocket
	default:
		return TypeFile
	}
}
