package cache

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/qdirstat-go/qdirstat/internal/model"
)

// FormatError wraps a malformed header or an unparseable data line. The
// reader stops at the first FormatError and leaves any partial subtree
// already built in place, per the specification's CacheFormatError
// taxonomy entry.
type FormatError struct {
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("cache: line %d: %s", e.Line, e.Msg)
}

// Reader incrementally parses a cache stream. Construct with NewReader,
// then drive it with Step until Done() is true (or an error occurs).
//
// If constructed with a non-nil attach target, the reader merges entries into that
// existing tree (each directory line is resolved via Locate against
// it, falling back to discarding the line if no match is found);
// otherwise it builds a brand new tree from scratch, and the first
// directory line becomes the new root.
type Reader struct {
	sc         *bufio.Scanner
	gz         *gzip.Reader
	lineNo     int
	headerSeen bool

	attachRoot bool
	root       *model.Node
	current    *model.Node // directory context for upcoming non-D lines
	currentOK  bool        // false when current's D line failed to resolve
	byPath     map[string]*model.Node

	done bool
	err  error

	inserted []*model.Node // nodes created since the last TakeInserted call
}

// TakeInserted returns every node the reader has created since the
// last call (or since construction) and clears its internal buffer.
// CacheReadJob uses this to report NewChildren per Step, the same way
// a LocalDirReadJob reports its batch, so observers receive the same
// childAdded notification regardless of which job variant produced the
// node.
func (cr *Reader) TakeInserted() []*model.Node {
	out := cr.inserted
	cr.inserted = nil
	return out
}

// NewReader wraps r (a gzip-compressed cache stream). Pass an existing
// node to merge into it; pass nil to build a fresh tree, in which case
// the cache's first directory line becomes the returned root.
func NewReader(r io.Reader, attachTo *model.Node) (*Reader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("cache: not a gzip stream: %w", err)
	}
	cr := &Reader{
		sc:     bufio.NewScanner(gz),
		gz:     gz,
		byPath: make(map[string]*model.Node),
	}
	cr.sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if attachTo != nil {
		cr.attachRoot = true
		cr.root = attachTo
		cr.byPath[attachTo.URL()] = attachTo
	}
	return cr, nil
}

// Root returns the tree root once parsing has produced one: either the
// attach target, or (in fresh mode) the node created from the first
// directory line.
func (cr *Reader) Root() *model.Node { return cr.root }

// Done reports whether the stream is fully consumed (or aborted after
// an error).
func (cr *Reader) Done() bool { return cr.done }

// Err returns the first error encountered, if any.
func (cr *Reader) Err() error { return cr.err }

// Step consumes up to maxLines lines, header, blank and comment lines
// included (bounding the latency of a
// single scheduler time slice on a large cache, per the
// specification's CacheReadJob contract), returning how many lines
// were consumed. It stops early if the stream ends or a FormatError
// occurs.
func (cr *Reader) Step(maxLines int) int {
	if cr.done || cr.err != nil {
		return 0
	}
	consumed := 0
	for consumed < maxLines && cr.sc.Scan() {
		cr.lineNo++
		line := cr.sc.Text()
		consumed++

		if !cr.headerSeen {
			if !isValidHeader(strings.TrimSpace(line)) {
				cr.err = &FormatError{Line: cr.lineNo, Msg: "missing qdirstat/kdirstat cache header"}
				cr.done = true
				return consumed
			}
			cr.headerSeen = true
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if err := cr.parseLine(line); err != nil {
			cr.err = err
			cr.done = true
			return consumed
		}
	}
	if scanErr := cr.sc.Err(); scanErr != nil {
		cr.err = scanErr
		cr.done = true
		return consumed
	}
	if consumed < maxLines {
		// Scan() returned false inside the loop: stream exhausted.
		cr.done = true
	}
	return consumed
}

func (cr *Reader) parseLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return &FormatError{Line: cr.lineNo, Msg: "too few fields"}
	}
	typ := EntryType(fields[0])

	if typ == TypeDir {
		return cr.parseDirLine(fields)
	}
	return cr.parseEntryLine(typ, fields)
}

func (cr *Reader) parseDirLine(fields []string) error {
	p, err := decodeName(fields[1])
	if err != nil {
		return &FormatError{Line: cr.lineNo, Msg: err.Error()}
	}
	size, err := parseSize(fields[2])
	if err != nil {
		return &FormatError{Line: cr.lineNo, Msg: err.Error()}
	}
	mtimeSecs, err := parseMtimeHex(fields[3])
	if err != nil {
		return &FormatError{Line: cr.lineNo, Msg: err.Error()}
	}

	if existing, ok := cr.byPath[p]; ok {
		cr.current = existing
		cr.currentOK = true
		return nil
	}

	if cr.attachRoot {
		if found := cr.root.Locate(strings.TrimPrefix(p, cr.root.URL()), false); found != nil && found.IsDir() {
			cr.byPath[p] = found
			cr.current = found
			cr.currentOK = true
			return nil
		}
		cr.current = nil
		cr.currentOK = false
		return nil
	}

	parentPath := path.Dir(p)
	name := path.Base(p)
	var node *model.Node
	if cr.root == nil {
		node = model.NewDir(p, nil)
		cr.root = node
	} else if parent, ok := cr.byPath[parentPath]; ok {
		node = model.NewDir(name, parent)
		parent.InsertChild(node)
	} else {
		return &FormatError{Line: cr.lineNo, Msg: fmt.Sprintf("directory %q has no known parent", p)}
	}
	node.Size = size
	node.Mtime = time.Unix(mtimeSecs, 0)
	cr.byPath[p] = node
	cr.current = node
	cr.currentOK = true
	cr.inserted = append(cr.inserted, node)
	return nil
}

func (cr *Reader) parseEntryLine(typ EntryType, fields []string) error {
	if !cr.currentOK || cr.current == nil {
		return nil // current D line was discarded; skip its children
	}
	name, err := decodeName(fields[1])
	if err != nil {
		return &FormatError{Line: cr.lineNo, Msg: err.Error()}
	}
	size, err := parseSize(fields[2])
	if err != nil {
		return &FormatError{Line: cr.lineNo, Msg: err.Error()}
	}
	mtimeSecs, err := parseMtimeHex(fields[3])
	if err != nil {
		return &FormatError{Line: cr.lineNo, Msg: err.Error()}
	}

	n := model.NewFile(name, nil)
	n.Size = size
	n.Mtime = time.Unix(mtimeSecs, 0)
	n.Mode = modeForType(typ)

	// blocks:/links: are "key: value" pairs split across two
	// whitespace-delimited fields; scan them pairwise.
	var blocksSet bool
	for i := 4; i+1 < len(fields); i += 2 {
		key := strings.TrimSuffix(fields[i], ":")
		val := fields[i+1]
		switch key {
		case "blocks":
			var blocks int64
			if _, err := fmt.Sscanf(val, "%d", &blocks); err == nil {
				n.Blocks = blocks
				n.Flags |= model.FlagSparseFile
				blocksSet = true
			}
		case "links":
			var links int64
			if _, err := fmt.Sscanf(val, "%d", &links); err == nil {
				n.Links = uint64(links)
			}
		}
	}
	// An explicit "blocks: 0" means a fully-sparse file with nothing
	// allocated; only a genuinely absent blocks: key falls back to the
	// size-derived estimate.
	if !blocksSet {
		n.Blocks = (n.Size + 511) / 512
	}

	cr.current.InsertChild(n)
	cr.inserted = append(cr.inserted, n)
	return nil
}

func modeForType(t EntryType) os.FileMode {
	switch t {
	case TypeSymLink:
		return os.ModeSymlink
	case TypeBlockDev:
		return os.ModeDevice
	case TypeCharDev:
		return os.ModeDevice | os.ModeCharDevice
	case TypeFIFO:
		return os.ModeNamedPipe
	case TypeSocket:
		return os.ModeSocket
	default:
		return 0
	}
}

// ReadAll drains the reader in large bounded batches until finished,
// for callers (tests, Tree.readCache) that want synchronous behavior
// rather than cooperative stepping.
func (cr *Reader) ReadAll() error {
	for !cr.Done() {
		cr.Step(1000)
	}
	return cr.Err()
}
