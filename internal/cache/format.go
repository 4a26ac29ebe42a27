// Package cache implements the gzip-compressed, line-oriented cache
// file format: CacheWriter serialises a fully-read tree, CacheReader
// parses it back. Grounded on the teacher's ops package, which wrote
// and read an ncdu-compatible JSON export/import pair with an atomic
// temp-file-plus-rename writer and a path-traversal-guarded reader;
// here the wire format is qdirstat's own line-oriented text grammar
// instead of JSON, and klauspost/compress/gzip supplies the framing
// the way the zoza1982-gdu analyzer uses it for its own snapshot
// format.
package cache

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// EntryType is the single-letter type tag on a cache data line.
type EntryType string

const (
	TypeFile      EntryType = "F"
	TypeDir       EntryType = "D"
	TypeSymLink   EntryType = "L"
	TypeBlockDev  EntryType = "BlockDev"
	TypeCharDev   EntryType = "CharDev"
	TypeFIFO      EntryType = "FIFO"
	TypeSocket    EntryType = "Socket"
)

// HeaderPrefixes are accepted as a valid first line, per the open
// question in the specification: both the legacy kdirstat header and
// the qdirstat header are accepted, with no version enforcement beyond
// presence of one of these forms.
var headerPrefixes = []string{"[kdirstat", "[qdirstat"}

func isValidHeader(line string) bool {
	for _, p := range headerPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// Record is one parsed data line.
type Record struct {
	Type   EntryType
	Path   string // absolute for Type==D; last component (percent-decoded) otherwise
	Size   int64
	Mtime  int64 // seconds since epoch
	Blocks int64 // -1 if absent
	Links  int64 // -1 if absent
}

// encodeName percent-encodes a name or path the way the writer must,
// so that whitespace and '%' inside filenames survive the
// whitespace-delimited line format.
func encodeName(s string) string {
	return (&url.URL{Path: s}).EscapedPath()
}

func decodeName(s string) (string, error) {
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("cache: cannot percent-decode %q: %w", s, err)
	}
	return u.Path, nil
}

// formatSize emits n in the largest unit (G/M/K, 1024-based) whose
// exact value losslessly represents it, else raw bytes.
func formatSize(n int64) string {
	const (
		k = 1024
		m = k * 1024
		g = m * 1024
	)
	switch {
	case n != 0 && n%g == 0:
		return strconv.FormatInt(n/g, 10) + "G"
	case n != 0 && n%m == 0:
		return strconv.FormatInt(n/m, 10) + "M"
	case n != 0 && n%k == 0:
		return strconv.FormatInt(n/k, 10) + "K"
	default:
		return strconv.FormatInt(n, 10)
	}
}

// parseSize parses a decimal value with an optional K/M/G (1024-based)
// suffix.
func parseSize(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("cache: empty size field")
	}
	mult := int64(1)
	switch s[len(s)-1] {
	case 'K', 'k':
		mult = 1024
		s = s[:len(s)-1]
	case 'M', 'm':
		mult = 1024 * 1024
		s = s[:len(s)-1]
	case 'G', 'g':
		mult = 1024 * 1024 * 1024
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cache: invalid size %q: %w", s, err)
	}
	return n * mult, nil
}

func formatMtimeHex(secs int64) string {
	return fmt.Sprintf("0x%x", secs)
}

func parseMtimeHex(s string) (int64, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	n, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("cache: invalid mtime %q: %w", s, err)
	}
	return n, nil
}
