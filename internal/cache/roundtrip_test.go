package cache

import (
	"bytes"
	stdgzip "compress/gzip"
	"errors"
	"testing"
	"time"

	"github.com/qdirstat-go/qdirstat/internal/model"
)

func buildSampleTree() *model.Node {
	root := model.NewDir("/t", nil)
	root.Mtime = time.Unix(1000, 0)

	plain := model.NewFile("plain.txt", nil)
	plain.Size = 42
	plain.Mtime = time.Unix(2000, 0)
	root.InsertChild(plain)

	sparse := model.NewFile("sparse.img", nil)
	sparse.Size = 1048576
	sparse.Blocks = 8
	sparse.Flags |= model.FlagSparseFile
	sparse.Mtime = time.Unix(3000, 0)
	root.InsertChild(sparse)

	hole := model.NewFile("hole.img", nil)
	hole.Size = 1048576
	hole.Blocks = 0
	hole.Flags |= model.FlagSparseFile
	hole.Mtime = time.Unix(3500, 0)
	root.InsertChild(hole)

	linkedA := model.NewFile("linkA", nil)
	linkedA.Size = 1000
	linkedA.Links = 2
	linkedA.Mtime = time.Unix(4000, 0)
	root.InsertChild(linkedA)

	sub := model.NewDir("sub", nil)
	sub.Mtime = time.Unix(5000, 0)
	root.InsertChild(sub)
	nested := model.NewFile("nested.txt", nil)
	nested.Size = 7
	nested.Mtime = time.Unix(6000, 0)
	sub.InsertChild(nested)

	root.FinalizeAll()
	return root
}

func TestCacheRoundTrip(t *testing.T) {
	orig := buildSampleTree()

	var buf bytes.Buffer
	if err := Write(orig, &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	cr, err := NewReader(&buf, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if err := cr.ReadAll(); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	got := cr.Root()
	if got == nil {
		t.Fatal("expected a root node")
	}

	assertSameShape(t, orig, got)
}

func assertSameShape(t *testing.T, want, got *model.Node) {
	t.Helper()
	if want.URL() != got.URL() {
		t.Fatalf("URL mismatch: want %q got %q", want.URL(), got.URL())
	}
	if want.IsDir() != got.IsDir() {
		t.Fatalf("%s: IsDir mismatch", want.URL())
	}
	if !want.IsDir() {
		if want.Size != got.Size {
			t.Fatalf("%s: size want %d got %d", want.URL(), want.Size, got.Size)
		}
		if !want.Mtime.Equal(got.Mtime) {
			t.Fatalf("%s: mtime want %v got %v", want.URL(), want.Mtime, got.Mtime)
		}
		if want.Flags&model.FlagSparseFile != 0 {
			if got.Flags&model.FlagSparseFile == 0 || got.Blocks != want.Blocks {
				t.Fatalf("%s: sparse blocks mismatch: want %d got %d", want.URL(), want.Blocks, got.Blocks)
			}
		}
		if want.Links > 1 && got.Links != want.Links {
			t.Fatalf("%s: links want %d got %d", want.URL(), want.Links, got.Links)
		}
		return
	}

	wantNonDir := want.NonDirChildren()
	gotNonDir := got.NonDirChildren()
	if len(wantNonDir) != len(gotNonDir) {
		t.Fatalf("%s: non-dir child count want %d got %d", want.URL(), len(wantNonDir), len(gotNonDir))
	}
	for _, wc := range wantNonDir {
		var match *model.Node
		for _, gc := range gotNonDir {
			if gc.Name == wc.Name {
				match = gc
				break
			}
		}
		if match == nil {
			t.Fatalf("%s: missing child %q after round-trip", want.URL(), wc.Name)
		}
		assertSameShape(t, wc, match)
	}

	wantSub := want.SubdirChildren()
	gotSub := got.SubdirChildren()
	if len(wantSub) != len(gotSub) {
		t.Fatalf("%s: subdir count want %d got %d", want.URL(), len(wantSub), len(gotSub))
	}
	for _, wc := range wantSub {
		var match *model.Node
		for _, gc := range gotSub {
			if gc.Name == wc.Name {
				match = gc
				break
			}
		}
		if match == nil {
			t.Fatalf("%s: missing subdir %q after round-trip", want.URL(), wc.Name)
		}
		assertSameShape(t, wc, match)
	}
}

func TestRejectsMissingHeader(t *testing.T) {
	var gz bytes.Buffer
	gw := stdgzip.NewWriter(&gz)
	gw.Write([]byte("not a cache header\nD /t 0 0x0\n"))
	gw.Close()

	cr, err := NewReader(&gz, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = cr.ReadAll()
	if err == nil {
		t.Fatal("expected a FormatError for a missing header")
	}
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FormatError, got %T: %v", err, err)
	}
}

func TestWellFormedStreamParsesCleanly(t *testing.T) {
	var gz bytes.Buffer
	if err := Write(model.NewDir("/empty", nil), &gz); err != nil {
		t.Fatal(err)
	}
	cr, err := NewReader(&gz, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := cr.ReadAll(); err != nil {
		t.Fatalf("expected a well-formed stream to parse cleanly, got %v", err)
	}
}

func TestFormatSizeUnits(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{1023, "1023"},
		{1024, "1K"},
		{1048576, "1M"},
		{1073741824, "1G"},
		{1500, "1500"},
	}
	for _, c := range cases {
		if got := formatSize(c.n); got != c.want {
			t.Errorf("formatSize(%d) = %q, want %q", c.n, got, c.want)
		}
	}
}

func TestParseSizeUnits(t *testing.T) {
	cases := []struct {
		s    string
		want int64
	}{
		{"0", 0},
		{"1023", 1023},
		{"1K", 1024},
		{"1M", 1048576},
		{"1G", 1073741824},
	}
	for _, c := range cases {
		got, err := parseSize(c.s)
		if err != nil {
			t.Fatalf("parseSize(%q): %v", c.s, err)
		}
		if got != c.want {
			t.Errorf("parseSize(%q) = %d, want %d", c.s, got, c.want)
		}
	}
}
