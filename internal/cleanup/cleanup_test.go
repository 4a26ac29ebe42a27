package cleanup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/qdirstat-go/qdirstat/internal/model"
)

// fakeRunner records every invocation and reports completion
// synchronously, so tests don't need to coordinate with a goroutine.
type fakeRunner struct {
	calls []string
}

func (r *fakeRunner) Run(shell, script, workingDir string, item *model.Node, sink OutputSink) error {
	r.calls = append(r.calls, script)
	sink.AddLine(item, "ok")
	sink.ProcessFinished(item, 0, nil)
	return nil
}

func TestWorksForGatesOnActiveAndKind(t *testing.T) {
	root := model.NewDir("/t", nil)
	dir := model.NewDir("d", root)
	root.InsertChild(dir)
	file := model.NewFile("f", nil)
	root.InsertChild(file)

	c := &Cleanup{Active: true, WorksForDir: true, WorksForFile: false}
	if !c.WorksFor(dir) {
		t.Fatal("expected WorksFor(dir) to be true")
	}
	if c.WorksFor(file) {
		t.Fatal("expected WorksFor(file) to be false")
	}

	c.Active = false
	if c.WorksFor(dir) {
		t.Fatal("an inactive cleanup must never match")
	}
}

func TestExpandIsIdempotentAndQuotesArguments(t *testing.T) {
	root := model.NewDir("/home/user", nil)
	file := model.NewFile("my file.txt", nil)
	root.InsertChild(file)

	const template = "rm %p"
	once := Expand(template, file)
	twice := Expand(once, file)
	if once != twice {
		t.Fatalf("Expand is not idempotent: once=%q twice=%q", once, twice)
	}
	if !containsSubstring(once, "'/home/user/my file.txt'") {
		t.Fatalf("expected quoted path in %q", once)
	}
}

func TestExpandLeavesPlainTemplateUnchanged(t *testing.T) {
	root := model.NewDir("/t", nil)
	file := model.NewFile("f", nil)
	root.InsertChild(file)

	const template = "echo hello"
	if got := Expand(template, file); got != template {
		t.Fatalf("Expand(%q) = %q, want unchanged", template, got)
	}
}

func TestQuoteShellArgEscapesEmbeddedQuotes(t *testing.T) {
	got := quoteShellArg(`it's`)
	want := `'it'\''s'`
	if got != want {
		t.Fatalf("quoteShellArg = %q, want %q", got, want)
	}
}

// TestExecuteRecursesPostOrder exercises the Recurse=true path: every
// descendant runs before item itself, subdirectories before files.
func TestExecuteRecursesPostOrder(t *testing.T) {
	root := model.NewDir("/t", nil)
	sub := model.NewDir("sub", root)
	root.InsertChild(sub)
	nested := model.NewFile("nested", nil)
	sub.InsertChild(nested)
	leaf := model.NewFile("leaf", nil)
	root.InsertChild(leaf)

	c := &Cleanup{
		Title:        "t",
		Command:      "rm %p",
		Active:       true,
		Recurse:      true,
		WorksForDir:  true,
		WorksForFile: true,
	}
	runner := &fakeRunner{}
	sink := &discardSink{}
	if err := c.Execute(root, runner, sink); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// sub's subtree (nested, then sub) must precede root's own leaf and
	// root itself.
	if len(runner.calls) != 4 {
		t.Fatalf("calls = %v, want 4 entries", runner.calls)
	}
	rootIdx, subIdx, nestedIdx, leafIdx := -1, -1, -1, -1
	for i, call := range runner.calls {
		switch {
		case containsSubstring(call, "nested"):
			nestedIdx = i
		case containsSubstring(call, "'sub'") || containsSubstring(call, "/sub'"):
			subIdx = i
		case containsSubstring(call, "leaf"):
			leafIdx = i
		case containsSubstring(call, "/t'"):
			rootIdx = i
		}
	}
	if nestedIdx < 0 || subIdx < 0 || leafIdx < 0 || rootIdx < 0 {
		t.Fatalf("could not locate all four calls in %v", runner.calls)
	}
	if !(nestedIdx < subIdx && subIdx < leafIdx && leafIdx < rootIdx) {
		t.Fatalf("expected post-order (nested<sub<leaf<root), got indices nested=%d sub=%d leaf=%d root=%d",
			nestedIdx, subIdx, leafIdx, rootIdx)
	}
}

// TestNewHardDeleteCleanupRemovesFilesOnDisk exercises the built-in
// native-delete action end to end: it must actually remove the target
// from disk (not merely report success) and report completion through
// the sink, with no Command/Shell ever resolved.
func TestNewHardDeleteCleanupRemovesFilesOnDisk(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "victim")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(target, "f"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	root := model.NewDir(dir, nil)
	victim := model.NewDir("victim", root)
	root.InsertChild(victim)

	c := NewHardDeleteCleanup()
	if !c.WorksFor(victim) {
		t.Fatal("expected the hard-delete cleanup to work for a directory")
	}

	var finished bool
	sink := &recordingSink{onFinished: func(item *model.Node, exitCode int, err error) {
		finished = true
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if exitCode != 0 {
			t.Fatalf("exitCode = %d, want 0", exitCode)
		}
	}}

	if err := c.Execute(victim, NewExecRunner(), sink); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !finished {
		t.Fatal("expected ProcessFinished to be called")
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be removed from disk, stat err = %v", target, err)
	}
}

type recordingSink struct {
	onFinished func(item *model.Node, exitCode int, err error)
}

func (recordingSink) AddLine(*model.Node, string) {}
func (s *recordingSink) ProcessFinished(item *model.Node, exitCode int, err error) {
	s.onFinished(item, exitCode, err)
}
func (recordingSink) AllProcessesFinished() {}

func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
