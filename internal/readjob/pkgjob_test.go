package readjob

import (
	"fmt"
	"testing"

	"github.com/qdirstat-go/qdirstat/internal/model"
)

type fakePackageSource struct {
	packages map[string][]string // pattern -> matching package names
	files    map[string][]string // package name -> owned file paths
}

func (s *fakePackageSource) Packages(pattern string) ([]string, error) {
	return s.packages[pattern], nil
}

func (s *fakePackageSource) Files(pkg string) ([]string, error) {
	return s.files[pkg], nil
}

func TestPkgReadJobBuildsOnePseudoDirPerPackage(t *testing.T) {
	source := &fakePackageSource{
		packages: map[string][]string{"^bash$": {"bash"}},
		files:    map[string][]string{"bash": {"/bin/bash", "/usr/share/doc/bash/README"}},
	}

	root := model.NewDir("pkg:/^bash$", nil)
	job := NewPkgReadJob(root, "^bash$", source, nil)

	result := job.Step()
	if !result.Done {
		t.Fatal("PkgReadJob must finish in a single Step")
	}
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	pkgDirs := root.SubdirChildren()
	if len(pkgDirs) != 1 || pkgDirs[0].Name != "bash" {
		t.Fatalf("package dirs = %v, want exactly [bash]", pkgDirs)
	}
	if !pkgDirs[0].IsPseudoDir() {
		t.Fatalf("expected bash package dir to carry the pseudo-dir flag")
	}
	if pkgDirs[0].IsDotEntry() {
		t.Fatalf("a package pseudo-dir is not a \".\" dot entry")
	}

	bashDir := pkgDirs[0]
	usrShareDoc := bashDir.Locate("usr/share/doc/bash/README", false)
	if usrShareDoc == nil {
		t.Fatal("expected usr/share/doc/bash/README to be reachable under the package dir")
	}
	binDir := bashDir.Locate("bin", false)
	if binDir == nil || !binDir.IsDir() {
		t.Fatal("expected an intermediate bin dir")
	}
}

func TestPkgReadJobNoMatchesProducesEmptyPseudoRoot(t *testing.T) {
	source := &fakePackageSource{packages: map[string][]string{}}
	root := model.NewDir("pkg:/nomatch", nil)
	job := NewPkgReadJob(root, "nomatch", source, nil)

	result := job.Step()
	if !result.Done || len(result.NewChildren) != 0 {
		t.Fatalf("expected Done with no children, got %+v", result)
	}
	if root.ReadState() != model.StateFinished {
		t.Fatalf("readState = %v, want Finished", root.ReadState())
	}
}

func TestPkgReadJobReportsPackageQueryError(t *testing.T) {
	source := &failingSource{err: fmt.Errorf("boom")}
	root := model.NewDir("pkg:/x", nil)
	job := NewPkgReadJob(root, "x", source, nil)

	result := job.Step()
	if result.Err == nil {
		t.Fatal("expected an error result")
	}
	if root.ReadState() != model.StateError {
		t.Fatalf("readState = %v, want Error", root.ReadState())
	}
}

type failingSource struct{ err error }

func (s *failingSource) Packages(string) ([]string, error) { return nil, s.err }
func (s *failingSource) Files(string) ([]string, error)    { return nil, nil }
