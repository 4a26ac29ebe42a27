package refresh

import (
	"testing"

	"github.com/qdirstat-go/qdirstat/internal/model"
)

type fakeTree struct {
	refreshed []*model.Node
	err       error
}

func (f *fakeTree) Refresh(items []*model.Node) error {
	f.refreshed = items
	return f.err
}

func TestTriggerSkipsNilItems(t *testing.T) {
	root := model.NewDir("/t", nil)
	a := model.NewDir("a", root)
	root.InsertChild(a)

	ft := &fakeTree{}
	r := New(ft, []*model.Node{a, nil})
	if err := r.Trigger(); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if len(ft.refreshed) != 1 || ft.refreshed[0] != a {
		t.Fatalf("refreshed = %v, want [a]", ft.refreshed)
	}
}

func TestTriggerSkipsDetachedItems(t *testing.T) {
	root := model.NewDir("/t", nil)
	a := model.NewDir("a", root)
	b := model.NewDir("b", root)
	root.InsertChild(a)
	root.InsertChild(b)

	a.Detach()

	ft := &fakeTree{}
	r := New(ft, []*model.Node{a, b})
	if err := r.Trigger(); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if len(ft.refreshed) != 1 || ft.refreshed[0] != b {
		t.Fatalf("refreshed = %v, want [b] (a was detached in the meantime)", ft.refreshed)
	}
}

func TestTriggerNoopWhenAllNil(t *testing.T) {
	ft := &fakeTree{}
	r := New(ft, []*model.Node{nil, nil})
	if err := r.Trigger(); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if ft.refreshed != nil {
		t.Fatalf("tree.Refresh should not have been called, got %v", ft.refreshed)
	}
}

// TestParentsNormalization reproduces spec.md §8 property 8: the
// parent set of a selection has no element that is an ancestor of
// another.
func TestParentsNormalization(t *testing.T) {
	root := model.NewDir("/t", nil)
	a := model.NewDir("a", root)
	root.InsertChild(a)
	b := model.NewDir("b", a)
	a.InsertChild(b)
	f1 := model.NewFile("f1", nil)
	a.InsertChild(f1)
	f2 := model.NewFile("f2", nil)
	b.InsertChild(f2)

	// Selecting f1 (parent a) and f2 (parent b, a descendant of a):
	// only a should survive, since b's parent a is an ancestor of
	// f2's own parent chain.
	parents := Parents([]*model.Node{f1, f2})
	if len(parents) != 1 || parents[0] != a {
		t.Fatalf("Parents = %v, want [a]", parents)
	}
}

func TestParentsSkipsDotEntryParent(t *testing.T) {
	root := model.NewDir("/t", nil)
	a := model.NewDir("a", root)
	root.InsertChild(a)
	f := model.NewFile("f", nil)
	a.InsertChild(f) // goes into a's dot entry since a is not finalized yet

	parents := Parents([]*model.Node{f})
	if len(parents) != 1 || parents[0] != a {
		t.Fatalf("Parents = %v, want [a] (dot entry unwrapped to its owner)", parents)
	}
}

func TestNormalizeDropsDescendantsAndDuplicates(t *testing.T) {
	root := model.NewDir("/t", nil)
	a := model.NewDir("a", root)
	root.InsertChild(a)
	b := model.NewDir("b", a)
	a.InsertChild(b)
	c := model.NewDir("c", root)
	root.InsertChild(c)

	got := Normalize([]*model.Node{a, b, a, c})

	want := map[*model.Node]bool{a: true, c: true}
	if len(got) != len(want) {
		t.Fatalf("Normalize = %v, want exactly %v", got, want)
	}
	for _, n := range got {
		if !want[n] {
			t.Fatalf("unexpected survivor %v in %v", n, got)
		}
	}
}
