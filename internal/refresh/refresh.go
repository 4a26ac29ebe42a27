// Package refresh implements Refresher (spec.md §4.7): a deferred
// re-scan of a set of subtrees, used by CleanupCollection to
// resynchronise the tree once an external command's process group has
// exited. Grounded on the teacher's post-delete refresh call in
// ops.Delete's callers, generalized into a standalone component that
// can be wired to any "all processes finished" signal.
package refresh

import "github.com/qdirstat-go/qdirstat/internal/model"

// Tree is the subset of internal/tree.Tree that Refresher needs. Kept
// as a narrow interface so tests can substitute a fake without
// depending on the tree package.
type Tree interface {
	Refresh(items []*model.Node) error
}

// Refresher stores a set of Dirs and, when Trigger is called, asks the
// tree to refresh them.
type Refresher struct {
	tree  Tree
	items []*model.Node
}

// New creates a Refresher over the given tree and item set.
func New(tree Tree, items []*model.Node) *Refresher {
	return &Refresher{tree: tree, items: append([]*model.Node(nil), items...)}
}

// Trigger asks the tree to refresh the stored item set, skipping any
// nil entries (a racing cleanup may have already dropped an item from
// the selection between New and Trigger) and any item a concurrent
// AssumeDeleted cleanup has since detached from the tree — the
// original's item->tree() validity check, since a detached item's own
// Parent is nil and re-inserting beneath it would misbehave.
func (r *Refresher) Trigger() error {
	live := r.items[:0:0]
	for _, item := range r.items {
		if item == nil || item.Detached() {
			continue
		}
		live = append(live, item)
	}
	if len(live) == 0 {
		return nil
	}
	return r.tree.Refresh(live)
}

// Parents returns the set of parents of selection, normalised so that
// if one selected item's parent is an ancestor of another selected
// item's parent, only the ancestor survives (spec.md §8 property 8:
// "a set no larger than S and such that no element is an ancestor of
// another element").
func Parents(selection []*model.Node) []*model.Node {
	parentSet := make(map[*model.Node]bool)
	var parents []*model.Node
	for _, item := range selection {
		p := item.Parent
		if p != nil && p.IsDotEntry() {
			p = p.Parent
		}
		if p == nil || parentSet[p] {
			continue
		}
		parentSet[p] = true
		parents = append(parents, p)
	}
	return Normalize(parents)
}

// Normalize removes every element of set that is a (strict or
// non-strict) descendant of another element of set, so the result
// contains no element that is an ancestor of another — the
// "normalised FileInfoSet" the glossary defines.
func Normalize(set []*model.Node) []*model.Node {
	seen := make(map[*model.Node]bool, len(set))
	var out []*model.Node
	for i, item := range set {
		if seen[item] {
			continue
		}
		isDescendant := false
		for j, other := range set {
			if i == j {
				continue
			}
			if item != other && item.IsDescendantOf(other) {
				isDescendant = true
				break
			}
		}
		if !isDescendant {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
