package model

// Detach unlinks n from its parent, notifying DeletingChild first so
// observer/aggregation state can react while n is still structurally
// valid. Returns n's former parent, or nil if n was already a root.
// Callers are responsible for having already cancelled any in-flight
// read jobs for n's subtree before calling Detach.
func (n *Node) Detach() *Node {
	parent := n.Parent
	if parent == nil {
		return nil
	}
	parent.DeletingChild(n)
	parent.UnlinkChild(n)
	n.Parent = nil
	n.Flags |= FlagDetached
	return parent
}

// DetachAllChildren discards every direct child of n (and its dot
// entry), invoking onDeleting for each child before it is unlinked, and
// resets n to an empty, unfinalized directory (no children, a new dot
// entry, totals covering n's own size, blocks and mtime only). Used when a partial
// subtree must be thrown away and re-populated from another source, as
// happens when a LocalDirReadJob discovers a matching cache sentinel
// file mid-scan and the queue replays the directory from the cache
// instead.
func (n *Node) DetachAllChildren(onDeleting func(*Node)) {
	if n.Dir == nil {
		return
	}
	n.Dir.Flags |= DirFlagBeingDestroyed
	for _, c := range n.Dir.Children {
		if onDeleting != nil {
			onDeleting(c)
		}
		n.DeletingChild(c)
	}
	if de := n.Dir.DotEntry; de != nil && onDeleting != nil {
		onDeleting(de)
	}
	n.Dir.Flags &^= DirFlagBeingDestroyed
	n.Dir.Children = nil
	n.Dir.DotEntry = newDotEntry(n)
	n.Dir.finalized = false
	n.Dir.SummaryDirty = false
	// Seed from n's own inode usage, matching Recalc(): n itself still
	// counts toward its own totals even with no children yet.
	n.Dir.TotalSize = n.Size
	n.Dir.TotalBlocks = n.Blocks
	n.Dir.TotalItems = 0
	n.Dir.TotalSubDirs = 0
	n.Dir.TotalFiles = 0
	n.Dir.ErrSubDirCount = 0
	n.Dir.LatestMtime = n.Mtime
}

// IsDescendantOf reports whether n is anc or a descendant of anc.
func (n *Node) IsDescendantOf(anc *Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == anc {
			return true
		}
	}
	return false
}
