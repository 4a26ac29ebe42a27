package model

import "time"

// InsertChild links c as a child of n, maintaining the dot-entry
// invariant and incremental aggregation. Mirrors KDirInfo::insertChild:
// directories (and anything inserted into a dot entry, or into a Dir
// that currently has no dot entry) go straight into n's children list;
// everything else is forwarded to n's dot entry.
func (n *Node) InsertChild(c *Node) {
	if n.Dir == nil {
		panic("model: InsertChild on a non-directory node")
	}
	if c.IsDir() || n.Dir.DotEntry == nil || n.IsDotEntry() {
		n.Dir.Children = append([]*Node{c}, n.Dir.Children...)
		c.Parent = n
		n.childAdded(c)
		return
	}
	n.Dir.DotEntry.InsertChild(c)
}

// childAdded updates this Dir's running totals (if not already dirty)
// and propagates the same leaf node up through every ancestor,
// including across a dot entry's parent link (so the dot entry's own
// totals stay correct too, and the real owning Dir picks up the leaf
// directly without double-counting the dot entry itself). See spec.md §3.
func (n *Node) childAdded(c *Node) {
	if !n.Dir.SummaryDirty {
		n.Dir.TotalSize += c.EffectiveSize()
		n.Dir.TotalBlocks += c.Blocks
		n.Dir.TotalItems++
		if c.IsDir() && !c.IsDotEntry() {
			n.Dir.TotalSubDirs++
		}
		if c.IsFile() {
			n.Dir.TotalFiles++
		}
		if c.Mtime.After(n.Dir.LatestMtime) {
			n.Dir.LatestMtime = c.Mtime
		}
	}
	if n.Parent != nil {
		n.Parent.childAdded(c)
	}
}

// DeletingChild must be called before a child's storage is invalidated.
// It marks this Dir's summary dirty and propagates the notification to
// every ancestor, so aggregation and any external observer state can
// react while c is still structurally valid.
func (n *Node) DeletingChild(c *Node) {
	if n.Dir == nil {
		return
	}
	n.Dir.SummaryDirty = true
	if n.Parent != nil {
		n.Parent.DeletingChild(c)
	}
}

// UnlinkChild removes c from n's children list (or from n's dot entry,
// if present). Callers must invoke DeletingChild(c) first, then
// UnlinkChild(c), then discard c.
func (n *Node) UnlinkChild(c *Node) bool {
	if n.Dir == nil {
		return false
	}
	for i, ch := range n.Dir.Children {
		if ch == c {
			n.Dir.Children = append(n.Dir.Children[:i], n.Dir.Children[i+1:]...)
			return true
		}
	}
	if n.Dir.DotEntry != nil {
		return n.Dir.DotEntry.UnlinkChild(c)
	}
	return false
}

// foldChild adds c's full contribution to n's running totals, counting
// c itself as one item (and, if c is a directory, one subdirectory).
// Works uniformly whether c is a directory (n.Dir.Children of an
// ordinary Dir) or a leaf (n.Dir.Children of a dot entry).
func (n *Node) foldChild(c *Node) {
	if c.Dir != nil {
		if c.Dir.SummaryDirty {
			c.Recalc()
		}
		n.Dir.TotalSize += c.Dir.TotalSize
		n.Dir.TotalBlocks += c.Dir.TotalBlocks
		n.Dir.TotalItems += c.Dir.TotalItems + 1
		n.Dir.TotalSubDirs += c.Dir.TotalSubDirs + 1
		n.Dir.TotalFiles += c.Dir.TotalFiles
		if c.Dir.LatestMtime.After(n.Dir.LatestMtime) {
			n.Dir.LatestMtime = c.Dir.LatestMtime
		}
		return
	}
	n.Dir.TotalSize += c.EffectiveSize()
	n.Dir.TotalBlocks += c.Blocks
	n.Dir.TotalItems++
	if c.IsFile() {
		n.Dir.TotalFiles++
	}
	if c.Mtime.After(n.Dir.LatestMtime) {
		n.Dir.LatestMtime = c.Mtime
	}
}

// Recalc performs a full recursive re-sum of this Dir's totals. Direct
// children are summed normally (counting each as one item, plus one
// subdirectory if it is one); the dot entry, if present, is folded in
// transparently — its contents count toward this Dir's totals but the
// dot entry itself is never counted as an item or a subdirectory.
func (n *Node) Recalc() {
	if n.Dir == nil {
		return
	}
	n.Dir.TotalSize = n.Size
	n.Dir.TotalBlocks = n.Blocks
	n.Dir.TotalItems = 0
	n.Dir.TotalSubDirs = 0
	n.Dir.TotalFiles = 0
	n.Dir.LatestMtime = n.Mtime

	for _, c := range n.Dir.Children {
		n.foldChild(c)
	}

	if de := n.Dir.DotEntry; de != nil {
		if de.Dir.SummaryDirty {
			de.Recalc()
		}
		n.Dir.TotalSize += de.Dir.TotalSize
		n.Dir.TotalBlocks += de.Dir.TotalBlocks
		n.Dir.TotalItems += de.Dir.TotalItems
		n.Dir.TotalFiles += de.Dir.TotalFiles
		if de.Dir.LatestMtime.After(n.Dir.LatestMtime) {
			n.Dir.LatestMtime = de.Dir.LatestMtime
		}
	}
	n.Dir.SummaryDirty = false
}

// Totals returns the six aggregated attributes, recalculating first if
// the summary is dirty. Safe to call on any Dir node.
func (n *Node) Totals() (size, blocks, items, subDirs, files int64, latest time.Time) {
	if n.Dir == nil {
		return 0, 0, 0, 0, 0, n.Mtime
	}
	if n.Dir.SummaryDirty {
		n.Recalc()
	}
	return n.Dir.TotalSize, n.Dir.TotalBlocks, n.Dir.TotalItems, n.Dir.TotalSubDirs, n.Dir.TotalFiles, n.Dir.LatestMtime
}
