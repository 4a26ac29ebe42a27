package model

import (
	"path"
	"strings"
)

// URL reconstructs the full path by walking to the root, joining names
// with '/', avoiding duplicate slashes and never emitting a dot entry's
// own name (a dot entry is transparent in paths: "/a/." is never built,
// only "/a").
func (n *Node) URL() string {
	var parts []string
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.IsDotEntry() {
			continue
		}
		parts = append(parts, cur.Name)
	}
	// parts is leaf-to-root; reverse it.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	joined := path.Join(parts...)
	// path.Join drops a leading "/" baked into parts[0] (an absolute
	// top-level root name); restore it.
	if strings.HasPrefix(parts[0], "/") && !strings.HasPrefix(joined, "/") {
		joined = "/" + joined
	}
	return joined
}

// Locate recursively searches for a descendant matching the successive
// components of path (interpreted as a path relative to n, using '/' as
// separator). When findDotEntries is true and the terminal component
// equals the dot-entry sentinel, the dot entry itself is returned.
func (n *Node) Locate(path string, findDotEntries bool) *Node {
	path = strings.Trim(path, "/")
	if path == "" {
		return n
	}
	return n.locateComponents(strings.Split(path, "/"), findDotEntries)
}

func (n *Node) locateComponents(components []string, findDotEntries bool) *Node {
	if len(components) == 0 {
		return n
	}
	head, rest := components[0], components[1:]

	if head == DotEntryName {
		if !findDotEntries || len(rest) > 0 {
			return nil
		}
		if n.Dir == nil {
			return nil
		}
		return n.Dir.DotEntry
	}

	if n.Dir == nil {
		return nil
	}
	for _, c := range n.Dir.Children {
		if c.Name == head {
			if len(rest) == 0 {
				return c
			}
			return c.locateComponents(rest, findDotEntries)
		}
	}
	if n.Dir.DotEntry != nil {
		for _, c := range n.Dir.DotEntry.Children() {
			if c.Name == head {
				if len(rest) == 0 {
					return c
				}
				return c.locateComponents(rest, findDotEntries)
			}
		}
	}
	return nil
}

// Children returns the direct children slice, or nil for a leaf. Callers
// must not mutate the returned slice.
func (n *Node) Children() []*Node {
	if n.Dir == nil {
		return nil
	}
	return n.Dir.Children
}

// SubdirChildren returns n's direct subdirectory children (never
// including the dot entry).
func (n *Node) SubdirChildren() []*Node {
	if n.Dir == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Dir.Children {
		if c.IsDir() {
			out = append(out, c)
		}
	}
	return out
}

// NonDirChildren returns n's direct non-directory children, wherever
// they currently live: under the dot entry if n still has one, or
// directly among n.Dir.Children once the dot entry has been folded
// away by finalizeLocal.
func (n *Node) NonDirChildren() []*Node {
	if n.Dir == nil {
		return nil
	}
	if n.Dir.DotEntry != nil {
		return n.Dir.DotEntry.Children()
	}
	var out []*Node
	for _, c := range n.Dir.Children {
		if !c.IsDir() {
			out = append(out, c)
		}
	}
	return out
}
