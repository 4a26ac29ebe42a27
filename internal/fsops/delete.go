// Package fsops implements the filesystem side-effects the tree needs
// once an item has been selected for removal: symlink-safe recursive
// deletion, scoped to a root so a cleanup or a refresh can never walk
// outside the subtree the user selected. Adapted from the teacher's
// ops package, which guarded the same operation for its ncdu-style
// delete command.
package fsops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DeleteSubtree removes the file or directory at path, recursively for
// directories. rootPath constrains deletion to strict descendants of
// rootPath: the root itself, and anything reached only via a symlinked
// directory that escapes the root, are refused.
//
// Symlinks named at path are themselves safe to remove (the link is
// unlinked, never the target); paths that traverse *through* a
// symlinked directory are blocked, since the real location they
// resolve to might sit outside rootPath.
func DeleteSubtree(path string, rootPath string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("fsops: cannot resolve path %s: %w", path, err)
	}
	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return fmt.Errorf("fsops: cannot resolve root %s: %w", rootPath, err)
	}

	realParent, err := filepath.EvalSymlinks(filepath.Dir(absPath))
	if err != nil {
		return fmt.Errorf("fsops: cannot resolve parent of %s: %w", absPath, err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return fmt.Errorf("fsops: cannot resolve root %s: %w", absRoot, err)
	}

	baseName := filepath.Base(absPath)
	realPath := filepath.Join(realParent, baseName)

	rel, err := filepath.Rel(realRoot, realPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("fsops: refusing to delete %s: outside root %s", absPath, absRoot)
	}

	if _, err := os.Lstat(realPath); err != nil {
		return fmt.Errorf("fsops: cannot access %s: %w", realPath, err)
	}
	return deleteResolvedPath(realParent, baseName)
}
