// Package pathguard keeps file operations inside the workspace root.
//
// Information Hiding:
// - Root canonicalization (symlinked roots such as /tmp on macOS)
// - Relative-delta containment test
// - Symlink detection on intermediate and final components
package pathguard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrOutsideWorkspace is returned when a path resolves outside the root.
	ErrOutsideWorkspace = errors.New("outside the working directory")

	// ErrSymlink is returned when a path passes through a symbolic link.
	ErrSymlink = errors.New("symbolic links are not allowed")
)

// PathError reports a rejected path. Path is the caller's input, never the
// resolved absolute path, so messages do not leak the host layout.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	if errors.Is(e.Err, ErrOutsideWorkspace) {
		return fmt.Sprintf("Path %q is outside the working directory.", e.Path)
	}
	return fmt.Sprintf("Path %q rejected: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// Guard validates paths against a fixed workspace root.
type Guard struct {
	root     string // absolute, cleaned
	realRoot string // root with symlinks resolved
}

// New creates a guard rooted at dir.
func New(dir string) (*Guard, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return nil, fmt.Errorf("stat workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", dir)
	}
	return &Guard{root: filepath.Clean(abs), realRoot: filepath.Clean(real)}, nil
}

// Root returns the absolute workspace root.
func (g *Guard) Root() string {
	return g.root
}

// Resolve turns a workspace-relative (or absolute) path into an absolute path
// and proves it lies inside the root. It never touches the filesystem.
func (g *Guard) Resolve(p string) (string, error) {
	target := p
	if target == "" {
		target = "."
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(g.root, target)
	}
	target = filepath.Clean(target)

	if !within(g.root, target) {
		return "", &PathError{Path: p, Err: ErrOutsideWorkspace}
	}
	return target, nil
}

// Rel returns the workspace-relative form of abs using forward slashes.
func (g *Guard) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(g.root, abs)
	if err != nil {
		return "", &PathError{Path: abs, Err: ErrOutsideWorkspace}
	}
	if escapes(rel) {
		return "", &PathError{Path: rel, Err: ErrOutsideWorkspace}
	}
	return filepath.ToSlash(rel), nil
}

// AssertNotSymlink resolves the real location of abs and rejects it if any
// component inside the workspace is a symbolic link or if the resolved
// location escapes the root. abs need not exist; the deepest existing
// ancestor is checked instead.
func (g *Guard) AssertNotSymlink(abs string) error {
	display := abs
	if rel, err := filepath.Rel(g.root, abs); err == nil {
		display = filepath.ToSlash(rel)
	}

	existing := abs
	for {
		_, err := os.Lstat(existing)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("inspect %s: %w", display, err)
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		existing = parent
	}

	real, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", display, err)
	}
	if !within(g.realRoot, real) {
		return &PathError{Path: display, Err: ErrOutsideWorkspace}
	}

	// Compare the deltas so a symlinked root does not count as a link inside
	// the workspace.
	wantRel, err := filepath.Rel(g.root, existing)
	if err != nil {
		return &PathError{Path: display, Err: ErrOutsideWorkspace}
	}
	gotRel, err := filepath.Rel(g.realRoot, real)
	if err != nil {
		return &PathError{Path: display, Err: ErrOutsideWorkspace}
	}
	if filepath.Clean(wantRel) != filepath.Clean(gotRel) {
		return &PathError{Path: display, Err: ErrSymlink}
	}

	if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return &PathError{Path: display, Err: ErrSymlink}
	}
	return nil
}

// Check runs Resolve followed by AssertNotSymlink.
func (g *Guard) Check(p string) (string, error) {
	abs, err := g.Resolve(p)
	if err != nil {
		return "", err
	}
	if err := g.AssertNotSymlink(abs); err != nil {
		return "", err
	}
	return abs, nil
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return !escapes(rel)
}

func escapes(rel string) bool {
	if filepath.IsAbs(rel) {
		return true
	}
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
