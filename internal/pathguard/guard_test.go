package pathguard

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newGuard(t *testing.T) (*Guard, string) {
	t.Helper()
	dir := t.TempDir()
	g, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g, dir
}

func TestResolve_InsideWorkspace(t *testing.T) {
	g, _ := newGuard(t)

	abs, err := g.Resolve("src/main.go")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if want := filepath.Join(g.Root(), "src", "main.go"); abs != want {
		t.Errorf("Resolve() = %q, want %q", abs, want)
	}

	root, err := g.Resolve("")
	if err != nil || root != g.Root() {
		t.Errorf("Resolve(\"\") = %q, %v; want root", root, err)
	}
}

func TestResolve_RejectsEscapes(t *testing.T) {
	g, _ := newGuard(t)

	cases := []string{
		"../outside.txt",
		"a/../../outside.txt",
		"..",
		"/etc/passwd",
	}
	for _, c := range cases {
		_, err := g.Resolve(c)
		if !errors.Is(err, ErrOutsideWorkspace) {
			t.Errorf("Resolve(%q) error = %v, want ErrOutsideWorkspace", c, err)
		}
	}
}

func TestResolve_DotDotPrefixedNameAllowed(t *testing.T) {
	g, _ := newGuard(t)

	if _, err := g.Resolve("..hidden"); err != nil {
		t.Errorf("Resolve(..hidden) error = %v", err)
	}
}

func TestResolve_ErrorMessageUsesInput(t *testing.T) {
	g, _ := newGuard(t)

	_, err := g.Resolve("../secret")
	want := `Path "../secret" is outside the working directory.`
	if err == nil || err.Error() != want {
		t.Errorf("error = %v, want %q", err, want)
	}
}

func TestAssertNotSymlink_RegularAndMissingFiles(t *testing.T) {
	g, dir := newGuard(t)

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := g.AssertNotSymlink(filepath.Join(g.Root(), "a.txt")); err != nil {
		t.Errorf("regular file rejected: %v", err)
	}
	if err := g.AssertNotSymlink(filepath.Join(g.Root(), "new", "deep", "b.txt")); err != nil {
		t.Errorf("missing file rejected: %v", err)
	}
}

func TestAssertNotSymlink_FinalComponent(t *testing.T) {
	g, dir := newGuard(t)

	target := filepath.Join(dir, "real.txt")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := g.Check("link.txt")
	if !errors.Is(err, ErrSymlink) {
		t.Errorf("Check(link.txt) error = %v, want ErrSymlink", err)
	}
}

func TestAssertNotSymlink_IntermediateComponent(t *testing.T) {
	g, dir := newGuard(t)

	if err := os.Mkdir(filepath.Join(dir, "real"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(dir, "real"), filepath.Join(dir, "alias")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := g.Check("alias/new.txt")
	if !errors.Is(err, ErrSymlink) {
		t.Errorf("Check(alias/new.txt) error = %v, want ErrSymlink", err)
	}
}

func TestAssertNotSymlink_PointingOutside(t *testing.T) {
	g, dir := newGuard(t)
	outside := t.TempDir()

	if err := os.Symlink(outside, filepath.Join(dir, "escape")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := g.Check("escape/passwd")
	if !errors.Is(err, ErrOutsideWorkspace) {
		t.Errorf("Check(escape/passwd) error = %v, want ErrOutsideWorkspace", err)
	}
}

func TestRel(t *testing.T) {
	g, _ := newGuard(t)

	rel, err := g.Rel(filepath.Join(g.Root(), "pkg", "x.go"))
	if err != nil {
		t.Fatalf("Rel() error = %v", err)
	}
	if rel != "pkg/x.go" {
		t.Errorf("Rel() = %q, want pkg/x.go", rel)
	}
}
