// Package scanner enumerates workspace files breadth-first.
//
// Information Hiding:
// - Level-by-level traversal with bounded fan-out
// - Deny-list and extension filtering
// - Error classification for unreadable directories
package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExtensions are the source and text extensions considered relevant.
var DefaultExtensions = []string{
	".js", ".ts", ".jsx", ".tsx", ".py", ".java", ".cpp", ".c", ".go", ".rs",
	".php", ".rb", ".swift", ".kt", ".scala", ".html", ".css", ".json", ".md", ".txt",
}

// DefaultDenyDirs are directory name patterns that are never descended.
var DefaultDenyDirs = []string{".git", "node_modules"}

// DefaultExcludeFiles are file name patterns that are never reported.
var DefaultExcludeFiles = []string{"package-lock.json", "*.min.js"}

// Error codes attached to ScanError.
const (
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeNotFound         = "NOT_FOUND"
	CodeIOError          = "IO_ERROR"
)

// ScanError records a directory that could not be read. Scans continue
// past these.
type ScanError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ScanError) Error() string {
	return e.Code + ": " + e.Path + ": " + e.Message
}

func newScanError(rel string, err error) ScanError {
	code := CodeIOError
	switch {
	case errors.Is(err, fs.ErrPermission):
		code = CodePermissionDenied
	case errors.Is(err, fs.ErrNotExist):
		code = CodeNotFound
	}
	msg := err.Error()
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		msg = pathErr.Err.Error()
	}
	return ScanError{Path: rel, Code: code, Message: msg}
}

// Options control a file scan.
type Options struct {
	MaxDepth      int
	IncludeHidden bool
	Extensions    []string // nil selects DefaultExtensions
	Limit         int
	Concurrency   int
}

// DefaultOptions mirror the relevant-files scan.
func DefaultOptions() Options {
	return Options{MaxDepth: 10, Limit: 1000, Concurrency: 5}
}

// IndexOptions control BuildDirectoryIndex.
type IndexOptions struct {
	MaxDepth      int
	IncludeFiles  bool
	IncludeHidden bool
	Limit         int
	Concurrency   int
}

// DefaultIndexOptions returns the defaults for directory listings.
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{MaxDepth: 3, IncludeFiles: true, Limit: 200, Concurrency: 3}
}

// Entry types reported by BuildDirectoryIndex.
const (
	EntryFile      = "file"
	EntryDirectory = "directory"
)

// Entry is one node of a directory index.
type Entry struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// FileEntry is a scanned file with optional content and metadata.
type FileEntry struct {
	Path     string
	Content  string
	Size     int64
	Modified time.Time
}

// Scanner walks a workspace root.
type Scanner struct {
	root         string
	denyDirs     []string
	excludeFiles []string
}

// New creates a scanner for root (an absolute, already validated path).
func New(root string) *Scanner {
	return &Scanner{
		root:         root,
		denyDirs:     DefaultDenyDirs,
		excludeFiles: DefaultExcludeFiles,
	}
}

// WithDenyDirs replaces the directory deny-list (doublestar patterns on names).
func (s *Scanner) WithDenyDirs(patterns []string) *Scanner {
	s.denyDirs = patterns
	return s
}

// WithExcludeFiles replaces the file exclusion list (doublestar patterns on names).
func (s *Scanner) WithExcludeFiles(patterns []string) *Scanner {
	s.excludeFiles = patterns
	return s
}

// Root returns the scan root.
func (s *Scanner) Root() string {
	return s.root
}

type dirResult struct {
	files   []string
	dirs    []string
	entries []Entry
	err     *ScanError
}

type walkConfig struct {
	maxDepth      int
	includeHidden bool
	includeFiles  bool
	concurrency   int
	fileFilter    func(name string) bool
}

// walk runs a breadth-first traversal. Directories of one level are read
// concurrently and merged in lexical order, so output is deterministic.
// visit returns false to stop the walk.
func (s *Scanner) walk(ctx context.Context, start string, cfg walkConfig, visit func(dirResult) bool) error {
	if cfg.concurrency < 1 {
		cfg.concurrency = 1
	}
	level := []string{start}

	for depth := 0; len(level) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		results := make([]dirResult, len(level))
		sem := make(chan struct{}, cfg.concurrency)
		var wg sync.WaitGroup
		for i, dir := range level {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, dir string) {
				defer wg.Done()
				defer func() { <-sem }()
				results[i] = s.readDir(dir, cfg, depth < cfg.maxDepth)
			}(i, dir)
		}
		wg.Wait()

		var next []string
		for _, r := range results {
			if !visit(r) {
				return nil
			}
			next = append(next, r.dirs...)
		}
		level = next
	}
	return nil
}

func (s *Scanner) readDir(dir string, cfg walkConfig, descend bool) dirResult {
	var res dirResult
	entries, err := os.ReadDir(dir)
	if err != nil {
		se := newScanError(s.rel(dir), err)
		res.err = &se
		return res
	}

	// os.ReadDir returns entries sorted by name.
	for _, e := range entries {
		name := e.Name()
		if !cfg.includeHidden && strings.HasPrefix(name, ".") {
			continue
		}
		// Symlinks are never followed or reported.
		if e.Type()&fs.ModeSymlink != 0 {
			continue
		}
		full := filepath.Join(dir, name)

		if e.IsDir() {
			if s.denied(name) {
				continue
			}
			res.entries = append(res.entries, Entry{Type: EntryDirectory, Path: s.rel(full)})
			if descend {
				res.dirs = append(res.dirs, full)
			}
			continue
		}
		if !e.Type().IsRegular() {
			continue
		}
		if s.excluded(name) {
			continue
		}
		if cfg.fileFilter != nil && !cfg.fileFilter(name) {
			continue
		}
		res.files = append(res.files, full)
		if cfg.includeFiles {
			res.entries = append(res.entries, Entry{Type: EntryFile, Path: s.rel(full)})
		}
	}
	return res
}

// RelevantFiles returns absolute paths of files below start whose extension
// is in the configured set, up to opts.Limit.
func (s *Scanner) RelevantFiles(ctx context.Context, start string, opts Options) ([]string, []ScanError, error) {
	exts := opts.Extensions
	if exts == nil {
		exts = DefaultExtensions
	}
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(e)] = true
	}

	cfg := walkConfig{
		maxDepth:      opts.MaxDepth,
		includeHidden: opts.IncludeHidden,
		concurrency:   opts.Concurrency,
		fileFilter: func(name string) bool {
			return allowed[strings.ToLower(filepath.Ext(name))]
		},
	}

	var files []string
	var scanErrs []ScanError
	err := s.walk(ctx, s.abs(start), cfg, func(r dirResult) bool {
		if r.err != nil {
			scanErrs = append(scanErrs, *r.err)
		}
		for _, f := range r.files {
			if opts.Limit > 0 && len(files) >= opts.Limit {
				return false
			}
			files = append(files, f)
		}
		return opts.Limit <= 0 || len(files) < opts.Limit
	})
	return files, scanErrs, err
}

// BuildDirectoryIndex lists directories (and optionally files) below start.
// Paths in the result are workspace-relative with forward slashes.
func (s *Scanner) BuildDirectoryIndex(ctx context.Context, start string, opts IndexOptions) ([]Entry, []ScanError, error) {
	cfg := walkConfig{
		maxDepth:      opts.MaxDepth,
		includeHidden: opts.IncludeHidden,
		includeFiles:  opts.IncludeFiles,
		concurrency:   opts.Concurrency,
	}

	var entries []Entry
	var scanErrs []ScanError
	err := s.walk(ctx, s.abs(start), cfg, func(r dirResult) bool {
		if r.err != nil {
			scanErrs = append(scanErrs, *r.err)
		}
		for _, e := range r.entries {
			if opts.Limit > 0 && len(entries) >= opts.Limit {
				return false
			}
			entries = append(entries, e)
		}
		return opts.Limit <= 0 || len(entries) < opts.Limit
	})
	return entries, scanErrs, err
}

// ProjectOptions control ScanProjectFiles.
type ProjectOptions struct {
	Limit          int
	IncludeContent bool
	IncludeHidden  bool
}

// ScanProjectFiles returns up to Limit relevant files with their metadata
// and, optionally, content. Files that vanish mid-scan are skipped.
func (s *Scanner) ScanProjectFiles(ctx context.Context, opts ProjectOptions) ([]FileEntry, error) {
	scanOpts := DefaultOptions()
	scanOpts.IncludeHidden = opts.IncludeHidden
	if opts.Limit > 0 {
		scanOpts.Limit = opts.Limit
	}

	paths, _, err := s.RelevantFiles(ctx, ".", scanOpts)
	if err != nil {
		return nil, err
	}

	entries := make([]FileEntry, 0, len(paths))
	for _, p := range paths {
		entry, err := s.ReadEntry(p, opts.IncludeContent)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ReadEntry stats (and optionally reads) a single absolute path.
func (s *Scanner) ReadEntry(abs string, includeContent bool) (FileEntry, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return FileEntry{}, err
	}
	if info.IsDir() {
		return FileEntry{}, &fs.PathError{Op: "read", Path: s.rel(abs), Err: errors.New("is a directory")}
	}
	entry := FileEntry{
		Path:     s.rel(abs),
		Size:     info.Size(),
		Modified: info.ModTime(),
	}
	if includeContent {
		data, err := os.ReadFile(abs)
		if err != nil {
			return FileEntry{}, err
		}
		entry.Content = string(data)
	}
	return entry, nil
}

func (s *Scanner) denied(name string) bool {
	return matchAny(s.denyDirs, name)
}

func (s *Scanner) excluded(name string) bool {
	return matchAny(s.excludeFiles, name)
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

func (s *Scanner) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.root, p)
}

func (s *Scanner) rel(abs string) string {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}
