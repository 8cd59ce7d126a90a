// Package contextcache tracks project files and picks which of them go into
// each prompt.
//
// Information Hiding:
// - Entry index keyed by path and by base name
// - Staleness and coverage passes run before each turn
// - Snippet selection memoized on file signatures and active model
// - Bounded change log fanned out to an optional listener
package contextcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/richinex/lampcode/internal/pathguard"
	"github.com/richinex/lampcode/internal/pathindex"
	"github.com/richinex/lampcode/internal/scanner"
)

// Entry is a tracked project file. Path is workspace-relative with forward
// slashes and never contains "..".
type Entry struct {
	Path          string    `json:"path"`
	Content       string    `json:"-"`
	Size          int64     `json:"size"`
	Modified      time.Time `json:"modified"`
	LastValidated time.Time `json:"-"`
}

// MaxEntryBytes caps the size of a file the cache will hold in memory.
const MaxEntryBytes = 1024 * 1024

// Options tune the cache.
type Options struct {
	ScanLimit          int
	StaleCheckInterval time.Duration
	MaxStaleChecks     int
	MaxCoverageAdds    int
	IndexDepth         int
	IndexLimit         int
	ChangeLogSize      int
	Selection          SelectionOptions
}

// DefaultOptions returns the stock cache tuning.
func DefaultOptions() Options {
	return Options{
		ScanLimit:          20,
		StaleCheckInterval: 5 * time.Minute,
		MaxStaleChecks:     3,
		MaxCoverageAdds:    5,
		IndexDepth:         4,
		IndexLimit:         400,
		ChangeLogSize:      50,
		Selection:          DefaultSelectionOptions(),
	}
}

// Cache is the single source of truth for files known to the agent. It is
// owned by the agent loop and is not safe for concurrent use.
type Cache struct {
	guard   *pathguard.Guard
	scanner *scanner.Scanner
	opts    Options
	logger  *slog.Logger
	now     func() time.Time

	entries map[string]*Entry
	order   []string
	byBase  map[string][]string
	known   *pathindex.Index
	recent  map[string]bool

	model      string
	memoKey    string
	memo       Selection
	memoActive bool

	index       []scanner.Entry
	indexLoaded bool

	changes  changeLog
	listener ChangeListener
}

// New creates an empty cache.
func New(guard *pathguard.Guard, sc *scanner.Scanner, opts Options, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	d := DefaultOptions()
	if opts.ScanLimit <= 0 {
		opts.ScanLimit = d.ScanLimit
	}
	if opts.StaleCheckInterval <= 0 {
		opts.StaleCheckInterval = d.StaleCheckInterval
	}
	if opts.MaxStaleChecks <= 0 {
		opts.MaxStaleChecks = d.MaxStaleChecks
	}
	if opts.MaxCoverageAdds <= 0 {
		opts.MaxCoverageAdds = d.MaxCoverageAdds
	}
	if opts.IndexDepth <= 0 {
		opts.IndexDepth = d.IndexDepth
	}
	if opts.IndexLimit <= 0 {
		opts.IndexLimit = d.IndexLimit
	}
	if opts.ChangeLogSize <= 0 {
		opts.ChangeLogSize = d.ChangeLogSize
	}
	opts.Selection = opts.Selection.withDefaults()

	return &Cache{
		guard:   guard,
		scanner: sc,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*Entry),
		byBase:  make(map[string][]string),
		known:   pathindex.New(),
		recent:  make(map[string]bool),
		changes: changeLog{size: opts.ChangeLogSize},
	}
}

// OnChange registers a listener for change-log records.
func (c *Cache) OnChange(fn ChangeListener) {
	c.listener = fn
}

// SetClock overrides the time source.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// SetModel records the active model. Changing it invalidates memoized
// snippets.
func (c *Cache) SetModel(model string) {
	if model != c.model {
		c.model = model
		c.invalidateSnippets()
	}
}

// NormalizePath converts p into its workspace-relative form.
func (c *Cache) NormalizePath(p string) (string, error) {
	abs, err := c.guard.Resolve(p)
	if err != nil {
		return "", err
	}
	return c.guard.Rel(abs)
}

// Load performs the initial project scan.
func (c *Cache) Load(ctx context.Context) error {
	_, err := c.Rescan(ctx)
	return err
}

// Rescan replaces the tracked set with a fresh scan of the workspace.
func (c *Cache) Rescan(ctx context.Context) ([]Entry, error) {
	return c.RescanWith(ctx, c.opts.ScanLimit, false)
}

// RescanWith is Rescan with an explicit file limit and hidden-file choice.
// A limit of zero or less uses the configured scan limit.
func (c *Cache) RescanWith(ctx context.Context, limit int, includeHidden bool) ([]Entry, error) {
	if limit <= 0 {
		limit = c.opts.ScanLimit
	}
	files, err := c.scanner.ScanProjectFiles(ctx, scanner.ProjectOptions{
		Limit:          limit,
		IncludeContent: true,
		IncludeHidden:  includeHidden,
	})
	if err != nil {
		return nil, fmt.Errorf("scan project files: %w", err)
	}
	c.SetProjectFiles(files)
	return c.Entries(), nil
}

// SetProjectFiles replaces all entries, rebuilds the indexes and records a
// context_refresh change.
func (c *Cache) SetProjectFiles(files []scanner.FileEntry) {
	c.entries = make(map[string]*Entry, len(files))
	c.order = c.order[:0]
	now := c.now()
	for _, f := range files {
		p, err := c.NormalizePath(f.Path)
		if err != nil {
			c.logger.Warn("skipping scanned file", "path", f.Path, "error", err)
			continue
		}
		if _, dup := c.entries[p]; dup {
			continue
		}
		c.entries[p] = &Entry{
			Path:          p,
			Content:       f.Content,
			Size:          f.Size,
			Modified:      f.Modified,
			LastValidated: now,
		}
		c.order = append(c.order, p)
		c.known.Add(p)
	}
	c.rebuildBaseIndex()
	c.invalidateSnippets()
	c.invalidateIndex()
	c.record(Change{Type: ChangeContextRefresh, Count: len(c.order)})
}

// Entries returns copies of all tracked entries in insertion order.
func (c *Cache) Entries() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, p := range c.order {
		out = append(out, *c.entries[p])
	}
	return out
}

// Lookup returns the tracked entry for p.
func (c *Cache) Lookup(p string) (Entry, bool) {
	norm, err := c.NormalizePath(p)
	if err != nil {
		return Entry{}, false
	}
	e, ok := c.entries[norm]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of tracked entries.
func (c *Cache) Len() int {
	return len(c.order)
}

// LoadEntry reads p from disk and upserts it. The returned flag reports
// whether the entry is new or its signature changed. Paths outside the
// workspace or reached through symlinks are rejected.
func (c *Cache) LoadEntry(ctx context.Context, p string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	abs, err := c.guard.Check(p)
	if err != nil {
		return Entry{}, false, err
	}
	norm, err := c.guard.Rel(abs)
	if err != nil {
		return Entry{}, false, err
	}

	meta, err := c.scanner.ReadEntry(abs, false)
	if err != nil {
		return Entry{}, false, err
	}
	if meta.Size > MaxEntryBytes {
		return Entry{}, false, fmt.Errorf("%s: file too large to track: %d bytes (max: %d bytes)", norm, meta.Size, MaxEntryBytes)
	}
	file, err := c.scanner.ReadEntry(abs, true)
	if err != nil {
		return Entry{}, false, err
	}

	next := Entry{
		Path:          norm,
		Content:       file.Content,
		Size:          file.Size,
		Modified:      file.Modified,
		LastValidated: c.now(),
	}

	prev, existed := c.entries[norm]
	changed := !existed ||
		!prev.Modified.Equal(next.Modified) ||
		prev.Size != next.Size ||
		prev.Content != next.Content

	if changed {
		c.invalidateSnippets()
	}
	if !existed {
		c.invalidateIndex()
		c.order = append(c.order, norm)
		c.addBase(norm)
	}
	c.entries[norm] = &next
	c.known.Add(norm)
	return next, changed || !existed, nil
}

// Refresh reloads p and records a change of the given type. An empty type
// selects file_added for new entries and file_updated otherwise.
func (c *Cache) Refresh(ctx context.Context, p string, change ChangeType) (Entry, error) {
	_, existed := c.Lookup(p)
	entry, _, err := c.LoadEntry(ctx, p)
	if err != nil {
		return Entry{}, err
	}
	if change == "" {
		change = ChangeFileUpdated
		if !existed {
			change = ChangeFileAdded
		}
	}
	c.record(Change{Type: change, Path: entry.Path})
	return entry, nil
}

// Remove drops p from every index.
func (c *Cache) Remove(p string) {
	norm, err := c.NormalizePath(p)
	if err != nil {
		return
	}
	c.remove(norm)
}

func (c *Cache) remove(norm string) {
	c.known.Remove(norm)
	delete(c.recent, norm)
	if _, ok := c.entries[norm]; !ok {
		return
	}
	delete(c.entries, norm)
	for i, p := range c.order {
		if p == norm {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.rebuildBaseIndex()
	c.invalidateSnippets()
	c.invalidateIndex()
}

// EnsureCoverage runs the per-turn maintenance passes: a throttled
// staleness check over a few entries, then a coverage pass that loads known
// paths missing from the tracked set.
func (c *Cache) EnsureCoverage(ctx context.Context) {
	c.validateStale(ctx)

	if _, err := c.DirectoryIndex(ctx); err != nil {
		c.logger.Debug("directory index unavailable", "error", err)
	}

	var missing []string
	for _, p := range c.known.All() {
		if _, ok := c.entries[p]; !ok {
			missing = append(missing, p)
		}
	}

	added := 0
	for _, p := range missing {
		if added >= c.opts.MaxCoverageAdds {
			break
		}
		if _, _, err := c.LoadEntry(ctx, p); err != nil {
			c.logger.Debug("dropping unreadable known path", "path", p, "error", err)
			c.known.Remove(p)
			continue
		}
		added++
	}
}

func (c *Cache) validateStale(ctx context.Context) {
	now := c.now()
	var due []*Entry
	for _, p := range c.order {
		e := c.entries[p]
		if now.Sub(e.LastValidated) >= c.opts.StaleCheckInterval {
			due = append(due, e)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].LastValidated.Before(due[j].LastValidated)
	})
	if len(due) > c.opts.MaxStaleChecks {
		due = due[:c.opts.MaxStaleChecks]
	}

	for _, e := range due {
		p := e.Path
		abs, err := c.guard.Check(p)
		if err != nil {
			c.remove(p)
			continue
		}
		meta, err := c.scanner.ReadEntry(abs, false)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				c.logger.Debug("tracked file removed", "path", p)
			}
			c.remove(p)
			continue
		}
		if !meta.Modified.Equal(e.Modified) || meta.Size != e.Size {
			if _, _, err := c.LoadEntry(ctx, p); err != nil {
				c.remove(p)
			}
			continue
		}
		e.LastValidated = now
	}
}

// DirectoryIndex returns the cached workspace index, building it on first
// use. Every listed file seeds the known-paths set. A failed build leaves
// the index unloaded so the next call retries.
func (c *Cache) DirectoryIndex(ctx context.Context) ([]scanner.Entry, error) {
	if c.indexLoaded {
		return c.index, nil
	}
	entries, _, err := c.scanner.BuildDirectoryIndex(ctx, ".", scanner.IndexOptions{
		MaxDepth:     c.opts.IndexDepth,
		IncludeFiles: true,
		Limit:        c.opts.IndexLimit,
		Concurrency:  3,
	})
	if err != nil {
		c.invalidateIndex()
		return nil, err
	}
	for _, e := range entries {
		if e.Type == scanner.EntryFile {
			c.known.Add(e.Path)
		}
	}
	c.index = entries
	c.indexLoaded = true
	return entries, nil
}

// KnownPaths returns every path the cache has seen, sorted.
func (c *Cache) KnownPaths() []string {
	return c.known.All()
}

// Select returns the budgeted snippet selection for this turn and marks
// the chosen files as recent. Results are memoized on the tracked file
// signatures, the active model and the budget.
func (c *Cache) Select(budget int) Selection {
	key := c.contextKey() + "#" + c.model + "#" + strconv.Itoa(budget)
	if c.memoActive && c.memoKey == key {
		return c.memo
	}

	sel := SelectWithBudget(c.Entries(), c.recent, budget, c.opts.Selection)

	c.recent = make(map[string]bool, len(sel.Snippets))
	for _, sn := range sel.Snippets {
		c.recent[sn.Path] = true
	}
	c.memoKey = key
	c.memo = sel
	c.memoActive = true
	return sel
}

// contextKey is the sorted path:modified:size signature of all entries.
func (c *Cache) contextKey() string {
	parts := make([]string, 0, len(c.order))
	for _, p := range c.order {
		e := c.entries[p]
		parts = append(parts, fmt.Sprintf("%s:%d:%d", e.Path, e.Modified.UnixNano(), e.Size))
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// Suggest proposes up to n tracked or known paths resembling p. Exact base
// name matches come first, then fuzzy matches from p's directory, then
// fuzzy matches from the whole workspace.
func (c *Cache) Suggest(p string, n int) []string {
	if n <= 0 {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if !seen[s] && len(out) < n {
			seen[s] = true
			out = append(out, s)
		}
	}

	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	for _, candidate := range c.byBase[strings.ToLower(base)] {
		add(candidate)
	}

	if norm, err := c.NormalizePath(p); err == nil {
		for _, m := range fuzzy.Find(base, c.known.Siblings(norm)) {
			add(m.Str)
		}
	}
	for _, m := range fuzzy.Find(base, c.known.All()) {
		add(m.Str)
	}
	return out
}

// RecentChanges returns up to limit change records, oldest first.
func (c *Cache) RecentChanges(limit int) []Change {
	return c.changes.recent(limit)
}

func (c *Cache) record(ch Change) {
	if ch.Timestamp.IsZero() {
		ch.Timestamp = c.now()
	}
	c.changes.add(ch)
	if c.listener != nil {
		c.listener(ch)
	}
}

func (c *Cache) rebuildBaseIndex() {
	c.byBase = make(map[string][]string, len(c.order))
	for _, p := range c.order {
		c.addBase(p)
	}
}

func (c *Cache) addBase(p string) {
	key := strings.ToLower(path.Base(p))
	c.byBase[key] = append(c.byBase[key], p)
}

func (c *Cache) invalidateSnippets() {
	c.memoActive = false
	c.memoKey = ""
	c.memo = Selection{}
}

func (c *Cache) invalidateIndex() {
	c.index = nil
	c.indexLoaded = false
}
