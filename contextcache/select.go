package contextcache

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/richinex/lampcode/internal/tokens"
)

// TruncationMarker is appended to snippets shortened to fit the budget.
const TruncationMarker = "\n...\n[truncated for token budget]"

// SelectionOptions tune the greedy budget selector.
type SelectionOptions struct {
	MaxFiles        int     `yaml:"max_files"`
	SnippetLength   int     `yaml:"snippet_length"`
	PerFileOverhead int     `yaml:"per_file_overhead"`
	ShrinkRatio     float64 `yaml:"shrink_ratio"`
	MinSnippet      int     `yaml:"min_snippet"`
	RecentBonus     float64 `yaml:"recent_bonus"`
}

// DefaultSelectionOptions returns the stock selector tuning.
func DefaultSelectionOptions() SelectionOptions {
	return SelectionOptions{
		MaxFiles:        8,
		SnippetLength:   1200,
		PerFileOverhead: 50,
		ShrinkRatio:     0.7,
		MinSnippet:      200,
		RecentBonus:     5,
	}
}

func (o SelectionOptions) withDefaults() SelectionOptions {
	d := DefaultSelectionOptions()
	if o.MaxFiles <= 0 {
		o.MaxFiles = d.MaxFiles
	}
	if o.SnippetLength <= 0 {
		o.SnippetLength = d.SnippetLength
	}
	if o.PerFileOverhead < 0 {
		o.PerFileOverhead = d.PerFileOverhead
	}
	if o.ShrinkRatio <= 0 || o.ShrinkRatio >= 1 {
		o.ShrinkRatio = d.ShrinkRatio
	}
	if o.MinSnippet <= 0 {
		o.MinSnippet = d.MinSnippet
	}
	return o
}

// Snippet is one file chosen for the prompt.
type Snippet struct {
	Path      string
	Content   string
	Tokens    int // estimated, including per-file overhead
	Truncated bool
}

// Selection is the outcome of a budgeted selection.
type Selection struct {
	Snippets []Snippet
	Tokens   int
}

// Paths returns the selected paths in prompt order.
func (s Selection) Paths() []string {
	out := make([]string, len(s.Snippets))
	for i, sn := range s.Snippets {
		out[i] = sn.Path
	}
	return out
}

// Block renders the selection as the project context section of the
// system prompt. An empty selection renders as "".
func (s Selection) Block() string {
	if len(s.Snippets) == 0 {
		return ""
	}
	parts := make([]string, len(s.Snippets))
	for i, sn := range s.Snippets {
		parts[i] = "File: " + sn.Path + "\n" + sn.Content
	}
	return "\n\n## Project Context\n\nHere are relevant snippets from your project:\n\n" + strings.Join(parts, "\n\n")
}

// SelectWithBudget greedily picks snippets from entries, highest score first,
// never exceeding budget estimated tokens. Files mentioned last turn (recent)
// score higher; among the rest smaller files win. A snippet that does not fit
// is shrunk by opts.ShrinkRatio until it fits or drops below opts.MinSnippet,
// in which case the file is skipped.
func SelectWithBudget(entries []Entry, recent map[string]bool, budget int, opts SelectionOptions) Selection {
	opts = opts.withDefaults()
	var sel Selection
	if budget <= 0 {
		return sel
	}

	type candidate struct {
		entry Entry
		score float64
	}
	cands := make([]candidate, 0, len(entries))
	for _, e := range entries {
		if e.Content == "" {
			continue
		}
		score := -math.Log(math.Max(float64(len(e.Content)), 1))
		if recent[e.Path] {
			score += opts.RecentBonus
		}
		cands = append(cands, candidate{entry: e, score: score})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].entry.Path < cands[j].entry.Path
	})

	for _, c := range cands {
		if len(sel.Snippets) >= opts.MaxFiles {
			break
		}
		n := opts.SnippetLength
		text, truncated := snippet(c.entry.Content, n)
		cost := tokens.Estimate(text) + opts.PerFileOverhead

		for sel.Tokens+cost > budget && n > opts.MinSnippet {
			n = int(float64(n) * opts.ShrinkRatio)
			text, truncated = snippet(c.entry.Content, n)
			cost = tokens.Estimate(text) + opts.PerFileOverhead
		}
		if sel.Tokens+cost > budget {
			continue
		}

		sel.Snippets = append(sel.Snippets, Snippet{
			Path:      c.entry.Path,
			Content:   text,
			Tokens:    cost,
			Truncated: truncated,
		})
		sel.Tokens += cost
	}
	return sel
}

// snippet returns the first n bytes of content, cut on a rune boundary,
// with the truncation marker when anything was dropped.
func snippet(content string, n int) (string, bool) {
	if n >= len(content) {
		return content, false
	}
	if n < 0 {
		n = 0
	}
	for n > 0 && !utf8.RuneStart(content[n]) {
		n--
	}
	return content[:n] + TruncationMarker, true
}
