package contextcache

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func entry(path string, size int) Entry {
	return Entry{Path: path, Content: strings.Repeat("x", size), Size: int64(size)}
}

func TestSelectWithBudget_NeverExceedsBudget(t *testing.T) {
	entries := []Entry{
		entry("a.go", 5000),
		entry("b.go", 3000),
		entry("c.go", 800),
		entry("d.go", 120),
		entry("e.go", 40),
	}
	for _, budget := range []int{0, 10, 60, 100, 250, 400, 1000, 5000} {
		sel := SelectWithBudget(entries, nil, budget, DefaultSelectionOptions())
		if sel.Tokens > budget {
			t.Errorf("budget %d: selected %d tokens", budget, sel.Tokens)
		}
		sum := 0
		for _, sn := range sel.Snippets {
			sum += sn.Tokens
		}
		if sum != sel.Tokens {
			t.Errorf("budget %d: snippet tokens sum %d != %d", budget, sum, sel.Tokens)
		}
	}
}

func TestSelectWithBudget_SmallFilesFirst(t *testing.T) {
	entries := []Entry{entry("big.go", 900), entry("small.go", 10)}

	sel := SelectWithBudget(entries, nil, 10000, DefaultSelectionOptions())
	got := sel.Paths()
	if len(got) != 2 || got[0] != "small.go" || got[1] != "big.go" {
		t.Errorf("Paths() = %v, want [small.go big.go]", got)
	}
}

func TestSelectWithBudget_RecentBonus(t *testing.T) {
	entries := []Entry{entry("big.go", 900), entry("small.go", 10)}

	sel := SelectWithBudget(entries, map[string]bool{"big.go": true}, 10000, DefaultSelectionOptions())
	if got := sel.Paths(); got[0] != "big.go" {
		t.Errorf("Paths() = %v, want recent big.go first", got)
	}
}

func TestSelectWithBudget_ShrinksToFit(t *testing.T) {
	entries := []Entry{entry("a.go", 5000)}

	// Full snippet costs 300+50+marker; 250 forces at least one shrink.
	sel := SelectWithBudget(entries, nil, 250, DefaultSelectionOptions())
	if len(sel.Snippets) != 1 {
		t.Fatalf("selected %d snippets, want 1", len(sel.Snippets))
	}
	sn := sel.Snippets[0]
	if !sn.Truncated || !strings.HasSuffix(sn.Content, TruncationMarker) {
		t.Errorf("snippet not marked truncated: %q", sn.Content[len(sn.Content)-40:])
	}
	if body := strings.TrimSuffix(sn.Content, TruncationMarker); len(body) >= 1200 {
		t.Errorf("snippet body %d bytes, want shrunk below 1200", len(body))
	}
}

func TestSelectWithBudget_SkipsWhenFloorReached(t *testing.T) {
	entries := []Entry{entry("a.go", 5000)}

	sel := SelectWithBudget(entries, nil, 60, DefaultSelectionOptions())
	if len(sel.Snippets) != 0 {
		t.Errorf("selected %v, want nothing under a 60-token budget", sel.Paths())
	}
}

func TestSelectWithBudget_MaxFiles(t *testing.T) {
	var entries []Entry
	for i := 0; i < 12; i++ {
		entries = append(entries, entry(string(rune('a'+i))+".go", 10))
	}
	opts := DefaultSelectionOptions()
	opts.MaxFiles = 3

	sel := SelectWithBudget(entries, nil, 100000, opts)
	if len(sel.Snippets) != 3 {
		t.Errorf("selected %d, want 3", len(sel.Snippets))
	}
}

func TestSelectWithBudget_SkipsEmptyContent(t *testing.T) {
	entries := []Entry{{Path: "empty.go"}, entry("a.go", 10)}

	sel := SelectWithBudget(entries, nil, 1000, DefaultSelectionOptions())
	if got := sel.Paths(); len(got) != 1 || got[0] != "a.go" {
		t.Errorf("Paths() = %v, want [a.go]", got)
	}
}

func TestSnippet_RuneBoundary(t *testing.T) {
	content := strings.Repeat("é", 10) // 2 bytes each
	got, truncated := snippet(content, 5)
	if !truncated {
		t.Fatal("expected truncation")
	}
	body := strings.TrimSuffix(got, TruncationMarker)
	if !utf8.ValidString(body) || len(body) != 4 {
		t.Errorf("body = %q (%d bytes), want 2 whole runes", body, len(body))
	}
}

func TestSelectionBlock(t *testing.T) {
	sel := Selection{Snippets: []Snippet{{Path: "a.go", Content: "package a"}}}

	block := sel.Block()
	if !strings.Contains(block, "## Project Context") || !strings.Contains(block, "File: a.go\npackage a") {
		t.Errorf("Block() = %q", block)
	}
	if (Selection{}).Block() != "" {
		t.Error("empty selection should render as empty string")
	}
}
