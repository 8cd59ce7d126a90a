package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownModel is returned when switching to a model with no profile.
var ErrUnknownModel = errors.New("unknown model")

// DefaultProfileName keys the conservative fallback profile.
const DefaultProfileName = "default"

// ModelProfile describes a model's context window and caching behavior.
type ModelProfile struct {
	Name               string
	MaxInputTokens     int
	SafetyMarginTokens int
	MaxOutputTokens    int
	SupportsCaching    bool
	AutoCaching        bool // Provider caches prefixes without explicit hints
	BreakpointLimit    int  // Explicit cache breakpoints allowed per request
	MinCacheTokens     int  // Smallest prefix the provider will cache
}

// PromptBudget is the input token budget left for system prompt, history,
// context and the user message.
func (p ModelProfile) PromptBudget() int {
	return max(p.MaxInputTokens-p.MaxOutputTokens-p.SafetyMarginTokens, 0)
}

// ManualCaching reports whether requests need explicit cache breakpoints.
func (p ModelProfile) ManualCaching() bool {
	return p.SupportsCaching && !p.AutoCaching
}

// Breakpoints returns the usable breakpoint count, 4 when unspecified.
func (p ModelProfile) Breakpoints() int {
	if p.BreakpointLimit > 0 {
		return p.BreakpointLimit
	}
	return 4
}

var profiles = map[string]ModelProfile{
	"x-ai/grok-code-fast-1": {
		MaxInputTokens: 256000, SafetyMarginTokens: 5000, MaxOutputTokens: 4000,
		SupportsCaching: true, AutoCaching: true,
	},
	"anthropic/claude-3.5-sonnet": {
		MaxInputTokens: 180000, SafetyMarginTokens: 5000, MaxOutputTokens: 8192,
		SupportsCaching: true, BreakpointLimit: 4,
	},
	"openai/gpt-4": {
		MaxInputTokens: 120000, SafetyMarginTokens: 4000, MaxOutputTokens: 4096,
		SupportsCaching: true, AutoCaching: true, MinCacheTokens: 1024,
	},
	"openai/gpt-3.5-turbo": {
		MaxInputTokens: 15000, SafetyMarginTokens: 2000, MaxOutputTokens: 4096,
	},
	"google/gemini-2.5-pro": {
		MaxInputTokens: 1000000, SafetyMarginTokens: 10000, MaxOutputTokens: 8192,
		SupportsCaching: true, MinCacheTokens: 2048,
	},
	"google/gemini-2.5-flash": {
		MaxInputTokens: 1000000, SafetyMarginTokens: 10000, MaxOutputTokens: 8192,
		SupportsCaching: true, MinCacheTokens: 1028,
	},
	"deepseek/deepseek-chat": {
		MaxInputTokens: 64000, SafetyMarginTokens: 3000, MaxOutputTokens: 4096,
		SupportsCaching: true, AutoCaching: true,
	},
	DefaultProfileName: {
		MaxInputTokens: 8000, SafetyMarginTokens: 1000, MaxOutputTokens: 1000,
	},
}

// familyProfiles maps bare provider model names to the closest profile.
var familyProfiles = []struct {
	substr  string
	profile string
}{
	{"claude", "anthropic/claude-3.5-sonnet"},
	{"gemini-2.5-pro", "google/gemini-2.5-pro"},
	{"gemini", "google/gemini-2.5-flash"},
	{"gpt-3.5", "openai/gpt-3.5-turbo"},
	{"gpt", "openai/gpt-4"},
	{"deepseek", "deepseek/deepseek-chat"},
	{"grok", "x-ai/grok-code-fast-1"},
}

// LookupProfile returns the profile for model: an exact match, then a
// family match for provider-native ids like "claude-sonnet-4-20250514",
// then the conservative default.
func LookupProfile(model string) ModelProfile {
	if p, ok := exactProfile(model); ok {
		return p
	}
	lower := strings.ToLower(model)
	for _, f := range familyProfiles {
		if strings.Contains(lower, f.substr) {
			p, _ := exactProfile(f.profile)
			return p
		}
	}
	p, _ := exactProfile(DefaultProfileName)
	return p
}

func exactProfile(name string) (ModelProfile, bool) {
	p, ok := profiles[name]
	if ok {
		p.Name = name
	}
	return p, ok
}

// ValidateModel rejects model ids without an exact profile.
func ValidateModel(model string) error {
	if model == DefaultProfileName {
		return fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	if _, ok := profiles[model]; !ok {
		return fmt.Errorf("%w: %q (available: %s)", ErrUnknownModel, model, strings.Join(AvailableModels(), ", "))
	}
	return nil
}

// AvailableModels returns the profiled model ids, sorted.
func AvailableModels() []string {
	out := make([]string, 0, len(profiles)-1)
	for name := range profiles {
		if name != DefaultProfileName {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
