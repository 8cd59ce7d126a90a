package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewValidProvider(t *testing.T) {
	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", settings.LLM.Provider)
	}
}

func TestNewWithAlias(t *testing.T) {
	settings, err := New("claude")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic' (normalized from 'claude'), got %q", settings.LLM.Provider)
	}
}

func TestNewDefaultsToOpenRouter(t *testing.T) {
	t.Setenv("LAMPCODE_PROVIDER", "")
	t.Setenv("OPENROUTER_MODEL", "")
	settings, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "openrouter" || settings.LLM.Model != "x-ai/grok-code-fast-1" {
		t.Errorf("got %s/%s", settings.LLM.Provider, settings.LLM.Model)
	}
	if settings.Agent.MaxToolIterations != 20 || settings.LLM.Timeout != 30*time.Second {
		t.Errorf("unexpected defaults: %+v %+v", settings.Agent, settings.LLM)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("unknown_provider")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LAMPCODE_WORKDIR", dir)
	t.Setenv("LAMPCODE_LOG_DIR", "")
	t.Setenv("LAMPCODE_MAX_TOOL_ITERATIONS", "5")
	t.Setenv("LLM_TIMEOUT_SECONDS", "12")
	t.Setenv("LAMPCODE_ENABLE_LOGGING", "false")
	t.Setenv("OPENROUTER_MODEL", "openai/gpt-4")

	settings, err := New("openrouter")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Agent.MaxToolIterations != 5 {
		t.Errorf("MaxToolIterations = %d", settings.Agent.MaxToolIterations)
	}
	if settings.LLM.Timeout != 12*time.Second {
		t.Errorf("Timeout = %v", settings.LLM.Timeout)
	}
	if settings.Logging.Enabled {
		t.Error("logging should be disabled")
	}
	if settings.LLM.Model != "openai/gpt-4" {
		t.Errorf("Model = %q", settings.LLM.Model)
	}
	if settings.Workspace != dir {
		t.Errorf("Workspace = %q, want %q", settings.Workspace, dir)
	}
	if want := filepath.Join(dir, ".lampcode", "lampcode.db"); settings.JournalPath() != want {
		t.Errorf("JournalPath = %q, want %q", settings.JournalPath(), want)
	}
}

func TestAPIKeyForValidProvider(t *testing.T) {
	original := os.Getenv("OPENAI_API_KEY")
	os.Setenv("OPENAI_API_KEY", "test-key")
	defer os.Setenv("OPENAI_API_KEY", original)

	key, err := APIKeyFor("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "test-key" {
		t.Errorf("expected 'test-key', got %q", key)
	}
}

func TestAPIKeyForMissing(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")

	_, err := APIKeyFor("openrouter")
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestAPIKeyForUnknownProvider(t *testing.T) {
	_, err := APIKeyFor("unknown")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestModelFor(t *testing.T) {
	model, err := ModelFor("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model == "" {
		t.Error("expected non-empty model")
	}
}

func TestNewWithInvalidEnvVar(t *testing.T) {
	tests := []struct {
		key, val string
	}{
		{"LLM_MAX_TOKENS", "not-a-number"},
		{"LAMPCODE_MAX_TOOL_ITERATIONS", "0"},
		{"LAMPCODE_ENABLE_LOGGING", "maybe"},
		{"LLM_MAX_RETRIES", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := New("openai"); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.val)
			}
		})
	}
}

func TestLoadAppliesFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LAMPCODE_LOG_DIR", "")
	t.Setenv("LAMPCODE_PROVIDER", "")
	t.Setenv("ANTHROPIC_MODEL", "")
	t.Setenv("LAMPCODE_MAX_TOOL_ITERATIONS", "7")

	cfgDir := filepath.Join(dir, DefaultLogDir)
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	yamlData := `
llm:
  provider: anthropic
  model: claude-sonnet-4-20250514
  timeout: 45s
agent:
  max_tool_iterations: 3
  repetition_threshold: 4
context:
  shrink_ratio: 0.5
  min_snippet: 100
`
	if err := os.WriteFile(filepath.Join(cfgDir, FileName), []byte(yamlData), 0o644); err != nil {
		t.Fatal(err)
	}

	settings, err := Load("", dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if settings.LLM.Provider != "anthropic" || settings.LLM.Model != "claude-sonnet-4-20250514" {
		t.Errorf("llm = %+v", settings.LLM)
	}
	if settings.LLM.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v", settings.LLM.Timeout)
	}
	if settings.Agent.MaxToolIterations != 7 {
		t.Errorf("env should win over file, got %d", settings.Agent.MaxToolIterations)
	}
	if settings.Agent.RepetitionThreshold != 4 || settings.Agent.RepetitionWindow != 10 {
		t.Errorf("agent = %+v", settings.Agent)
	}
	if settings.Context.ShrinkRatio != 0.5 || settings.Context.MaxFiles != 8 {
		t.Errorf("context = %+v", settings.Context)
	}
	if settings.Workspace != dir {
		t.Errorf("Workspace = %q", settings.Workspace)
	}
}

func TestLoadProviderArgDropsFileModel(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LAMPCODE_LOG_DIR", "")
	t.Setenv("OPENROUTER_MODEL", "")
	s := Defaults()
	s.LLM.Provider = "anthropic"
	s.LLM.Model = "claude-sonnet-4-20250514"
	if err := WriteFile(s, filepath.Join(dir, DefaultLogDir, FileName)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	settings, err := Load("openrouter", dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if settings.LLM.Model != "x-ai/grok-code-fast-1" {
		t.Errorf("Model = %q, want provider default", settings.LLM.Model)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LAMPCODE_LOG_DIR", "")
	cfgDir := filepath.Join(dir, DefaultLogDir)
	_ = os.MkdirAll(cfgDir, 0o755)
	_ = os.WriteFile(filepath.Join(cfgDir, FileName), []byte("agent: [unclosed"), 0o644)

	if _, err := Load("openai", dir); err == nil {
		t.Error("expected parse error")
	}
}

func TestMustNewPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for unknown provider")
		}
	}()
	MustNew("unknown_provider")
}

func TestSupportedProviders(t *testing.T) {
	providers := SupportedProviders()
	if len(providers) != 5 {
		t.Errorf("expected 5 supported providers, got %v", providers)
	}
}

func TestLookupProfile(t *testing.T) {
	tests := []struct {
		model       string
		want        string
		budget      int
		manual      bool
		breakpoints int
	}{
		{"x-ai/grok-code-fast-1", "x-ai/grok-code-fast-1", 247000, false, 4},
		{"anthropic/claude-3.5-sonnet", "anthropic/claude-3.5-sonnet", 166808, true, 4},
		{"claude-sonnet-4-20250514", "anthropic/claude-3.5-sonnet", 166808, true, 4},
		{"gemini-2.5-pro", "google/gemini-2.5-pro", 981808, true, 4},
		{"gpt-4o", "openai/gpt-4", 111904, false, 4},
		{"mystery-model", DefaultProfileName, 6000, false, 4},
	}
	for _, tt := range tests {
		p := LookupProfile(tt.model)
		if p.Name != tt.want {
			t.Errorf("LookupProfile(%q).Name = %q, want %q", tt.model, p.Name, tt.want)
		}
		if p.PromptBudget() != tt.budget {
			t.Errorf("%s budget = %d, want %d", tt.model, p.PromptBudget(), tt.budget)
		}
		if p.ManualCaching() != tt.manual {
			t.Errorf("%s manual caching = %v", tt.model, p.ManualCaching())
		}
		if p.Breakpoints() != tt.breakpoints {
			t.Errorf("%s breakpoints = %d", tt.model, p.Breakpoints())
		}
	}
}

func TestValidateModel(t *testing.T) {
	if err := ValidateModel("openai/gpt-4"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, m := range []string{"gpt-9", DefaultProfileName} {
		if err := ValidateModel(m); !errors.Is(err, ErrUnknownModel) {
			t.Errorf("ValidateModel(%q) = %v, want ErrUnknownModel", m, err)
		}
	}
	if n := len(AvailableModels()); n != 7 {
		t.Errorf("AvailableModels = %d, want 7", n)
	}
}
