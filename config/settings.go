// Package config provides application settings loaded from environment
// variables and an optional YAML file in the workspace.
//
// Settings are created via New() or Load() which handle:
// - Default value application
// - YAML overlay from <workdir>/.lampcode/config.yaml (Load only)
// - Environment variable parsing with validation (env wins over file)
// - Provider-specific configuration lookup

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultLogDir is the dot-directory that holds the journal and config file.
const DefaultLogDir = ".lampcode"

// Settings holds all application configuration.
type Settings struct {
	LLM       LLMConfig     `yaml:"llm"`
	Agent     AgentConfig   `yaml:"agent"`
	Context   ContextConfig `yaml:"context"`
	Logging   LoggingConfig `yaml:"logging"`
	Workspace string        `yaml:"-"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	MaxTokens   uint32        `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
}

// AgentConfig holds agent loop configuration.
type AgentConfig struct {
	MaxToolIterations   int     `yaml:"max_tool_iterations"`
	DecisionTemperature float64 `yaml:"decision_temperature"`
	SummaryTemperature  float64 `yaml:"summary_temperature"`
	MaxHistoryEntries   int     `yaml:"max_history_entries"`
	MaxHistoryTokens    int     `yaml:"max_history_tokens"`
	RecentHistory       int     `yaml:"recent_history"`
	MinContextTokens    int     `yaml:"min_context_tokens"`
	RepetitionWindow    int     `yaml:"repetition_window"`
	RepetitionThreshold int     `yaml:"repetition_threshold"`
	ToolHistorySize     int     `yaml:"tool_history_size"`
}

// ContextConfig tunes the project context cache and snippet selector.
type ContextConfig struct {
	ScanLimit     int     `yaml:"scan_limit"`
	MaxFiles      int     `yaml:"max_files"`
	SnippetLength int     `yaml:"snippet_length"`
	ShrinkRatio   float64 `yaml:"shrink_ratio"`
	MinSnippet    int     `yaml:"min_snippet"`
}

// LoggingConfig controls diagnostics and the on-disk session journal.
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
	Level         string `yaml:"level"`
}

// JournalPath returns the sqlite journal location inside the workspace.
func (s Settings) JournalPath() string {
	return filepath.Join(s.LogDir(), "lampcode.db")
}

// LogDir returns the absolute log directory.
func (s Settings) LogDir() string {
	if filepath.IsAbs(s.Logging.Dir) {
		return s.Logging.Dir
	}
	return filepath.Join(s.Workspace, s.Logging.Dir)
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openrouter": {"OPENROUTER_MODEL", "x-ai/grok-code-fast-1", "OPENROUTER_API_KEY"},
	"openai":     {"OPENAI_MODEL", "gpt-4o", "OPENAI_API_KEY"},
	"anthropic":  {"ANTHROPIC_MODEL", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY"},
	"deepseek":   {"DEEPSEEK_MODEL", "deepseek-chat", "DEEPSEEK_API_KEY"},
	"gemini":     {"GEMINI_MODEL", "gemini-2.5-flash", "GEMINI_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// Defaults returns settings with every tunable at its stock value.
func Defaults() Settings {
	return Settings{
		LLM: LLMConfig{
			Provider:    "openrouter",
			MaxTokens:   4096,
			Temperature: 0.7,
			Timeout:     30 * time.Second,
			MaxRetries:  3,
		},
		Agent: AgentConfig{
			MaxToolIterations:   20,
			DecisionTemperature: 0.2,
			SummaryTemperature:  0.7,
			MaxHistoryEntries:   40,
			MaxHistoryTokens:    8000,
			RecentHistory:       10,
			MinContextTokens:    500,
			RepetitionWindow:    10,
			RepetitionThreshold: 3,
			ToolHistorySize:     25,
		},
		Context: ContextConfig{
			ScanLimit:     20,
			MaxFiles:      8,
			SnippetLength: 1200,
			ShrinkRatio:   0.7,
			MinSnippet:    200,
		},
		Logging: LoggingConfig{
			Enabled:       true,
			Dir:           DefaultLogDir,
			RetentionDays: 30,
			Level:         "info",
		},
	}
}

// New creates settings for the specified provider from defaults and
// environment variables. An empty provider falls back to LAMPCODE_PROVIDER.
// Returns an error if the provider is unknown or environment variables contain invalid values.
func New(provider string) (Settings, error) {
	s := Defaults()
	workspace, err := workspaceFromEnv()
	if err != nil {
		return Settings{}, err
	}
	s.Workspace = workspace
	return finish(s, provider)
}

// Load is New plus the YAML overlay from the workspace's log directory.
// workdir overrides LAMPCODE_WORKDIR when non-empty.
func Load(provider, workdir string) (Settings, error) {
	s := Defaults()
	if workdir == "" {
		var err error
		if workdir, err = workspaceFromEnv(); err != nil {
			return Settings{}, err
		}
	}
	abs, err := filepath.Abs(workdir)
	if err != nil {
		return Settings{}, fmt.Errorf("resolve working directory: %w", err)
	}
	s.Workspace = abs

	logDir := getEnv("LAMPCODE_LOG_DIR", DefaultLogDir)
	if !filepath.IsAbs(logDir) {
		logDir = filepath.Join(abs, logDir)
	}
	if err := applyFile(&s, filepath.Join(logDir, FileName)); err != nil {
		return Settings{}, err
	}
	return finish(s, provider)
}

// MustNew creates settings for the specified provider.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// finish applies env overrides on top of s and resolves the provider/model.
func finish(s Settings, provider string) (Settings, error) {
	if provider == "" {
		provider = getEnv("LAMPCODE_PROVIDER", s.LLM.Provider)
	}
	provider = normalizeProvider(provider)
	info, err := getProviderInfo(provider)
	if err != nil {
		return Settings{}, err
	}
	if provider != s.LLM.Provider {
		// A model from the file belongs to the file's provider.
		s.LLM.Model = ""
	}
	s.LLM.Provider = provider

	if err := applyEnv(&s); err != nil {
		return Settings{}, err
	}

	if model := os.Getenv(info.modelEnv); model != "" {
		s.LLM.Model = model
	}
	if s.LLM.Model == "" {
		s.LLM.Model = info.defaultModel
	}
	return s, nil
}

// applyEnv overrides fields whose environment variables are set.
func applyEnv(s *Settings) error {
	var err error
	if s.LLM.MaxTokens, err = getEnvUint32("LLM_MAX_TOKENS", s.LLM.MaxTokens); err != nil {
		return err
	}
	if s.LLM.Temperature, err = getEnvFloat64("LLM_TEMPERATURE", s.LLM.Temperature); err != nil {
		return err
	}
	timeoutSecs, err := getEnvInt("LLM_TIMEOUT_SECONDS", 0)
	if err != nil {
		return err
	}
	if timeoutSecs > 0 {
		s.LLM.Timeout = time.Duration(timeoutSecs) * time.Second
	}
	if s.LLM.MaxRetries, err = getEnvInt("LLM_MAX_RETRIES", s.LLM.MaxRetries); err != nil {
		return err
	}
	if s.Agent.MaxToolIterations, err = getEnvInt("LAMPCODE_MAX_TOOL_ITERATIONS", s.Agent.MaxToolIterations); err != nil {
		return err
	}
	if s.Logging.Enabled, err = getEnvBool("LAMPCODE_ENABLE_LOGGING", s.Logging.Enabled); err != nil {
		return err
	}
	if s.Logging.RetentionDays, err = getEnvInt("LAMPCODE_LOG_RETENTION_DAYS", s.Logging.RetentionDays); err != nil {
		return err
	}
	s.Logging.Dir = getEnv("LAMPCODE_LOG_DIR", s.Logging.Dir)
	s.Logging.Level = getEnv("LAMPCODE_LOG_LEVEL", s.Logging.Level)

	if s.Agent.MaxToolIterations < 1 {
		return fmt.Errorf("invalid value for LAMPCODE_MAX_TOOL_ITERATIONS: %d", s.Agent.MaxToolIterations)
	}
	if s.LLM.MaxRetries < 0 {
		return fmt.Errorf("invalid value for LLM_MAX_RETRIES: %d", s.LLM.MaxRetries)
	}
	return nil
}

func workspaceFromEnv() (string, error) {
	if dir := os.Getenv("LAMPCODE_WORKDIR"); dir != "" {
		return filepath.Abs(dir)
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return dir, nil
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(provider)
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	if val := os.Getenv(info.modelEnv); val != "" {
		return val, nil
	}
	return info.defaultModel, nil
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}

// Environment variable helpers with proper error handling

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return b, nil
}
