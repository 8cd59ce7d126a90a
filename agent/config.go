// Agent configuration types.
//
// Information Hiding:
// - Configuration validation logic hidden
// - Default values hidden

package agent

import "github.com/richinex/lampcode/config"

// Config holds agent loop configuration.
// Following Dave's naming advice: use agent.Config, not agent.AgentConfig.
type Config struct {
	// SystemPrompt replaces the built-in prompt when set.
	SystemPrompt string

	// WorkingDirectory is shown to the model in the built-in prompt.
	WorkingDirectory string

	// MaxToolIterations bounds tool rounds per user message.
	MaxToolIterations int

	// DecisionTemperature is used while the model may call tools;
	// SummaryTemperature for the forced final answer.
	DecisionTemperature float32
	SummaryTemperature  float32

	// History bounds: entry cap, estimated token cap, and how many recent
	// entries go into each prompt.
	MaxHistoryEntries int
	MaxHistoryTokens  int
	RecentHistory     int

	// MinContextTokens is the context room below which prompt history is
	// halved.
	MinContextTokens int

	// RepetitionWindow and RepetitionThreshold tune the repeated-call
	// warning.
	RepetitionWindow    int
	RepetitionThreshold int

	// ToolHistorySize bounds the tool history ring.
	ToolHistorySize int
}

// DefaultConfig returns the stock agent configuration.
func DefaultConfig() Config {
	return Config{
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
	}
}

// ConfigFromSettings maps loaded settings onto an agent configuration.
func ConfigFromSettings(s config.Settings) Config {
	a := s.Agent
	return Config{
		WorkingDirectory:    s.Workspace,
		MaxToolIterations:   a.MaxToolIterations,
		DecisionTemperature: float32(a.DecisionTemperature),
		SummaryTemperature:  float32(a.SummaryTemperature),
		MaxHistoryEntries:   a.MaxHistoryEntries,
		MaxHistoryTokens:    a.MaxHistoryTokens,
		RecentHistory:       a.RecentHistory,
		MinContextTokens:    a.MinContextTokens,
		RepetitionWindow:    a.RepetitionWindow,
		RepetitionThreshold: a.RepetitionThreshold,
		ToolHistorySize:     a.ToolHistorySize,
	}.withDefaults()
}

// withDefaults fills non-positive fields from DefaultConfig. Temperatures
// are kept as given when non-negative.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxToolIterations <= 0 {
		c.MaxToolIterations = d.MaxToolIterations
	}
	if c.DecisionTemperature < 0 {
		c.DecisionTemperature = d.DecisionTemperature
	}
	if c.SummaryTemperature < 0 {
		c.SummaryTemperature = d.SummaryTemperature
	}
	if c.MaxHistoryEntries <= 0 {
		c.MaxHistoryEntries = d.MaxHistoryEntries
	}
	if c.MaxHistoryTokens <= 0 {
		c.MaxHistoryTokens = d.MaxHistoryTokens
	}
	if c.RecentHistory <= 0 {
		c.RecentHistory = d.RecentHistory
	}
	if c.MinContextTokens < 0 {
		c.MinContextTokens = d.MinContextTokens
	}
	if c.RepetitionWindow <= 0 {
		c.RepetitionWindow = d.RepetitionWindow
	}
	if c.RepetitionThreshold <= 0 {
		c.RepetitionThreshold = d.RepetitionThreshold
	}
	if c.ToolHistorySize <= 0 {
		c.ToolHistorySize = d.ToolHistorySize
	}
	return c
}
