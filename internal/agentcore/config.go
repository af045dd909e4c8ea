package agentcore

import "time"

// Config is the root in-process configuration tree for one Agent. Loading
// this from disk (YAML/JSON/env) is out of scope for the core; callers
// construct a Config value directly.
type Config struct {
	VLLM         ModelConfig
	Workspace    WorkspaceConfig
	Security     SecurityConfig
	Memory       MemoryConfig
	Audit        AuditConfig
	Agent        LoopConfig
	Debug        DebugConfig
	SystemPrompt SystemPromptConfig
}

// ModelConfig configures the Model Client.
type ModelConfig struct {
	BaseURL               string
	Model                 string
	APIKey                string
	Temperature           float32
	MaxTokens             int
	EnableFunctionCalling bool
}

// WorkspaceConfig names the sandbox root.
type WorkspaceConfig struct {
	Dir string
}

// SecurityConfig configures the Constraints component.
type SecurityConfig struct {
	ExecEnabled      bool
	TimeoutSec       int
	MaxOutputSize    int
	MaxStderrSize    int
	AllowedCommands  []string
	RejectShellMeta  bool
}

// MemoryConfig names the Memory backing file.
type MemoryConfig struct {
	Path string
}

// AuditConfig configures the Audit Log.
type AuditConfig struct {
	Enabled bool
	LogPath string
}

// LoopConfig configures the Agent Loop.
type LoopConfig struct {
	MaxLoops    int
	LoopWait    time.Duration
}

// DebugLevel is one of none, basic, verbose.
type DebugLevel string

const (
	DebugNone    DebugLevel = "none"
	DebugBasic   DebugLevel = "basic"
	DebugVerbose DebugLevel = "verbose"
)

// DebugConfig configures diagnostic output.
type DebugConfig struct {
	Enabled bool
	Level   DebugLevel
	LogFile string
}

// SystemPromptConfig holds the static strings the Conversational Façade
// composes into its system message.
type SystemPromptConfig struct {
	Role          string
	WorkspaceNote string
	ToolsNote     string
}

// DefaultConfig returns a Config with every field defaulted per spec §6.
// BaseURL, Model, and Workspace.Dir have no sensible default and are left
// empty; callers must set them.
func DefaultConfig() Config {
	return Config{
		VLLM: ModelConfig{
			APIKey:                "dummy",
			Temperature:           0.7,
			MaxTokens:             2048,
			EnableFunctionCalling: true,
		},
		Security: SecurityConfig{
			ExecEnabled:   true,
			TimeoutSec:    30,
			MaxOutputSize: 200000,
			MaxStderrSize: 50000,
		},
		Memory: MemoryConfig{Path: "./data/memory.json"},
		Audit:  AuditConfig{Enabled: true, LogPath: "./data/runlog.jsonl"},
		Agent:  LoopConfig{MaxLoops: 5, LoopWait: 500 * time.Millisecond},
		Debug:  DebugConfig{Level: DebugNone},
	}
}

// Sanitize fills zero-valued fields with their defaults in place. Callers
// that build a Config from partial in-process values should pass it through
// Sanitize before wiring an Agent.
func (c *Config) Sanitize() {
	defaults := DefaultConfig()
	if c.VLLM.APIKey == "" {
		c.VLLM.APIKey = defaults.VLLM.APIKey
	}
	if c.VLLM.Temperature == 0 {
		c.VLLM.Temperature = defaults.VLLM.Temperature
	}
	if c.VLLM.MaxTokens == 0 {
		c.VLLM.MaxTokens = defaults.VLLM.MaxTokens
	}
	if c.Security.TimeoutSec == 0 {
		c.Security.TimeoutSec = defaults.Security.TimeoutSec
	}
	if c.Security.MaxOutputSize == 0 {
		c.Security.MaxOutputSize = defaults.Security.MaxOutputSize
	}
	if c.Security.MaxStderrSize == 0 {
		c.Security.MaxStderrSize = defaults.Security.MaxStderrSize
	}
	if c.Memory.Path == "" {
		c.Memory.Path = defaults.Memory.Path
	}
	if c.Audit.LogPath == "" {
		c.Audit.LogPath = defaults.Audit.LogPath
	}
	if c.Agent.MaxLoops == 0 {
		c.Agent.MaxLoops = defaults.Agent.MaxLoops
	}
	if c.Agent.LoopWait == 0 {
		c.Agent.LoopWait = defaults.Agent.LoopWait
	}
	if c.Debug.Level == "" {
		c.Debug.Level = defaults.Debug.Level
	}
}
