// Package config provides configuration types and loading for agentgate.
package config

// Config is the root configuration struct.
// Top-level groups: Model, Provider, Gateway, Tools, EventLog.
type Config struct {
	Model    ModelConfig    `json:"model"`
	Provider ProviderConfig `json:"provider"`
	Gateway  GatewayConfig  `json:"gateway"`
	Tools    ToolsConfig    `json:"tools"`
	EventLog EventLogConfig `json:"eventLog"`
}

// ModelConfig groups LLM model and turn-loop settings.
type ModelConfig struct {
	Name              string  `json:"name" envconfig:"MODEL"`
	MaxTokens         int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature       float64 `json:"temperature" envconfig:"TEMPERATURE"`
	MaxToolIterations int     `json:"maxToolIterations" envconfig:"MAX_TOOL_ITERATIONS"`
	SystemPrompt      string  `json:"systemPrompt,omitempty" envconfig:"SYSTEM_PROMPT"`
	// CommentOnDecline lets the model comment after a rejected command
	// instead of ending the turn immediately.
	CommentOnDecline bool `json:"commentOnDecline" envconfig:"COMMENT_ON_DECLINE"`
}

// ProviderConfig contains settings for the OpenAI-compatible LLM backend.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"API_BASE"`
}

// GatewayConfig contains HTTP server settings.
type GatewayConfig struct {
	Host      string `json:"host" envconfig:"HOST"`
	Port      int    `json:"port" envconfig:"PORT"`
	AuthToken string `json:"authToken" envconfig:"AUTH_TOKEN"`
	// SafeMode gates terminal commands behind human confirmation.
	SafeMode bool `json:"safeMode" envconfig:"SAFE_MODE"`
}

// ToolsConfig contains tool-specific settings.
type ToolsConfig struct {
	Terminal TerminalToolConfig `json:"terminal"`
	Search   SearchToolConfig   `json:"search"`
	Browser  BrowserToolConfig  `json:"browser"`
}

// TerminalToolConfig configures the terminal tool.
type TerminalToolConfig struct {
	TimeoutSeconds int `json:"timeoutSeconds" envconfig:"TIMEOUT_SECONDS"`
}

// SearchToolConfig configures the web search tool.
type SearchToolConfig struct {
	MaxResults int `json:"maxResults" envconfig:"MAX_RESULTS"`
}

// BrowserToolConfig configures the browser tool.
type BrowserToolConfig struct {
	Enabled             bool `json:"enabled" envconfig:"ENABLED"`
	Headless            bool `json:"headless" envconfig:"HEADLESS"`
	NavigationTimeoutMs int  `json:"navigationTimeoutMs" envconfig:"NAVIGATION_TIMEOUT_MS"`
}

// EventLogConfig contains session event log settings.
type EventLogConfig struct {
	Path  string      `json:"path" envconfig:"PATH"`
	Kafka KafkaConfig `json:"kafka"`
}

// KafkaConfig configures the optional Kafka event mirror.
type KafkaConfig struct {
	Enabled bool     `json:"enabled" envconfig:"ENABLED"`
	Brokers []string `json:"brokers" envconfig:"BROKERS"`
	Topic   string   `json:"topic" envconfig:"TOPIC"`
}

// DefaultConfig returns a config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Name:              "gpt-4o",
			MaxTokens:         4096,
			Temperature:       0.7,
			MaxToolIterations: 10,
		},
		Provider: ProviderConfig{
			APIBase: "https://api.openai.com/v1",
		},
		Gateway: GatewayConfig{
			Host:     "127.0.0.1",
			Port:     8080,
			SafeMode: true,
		},
		Tools: ToolsConfig{
			Terminal: TerminalToolConfig{TimeoutSeconds: 30},
			Search:   SearchToolConfig{MaxResults: 5},
			Browser: BrowserToolConfig{
				Headless:            true,
				NavigationTimeoutMs: 30000,
			},
		},
		EventLog: EventLogConfig{
			Path: "~/.agentgate/events.db",
			Kafka: KafkaConfig{
				Topic: "agentgate.session.events",
			},
		},
	}
}
