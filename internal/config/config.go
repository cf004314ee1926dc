package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// RoleBinding pairs a board role with the agent id that fills it.
type RoleBinding struct {
	Role    string
	AgentID string
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Board persistence. Empty means ~/.clawcondos/board.json.
	DataPath string `envconfig:"DATA_PATH"`

	// API server
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
	AuthMode   string `envconfig:"AUTH_MODE" default:"api-key"` // "api-key" or "none"
	APIKey     string `envconfig:"API_KEY"`

	// Plan activity buffer (per session, in memory)
	PlanLogCapacity int `envconfig:"PLAN_LOG_CAPACITY" default:"100"`

	// Session gateway (optional; without it session messages are logged and
	// dropped)
	SessionGatewayURL   string `envconfig:"SESSION_GATEWAY_URL"`
	SessionGatewayToken string `envconfig:"SESSION_GATEWAY_TOKEN"`

	// Slack announcements (optional)
	SlackBotToken      string `envconfig:"SLACK_BOT_TOKEN"`
	SlackNotifyChannel string `envconfig:"SLACK_NOTIFY_CHANNEL"`

	// Agent role bindings: comma-separated "role:agentID" pairs.
	// Example: "pm:agent-pm,dev:agent-dev,reviewer:agent-review"
	AgentRoles string `envconfig:"AGENT_ROLES" default:"pm:agent-pm,dev:agent-dev"`
}

// SlackEnabled returns true if Slack announcement credentials are configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackNotifyChannel != ""
}

// GatewayEnabled returns true if a session gateway endpoint is configured.
func (c *Config) GatewayEnabled() bool {
	return c.SessionGatewayURL != ""
}

// ParseAgentRoles parses AGENT_ROLES into role bindings.
// Format: "role1:agentID1,role2:agentID2"
func (c *Config) ParseAgentRoles() ([]RoleBinding, error) {
	parts := strings.Split(c.AgentRoles, ",")
	bindings := make([]RoleBinding, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tokens := strings.SplitN(part, ":", 2)
		if len(tokens) != 2 {
			return nil, fmt.Errorf("invalid role binding %q, expected role:agentID", part)
		}
		role := strings.TrimSpace(tokens[0])
		agentID := strings.TrimSpace(tokens[1])
		if role == "" || agentID == "" {
			return nil, fmt.Errorf("invalid role binding %q, empty role or agent id", part)
		}
		bindings = append(bindings, RoleBinding{Role: role, AgentID: agentID})
	}
	if len(bindings) == 0 {
		return nil, fmt.Errorf("AGENT_ROLES contains no valid entries")
	}
	return bindings, nil
}

// Validate checks cross-field constraints that envconfig cannot express.
func (c *Config) Validate() error {
	switch c.AuthMode {
	case "api-key":
		if c.APIKey == "" {
			return fmt.Errorf("AUTH_MODE=api-key requires API_KEY")
		}
	case "none":
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
	if _, err := c.ParseAgentRoles(); err != nil {
		return err
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}
