package profile

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is configuration to start orchestra.
type Profile struct {
	// Serving
	Mode string
	Addr string
	Port int

	// Spell table override (YAML); empty uses the built-in table.
	SpellsFile string

	// Note vaults
	MainVaultPath     string
	ExerciseVaultPath string

	// Agent LLM (OpenAI-compatible protocol)
	LLMProvider  string
	LLMAPIKey    string
	LLMBaseURL   string
	LLMModel     string
	LLMTimeout   int // seconds
	AgentTimeout int // seconds
	// AgentFallback lets unmatched text go to the agent in non-agent mode.
	AgentFallback bool

	// Background dispatch
	MaxBackground int

	// Studio launcher
	StudioApp     string
	StudioProject string
	StudioSettle  int // seconds between launching the app and opening the project

	// Per-client request rate limit
	RateLimit float64
	RateBurst int

	Version string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if agent mode can be offered.
func (p *Profile) IsAIEnabled() bool {
	return p.LLMAPIKey != "" || p.LLMProvider == "ollama"
}

// AgentTimeoutDuration returns the agent bound as a duration.
func (p *Profile) AgentTimeoutDuration() time.Duration {
	return time.Duration(p.AgentTimeout) * time.Second
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		slog.Warn("ignoring non-integer environment value", "key", key, "value", value)
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.MainVaultPath = getEnvOrDefault("OBSIDIAN_MAIN_VAULT_PATH", "")
	p.ExerciseVaultPath = getEnvOrDefault("OBSIDIAN_EXERCISE_VAULT_PATH", "")

	p.LLMProvider = strings.ToLower(getEnvOrDefault("ORCHESTRA_LLM_PROVIDER", "openai"))
	// OPENAI_API_KEY keeps existing .env files working.
	p.LLMAPIKey = getEnvOrDefault("ORCHESTRA_LLM_API_KEY", os.Getenv("OPENAI_API_KEY"))
	p.LLMBaseURL = getEnvOrDefault("ORCHESTRA_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("ORCHESTRA_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("ORCHESTRA_LLM_TIMEOUT_SECONDS", 60)
	p.AgentTimeout = getEnvOrDefaultInt("ORCHESTRA_AGENT_TIMEOUT_SECONDS", 60)

	p.StudioApp = getEnvOrDefault("FL_STUDIO_PATH", "FL Studio 2024")
	p.StudioProject = getEnvOrDefault("FL_PROJECT_NAME", "DRUMS.flp")
	p.StudioSettle = getEnvOrDefaultInt("WAIT_BETWEEN_TIME", 5)
}

// checkVaultDir resolves dir to an absolute path and checks it exists.
func checkVaultDir(name, dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrapf(err, "unable to resolve %s %s", name, dir)
	}
	abs = strings.TrimRight(abs, "\\/")
	info, err := os.Stat(abs)
	if err != nil {
		return "", errors.Wrapf(err, "unable to access %s %s", name, abs)
	}
	if !info.IsDir() {
		return "", errors.Errorf("%s %s is not a directory", name, abs)
	}
	return abs, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}
	if p.Port < 0 || p.Port > 65535 {
		return errors.Errorf("invalid port %d", p.Port)
	}
	if p.AgentTimeout <= 0 {
		slog.Warn("non-positive agent timeout, using 60s", "value", p.AgentTimeout)
		p.AgentTimeout = 60
	}
	if p.LLMTimeout <= 0 {
		p.LLMTimeout = 60
	}
	if p.MaxBackground <= 0 {
		p.MaxBackground = 4
	}
	if p.StudioSettle < 0 {
		p.StudioSettle = 0
	}

	var err error
	if p.MainVaultPath, err = checkVaultDir("OBSIDIAN_MAIN_VAULT_PATH", p.MainVaultPath); err != nil {
		return err
	}
	if p.ExerciseVaultPath, err = checkVaultDir("OBSIDIAN_EXERCISE_VAULT_PATH", p.ExerciseVaultPath); err != nil {
		return err
	}
	if p.MainVaultPath == "" || p.ExerciseVaultPath == "" {
		slog.Warn("vault path not configured, note actions will fail",
			slog.String("main", p.MainVaultPath),
			slog.String("exercise", p.ExerciseVaultPath))
	}
	return nil
}
