// Package config loads the cron service's YAML configuration, grounded
// on the teacher's pkg/devclaw/copilot/loader.go: a .env-then-YAML load
// order, with ${VAR} expansion over the raw YAML before it's parsed.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/flux-framework/flux-cron-go/pkg/manager"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Z_][A-Z0-9_]*)`)

// Config is the top-level fluxcron configuration file shape.
type Config struct {
	Cwd         string       `yaml:"cwd"`
	Listen      string       `yaml:"listen"`
	Sync        SyncConfig   `yaml:"sync"`
	Audit       AuditConfig  `yaml:"audit"`
	Executor    ExecConfig   `yaml:"executor"`
	SeedEntries string       `yaml:"seed_entries"` // path to a YAML file of entries to create at startup
}

// SyncConfig mirrors the module's sync=/sync_epsilon= arguments.
type SyncConfig struct {
	Topic   string        `yaml:"topic"`
	Epsilon time.Duration `yaml:"epsilon"`
}

// AuditConfig configures the optional sqlite-backed finished-task log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ExecConfig configures the local executor.
type ExecConfig struct {
	Shell          string `yaml:"shell"`
	MaxOutputBytes int    `yaml:"max_output_bytes"`
}

// DefaultConfig returns the zero-value-safe defaults, mirroring
// copilot.DefaultConfig's "start from defaults, overlay YAML" approach.
func DefaultConfig() *Config {
	return &Config{
		Cwd:    ".",
		Listen: ":8734",
		Sync: SyncConfig{
			Epsilon: manager.DefaultSyncEpsilon,
		},
		Executor: ExecConfig{
			Shell:          "/bin/sh",
			MaxOutputBytes: 64 * 1024,
		},
	}
}

// Load reads path, expanding ${VAR}/$VAR references against the process
// environment (after loading .env/.env.local, which godotenv.Load does
// not let override already-set variables).
func Load(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	expanded := expandEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	return cfg, nil
}

func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
}

// SeedEntry is one entry in a seed-entries YAML file, the create-at-
// startup counterpart to manager.CreateRequest.
type SeedEntry struct {
	Name             string         `yaml:"name"`
	Command          string         `yaml:"command"`
	Cwd              string         `yaml:"cwd"`
	Env              []string       `yaml:"env"`
	Rank             int            `yaml:"rank"`
	Repeat           int64          `yaml:"repeat"`
	StopOnFailure    int64          `yaml:"stop_on_failure"`
	TimeoutSeconds   float64        `yaml:"timeout"`
	TaskHistoryCount int            `yaml:"task_history_count"`
	Type             string         `yaml:"type"`
	Args             map[string]any `yaml:"args"`
}

// LoadSeedEntries reads a YAML file of entries to create at startup.
func LoadSeedEntries(path string) ([]SeedEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed entries file: %w", err)
	}
	var entries []SeedEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing seed entries YAML: %w", err)
	}
	return entries, nil
}

// ToCreateRequest converts a SeedEntry to a manager.CreateRequest.
func (s SeedEntry) ToCreateRequest() manager.CreateRequest {
	return manager.CreateRequest{
		Name:             s.Name,
		Command:          s.Command,
		Cwd:              s.Cwd,
		Env:              s.Env,
		Rank:             s.Rank,
		Repeat:           s.Repeat,
		StopOnFailure:    s.StopOnFailure,
		Timeout:          time.Duration(s.TimeoutSeconds * float64(time.Second)),
		TaskHistoryCount: s.TaskHistoryCount,
		TypeName:         s.Type,
		TriggerArgs:      s.Args,
	}
}
