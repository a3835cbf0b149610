// Package config assembles runtime configuration from an optional YAML
// file, environment variables, and defaults, per §6's env var table (file
// overrides env, env overrides defaults; no command-line flag feeds Config).
// API keys additionally fall back to the system keychain when no
// environment variable is set.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

const keychainService = "deskautomata"

// Pipeline holds the tunables named PIPELINE_* in §6.
type Pipeline struct {
	WatchDir      string  `yaml:"watch_dir"`
	SkillsDir     string  `yaml:"skills_dir"`
	SessionGap    float64 `yaml:"session_gap"`
	SessionMax    int     `yaml:"session_max"`
	AIProvider    string  `yaml:"ai_provider"`
	AIModel       string  `yaml:"ai_model"`
	CPULimit      float64 `yaml:"cpu_limit"`
	MemLimitMB    float64 `yaml:"mem_limit_mb"`
	PollSeconds   float64 `yaml:"poll_seconds"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// Config is the fully resolved runtime configuration.
type Config struct {
	OpenAIAPIKey string
	GeminiAPIKey string
	AIProvider   string
	Pipeline     Pipeline
}

// defaults mirrors §6's stated defaults (min-confidence 0.5, cpu_limit 30,
// mem_limit_mb 500, poll interval 30s; session gap/max are §4.2's pipeline
// session variant, 300s / 50 records).
func defaults() Config {
	return Config{
		AIProvider: "openai",
		Pipeline: Pipeline{
			WatchDir:      "./captures",
			SkillsDir:     "./workflows",
			SessionGap:    300.0,
			SessionMax:    50,
			AIProvider:    "openai",
			AIModel:       "",
			CPULimit:      30.0,
			MemLimitMB:    500.0,
			PollSeconds:   30.0,
			MinConfidence: 0.5,
		},
	}
}

// FromEnv resolves Config from the environment, falling back to the system
// keychain for the two API keys when unset, then to defaults (§6).
func FromEnv() Config {
	cfg := defaults()

	cfg.OpenAIAPIKey = envOrKeychain("OPENAI_API_KEY", "openai-api-key")
	cfg.GeminiAPIKey = envOrKeychain("GEMINI_API_KEY", "gemini-api-key")

	if v := os.Getenv("AI_PROVIDER"); v != "" {
		cfg.AIProvider = v
		cfg.Pipeline.AIProvider = v
	}

	if v := os.Getenv("PIPELINE_WATCH_DIR"); v != "" {
		cfg.Pipeline.WatchDir = v
	}
	if v := os.Getenv("PIPELINE_SKILLS_DIR"); v != "" {
		cfg.Pipeline.SkillsDir = v
	}
	if v := os.Getenv("PIPELINE_SESSION_GAP"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pipeline.SessionGap = f
		}
	}
	if v := os.Getenv("PIPELINE_SESSION_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.SessionMax = n
		}
	}
	if v := os.Getenv("PIPELINE_AI_PROVIDER"); v != "" {
		cfg.Pipeline.AIProvider = v
	}
	if v := os.Getenv("PIPELINE_AI_MODEL"); v != "" {
		cfg.Pipeline.AIModel = v
	}
	if v := os.Getenv("PIPELINE_CPU_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pipeline.CPULimit = f
		}
	}
	if v := os.Getenv("PIPELINE_MEM_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pipeline.MemLimitMB = f
		}
	}
	if v := os.Getenv("PIPELINE_POLL_SEC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pipeline.PollSeconds = f
		}
	}
	if v := os.Getenv("PIPELINE_MIN_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pipeline.MinConfidence = f
		}
	}

	return cfg
}

// fileOverrides is the subset of Config a config file may set, parsed
// separately from Config itself so an absent file or absent field never
// clobbers an env var or default with a zero value.
type fileOverrides struct {
	AIProvider string    `yaml:"ai_provider"`
	Pipeline   *Pipeline `yaml:"pipeline"`
}

// FromFile resolves Config the same way FromEnv does, then applies any
// fields set in the YAML file at path on top (file overrides env, env
// overrides defaults). An empty path is a no-op; a missing file is an
// error since --config was given explicitly (§6).
func FromFile(path string) (Config, error) {
	cfg := FromEnv()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var overrides fileOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	if overrides.AIProvider != "" {
		cfg.AIProvider = overrides.AIProvider
	}
	if overrides.Pipeline != nil {
		mergePipeline(&cfg.Pipeline, overrides.Pipeline)
	}

	return cfg, nil
}

// mergePipeline overwrites dst's fields with any non-zero field set in src.
func mergePipeline(dst *Pipeline, src *Pipeline) {
	if src.WatchDir != "" {
		dst.WatchDir = src.WatchDir
	}
	if src.SkillsDir != "" {
		dst.SkillsDir = src.SkillsDir
	}
	if src.SessionGap != 0 {
		dst.SessionGap = src.SessionGap
	}
	if src.SessionMax != 0 {
		dst.SessionMax = src.SessionMax
	}
	if src.AIProvider != "" {
		dst.AIProvider = src.AIProvider
	}
	if src.AIModel != "" {
		dst.AIModel = src.AIModel
	}
	if src.CPULimit != 0 {
		dst.CPULimit = src.CPULimit
	}
	if src.MemLimitMB != 0 {
		dst.MemLimitMB = src.MemLimitMB
	}
	if src.PollSeconds != 0 {
		dst.PollSeconds = src.PollSeconds
	}
	if src.MinConfidence != 0 {
		dst.MinConfidence = src.MinConfidence
	}
}

// envOrKeychain reads envVar, falling back to the system keychain under
// keychainService/keychainKey when unset or empty.
func envOrKeychain(envVar, keychainKey string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	v, err := keyring.Get(keychainService, keychainKey)
	if err != nil {
		return ""
	}
	return v
}

// StateDir returns the XDG-style base directory for the background daemon's
// log file and the watch command's reports, creating it if absent. The
// workflow, feedback and recovery stores live under the configured workflow
// directory instead. Follows the teacher's XDG convention: ~/.config/deskautomata on
// every platform, respecting XDG_CONFIG_HOME.
func StateDir() (string, error) {
	var base string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		base = xdg
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}

	dir := filepath.Join(base, "deskautomata")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}
