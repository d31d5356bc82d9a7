// Package config loads the environment-level settings the detection,
// scoring, trigger, and label index layers need at startup: an embedded
// YAML default overlaid by an optional file and by RISKSCAN_*
// environment variables, validated before anything downstream sees it.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete set of environment-level settings, read once
// at startup and never mutated afterward.
type Config struct {
	Version      string             `yaml:"version" mapstructure:"version"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" mapstructure:"orchestrator"`
	Trigger      TriggerConfig      `yaml:"trigger" mapstructure:"trigger"`
	Catalogue    CatalogueConfig    `yaml:"catalogue" mapstructure:"catalogue"`
	LabelIndex   LabelIndexConfig   `yaml:"label_index" mapstructure:"label_index"`
	Cloud        CloudConfig        `yaml:"cloud" mapstructure:"cloud"`
	ML           MLModelConfig      `yaml:"ml" mapstructure:"ml"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
}

// OrchestratorConfig bounds the detector orchestrator's concurrency and
// per-call limits.
type OrchestratorConfig struct {
	MaxConcurrentDetections int           `yaml:"max_concurrent_detections" mapstructure:"max_concurrent_detections"`
	MaxTextBytes            int           `yaml:"max_text_bytes" mapstructure:"max_text_bytes"`
	PerDetectorTimeout      time.Duration `yaml:"per_detector_timeout" mapstructure:"per_detector_timeout"`
}

// TriggerConfig configures the scan trigger policy's thresholds.
type TriggerConfig struct {
	HighRiskWeight   int     `yaml:"high_risk_weight" mapstructure:"high_risk_weight"`
	RescanConfidence float64 `yaml:"rescan_confidence" mapstructure:"rescan_confidence"`
}

// CatalogueConfig holds paths for the entity registry, pattern catalogue,
// and gitleaks rule files. The paths are only carried in Config:
// cmd/riskscan always uses the embedded registry, catalogue, and gitleaks
// ruleset, and nothing in this module reads these files.
type CatalogueConfig struct {
	RegistryPath string `yaml:"registry_path" mapstructure:"registry_path"`
	PatternsPath string `yaml:"patterns_path" mapstructure:"patterns_path"`
	GitleaksPath string `yaml:"gitleaks_path" mapstructure:"gitleaks_path"`
}

// LabelIndexConfig names the durable label store's backing file.
type LabelIndexConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// CloudConfig identifies the AWS account a cloudctx.AWSContextBuilder
// should attribute bucket ownership to when deriving cross-account
// exposure.
type CloudConfig struct {
	AccountID string `yaml:"account_id" mapstructure:"account_id"`
}

// MLModelConfig mirrors detect.MLConfig; it is kept here rather than
// imported directly so this package has no dependency on pkg/detect.
type MLModelConfig struct {
	Enabled       bool     `yaml:"enabled" mapstructure:"enabled"`
	ModelPath     string   `yaml:"model_path" mapstructure:"model_path"`
	TokenizerPath string   `yaml:"tokenizer_path" mapstructure:"tokenizer_path"`
	MaxTokens     int      `yaml:"max_tokens" mapstructure:"max_tokens"`
	MinConfidence float64  `yaml:"min_confidence" mapstructure:"min_confidence"`
	Labels        []string `yaml:"labels" mapstructure:"labels"`
}

// LoggingConfig holds a log level and a console-output switch. Validate
// checks Level; cmd/riskscan configures zerolog from its --log-level and
// --log-pretty flags, not from these fields.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Pretty bool   `yaml:"pretty" mapstructure:"pretty"`
}

const envPrefix = "RISKSCAN"

// Load reads the embedded defaults, overlays path (if non-empty and it
// exists) and then RISKSCAN_* environment variables, and validates the
// result. path may be empty to use defaults-plus-environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(defaultConfigYAML)); err != nil {
		return nil, fmt.Errorf("config: parse embedded defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the embedded default configuration with no file or
// environment overlay, for callers (tests, library use) that don't want
// process-environment coupling.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// The embedded defaults are a build-time asset; a failure here is
		// a programmer error, not a runtime condition to recover from.
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// bindEnv registers every leaf key explicitly. viper's AutomaticEnv only
// resolves a key once something has asked for it by name, so a key that's
// absent from the YAML (and thus never Get'd during Unmarshal) would
// otherwise be invisible to the environment overlay.
func bindEnv(v *viper.Viper) {
	keys := []string{
		"version",
		"orchestrator.max_concurrent_detections",
		"orchestrator.max_text_bytes",
		"orchestrator.per_detector_timeout",
		"trigger.high_risk_weight",
		"trigger.rescan_confidence",
		"catalogue.registry_path",
		"catalogue.patterns_path",
		"catalogue.gitleaks_path",
		"label_index.path",
		"cloud.account_id",
		"ml.enabled",
		"ml.model_path",
		"ml.tokenizer_path",
		"ml.max_tokens",
		"ml.min_confidence",
		"logging.level",
		"logging.pretty",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

// Validate checks the loaded configuration for internally-inconsistent
// values that would otherwise surface as confusing failures deep inside
// the orchestrator or trigger packages.
func (c *Config) Validate() error {
	if c.Orchestrator.MaxConcurrentDetections < 1 {
		return fmt.Errorf("orchestrator.max_concurrent_detections must be at least 1")
	}
	if c.Orchestrator.MaxTextBytes < 0 {
		return fmt.Errorf("orchestrator.max_text_bytes cannot be negative")
	}
	if c.Trigger.HighRiskWeight < 1 {
		return fmt.Errorf("trigger.high_risk_weight must be at least 1")
	}
	if c.Trigger.RescanConfidence < 0 || c.Trigger.RescanConfidence > 1 {
		return fmt.Errorf("trigger.rescan_confidence must be between 0 and 1")
	}
	if c.LabelIndex.Path == "" {
		return fmt.Errorf("label_index.path must not be empty")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	return nil
}
