// Package config holds the YAML-backed configuration for the obfuscator.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Rename policy names accepted by Obfuscation.Rename.Policy.
const (
	RenamePolicyFull    = "full"
	RenamePolicyShort   = "short"
	RenamePolicyCompact = "compact"
)

// RenameConfig controls identifier renaming.
type RenameConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Policy  string `yaml:"policy" mapstructure:"policy"`
}

// AliasesConfig controls the standard-library alias prelude.
type AliasesConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// CommentsConfig controls comment handling.
type CommentsConfig struct {
	Strip bool `yaml:"strip" mapstructure:"strip"`
}

// NestingConfig controls literal wrapping through identity tables.
type NestingConfig struct {
	Enabled               bool    `yaml:"enabled" mapstructure:"enabled"`
	MinDepth              int     `yaml:"min_depth" mapstructure:"min_depth"`
	MaxDepth              int     `yaml:"max_depth" mapstructure:"max_depth"`
	TableCount            int     `yaml:"table_count" mapstructure:"table_count"`
	FuncsPerTable         int     `yaml:"funcs_per_table" mapstructure:"funcs_per_table"`
	ArithmeticProbability float64 `yaml:"arithmetic_probability" mapstructure:"arithmetic_probability"`
	MinLiteral            int     `yaml:"min_literal" mapstructure:"min_literal"`
	// Ultra forces depth 5-8 with four tables.
	Ultra bool `yaml:"ultra" mapstructure:"ultra"`
}

// StringsConfig controls string-literal encoding.
type StringsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// MinLength is the shortest string content that gets encoded.
	MinLength int `yaml:"min_length" mapstructure:"min_length"`
}

// DispatchConfig controls the opcode-handler scaffold.
type DispatchConfig struct {
	Enabled      bool `yaml:"enabled" mapstructure:"enabled"`
	Metamorphic  bool `yaml:"metamorphic" mapstructure:"metamorphic"`
	ScatterDepth int  `yaml:"scatter_depth" mapstructure:"scatter_depth"`
}

// ValidationConfig controls the external syntax checker.
type ValidationConfig struct {
	Enabled        bool   `yaml:"enabled" mapstructure:"enabled"`
	CompilerPath   string `yaml:"compiler_path" mapstructure:"compiler_path"`
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// ObfuscationConfig groups all transformation settings.
type ObfuscationConfig struct {
	Rename     RenameConfig     `yaml:"rename" mapstructure:"rename"`
	Aliases    AliasesConfig    `yaml:"aliases" mapstructure:"aliases"`
	Comments   CommentsConfig   `yaml:"comments" mapstructure:"comments"`
	Nesting    NestingConfig    `yaml:"nesting" mapstructure:"nesting"`
	Strings    StringsConfig    `yaml:"strings" mapstructure:"strings"`
	Dispatch   DispatchConfig   `yaml:"dispatch" mapstructure:"dispatch"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
}

// Config holds every setting for one run. Struct tags control how Viper
// maps config file keys and environment variables.
type Config struct {
	// General behavior
	Silent       bool `yaml:"silent" mapstructure:"silent"`
	AbortOnError bool `yaml:"abort_on_error" mapstructure:"abort_on_error"`

	// Seed 0 means derive one from system entropy; the effective seed is
	// always echoed in the report so a build can be replayed.
	Seed int64 `yaml:"seed" mapstructure:"seed"`

	// File handling for directory mode.
	Extensions []string `yaml:"extensions" mapstructure:"extensions"`

	Obfuscation ObfuscationConfig `yaml:"obfuscation" mapstructure:"obfuscation"`
}

// Viper requires lowercase keys for automatic env var binding.
var defaults = map[string]interface{}{
	"silent":         false,
	"abort_on_error": true,
	"seed":           int64(0),
	"extensions":     []string{"lua", "luau"},

	"obfuscation.rename.enabled": true,
	"obfuscation.rename.policy":  RenamePolicyFull,

	"obfuscation.aliases.enabled": true,
	"obfuscation.comments.strip":  true,

	"obfuscation.nesting.enabled":                true,
	"obfuscation.nesting.min_depth":              3,
	"obfuscation.nesting.max_depth":              5,
	"obfuscation.nesting.table_count":            3,
	"obfuscation.nesting.funcs_per_table":        5,
	"obfuscation.nesting.arithmetic_probability": 0.4,
	"obfuscation.nesting.min_literal":            2,
	"obfuscation.nesting.ultra":                  false,

	"obfuscation.strings.enabled":    true,
	"obfuscation.strings.min_length": 3,

	"obfuscation.dispatch.enabled":       true,
	"obfuscation.dispatch.metamorphic":   true,
	"obfuscation.dispatch.scatter_depth": 3,

	"obfuscation.validation.enabled":         true,
	"obfuscation.validation.compiler_path":   "luau-compile",
	"obfuscation.validation.timeout_seconds": 30,
}

// Testing suppresses informational output during tests.
var Testing bool

// PrintInfo prints informational output unless suppressed.
func PrintInfo(format string, args ...interface{}) {
	if !Testing {
		fmt.Printf(format, args...)
	}
}

// LoadConfig reads configuration from the given YAML file, falling back to
// defaults when the path is empty and no ./config.yaml exists. Env vars
// prefixed LUAMIXER_ override file values.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix("LUAMIXER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := configPath != ""
	if configPath == "" {
		configPath = "config.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
		}
	} else if os.IsNotExist(err) {
		if explicit {
			return nil, fmt.Errorf("specified config file not found: %s", configPath)
		}
		PrintInfo("Info: configuration file 'config.yaml' not found, using default settings.\n")
	} else {
		return nil, fmt.Errorf("error checking config file %s: %w", configPath, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file %s: %w", configPath, err)
	}
	if !cfg.Silent && explicit {
		PrintInfo("Info: loaded configuration from %s\n", configPath)
	}
	return cfg, nil
}

// SaveConfig writes the default configuration to a YAML file.
func SaveConfig(configPath string) error {
	cfg := DefaultConfig()
	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshalling default config: %w", err)
	}
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory for config file %s: %w", configPath, err)
		}
	}
	if err := os.WriteFile(configPath, yamlData, 0644); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configPath, err)
	}
	PrintInfo("Info: saved default configuration to %s\n", configPath)
	return nil
}

// DefaultConfig returns a configuration with default settings.
func DefaultConfig() *Config {
	return &Config{
		Silent:       false,
		AbortOnError: true,
		Seed:         0,
		Extensions:   []string{"lua", "luau"},
		Obfuscation: ObfuscationConfig{
			Rename: RenameConfig{
				Enabled: true,
				Policy:  RenamePolicyFull,
			},
			Aliases:  AliasesConfig{Enabled: true},
			Comments: CommentsConfig{Strip: true},
			Nesting: NestingConfig{
				Enabled:               true,
				MinDepth:              3,
				MaxDepth:              5,
				TableCount:            3,
				FuncsPerTable:         5,
				ArithmeticProbability: 0.4,
				MinLiteral:            2,
				Ultra:                 false,
			},
			Strings: StringsConfig{
				Enabled:   true,
				MinLength: 3,
			},
			Dispatch: DispatchConfig{
				Enabled:      true,
				Metamorphic:  true,
				ScatterDepth: 3,
			},
			Validation: ValidationConfig{
				Enabled:        true,
				CompilerPath:   "luau-compile",
				TimeoutSeconds: 30,
			},
		},
	}
}
