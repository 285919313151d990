// Package config loads the classlens configuration: classpath elements,
// scope rules, requested constant fields and pipeline settings.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/classlens/classlens/internal/classfile"
	"github.com/classlens/classlens/internal/graph"
)

// Config represents the classlens configuration.
type Config struct {
	// Classpath lists the default classpath elements (directories and jar
	// files) scanned when none are given on the command line, in
	// precedence order.
	Classpath []string `yaml:"classpath"`

	Scope ScopeConfig `yaml:"scope"`

	// ConstantFields lists fully qualified static final fields whose
	// literal values should be extracted, e.g. "com.example.Widget.VERSION".
	ConstantFields []string `yaml:"constant_fields"`

	// SkipDirs names directories skipped while walking classpath
	// directory trees.
	SkipDirs []string `yaml:"skip_dirs"`

	// Workers bounds the parallel decode workers; 0 means one per CPU.
	Workers int `yaml:"workers"`
}

// ScopeConfig defines package-prefix inclusion and exclusion rules.
// An empty include list (or the "*" sentinel) means no restriction;
// an exclusion always wins over any inclusion.
type ScopeConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Classpath: []string{"."},
		SkipDirs:  []string{".git", ".classlens"},
	}
}

// Load reads configuration from file, falling back to defaults.
// If configPath is empty, it looks for classlens.yaml in the current
// directory. Missing fields keep their default values.
func Load(configPath string) (*Config, error) {
	defaults := Default()

	if configPath == "" {
		configPath = "classlens.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults, nil
		}
		return nil, err
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, err
	}

	defaults.Merge(&fileCfg)
	return defaults, nil
}

// LoadFromDir loads configuration from the specified directory.
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, "classlens.yaml"))
}

// Merge combines another config into this one, with other taking precedence.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if len(other.Classpath) > 0 {
		c.Classpath = other.Classpath
	}
	if len(other.Scope.Include) > 0 {
		c.Scope.Include = other.Scope.Include
	}
	if len(other.Scope.Exclude) > 0 {
		c.Scope.Exclude = other.Scope.Exclude
	}
	if len(other.ConstantFields) > 0 {
		c.ConstantFields = other.ConstantFields
	}
	if len(other.SkipDirs) > 0 {
		c.SkipDirs = other.SkipDirs
	}
	if other.Workers > 0 {
		c.Workers = other.Workers
	}
}

// IsSkippedDir checks if a directory should be skipped during classpath
// directory walks.
func (c *Config) IsSkippedDir(name string) bool {
	for _, skipped := range c.SkipDirs {
		if name == skipped {
			return true
		}
	}
	return false
}

// CompileScope validates and compiles the scope rules. Rule errors are
// fatal before any scanning begins.
func (c *Config) CompileScope() (*graph.Scope, error) {
	return graph.NewScope(c.Scope.Include, c.Scope.Exclude)
}

// ConstantRequests parses the configured constant field names.
func (c *Config) ConstantRequests() (classfile.ConstantRequests, error) {
	return classfile.NewConstantRequests(c.ConstantFields)
}
