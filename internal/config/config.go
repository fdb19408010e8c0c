// Package config holds the injected analysis configuration: name allowlists,
// exclusion patterns, and the question-type mapping consulted by the rule
// extractor. All of it is plain data so tests can substitute alternate tables.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config drives file exclusion and rule classification. Zero values fall back
// to Default(); a rulemap.yaml at the repository root can override any field.
type Config struct {
	// KeyFunctions are function names treated as architecturally significant.
	KeyFunctions []string `yaml:"key_functions"`

	// KeyClasses are class names treated as architecturally significant.
	KeyClasses []string `yaml:"key_classes"`

	// ModelClasses are class names classified as domain models rather than
	// plain classes. Usually a subset of KeyClasses.
	ModelClasses []string `yaml:"model_classes"`

	// ConfigFiles are file names that always produce a config rule.
	ConfigFiles []string `yaml:"config_files"`

	// ExcludeDirs are directory names skipped during traversal.
	ExcludeDirs []string `yaml:"exclude_dirs"`

	// ExcludeGlobs are doublestar patterns matched against repo-relative
	// paths; matching files are skipped.
	ExcludeGlobs []string `yaml:"exclude_globs"`

	// GenericExtensions are extensions sampled by size only, without ever
	// reading content. Empty by default: unknown extensions are invisible.
	GenericExtensions []string `yaml:"generic_extensions"`

	// QuestionTypes maps a rule type to its question-classification tags.
	// Consulted by lookup, never computed per rule.
	QuestionTypes map[string][]string `yaml:"question_types"`
}

// Default returns the built-in configuration, matching the conventions of
// the FastAPI-style repositories this tool was written for.
func Default() *Config {
	return &Config{
		KeyFunctions: []string{"get_db_session", "create_db_and_tables", "drop_all"},
		KeyClasses:   []string{"Restaurant", "Review", "MyUvicornWorker"},
		ModelClasses: []string{"Restaurant", "Review"},
		ConfigFiles:  []string{"app.py", "models.py", "__init__.py", "requirements.txt"},
		ExcludeDirs:  []string{".git", "__pycache__", "venv", ".venv", ".idea", "node_modules"},
		QuestionTypes: map[string][]string{
			"endpoint": {"route_basic", "api_endpoints", "endpoint_processing"},
			"function": {"function_purpose", "function_location", "database_connection",
				"async_processing", "function_behavior", "dependency_injection"},
			"model":          {"model_relationship", "data_structure", "database_schema", "model_fields"},
			"class":          {"class_structure", "inheritance", "class_methods"},
			"template":       {"template_rendering", "ui_components", "template_variables"},
			"import":         {"dependencies", "external_libraries", "framework_imports"},
			"config":         {"project_setup", "configuration", "deployment"},
			"file_structure": {"project_structure", "file_organization"},
		},
	}
}

// Load reads a YAML config file and overlays it on the defaults. Fields left
// unset in the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg := Default()
	cfg.merge(&overlay)
	return cfg, nil
}

func (c *Config) merge(o *Config) {
	if o.KeyFunctions != nil {
		c.KeyFunctions = o.KeyFunctions
	}
	if o.KeyClasses != nil {
		c.KeyClasses = o.KeyClasses
	}
	if o.ModelClasses != nil {
		c.ModelClasses = o.ModelClasses
	}
	if o.ConfigFiles != nil {
		c.ConfigFiles = o.ConfigFiles
	}
	if o.ExcludeDirs != nil {
		c.ExcludeDirs = o.ExcludeDirs
	}
	if o.ExcludeGlobs != nil {
		c.ExcludeGlobs = o.ExcludeGlobs
	}
	if o.GenericExtensions != nil {
		c.GenericExtensions = o.GenericExtensions
	}
	for ruleType, tags := range o.QuestionTypes {
		if c.QuestionTypes == nil {
			c.QuestionTypes = map[string][]string{}
		}
		c.QuestionTypes[ruleType] = tags
	}
}

// Contains reports whether name is present in the list. Small helper used by
// the walker and extractor for allowlist checks.
func Contains(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}
