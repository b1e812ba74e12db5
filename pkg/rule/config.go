package rule

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Config is the resolved per-rule configuration: built-in defaults with any
// external override merged on top.
type Config struct {
	Enabled        bool
	Severity       Severity
	SkipValidation bool // opt out of the contextual validation pass
	Options        map[string]any
}

// Float reads a numeric option, accepting YAML ints and floats.
func (c Config) Float(key string, def float64) float64 {
	switch v := c.Options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// Int reads an integer option.
func (c Config) Int(key string, def int) int {
	switch v := c.Options[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

// String reads a string option.
func (c Config) String(key, def string) string {
	if v, ok := c.Options[key].(string); ok {
		return v
	}
	return def
}

// Override is the externally supplied portion of a rule's configuration.
// Nil fields keep the built-in default.
type Override struct {
	Enabled        *bool          `yaml:"enabled"`
	Severity       *string        `yaml:"severity"`
	SkipValidation *bool          `yaml:"skip_validation"`
	Options        map[string]any `yaml:"options"`
}

// Overrides maps rule id to its override.
type Overrides map[string]Override

// LoadOverrides parses a YAML document of the form
//
//	rules:
//	  comma-density:
//	    enabled: true
//	    severity: warning
//	    options:
//	      max_ratio: 0.2
func LoadOverrides(data []byte) (Overrides, error) {
	var doc struct {
		Rules Overrides `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("rule: config: %w", err)
	}
	if doc.Rules == nil {
		doc.Rules = Overrides{}
	}
	return doc.Rules, nil
}

// ParseSeverity maps a configuration string to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "error":
		return SeverityError, nil
	case "warning":
		return SeverityWarning, nil
	case "info":
		return SeverityInfo, nil
	}
	return SeverityWarning, fmt.Errorf("rule: unknown severity %q", s)
}

// resolve merges an override onto defaults. Unknown severities keep the
// default rather than failing the whole configuration push.
func resolve(defaults Config, ov Override) Config {
	cfg := defaults
	// Copy options so rule defaults stay immutable.
	cfg.Options = make(map[string]any, len(defaults.Options)+len(ov.Options))
	for k, v := range defaults.Options {
		cfg.Options[k] = v
	}
	for k, v := range ov.Options {
		cfg.Options[k] = v
	}
	if ov.Enabled != nil {
		cfg.Enabled = *ov.Enabled
	}
	if ov.Severity != nil {
		if sev, err := ParseSeverity(*ov.Severity); err == nil {
			cfg.Severity = sev
		}
	}
	if ov.SkipValidation != nil {
		cfg.SkipValidation = *ov.SkipValidation
	}
	return cfg
}
