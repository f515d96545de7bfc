package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/TFMV/regions/pkg/descriptors"
	"github.com/TFMV/regions/pkg/regions"
)

// ValidationIssue represents a configuration validation issue
type ValidationIssue struct {
	Field      string             // The field with the issue
	Value      interface{}        // The current value
	Message    string             // Description of the issue
	Severity   ValidationSeverity // How severe the issue is
	Suggestion string             // Suggested fix
}

// ValidationSeverity indicates how severe a validation issue is
type ValidationSeverity int

const (
	// Error indicates a configuration that will not work
	Error ValidationSeverity = iota
	// Warning indicates a configuration that may cause problems
	Warning
)

// String returns a string representation of the severity
func (s ValidationSeverity) String() string {
	switch s {
	case Error:
		return "ERROR"
	case Warning:
		return "WARNING"
	default:
		return "UNKNOWN"
	}
}

// ValidateConfig checks cfg and returns every issue found
func ValidateConfig(cfg Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.FeaturesDir == "" {
		issues = append(issues, ValidationIssue{
			Field:      "FeaturesDir",
			Value:      cfg.FeaturesDir,
			Message:    "FeaturesDir is empty",
			Severity:   Error,
			Suggestion: "Set features_dir to the directory holding the .feat and .desc files",
		})
	}

	if _, err := regions.NewByName(cfg.Describer); err != nil {
		issues = append(issues, ValidationIssue{
			Field:      "Describer",
			Value:      cfg.Describer,
			Message:    "Unknown describer",
			Severity:   Error,
			Suggestion: "Use one of " + strings.Join(regions.Names(), ", "),
		})
	}

	if _, err := descriptors.ParseCompression(cfg.DescriptorCompression); err != nil {
		issues = append(issues, ValidationIssue{
			Field:      "DescriptorCompression",
			Value:      cfg.DescriptorCompression,
			Message:    "Unsupported descriptor compression",
			Severity:   Error,
			Suggestion: "Use none, zstd or lz4",
		})
	}

	if cfg.Workers <= 0 {
		issues = append(issues, ValidationIssue{
			Field:      "Workers",
			Value:      cfg.Workers,
			Message:    "Workers must be greater than 0",
			Severity:   Error,
			Suggestion: "Set workers to the number of views to load in parallel",
		})
	} else if cfg.Workers > 256 {
		issues = append(issues, ValidationIssue{
			Field:      "Workers",
			Value:      cfg.Workers,
			Message:    "Workers is unusually high",
			Severity:   Warning,
			Suggestion: "Loading is I/O bound; a few workers per disk is usually enough",
		})
	}

	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		issues = append(issues, ValidationIssue{
			Field:      "LogLevel",
			Value:      cfg.LogLevel,
			Message:    "Invalid log level",
			Severity:   Error,
			Suggestion: "Use debug, info, warn or error",
		})
	}

	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Field:      "HTTP.Port",
			Value:      cfg.HTTP.Port,
			Message:    "Port out of range",
			Severity:   Error,
			Suggestion: "Set http.port between 1 and 65535",
		})
	}

	return issues
}

// Validate returns an error describing every Error severity issue of c
func (c Config) Validate() error {
	var msgs []string
	for _, issue := range ValidateConfig(c) {
		if issue.Severity == Error {
			msgs = append(msgs, fmt.Sprintf("%s: %s (%v)", issue.Field, issue.Message, issue.Value))
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
