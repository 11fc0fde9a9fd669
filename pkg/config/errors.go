package config

import (
	"fmt"
	"strings"
)

// ConfigurationError describes why a configuration cannot be used.
type ConfigurationError struct {
	FilePath      string   `json:"filePath,omitempty"`
	MissingFields []string `json:"missingFields,omitempty"`
	Problems      []string `json:"problems,omitempty"`
	Suggestions   []string `json:"suggestions,omitempty"`
}

func (ce *ConfigurationError) Error() string {
	var parts []string
	if len(ce.MissingFields) > 0 {
		parts = append(parts, "missing required "+strings.Join(ce.MissingFields, ", "))
	}
	parts = append(parts, ce.Problems...)

	msg := "invalid configuration: " + strings.Join(parts, "; ")
	if ce.FilePath != "" {
		msg = fmt.Sprintf("%s (%s)", msg, ce.FilePath)
	}
	return msg
}

// DetailedError returns a multi-line message including suggestions.
func (ce *ConfigurationError) DetailedError() string {
	var b strings.Builder
	b.WriteString("Configuration Error")
	if ce.FilePath != "" {
		b.WriteString(" in " + ce.FilePath)
	}
	b.WriteString("\n")
	for _, f := range ce.MissingFields {
		fmt.Fprintf(&b, "  Missing: %s\n", f)
	}
	for _, p := range ce.Problems {
		fmt.Fprintf(&b, "  Error: %s\n", p)
	}
	if len(ce.Suggestions) > 0 {
		b.WriteString("  Suggestions:\n")
		for _, s := range ce.Suggestions {
			fmt.Fprintf(&b, "    - %s\n", s)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}
