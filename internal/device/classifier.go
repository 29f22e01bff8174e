package device

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Classifier decides whether a device type emits standalone, self-contained
// messages (no session grouping) or parameter streams that must be grouped
// into sessions.
//
// The classification is deliberately a configuration input, not a hardcoded
// predicate: deployments disagree on which instruments batch their output.
// The zero value classifies every device type as grouped, which matches the
// most common integration profile.
type Classifier struct {
	standalone map[string]bool
}

// NewClassifier builds a classifier marking the given device types standalone.
func NewClassifier(standaloneTypes ...string) *Classifier {
	c := &Classifier{standalone: make(map[string]bool, len(standaloneTypes))}
	for _, t := range standaloneTypes {
		c.standalone[t] = true
	}
	return c
}

// Standalone reports whether messages from this device type are complete
// units that bypass session grouping. Safe on a nil classifier (everything
// grouped).
func (c *Classifier) Standalone(deviceType string) bool {
	if c == nil {
		return false
	}
	return c.standalone[deviceType]
}

// classifierConfig is the on-disk YAML shape.
type classifierConfig struct {
	StandaloneDevices []string `yaml:"standalone_devices"`
}

// ParseClassifier parses a YAML classifier configuration.
func ParseClassifier(data []byte) (*Classifier, error) {
	var cfg classifierConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse classifier config: %w", err)
	}
	return NewClassifier(cfg.StandaloneDevices...), nil
}

// LoadClassifier reads and parses a YAML classifier configuration file.
func LoadClassifier(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classifier config: %w", err)
	}
	return ParseClassifier(data)
}
