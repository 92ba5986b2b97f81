package governance

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Policy holds the thresholds governance compares usage against.
type Policy struct {
	// VolumeReview flags a context for routine review at or above this MC volume.
	VolumeReview int64 `yaml:"volume_review"`
	// VolumeElevated raises the review level to ELEVATED.
	VolumeElevated int64 `yaml:"volume_elevated"`
	// VolumeLimit disallows any volume above it.
	VolumeLimit int64 `yaml:"volume_limit"`

	// Operations per hour across the context window.
	FrequencyReview float64 `yaml:"frequency_review"`
	FrequencyLimit  float64 `yaml:"frequency_limit"`

	// KnownDomains, when non-empty, is the closed set of domains MC may be used in.
	KnownDomains      []string `yaml:"known_domains"`
	RestrictedDomains []string `yaml:"restricted_domains"`

	// RecognitionProbability is the chance a closed-auction participant raises a GMC signal.
	RecognitionProbability float64 `yaml:"recognition_probability"`
}

// DefaultPolicy returns the built-in thresholds.
func DefaultPolicy() Policy {
	return Policy{
		VolumeReview:           500,
		VolumeElevated:         2000,
		VolumeLimit:            10000,
		FrequencyReview:        5,
		FrequencyLimit:         20,
		KnownDomains:           []string{"store", "auction", "recognition", "transfer", "safe"},
		RestrictedDomains:      []string{"payroll", "kpi", "cash_conversion", "bonus"},
		RecognitionProbability: 0.05,
	}
}

// Validate checks the thresholds are ordered and the probability is a probability.
func (p Policy) Validate() error {
	switch {
	case p.VolumeReview <= 0:
		return fmt.Errorf("volume_review must be positive")
	case p.VolumeElevated < p.VolumeReview:
		return fmt.Errorf("volume_elevated (%d) must be >= volume_review (%d)", p.VolumeElevated, p.VolumeReview)
	case p.VolumeLimit < p.VolumeElevated:
		return fmt.Errorf("volume_limit (%d) must be >= volume_elevated (%d)", p.VolumeLimit, p.VolumeElevated)
	case p.FrequencyReview <= 0:
		return fmt.Errorf("frequency_review must be positive")
	case p.FrequencyLimit < p.FrequencyReview:
		return fmt.Errorf("frequency_limit (%v) must be >= frequency_review (%v)", p.FrequencyLimit, p.FrequencyReview)
	case p.RecognitionProbability < 0 || p.RecognitionProbability > 1:
		return fmt.Errorf("recognition_probability %v is outside [0, 1]", p.RecognitionProbability)
	}
	for _, d := range p.RestrictedDomains {
		if slices.Contains(p.KnownDomains, d) {
			return fmt.Errorf("domain %q is both known and restricted", d)
		}
	}
	return nil
}

// ParsePolicy decodes YAML over the defaults, so a file only lists what it changes.
func ParsePolicy(data []byte) (Policy, error) {
	p := DefaultPolicy()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse governance policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("invalid governance policy: %w", err)
	}
	return p, nil
}

// LoadPolicy reads a policy file. An empty path yields the defaults.
func LoadPolicy(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read governance policy: %w", err)
	}
	return ParsePolicy(data)
}
