package concord

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for a negotiation workflow.
type Config struct {
	// MaxReviewRounds is the maximum number of party review cycles before
	// the workflow fails. The review stage executes at most
	// MaxReviewRounds+1 times; the final execution only records the
	// round-limit failure.
	MaxReviewRounds int `yaml:"max_review_rounds"`

	// MaxRetries is the retry budget for transient errors.
	MaxRetries int `yaml:"max_retries"`

	// RetryBackoff selects the delay strategy applied between retries of
	// a transiently failed stage: "constant", "linear", "exponential",
	// or "exponential_jitter". RetryInitialDelay seeds the first delay
	// and RetryMaxDelay caps growth.
	RetryBackoff      string        `yaml:"retry_backoff"`
	RetryInitialDelay time.Duration `yaml:"retry_initial_delay"`
	RetryMaxDelay     time.Duration `yaml:"retry_max_delay"`

	// Timeout is the workflow-level deadline. When exceeded, all in-flight
	// party evaluations are cancelled and the workflow fails with a
	// timeout error. Zero means no deadline.
	Timeout time.Duration `yaml:"timeout"`

	// RequireLegalReview forces a legal review stage once consensus is
	// reached, regardless of content heuristics.
	RequireLegalReview bool `yaml:"require_legal_review"`

	// Jurisdiction and ContractType are passed to the compliance checker
	// during legal review.
	Jurisdiction string   `yaml:"jurisdiction"`
	ContractType string   `yaml:"contract_type"`
	Regulations  []string `yaml:"regulations"`

	// MergeStrategy is handed to the document merger when approved
	// changes are consolidated into a final document.
	MergeStrategy string `yaml:"merge_strategy"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxReviewRounds:    2,
		MaxRetries:         3,
		RetryBackoff:       "exponential_jitter",
		RetryInitialDelay:  1 * time.Second,
		RetryMaxDelay:      30 * time.Second,
		Timeout:            24 * time.Hour,
		RequireLegalReview: true,
		Jurisdiction:       "US",
		ContractType:       "service_agreement",
		MergeStrategy:      "balanced",
	}
}

// LoadConfig reads a YAML configuration file and overlays it on
// DefaultConfig. Missing fields keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("concord: read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("concord: parse config %q: %w", path, err)
	}
	return cfg, nil
}
