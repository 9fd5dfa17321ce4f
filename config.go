// Worker and client configuration, loadable from a YAML file so a
// gateway deployment can be described outside the binary:
//
//	service_id: calc-gw
//	namespace: default
//	max_payload_bytes: 1048576
//	metrics:
//	  latency_samples: 500
//	  window_seconds: 30
package jsongate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WorkerConfig configures a gateway worker.
type WorkerConfig struct {
	// ServiceID registers the worker for endpoint discovery. When empty
	// the worker expects JSONGATE_PORT in the environment (spawn mode).
	ServiceID string `yaml:"service_id,omitempty"`

	// Port forces a bind port. 0 means pick a free port.
	Port int `yaml:"port,omitempty"`

	// Namespace filters incoming calls; empty accepts the default.
	Namespace string `yaml:"namespace,omitempty"`

	// MaxPayloadBytes caps the JSON payload accepted per call.
	// 0 applies the wire-level default.
	MaxPayloadBytes int `yaml:"max_payload_bytes,omitempty"`

	// Metrics tunes the dispatch metrics collector.
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// MetricsConfig tunes the dispatch metrics collector
type MetricsConfig struct {
	LatencySamples int     `yaml:"latency_samples,omitempty"`
	WindowSeconds  float64 `yaml:"window_seconds,omitempty"`
}

// Validate checks the configuration for values the worker cannot run with
func (c *WorkerConfig) Validate() error {
	if c.Port != 0 {
		if err := ValidatePort(c.Port); err != nil {
			return err
		}
	}
	if c.MaxPayloadBytes < 0 {
		return fmt.Errorf("max_payload_bytes must not be negative, got %d", c.MaxPayloadBytes)
	}
	if c.MaxPayloadBytes > maxPayloadSize {
		return fmt.Errorf("max_payload_bytes %d exceeds wire limit %d", c.MaxPayloadBytes, maxPayloadSize)
	}
	if c.Metrics.LatencySamples < 0 {
		return fmt.Errorf("metrics.latency_samples must not be negative, got %d", c.Metrics.LatencySamples)
	}
	if c.Metrics.WindowSeconds < 0 {
		return fmt.Errorf("metrics.window_seconds must not be negative, got %v", c.Metrics.WindowSeconds)
	}
	return nil
}

// LoadWorkerConfig reads and validates a WorkerConfig from a YAML file
func LoadWorkerConfig(path string) (*WorkerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg WorkerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}
