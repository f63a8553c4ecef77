// Package config parses the replay replicator's YAML document (§6
// "-c replicator.yaml") into strategy configs; internal/replicator
// compiles these into executable Strategy/LoopStrategy values.
package config

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnitConfig is one entry of the YAML "units:" list: a strategy string
// per address field, applied once per replay unit (§4.10).
type UnitConfig struct {
	SrcIP  string `yaml:"srcip,omitempty"`
	DstIP  string `yaml:"dstip,omitempty"`
	SrcMAC string `yaml:"srcmac,omitempty"`
	DstMAC string `yaml:"dstmac,omitempty"`
}

// LoopConfig is the YAML "loop:" section: a strategy string per address
// field, applied once per replay loop iteration (§4.10).
type LoopConfig struct {
	SrcIP string `yaml:"srcip,omitempty"`
	DstIP string `yaml:"dstip,omitempty"`
}

// Config is the replicator.yaml top-level document.
type Config struct {
	Units []UnitConfig `yaml:"units"`
	Loop  LoopConfig   `yaml:"loop"`
}

// Load parses a replicator.yaml document, matching genconfig.Load's
// strict-decode idiom (unknown top-level sections are warned about by the
// caller, per §4.10 "other sections: warn", rather than rejected here).
func Load(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var raw map[string]yaml.Node
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("config: parse config: %w", err)
	}

	var cfg Config
	if node, ok := raw["units"]; ok {
		if err := node.Decode(&cfg.Units); err != nil {
			return nil, fmt.Errorf("config: decode units: %w", err)
		}
	}
	if node, ok := raw["loop"]; ok {
		if err := node.Decode(&cfg.Loop); err != nil {
			return nil, fmt.Errorf("config: decode loop: %w", err)
		}
	}

	return &cfg, nil
}

// UnknownSections returns the top-level keys in data other than "units"
// and "loop", for the caller to log a warning about (§4.10).
func UnknownSections(data []byte) ([]string, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var raw map[string]yaml.Node
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("config: parse config: %w", err)
	}
	var unknown []string
	for k := range raw {
		if k != "units" && k != "loop" {
			unknown = append(unknown, k)
		}
	}
	return unknown, nil
}
