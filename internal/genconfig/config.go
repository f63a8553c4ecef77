// Package genconfig parses the generator's profiles CSV and YAML
// configuration (§6), grounded on the phenix subtree's yaml-tagged struct
// + yaml.Unmarshal idiom (phenix/types/config.go) for the YAML side, and
// this repo's own CSV grounding (see internal/ftmeter) for the profile
// side.
package genconfig

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// AddrRange is an "addr/prefix" pair, e.g. ip_range/mac_range.
type AddrRange struct {
	Addr   string `yaml:"addr"`
	Prefix int    `yaml:"prefix"`
}

// EncapLayer is one entry of the ordered encapsulation list.
type EncapLayer struct {
	Type        string  `yaml:"type"` // "vlan" or "mpls"
	ID          int     `yaml:"id,omitempty"`
	Label       int     `yaml:"label,omitempty"`
	Probability float64 `yaml:"probability"`
}

// TLSEncryption controls which ports force/forbid TLS wrapping of payload.
type TLSEncryption struct {
	AlwaysEncryptPorts       []int   `yaml:"always_encrypt_ports"`
	NeverEncryptPorts        []int   `yaml:"never_encrypt_ports"`
	OtherwiseWithProbability float64 `yaml:"otherwise_with_probability"`
}

// PayloadConfig selects which application-layer protocols may be
// synthesized and TLS wrapping policy.
type PayloadConfig struct {
	EnabledProtocols []string      `yaml:"enabled_protocols"`
	TLSEncryption    TLSEncryption `yaml:"tls_encryption"`
}

// TimestampsConfig holds the §4.3 planner's tunables.
type TimestampsConfig struct {
	LinkSpeed            string `yaml:"link_speed"`
	MinPacketGap         string `yaml:"min_packet_gap"`
	FlowMinDirSwitchGap  string `yaml:"flow_min_dir_switch_gap"`
	FlowMaxInterpacketGap string `yaml:"flow_max_interpacket_gap"`
}

// AddrFamilyConfig is one of the top-level ipv4/ipv6/mac sections.
type AddrFamilyConfig struct {
	IPRange                 *AddrRange `yaml:"ip_range,omitempty"`
	MACRange                *AddrRange `yaml:"mac_range,omitempty"`
	FragmentationProb       string     `yaml:"fragmentation_probability,omitempty"`
	MinPacketSizeToFragment int        `yaml:"min_packet_size_to_fragment,omitempty"`
}

// Config is the generator's top-level YAML document (§6).
type Config struct {
	IPv4          AddrFamilyConfig  `yaml:"ipv4"`
	IPv6          AddrFamilyConfig  `yaml:"ipv6"`
	MAC           AddrFamilyConfig  `yaml:"mac"`
	Encapsulation []EncapLayer      `yaml:"encapsulation"`
	Payload       PayloadConfig     `yaml:"payload"`
	Timestamps    TimestampsConfig  `yaml:"timestamps"`
}

// Load parses a generator config document, rejecting unknown keys at any
// level (§6: "fatal config error with line:column pointer") via yaml.v3's
// strict decoder, which annotates such errors with a line number.
func Load(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("genconfig: parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate applies the one structural rule spec.md calls out explicitly:
// a vlan layer may not follow an mpls layer in the encapsulation list.
func (c *Config) validate() error {
	sawMPLS := false
	for i, e := range c.Encapsulation {
		switch e.Type {
		case "vlan":
			if sawMPLS {
				return fmt.Errorf("genconfig: encapsulation[%d]: vlan after mpls is not allowed", i)
			}
		case "mpls":
			sawMPLS = true
		default:
			return fmt.Errorf("genconfig: encapsulation[%d]: unknown type %q", i, e.Type)
		}
	}
	return nil
}
