package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Supported protocol keys. A platform whose protocol is not listed here is a
// configuration error surfaced at load time, not at payment time.
const (
	ProtocolPaypal    = "paypal"
	ProtocolRedsys    = "redsys"
	ProtocolRedsysXML = "redsysxml"
	ProtocolYeepay    = "yeepay"
)

var Protocols = []string{ProtocolPaypal, ProtocolRedsys, ProtocolRedsysXML, ProtocolYeepay}

// Meta carries the system-wide payment environment: test vs live and the
// public base URL used to build gateway return/notification URLs.
type Meta struct {
	Real  bool   `yaml:"real"`
	URL   string `yaml:"url"`
	Debug bool   `yaml:"debug"`
}

// Platform is the per-gateway merchant configuration. Only the fields of the
// selected protocol are used; the rest stay empty.
type Platform struct {
	Protocol string `yaml:"protocol"`
	Name     string `yaml:"name"`

	// Real, when set, must agree with Meta.Real. It lets operators pin a
	// platform entry to one environment so a live merchant code can never be
	// used while the system runs in test mode.
	Real *bool `yaml:"real"`

	// Redsys
	MerchantCode string `yaml:"merchant_code"`
	AuthKey      string `yaml:"auth_key"` // base64

	// PayPal
	ID     string `yaml:"id"`
	Secret string `yaml:"secret"`

	// Yeepay
	AppKey         string `yaml:"app_key"`
	MerchantNumber string `yaml:"merchant_number"`
	PublicKey      string `yaml:"public_key"`  // base64 DER, no PEM armor
	PrivateKey     string `yaml:"private_key"` // base64 DER, no PEM armor
	Endpoint       string `yaml:"endpoint"`
	ExpireMinutes  int    `yaml:"expire_minutes"`
}

// Config is resolved once at startup and passed explicitly into the services;
// nothing reads payment configuration from ambient globals.
type Config struct {
	Meta      Meta                `yaml:"meta"`
	Platforms map[string]Platform `yaml:"platforms"`
}

// Platform returns the configuration for a platform key, reporting whether it
// exists. The "meta" key is never a platform.
func (c *Config) Platform(key string) (Platform, bool) {
	if key == "meta" {
		return Platform{}, false
	}
	p, ok := c.Platforms[key]
	return p, ok
}

func knownProtocol(p string) bool {
	for _, known := range Protocols {
		if p == known {
			return true
		}
	}
	return false
}

// Load reads the payments configuration file named by PAYMENTS_CONFIG
// (default payments.yml) and applies environment overrides for the meta
// section (PAYMENTS_REAL, PAYMENTS_URL, PAYMENTS_DEBUG).
func Load() (*Config, error) {
	path := os.Getenv("PAYMENTS_CONFIG")
	if path == "" {
		path = "payments.yml"
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payments config: %w", err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PAYMENTS_REAL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("PAYMENTS_REAL: %w", err)
		}
		cfg.Meta.Real = b
	}
	if v := os.Getenv("PAYMENTS_URL"); v != "" {
		cfg.Meta.URL = v
	}
	if v := os.Getenv("PAYMENTS_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("PAYMENTS_DEBUG: %w", err)
		}
		cfg.Meta.Debug = b
	}

	return cfg, nil
}

// Parse decodes and validates a payments configuration document.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse payments config: %w", err)
	}

	if cfg.Meta.URL == "" {
		return nil, fmt.Errorf("payments config: meta.url is required")
	}
	if _, ok := cfg.Platforms["meta"]; ok {
		return nil, fmt.Errorf("payments config: 'meta' is a reserved key and cannot name a platform")
	}
	for key, p := range cfg.Platforms {
		if !knownProtocol(p.Protocol) {
			return nil, fmt.Errorf("payments config: platform %q has unknown protocol %q", key, p.Protocol)
		}
	}

	return &cfg, nil
}
