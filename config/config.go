// Package config loads operator connection profiles.
//
// A profile is a YAML file, passed with --config or the PANEL_CONFIG
// environment variable. Fields left out keep their defaults.
package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"go.chrisrx.dev/panel/mqtt"
	"go.chrisrx.dev/panel/panel"
)

const EnvVar = "PANEL_CONFIG"

const (
	DefaultBroker = "panel.ekoncept.pl"
	DefaultPort   = 443
	DefaultWSPath = "/mqtt"
)

type Config struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	WSPath   string `yaml:"ws_path"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// InsecureSkipVerify disables broker certificate checks.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// ClientIDPrefix is prepended to the random MQTT client id.
	ClientIDPrefix string `yaml:"client_id_prefix"`
}

func Default() *Config {
	return &Config{
		Broker:         DefaultBroker,
		Port:           DefaultPort,
		WSPath:         DefaultWSPath,
		ClientIDPrefix: mqtt.DefaultClientIDPrefix,
	}
}

// Load reads path over the defaults. An empty path falls back to
// PANEL_CONFIG, and to the defaults alone if that is unset.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Params returns the profile as operator-entered connection settings.
func (c *Config) Params() panel.Params {
	return panel.Params{
		Broker:   c.Broker,
		Port:     strconv.Itoa(c.Port),
		WSPath:   c.WSPath,
		Username: c.Username,
		Password: c.Password,
	}
}

// DialerOptions returns the transport settings of the profile.
func (c *Config) DialerOptions() []mqtt.DialerOption {
	opts := []mqtt.DialerOption{
		mqtt.WithClientIDPrefix(c.ClientIDPrefix),
	}
	if c.InsecureSkipVerify {
		opts = append(opts, mqtt.WithTLSConfig(&tls.Config{
			InsecureSkipVerify: true,
		}))
	}
	return opts
}
