// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cli

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/shanept/netsnmp"
)

// Config is the configuration of the netsnmp command. It is read from an
// optional YAML file, NETSNMP_ environment variables and flags, in
// increasing order of precedence.
type Config struct {
	Target         string        `mapstructure:"target"`
	Port           uint16        `mapstructure:"port"`
	TrapPort       uint16        `mapstructure:"trap_port"`
	Version        string        `mapstructure:"version"`
	Community      string        `mapstructure:"community"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Retries        int           `mapstructure:"retries"`
	MaxRepetitions int           `mapstructure:"max_repetitions"`
	Output         string        `mapstructure:"output"`
	Pcap           string        `mapstructure:"pcap"`

	V3      V3Config      `mapstructure:"v3"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// V3Config holds the SNMPv3 security settings. Engine IDs are hex.
type V3Config struct {
	SecurityLevel   string `mapstructure:"security_level"`
	User            string `mapstructure:"user"`
	AuthProtocol    string `mapstructure:"auth_protocol"`
	AuthPassphrase  string `mapstructure:"auth_passphrase"`
	PrivProtocol    string `mapstructure:"priv_protocol"`
	PrivPassphrase  string `mapstructure:"priv_passphrase"`
	ContextName     string `mapstructure:"context_name"`
	ContextEngineID string `mapstructure:"context_engine_id"`
	LocalEngineID   string `mapstructure:"local_engine_id"`
}

// LogConfig selects where logs go. An empty File logs to stderr; otherwise
// the file is rotated by size.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig enables a Prometheus endpoint while the command runs.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
	Path   string `mapstructure:"path"`
}

// LoadConfig reads the config file at path, when path is not empty, and
// merges environment overrides and flags already bound to v.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix("NETSNMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target", "127.0.0.1")
	v.SetDefault("port", 161)
	v.SetDefault("trap_port", 162)
	v.SetDefault("version", "2c")
	v.SetDefault("community", "public")
	v.SetDefault("timeout", "2s")
	v.SetDefault("retries", 1)
	v.SetDefault("max_repetitions", 50)
	v.SetDefault("output", "text")
	v.SetDefault("pcap", "")

	v.SetDefault("v3.security_level", "noAuthNoPriv")
	v.SetDefault("v3.user", "")
	v.SetDefault("v3.auth_protocol", "")
	v.SetDefault("v3.auth_passphrase", "")
	v.SetDefault("v3.priv_protocol", "")
	v.SetDefault("v3.priv_passphrase", "")
	v.SetDefault("v3.context_name", "")
	v.SetDefault("v3.context_engine_id", "")
	v.SetDefault("v3.local_engine_id", "")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("log.compress", false)

	v.SetDefault("metrics.listen", "")
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks every enumerated setting.
func (c *Config) Validate() error {
	if c.Target == "" {
		return fmt.Errorf("target is required")
	}
	version, err := parseVersion(c.Version)
	if err != nil {
		return err
	}
	if c.Output != "text" && c.Output != "yaml" {
		return fmt.Errorf("output must be text or yaml, not %q", c.Output)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative")
	}
	if version == netsnmp.Version3 {
		if _, err := c.V3.user(); err != nil {
			return err
		}
		if _, err := parseSecurityLevel(c.V3.SecurityLevel); err != nil {
			return err
		}
	}
	return nil
}

// Session builds the session the configuration describes, unconnected.
func (c *Config) Session() (*netsnmp.Session, error) {
	version, err := parseVersion(c.Version)
	if err != nil {
		return nil, err
	}
	x := &netsnmp.Session{
		Target:         c.Target,
		Port:           c.Port,
		TrapPort:       c.TrapPort,
		Community:      c.Community,
		Version:        version,
		Timeout:        c.Timeout,
		Retries:        c.Retries,
		MaxRepetitions: c.MaxRepetitions,
	}
	if version != netsnmp.Version3 {
		return x, nil
	}

	if x.MsgFlags, err = parseSecurityLevel(c.V3.SecurityLevel); err != nil {
		return nil, err
	}
	if x.User, err = c.V3.user(); err != nil {
		return nil, err
	}
	x.ContextName = c.V3.ContextName
	if x.ContextEngineID, err = parseEngineID(c.V3.ContextEngineID); err != nil {
		return nil, fmt.Errorf("context_engine_id: %w", err)
	}
	if x.LocalEngineID, err = parseEngineID(c.V3.LocalEngineID); err != nil {
		return nil, fmt.Errorf("local_engine_id: %w", err)
	}
	return x, nil
}

func (c *V3Config) user() (netsnmp.UsmUser, error) {
	auth, err := parseAuthProtocol(c.AuthProtocol)
	if err != nil {
		return netsnmp.UsmUser{}, err
	}
	priv, err := parsePrivProtocol(c.PrivProtocol)
	if err != nil {
		return netsnmp.UsmUser{}, err
	}
	return netsnmp.UsmUser{
		UserName:                 c.User,
		AuthenticationProtocol:   auth,
		AuthenticationPassphrase: c.AuthPassphrase,
		PrivacyProtocol:          priv,
		PrivacyPassphrase:        c.PrivPassphrase,
	}, nil
}

func parseVersion(s string) (netsnmp.SnmpVersion, error) {
	switch strings.ToLower(s) {
	case "1", "v1":
		return netsnmp.Version1, nil
	case "2c", "v2c", "2":
		return netsnmp.Version2c, nil
	case "3", "v3":
		return netsnmp.Version3, nil
	}
	return 0, fmt.Errorf("unknown SNMP version %q", s)
}

func parseSecurityLevel(s string) (netsnmp.SnmpV3MsgFlags, error) {
	switch strings.ToLower(s) {
	case "", "noauthnopriv":
		return netsnmp.NoAuthNoPriv, nil
	case "authnopriv":
		return netsnmp.AuthNoPriv, nil
	case "authpriv":
		return netsnmp.AuthPriv, nil
	}
	return 0, fmt.Errorf("unknown security level %q", s)
}

func parseAuthProtocol(s string) (netsnmp.SnmpV3AuthProtocol, error) {
	switch strings.ToLower(s) {
	case "", "none", "noauth":
		return netsnmp.NoAuth, nil
	case "md5":
		return netsnmp.MD5, nil
	case "sha", "sha1":
		return netsnmp.SHA, nil
	}
	return 0, fmt.Errorf("unknown authentication protocol %q", s)
}

func parsePrivProtocol(s string) (netsnmp.SnmpV3PrivProtocol, error) {
	switch strings.ToLower(s) {
	case "", "none", "nopriv":
		return netsnmp.NoPriv, nil
	case "des":
		return netsnmp.DES, nil
	case "aes", "aes128":
		return netsnmp.AES, nil
	case "aes192":
		return netsnmp.AES192, nil
	case "aes256":
		return netsnmp.AES256, nil
	}
	return 0, fmt.Errorf("unknown privacy protocol %q", s)
}

func parseEngineID(s string) (string, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(s), "0x"))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
