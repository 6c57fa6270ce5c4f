package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"govchain/native/timelock"
)

// Config is the full node configuration.
type Config struct {
	DataDir    string     `toml:"DataDir" yaml:"dataDir"`
	Governance Governance `toml:"Governance" yaml:"governance"`
	Timelock   Timelock   `toml:"Timelock" yaml:"timelock"`
	Signing    Signing    `toml:"Signing" yaml:"signing"`
	Token      Token      `toml:"Token" yaml:"token"`
	API        API        `toml:"API" yaml:"api"`
	Audit      Audit      `toml:"Audit" yaml:"audit"`
	Telemetry  Telemetry  `toml:"Telemetry" yaml:"telemetry"`
	Logging    Logging    `toml:"Logging" yaml:"logging"`
}

// Well-known component identities used when the file leaves them empty.
const (
	DefaultGovernorAddress = "0x0000000000000000000000000000000000000901"
	DefaultTimelockAddress = "0x0000000000000000000000000000000000000902"
	DefaultTokenAddress    = "0x0000000000000000000000000000000000000903"
	DefaultParamsAddress   = "0x0000000000000000000000000000000000000904"
)

// Default returns a configuration with every optional field populated.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the configuration at path. YAML is used for .yaml and .yml
// files, TOML otherwise. A missing file is created with defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if isYAML(path) {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	} else {
		meta, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config: unknown field %s in %s", undecoded[0].String(), path)
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./govchain-data"
	}
	if c.Governance.Address == "" {
		c.Governance.Address = DefaultGovernorAddress
	}
	if c.Governance.Name == "" {
		c.Governance.Name = "Governor"
	}
	if c.Governance.ParamsAddress == "" {
		c.Governance.ParamsAddress = DefaultParamsAddress
	}
	if c.Timelock.Address == "" {
		c.Timelock.Address = DefaultTimelockAddress
	}
	if c.Timelock.DelaySeconds == 0 {
		c.Timelock.DelaySeconds = timelock.DefaultDelay
	}
	if c.Token.Address == "" {
		c.Token.Address = DefaultTokenAddress
	}
	if c.Token.Name == "" {
		c.Token.Name = "Gov"
	}
	if c.Signing.ChainID == 0 {
		c.Signing.ChainID = 1
	}
	if c.API.ListenAddress == "" {
		c.API.ListenAddress = ":8080"
	}
	if c.API.RateLimitPerSecond == 0 {
		c.API.RateLimitPerSecond = 20
	}
	if c.API.RateLimitBurst == 0 {
		c.API.RateLimitBurst = 40
	}
	if c.API.ReadTimeoutSeconds == 0 {
		c.API.ReadTimeoutSeconds = 15
	}
	if c.API.WriteTimeoutSeconds == 0 {
		c.API.WriteTimeoutSeconds = 15
	}
	if c.API.JWTIssuer == "" {
		c.API.JWTIssuer = "govchain"
	}
	if c.Audit.Driver == "" {
		c.Audit.Driver = "sqlite"
	}
	if c.Audit.Driver == "sqlite" && c.Audit.DSN == "" {
		c.Audit.DSN = filepath.Join(c.DataDir, "audit.db")
	}
	if c.Telemetry.SampleRatio == 0 {
		c.Telemetry.SampleRatio = 1
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// createDefault writes a default TOML configuration to path.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}

// JWTSecret resolves the API signing secret, preferring the environment.
func (c *Config) JWTSecret() string {
	if env := strings.TrimSpace(c.API.JWTSecretEnv); env != "" {
		if value := strings.TrimSpace(os.Getenv(env)); value != "" {
			return value
		}
	}
	return c.API.JWTSecret
}
