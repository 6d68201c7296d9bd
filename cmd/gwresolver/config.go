package main

import (
	"fmt"
	"os"
	"time"

	"github.com/agenthands/gwresolver/pkg/core"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Dir   string `yaml:"dir"`
	Self  string `yaml:"self"`
	Owner string `yaml:"owner"`

	Registry struct {
		Dir       string `yaml:"dir"`
		InMemory  bool   `yaml:"in_memory"`
		CacheSize int    `yaml:"cache_size"`
	} `yaml:"registry"`

	Transform struct {
		Name      string `yaml:"name"`
		ZstdLevel int    `yaml:"zstd_level"`
	} `yaml:"transform"`

	Gateway struct {
		Addr         string        `yaml:"addr"`
		Timeout      time.Duration `yaml:"timeout"`
		PendingLimit int           `yaml:"pending_limit"`
		MaxMsgBytes  int           `yaml:"max_msg_bytes"`
	} `yaml:"gateway"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func defaultFileConfig() fileConfig {
	var fc fileConfig
	fc.Dir = "gwresolver-data"
	fc.Registry.CacheSize = 1024
	fc.Transform.Name = "zstd"
	fc.Gateway.Timeout = 10 * time.Second
	return fc
}

// loadConfig reads --config if given and applies the global flag overrides.
func loadConfig(c *cli.Context) (core.Config, error) {
	fc := defaultFileConfig()
	if path := c.GlobalString("config"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return core.Config{}, err
		}
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return core.Config{}, fmt.Errorf("%w: config %s: %v", core.ErrInvalidInput, path, err)
		}
	}
	if v := c.GlobalString("dir"); v != "" {
		fc.Dir = v
	}
	if v := c.GlobalString("self"); v != "" {
		fc.Self = v
	}
	if v := c.GlobalString("owner"); v != "" {
		fc.Owner = v
	}
	if v := c.GlobalString("gateway"); v != "" {
		fc.Gateway.Addr = v
	}
	if v := c.GlobalString("log-level"); v != "" {
		fc.Log.Level = v
	}
	if c.GlobalBool("in-memory") {
		fc.Registry.InMemory = true
	}

	cfg := core.Config{
		Dir: fc.Dir,
		Registry: core.RegistryConfig{
			Dir:       fc.Registry.Dir,
			InMemory:  fc.Registry.InMemory,
			CacheSize: fc.Registry.CacheSize,
		},
		Transform: core.TransformConfig{Name: fc.Transform.Name, ZstdLevel: fc.Transform.ZstdLevel},
		Gateway: core.GatewayConfig{
			Addr:         fc.Gateway.Addr,
			Timeout:      fc.Gateway.Timeout,
			PendingLimit: fc.Gateway.PendingLimit,
			MaxMsgBytes:  fc.Gateway.MaxMsgBytes,
		},
		Log: core.LogConfig{Level: fc.Log.Level},
	}
	var err error
	if cfg.Self, err = optionalAddress("self", fc.Self); err != nil {
		return core.Config{}, err
	}
	if cfg.Owner, err = optionalAddress("owner", fc.Owner); err != nil {
		return core.Config{}, err
	}
	return cfg, nil
}

func optionalAddress(field, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	return parseAddress(field, s)
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %s is not an address: %q", core.ErrInvalidInput, field, s)
	}
	return common.HexToAddress(s), nil
}
