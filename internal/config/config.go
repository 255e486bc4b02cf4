// Package config loads the daemon's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log     LogConfig      `yaml:"log"`
	Catalog string         `yaml:"catalog"`
	Sources []SourceConfig `yaml:"sources"`
	Forward ForwardConfig  `yaml:"forward"`
	Record  RecordConfig   `yaml:"record"`
	Web     WebConfig      `yaml:"web"`
	LED     LEDConfig      `yaml:"led"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type SourceConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// serial
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`

	// tcp
	Addr string `yaml:"addr"`

	// exec
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`

	// file
	Path     string        `yaml:"path"`
	Interval time.Duration `yaml:"interval"`
	Loop     bool          `yaml:"loop"`
}

type ForwardConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

type LEDConfig struct {
	Enable bool `yaml:"enable"`
	Pin    int  `yaml:"pin"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	switch cfg.Log.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("log.level %q is not one of trace, debug, info, warn, error", cfg.Log.Level)
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if len(cfg.Sources) == 0 {
		return Config{}, fmt.Errorf("at least one source is required")
	}
	seen := map[string]bool{}
	for i := range cfg.Sources {
		src := &cfg.Sources[i]
		if src.Name == "" {
			return Config{}, fmt.Errorf("sources[%d].name is required", i)
		}
		if seen[src.Name] {
			return Config{}, fmt.Errorf("duplicate source name %q", src.Name)
		}
		seen[src.Name] = true

		switch src.Type {
		case "serial":
			// Empty device means auto-detect; the transport applies the
			// 4800 default baud.
		case "tcp":
			if src.Addr == "" {
				return Config{}, fmt.Errorf("sources[%d].addr is required for type tcp", i)
			}
		case "exec":
			if src.Command == "" {
				return Config{}, fmt.Errorf("sources[%d].command is required for type exec", i)
			}
		case "file":
			if src.Path == "" {
				return Config{}, fmt.Errorf("sources[%d].path is required for type file", i)
			}
		case "":
			return Config{}, fmt.Errorf("sources[%d].type is required", i)
		default:
			return Config{}, fmt.Errorf("sources[%d].type %q is not one of serial, tcp, exec, file", i, src.Type)
		}
	}

	if cfg.Forward.Enable && cfg.Forward.Dest == "" {
		cfg.Forward.Dest = "127.0.0.1:10110"
	}

	if cfg.Record.Enable && cfg.Record.Path == "" {
		return Config{}, fmt.Errorf("record.path is required when record.enable is true")
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}

	if cfg.LED.Enable && cfg.LED.Pin == 0 {
		cfg.LED.Pin = 17
	}

	return cfg, nil
}
