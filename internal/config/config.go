package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fixed-pool/internal/logger"
	"fixed-pool/internal/scenario"

	"gopkg.in/yaml.v3"
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Run    RunConfig    `yaml:"run" json:"run"`
	Log    LogConfig    `yaml:"log" json:"log"`
	Server ServerConfig `yaml:"server" json:"server"`
}

// RunConfig は実行設定
type RunConfig struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Workers     int    `yaml:"workers" json:"workers"`
	Items       int    `yaml:"items" json:"items"`

	Producer   ProducerConfig   `yaml:"producer" json:"producer"`
	Processing ProcessingConfig `yaml:"processing" json:"processing"`
	Chaos      ChaosConfig      `yaml:"chaos" json:"chaos"`
}

// ProducerConfig はプロデューサー設定
type ProducerConfig struct {
	Rate  float64 `yaml:"rate" json:"rate"`   // 秒間アイテム数（0で無制限）
	Burst int     `yaml:"burst" json:"burst"` // レート制限のバースト
}

// ProcessingConfig は処理時間の設定
type ProcessingConfig struct {
	MinDelay string `yaml:"min_delay" json:"min_delay"`
	MaxDelay string `yaml:"max_delay" json:"max_delay"`
}

// ChaosConfig は障害注入設定
type ChaosConfig struct {
	PanicRate float64 `yaml:"panic_rate" json:"panic_rate"`
	MaxPanics int     `yaml:"max_panics" json:"max_panics"`
	DelayRate float64 `yaml:"delay_rate" json:"delay_rate"`
	Delay     string  `yaml:"delay" json:"delay"`
}

// LogConfig はログ設定
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// ServerConfig はAPIサーバー設定
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// ToScenarioConfig はFileConfigをscenario.Configに変換する
func (f *FileConfig) ToScenarioConfig() (scenario.Config, error) {
	rc := f.Run

	// デフォルト値の設定
	config := scenario.DefaultConfig()

	if rc.Name != "" {
		config.Name = rc.Name
	}
	if rc.Description != "" {
		config.Description = rc.Description
	}
	if rc.Workers > 0 {
		config.Workers = rc.Workers
	}
	if rc.Items > 0 {
		config.Items = rc.Items
	}

	// Producer設定
	if rc.Producer.Rate > 0 {
		config.Rate = rc.Producer.Rate
	}
	if rc.Producer.Burst > 0 {
		config.Burst = rc.Producer.Burst
	}

	// Processing設定
	if rc.Processing.MinDelay != "" {
		d, err := time.ParseDuration(rc.Processing.MinDelay)
		if err != nil {
			return config, fmt.Errorf("invalid min_delay: %w", err)
		}
		config.MinDelay = d
	}
	if rc.Processing.MaxDelay != "" {
		d, err := time.ParseDuration(rc.Processing.MaxDelay)
		if err != nil {
			return config, fmt.Errorf("invalid max_delay: %w", err)
		}
		config.MaxDelay = d
	}
	// Chaos設定
	config.PanicRate = rc.Chaos.PanicRate
	config.MaxPanics = rc.Chaos.MaxPanics
	config.DelayRate = rc.Chaos.DelayRate
	if rc.Chaos.Delay != "" {
		d, err := time.ParseDuration(rc.Chaos.Delay)
		if err != nil {
			return config, fmt.Errorf("invalid chaos.delay: %w", err)
		}
		config.FaultDelay = d
	}

	if config.MaxDelay < config.MinDelay {
		return config, fmt.Errorf("max_delay (%v) must not be less than min_delay (%v)",
			config.MaxDelay, config.MinDelay)
	}

	return config, nil
}

// LogLevel は設定されたログレベルを返す
func (f *FileConfig) LogLevel() (logger.Level, error) {
	return logger.ParseLevel(f.Log.Level)
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	rc := f.Run

	if rc.Workers < 0 {
		return fmt.Errorf("run.workers must be non-negative")
	}

	if rc.Items < 0 {
		return fmt.Errorf("run.items must be non-negative")
	}

	if rc.Producer.Rate < 0 {
		return fmt.Errorf("run.producer.rate must be non-negative")
	}

	if rc.Producer.Burst < 0 {
		return fmt.Errorf("run.producer.burst must be non-negative")
	}

	if rc.Chaos.PanicRate < 0 || rc.Chaos.PanicRate > 1 {
		return fmt.Errorf("run.chaos.panic_rate must be between 0.0 and 1.0")
	}

	if rc.Chaos.DelayRate < 0 || rc.Chaos.DelayRate > 1 {
		return fmt.Errorf("run.chaos.delay_rate must be between 0.0 and 1.0")
	}

	if rc.Chaos.MaxPanics < 0 {
		return fmt.Errorf("run.chaos.max_panics must be non-negative")
	}

	if _, err := f.LogLevel(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}
