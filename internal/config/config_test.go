package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fixed-pool/internal/logger"
	"fixed-pool/internal/scenario"
)

func TestLoadFileYAML(t *testing.T) {
	content := `
run:
  name: test-run
  description: Test run
  workers: 4
  items: 500
  producer:
    rate: 200
    burst: 10
  processing:
    min_delay: 1ms
    max_delay: 20ms
  chaos:
    panic_rate: 0.05
    max_panics: 2
    delay_rate: 0.1
    delay: 15ms
log:
  level: debug
server:
  addr: ":9090"
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	cfg, err := LoadFile(tmpFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Run.Name != "test-run" {
		t.Errorf("expected name 'test-run', got '%s'", cfg.Run.Name)
	}
	if cfg.Run.Workers != 4 {
		t.Errorf("expected workers 4, got %d", cfg.Run.Workers)
	}
	if cfg.Run.Producer.Rate != 200 {
		t.Errorf("expected rate 200, got %f", cfg.Run.Producer.Rate)
	}
	if cfg.Run.Chaos.MaxPanics != 2 || cfg.Run.Chaos.Delay != "15ms" {
		t.Errorf("unexpected chaos config: %+v", cfg.Run.Chaos)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected addr :9090, got %s", cfg.Server.Addr)
	}
	if level, err := cfg.LogLevel(); err != nil || level != logger.LevelDebug {
		t.Errorf("expected debug level, got %v (%v)", level, err)
	}
}

func TestLoadFileJSON(t *testing.T) {
	content := `{
  "run": {
    "name": "json-test",
    "workers": 2,
    "items": 10,
    "processing": {
      "max_delay": "5ms"
    }
  }
}`
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	cfg, err := LoadFile(tmpFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Run.Name != "json-test" {
		t.Errorf("expected name 'json-test', got '%s'", cfg.Run.Name)
	}
	if cfg.Run.Processing.MaxDelay != "5ms" {
		t.Errorf("expected max_delay 5ms, got %s", cfg.Run.Processing.MaxDelay)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := LoadFile("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFileUnsupportedFormat(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.txt")
	if err := os.WriteFile(tmpFile, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	_, err := LoadFile(tmpFile)
	if err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(tmpFile, []byte("run: [unclosed"), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	_, err := LoadFile(tmpFile)
	if err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestToScenarioConfig(t *testing.T) {
	cfg := &FileConfig{
		Run: RunConfig{
			Name:        "test",
			Description: "Test",
			Workers:     8,
			Items:       10000,
			Producer: ProducerConfig{
				Rate:  1000,
				Burst: 50,
			},
			Processing: ProcessingConfig{
				MinDelay: "2ms",
				MaxDelay: "4ms",
			},
			Chaos: ChaosConfig{
				PanicRate: 0.1,
				MaxPanics: 3,
				DelayRate: 0.2,
				Delay:     "7ms",
			},
		},
	}

	scenarioCfg, err := cfg.ToScenarioConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}

	if scenarioCfg.Name != "test" {
		t.Errorf("expected name 'test', got '%s'", scenarioCfg.Name)
	}
	if scenarioCfg.Workers != 8 {
		t.Errorf("expected workers 8, got %d", scenarioCfg.Workers)
	}
	if scenarioCfg.Items != 10000 {
		t.Errorf("expected items 10000, got %d", scenarioCfg.Items)
	}
	if scenarioCfg.Rate != 1000 || scenarioCfg.Burst != 50 {
		t.Errorf("expected rate 1000 burst 50, got %f/%d", scenarioCfg.Rate, scenarioCfg.Burst)
	}
	if scenarioCfg.MinDelay != 2*time.Millisecond || scenarioCfg.MaxDelay != 4*time.Millisecond {
		t.Errorf("expected 2ms-4ms, got %v-%v", scenarioCfg.MinDelay, scenarioCfg.MaxDelay)
	}
	if scenarioCfg.PanicRate != 0.1 || scenarioCfg.MaxPanics != 3 || scenarioCfg.DelayRate != 0.2 {
		t.Errorf("chaos settings not applied: %+v", scenarioCfg)
	}
	if scenarioCfg.FaultDelay != 7*time.Millisecond {
		t.Errorf("expected fault delay 7ms, got %v", scenarioCfg.FaultDelay)
	}
}

func TestToScenarioConfigDefaults(t *testing.T) {
	cfg := &FileConfig{}

	scenarioCfg, err := cfg.ToScenarioConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}

	def := scenario.DefaultConfig()
	if scenarioCfg.Workers != def.Workers || scenarioCfg.Items != def.Items {
		t.Errorf("expected defaults %d/%d, got %d/%d", def.Workers, def.Items, scenarioCfg.Workers, scenarioCfg.Items)
	}
}

func TestToScenarioConfigInvalidDelay(t *testing.T) {
	cfg := &FileConfig{
		Run: RunConfig{
			Processing: ProcessingConfig{MinDelay: "invalid"},
		},
	}

	_, err := cfg.ToScenarioConfig()
	if err == nil {
		t.Error("expected error for invalid min_delay")
	}

	cfg.Run.Processing = ProcessingConfig{MaxDelay: "soon"}
	if _, err := cfg.ToScenarioConfig(); err == nil {
		t.Error("expected error for invalid max_delay")
	}

	cfg.Run.Processing = ProcessingConfig{}
	cfg.Run.Chaos = ChaosConfig{Delay: "later"}
	if _, err := cfg.ToScenarioConfig(); err == nil {
		t.Error("expected error for invalid chaos.delay")
	}
}

func TestToScenarioConfigInvertedDelays(t *testing.T) {
	cfg := &FileConfig{
		Run: RunConfig{
			Processing: ProcessingConfig{MinDelay: "10ms", MaxDelay: "1ms"},
		},
	}

	_, err := cfg.ToScenarioConfig()
	if err == nil {
		t.Error("expected error when max_delay < min_delay")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		config   FileConfig
		hasError bool
	}{
		{
			name:     "valid config",
			config:   FileConfig{},
			hasError: false,
		},
		{
			name: "negative workers",
			config: FileConfig{
				Run: RunConfig{Workers: -1},
			},
			hasError: true,
		},
		{
			name: "negative items",
			config: FileConfig{
				Run: RunConfig{Items: -1},
			},
			hasError: true,
		},
		{
			name: "negative rate",
			config: FileConfig{
				Run: RunConfig{Producer: ProducerConfig{Rate: -0.5}},
			},
			hasError: true,
		},
		{
			name: "negative burst",
			config: FileConfig{
				Run: RunConfig{Producer: ProducerConfig{Burst: -1}},
			},
			hasError: true,
		},
		{
			name: "panic rate above one",
			config: FileConfig{
				Run: RunConfig{Chaos: ChaosConfig{PanicRate: 1.5}},
			},
			hasError: true,
		},
		{
			name: "negative delay rate",
			config: FileConfig{
				Run: RunConfig{Chaos: ChaosConfig{DelayRate: -0.1}},
			},
			hasError: true,
		},
		{
			name: "negative max panics",
			config: FileConfig{
				Run: RunConfig{Chaos: ChaosConfig{MaxPanics: -1}},
			},
			hasError: true,
		},
		{
			name: "unknown log level",
			config: FileConfig{
				Log: LogConfig{Level: "chatty"},
			},
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.hasError && err == nil {
				t.Error("expected validation error")
			}
			if !tt.hasError && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
