package sched

import (
	"os"

	yaml "github.com/goccy/go-yaml"
)

// StageConfig describes one simulated pipeline stage for cmd/edfsim.
type StageConfig struct {
	Name       string `yaml:"name"`
	PeriodUS   uint64 `yaml:"period_us"`   // admission offset between runs
	DeadlineUS uint64 `yaml:"deadline_us"` // relative deadline per run
	MaxRTimeUS uint64 `yaml:"max_rtime_us"`
	BusyUS     uint64 `yaml:"busy_us"` // simulated copy cost per run
}

// Config mirrors config.yml.
type Config struct {
	TickHZ         int           `yaml:"tick_hz"`          // 1000000 (by default): 1 tick = 1us
	ScheduleCostUS int           `yaml:"schedule_cost_us"` // 5 (by default)
	SlotAlignTries int           `yaml:"slot_align_tries"` // 10 (by default)
	EventBuffer    int           `yaml:"event_buffer"`     // 256 (by default)
	Pipeline       []StageConfig `yaml:"pipeline"`
}

// If the config file is not found, we use default values.
func defaultConfig() Config {
	return Config{
		TickHZ:         1_000_000,
		ScheduleCostUS: 5,
		SlotAlignTries: 10,
		EventBuffer:    256,
		Pipeline: []StageConfig{
			{Name: "playback", PeriodUS: 1000, DeadlineUS: 1000, MaxRTimeUS: 100, BusyUS: 50},
			{Name: "capture", PeriodUS: 2000, DeadlineUS: 2000, MaxRTimeUS: 200, BusyUS: 80},
		},
	}
}

// Load reads YAML and overrides defaults; empty path = defaults only.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, &cfg)

	// sanity clamps
	if cfg.TickHZ <= 0 {
		cfg.TickHZ = 1_000_000
	}
	if cfg.ScheduleCostUS < 0 {
		cfg.ScheduleCostUS = 5
	}
	if cfg.SlotAlignTries <= 0 {
		cfg.SlotAlignTries = 10
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}

	return cfg
}
