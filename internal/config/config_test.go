package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Import: ImportConfig{
			MaxRows:           1000,
			MaxFileSize:       10 * 1024 * 1024,
			DuplicateStrategy: "skip",
		},
		Check: CheckConfig{
			StandardHours:      8,
			MinHours:           4,
			MaxOvertime:        4,
			MaxMonthlyOvertime: 80,
			MaxRangeDays:       90,
			ScheduleInterval:   24 * time.Hour,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:   "cover strategy accepted",
			mutate: func(c *Config) { c.Import.DuplicateStrategy = "cover" },
		},
		{
			name:    "unknown duplicate strategy",
			mutate:  func(c *Config) { c.Import.DuplicateStrategy = "merge" },
			wantErr: true,
		},
		{
			name:    "non-positive max rows",
			mutate:  func(c *Config) { c.Import.MaxRows = 0 },
			wantErr: true,
		},
		{
			name:    "non-positive max file size",
			mutate:  func(c *Config) { c.Import.MaxFileSize = 0 },
			wantErr: true,
		},
		{
			name:    "min hours above standard",
			mutate:  func(c *Config) { c.Check.MinHours = 9 },
			wantErr: true,
		},
		{
			name:    "zero standard hours",
			mutate:  func(c *Config) { c.Check.StandardHours = 0 },
			wantErr: true,
		},
		{
			name:    "non-positive range limit",
			mutate:  func(c *Config) { c.Check.MaxRangeDays = 0 },
			wantErr: true,
		},
		{
			name: "scheduling enabled without interval",
			mutate: func(c *Config) {
				c.Check.ScheduleEnabled = true
				c.Check.ScheduleInterval = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
