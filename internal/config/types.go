package config

import (
	"errors"
	"fmt"
	"strings"
)

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Broadcast BroadcastConfig `json:"broadcast,omitempty"`
	Scheduler SchedulerConfig `json:"scheduler,omitempty"`
	Confirm   ConfirmConfig   `json:"confirm,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// AdminUserIDs may use every operator command; everyone else only /start.
	AdminUserIDs []int64 `json:"admin_user_ids"`

	// TargetGroupID is the group a user must belong to before /start
	// subscribes them.
	TargetGroupID int64 `json:"target_group_id"`

	// PollTimeout is a Go duration string (default "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console bool          `json:"console"`
	File    FileLogConfig `json:"file,omitempty"`
}

type FileLogConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type StorageConfig struct {
	Path string `json:"path"`

	// BusyTimeout is a Go duration string (sqlite busy_timeout pragma).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// BroadcastConfig controls the dispatch engine.
type BroadcastConfig struct {
	// RatePerSec caps outgoing sends; the engine pauses 1/rate between two
	// consecutive attempts. Default 25.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// SchedulerConfig controls the scheduled-broadcast poll loop.
//
// All durations are Go duration strings (e.g. "10s", "1m").
type SchedulerConfig struct {
	// PollInterval is how often the job store is polled for due jobs.
	// Default "60s".
	PollInterval string `json:"poll_interval,omitempty"`

	// StartupDelay is the delay before the first poll after process start,
	// so startup finishes before any pending broadcast fires. Default "10s".
	StartupDelay string `json:"startup_delay,omitempty"`
}

// ConfirmConfig controls the confirmation gate.
type ConfirmConfig struct {
	// TTL is how long a pending confirmation stays confirmable. Default "10m".
	TTL string `json:"ttl,omitempty"`
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if len(c.Telegram.AdminUserIDs) == 0 {
		return errors.New("telegram.admin_user_ids must not be empty")
	}
	if c.Telegram.TargetGroupID == 0 {
		return errors.New("telegram.target_group_id is required")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path is required")
	}
	if c.Broadcast.RatePerSec < 0 {
		return fmt.Errorf("broadcast.rate_per_sec must be >= 0, got %d", c.Broadcast.RatePerSec)
	}
	for _, f := range []struct{ path, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"scheduler.poll_interval", c.Scheduler.PollInterval},
		{"scheduler.startup_delay", c.Scheduler.StartupDelay},
		{"confirm.ttl", c.Confirm.TTL},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	return nil
}
