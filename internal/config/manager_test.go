package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const validYAML = `
telegram:
  token: "123:abc"
  admin_user_ids: [111, 222]
  target_group_id: -1001234567890
logging:
  level: debug
  console: true
storage:
  path: ./data/herald.db
broadcast:
  rate_per_sec: 10
scheduler:
  poll_interval: 30s
  startup_delay: 5s
confirm:
  ttl: 5m
`

func writeConfig(t *testing.T, content string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return NewManager(path)
}

func TestLoadValidYAML(t *testing.T) {
	m := writeConfig(t, validYAML)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("token: got %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.AdminUserIDs) != 2 || cfg.Telegram.AdminUserIDs[1] != 222 {
		t.Errorf("admin ids: got %v", cfg.Telegram.AdminUserIDs)
	}
	if cfg.Telegram.TargetGroupID != -1001234567890 {
		t.Errorf("group id: got %d", cfg.Telegram.TargetGroupID)
	}
	if cfg.Broadcast.RatePerSec != 10 {
		t.Errorf("rate: got %d", cfg.Broadcast.RatePerSec)
	}
	if cfg.Scheduler.PollInterval != "30s" {
		t.Errorf("poll interval: got %q", cfg.Scheduler.PollInterval)
	}
	if got := m.Get(); got != cfg {
		t.Error("Get must return the committed config")
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	m := writeConfig(t, validYAML+"\nmystery_field: true\n")
	if _, err := m.Load(); err == nil {
		t.Fatal("want error for unknown top-level field")
	}
}

func TestLoadRejectsMissingToken(t *testing.T) {
	m := writeConfig(t, strings.Replace(validYAML, `token: "123:abc"`, `token: ""`, 1))
	_, err := m.Load()
	if err == nil || !strings.Contains(err.Error(), "telegram.token") {
		t.Fatalf("want telegram.token validation error, got %v", err)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	m := writeConfig(t, strings.Replace(validYAML, "ttl: 5m", "ttl: soon", 1))
	_, err := m.Load()
	if err == nil || !strings.Contains(err.Error(), "confirm.ttl") {
		t.Fatalf("want confirm.ttl validation error, got %v", err)
	}
}

func TestParseDurationField(t *testing.T) {
	d, err := ParseDurationField("scheduler.poll_interval", "")
	if err != nil || d != 0 {
		t.Fatalf("empty field must parse to zero, got %v (%v)", d, err)
	}
	d, err = ParseDurationField("scheduler.poll_interval", "90s")
	if err != nil || d != 90*time.Second {
		t.Fatalf("want 90s, got %v (%v)", d, err)
	}
	if _, err := ParseDurationField("scheduler.poll_interval", "-5s"); err == nil {
		t.Fatal("negative durations must be rejected")
	}
}

// syncBuffer is a log sink safe for the Watch goroutine to write while the
// test polls it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchLogsRejectedReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var sink syncBuffer
	m := NewManager(path)
	m.SetLogger(zerolog.New(&sink))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx, func(*Config) {})
	}()

	// Break the file; the watcher must log the rejection, not swallow it.
	// Rewritten periodically in case the first write lands before the
	// watch is registered; writes are spaced wider than the settle timer.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := os.WriteFile(path, []byte("telegram: [\n"), 0o600); err != nil {
			t.Fatalf("rewrite config: %v", err)
		}
		for i := 0; i < 25; i++ {
			if strings.Contains(sink.String(), "config reload rejected") {
				cancel()
				<-done
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
	}
	t.Fatal("rejected reload was never logged")
}
