package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperengineering/standup/internal/config"
)

// syncBuffer lets the worker goroutine and the test share log output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) entries(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(b.buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Fatalf("log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestStartWorker_StopsOnCancelAndIsAwaited(t *testing.T) {
	logs := &syncBuffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(logs, nil)))
	defer slog.SetDefault(prev)

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	var cleanedUp atomic.Bool
	startWorker(ctx, &wg, "plan-lock", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		cleanedUp.Store(true)
	})

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("worker function was not called")
	}

	cancel()
	wg.Wait()
	if !cleanedUp.Load() {
		t.Fatal("wg.Wait() returned before the worker finished")
	}

	var msgs []string
	for _, e := range logs.entries(t) {
		if e["worker"] != "plan-lock" {
			t.Errorf("log entry %v, want worker=plan-lock", e)
		}
		msgs = append(msgs, e["msg"].(string))
	}
	if len(msgs) != 2 || msgs[0] != "worker started" || msgs[1] != "worker stopped" {
		t.Errorf("messages = %v, want [worker started, worker stopped]", msgs)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, config.LogConfig{Level: "info", Format: "json"}).Info("hello", "component", "test")
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("json format produced non-JSON output %q: %v", buf.String(), err)
	}
	if entry["component"] != "test" {
		t.Errorf("component = %v, want test", entry["component"])
	}

	buf.Reset()
	newLogger(&buf, config.LogConfig{Level: "info", Format: "text"}).Info("hello")
	if !bytes.Contains(buf.Bytes(), []byte("msg=hello")) {
		t.Errorf("text output = %q, want msg=hello", buf.String())
	}

	buf.Reset()
	newLogger(&buf, config.LogConfig{Level: "warn", Format: "json"}).Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Planning: config.PlanningConfig{
			Timezone:              "America/New_York",
			MaxGoals:              6,
			RescheduleHorizonDays: 14,
			LockAfterDays:         3,
		},
		Scoring: config.ScoringConfig{
			AwarenessPoints: 2,
			ClosurePoints:   7,
			AutoClosure:     false,
		},
	}

	s, err := settingsFromConfig(cfg)
	if err != nil {
		t.Fatalf("settingsFromConfig() error = %v", err)
	}
	if s.Location.String() != "America/New_York" {
		t.Errorf("Location = %s, want America/New_York", s.Location)
	}
	if s.MaxGoals != 6 || s.RescheduleHorizonDays != 14 || s.LockAfterDays != 3 {
		t.Errorf("planning = (%d, %d, %d), want (6, 14, 3)", s.MaxGoals, s.RescheduleHorizonDays, s.LockAfterDays)
	}
	if s.AwarenessPoints != 2 || s.ClosurePoints != 7 || s.AutoClosure {
		t.Errorf("scoring = (%d, %d, %t), want (2, 7, false)", s.AwarenessPoints, s.ClosurePoints, s.AutoClosure)
	}

	cfg.Planning.Timezone = "Nowhere/Land"
	if _, err := settingsFromConfig(cfg); err == nil {
		t.Error("settingsFromConfig() error = nil for invalid timezone")
	}
}
