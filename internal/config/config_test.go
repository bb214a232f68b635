package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	for _, k := range []string{"LIVESUB_ADDR", "LIVESUB_QUEUE_SIZE", "LIVESUB_IDLE_TIMEOUT", "LIVESUB_ROUTE", "WHISPER_SILENCE_RMS"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	if c.Addr != ":8080" || c.QueueSize != 256 || c.IdleTimeout != time.Second || c.Route != "auto" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.SourceMax != 72 || c.TargetMax != 100 || c.MinChars != 5 {
		t.Fatalf("unexpected limits: %+v", c)
	}
	if c.SilenceRMS != 300 {
		t.Fatalf("SilenceRMS = %v", c.SilenceRMS)
	}
}

func TestOverrides(t *testing.T) {
	t.Setenv("LIVESUB_IDLE_TIMEOUT", "1.5")
	t.Setenv("LIVESUB_STOP_TIMEOUT", "500ms")
	t.Setenv("LIVESUB_QUEUE_SIZE", "not-a-number")
	t.Setenv("LIVESUB_AUDIO_BACKEND", "FILE")
	t.Setenv("TRANSLATION_BACKEND", "OpenAI")
	c := FromEnv()
	if c.IdleTimeout != 1500*time.Millisecond {
		t.Fatalf("IdleTimeout = %v", c.IdleTimeout)
	}
	if c.StopTimeout != 500*time.Millisecond {
		t.Fatalf("StopTimeout = %v", c.StopTimeout)
	}
	if c.QueueSize != 256 {
		t.Fatalf("bad integer should fall back, got %d", c.QueueSize)
	}
	if c.AudioBackend != "file" || c.TranslationBackend != "openai" {
		t.Fatalf("backends not normalized: %q %q", c.AudioBackend, c.TranslationBackend)
	}
}

func TestGetenvBool(t *testing.T) {
	t.Setenv("X_FLAG", "Off")
	if getenvBool("X_FLAG", true) {
		t.Fatal("Off should be false")
	}
	t.Setenv("X_FLAG", "yes")
	if !getenvBool("X_FLAG", false) {
		t.Fatal("yes should be true")
	}
}

func TestLogFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "")
	if !JSONLogs() {
		t.Fatal("JSON should be the default")
	}
	t.Setenv("LOG_FORMAT", "Console")
	if JSONLogs() {
		t.Fatal("LOG_FORMAT=console should switch to console output")
	}
	t.Setenv("LOG_FORMAT", "json")
	if !JSONLogs() {
		t.Fatal("LOG_FORMAT=json should stay JSON")
	}
}
