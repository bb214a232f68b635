// Package config loads runtime settings from the environment, with an
// optional .env file in the working directory.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Addr string

	AudioBackend  string
	AudioFile     string
	Device        string
	FramesPerRead int
	SampleRate    int
	QueueSize     int

	SourceLang string
	TargetLang string
	Route      string
	PivotLang  string

	IdleTimeout  time.Duration
	MinChars     int
	SourceMax    int
	TargetMax    int
	PollInterval time.Duration
	StopTimeout  time.Duration

	ModelPath         string
	WhisperThreads    int
	WorkWindowSamples int
	Silence           time.Duration
	MaxUtterance      time.Duration
	SilenceRMS        float64

	TranslationBackend    string
	TranslationBaseURL    string
	TranslationTimeoutSec int

	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	OpenAIPairs   string

	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string
	MQTTTopic    string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "0", "false", "no", "off":
			return false
		default:
			return true
		}
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", v).Msg("config: not an integer, using default")
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Warn().Str("key", key).Str("value", v).Msg("config: not a number, using default")
	}
	return def
}

// getenvDuration accepts Go durations ("750ms") or plain seconds ("1.5").
func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
		log.Warn().Str("key", key).Str("value", v).Msg("config: not a duration, using default")
	}
	return def
}

// Load reads .env if present and then the process environment. Variables
// already set in the environment win over .env.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("config: could not read .env")
	}
	return FromEnv()
}

// FromEnv reads the process environment only.
func FromEnv() Config {
	return Config{
		Addr: getenv("LIVESUB_ADDR", ":8080"),

		AudioBackend:  strings.ToLower(getenv("LIVESUB_AUDIO_BACKEND", "system")),
		AudioFile:     getenv("LIVESUB_AUDIO_FILE", ""),
		Device:        getenv("LIVESUB_DEVICE", "auto"),
		FramesPerRead: getenvInt("LIVESUB_FRAMES_PER_READ", 1024),
		SampleRate:    getenvInt("LIVESUB_SAMPLE_RATE", 16000),
		QueueSize:     getenvInt("LIVESUB_QUEUE_SIZE", 256),

		SourceLang: getenv("LIVESUB_SOURCE_LANG", "ja"),
		TargetLang: getenv("LIVESUB_TARGET_LANG", "zh"),
		Route:      getenv("LIVESUB_ROUTE", "auto"),
		PivotLang:  getenv("LIVESUB_PIVOT_LANG", "en"),

		IdleTimeout:  getenvDuration("LIVESUB_IDLE_TIMEOUT", time.Second),
		MinChars:     getenvInt("LIVESUB_MIN_CHARS", 5),
		SourceMax:    getenvInt("LIVESUB_SOURCE_MAX", 72),
		TargetMax:    getenvInt("LIVESUB_TARGET_MAX", 100),
		PollInterval: getenvDuration("LIVESUB_POLL_INTERVAL", 200*time.Millisecond),
		StopTimeout:  getenvDuration("LIVESUB_STOP_TIMEOUT", 3*time.Second),

		ModelPath:         getenv("WHISPER_MODEL_PATH", "./models/ggml-base.bin"),
		WhisperThreads:    getenvInt("WHISPER_THREADS", 0),
		WorkWindowSamples: getenvInt("WHISPER_WORK_WINDOW_SAMPLES", 8000),
		Silence:           getenvDuration("WHISPER_SILENCE", 600*time.Millisecond),
		MaxUtterance:      getenvDuration("WHISPER_MAX_UTTERANCE", 15*time.Second),
		SilenceRMS:        getenvFloat("WHISPER_SILENCE_RMS", 300),

		TranslationBackend:    strings.ToLower(getenv("TRANSLATION_BACKEND", "libretranslate")),
		TranslationBaseURL:    getenv("TRANSLATION_BASE_URL", "https://libretranslate.obiente.cloud"),
		TranslationTimeoutSec: getenvInt("TRANSLATION_TIMEOUT", 8),

		OpenAIKey:     getenv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getenv("OPENAI_BASE_URL", ""),
		OpenAIModel:   getenv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIPairs:   getenv("OPENAI_PAIRS", ""),

		MQTTBroker:   getenv("MQTT_BROKER", ""),
		MQTTClientID: getenv("MQTT_CLIENT_ID", "livesub"),
		MQTTUsername: getenv("MQTT_USERNAME", ""),
		MQTTPassword: getenv("MQTT_PASSWORD", ""),
		MQTTTopic:    getenv("MQTT_TOPIC", "livesub/captions"),
	}
}

// JSONLogs reports whether logs stay JSON. LOG_FORMAT=console switches to
// human-readable output.
func JSONLogs() bool {
	return !strings.EqualFold(getenv("LOG_FORMAT", "json"), "console")
}

// Verbose is LIVESUB_VERBOSE, used to raise the default log level to debug.
func Verbose() bool { return getenvBool("LIVESUB_VERBOSE", false) }
