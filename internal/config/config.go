package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration for the recording pipeline.
type Config struct {
	Link    LinkConfig
	Audio   AudioConfig
	Session SessionConfig
	Store   StoreConfig
	Rules   RulesConfig
	Log     LogConfig
}

type LinkConfig struct {
	URL      string
	Language string
}

type AudioConfig struct {
	FFmpegCommand string
	SourceKind    string
	InputDevice   string
	DesktopSource string
	SampleRate    int
}

type SessionConfig struct {
	ChunkThreshold       int
	TranscriptTimestamps bool
}

type StoreConfig struct {
	Dir string
}

type RulesConfig struct {
	Path           string
	IterationLimit int
}

type LogConfig struct {
	Level  string
	Format string
}

// Load resolves configuration from a .env file (if present), environment
// variables and sensible defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	cfg := Config{
		Link: LinkConfig{
			URL:      envOrDefault("VOICENOTES_LINK_URL", "ws://localhost:8765"),
			Language: strings.TrimSpace(os.Getenv("VOICENOTES_LANGUAGE")),
		},
		Audio: AudioConfig{
			FFmpegCommand: envOrDefault("VOICENOTES_FFMPEG_COMMAND", "ffmpeg"),
			SourceKind:    envOrDefault("VOICENOTES_SOURCE_KIND", "microphone"),
			InputDevice:   envOrDefault("VOICENOTES_INPUT_DEVICE", "default"),
			DesktopSource: envOrDefault("VOICENOTES_DESKTOP_SOURCE", "default.monitor"),
			SampleRate:    envOrDefaultInt("VOICENOTES_SAMPLE_RATE", 44100),
		},
		Session: SessionConfig{
			ChunkThreshold:       envOrDefaultInt("VOICENOTES_CHUNK_THRESHOLD", 64*1024),
			TranscriptTimestamps: envOrDefaultBool("VOICENOTES_TRANSCRIPT_TIMESTAMPS", true),
		},
		Store: StoreConfig{
			Dir: envOrDefault("VOICENOTES_NOTES_DIR", filepath.Join(home, "VoiceNotes")),
		},
		Rules: RulesConfig{
			Path:           strings.TrimSpace(os.Getenv("VOICENOTES_RULES_FILE")),
			IterationLimit: envOrDefaultInt("VOICENOTES_RULE_ITERATION_LIMIT", 30),
		},
		Log: LogConfig{
			Level:  envOrDefault("VOICENOTES_LOG_LEVEL", "info"),
			Format: envOrDefault("VOICENOTES_LOG_FORMAT", "json"),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 44100
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
