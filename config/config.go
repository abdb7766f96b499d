// Package config loads and validates the bot configuration from the
// environment, with an optional .env file for local runs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Discord DiscordConfig
	YouTube YouTubeConfig
	Audio   AudioConfig
	Player  PlayerConfig
	Logging LoggingConfig
}

// DiscordConfig holds the chat-transport settings.
type DiscordConfig struct {
	Token         string `env:"BOT_TOKEN"`
	CommandPrefix string `env:"COMMAND_PREFIX" envDefault:"!"`
}

// YouTubeConfig holds the media-resolution settings.
type YouTubeConfig struct {
	APIKey           string        `env:"YT_TOKEN"`
	MaxSearchResults int64         `env:"MAX_SEARCH_RESULTS" envDefault:"5"`
	RequestTimeout   time.Duration `env:"YT_REQUEST_TIMEOUT" envDefault:"30s"`
}

// AudioConfig holds the dca encoder settings.
type AudioConfig struct {
	Bitrate          int  `env:"AUDIO_BITRATE" envDefault:"128"`
	Volume           int  `env:"AUDIO_VOLUME" envDefault:"256"`
	FrameRate        int  `env:"AUDIO_FRAME_RATE" envDefault:"48000"`
	FrameDuration    int  `env:"AUDIO_FRAME_DURATION" envDefault:"20"`
	CompressionLevel int  `env:"AUDIO_COMPRESSION_LEVEL" envDefault:"10"`
	PacketLoss       int  `env:"AUDIO_PACKET_LOSS" envDefault:"1"`
	BufferedFrames   int  `env:"AUDIO_BUFFERED_FRAMES" envDefault:"200"`
	EnableVBR        bool `env:"AUDIO_VBR" envDefault:"true"`
}

// PlayerConfig holds the playback policy values.
type PlayerConfig struct {
	IdleTimeout      time.Duration `env:"IDLE_TIMEOUT" envDefault:"600s"`
	MaxPlaylistItems int           `env:"MAX_PLAYLIST_ITEMS" envDefault:"100"`
	DinksterSound    string        `env:"DINKSTER_SOUND" envDefault:"sounds/dinkster.ogg"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL" envDefault:"info"`
	File       string `env:"LOG_FILE" envDefault:"logs/melodeon.log"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"30"`
	Console    bool   `env:"LOG_CONSOLE" envDefault:"true"`
	JSON       bool   `env:"LOG_JSON" envDefault:"false"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the loaded configuration and aggregates every problem into
// one error.
func (c *Config) Validate() error {
	var problems []string

	if c.Discord.Token == "" {
		problems = append(problems, "Discord token (BOT_TOKEN) is required")
	}
	if c.YouTube.APIKey == "" {
		problems = append(problems, "YouTube API key (YT_TOKEN) is required")
	}
	if c.Discord.CommandPrefix == "" {
		problems = append(problems, "command prefix must not be empty")
	}
	if c.Audio.Bitrate < 32 || c.Audio.Bitrate > 320 {
		problems = append(problems, "audio bitrate must be between 32 and 320 kbps")
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1024 {
		problems = append(problems, "audio volume must be between 0 and 1024")
	}
	if c.Player.IdleTimeout <= 0 {
		problems = append(problems, "idle timeout must be greater than 0")
	}
	if c.Player.MaxPlaylistItems <= 0 {
		problems = append(problems, "max playlist items must be greater than 0")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(problems, "; "))
	}
	return nil
}

// RedactedToken returns a loggable version of the Discord token.
func (c *Config) RedactedToken() string {
	if len(c.Discord.Token) < 8 {
		return "***"
	}
	return c.Discord.Token[:8] + "***"
}
