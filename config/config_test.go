package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "discord-token-abcdef")
	t.Setenv("YT_TOKEN", "youtube-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Discord.CommandPrefix != "!" {
		t.Errorf("prefix: %q", cfg.Discord.CommandPrefix)
	}
	if cfg.Player.IdleTimeout != 600*time.Second {
		t.Errorf("idle timeout: %v", cfg.Player.IdleTimeout)
	}
	if cfg.Player.MaxPlaylistItems != 100 {
		t.Errorf("max playlist items: %d", cfg.Player.MaxPlaylistItems)
	}
	if cfg.Audio.Bitrate != 128 {
		t.Errorf("bitrate: %d", cfg.Audio.Bitrate)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("COMMAND_PREFIX", "?")
	t.Setenv("IDLE_TIMEOUT", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Discord.CommandPrefix != "?" {
		t.Errorf("prefix: %q", cfg.Discord.CommandPrefix)
	}
	if cfg.Player.IdleTimeout != 90*time.Second {
		t.Errorf("idle timeout: %v", cfg.Player.IdleTimeout)
	}
}

func TestValidateAggregatesProblems(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("YT_TOKEN", "")
	t.Setenv("AUDIO_BITRATE", "9000")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, want := range []string{"BOT_TOKEN", "YT_TOKEN", "bitrate"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err.Error(), want)
		}
	}
}

func TestRedactedToken(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.Discord.Token = "abc"
	if got := cfg.RedactedToken(); got != "***" {
		t.Errorf("short token: %q", got)
	}
	cfg.Discord.Token = "abcdefghijklmnop"
	if got := cfg.RedactedToken(); got != "abcdefgh***" {
		t.Errorf("long token: %q", got)
	}
}
