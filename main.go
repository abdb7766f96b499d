package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"melodeon/config"
	"melodeon/internal/joke"
	"melodeon/internal/media"
	"melodeon/internal/session"
	"melodeon/internal/voice"
	"melodeon/pkg/dependency"
	"melodeon/pkg/logger"
	"melodeon/pkg/metrics"
)

// Application holds the wired-up bot.
type Application struct {
	cfg        *config.Config
	log        zerolog.Logger
	metrics    *metrics.Metrics
	discord    *discordgo.Session
	dispatcher *session.Dispatcher
	cancel     context.CancelFunc
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	appLog, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Console:    cfg.Logging.Console,
		JSON:       cfg.Logging.JSON,
	})
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}

	appLog.Info().
		Str("token", cfg.RedactedToken()).
		Str("prefix", cfg.Discord.CommandPrefix).
		Dur("idle_timeout", cfg.Player.IdleTimeout).
		Msg("starting up")

	checker := dependency.NewChecker(5 * time.Second)
	if err := checker.Verify(ctx, dependency.Defaults()); err != nil {
		appLog.Fatal().Err(err).Msg("dependency check failed")
	}

	app := &Application{
		cfg:     cfg,
		log:     appLog,
		metrics: metrics.New(),
		cancel:  cancel,
	}
	if err := app.initialize(ctx); err != nil {
		appLog.Fatal().Err(err).Msg("initialization failed")
	}

	if err := app.discord.Open(); err != nil {
		appLog.Fatal().Err(err).Msg("opening gateway connection")
	}
	appLog.Info().Msg("connected, waiting for commands")

	app.waitForShutdown()
	app.shutdown()
}

func (app *Application) initialize(ctx context.Context) error {
	discord, err := discordgo.New("Bot " + app.cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("creating gateway session: %w", err)
	}
	discord.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent
	app.discord = discord

	ytService, err := youtube.NewService(ctx, option.WithAPIKey(app.cfg.YouTube.APIKey))
	if err != nil {
		return fmt.Errorf("creating youtube service: %w", err)
	}

	resolver := media.NewYouTube(ytService, media.Options{
		MaxSearchResults: app.cfg.YouTube.MaxSearchResults,
		RequestTimeout:   app.cfg.YouTube.RequestTimeout,
	}, logger.Component(app.log, "media"))
	jokes := joke.NewClient()
	gw := session.NewDiscordGateway(discord, logger.Component(app.log, "gateway"))
	dialer := voice.NewDiscordDialer(discord, voice.EncodeConfig{
		Bitrate:          app.cfg.Audio.Bitrate,
		Volume:           app.cfg.Audio.Volume,
		FrameRate:        app.cfg.Audio.FrameRate,
		FrameDuration:    app.cfg.Audio.FrameDuration,
		CompressionLevel: app.cfg.Audio.CompressionLevel,
		PacketLoss:       app.cfg.Audio.PacketLoss,
		BufferedFrames:   app.cfg.Audio.BufferedFrames,
		VBR:              app.cfg.Audio.EnableVBR,
	}, logger.Component(app.log, "voice"))

	opts := session.Options{
		Prefix:           app.cfg.Discord.CommandPrefix,
		IdleTimeout:      app.cfg.Player.IdleTimeout,
		MaxPlaylistItems: app.cfg.Player.MaxPlaylistItems,
		DinksterSound:    app.cfg.Player.DinksterSound,
	}
	sessionLog := logger.Component(app.log, "session")
	factory := func(guildID string) *session.Session {
		return session.New(guildID, gw, dialer, resolver, jokes, opts, sessionLog)
	}
	app.dispatcher = session.NewDispatcher(gw, factory, opts.Prefix, app.metrics, logger.Component(app.log, "dispatch"))

	discord.AddHandler(app.handleReady)
	discord.AddHandler(app.dispatcher.HandleMessageCreate)
	return nil
}

func (app *Application) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	app.log.Info().
		Str("username", r.User.Username).
		Int("guilds", len(r.Guilds)).
		Msg("gateway ready")

	err := s.UpdateStatusComplex(discordgo.UpdateStatusData{
		Activities: []*discordgo.Activity{{
			Name: fmt.Sprintf("music | %shelp", app.cfg.Discord.CommandPrefix),
			Type: discordgo.ActivityTypeListening,
		}},
		Status: "online",
	})
	if err != nil {
		app.log.Warn().Err(err).Msg("setting status")
	}
}

func (app *Application) waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	app.log.Info().Str("signal", s.String()).Msg("shutting down")
}

func (app *Application) shutdown() {
	app.cancel()
	app.dispatcher.Shutdown()
	if err := app.discord.Close(); err != nil {
		app.log.Warn().Err(err).Msg("closing gateway connection")
	}
	for _, name := range app.metrics.CommandNames() {
		stat := app.metrics.Command(name)
		app.log.Info().
			Str("command", name).
			Int64("count", stat.Count).
			Int64("failures", stat.Failures).
			Msg("command stats")
	}
	app.log.Info().Dur("uptime", app.metrics.Uptime()).Msg("goodbye")
}
