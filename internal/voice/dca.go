package voice

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jonas747/dca"
	"github.com/rs/zerolog"
)

// EncodeConfig carries the dca encoder knobs exposed through configuration.
type EncodeConfig struct {
	Bitrate          int
	Volume           int
	FrameRate        int
	FrameDuration    int
	CompressionLevel int
	PacketLoss       int
	BufferedFrames   int
	VBR              bool
}

// DiscordDialer joins guild voice channels over a discordgo session.
type DiscordDialer struct {
	session *discordgo.Session
	encode  EncodeConfig
	log     zerolog.Logger
}

func NewDiscordDialer(session *discordgo.Session, encode EncodeConfig, log zerolog.Logger) *DiscordDialer {
	return &DiscordDialer{session: session, encode: encode, log: log}
}

// Dial joins the channel self-deafened and waits for the connection to be
// ready before handing it out.
func (d *DiscordDialer) Dial(guildID, channelID string) (Conn, error) {
	vc, err := d.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("voice join: %w", err)
	}
	for i := 0; i < 50 && !vc.Ready; i++ {
		time.Sleep(100 * time.Millisecond)
	}
	if !vc.Ready {
		_ = vc.Disconnect()
		return nil, errors.New("voice connection never became ready")
	}
	return &discordConn{
		vc:        vc,
		channelID: channelID,
		encode:    d.encode,
		log:       d.log.With().Str("guild", guildID).Logger(),
	}, nil
}

type discordConn struct {
	vc        *discordgo.VoiceConnection
	channelID string
	encode    EncodeConfig
	log       zerolog.Logger
}

func (c *discordConn) encodeOptions() *dca.EncodeOptions {
	opts := dca.StdEncodeOptions
	o := *opts
	if c.encode.Bitrate > 0 {
		o.Bitrate = c.encode.Bitrate
	}
	if c.encode.Volume > 0 {
		o.Volume = c.encode.Volume
	}
	if c.encode.FrameRate > 0 {
		o.FrameRate = c.encode.FrameRate
	}
	if c.encode.FrameDuration > 0 {
		o.FrameDuration = c.encode.FrameDuration
	}
	if c.encode.CompressionLevel > 0 {
		o.CompressionLevel = c.encode.CompressionLevel
	}
	if c.encode.PacketLoss > 0 {
		o.PacketLoss = c.encode.PacketLoss
	}
	if c.encode.BufferedFrames > 0 {
		o.BufferedFrames = c.encode.BufferedFrames
	}
	o.VBR = c.encode.VBR
	o.RawOutput = true
	return &o
}

func (c *discordConn) Play(src Source, onDone func(err error)) (Stream, error) {
	encoder, err := dca.EncodeFile(src.URL, c.encodeOptions())
	if err != nil {
		return nil, fmt.Errorf("encoding %q: %w", src.Title, err)
	}
	if err := c.vc.Speaking(true); err != nil {
		encoder.Cleanup()
		return nil, fmt.Errorf("setting speaking: %w", err)
	}

	done := make(chan error)
	streaming := dca.NewStream(encoder, c.vc, done)
	s := &dcaStream{encoder: encoder, streaming: streaming, vc: c.vc}

	go func() {
		err := <-done
		s.mu.Lock()
		stopped := s.stopped
		s.mu.Unlock()
		encoder.Cleanup()
		_ = c.vc.Speaking(false)
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if stopped && errors.Is(err, dca.ErrVoiceConnClosed) {
			err = nil
		}
		onDone(err)
	}()
	return s, nil
}

func (c *discordConn) ChannelID() string { return c.channelID }

func (c *discordConn) Move(channelID string) error {
	if err := c.vc.ChangeChannel(channelID, false, true); err != nil {
		return err
	}
	c.channelID = channelID
	return nil
}

func (c *discordConn) Disconnect() error {
	return c.vc.Disconnect()
}

type dcaStream struct {
	encoder   *dca.EncodeSession
	streaming *dca.StreamingSession
	vc        *discordgo.VoiceConnection

	mu      sync.Mutex
	stopped bool
}

func (s *dcaStream) Pause()  { s.streaming.SetPaused(true) }
func (s *dcaStream) Resume() { s.streaming.SetPaused(false) }

// Stop tears the encoder down, which terminates the streaming session and
// fires the done channel.
func (s *dcaStream) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.encoder.Cleanup()
}
