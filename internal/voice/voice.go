// Package voice abstracts the guild voice transport so playback logic can be
// driven against fakes. The production implementation joins through discordgo
// and streams through dca.
package voice

// Source is one playable audio input, either a resolved stream URL or a
// local file path.
type Source struct {
	URL   string
	Title string
}

// Stream is a single in-flight playback. All methods are safe to call once;
// Stop after the stream already ended is a no-op.
type Stream interface {
	Pause()
	Resume()
	Stop()
}

// Conn is a live voice connection to one channel.
type Conn interface {
	// Play starts streaming src. onDone fires exactly once when the stream
	// ends for any reason, with nil for a clean end of input.
	Play(src Source, onDone func(err error)) (Stream, error)
	ChannelID() string
	Move(channelID string) error
	Disconnect() error
}

// Dialer establishes voice connections.
type Dialer interface {
	Dial(guildID, channelID string) (Conn, error)
}
