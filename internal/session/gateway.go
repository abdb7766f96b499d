package session

import (
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// Gateway is the slice of the chat transport the sessions need. Fakes stand
// in for it in tests.
type Gateway interface {
	Send(channelID, text string)
	UserVoiceChannel(guildID, userID string) (string, error)
	SelfID() string
}

// DiscordGateway implements Gateway over a discordgo session.
type DiscordGateway struct {
	session *discordgo.Session
	log     zerolog.Logger
}

func NewDiscordGateway(session *discordgo.Session, log zerolog.Logger) *DiscordGateway {
	return &DiscordGateway{session: session, log: log}
}

func (g *DiscordGateway) Send(channelID, text string) {
	if _, err := g.session.ChannelMessageSend(channelID, text); err != nil {
		g.log.Warn().Err(err).Str("channel", channelID).Msg("sending message")
	}
}

// UserVoiceChannel looks the user's voice state up in the gateway state
// cache. An empty channel id means the user is not in voice.
func (g *DiscordGateway) UserVoiceChannel(guildID, userID string) (string, error) {
	vs, err := g.session.State.VoiceState(guildID, userID)
	if err != nil {
		if err == discordgo.ErrStateNotFound {
			return "", nil
		}
		return "", err
	}
	if vs == nil {
		return "", nil
	}
	return vs.ChannelID, nil
}

func (g *DiscordGateway) SelfID() string {
	if g.session.State.User != nil {
		return g.session.State.User.ID
	}
	return ""
}
