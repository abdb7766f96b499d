package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"melodeon/internal/command"
	"melodeon/pkg/metrics"
)

// Message is one inbound chat message, already flattened out of the
// transport's event type.
type Message struct {
	GuildID   string
	ChannelID string
	MessageID string
	AuthorID  string
	Content   string
}

// Factory builds a session for a guild the first time a command arrives
// from it.
type Factory func(guildID string) *Session

// Dispatcher routes messages to lazily created guild sessions. It is the
// concurrency boundary: events arrive on transport goroutines and everything
// past Resolve runs under the target guild's guard (via the command table's
// guard wrapping).
type Dispatcher struct {
	gw         Gateway
	newSession Factory
	prefix     string
	metrics    *metrics.Metrics
	log        zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	limiters map[string]*rate.Limiter

	userRate  rate.Limit
	userBurst int
}

func NewDispatcher(gw Gateway, newSession Factory, prefix string, m *metrics.Metrics, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		gw:         gw,
		newSession: newSession,
		prefix:     prefix,
		metrics:    m,
		log:        log,
		sessions:   make(map[string]*Session),
		limiters:   make(map[string]*rate.Limiter),
		userRate:   rate.Every(time.Second),
		userBurst:  5,
	}
}

// session returns the guild's session, creating it on first use.
func (d *Dispatcher) session(guildID string) *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.sessions[guildID]; ok {
		return s
	}
	s := d.newSession(guildID)
	d.sessions[guildID] = s
	return s
}

// limiter returns the per-user command limiter, creating it on first use.
func (d *Dispatcher) limiter(userID string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l, ok := d.limiters[userID]; ok {
		return l
	}
	l := rate.NewLimiter(d.userRate, d.userBurst)
	d.limiters[userID] = l
	return l
}

// HandleMessageCreate adapts discordgo events onto Dispatch.
func (d *Dispatcher) HandleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	d.Dispatch(Message{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		AuthorID:  m.Author.ID,
		Content:   m.Content,
	})
}

// Dispatch routes one message. Messages from the bot itself, empty messages
// and messages without the command prefix are dropped without a reply.
func (d *Dispatcher) Dispatch(msg Message) {
	if msg.AuthorID == "" || msg.AuthorID == d.gw.SelfID() {
		return
	}
	content := strings.TrimSpace(msg.Content)
	if content == "" || !strings.HasPrefix(content, d.prefix) {
		return
	}
	if msg.GuildID == "" {
		return
	}

	if !d.limiter(msg.AuthorID).Allow() {
		d.log.Debug().Str("user", msg.AuthorID).Msg("rate limited")
		return
	}

	sess := d.session(msg.GuildID)
	resolved, err := sess.Resolve(content)
	if err != nil {
		if errors.Is(err, command.ErrMissingPrefix) {
			return
		}
		d.handleError(err, msg.ChannelID)
		return
	}

	voiceChannelID, err := d.gw.UserVoiceChannel(msg.GuildID, msg.AuthorID)
	if err != nil {
		d.log.Warn().Err(err).Str("user", msg.AuthorID).Msg("voice state lookup")
	}

	req := command.Request{
		GuildID:        msg.GuildID,
		ChannelID:      msg.ChannelID,
		MessageID:      msg.MessageID,
		AuthorID:       msg.AuthorID,
		VoiceChannelID: voiceChannelID,
		Args:           resolved.Args,
	}

	start := time.Now()
	runErr := d.run(resolved, req)
	if d.metrics != nil {
		d.metrics.RecordCommand(resolved.Name, runErr == nil, time.Since(start))
	}
	if runErr != nil {
		d.handleError(runErr, msg.ChannelID)
	}
}

// run executes the handler with a panic fence so one bad command cannot
// take the event loop down.
func (d *Dispatcher) run(resolved *command.Resolved, req command.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("command", resolved.Name).Msg("handler panicked")
			err = &BotError{Kind: KindInternal, Message: "handler panicked", UserMsg: genericFailure}
		}
	}()
	return resolved.Run(req)
}

func (d *Dispatcher) handleError(err error, channelID string) {
	NewErrorHandler(d.gw, d.log).Handle(err, channelID)
}

// Shutdown disconnects every live guild session.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	sessions := make([]*Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		sessions = append(sessions, s)
	}
	d.mu.Unlock()

	for _, s := range sessions {
		s.Shutdown()
	}
}
