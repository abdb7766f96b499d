package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"melodeon/internal/command"
	"melodeon/internal/joke"
	"melodeon/internal/media"
	"melodeon/internal/player"
	"melodeon/internal/voice"
)

// queueChunkLines caps how many queue lines go into one message.
const queueChunkLines = 15

// Options carries the per-session knobs from configuration.
type Options struct {
	Prefix           string
	IdleTimeout      time.Duration
	MaxPlaylistItems int
	DinksterSound    string
}

// Session owns one guild: its command table, its playback controller and
// the single guard everything mutating shares.
type Session struct {
	guildID string
	mu      sync.Mutex
	table   *command.Table
	ctrl    *player.Controller
	gw      Gateway
	media   media.Resolver
	jokes   *joke.Client
	opts    Options
	log     zerolog.Logger

	// Playlist import bookkeeping, guarded by mu.
	importCancel context.CancelFunc

	// Injection point for tests.
	sleep func(time.Duration)
}

// New wires a session for one guild and registers its command surface.
func New(guildID string, gw Gateway, dialer voice.Dialer, resolver media.Resolver, jokes *joke.Client, opts Options, log zerolog.Logger) *Session {
	s := &Session{
		guildID: guildID,
		table:   command.NewTable(opts.Prefix),
		gw:      gw,
		media:   resolver,
		jokes:   jokes,
		opts:    opts,
		log:     log.With().Str("guild", guildID).Logger(),
		sleep:   time.Sleep,
	}
	s.ctrl = player.NewController(&s.mu, guildID, dialer, resolver, s, opts.IdleTimeout, s.log)
	s.register()
	return s
}

// Notify implements player.Notifier, routing playback notices back through
// the chat gateway.
func (s *Session) Notify(channelID, text string) {
	s.gw.Send(channelID, text)
}

// Resolve maps message content onto a registered handler.
func (s *Session) Resolve(content string) (*command.Resolved, error) {
	return s.table.Resolve(content)
}

func (s *Session) register() {
	guard := command.WithGuard(&s.mu)
	must := func(name string, h command.Handler, opts ...command.Option) {
		if err := s.table.Register(name, h, opts...); err != nil {
			panic(fmt.Sprintf("registering %s: %v", name, err))
		}
	}

	must("play", s.handlePlay, guard, command.WithHelp("Play a URL, search term or playlist", "<url|search>"))
	must("playnext", s.handlePlayNext, guard, command.WithHelp("Queue a song to play right after the current one", "<url|search>"))
	must("cancel", s.handleCancel, guard, command.WithHelp("Cancel a running playlist import", ""))
	must("stop", s.handleStop, guard, command.WithHelp("Stop playback", ""))
	must("pause", s.handlePause, guard, command.WithHelp("Pause the current song", ""))
	must("resume", s.handleResume, guard, command.WithHelp("Resume a paused song", ""))
	must("skip", s.handleSkip, guard, command.WithHelp("Skip to the next song", ""))
	must("next", s.handleSkip, guard, command.WithHelp("Alias of skip", ""))
	must("queue", s.handleQueue, guard, command.WithHelp("Show the queue", ""))
	must("nowplaying", s.handleNowPlaying, guard, command.WithHelp("Show the current song", ""))
	must("source", s.handleSource, guard, command.WithHelp("Show the source link for the current song", ""))
	must("remove", s.handleRemove, guard, command.WithHelp("Remove queue entries", "<pos|first|last|a-b>"))
	must("clear", s.handleClear, guard, command.WithHelp("Clear the queue", ""))
	must("move", s.handleMove, guard, command.WithHelp("Move me to your voice channel", ""))
	must("disconnect", s.handleDisconnect, guard, command.WithHelp("Disconnect from voice", ""))
	must("dinkster", s.handleDinkster, guard, command.WithHelp("Ring the dinkster", ""))
	must("help", s.handleHelp, command.WithHelp("Show this menu", "[command]"))
	must("hello", s.handleHello, command.WithHelp("Say hello", ""))
	must("countdown", s.handleCountdown, command.WithHelp("Count down and explode", "<seconds>"))
	must("joke", s.handleJoke, command.WithHelp("Tell a joke", "[categories|help]"))
}

func fenced(title string) string {
	return fmt.Sprintf("\n```\n%s\n```", title)
}

func (s *Session) handlePlay(req command.Request) error {
	return s.play(req, false)
}

func (s *Session) handlePlayNext(req command.Request) error {
	return s.play(req, true)
}

func (s *Session) play(req command.Request, front bool) error {
	term := strings.TrimSpace(req.Args)
	if term == "" {
		return userInput("Give me a link or something to search for!")
	}
	if req.VoiceChannelID == "" {
		return precondition("You are not connected to a voice channel!")
	}

	if playlistID := media.PlaylistID(term); playlistID != "" && !front {
		return s.startImport(req, playlistID)
	}

	track, err := s.media.Resolve(context.Background(), term)
	if err != nil {
		return external(fmt.Sprintf("resolving %q", term), "Couldn't find anything for that, sorry.", err)
	}
	return s.enqueue(req, itemFromTrack(track, req), front)
}

func itemFromTrack(track *media.Track, req command.Request) *player.Item {
	return &player.Item{
		Title:       track.Title,
		Duration:    track.Duration,
		Live:        track.Live,
		Locator:     track.ID,
		SourceURL:   track.URL,
		ChannelID:   req.ChannelID,
		RequestedBy: req.AuthorID,
	}
}

// enqueue connects if needed, queues the item and either announces the
// queue position or starts playback. Callers hold the guard.
func (s *Session) enqueue(req command.Request, item *player.Item, front bool) error {
	if err := s.ctrl.ConnectOrReuse(req.VoiceChannelID); err != nil {
		return s.mapPlayerErr(err)
	}
	busy := s.ctrl.State() == player.Playing || s.ctrl.State() == player.Paused || s.ctrl.State() == player.Interrupted
	if front {
		s.ctrl.Queue().Prepend(item)
	} else {
		s.ctrl.Queue().Append(item)
	}
	if busy {
		s.gw.Send(req.ChannelID, "Added to Queue: "+fenced(item.Title))
		return nil
	}
	if err := s.ctrl.PlayNext(); err != nil {
		if errors.Is(err, player.ErrEmptyQueue) {
			// Everything queued was skipped; the notices already went out.
			s.ctrl.Stop()
			return nil
		}
		return err
	}
	return nil
}

// startImport kicks off a background playlist import. The producer runs
// outside the guard and re-acquires it per appended item so other commands
// stay responsive during the import.
func (s *Session) startImport(req command.Request, playlistID string) error {
	if s.importCancel != nil {
		s.gw.Send(req.ChannelID, "A playlist import is already running. Use cancel to stop it.")
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.importCancel = cancel
	s.gw.Send(req.ChannelID, "Importing playlist, this may take a moment...")
	go s.runImport(ctx, req, playlistID)
	return nil
}

func (s *Session) runImport(ctx context.Context, req command.Request, playlistID string) {
	added, failed := 0, 0
	for entry := range s.media.ExpandPlaylist(ctx, playlistID, s.opts.MaxPlaylistItems) {
		if entry.Err != nil {
			failed++
			s.log.Warn().Err(entry.Err).Msg("playlist entry failed")
			continue
		}
		item := itemFromTrack(entry.Track, req)

		s.mu.Lock()
		err := s.ctrl.ConnectOrReuse(req.VoiceChannelID)
		if err == nil {
			s.ctrl.Queue().Append(item)
			if s.ctrl.State() == player.Idle {
				if perr := s.ctrl.PlayNext(); perr != nil && !errors.Is(perr, player.ErrEmptyQueue) {
					s.log.Warn().Err(perr).Msg("starting playlist playback")
				}
			}
		}
		s.mu.Unlock()

		if err != nil {
			s.log.Warn().Err(err).Msg("connecting during playlist import")
			failed++
			continue
		}
		added++
		if added%10 == 0 {
			s.gw.Send(req.ChannelID, fmt.Sprintf("Queued %d songs so far...", added))
		}
	}

	cancelled := ctx.Err() != nil

	s.mu.Lock()
	if s.importCancel != nil {
		s.importCancel()
		s.importCancel = nil
	}
	s.mu.Unlock()

	switch {
	case cancelled:
		s.gw.Send(req.ChannelID, fmt.Sprintf("Playlist import cancelled after %d songs.", added))
	case failed > 0:
		s.gw.Send(req.ChannelID, fmt.Sprintf("Playlist import finished: %d added, %d failed.", added, failed))
	default:
		s.gw.Send(req.ChannelID, fmt.Sprintf("Playlist import finished: %d added.", added))
	}
}

func (s *Session) handleCancel(req command.Request) error {
	if s.importCancel == nil {
		s.gw.Send(req.ChannelID, "No playlist import to cancel.")
		return nil
	}
	s.importCancel()
	s.gw.Send(req.ChannelID, "Cancelling playlist import...")
	return nil
}

func (s *Session) handleStop(req command.Request) error {
	stopped := s.ctrl.Stop()
	if !stopped && s.ctrl.Queue().Len() == 0 {
		s.gw.Send(req.ChannelID, "End of queue")
	}
	return nil
}

func (s *Session) handlePause(req command.Request) error {
	if !s.ctrl.Pause() {
		s.gw.Send(req.ChannelID, "Nothing is playing...")
	}
	return nil
}

func (s *Session) handleResume(req command.Request) error {
	res, err := s.ctrl.Resume()
	if err != nil && !errors.Is(err, player.ErrEmptyQueue) {
		return err
	}
	switch res {
	case player.AlreadyPlaying:
		s.gw.Send(req.ChannelID, "Song currently playing")
	case player.NothingToResume:
		s.gw.Send(req.ChannelID, "Nothing is playing...")
	}
	return nil
}

func (s *Session) handleSkip(req command.Request) error {
	advanced, err := s.ctrl.Skip()
	if err != nil {
		if errors.Is(err, player.ErrEmptyQueue) {
			s.ctrl.Stop()
			advanced = false
		} else {
			return err
		}
	}
	if !advanced {
		s.gw.Send(req.ChannelID, "End of queue")
	}
	return nil
}

func (s *Session) handleQueue(req command.Request) error {
	items := s.ctrl.Queue().Snapshot()
	if len(items) == 0 {
		s.gw.Send(req.ChannelID, "No audio in queue.")
		return nil
	}

	var b strings.Builder
	lines := 0
	for i, item := range items {
		fmt.Fprintf(&b, "%d: %s", i+1, item.Title)
		lines++
		if lines == queueChunkLines {
			s.gw.Send(req.ChannelID, b.String())
			b.Reset()
			lines = 0
			continue
		}
		if i < len(items)-1 {
			b.WriteByte('\n')
		}
	}
	if b.Len() > 0 {
		s.gw.Send(req.ChannelID, b.String())
	}
	return nil
}

func (s *Session) handleNowPlaying(req command.Request) error {
	current := s.ctrl.Current()
	if current == nil {
		s.gw.Send(req.ChannelID, "Nothing is playing...")
		return nil
	}
	s.gw.Send(req.ChannelID, "Now Playing: "+fenced(current.Title))
	return nil
}

func (s *Session) handleSource(req command.Request) error {
	current := s.ctrl.Current()
	if current == nil || current.SourceURL == "" {
		s.gw.Send(req.ChannelID, "Nothing is playing...")
		return nil
	}
	s.gw.Send(req.ChannelID, current.SourceURL)
	return nil
}

func (s *Session) handleRemove(req command.Request) error {
	q := s.ctrl.Queue()
	if q.Len() == 0 {
		s.gw.Send(req.ChannelID, "The queue is empty.")
		return nil
	}

	fields := strings.Fields(req.Args)
	var tokens []string
	switch {
	case len(fields) == 1 && strings.Contains(fields[0], "-"):
		tokens = strings.SplitN(fields[0], "-", 2)
	case len(fields) == 1 || len(fields) == 2:
		tokens = fields
	case len(fields) == 0:
		return userInput("Tell me what to remove: a position, first, last, or a range like 2-5.")
	default:
		return userInput("Tell me what to remove: a position, first, last, or a range like 2-5.")
	}

	positions := make([]int, len(tokens))
	for i, tok := range tokens {
		pos, err := player.ParsePosition(strings.TrimSpace(tok), q.Len())
		if err != nil {
			return s.mapPlayerErr(err)
		}
		positions[i] = pos
	}

	if len(positions) == 1 {
		item, err := q.RemoveAt(positions[0])
		if err != nil {
			return s.mapPlayerErr(err)
		}
		s.gw.Send(req.ChannelID, "Removed from queue: "+fenced(item.Title))
		return nil
	}

	removed, err := q.RemoveRange(positions[0], positions[1])
	if err != nil {
		return s.mapPlayerErr(err)
	}
	s.gw.Send(req.ChannelID, fmt.Sprintf("Removed %d songs from the queue.", len(removed)))
	return nil
}

func (s *Session) handleClear(req command.Request) error {
	n := s.ctrl.Queue().Clear()
	if n == 0 {
		s.gw.Send(req.ChannelID, "The queue is empty.")
		return nil
	}
	s.gw.Send(req.ChannelID, fmt.Sprintf("Cleared %d songs from the queue.", n))
	return nil
}

func (s *Session) handleMove(req command.Request) error {
	res, err := s.ctrl.Move(req.VoiceChannelID)
	if err != nil {
		return s.mapPlayerErr(err)
	}
	switch res {
	case player.AlreadyThere:
		s.gw.Send(req.ChannelID, "I'm already in your voice channel.")
	case player.Moved:
		s.gw.Send(req.ChannelID, "Moved to your voice channel.")
	}
	return nil
}

func (s *Session) handleDisconnect(req command.Request) error {
	s.ctrl.Disconnect()
	s.gw.Send(req.ChannelID, "Disconnected.")
	return nil
}

func (s *Session) handleDinkster(req command.Request) error {
	if req.VoiceChannelID == "" {
		return precondition("You are not connected to a voice channel!")
	}
	if err := s.ctrl.ConnectOrReuse(req.VoiceChannelID); err != nil {
		return s.mapPlayerErr(err)
	}
	src := voice.Source{URL: s.opts.DinksterSound, Title: "Dinkster"}
	if err := s.ctrl.InterruptPlay(src); err != nil {
		return external("playing dinkster", "Couldn't ring the dinkster.", err)
	}
	return nil
}

func (s *Session) handleHelp(req command.Request) error {
	if name := strings.TrimSpace(req.Args); name != "" {
		text, ok := s.table.HelpFor(name)
		if !ok {
			return userInput(fmt.Sprintf("Command %s not recognized.", name))
		}
		s.gw.Send(req.ChannelID, text)
		return nil
	}
	s.gw.Send(req.ChannelID, s.table.Help())
	return nil
}

func (s *Session) handleHello(req command.Request) error {
	s.gw.Send(req.ChannelID, "Hello!")
	return nil
}

func (s *Session) handleCountdown(req command.Request) error {
	arg := strings.TrimSpace(req.Args)
	seconds, err := strconv.Atoi(arg)
	if err != nil {
		s.gw.Send(req.ChannelID, fmt.Sprintf("%s is not an integer.", arg))
		return nil
	}
	for ; seconds > 0; seconds-- {
		s.gw.Send(req.ChannelID, strconv.Itoa(seconds))
		s.sleep(time.Second)
	}
	s.gw.Send(req.ChannelID, "BOOOM!!!")
	return nil
}

func (s *Session) handleJoke(req command.Request) error {
	argv := strings.Fields(req.Args)
	for _, a := range argv {
		if a == "help" || a == "-h" || a == "--help" {
			s.gw.Send(req.ChannelID, "I see you asked for help!")
			s.gw.Send(req.ChannelID, "You can ask for the following categories:")
			s.gw.Send(req.ChannelID, strings.Join(joke.Categories(), ", "))
			return nil
		}
	}

	cats, err := joke.ValidateCategories(argv)
	if err != nil {
		return err
	}

	j, err := s.jokes.Fetch(context.Background(), cats)
	if err != nil {
		return external("fetching joke", "Couldn't fetch a joke right now.", err)
	}
	if j.Type == "twopart" {
		s.gw.Send(req.ChannelID, j.Setup)
		s.sleep(3 * time.Second)
		s.gw.Send(req.ChannelID, j.Delivery)
		return nil
	}
	s.gw.Send(req.ChannelID, j.Joke)
	return nil
}

// mapPlayerErr converts player sentinel errors into classified replies.
func (s *Session) mapPlayerErr(err error) error {
	var outOfRange *player.OutOfRangeError
	var invalidPos *player.InvalidPositionError
	switch {
	case errors.Is(err, player.ErrNotInVoice):
		return precondition("You are not connected to a voice channel!")
	case errors.Is(err, player.ErrNotConnected):
		return precondition("I'm not connected to a voice channel.")
	case errors.Is(err, player.ErrEmptyQueue):
		return precondition("The queue is empty.")
	case errors.As(err, &outOfRange):
		return userInput(fmt.Sprintf("Position %d is out of range, the queue has %d songs.", outOfRange.Pos, outOfRange.Length))
	case errors.As(err, &invalidPos):
		return userInput(fmt.Sprintf("'%s' is not a valid queue position.", invalidPos.Token))
	}
	return err
}

// Shutdown tears the guild's voice state down.
func (s *Session) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.importCancel != nil {
		s.importCancel()
		s.importCancel = nil
	}
	s.ctrl.Disconnect()
}
