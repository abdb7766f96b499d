package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"melodeon/internal/voice"
)

// State is the playback lifecycle of one guild.
type State int

const (
	Disconnected State = iota
	Idle
	Playing
	Paused
	Interrupted
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Interrupted:
		return "interrupted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StopReason records why the current stream is ending so the completion
// callback knows whether to advance the queue. A forced stop means the
// controller itself tore the stream down and already decided what happens
// next; only a natural end advances.
type StopReason int

const (
	StopNatural StopReason = iota
	StopForced
)

func (r StopReason) String() string {
	if r == StopForced {
		return "forced"
	}
	return "natural"
}

// StreamResolver turns an item's locator into a playable stream URL. Called
// lazily at play time, never at enqueue time.
type StreamResolver interface {
	StreamURL(ctx context.Context, locator string) (string, error)
}

// Notifier delivers user-facing playback notices into a text channel.
type Notifier interface {
	Notify(channelID, text string)
}

// resumeAction is one parked playback to restore when an overlay finishes.
// A nil stream means the park captured an idle controller and unwinding it
// returns to idle instead of resuming.
type resumeAction struct {
	stream    voice.Stream
	item      *Item
	wasPaused bool
}

// Controller drives playback for a single guild. It does not lock itself:
// every exported method runs with the guild guard already held by the
// caller. The completion callback and the idle watchdog take the guard on
// their own because they fire on foreign goroutines.
type Controller struct {
	mu      *sync.Mutex
	guildID string
	log     zerolog.Logger

	dialer  voice.Dialer
	streams StreamResolver
	notify  Notifier

	queue   *Queue
	conn    voice.Conn
	stream  voice.Stream
	current *Item

	state      State
	stopReason StopReason
	interrupts []resumeAction

	idleTimeout  time.Duration
	lastActivity time.Time

	// Injection points for tests.
	now       func() time.Time
	afterFunc func(d time.Duration, f func())
}

// NewController builds a controller sharing the guild guard with its
// dispatching session.
func NewController(mu *sync.Mutex, guildID string, dialer voice.Dialer, streams StreamResolver, notify Notifier, idleTimeout time.Duration, log zerolog.Logger) *Controller {
	return &Controller{
		mu:          mu,
		guildID:     guildID,
		log:         log.With().Str("guild", guildID).Logger(),
		dialer:      dialer,
		streams:     streams,
		notify:      notify,
		queue:       NewQueue(),
		state:       Disconnected,
		idleTimeout: idleTimeout,
		now:         time.Now,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Queue exposes the pending items. Callers hold the guard.
func (c *Controller) Queue() *Queue { return c.queue }

// State reports the current lifecycle state. Callers hold the guard.
func (c *Controller) State() State { return c.state }

// Current returns the item being played or paused, nil otherwise.
func (c *Controller) Current() *Item { return c.current }

func (c *Controller) touch() {
	c.lastActivity = c.now()
}

// ConnectOrReuse joins the given voice channel, or reuses a live connection
// as-is wherever it currently sits. Relocation is the move command's job.
func (c *Controller) ConnectOrReuse(channelID string) error {
	if channelID == "" {
		return ErrNotInVoice
	}
	if c.conn != nil {
		return nil
	}
	conn, err := c.dialer.Dial(c.guildID, channelID)
	if err != nil {
		return fmt.Errorf("joining voice channel %s: %w", channelID, err)
	}
	c.conn = conn
	c.state = Idle
	c.touch()
	c.log.Info().Str("channel", channelID).Msg("joined voice channel")
	return nil
}

// PlayNext pops items until one actually starts streaming. Live streams are
// skipped by policy, and items whose stream URL cannot be resolved are
// skipped with a notice rather than wedging the queue.
func (c *Controller) PlayNext() error {
	if c.conn == nil {
		// Handlers connect before advancing; reaching this is a bug.
		c.log.Error().Msg("advance requested while disconnected")
		return ErrNotConnected
	}
	for {
		item, err := c.queue.PopFront()
		if err != nil {
			return err
		}
		if item.Live {
			c.notify.Notify(item.ChannelID, fmt.Sprintf("I can't play livestreams, skipping [%s]...", item.Title))
			c.log.Info().Str("title", item.Title).Msg("skipping livestream")
			continue
		}
		url, err := c.streams.StreamURL(context.Background(), item.Locator)
		if err != nil {
			c.notify.Notify(item.ChannelID, fmt.Sprintf("Couldn't fetch audio for [%s], skipping...", item.Title))
			c.log.Warn().Err(err).Str("title", item.Title).Msg("stream url resolution failed")
			continue
		}
		if err := c.startStream(voice.Source{URL: url, Title: item.Title}, item); err != nil {
			c.notify.Notify(item.ChannelID, fmt.Sprintf("Couldn't play [%s], skipping...", item.Title))
			c.log.Warn().Err(err).Str("title", item.Title).Msg("stream start failed")
			continue
		}
		c.notify.Notify(item.ChannelID, fmt.Sprintf("Now Playing: \n```\n%s\n```", item.Title))
		return nil
	}
}

// startStream tears down any current stream and starts the new one. The
// completion callback carries a handle to the stream it belongs to so a
// callback from a forcibly replaced stream cannot advance the queue.
func (c *Controller) startStream(src voice.Source, item *Item) error {
	c.stopCurrent()
	h := &streamHandle{}
	stream, err := c.conn.Play(src, func(err error) { c.onStreamDone(h, err) })
	if err != nil {
		return err
	}
	h.s = stream
	c.stream = stream
	c.current = item
	c.state = Playing
	c.stopReason = StopNatural
	c.touch()
	return nil
}

// streamHandle ties a completion callback to the stream it was created for.
// The s field is written under the guard right after Play returns; the
// callback locks the guard before reading it.
type streamHandle struct {
	s voice.Stream
}

// stopCurrent force-stops the active stream, if any. Its completion
// callback still fires but no longer matches c.stream, so it is ignored.
func (c *Controller) stopCurrent() {
	if c.stream == nil {
		return
	}
	c.stopReason = StopForced
	c.stream.Stop()
	c.stream = nil
}

// onStreamDone is the stream completion callback. It runs on the voice
// transport's goroutine, so it takes the guard itself.
func (c *Controller) onStreamDone(h *streamHandle, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.log.Warn().Err(err).Msg("stream ended with error")
	}
	if h.s == nil || h.s != c.stream {
		// The stream was stopped or replaced by a mutation path that
		// already decided what happens next.
		c.log.Debug().Stringer("reason", c.stopReason).Msg("discarding stale stream completion")
		return
	}
	c.stopReason = StopNatural

	if c.state == Interrupted {
		c.unwindInterrupt()
		return
	}

	c.stream = nil
	c.current = nil
	if c.queue.Len() > 0 {
		if err := c.PlayNext(); err != nil {
			// Every remaining item was skipped. Same as finishing an
			// empty queue: go idle and let the watchdog take over.
			c.log.Warn().Err(err).Msg("advancing after stream end")
			c.state = Idle
			c.armWatchdog()
		}
		return
	}
	c.state = Idle
	c.armWatchdog()
}

// unwindInterrupt pops the most recent parked playback and restores it.
// Called with the guard held.
func (c *Controller) unwindInterrupt() {
	n := len(c.interrupts)
	if n == 0 {
		// Nothing was parked: the overlay started from idle.
		c.stream = nil
		c.current = nil
		if c.queue.Len() > 0 {
			if err := c.PlayNext(); err != nil {
				c.log.Warn().Err(err).Msg("advancing after overlay")
				c.state = Idle
				c.armWatchdog()
			}
			return
		}
		c.state = Idle
		c.armWatchdog()
		return
	}

	action := c.interrupts[n-1]
	c.interrupts = c.interrupts[:n-1]
	c.stream = action.stream
	c.current = action.item
	if len(c.interrupts) > 0 {
		c.state = Interrupted
	} else if action.wasPaused {
		c.state = Paused
	} else {
		c.state = Playing
	}
	if !action.wasPaused && action.stream != nil {
		action.stream.Resume()
	}
	c.touch()
}

// InterruptPlay parks the current stream (paused) and plays an overlay
// source on top of it. When the overlay ends the parked stream resumes in
// whatever pause state it was in. Interrupts nest LIFO.
func (c *Controller) InterruptPlay(src voice.Source) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if c.stream != nil {
		wasPaused := c.state == Paused
		c.stream.Pause()
		c.interrupts = append(c.interrupts, resumeAction{
			stream:    c.stream,
			item:      c.current,
			wasPaused: wasPaused,
		})
		c.stream = nil
	}
	h := &streamHandle{}
	stream, err := c.conn.Play(src, func(err error) { c.onStreamDone(h, err) })
	if err != nil {
		// Roll the park back so the interrupted stream is not orphaned.
		if n := len(c.interrupts); n > 0 {
			action := c.interrupts[n-1]
			c.interrupts = c.interrupts[:n-1]
			c.stream = action.stream
			if !action.wasPaused && action.stream != nil {
				action.stream.Resume()
			}
		}
		return fmt.Errorf("playing overlay: %w", err)
	}
	h.s = stream
	c.stream = stream
	c.current = nil
	c.state = Interrupted
	c.stopReason = StopNatural
	c.touch()
	return nil
}

// Pause suspends the current stream. Returns false when nothing is playing.
func (c *Controller) Pause() bool {
	if c.state != Playing || c.stream == nil {
		return false
	}
	c.stream.Pause()
	c.state = Paused
	c.touch()
	c.armWatchdog()
	return true
}

// ResumeResult tells the caller what Resume actually did.
type ResumeResult int

const (
	Resumed ResumeResult = iota
	AlreadyPlaying
	ResumeStarted // nothing was paused but the queue had items, playback started fresh
	NothingToResume
)

// Resume restarts a paused stream, or kicks the queue when idle with
// pending items.
func (c *Controller) Resume() (ResumeResult, error) {
	switch {
	case c.state == Paused && c.stream != nil:
		c.stream.Resume()
		c.state = Playing
		c.touch()
		return Resumed, nil
	case c.state == Playing:
		return AlreadyPlaying, nil
	case c.state == Idle && c.queue.Len() > 0:
		if err := c.PlayNext(); err != nil {
			return NothingToResume, err
		}
		return ResumeStarted, nil
	}
	return NothingToResume, nil
}

// Stop halts playback and keeps the connection, arming the idle watchdog.
// Returns true when there was anything to stop.
func (c *Controller) Stop() bool {
	if c.conn == nil {
		return false
	}
	hadStream := c.stream != nil
	c.stopCurrent()
	if c.queue.Len() == 0 {
		c.current = nil
	}
	c.dropInterrupts()
	if c.state != Disconnected {
		c.state = Idle
	}
	c.touch()
	c.armWatchdog()
	return hadStream
}

// Skip ends the current item. With pending items the next one starts, and
// otherwise the controller goes idle. Returns true when the queue kept
// playing.
func (c *Controller) Skip() (bool, error) {
	if c.queue.Len() > 0 {
		if err := c.PlayNext(); err != nil {
			return false, err
		}
		return true, nil
	}
	c.Stop()
	return false, nil
}

// MoveResult tells the caller what Move actually did.
type MoveResult int

const (
	Moved MoveResult = iota
	AlreadyThere
)

// Move relocates the live voice connection to the requester's channel.
func (c *Controller) Move(channelID string) (MoveResult, error) {
	if c.conn == nil {
		return 0, ErrNotConnected
	}
	if channelID == "" {
		return 0, ErrNotInVoice
	}
	if c.conn.ChannelID() == channelID {
		return AlreadyThere, nil
	}
	if err := c.conn.Move(channelID); err != nil {
		return 0, fmt.Errorf("moving voice connection: %w", err)
	}
	c.touch()
	return Moved, nil
}

// Disconnect tears everything down. Safe to call in any state.
func (c *Controller) Disconnect() {
	c.stopCurrent()
	c.current = nil
	c.dropInterrupts()
	c.queue.Clear()
	if c.conn != nil {
		if err := c.conn.Disconnect(); err != nil {
			c.log.Warn().Err(err).Msg("disconnecting voice")
		}
		c.conn = nil
	}
	c.state = Disconnected
}

// dropInterrupts stops every parked stream so their encoders are released.
func (c *Controller) dropInterrupts() {
	for _, a := range c.interrupts {
		if a.stream != nil {
			a.stream.Stop()
		}
	}
	c.interrupts = nil
}

// armWatchdog schedules an idle check one timeout from now. Timers are
// never cancelled; a stale timer finds fresh activity and does nothing.
func (c *Controller) armWatchdog() {
	if c.idleTimeout <= 0 {
		return
	}
	armed := c.now()
	c.afterFunc(c.idleTimeout, func() {
		c.attemptDisconnect(armed)
	})
}

// attemptDisconnect fires on the timer goroutine. The whole check-and-act
// runs under the guard so playback resumed between the staleness check and
// the teardown cannot be cut off.
func (c *Controller) attemptDisconnect(armedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return
	}
	if c.state == Playing || c.state == Interrupted {
		return
	}
	if c.lastActivity.After(armedAt) {
		// Something happened since this timer was armed; a fresher timer
		// covers it.
		return
	}
	c.log.Info().Dur("idle", c.now().Sub(c.lastActivity)).Msg("idle timeout, disconnecting")
	c.Disconnect()
}
