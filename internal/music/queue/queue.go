// Package queue holds the per-guild play queue and the registry of queues.
//
// Every Queue runs its own event loop. Public methods hand a closure to the loop and
// wait for it, and end-of-track events from the renderer are posted to the same loop,
// so queue fields are only ever touched by one goroutine.
package queue

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/keshon/domme-music/internal/music/adapter"
	"github.com/keshon/domme-music/internal/music/track"
	"github.com/rs/zerolog"
)

var (
	ErrNothingPlaying       = errors.New("nothing is playing")
	ErrNoVoiceDestination   = errors.New("no voice channel set")
	ErrNoNotificationTarget = errors.New("no notification channel set")
	ErrNoTracks             = errors.New("no tracks given")
	ErrIndexOutOfRange      = errors.New("track index out of range")
	ErrClosed               = errors.New("queue closed")
)

// Renderer is the per-guild control surface of the audio renderer.
// *adapter.Client implements it.
type Renderer interface {
	Join(channelID string) error
	Play(src track.Source, onEnd func()) (uint64, error)
	Pause() error
	Resume() error
	Stop() error
	Forget(requestID uint64)
	Status(ctx context.Context) (adapter.StatusReply, error)
	Close()
}

// Entry is a queued track and when it was queued.
type Entry struct {
	Track    track.Track
	QueuedAt time.Time
}

type Config struct {
	GuildID  string
	Renderer Renderer
	Notifier Notifier
	Logger   zerolog.Logger
	// JoinSettleDelay is waited after a join before the first play. The join is not confirmed.
	JoinSettleDelay time.Duration
	// StatusTimeout bounds each status round-trip; 0 waits forever.
	StatusTimeout time.Duration
	// OnPlay is called on the queue loop whenever a track starts.
	OnPlay func(guildID string, t track.Track)
	Now    func() time.Time
}

// Queue is one guild's ordered track list with a play cursor.
type Queue struct {
	guildID         string
	renderer        Renderer
	notifier        Notifier
	log             zerolog.Logger
	joinSettleDelay time.Duration
	statusTimeout   time.Duration
	onPlay          func(string, track.Track)
	now             func() time.Time

	ops    chan func()
	quit   chan struct{}
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	// owned by the loop
	entries         []Entry
	cursor          int
	loop            LoopMode
	voiceChannelID  string
	joinedChannelID string
	notifyChannelID string
	state           State
	nowPlaying      MessageRef
	playRequest     uint64
	generation      uint64
	failures        int
}

// New starts a queue loop. Close stops it.
func New(cfg Config) *Queue {
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		guildID:         cfg.GuildID,
		renderer:        cfg.Renderer,
		notifier:        cfg.Notifier,
		log:             cfg.Logger.With().Str("guild", cfg.GuildID).Logger(),
		joinSettleDelay: cfg.JoinSettleDelay,
		statusTimeout:   cfg.StatusTimeout,
		onPlay:          cfg.OnPlay,
		now:             cfg.Now,
		ops:             make(chan func()),
		quit:            make(chan struct{}),
		done:            make(chan struct{}),
		ctx:             ctx,
		cancel:          cancel,
	}
	go q.run()
	return q
}

func (q *Queue) GuildID() string { return q.guildID }

func (q *Queue) run() {
	defer close(q.done)
	for {
		select {
		case op := <-q.ops:
			op()
		case <-q.quit:
			return
		}
	}
}

// exec runs fn on the loop and waits for it to return.
func (q *Queue) exec(ctx context.Context, fn func(ctx context.Context)) error {
	finished := make(chan struct{})
	op := func() {
		defer close(finished)
		fn(ctx)
	}
	select {
	case q.ops <- op:
	case <-q.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// post queues fn without waiting. Used from the renderer's read goroutine.
func (q *Queue) post(fn func(ctx context.Context)) {
	go func() {
		if err := q.exec(q.ctx, fn); err != nil && !errors.Is(err, ErrClosed) && !errors.Is(err, context.Canceled) {
			q.log.Warn().Err(err).Msg("dropped queue event")
		}
	}()
}

// Close stops the loop and releases the renderer client.
func (q *Queue) Close() {
	select {
	case <-q.quit:
		return
	default:
	}
	q.cancel()
	close(q.quit)
	<-q.done
	q.renderer.Close()
}

// QueueTracks stamps requesterID onto tracks and inserts them at the tail, or right
// after the current track. If the renderer is not playing, the first inserted track
// becomes current and starts. It returns the index of the first inserted track.
func (q *Queue) QueueTracks(ctx context.Context, tracks []track.Track, requesterID string, insertAfterCurrent bool) (int, error) {
	if len(tracks) == 0 {
		return 0, ErrNoTracks
	}

	var (
		pos int
		err error
	)
	if xerr := q.exec(ctx, func(ctx context.Context) {
		pos, err = q.queueTracks(ctx, tracks, requesterID, insertAfterCurrent)
	}); xerr != nil {
		return 0, xerr
	}
	return pos, err
}

func (q *Queue) queueTracks(ctx context.Context, tracks []track.Track, requesterID string, insertAfterCurrent bool) (int, error) {
	queuedAt := q.now()
	added := make([]Entry, 0, len(tracks))
	for _, t := range tracks {
		t.SetRequester(requesterID)
		added = append(added, Entry{Track: t, QueuedAt: queuedAt})
	}

	pos := len(q.entries)
	if insertAfterCurrent && q.cursor < len(q.entries) {
		pos = q.cursor + 1
	}
	q.entries = slices.Insert(q.entries, pos, added...)
	if q.state == StateEmpty || q.state == StateExhausted {
		q.state = StateCued
	}

	q.log.Debug().Int("count", len(tracks)).Int("position", pos).Msg("tracks queued")

	if q.status(ctx).Active() {
		return pos, nil
	}
	q.cursor = pos
	return pos, q.playNext(ctx)
}

// status asks the renderer for playback state. When the query fails, an outstanding
// play request counts as active and anything else as not-connected.
func (q *Queue) status(ctx context.Context) adapter.Status {
	reply, err := q.statusReply(ctx)
	if err == nil {
		return reply.Status
	}
	switch {
	case q.playRequest == 0:
		return adapter.StatusNotConnected
	case q.state == StatePaused:
		return adapter.StatusPaused
	default:
		return adapter.StatusPlaying
	}
}

// needsJoin reports whether the renderer has to join the voice channel before a play.
// Without an answer from the renderer, a channel already joined by this queue is trusted.
func (q *Queue) needsJoin(ctx context.Context) bool {
	reply, err := q.statusReply(ctx)
	if err != nil {
		return q.joinedChannelID != q.voiceChannelID
	}
	return reply.Status == adapter.StatusNotConnected
}

func (q *Queue) statusReply(ctx context.Context) (adapter.StatusReply, error) {
	if q.statusTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.statusTimeout)
		defer cancel()
	}
	reply, err := q.renderer.Status(ctx)
	if err != nil {
		q.log.Warn().Err(err).Msg("status query failed")
		return adapter.StatusReply{Status: adapter.StatusNotConnected}, err
	}
	return reply, nil
}

func (q *Queue) current() track.Track {
	if q.cursor < 0 || q.cursor >= len(q.entries) {
		return nil
	}
	return q.entries[q.cursor].Track
}

// invalidatePlay makes any end event for the outstanding play a no-op.
func (q *Queue) invalidatePlay() {
	if q.playRequest != 0 {
		q.renderer.Forget(q.playRequest)
		q.playRequest = 0
	}
	q.generation++
}

// playNext plays tracks[cursor]. A track that fails to resolve is reported and
// treated as finished; after a full run of failures the queue is torn down.
func (q *Queue) playNext(ctx context.Context) error {
	q.invalidatePlay()

	for {
		cur := q.current()
		if cur == nil {
			q.reset(ctx)
			return nil
		}
		if q.voiceChannelID == "" {
			q.log.Error().Err(ErrNoVoiceDestination).Str("track", cur.Title()).Msg("cannot play")
			return ErrNoVoiceDestination
		}

		if q.needsJoin(ctx) {
			if err := q.renderer.Join(q.voiceChannelID); err != nil {
				return fmt.Errorf("join voice channel: %w", err)
			}
			q.joinedChannelID = q.voiceChannelID
			if err := sleep(ctx, q.joinSettleDelay); err != nil {
				return err
			}
		}

		src, err := cur.Resolve(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.failures++
			q.log.Warn().Err(err).Str("track", cur.Title()).Msg("track resolution failed")
			q.notifyError(ctx, resolutionMessage(cur, err))

			if q.failures >= len(q.entries) {
				q.log.Warn().Int("failures", q.failures).Msg("no track in the queue could be resolved")
				q.reset(ctx)
				return nil
			}
			if !q.advance(false) {
				q.reset(ctx)
				return nil
			}
			continue
		}
		q.failures = 0

		q.state = StatePlaying
		if q.notifyChannelID != "" {
			if err := q.updateNowPlaying(ctx, false); err != nil {
				q.log.Warn().Err(err).Msg("now playing update failed")
			}
		}

		gen := q.generation
		id, err := q.renderer.Play(src, func() {
			q.post(func(ctx context.Context) { q.trackEnded(ctx, gen) })
		})
		if err != nil {
			q.state = StateCued
			return fmt.Errorf("play %q: %w", cur.Title(), err)
		}
		q.playRequest = id

		q.log.Info().Str("track", cur.Title()).Int("cursor", q.cursor).Uint64("request", id).Msg("playing")
		if q.onPlay != nil {
			q.onPlay(q.guildID, cur)
		}
		return nil
	}
}

func resolutionMessage(t track.Track, err error) string {
	var rerr *track.ResolutionError
	if errors.As(err, &rerr) && rerr.Message != "" {
		return fmt.Sprintf("Couldn't play **%s**: %s", t.Title(), rerr.Message)
	}
	return fmt.Sprintf("Couldn't play **%s**", t.Title())
}

func (q *Queue) notifyError(ctx context.Context, msg string) {
	if q.notifyChannelID == "" {
		return
	}
	if err := q.notifier.Error(ctx, q.notifyChannelID, msg); err != nil {
		q.log.Warn().Err(err).Msg("error notification failed")
	}
}

// trackEnded is the end-of-track continuation for play generation gen.
func (q *Queue) trackEnded(ctx context.Context, gen uint64) {
	if gen != q.generation || q.playRequest == 0 {
		return
	}
	q.playRequest = 0
	q.state = StateCued

	if !q.advance(true) {
		q.reset(ctx)
		return
	}
	if err := q.playNext(ctx); err != nil {
		q.log.Error().Err(err).Msg("playback stopped")
	}
}

// advance moves the cursor to the next track per loop mode. Loop-one keeps the
// cursor only when keepOnLoopOne is set. It returns false once the queue is exhausted.
func (q *Queue) advance(keepOnLoopOne bool) bool {
	switch {
	case keepOnLoopOne && q.loop == LoopOne:
		return true
	case q.cursor+1 < len(q.entries):
		q.cursor++
		return true
	case q.loop == LoopAll && len(q.entries) > 0:
		q.cursor = 0
		return true
	}
	q.cursor = len(q.entries)
	q.state = StateExhausted
	return false
}

// reset stops playback, clears the status message and empties the queue.
func (q *Queue) reset(ctx context.Context) {
	q.invalidatePlay()
	if len(q.entries) > 0 || q.state != StateEmpty {
		if err := q.renderer.Stop(); err != nil {
			q.log.Debug().Err(err).Msg("stop failed")
		}
	}
	if !q.nowPlaying.IsZero() {
		if err := q.notifier.Clear(ctx, q.nowPlaying); err != nil {
			q.log.Debug().Err(err).Msg("clearing status message failed")
		}
	}

	q.entries = nil
	q.cursor = 0
	q.loop = LoopNone
	q.voiceChannelID = ""
	q.joinedChannelID = ""
	q.notifyChannelID = ""
	q.nowPlaying = MessageRef{}
	q.failures = 0
	q.state = StateEmpty
}

// Reset stops playback and empties the queue. The queue stays usable.
func (q *Queue) Reset(ctx context.Context) error {
	return q.exec(ctx, q.reset)
}

// UpdateNowPlaying refreshes the status message for the current track.
func (q *Queue) UpdateNowPlaying(ctx context.Context) error {
	var err error
	if xerr := q.exec(ctx, func(ctx context.Context) { err = q.updateNowPlaying(ctx, true) }); xerr != nil {
		return xerr
	}
	return err
}

func (q *Queue) updateNowPlaying(ctx context.Context, queryRenderer bool) error {
	cur := q.current()
	if cur == nil {
		return ErrNothingPlaying
	}
	if q.notifyChannelID == "" {
		return ErrNoNotificationTarget
	}

	view := NowPlaying{
		Title:       cur.Title(),
		Kind:        cur.Kind(),
		Duration:    track.DisplayDuration(cur),
		Author:      cur.Author(),
		RequesterID: cur.Requester(),
		Loop:        q.loop,
		Paused:      q.state == StatePaused,
		URL:         cur.URL(),
		CoverArt:    cur.CoverArtURL(),
		QueueLength: len(q.entries),
		Index:       q.cursor,
	}
	if queryRenderer {
		if reply, err := q.statusReply(ctx); err == nil {
			view.Paused = reply.Status == adapter.StatusPaused
			view.Position = reply.Position
		}
	}

	ref, err := q.notifier.UpdateNowPlaying(ctx, q.notifyChannelID, q.nowPlaying, view)
	if err != nil {
		return fmt.Errorf("update now playing: %w", err)
	}
	q.nowPlaying = ref
	return nil
}

// RemainingTime is what is left of the current track, 0 unless the renderer is playing.
func (q *Queue) RemainingTime(ctx context.Context) (time.Duration, error) {
	var rem time.Duration
	err := q.exec(ctx, func(ctx context.Context) {
		cur := q.current()
		if cur == nil || cur.IsLive() {
			return
		}
		reply, err := q.statusReply(ctx)
		if err != nil || reply.Status != adapter.StatusPlaying {
			return
		}
		rem = max(cur.Duration()-reply.Position, 0)
	})
	return rem, err
}

// Length is the total queue duration, or "unknown" when a livestream is queued.
func (q *Queue) Length() string {
	var out string
	_ = q.exec(context.Background(), func(context.Context) {
		out = totalLength(q.entries)
	})
	return out
}

func totalLength(entries []Entry) string {
	var total time.Duration
	for _, e := range entries {
		if e.Track.IsLive() {
			return "unknown"
		}
		total += e.Track.Duration().Round(time.Second)
	}
	return track.FormatClock(total)
}

// Skip ends the current track and starts the next one, ignoring loop-one.
func (q *Queue) Skip(ctx context.Context) error {
	var err error
	if xerr := q.exec(ctx, func(ctx context.Context) {
		if q.current() == nil {
			err = ErrNothingPlaying
			return
		}
		q.invalidatePlay()
		if serr := q.renderer.Stop(); serr != nil {
			q.log.Debug().Err(serr).Msg("stop failed")
		}
		if !q.advance(false) {
			q.reset(ctx)
			return
		}
		q.state = StateCued
		err = q.playNext(ctx)
	}); xerr != nil {
		return xerr
	}
	return err
}

func (q *Queue) Pause(ctx context.Context) error {
	return q.setPaused(ctx, true)
}

func (q *Queue) Resume(ctx context.Context) error {
	return q.setPaused(ctx, false)
}

func (q *Queue) setPaused(ctx context.Context, paused bool) error {
	var err error
	if xerr := q.exec(ctx, func(ctx context.Context) {
		if q.current() == nil || q.playRequest == 0 {
			err = ErrNothingPlaying
			return
		}
		if paused {
			err = q.renderer.Pause()
		} else {
			err = q.renderer.Resume()
		}
		if err != nil {
			return
		}
		if paused {
			q.state = StatePaused
		} else {
			q.state = StatePlaying
		}
		q.refreshStatusMessage(ctx)
	}); xerr != nil {
		return xerr
	}
	return err
}

func (q *Queue) refreshStatusMessage(ctx context.Context) {
	if q.notifyChannelID == "" || q.current() == nil {
		return
	}
	if err := q.updateNowPlaying(ctx, false); err != nil {
		q.log.Warn().Err(err).Msg("now playing update failed")
	}
}

func (q *Queue) SetLoopMode(ctx context.Context, mode LoopMode) error {
	return q.exec(ctx, func(ctx context.Context) {
		q.loop = mode
		if q.playRequest != 0 {
			q.refreshStatusMessage(ctx)
		}
	})
}

// Shuffle reorders the tracks after the current one and returns how many moved.
func (q *Queue) Shuffle(ctx context.Context) (int, error) {
	var n int
	err := q.exec(ctx, func(context.Context) {
		start := q.cursor + 1
		if start >= len(q.entries) {
			return
		}
		upcoming := q.entries[start:]
		rand.Shuffle(len(upcoming), func(i, j int) { upcoming[i], upcoming[j] = upcoming[j], upcoming[i] })
		n = len(upcoming)
	})
	return n, err
}

// Remove drops the track at index. Removing the current track skips to the next.
func (q *Queue) Remove(ctx context.Context, index int) (track.Track, error) {
	var (
		removed track.Track
		err     error
	)
	if xerr := q.exec(ctx, func(ctx context.Context) {
		if index < 0 || index >= len(q.entries) {
			err = ErrIndexOutOfRange
			return
		}
		removed = q.entries[index].Track
		wasCurrent := index == q.cursor
		q.entries = slices.Delete(q.entries, index, index+1)

		switch {
		case index < q.cursor:
			q.cursor--
		case wasCurrent:
			playing := q.playRequest != 0
			q.invalidatePlay()
			if playing {
				if serr := q.renderer.Stop(); serr != nil {
					q.log.Debug().Err(serr).Msg("stop failed")
				}
			}
			if q.cursor >= len(q.entries) && q.loop == LoopAll {
				q.cursor = 0
			}
			if q.current() == nil {
				q.reset(ctx)
				return
			}
			if playing {
				q.state = StateCued
				err = q.playNext(ctx)
			}
		}
	}); xerr != nil {
		return nil, xerr
	}
	return removed, err
}

func (q *Queue) SetVoiceChannel(ctx context.Context, channelID string) error {
	return q.exec(ctx, func(context.Context) { q.voiceChannelID = channelID })
}

// SetNotificationChannel moves status messages to channelID. The previous message
// reference is kept so the notifier can remove it on the next update.
func (q *Queue) SetNotificationChannel(ctx context.Context, channelID string) error {
	return q.exec(ctx, func(context.Context) { q.notifyChannelID = channelID })
}

// Refresh re-derives the playback state from the renderer.
func (q *Queue) Refresh(ctx context.Context) (State, error) {
	var st State
	err := q.exec(ctx, func(ctx context.Context) {
		switch {
		case len(q.entries) == 0:
			q.state = StateEmpty
		case q.cursor >= len(q.entries):
			q.state = StateExhausted
		default:
			switch q.status(ctx) {
			case adapter.StatusPlaying:
				q.state = StatePlaying
			case adapter.StatusPaused:
				q.state = StatePaused
			default:
				q.state = StateCued
			}
		}
		st = q.state
	})
	return st, err
}

// Snapshot is the queue listing taken in one loop turn.
type Snapshot struct {
	Entries []Entry
	Cursor  int
	Length  string
	Loop    LoopMode
}

func (q *Queue) Snapshot() Snapshot {
	var snap Snapshot
	_ = q.exec(context.Background(), func(context.Context) {
		snap = Snapshot{
			Entries: slices.Clone(q.entries),
			Cursor:  q.cursor,
			Length:  totalLength(q.entries),
			Loop:    q.loop,
		}
	})
	return snap
}

func (q *Queue) Tracks() []track.Track {
	var out []track.Track
	_ = q.exec(context.Background(), func(context.Context) {
		out = make([]track.Track, len(q.entries))
		for i, e := range q.entries {
			out[i] = e.Track
		}
	})
	return out
}

func (q *Queue) Entries() []Entry {
	var out []Entry
	_ = q.exec(context.Background(), func(context.Context) { out = slices.Clone(q.entries) })
	return out
}

func (q *Queue) Cursor() int {
	var c int
	_ = q.exec(context.Background(), func(context.Context) { c = q.cursor })
	return c
}

// Current returns the track at the cursor, or nil.
func (q *Queue) Current() track.Track {
	var t track.Track
	_ = q.exec(context.Background(), func(context.Context) { t = q.current() })
	return t
}

func (q *Queue) LoopMode() LoopMode {
	var m LoopMode
	_ = q.exec(context.Background(), func(context.Context) { m = q.loop })
	return m
}

func (q *Queue) State() State {
	var s State
	_ = q.exec(context.Background(), func(context.Context) { s = q.state })
	return s
}

func (q *Queue) VoiceChannel() string {
	var id string
	_ = q.exec(context.Background(), func(context.Context) { id = q.voiceChannelID })
	return id
}

func (q *Queue) NotificationChannel() string {
	var id string
	_ = q.exec(context.Background(), func(context.Context) { id = q.notifyChannelID })
	return id
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
