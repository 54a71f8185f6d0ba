package adapter

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/keshon/domme-music/internal/music/track"
	"github.com/rs/zerolog"
)

type endHandler struct {
	once sync.Once
	fn   func()
}

func (h *endHandler) fire() {
	h.once.Do(func() {
		if h.fn != nil {
			h.fn()
		}
	})
}

// Client is one guild's view of the renderer link.
type Client struct {
	mux     *Mux
	guildID string
	log     zerolog.Logger

	seq       atomic.Uint64
	connected atomic.Bool

	mu      sync.Mutex
	ends    map[uint64]*endHandler
	latest  uint64
	onError func(*TransportError)
}

// GuildID returns the guild this client speaks for.
func (c *Client) GuildID() string { return c.guildID }

// Connect registers the client for its guild's events. It may be called once.
func (c *Client) Connect() error {
	if !c.connected.CompareAndSwap(false, true) {
		return ErrAlreadyConnected
	}
	c.mux.register(c)
	return nil
}

// Close stops event delivery and drops every outstanding end handler.
func (c *Client) Close() {
	c.mux.unregister(c)
	c.mu.Lock()
	clear(c.ends)
	c.mu.Unlock()
}

// OnError sets the hook for renderer error events.
func (c *Client) OnError(fn func(*TransportError)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// Send writes one command frame and returns its request id.
func (c *Client) Send(op Op, channelID string, src *track.Source) (uint64, error) {
	if !c.connected.Load() {
		return 0, ErrClientClosed
	}
	id := c.seq.Add(1)
	err := c.mux.write(Frame{
		Op:        op,
		GuildID:   c.guildID,
		RequestID: id,
		ChannelID: channelID,
		Source:    src,
	})
	return id, err
}

func (c *Client) Join(channelID string) error {
	_, err := c.Send(OpJoin, channelID, nil)
	return err
}

// Play starts src. onEnd runs at most once, when the renderer reports the end
// of this particular play request. It runs on the link's read goroutine and must not block.
func (c *Client) Play(src track.Source, onEnd func()) (uint64, error) {
	if !c.connected.Load() {
		return 0, ErrClientClosed
	}
	id := c.seq.Add(1)

	c.mu.Lock()
	c.ends[id] = &endHandler{fn: onEnd}
	c.latest = id
	c.mu.Unlock()

	err := c.mux.write(Frame{Op: OpPlay, GuildID: c.guildID, RequestID: id, Source: &src})
	if err != nil {
		c.Forget(id)
		return 0, err
	}
	return id, nil
}

func (c *Client) Pause() error {
	_, err := c.Send(OpPause, "", nil)
	return err
}

func (c *Client) Resume() error {
	_, err := c.Send(OpResume, "", nil)
	return err
}

func (c *Client) Stop() error {
	_, err := c.Send(OpStop, "", nil)
	return err
}

// Forget drops the end handler of play request id, so a late end for it is ignored.
func (c *Client) Forget(id uint64) {
	c.mu.Lock()
	delete(c.ends, id)
	c.mu.Unlock()
}

// Status asks the renderer for this guild's playback state and waits for the
// reply carrying the same request id.
func (c *Client) Status(ctx context.Context) (StatusReply, error) {
	if !c.connected.Load() {
		return StatusReply{}, ErrClientClosed
	}
	id := c.seq.Add(1)
	key := corrKey{guildID: c.guildID, requestID: id}

	ch := c.mux.expect(key)
	defer c.mux.forget(key)

	if err := c.mux.write(Frame{Op: OpStatus, GuildID: c.guildID, RequestID: id}); err != nil {
		return StatusReply{}, err
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return StatusReply{}, ErrLinkClosed
		}
		return reply, nil
	case <-ctx.Done():
		return StatusReply{}, ctx.Err()
	}
}

func (c *Client) deliver(f Frame) {
	if f.GuildID != c.guildID {
		c.log.Warn().Str("event_guild", f.GuildID).Msg("event for another guild dropped")
		return
	}

	switch f.Op {
	case OpEnd:
		c.mu.Lock()
		id := f.RequestID
		if id == 0 {
			// renderer did not echo the request id; assume the newest play
			id = c.latest
		}
		h := c.ends[id]
		delete(c.ends, id)
		c.mu.Unlock()

		if h == nil {
			c.log.Debug().Uint64("request", f.RequestID).Msg("end for a forgotten play")
			return
		}
		h.fire()

	case OpError:
		terr := &TransportError{GuildID: f.GuildID, Code: f.Code, Message: f.Message}
		c.log.Warn().Int("code", f.Code).Str("message", f.Message).Msg("renderer reported an error")

		c.mu.Lock()
		fn := c.onError
		c.mu.Unlock()
		if fn != nil {
			fn(terr)
		}
	}
}
