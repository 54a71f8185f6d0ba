package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type corrKey struct {
	guildID   string
	requestID uint64
}

// Mux multiplexes every guild's Client over one renderer connection.
type Mux struct {
	log zerolog.Logger

	connMu  sync.RWMutex
	conn    Conn
	writeMu sync.Mutex

	// correlated replies
	pendingMu sync.Mutex
	pending   map[corrKey]chan StatusReply

	// unsolicited events
	clientsMu sync.RWMutex
	clients   map[string]*Client
}

// NewMux returns a mux with no connection attached; Serve attaches one.
func NewMux(log zerolog.Logger) *Mux {
	return &Mux{
		log:     log,
		pending: make(map[corrKey]chan StatusReply),
		clients: make(map[string]*Client),
	}
}

// Client returns a new, not yet connected, client for a guild.
func (m *Mux) Client(guildID string) *Client {
	return &Client{
		mux:     m,
		guildID: guildID,
		log:     m.log.With().Str("guild", guildID).Logger(),
		ends:    make(map[uint64]*endHandler),
	}
}

// Serve attaches conn and reads frames until the connection fails or ctx ends.
// Waiters still pending when it returns get ErrLinkClosed.
func (m *Mux) Serve(ctx context.Context, conn Conn) error {
	m.connMu.Lock()
	m.conn = conn
	m.connMu.Unlock()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	defer m.detach(conn)

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		m.dispatch(f)
	}
}

func (m *Mux) detach(conn Conn) {
	m.connMu.Lock()
	if m.conn == conn {
		m.conn = nil
	}
	m.connMu.Unlock()
	_ = conn.Close()

	m.pendingMu.Lock()
	for key, ch := range m.pending {
		close(ch)
		delete(m.pending, key)
	}
	m.pendingMu.Unlock()
}

// Connected reports whether a renderer connection is attached.
func (m *Mux) Connected() bool {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.conn != nil
}

func (m *Mux) write(f Frame) error {
	m.connMu.RLock()
	conn := m.conn
	m.connMu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteJSON(f)
}

func (m *Mux) expect(key corrKey) chan StatusReply {
	ch := make(chan StatusReply, 1)
	m.pendingMu.Lock()
	m.pending[key] = ch
	m.pendingMu.Unlock()
	return ch
}

func (m *Mux) forget(key corrKey) {
	m.pendingMu.Lock()
	delete(m.pending, key)
	m.pendingMu.Unlock()
}

func (m *Mux) register(c *Client) {
	m.clientsMu.Lock()
	m.clients[c.guildID] = c
	m.clientsMu.Unlock()
}

func (m *Mux) unregister(c *Client) {
	m.clientsMu.Lock()
	if m.clients[c.guildID] == c {
		delete(m.clients, c.guildID)
	}
	m.clientsMu.Unlock()
}

func (m *Mux) dispatch(f Frame) {
	if f.GuildID == "" {
		m.log.Debug().Str("op", string(f.Op)).Msg("dropping frame without guild id")
		return
	}

	switch f.Op {
	case OpStatus:
		m.resolve(f)
	case OpEnd, OpError:
		m.clientsMu.RLock()
		c := m.clients[f.GuildID]
		m.clientsMu.RUnlock()
		if c == nil {
			m.log.Debug().Str("guild", f.GuildID).Str("op", string(f.Op)).Msg("no client for event")
			return
		}
		c.deliver(f)
	default:
		m.log.Debug().Str("op", string(f.Op)).Msg("unknown frame")
	}
}

func (m *Mux) resolve(f Frame) {
	key := corrKey{guildID: f.GuildID, requestID: f.RequestID}

	m.pendingMu.Lock()
	ch, ok := m.pending[key]
	delete(m.pending, key)
	m.pendingMu.Unlock()

	if !ok {
		m.log.Debug().Str("guild", f.GuildID).Uint64("request", f.RequestID).Msg("stale status reply")
		return
	}
	ch <- StatusReply{Status: f.Status, Position: time.Duration(f.PositionMs) * time.Millisecond}
}
