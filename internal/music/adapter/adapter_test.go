package adapter

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/keshon/domme-music/internal/music/track"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	in        chan Frame
	out       chan Frame
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan Frame, 16),
		out:    make(chan Frame, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadJSON(v any) error {
	select {
	case f := <-c.in:
		*(v.(*Frame)) = f
		return nil
	case <-c.closed:
		return io.EOF
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.out <- v.(Frame)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) next(t *testing.T) Frame {
	t.Helper()
	select {
	case f := <-c.out:
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame written")
		return Frame{}
	}
}

func serve(t *testing.T) (*Mux, *fakeConn, <-chan error) {
	t.Helper()
	mux := NewMux(zerolog.Nop())
	conn := newFakeConn()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan error, 1)
	go func() { done <- mux.Serve(ctx, conn) }()
	require.Eventually(t, mux.Connected, time.Second, time.Millisecond)
	return mux, conn, done
}

func connected(t *testing.T, mux *Mux, guildID string) *Client {
	t.Helper()
	c := mux.Client(guildID)
	require.NoError(t, c.Connect())
	return c
}

func TestClient_ConnectOnce(t *testing.T) {
	mux := NewMux(zerolog.Nop())
	c := mux.Client("g1")

	require.NoError(t, c.Connect())
	assert.ErrorIs(t, c.Connect(), ErrAlreadyConnected)
}

func TestClient_SendBeforeConnect(t *testing.T) {
	mux, _, _ := serve(t)
	c := mux.Client("g1")

	_, err := c.Send(OpStop, "", nil)
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClient_SendWithoutLink(t *testing.T) {
	mux := NewMux(zerolog.Nop())
	c := connected(t, mux, "g1")

	assert.ErrorIs(t, c.Stop(), ErrNotConnected)
}

func TestClient_RequestIDsIncreasePerGuild(t *testing.T) {
	mux, conn, _ := serve(t)
	a := connected(t, mux, "a")
	b := connected(t, mux, "b")

	id1, err := a.Send(OpPause, "", nil)
	require.NoError(t, err)
	id2, err := a.Send(OpResume, "", nil)
	require.NoError(t, err)
	idB, err := b.Send(OpStop, "", nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), id1)
	assert.Equal(t, uint64(2), id2)
	assert.Equal(t, uint64(1), idB, "counters are per client")

	f := conn.next(t)
	assert.Equal(t, OpPause, f.Op)
	assert.Equal(t, "a", f.GuildID)
}

func TestClient_JoinCarriesChannel(t *testing.T) {
	mux, conn, _ := serve(t)
	c := connected(t, mux, "g1")

	require.NoError(t, c.Join("voice-1"))
	f := conn.next(t)
	assert.Equal(t, OpJoin, f.Op)
	assert.Equal(t, "voice-1", f.ChannelID)
}

func TestClient_StatusCorrelatesAcrossGuilds(t *testing.T) {
	mux, conn, _ := serve(t)
	a := connected(t, mux, "a")
	b := connected(t, mux, "b")

	type result struct {
		reply StatusReply
		err   error
	}
	resA := make(chan result, 1)
	resB := make(chan result, 1)
	go func() { r, err := a.Status(context.Background()); resA <- result{r, err} }()
	reqA := conn.next(t)
	go func() { r, err := b.Status(context.Background()); resB <- result{r, err} }()
	reqB := conn.next(t)

	// both guilds used request id 1; answer out of order
	assert.Equal(t, reqA.RequestID, reqB.RequestID)
	conn.in <- Frame{Op: OpStatus, GuildID: "b", RequestID: reqB.RequestID, Status: StatusPaused}
	conn.in <- Frame{Op: OpStatus, GuildID: "a", RequestID: reqA.RequestID, Status: StatusPlaying, PositionMs: 1500}

	ra := <-resA
	rb := <-resB
	require.NoError(t, ra.err)
	require.NoError(t, rb.err)
	assert.Equal(t, StatusPlaying, ra.reply.Status)
	assert.Equal(t, 1500*time.Millisecond, ra.reply.Position)
	assert.Equal(t, StatusPaused, rb.reply.Status)
}

func TestClient_StatusContextTimeout(t *testing.T) {
	mux, _, _ := serve(t)
	c := connected(t, mux, "g1")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Status(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_StatusFailsWhenLinkDrops(t *testing.T) {
	mux, conn, done := serve(t)
	c := connected(t, mux, "g1")

	errc := make(chan error, 1)
	go func() { _, err := c.Status(context.Background()); errc <- err }()
	conn.next(t)

	_ = conn.Close()
	assert.ErrorIs(t, <-errc, ErrLinkClosed)
	assert.Error(t, <-done)
	assert.False(t, mux.Connected())
}

func TestClient_EndFiresOnce(t *testing.T) {
	mux, conn, _ := serve(t)
	c := connected(t, mux, "g1")

	var fired atomic.Int32
	id, err := c.Play(track.Source{Kind: track.SourceURL, URL: "https://x"}, func() { fired.Add(1) })
	require.NoError(t, err)

	play := conn.next(t)
	assert.Equal(t, OpPlay, play.Op)
	require.NotNil(t, play.Source)
	assert.Equal(t, "https://x", play.Source.URL)

	conn.in <- Frame{Op: OpEnd, GuildID: "g1", RequestID: id}
	conn.in <- Frame{Op: OpEnd, GuildID: "g1", RequestID: id}

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestClient_ForgottenEndIgnored(t *testing.T) {
	mux, conn, _ := serve(t)
	c := connected(t, mux, "g1")

	var stale, fresh atomic.Int32
	old, err := c.Play(track.Source{URL: "https://old"}, func() { stale.Add(1) })
	require.NoError(t, err)
	c.Forget(old)
	cur, err := c.Play(track.Source{URL: "https://new"}, func() { fresh.Add(1) })
	require.NoError(t, err)

	conn.in <- Frame{Op: OpEnd, GuildID: "g1", RequestID: old}
	conn.in <- Frame{Op: OpEnd, GuildID: "g1", RequestID: cur}

	assert.Eventually(t, func() bool { return fresh.Load() == 1 }, time.Second, time.Millisecond)
	assert.Zero(t, stale.Load())
}

func TestClient_EndWithoutRequestIDUsesLatestPlay(t *testing.T) {
	mux, conn, _ := serve(t)
	c := connected(t, mux, "g1")

	var fired atomic.Int32
	_, err := c.Play(track.Source{URL: "https://x"}, func() { fired.Add(1) })
	require.NoError(t, err)

	conn.in <- Frame{Op: OpEnd, GuildID: "g1"}
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)
}

func TestMux_EventsIsolatedByGuild(t *testing.T) {
	mux, conn, _ := serve(t)
	a := connected(t, mux, "a")
	b := connected(t, mux, "b")

	var endA, endB atomic.Int32
	idA, err := a.Play(track.Source{URL: "https://a"}, func() { endA.Add(1) })
	require.NoError(t, err)
	_, err = b.Play(track.Source{URL: "https://b"}, func() { endB.Add(1) })
	require.NoError(t, err)

	// same request id, other guild
	conn.in <- Frame{Op: OpEnd, GuildID: "b", RequestID: idA}

	assert.Eventually(t, func() bool { return endB.Load() == 1 }, time.Second, time.Millisecond)
	assert.Zero(t, endA.Load())
}

func TestClient_ErrorEventHook(t *testing.T) {
	mux, conn, _ := serve(t)
	c := connected(t, mux, "g1")

	got := make(chan *TransportError, 1)
	c.OnError(func(e *TransportError) { got <- e })

	conn.in <- Frame{Op: OpError, GuildID: "g1", Code: 4006, Message: "session invalid"}

	select {
	case e := <-got:
		assert.Equal(t, 4006, e.Code)
		assert.Contains(t, e.Error(), "session invalid")
	case <-time.After(time.Second):
		t.Fatal("error hook not called")
	}
}

func TestClient_CloseStopsDelivery(t *testing.T) {
	mux, conn, _ := serve(t)
	c := connected(t, mux, "g1")

	var fired atomic.Int32
	id, err := c.Play(track.Source{URL: "https://x"}, func() { fired.Add(1) })
	require.NoError(t, err)
	c.Close()

	conn.in <- Frame{Op: OpEnd, GuildID: "g1", RequestID: id}
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, fired.Load())
}
