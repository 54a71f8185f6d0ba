package jobmgr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) report(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, s)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func TestStartAsync_StopAndWait(t *testing.T) {
	rec := &recorder{}
	m := NewManager(context.Background(), rec.report)

	started := make(chan struct{})
	require.NoError(t, m.StartAsync("renderer", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	<-started

	assert.Equal(t, []string{"renderer"}, m.List())
	assert.Equal(t, "Running jobs: renderer", m.Status())
	assert.Error(t, m.StartAsync("renderer", func(context.Context) error { return nil }))

	require.NoError(t, m.Stop("renderer"))
	m.Wait()

	assert.Empty(t, m.List())
	assert.Equal(t, "No jobs are running.", m.Status())
	assert.Equal(t, []string{"running:renderer", "done:renderer"}, rec.list())
	assert.Error(t, m.Stop("renderer"))
}

func TestStartAsync_ReportsError(t *testing.T) {
	rec := &recorder{}
	m := NewManager(nil, rec.report)

	require.NoError(t, m.StartAsync("sync", func(context.Context) error {
		return errors.New("boom")
	}))
	m.Wait()

	assert.Equal(t, []string{"running:sync", "error:sync:boom"}, rec.list())
	assert.Empty(t, m.List())
}

func TestParentCancelStopsJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(ctx, nil)

	for _, name := range []string{"b", "a"} {
		require.NoError(t, m.StartAsync(name, func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}))
	}
	assert.Equal(t, []string{"a", "b"}, m.List())

	cancel()
	done := make(chan struct{})
	go func() { m.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("jobs did not stop with parent")
	}
}

func TestStopAll(t *testing.T) {
	m := NewManager(context.Background(), nil)
	require.NoError(t, m.StartAsync("x", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}))

	m.StopAll()
	m.Wait()
	assert.Empty(t, m.List())
}

func TestStartSync(t *testing.T) {
	rec := &recorder{}
	m := NewManager(context.Background(), rec.report)

	err := m.StartSync("once", func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, []string{"running:once", "done:once"}, rec.list())
}
