package spotify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/keshon/domme-music/internal/music/track"
	"github.com/keshon/domme-music/internal/music/sources"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	libspotify "github.com/zmb3/spotify"
)

type fakeSearcher struct{ query string }

func (f *fakeSearcher) SearchVideo(_ context.Context, query string) (track.VideoHit, error) {
	f.query = query
	return track.VideoHit{ID: "dQw4w9WgXcQ", URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}, nil
}

func testSource(t *testing.T, page string) (*Source, *fakeSearcher) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oembed", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("url"), "/track/4uLU6hMCjMI75M1A2tKUQC")
		_, _ = w.Write([]byte(`{"title":"Never Gonna Give You Up","thumbnail_url":"https://i.scdn.co/image/x"}`))
	})
	mux.HandleFunc("/track/4uLU6hMCjMI75M1A2tKUQC", func(w http.ResponseWriter, _ *http.Request) {
		if page == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(page))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	searcher := &fakeSearcher{}
	s := New(searcher, nil, zerolog.Nop())
	s.baseURL = srv.URL
	s.retry.InitialDelay = time.Millisecond
	return s, searcher
}

func TestMatch(t *testing.T) {
	s := New(nil, nil, zerolog.Nop())
	assert.True(t, s.Match("https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC"))
	assert.False(t, s.Match("https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
}

func TestResolve_Track(t *testing.T) {
	s, searcher := testSource(t, `<html><meta property="og:description" content="Rick Astley &middot; Whenever You Need Somebody · Song · 1987"></html>`)

	tracks, err := s.Resolve(context.Background(), "https://open.spotify.com/intl-de/track/4uLU6hMCjMI75M1A2tKUQC?si=abc")
	require.NoError(t, err)
	require.Len(t, tracks, 1)

	tr := tracks[0]
	assert.Equal(t, track.KindCatalog, tr.Kind())
	assert.Equal(t, "Never Gonna Give You Up", tr.Title())
	assert.Equal(t, "https://i.scdn.co/image/x", tr.CoverArtURL())

	src, err := tr.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", src.URL)
	assert.Equal(t, "Never Gonna Give You Up Rick Astley", searcher.query)
}

func TestResolve_PageUnavailable(t *testing.T) {
	s, searcher := testSource(t, "")

	tracks, err := s.Resolve(context.Background(), "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC")
	require.NoError(t, err)

	_, err = tracks[0].Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Never Gonna Give You Up", searcher.query)
}

func TestResolve_NotATrack(t *testing.T) {
	s := New(nil, nil, zerolog.Nop())
	_, err := s.Resolve(context.Background(), "https://open.spotify.com/album/1234")
	assert.ErrorIs(t, err, ErrNotTrack)
}

func TestArtistFromPage(t *testing.T) {
	assert.Equal(t, "Daft Punk", artistFromPage([]byte(`<meta property="og:description" content="Daft Punk · Discovery · Song · 2001">`)))
	assert.Empty(t, artistFromPage([]byte(`<html></html>`)))
}

type fakeCatalog struct {
	calls int
	fails []error
	track *libspotify.FullTrack
}

func (f *fakeCatalog) GetTrack(id libspotify.ID) (*libspotify.FullTrack, error) {
	f.calls++
	if len(f.fails) > 0 {
		err := f.fails[0]
		f.fails = f.fails[1:]
		return nil, err
	}
	if f.track == nil || string(id) != string(f.track.ID) {
		return nil, libspotify.Error{Status: http.StatusNotFound, Message: "non existing id"}
	}
	return f.track, nil
}

func catalogSource(c *fakeCatalog) (*Source, *fakeSearcher) {
	searcher := &fakeSearcher{}
	s := New(searcher, c, zerolog.Nop())
	s.retry.InitialDelay = time.Millisecond
	s.retry.Jitter = false
	return s, searcher
}

func rickRoll() *libspotify.FullTrack {
	ft := &libspotify.FullTrack{}
	ft.ID = "4uLU6hMCjMI75M1A2tKUQC"
	ft.Name = "Never Gonna Give You Up"
	ft.Duration = 213573
	ft.Artists = []libspotify.SimpleArtist{{Name: "Rick Astley"}}
	ft.Album.Images = []libspotify.Image{{URL: "https://i.scdn.co/image/big"}, {URL: "https://i.scdn.co/image/small"}}
	return ft
}

func TestResolve_Catalog(t *testing.T) {
	s, searcher := catalogSource(&fakeCatalog{track: rickRoll()})

	tracks, err := s.Resolve(context.Background(), "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=abc")
	require.NoError(t, err)
	require.Len(t, tracks, 1)

	tr := tracks[0]
	assert.Equal(t, "Never Gonna Give You Up", tr.Title())
	assert.Equal(t, 213573*time.Millisecond, tr.Duration())
	assert.Equal(t, "Rick Astley (via Spotify)", tr.Author())
	assert.Equal(t, "https://i.scdn.co/image/big", tr.CoverArtURL())
	assert.Equal(t, "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", tr.URL())

	_, err = tr.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Never Gonna Give You Up Rick Astley", searcher.query)
}

func TestResolve_CatalogUnknownTrack(t *testing.T) {
	c := &fakeCatalog{track: rickRoll()}
	s, _ := catalogSource(c)

	_, err := s.Resolve(context.Background(), "https://open.spotify.com/track/0000000000000000000000")
	assert.ErrorIs(t, err, sources.ErrNoResult)
	assert.Equal(t, 1, c.calls)
}

func TestResolve_CatalogRetriesServerErrors(t *testing.T) {
	c := &fakeCatalog{track: rickRoll(), fails: []error{libspotify.Error{Status: http.StatusBadGateway, Message: "bad gateway"}}}
	s, _ := catalogSource(c)

	tracks, err := s.Resolve(context.Background(), "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC")
	require.NoError(t, err)
	assert.Equal(t, "Never Gonna Give You Up", tracks[0].Title())
	assert.Equal(t, 2, c.calls)
}

func TestNewCatalog_NeedsBothCredentials(t *testing.T) {
	assert.Nil(t, NewCatalog("", ""))
	assert.Nil(t, NewCatalog("id", ""))
	assert.NotNil(t, NewCatalog("id", "secret"))
}
