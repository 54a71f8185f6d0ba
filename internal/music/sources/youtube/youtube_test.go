package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/keshon/domme-music/internal/music/track"
	youtube "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoID(t *testing.T) {
	for in, want := range map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":             "dQw4w9WgXcQ",
		"https://youtube.com/watch?v=dQw4w9WgXcQ&t=42":            "dQw4w9WgXcQ",
		"https://music.youtube.com/watch?v=dQw4w9WgXcQ&list=RDAM": "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ?si=abc":                     "dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ":              "dQw4w9WgXcQ",
		"https://www.youtube.com/live/dQw4w9WgXcQ":                "dQw4w9WgXcQ",
	} {
		got, err := videoID(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"https://www.youtube.com/watch?v=short", "https://example.com/watch?v=dQw4w9WgXcQ", "https://www.youtube.com/"} {
		_, err := videoID(in)
		assert.ErrorIs(t, err, ErrNotVideoURL, in)
	}
}

func TestPlaylistID(t *testing.T) {
	assert.Equal(t, "PL123", playlistID("https://www.youtube.com/playlist?list=PL123"))
	assert.Empty(t, playlistID("https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL123"))
}

func TestIsYouTubeURL(t *testing.T) {
	assert.True(t, isYouTubeURL("https://youtu.be/dQw4w9WgXcQ"))
	assert.True(t, isYouTubeURL("https://music.youtube.com/watch?v=dQw4w9WgXcQ"))
	assert.False(t, isYouTubeURL("https://open.spotify.com/track/abc"))
}

func TestParseClock(t *testing.T) {
	d, ok := parseClock("3:20")
	assert.True(t, ok)
	assert.Equal(t, 200*time.Second, d)

	d, ok = parseClock("1:05:20")
	assert.True(t, ok)
	assert.Equal(t, time.Hour+5*time.Minute+20*time.Second, d)

	for _, in := range []string{"", "LIVE", "12", "1:2:3:4", "a:10"} {
		_, ok := parseClock(in)
		assert.False(t, ok, in)
	}
}

func fixed(results []result, err error) searchFunc {
	return func(context.Context, string) ([]result, error) { return results, err }
}

func TestSearch_FirstValidResult(t *testing.T) {
	s := &Search{
		video: fixed([]result{
			{ID: "bad"},
			{ID: "dQw4w9WgXcQ", Title: "Never", Channel: "Rick", Duration: "3:33"},
		}, nil),
		log: zerolog.Nop(),
	}

	tracks, err := s.Search(context.Background(), "never gonna")
	require.NoError(t, err)
	require.Len(t, tracks, 1)

	v := tracks[0]
	assert.Equal(t, "Never", v.Title())
	assert.Equal(t, 213*time.Second, v.Duration())
	assert.False(t, v.IsLive())
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", v.URL())
}

func TestSearch_LiveWithoutDuration(t *testing.T) {
	s := &Search{video: fixed([]result{{ID: "dQw4w9WgXcQ", Title: "Radio"}}, nil), log: zerolog.Nop()}

	tracks, err := s.Search(context.Background(), "lofi radio")
	require.NoError(t, err)
	assert.True(t, tracks[0].IsLive())
}

func TestSearch_NoResults(t *testing.T) {
	s := &Search{video: fixed(nil, nil), log: zerolog.Nop()}
	_, err := s.Search(context.Background(), "nothing")
	assert.ErrorIs(t, err, track.ErrNoMatch)
}

func TestSearchVideo_PrefersMusic(t *testing.T) {
	s := &Search{
		music: fixed([]result{{ID: "musicmusic1", Title: "M"}}, nil),
		video: fixed([]result{{ID: "videovideo1", Title: "V"}}, nil),
	}
	hit, err := s.SearchVideo(context.Background(), "song band")
	require.NoError(t, err)
	assert.Equal(t, "musicmusic1", hit.ID)
	assert.Equal(t, "https://www.youtube.com/watch?v=musicmusic1", hit.URL)
}

func TestSearchVideo_FallsBackToVideo(t *testing.T) {
	s := &Search{
		music: fixed(nil, errors.New("ytmusic down")),
		video: fixed([]result{{ID: "videovideo1", Title: "V"}}, nil),
	}
	hit, err := s.SearchVideo(context.Background(), "song band")
	require.NoError(t, err)
	assert.Equal(t, "videovideo1", hit.ID)
}

func TestSearchVideo_NothingFound(t *testing.T) {
	s := &Search{music: fixed(nil, nil), video: fixed(nil, nil)}
	_, err := s.SearchVideo(context.Background(), "obscure")
	assert.ErrorIs(t, err, track.ErrNoMatch)

	boom := errors.New("boom")
	s = &Search{music: fixed(nil, boom), video: fixed(nil, boom)}
	_, err = s.SearchVideo(context.Background(), "obscure")
	assert.ErrorIs(t, err, boom)
}

func testDataAPI(t *testing.T, handler http.HandlerFunc) *DataAPI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	d := NewDataAPI("key")
	d.baseURL = srv.URL
	d.retry.InitialDelay = time.Millisecond
	d.retry.Jitter = false
	return d
}

func TestDataAPI_Enrich(t *testing.T) {
	d := testDataAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/videos", r.URL.Path)
		assert.Equal(t, "key", r.URL.Query().Get("key"))
		assert.Equal(t, "aaaaaaaaaaa,bbbbbbbbbbb", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`{"items":[
			{"id":"aaaaaaaaaaa","snippet":{"title":"A","channelTitle":"Chan","channelId":"UC1","liveBroadcastContent":"none",
			 "thumbnails":{"high":{"url":"https://img/a.jpg"}}},"contentDetails":{"duration":"P1DT2H"}},
			{"id":"bbbbbbbbbbb","snippet":{"title":"B","liveBroadcastContent":"live"},"contentDetails":{"duration":"P0D"}}
		]}`))
	})

	infos := []track.VideoInfo{{ID: "aaaaaaaaaaa", Length: time.Minute}, {ID: "bbbbbbbbbbb"}}
	require.NoError(t, d.Enrich(context.Background(), infos))

	assert.Equal(t, "P1DT2H", infos[0].ISODuration)
	assert.Zero(t, infos[0].Length)
	assert.Equal(t, "A", infos[0].Title)
	assert.Equal(t, "https://www.youtube.com/channel/UC1", infos[0].ChannelURL)
	assert.Equal(t, "https://img/a.jpg", infos[0].Thumbnail)
	assert.True(t, infos[1].Live)

	v, err := track.NewRemoteVideo(infos[0])
	require.NoError(t, err)
	assert.Equal(t, 26*time.Hour, v.Duration())
}

func TestDataAPI_ClientErrorNotRetried(t *testing.T) {
	calls := 0
	d := testDataAPI(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	})

	err := d.Enrich(context.Background(), []track.VideoInfo{{ID: "aaaaaaaaaaa"}})
	assert.ErrorContains(t, err, "403")
	assert.Equal(t, 1, calls)
}

func TestDataAPI_NilIsNoop(t *testing.T) {
	var d *DataAPI
	assert.Nil(t, NewDataAPI(""))
	assert.NoError(t, d.Enrich(context.Background(), []track.VideoInfo{{ID: "x"}}))
}

type fakeClient struct {
	video    *youtube.Video
	playlist *youtube.Playlist
	gotURL   string
}

func (f *fakeClient) GetVideoContext(_ context.Context, url string) (*youtube.Video, error) {
	f.gotURL = url
	if f.video == nil {
		return nil, errors.New("video unavailable")
	}
	return f.video, nil
}

func (f *fakeClient) GetPlaylistContext(_ context.Context, url string) (*youtube.Playlist, error) {
	f.gotURL = url
	if f.playlist == nil {
		return nil, errors.New("playlist unavailable")
	}
	return f.playlist, nil
}

func TestSource_Video(t *testing.T) {
	c := &fakeClient{video: &youtube.Video{
		ID:         "dQw4w9WgXcQ",
		Title:      "Never",
		Author:     "Rick",
		ChannelID:  "UC1",
		Duration:   213 * time.Second,
		Thumbnails: youtube.Thumbnails{{URL: "small"}, {URL: "large"}},
	}}
	s := New(c, nil, nil, zerolog.Nop())

	tracks, err := s.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ?t=3")
	require.NoError(t, err)
	require.Len(t, tracks, 1)

	assert.Equal(t, "dQw4w9WgXcQ", c.gotURL)
	assert.Equal(t, "Never", tracks[0].Title())
	assert.Equal(t, "[Rick](https://www.youtube.com/channel/UC1)", tracks[0].Author())
	assert.Equal(t, "large", tracks[0].CoverArtURL())
	assert.Equal(t, 213*time.Second, tracks[0].Duration())
}

func TestSource_LiveVideo(t *testing.T) {
	c := &fakeClient{video: &youtube.Video{ID: "dQw4w9WgXcQ", Title: "Live", HLSManifestURL: "https://manifest"}}
	s := New(c, nil, nil, zerolog.Nop())

	tracks, err := s.Resolve(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.True(t, tracks[0].IsLive())
	assert.Zero(t, tracks[0].Duration())
}

func TestSource_Playlist(t *testing.T) {
	entries := []*youtube.PlaylistEntry{
		{ID: "aaaaaaaaaaa", Title: "A", Duration: time.Minute},
		nil,
		{ID: "bbbbbbbbbbb", Title: "B", Duration: 2 * time.Minute},
		{ID: "ccccccccccc", Title: "C", Duration: 3 * time.Minute},
	}
	c := &fakeClient{playlist: &youtube.Playlist{ID: "PL1", Videos: entries}}
	s := New(c, nil, nil, zerolog.Nop())
	s.playlistLimit = 3

	tracks, err := s.Resolve(context.Background(), "https://www.youtube.com/playlist?list=PL1")
	require.NoError(t, err)

	var titles []string
	for _, tr := range tracks {
		titles = append(titles, tr.Title())
	}
	assert.Equal(t, []string{"A", "B"}, titles)
}

func TestSource_PlaylistEntryWithoutDurationIsNotLive(t *testing.T) {
	entries := []*youtube.PlaylistEntry{
		{ID: "aaaaaaaaaaa", Title: "A", Duration: time.Minute},
		{ID: "bbbbbbbbbbb", Title: "B"},
	}
	s := New(&fakeClient{playlist: &youtube.Playlist{ID: "PL1", Videos: entries}}, nil, nil, zerolog.Nop())

	tracks, err := s.Resolve(context.Background(), "https://www.youtube.com/playlist?list=PL1")
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.False(t, tracks[0].IsLive())
	assert.False(t, tracks[1].IsLive())
}

func TestSource_InvalidLink(t *testing.T) {
	s := New(&fakeClient{}, nil, nil, zerolog.Nop())
	_, err := s.Resolve(context.Background(), "https://www.youtube.com/feed/trending")
	assert.ErrorIs(t, err, ErrNotVideoURL)
}

func TestProxyTransport(t *testing.T) {
	for _, p := range []string{"http://proxy:8080", "socks5://user:pw@proxy:1080", "socks4://proxy:1080"} {
		tr, err := proxyTransport(p)
		require.NoError(t, err, p)
		assert.NotNil(t, tr, p)
	}
	_, err := proxyTransport("ftp://proxy")
	assert.ErrorIs(t, err, errUnsupportedScheme)
}

func TestNewClient_BadProxyFallsBack(t *testing.T) {
	c := NewClient("ftp://proxy", zerolog.Nop())
	require.NotNil(t, c.HTTPClient)
	assert.Nil(t, c.HTTPClient.Transport)
	assert.True(t, strings.HasPrefix(redact("socks5://user:pw@proxy:1080"), "socks5://user:xxxxx@"))
}
