// Package spotify turns Spotify track links into catalog tracks played from YouTube.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/keshon/domme-music/internal/music/sources"
	"github.com/keshon/domme-music/internal/music/track"
	"github.com/keshon/domme-music/pkg/retrylimit"
	"github.com/rs/zerolog"
	libspotify "github.com/zmb3/spotify"
	"golang.org/x/oauth2/clientcredentials"
)

var (
	ErrNotTrack = errors.New("only Spotify track links are supported")

	trackPathPattern = regexp.MustCompile(`^/(?:intl-[a-z]+/)?track/([A-Za-z0-9]+)$`)
	descPattern      = regexp.MustCompile(`<meta property="og:description" content="([^"]*)"`)
)

type oembed struct {
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Catalog looks tracks up in the Spotify Web API. *libspotify.Client implements it.
type Catalog interface {
	GetTrack(id libspotify.ID) (*libspotify.FullTrack, error)
}

// NewCatalog returns a Web API client authorized with client credentials,
// or nil when either credential is missing.
func NewCatalog(clientID, clientSecret string) Catalog {
	if clientID == "" || clientSecret == "" {
		return nil
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     libspotify.TokenURL,
	}
	client := libspotify.NewClient(cfg.Client(context.Background()))
	return &client
}

type Source struct {
	baseURL  string
	client   *http.Client
	catalog  Catalog
	searcher track.VideoSearcher
	retry    retrylimit.RetryConfig
	log      zerolog.Logger
}

// New returns a source whose tracks are matched to videos through searcher.
// Track details come from catalog; a nil catalog reads the public oEmbed endpoint instead.
func New(searcher track.VideoSearcher, catalog Catalog, log zerolog.Logger) *Source {
	retry := retrylimit.DefaultRetryConfig()
	retry.MaxAttempts = 3
	retry.Logger = log
	return &Source{
		baseURL:  "https://open.spotify.com",
		client:   &http.Client{Timeout: 10 * time.Second},
		catalog:  catalog,
		searcher: searcher,
		retry:    retry,
		log:      log,
	}
}

func (s *Source) Name() string { return sources.SourceSpotify }

func (s *Source) Match(input string) bool {
	u, err := url.Parse(input)
	return err == nil && u.Hostname() == "open.spotify.com"
}

func (s *Source) Resolve(ctx context.Context, input string) ([]track.Track, error) {
	u, err := url.Parse(strings.TrimSpace(input))
	if err != nil {
		return nil, err
	}
	m := trackPathPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return nil, ErrNotTrack
	}
	id := m[1]

	var info track.CatalogInfo
	if s.catalog != nil {
		info, err = s.fromCatalog(ctx, id)
	} else {
		info, err = s.fromOEmbed(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	info.Service = "Spotify"
	return []track.Track{track.NewCatalogTrack(info, s.searcher)}, nil
}

func (s *Source) fromCatalog(ctx context.Context, id string) (track.CatalogInfo, error) {
	var ft *libspotify.FullTrack
	err := retrylimit.WithRetryConfig(ctx, func() error {
		var err error
		ft, err = s.catalog.GetTrack(libspotify.ID(id))
		var apiErr libspotify.Error
		if errors.As(err, &apiErr) {
			return &retrylimit.StatusError{URL: "spotify track " + id, Code: apiErr.Status}
		}
		return err
	}, nil, s.retry)
	if err != nil {
		var status *retrylimit.StatusError
		if errors.As(err, &status) && (status.Code == http.StatusNotFound || status.Code == http.StatusBadRequest) {
			return track.CatalogInfo{}, sources.ErrNoResult
		}
		return track.CatalogInfo{}, fmt.Errorf("spotify track %s: %w", id, err)
	}
	if ft == nil || ft.Name == "" {
		return track.CatalogInfo{}, sources.ErrNoResult
	}

	names := make([]string, 0, len(ft.Artists))
	for _, a := range ft.Artists {
		names = append(names, a.Name)
	}
	info := track.CatalogInfo{
		Title:      ft.Name,
		Artist:     strings.Join(names, ", "),
		CatalogURL: "https://open.spotify.com/track/" + id,
		Length:     time.Duration(ft.Duration) * time.Millisecond,
	}
	if len(ft.Album.Images) > 0 {
		info.Artwork = ft.Album.Images[0].URL
	}
	return info, nil
}

// fromOEmbed has no duration; the artist comes from the track page.
func (s *Source) fromOEmbed(ctx context.Context, id string) (track.CatalogInfo, error) {
	trackURL := s.baseURL + "/track/" + id

	var meta oembed
	body, err := s.get(ctx, s.baseURL+"/oembed?url="+url.QueryEscape(trackURL))
	if err != nil {
		return track.CatalogInfo{}, err
	}
	if err := json.Unmarshal(body, &meta); err != nil {
		return track.CatalogInfo{}, fmt.Errorf("decode oembed: %w", err)
	}
	if meta.Title == "" {
		return track.CatalogInfo{}, sources.ErrNoResult
	}

	artist := ""
	if page, err := s.get(ctx, trackURL); err == nil {
		artist = artistFromPage(page)
	} else {
		s.log.Debug().Err(err).Str("track", id).Msg("track page unavailable")
	}

	return track.CatalogInfo{
		Title:      meta.Title,
		Artist:     artist,
		CatalogURL: trackURL,
		Artwork:    meta.ThumbnailURL,
	}, nil
}

// artistFromPage reads "Artist · Album · Song · 2001" style descriptions.
func artistFromPage(page []byte) string {
	m := descPattern.FindSubmatch(page)
	if m == nil {
		return ""
	}
	desc := html.UnescapeString(string(m[1]))
	artist, _, _ := strings.Cut(desc, " · ")
	return strings.TrimSpace(artist)
}

func (s *Source) get(ctx context.Context, endpoint string) ([]byte, error) {
	var body []byte
	err := retrylimit.WithRetryConfig(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return retrylimit.Fatal(err)
		}
		req.Header.Set("User-Agent", "Mozilla/5.0")
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return &retrylimit.StatusError{URL: endpoint, Code: resp.StatusCode}
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, 2<<20))
		return err
	}, nil, s.retry)
	return body, err
}
