// Package upload turns uploaded files and direct media links into tracks.
package upload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/keshon/domme-music/internal/music/sources"
	"github.com/keshon/domme-music/internal/music/track"
	"github.com/keshon/domme-music/pkg/util"
	"github.com/rs/zerolog"
)

const probeWorkers = 4

var validContentTypes = []string{
	"audio/",
	"video/",
	"application/ogg",
	"application/octet-stream",
}

var mediaExtensions = map[string]bool{
	".mp3": true, ".ogg": true, ".opus": true, ".flac": true, ".wav": true,
	".m4a": true, ".aac": true, ".webm": true, ".mp4": true, ".mkv": true,
}

type Source struct {
	prober Prober
	client *http.Client
	log    zerolog.Logger
}

func New(prober Prober, log zerolog.Logger) *Source {
	return &Source{
		prober: prober,
		client: &http.Client{
			Timeout: 5 * time.Second,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		log: log,
	}
}

func (s *Source) Name() string { return sources.SourceUpload }

// Match accepts links to media files.
func (s *Source) Match(input string) bool {
	u, err := url.Parse(input)
	if err != nil || !sources.IsURL(input) {
		return false
	}
	return mediaExtensions[strings.ToLower(path.Ext(u.Path))]
}

// Resolve checks that a direct link serves media and probes its length.
func (s *Source) Resolve(ctx context.Context, input string) ([]track.Track, error) {
	contentType, finalURL, err := s.fetchContentType(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("fetch content type: %w", err)
	}
	if !isAllowedType(contentType) && !s.Match(finalURL) {
		return nil, fmt.Errorf("not a media file: %q", contentType)
	}

	u, _ := url.Parse(input)
	att := media{fileName: path.Base(u.Path), url: input, direct: true}
	return []track.Track{s.build(ctx, att)}, nil
}

type media struct {
	fileName string
	url      string
	direct   bool
}

// FromAttachments keeps the media attachments and probes them in parallel,
// preserving upload order. A failed probe leaves the duration unknown.
func (s *Source) FromAttachments(ctx context.Context, atts []sources.Attachment) ([]track.Track, error) {
	var files []sources.Attachment
	for _, a := range atts {
		if isAllowedType(a.ContentType) || mediaExtensions[strings.ToLower(path.Ext(a.FileName))] {
			files = append(files, a)
		}
	}
	if len(files) == 0 {
		return nil, sources.ErrNoResult
	}

	type job struct {
		index int
		att   sources.Attachment
	}
	jobs := make([]job, len(files))
	for i, a := range files {
		jobs[i] = job{index: i, att: a}
	}

	out := make([]track.Track, len(files))
	err := util.Parallel(ctx, jobs, probeWorkers, func(ctx context.Context, j job) error {
		out[j.index] = s.build(ctx, media{fileName: j.att.FileName, url: j.att.URL})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Source) build(ctx context.Context, m media) track.Track {
	length, err := s.prober.Probe(ctx, m.url)
	if err != nil {
		s.log.Warn().Err(err).Str("file", m.fileName).Msg("probe failed, duration unknown")
	}

	kind := track.SourceFile
	stable := m.url
	if m.direct {
		kind = track.SourceURL
	} else {
		// attachment links carry expiring signatures
		stable = ""
	}

	return track.NewUploadedFile(track.UploadInfo{
		FileName: m.fileName,
		URL:      stable,
		Length:   length,
		Source:   track.Source{Kind: kind, URL: m.url, Title: m.fileName},
	})
}

func (s *Source) fetchContentType(ctx context.Context, rawURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err == nil && resp.StatusCode < 400 {
		resp.Body.Close()
		return resp.Header.Get("Content-Type"), resp.Request.URL.String(), nil
	}
	if resp != nil {
		resp.Body.Close()
	}

	// some hosts reject HEAD
	req.Method = http.MethodGet
	resp, err = s.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	_, _ = io.CopyN(io.Discard, resp.Body, 512)

	if resp.StatusCode >= 400 {
		return "", "", fmt.Errorf("%s: status %d", rawURL, resp.StatusCode)
	}
	return resp.Header.Get("Content-Type"), resp.Request.URL.String(), nil
}

func isAllowedType(contentType string) bool {
	contentType, _, _ = strings.Cut(contentType, ";")
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return false
	}
	for _, allowed := range validContentTypes {
		if strings.HasPrefix(contentType, allowed) {
			return true
		}
	}
	return false
}
