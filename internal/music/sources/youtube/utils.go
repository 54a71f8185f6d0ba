package youtube

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	errUnsupportedScheme = errors.New("unsupported proxy scheme")
	ErrNotVideoURL       = errors.New("not a YouTube video link")

	youtubeURLPattern = regexp.MustCompile(`^(?:https?://)?(?:www\.|m\.|music\.)?(youtube\.com|youtu\.be)/\S+`)
	videoIDPattern    = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
)

func isYouTubeURL(input string) bool {
	return youtubeURLPattern.MatchString(input)
}

// videoID extracts the video id from watch, short, shorts and live links.
func videoID(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrNotVideoURL
	}

	var id string
	switch strings.TrimPrefix(u.Hostname(), "www.") {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/shorts/"), strings.HasPrefix(u.Path, "/live/"), strings.HasPrefix(u.Path, "/embed/"):
			parts := strings.Split(strings.Trim(u.Path, "/"), "/")
			if len(parts) == 2 {
				id = parts[1]
			}
		}
	}

	if !videoIDPattern.MatchString(id) {
		return "", ErrNotVideoURL
	}
	return id, nil
}

// playlistID returns the list parameter of pure playlist links. Watch links that
// merely carry a list play the single video.
func playlistID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Path != "/playlist" {
		return ""
	}
	return u.Query().Get("list")
}

func watchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

func channelURL(channelID string) string {
	if channelID == "" {
		return ""
	}
	return "https://www.youtube.com/channel/" + channelID
}

// parseClock parses search result durations such as "3:20" or "1:05:20".
func parseClock(s string) (time.Duration, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	var total time.Duration
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + time.Duration(n)
	}
	return total * time.Second, true
}
