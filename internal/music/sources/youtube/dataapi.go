package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/keshon/domme-music/internal/music/track"
	"github.com/keshon/domme-music/pkg/retrylimit"
	"github.com/keshon/domme-music/pkg/util"
)

const (
	dataAPIBase  = "https://www.googleapis.com/youtube/v3"
	dataAPIBatch = 50
)

// DataAPI fetches exact durations and live flags from the YouTube Data API v3.
type DataAPI struct {
	key     string
	baseURL string
	client  *http.Client
	limiter *retrylimit.AdaptiveLimiter
	retry   retrylimit.RetryConfig
}

// NewDataAPI returns nil when key is empty; a nil *DataAPI enriches nothing.
func NewDataAPI(key string) *DataAPI {
	if key == "" {
		return nil
	}
	retry := retrylimit.DefaultRetryConfig()
	retry.MaxAttempts = 3
	return &DataAPI{
		key:     key,
		baseURL: dataAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: retrylimit.NewAdaptiveLimiter(5, 1, 10, 1, 0.5),
		retry:   retry,
	}
}

type thumbnail struct {
	URL string `json:"url"`
}

type videoListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title                string `json:"title"`
			ChannelID            string `json:"channelId"`
			ChannelTitle         string `json:"channelTitle"`
			LiveBroadcastContent string `json:"liveBroadcastContent"`
			Thumbnails           map[string]thumbnail `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// Enrich fills ISODuration, Live and missing metadata of infos in place.
func (d *DataAPI) Enrich(ctx context.Context, infos []track.VideoInfo) error {
	if d == nil || len(infos) == 0 {
		return nil
	}

	byID := make(map[string][]int, len(infos))
	ids := make([]string, 0, len(infos))
	for i, info := range infos {
		if _, ok := byID[info.ID]; !ok {
			ids = append(ids, info.ID)
		}
		byID[info.ID] = append(byID[info.ID], i)
	}

	var batches [][]string
	for start := 0; start < len(ids); start += dataAPIBatch {
		batches = append(batches, ids[start:min(start+dataAPIBatch, len(ids))])
	}

	var mu sync.Mutex
	return util.Parallel(ctx, batches, 4, func(ctx context.Context, batch []string) error {
		resp, err := d.videos(ctx, batch)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		for _, item := range resp.Items {
			for _, i := range byID[item.ID] {
				info := &infos[i]
				info.ISODuration = item.ContentDetails.Duration
				info.Length = 0
				info.Live = item.Snippet.LiveBroadcastContent == "live"
				if info.Title == "" {
					info.Title = item.Snippet.Title
				}
				if info.Channel == "" {
					info.Channel = item.Snippet.ChannelTitle
					info.ChannelURL = channelURL(item.Snippet.ChannelID)
				}
				if info.Thumbnail == "" {
					info.Thumbnail = bestThumbnail(item.Snippet.Thumbnails)
				}
			}
		}
		return nil
	})
}

func (d *DataAPI) videos(ctx context.Context, ids []string) (*videoListResponse, error) {
	q := url.Values{}
	q.Set("part", "contentDetails,snippet")
	q.Set("id", strings.Join(ids, ","))
	q.Set("key", d.key)
	endpoint := d.baseURL + "/videos?" + q.Encode()

	var out videoListResponse
	err := retrylimit.WithRetryConfig(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return retrylimit.Fatal(err)
		}
		resp, err := d.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &retrylimit.StatusError{URL: d.baseURL + "/videos", Code: resp.StatusCode}
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return retrylimit.Fatal(fmt.Errorf("decode videos response: %w", err))
		}
		return nil
	}, d.limiter, d.retry)
	if err != nil {
		return nil, fmt.Errorf("youtube data api: %w", err)
	}
	return &out, nil
}

func bestThumbnail(thumbs map[string]thumbnail) string {
	for _, size := range []string{"maxres", "standard", "high", "medium", "default"} {
		if t, ok := thumbs[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}
