package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/keshon/domme-music/pkg/retrylimit"
	"github.com/rs/zerolog"
)

// LinkConfig describes how to reach the renderer.
type LinkConfig struct {
	URL   string
	Token string
	// Retry governs each reconnect round. MaxAttempts 0 keeps trying until ctx ends.
	Retry retrylimit.RetryConfig
}

// Link keeps a websocket connection to the renderer attached to a Mux,
// reconnecting whenever it drops.
type Link struct {
	cfg       LinkConfig
	mux       *Mux
	dialer    *websocket.Dialer
	limiter   *retrylimit.AdaptiveLimiter
	sessionID string
	log       zerolog.Logger
}

func NewLink(cfg LinkConfig, mux *Mux, log zerolog.Logger) *Link {
	if cfg.Retry.InitialDelay == 0 {
		cfg.Retry = retrylimit.DefaultRetryConfig()
		cfg.Retry.MaxAttempts = 0
	}
	cfg.Retry.Logger = log

	return &Link{
		cfg: cfg,
		mux: mux,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		limiter:   retrylimit.NewAdaptiveLimiter(1, 1, 5, 1, 0.5),
		sessionID: uuid.NewString(),
		log:       log,
	}
}

// Run dials and serves until ctx ends or dialing gives up.
func (l *Link) Run(ctx context.Context) error {
	for {
		conn, err := l.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("connect renderer: %w", err)
		}
		l.log.Info().Str("url", l.cfg.URL).Str("session", l.sessionID).Msg("renderer link up")

		err = l.mux.Serve(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		l.log.Warn().Err(err).Msg("renderer link dropped, reconnecting")
	}
}

func (l *Link) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("X-Session-Id", l.sessionID)
	if l.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+l.cfg.Token)
	}

	var conn *websocket.Conn
	err := retrylimit.WithRetryConfig(ctx, func() error {
		c, resp, err := l.dialer.DialContext(ctx, l.cfg.URL, header)
		if err != nil {
			if resp == nil || !errors.Is(err, websocket.ErrBadHandshake) {
				return err
			}
			return handshakeError(l.cfg.URL, resp.StatusCode, err)
		}
		conn = c
		return nil
	}, l.limiter, l.cfg.Retry)

	return conn, err
}

// handshakeError classifies a refused upgrade. Only rejected credentials end the
// link; any other status, a proxy's 404 while the renderer restarts included, is retried.
func handshakeError(url string, code int, err error) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return retrylimit.Fatal(fmt.Errorf("renderer rejected credentials: %w", err))
	case code == http.StatusTooManyRequests || code >= 500:
		return &retrylimit.StatusError{URL: url, Code: code}
	default:
		return fmt.Errorf("renderer handshake: status %d: %w", code, err)
	}
}
