package youtube

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	_ "github.com/bdandy/go-socks4"
	youtube "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"
)

// NewClient returns a kkdai client, routed through proxyStr when it is an
// http(s), socks5 or socks4 URL. An unusable proxy falls back to a direct client.
func NewClient(proxyStr string, log zerolog.Logger) *youtube.Client {
	direct := &youtube.Client{HTTPClient: &http.Client{Timeout: 15 * time.Second}}
	if proxyStr == "" {
		return direct
	}

	transport, err := proxyTransport(proxyStr)
	if err != nil {
		log.Warn().Err(err).Msg("youtube proxy unusable, going direct")
		return direct
	}
	log.Info().Str("proxy", redact(proxyStr)).Msg("youtube client uses proxy")

	return &youtube.Client{
		HTTPClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: transport,
		},
	}
}

func proxyTransport(proxyStr string) (*http.Transport, error) {
	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		return nil, err
	}

	switch proxyURL.Scheme {
	case "http", "https":
		return &http.Transport{Proxy: http.ProxyURL(proxyURL)}, nil

	case "socks5":
		auth := &proxy.Auth{}
		if proxyURL.User != nil {
			auth.User = proxyURL.User.Username()
			auth.Password, _ = proxyURL.User.Password()
		}
		dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 10 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return &http.Transport{DialContext: contextDialer(dialer)}, nil

	case "socks4", "socks4a":
		// registered by the go-socks4 import
		dialer, err := proxy.FromURL(proxyURL, &net.Dialer{Timeout: 10 * time.Second})
		if err != nil {
			return nil, err
		}
		return &http.Transport{DialContext: contextDialer(dialer)}, nil
	}

	return nil, &url.Error{Op: "proxy", URL: proxyStr, Err: errUnsupportedScheme}
}

func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}

func redact(proxyStr string) string {
	u, err := url.Parse(proxyStr)
	if err != nil {
		return "invalid"
	}
	return u.Redacted()
}
