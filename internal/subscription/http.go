package subscription

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"shieldline/internal/logger"

	"golang.org/x/net/proxy"
)

type HTTPSource struct {
	client    *http.Client
	userAgent string
}

func NewHTTPSource(opts Options) (*HTTPSource, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if opts.Proxy != "" {
		pURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid subscription proxy: %w", err)
		}
		dialer, err := proxy.FromURL(pURL, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("unsupported subscription proxy: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
		logger.Log.Debugf("Subscription fetch using proxy: %s", pURL.Redacted())
	}

	return &HTTPSource{
		client:    &http.Client{Transport: transport, Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
	}, nil
}

func (s *HTTPSource) Fetch(ctx context.Context, u *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	logger.Log.Debugf("Fetching subscription: %s", u.Redacted())
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("non-2xx status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(body), nil
}

func init() {
	factory := func(opts Options) (Source, error) { return NewHTTPSource(opts) }
	Register("http", factory)
	Register("https", factory)
}
