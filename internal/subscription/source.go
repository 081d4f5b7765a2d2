package subscription

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"shieldline/internal/model"
)

// Source retrieves the raw body of a subscription.
type Source interface {
	Fetch(ctx context.Context, u *url.URL) (string, error)
}

// Options are shared by every source a Fetcher builds.
type Options struct {
	Timeout   time.Duration
	Proxy     string // socks5://host:port
	UserAgent string
}

type Factory func(opts Options) (Source, error)

var registry = make(map[string]Factory)

// Register binds a URL scheme to a source factory.
func Register(scheme string, factory Factory) {
	registry[strings.ToLower(scheme)] = factory
}

func sourceFor(scheme string, opts Options) (Source, error) {
	factory, ok := registry[strings.ToLower(scheme)]
	if !ok {
		return nil, fmt.Errorf("no subscription source for scheme '%s'", scheme)
	}
	return factory(opts)
}

// Fetcher downloads and decodes subscriptions.
type Fetcher struct {
	Options Options
}

func NewFetcher(opts Options) *Fetcher {
	return &Fetcher{Options: opts}
}

// Fetch returns the raw body behind rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid subscription url: %w", err)
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("invalid subscription url: missing scheme")
	}
	src, err := sourceFor(u.Scheme, f.Options)
	if err != nil {
		return "", err
	}
	return src.Fetch(ctx, u)
}

// Import fetches rawURL and decodes the body into fresh profiles.
func (f *Fetcher) Import(ctx context.Context, rawURL string) ([]model.Profile, error) {
	body, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return Decode(body)
}
