package subscription

import (
	"context"
	"fmt"
	"net/url"
	"os"
)

// FileSource reads a subscription saved on disk (file:///path/to/sub.txt).
type FileSource struct{}

func (FileSource) Fetch(ctx context.Context, u *url.URL) (string, error) {
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read subscription file: %w", err)
	}
	return string(data), nil
}

func init() {
	Register("file", func(Options) (Source, error) { return FileSource{}, nil })
}
