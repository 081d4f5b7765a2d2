package stdout

import (
	"context"
	"fmt"
	"io"
	"os"

	"shieldline/internal/config"
	"shieldline/internal/publishers"
)

type Publisher struct {
	Out io.Writer
}

func (p *Publisher) Publish(ctx context.Context, payload string) error {
	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	_, err := fmt.Fprintln(out, payload)
	return err
}

func init() {
	publishers.Register("stdout", func(config.ExportConfig) (publishers.Publisher, error) {
		return &Publisher{}, nil
	})
}
