package report

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/mbland/mailmerge/dispatch"
)

// Store is implemented by storage.S3Store.
type Store interface {
	Key(name string) string
	Put(ctx context.Context, key, contentType string, data []byte) error
	Url(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Publisher uploads report artifacts and returns a download link.
type Publisher struct {
	Store  Store
	Format Format
	Expiry time.Duration
}

// Published locates an uploaded artifact.
type Published struct {
	Key string
	Url string
}

// Publish writes rep in p.Format under a key unique to the run.
func (p *Publisher) Publish(
	ctx context.Context, rep *dispatch.Report,
) (*Published, error) {
	buf := &bytes.Buffer{}
	if err := Write(buf, rep, p.Format); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s/%s", rep.RunId, Filename(rep.Started, p.Format))
	key := p.Store.Key(name)
	err := p.Store.Put(ctx, key, ContentType(p.Format), buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to publish report: %w", err)
	}

	url, err := p.Store.Url(ctx, key, p.Expiry)
	if err != nil {
		return nil, fmt.Errorf("failed to create report link: %w", err)
	}
	return &Published{Key: key, Url: url}, nil
}
