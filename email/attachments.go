package email

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

const maxConcurrentReads = 4

// ReadFunc returns the content of the named file or object.
type ReadFunc func(ctx context.Context, name string) ([]byte, error)

// LoadAttachments reads the named files concurrently. The result preserves the
// order of names, and each Attachment takes the base name of its file.
func LoadAttachments(
	ctx context.Context, names []string, read ReadFunc,
) ([]Attachment, error) {
	atts := make([]Attachment, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)

	for i, name := range names {
		g.Go(func() error {
			content, err := read(ctx, name)
			if err != nil {
				return fmt.Errorf("failed to read attachment %s: %w", name, err)
			}
			atts[i] = NewAttachment(path.Base(filepath.ToSlash(name)), content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return atts, nil
}
