package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// LocalSink writes bundles under Dir.
type LocalSink struct {
	Dir string
}

func (s LocalSink) Save(ctx context.Context, b Bundle) ([]string, error) {
	objs, err := b.objects()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(s.Dir, filepath.FromSlash(b.Prefix()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}

	paths := make([]string, len(objs))
	g, gctx := errgroup.WithContext(ctx)
	for i, obj := range objs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, obj.name)
			if err := os.WriteFile(path, obj.data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", obj.name, err)
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}
