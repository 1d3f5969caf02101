// Package storage persists staged uploads as image references.
// Swap implementations by changing the concrete type injected at startup:
// LocalStorage keeps files on disk under the public uploads path, MinioStorage
// pushes them to any S3-compatible host (MinIO, ArvanCloud, AWS S3).
package storage

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tolet/service/internal/upload"
)

// Storage turns staged files into persistent references and removes them again.
type Storage interface {
	// Save persists a staged file and returns the reference stored in documents.
	Save(ctx context.Context, f upload.File) (string, error)
	// Delete removes the asset behind ref. Unknown or foreign refs are ignored.
	Delete(ctx context.Context, ref string) error
}

// SaveAll persists files concurrently. Either every file is saved, or none is:
// when one fails the refs already created are deleted and the error returned.
func SaveAll(ctx context.Context, s Storage, files []upload.File) ([]string, error) {
	refs := make([]string, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			ref, err := s.Save(gctx, f)
			if err != nil {
				return err
			}
			refs[i] = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_ = DeleteAll(context.WithoutCancel(ctx), s, refs)
		return nil, err
	}
	return refs, nil
}

// DeleteAll removes refs in order and stops at the first failure.
func DeleteAll(ctx context.Context, s Storage, refs []string) error {
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := s.Delete(ctx, ref); err != nil {
			return fmt.Errorf("delete %s: %w", ref, err)
		}
	}
	return nil
}
