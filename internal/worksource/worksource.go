// Package worksource answers the two discovery questions of a run:
// which image to animate with, and which videos still need processing.
package worksource

import (
	"context"
	"fmt"
	"sort"

	"github.com/mexwill790-beep/wan/internal/domain/entity"
	"github.com/mexwill790-beep/wan/internal/domain/port"
)

type Source struct {
	store port.FileStore
}

func New(store port.FileStore) *Source {
	return &Source{store: store}
}

// PickReferenceImage returns the most recently modified (or created,
// when never modified) non-hidden image in folderID. An empty candidate
// set is entity.ErrNoReferenceImage, fatal for the run.
func (s *Source) PickReferenceImage(ctx context.Context, folderID string) (entity.RemoteFile, error) {
	files, err := s.store.List(ctx, folderID, "image/")
	if err != nil {
		return entity.RemoteFile{}, fmt.Errorf("list images: %w", err)
	}

	var candidates []entity.RemoteFile
	for _, f := range files {
		if f.IsImage() && !f.IsHidden() {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return entity.RemoteFile{}, entity.ErrNoReferenceImage
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].SortTime().After(candidates[j].SortTime())
	})
	return candidates[0], nil
}

// ListUnprocessedVideos returns the pending queue, oldest first, so
// earlier drops are animated before later ones.
func (s *Source) ListUnprocessedVideos(ctx context.Context, folderID string) ([]entity.RemoteFile, error) {
	files, err := s.store.List(ctx, folderID, "video/")
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}

	var todo []entity.RemoteFile
	for _, f := range files {
		if f.IsVideo() && !entity.IsProcessed(f.Name) {
			todo = append(todo, f)
		}
	}

	sort.SliceStable(todo, func(i, j int) bool {
		return todo[i].SortTime().Before(todo[j].SortTime())
	})
	return todo, nil
}
