package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/himanishpuri/VinylKeeper/internal/storage"
	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

// TrackStore is the part of the local index the catalog reads.
type TrackStore interface {
	GetTrack(ctx context.Context, id string) (storage.Track, error)
}

// Local resolves index track ids to the metadata stored when they were indexed.
type Local struct {
	tracks TrackStore
}

func NewLocal(tracks TrackStore) *Local {
	return &Local{tracks: tracks}
}

func (l *Local) Resolve(ctx context.Context, id models.RecordingID) (models.SongMetadata, error) {
	track, err := l.tracks.GetTrack(ctx, string(id))
	if errors.Is(err, storage.ErrTrackNotFound) {
		return models.SongMetadata{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return models.SongMetadata{}, err
	}
	return track.Metadata(), nil
}
