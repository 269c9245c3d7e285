package vinylkeeper

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/himanishpuri/VinylKeeper/internal/audio"
	"github.com/himanishpuri/VinylKeeper/internal/session"
	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

// CaptureSource opens live capture through ffmpeg. A non-empty archivePath
// also records the session to that WAV file.
func CaptureSource(cfg audio.CaptureConfig, archivePath string) session.Opener {
	return func(ctx context.Context) (audio.Source, error) {
		src, err := audio.StartCapture(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return withArchive(src, archivePath)
	}
}

// FileSource replays an audio file as if it were captured. Anything other than
// mono 44.1kHz WAV is converted with ffmpeg into tempDir first, and the
// converted copy is removed when the source is closed.
func FileSource(path, tempDir, archivePath string) session.Opener {
	return func(ctx context.Context) (audio.Source, error) {
		wavPath, err := audio.ConvertToMonoWAV(ctx, path, tempDir, audio.ConvertWAVConfig{
			SampleRate: models.CaptureFormat.SampleRate,
		})
		if err != nil {
			return nil, fmt.Errorf("audio conversion failed: %w", err)
		}
		src, err := audio.OpenWAV(wavPath)
		if err != nil {
			if wavPath != path {
				os.Remove(wavPath)
			}
			return nil, err
		}
		var out audio.Source = src
		if wavPath != path {
			out = &tempFileSource{Source: src, path: wavPath}
		}
		return withArchive(out, archivePath)
	}
}

// tempFileSource deletes its backing file on Close.
type tempFileSource struct {
	audio.Source
	path string
}

func (s *tempFileSource) Close() error {
	err := s.Source.Close()
	if rerr := os.Remove(s.path); rerr != nil && !os.IsNotExist(rerr) {
		err = errors.Join(err, rerr)
	}
	return err
}

func withArchive(src audio.Source, archivePath string) (audio.Source, error) {
	if archivePath == "" {
		return src, nil
	}
	archive, err := audio.CreateArchive(archivePath, src.Format())
	if err != nil {
		return nil, errors.Join(err, src.Close())
	}
	return audio.Tee(src, archive), nil
}
