package audio

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

// ErrSourceClosed is returned by Read after Close.
var ErrSourceClosed = errors.New("audio source closed")

// Source produces a continuous stream of decoded samples in a fixed format.
// Read fills buf with up to len(buf) samples and returns io.EOF once the stream ends.
// A short read is not an error.
type Source interface {
	Format() models.AudioFormat
	Read(ctx context.Context, buf []int16) (int, error)
	Close() error
}

// MemorySource serves samples from a slice. It is used for replaying buffered audio
// and in tests.
type MemorySource struct {
	mu      sync.Mutex
	format  models.AudioFormat
	samples []int16
	pos     int
	closed  bool
}

func NewMemorySource(format models.AudioFormat, samples []int16) *MemorySource {
	return &MemorySource{format: format, samples: samples}
}

func (s *MemorySource) Format() models.AudioFormat {
	return s.format
}

func (s *MemorySource) Read(ctx context.Context, buf []int16) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSourceClosed
	}
	if s.pos >= len(s.samples) {
		return 0, io.EOF
	}
	n := copy(buf, s.samples[s.pos:])
	s.pos += n
	return n, nil
}

func (s *MemorySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// teeSource mirrors every chunk read from src into an archive.
type teeSource struct {
	Source
	archive *Archive
}

// Tee returns a Source that writes everything read from src to archive.
// Closing the returned Source closes both.
func Tee(src Source, archive *Archive) Source {
	return &teeSource{Source: src, archive: archive}
}

func (t *teeSource) Read(ctx context.Context, buf []int16) (int, error) {
	n, err := t.Source.Read(ctx, buf)
	if n > 0 {
		if werr := t.archive.Write(buf[:n]); werr != nil && err == nil {
			err = werr
		}
	}
	return n, err
}

func (t *teeSource) Close() error {
	return errors.Join(t.Source.Close(), t.archive.Close())
}
