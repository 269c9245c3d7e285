// Package segment slices a continuous sample stream into fixed-length windows.
package segment

import (
	"context"
	"errors"
	"io"
	"iter"
	"time"

	"github.com/himanishpuri/VinylKeeper/internal/audio"
	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

// DefaultLength is the nominal window duration.
const DefaultLength = time.Second

// Segmenter accumulates pushed samples and emits non-overlapping windows in stream order.
// It is not safe for concurrent use.
type Segmenter struct {
	format models.AudioFormat
	size   int // samples per full window
	buf    []int16
	offset int64 // stream index of buf[0]
	next   int   // index of the next window
}

// New returns a segmenter producing windows of length (rounded down to whole frames,
// at least one frame) for samples in format.
func New(format models.AudioFormat, length time.Duration) *Segmenter {
	if length <= 0 {
		length = DefaultLength
	}
	return &Segmenter{
		format: format,
		size:   WindowSize(format, length),
	}
}

// WindowSize returns the number of samples in a full window.
func WindowSize(format models.AudioFormat, length time.Duration) int {
	channels := max(format.Channels, 1)
	frames := int(int64(format.SampleRate) * int64(length) / int64(time.Second))
	return max(frames, 1) * channels
}

// Size returns the number of samples in a full window.
func (s *Segmenter) Size() int {
	return s.size
}

// Push appends samples and returns every window completed by them.
func (s *Segmenter) Push(samples []int16) []models.SampleWindow {
	s.buf = append(s.buf, samples...)

	var out []models.SampleWindow
	for len(s.buf) >= s.size {
		out = append(out, s.emit(s.size))
	}
	if len(s.buf) == 0 {
		s.buf = nil
	}
	return out
}

// Flush returns the buffered remainder as a final, possibly short, window.
// It reports false if nothing is buffered.
func (s *Segmenter) Flush() (models.SampleWindow, bool) {
	if len(s.buf) == 0 {
		return models.SampleWindow{}, false
	}
	w := s.emit(len(s.buf))
	s.buf = nil
	return w, true
}

// Pending returns the number of buffered samples not yet emitted.
func (s *Segmenter) Pending() int {
	return len(s.buf)
}

func (s *Segmenter) emit(n int) models.SampleWindow {
	samples := make([]int16, n)
	copy(samples, s.buf[:n])
	w := models.SampleWindow{
		Index:   s.next,
		Offset:  s.offset,
		Samples: samples,
		Format:  s.format,
	}
	s.buf = s.buf[n:]
	s.offset += int64(n)
	s.next++
	return w
}

// Split lazily yields the windows covering samples, including a short final window.
func Split(samples []int16, format models.AudioFormat, length time.Duration) iter.Seq[models.SampleWindow] {
	return func(yield func(models.SampleWindow) bool) {
		seg := New(format, length)
		for start := 0; start < len(samples); start += seg.size {
			end := min(start+seg.size, len(samples))
			for _, w := range seg.Push(samples[start:end]) {
				if !yield(w) {
					return
				}
			}
		}
		if w, ok := seg.Flush(); ok {
			yield(w)
		}
	}
}

// Windows lazily reads src until EOF and yields each window as it completes.
// A read error ends the sequence after the buffered remainder is yielded with it.
func Windows(ctx context.Context, src audio.Source, length time.Duration, chunk int) iter.Seq2[models.SampleWindow, error] {
	return func(yield func(models.SampleWindow, error) bool) {
		seg := New(src.Format(), length)
		if chunk <= 0 {
			chunk = 1024
		}
		buf := make([]int16, chunk)
		for {
			n, err := src.Read(ctx, buf)
			for _, w := range seg.Push(buf[:n]) {
				if !yield(w, nil) {
					return
				}
			}
			if err == nil {
				continue
			}
			if w, ok := seg.Flush(); ok {
				if !yield(w, nil) {
					return
				}
			}
			if !errors.Is(err, io.EOF) {
				yield(models.SampleWindow{}, err)
			}
			return
		}
	}
}
