package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/himanishpuri/VinylKeeper/pkg/models"
	"github.com/himanishpuri/VinylKeeper/pkg/utils"
)

// Archive writes captured samples to a 16-bit PCM WAV file.
type Archive struct {
	mu     sync.Mutex
	f      *os.File
	enc    *wav.Encoder
	format models.AudioFormat
	buf    *goaudio.IntBuffer
	closed bool
}

// CreateArchive creates (or truncates) a WAV file at path for samples in format.
func CreateArchive(path string, format models.AudioFormat) (*Archive, error) {
	if err := utils.MakeDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("creating archive dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Archive{
		f:      f,
		enc:    wav.NewEncoder(f, format.SampleRate, format.BitDepth, format.Channels, 1),
		format: format,
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
			SourceBitDepth: format.BitDepth,
		},
	}, nil
}

// Write appends samples to the archive.
func (a *Archive) Write(samples []int16) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrSourceClosed
	}
	if cap(a.buf.Data) < len(samples) {
		a.buf.Data = make([]int, len(samples))
	}
	a.buf.Data = a.buf.Data[:len(samples)]
	for i, s := range samples {
		a.buf.Data[i] = int(s)
	}
	if err := a.enc.Write(a.buf); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	return nil
}

// Close finalizes the WAV header and closes the file.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if err := a.enc.Close(); err != nil {
		a.f.Close()
		return fmt.Errorf("finalizing archive: %w", err)
	}
	return a.f.Close()
}

// WriteWAV writes samples to a new WAV file at path.
func WriteWAV(path string, samples []int16, format models.AudioFormat) error {
	a, err := CreateArchive(path, format)
	if err != nil {
		return err
	}
	if err := a.Write(samples); err != nil {
		a.Close()
		return err
	}
	return a.Close()
}
