package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

// FileSource streams a 16-bit PCM WAV file as mono samples.
type FileSource struct {
	mu       sync.Mutex
	f        *os.File
	dec      *wav.Decoder
	channels int
	format   models.AudioFormat
	buf      *goaudio.IntBuffer
	closed   bool
}

// OpenWAV opens path and positions the decoder at the start of the PCM data.
// Multi-channel files are downmixed; the sample rate is kept as recorded.
func OpenWAV(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%s: not a valid WAV file", path)
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("seeking to PCM data: %w", err)
	}
	if dec.WavAudioFormat != 1 {
		f.Close()
		return nil, errors.New("unsupported WAV audio format: only PCM (1) supported")
	}
	if dec.BitDepth != 16 {
		f.Close()
		return nil, fmt.Errorf("unsupported bits per sample %d: only 16-bit supported", dec.BitDepth)
	}

	channels := int(dec.NumChans)
	return &FileSource{
		f:        f,
		dec:      dec,
		channels: channels,
		format: models.AudioFormat{
			Channels:   1,
			SampleRate: int(dec.SampleRate),
			BitDepth:   16,
		},
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: int(dec.SampleRate)},
			SourceBitDepth: 16,
		},
	}, nil
}

func (s *FileSource) Format() models.AudioFormat {
	return s.format
}

func (s *FileSource) Read(ctx context.Context, buf []int16) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSourceClosed
	}
	if len(buf) == 0 {
		return 0, nil
	}

	want := len(buf) * s.channels
	if cap(s.buf.Data) < want {
		s.buf.Data = make([]int, want)
	}
	s.buf.Data = s.buf.Data[:want]

	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil {
		return 0, fmt.Errorf("decoding PCM: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	return Downmix(s.buf.Data[:n], s.channels, buf)
}

func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}

// ReadAllWAV decodes a whole WAV file into mono samples.
func ReadAllWAV(path string) ([]int16, models.AudioFormat, error) {
	src, err := OpenWAV(path)
	if err != nil {
		return nil, models.AudioFormat{}, err
	}
	defer src.Close()

	var out []int16
	chunk := make([]int16, 4096)
	ctx := context.Background()
	for {
		n, err := src.Read(ctx, chunk)
		out = append(out, chunk[:n]...)
		if errors.Is(err, io.EOF) {
			return out, src.Format(), nil
		}
		if err != nil {
			return nil, models.AudioFormat{}, err
		}
	}
}
