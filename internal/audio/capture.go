package audio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

// CaptureConfig selects the input device handed to ffmpeg.
type CaptureConfig struct {
	FFmpegPath  string // defaults to "ffmpeg"
	InputFormat string // ffmpeg demuxer, e.g. "alsa", "pulse", "avfoundation"
	Device      string // e.g. "default", ":0"
	SampleRate  int    // defaults to 44100
}

// CaptureSource records from a live input device by running ffmpeg and reading
// raw mono s16le frames from its stdout. Canceling the context passed to
// StartCapture stops ffmpeg; samples already in the pipe are still returned.
type CaptureSource struct {
	readMu sync.Mutex // guards r and raw
	once   sync.Once
	closed atomic.Bool

	waitOnce sync.Once
	waitErr  error       // ffmpeg failure, nil if it exited cleanly or was stopped
	reported atomic.Bool // waitErr was already returned from Read
	cmd    *exec.Cmd
	stdout io.ReadCloser
	r      *bufio.Reader
	raw    []byte
	format models.AudioFormat
	stderr *tailBuffer
}

// StartCapture launches ffmpeg and returns a source reading from it.
func StartCapture(ctx context.Context, cfg CaptureConfig) (*CaptureSource, error) {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "alsa"
	}
	if cfg.Device == "" {
		cfg.Device = "default"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = models.CaptureFormat.SampleRate
	}

	cmd := exec.CommandContext(
		ctx,
		cfg.FFmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-f", cfg.InputFormat,
		"-i", cfg.Device,
		"-ac", "1", // mono
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	)
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting ffmpeg: %w", err)
	}

	return &CaptureSource{
		cmd:    cmd,
		stdout: stdout,
		r:      bufio.NewReaderSize(stdout, 64*1024),
		format: models.AudioFormat{Channels: 1, SampleRate: cfg.SampleRate, BitDepth: 16},
		stderr: stderr,
	}, nil
}

func (c *CaptureSource) Format() models.AudioFormat {
	return c.format
}

// Read blocks until len(buf) samples are available or the stream ends. When
// ffmpeg exits with an error, that error replaces io.EOF.
func (c *CaptureSource) Read(_ context.Context, buf []int16) (int, error) {
	if c.closed.Load() {
		return 0, ErrSourceClosed
	}
	c.readMu.Lock()
	defer c.readMu.Unlock()

	need := len(buf) * 2
	if cap(c.raw) < need {
		c.raw = make([]byte, need)
	}
	c.raw = c.raw[:need]

	n, err := io.ReadFull(c.r, c.raw)
	samples := DecodeS16LE(c.raw[:n], buf)
	switch {
	case err == nil:
		return samples, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		if werr := c.wait(); werr != nil {
			c.reported.Store(true)
			return samples, werr
		}
		return samples, io.EOF
	default:
		return samples, fmt.Errorf("reading capture stream: %w", err)
	}
}

// Close stops ffmpeg and reaps it. It may be called while a Read is blocked.
// An ffmpeg failure other than being killed is reported.
func (c *CaptureSource) Close() error {
	var err error
	c.once.Do(func() {
		c.closed.Store(true)
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		if werr := c.wait(); werr != nil && !c.reported.Load() {
			err = werr
		}
	})
	return err
}

// wait reaps ffmpeg once. Being killed, the normal way a capture ends, is not
// an error.
func (c *CaptureSource) wait() error {
	c.waitOnce.Do(func() {
		werr := c.cmd.Wait()
		var exitErr *exec.ExitError
		if errors.Is(werr, context.Canceled) || (errors.As(werr, &exitErr) && !exitErr.Exited()) {
			return
		}
		if werr != nil {
			c.waitErr = fmt.Errorf("ffmpeg: %w (%s)", werr, strings.TrimSpace(c.stderr.String()))
		}
	})
	return c.waitErr
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
