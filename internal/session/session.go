// Package session runs capture sessions: audio is segmented into windows and
// each window goes through identification, metadata resolution, play
// deduplication and recording, in stream order.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/VinylKeeper/internal/audio"
	"github.com/himanishpuri/VinylKeeper/internal/dedup"
	"github.com/himanishpuri/VinylKeeper/internal/identify"
	"github.com/himanishpuri/VinylKeeper/internal/segment"
	"github.com/himanishpuri/VinylKeeper/internal/storage"
	"github.com/himanishpuri/VinylKeeper/pkg/logger"
	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

var ErrSessionRunning = errors.New("a capture session is already running")

const (
	DefaultChunk     = 1024
	DefaultQueueSize = 64
)

// Opener starts the audio source for one session. The source must stop
// producing once ctx is canceled.
type Opener func(ctx context.Context) (audio.Source, error)

type Matcher interface {
	Match(ctx context.Context, w models.SampleWindow) (models.Candidate, error)
}

type Resolver interface {
	Resolve(ctx context.Context, id models.RecordingID) (models.SongMetadata, error)
}

// PlayStore is the play log.
type PlayStore interface {
	Append(ctx context.Context, ev models.PlayEvent) error
	Query(ctx context.Context, key models.SortKey) (*storage.QueryResult, error)
}

const (
	StageFingerprint = identify.OpFingerprint
	StageLookup      = identify.OpLookup
	StageResolve     = "resolve"
)

// WindowError is a failure confined to one window. The window is skipped and
// the session carries on.
type WindowError struct {
	Index int
	Stage string
	Err   error
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("window %d: %s: %v", e.Index, e.Stage, e.Err)
}

func (e *WindowError) Unwrap() error { return e.Err }

// Summary describes a finished session.
type Summary struct {
	ID        string
	StartedAt time.Time
	Windows   int
	Matched   int
	Unmatched int
	Failed    int
	Plays     []models.PlayEvent
	Duration  time.Duration // audio covered by the processed windows
}

// Skipped is the number of windows that produced no metadata.
func (s Summary) Skipped() int { return s.Unmatched + s.Failed }

type Controller struct {
	open     Opener
	matcher  Matcher
	resolver Resolver
	store    PlayStore

	length time.Duration
	chunk  int
	queue  int
	now    func() time.Time
	log    logger.Interface

	running sync.Mutex
}

type Option func(*Controller)

// WithWindowLength sets the nominal window duration.
func WithWindowLength(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.length = d
		}
	}
}

// WithChunkSize sets how many samples are read from the source at a time.
func WithChunkSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.chunk = n
		}
	}
}

// WithQueueSize bounds the windows buffered between capture and processing.
func WithQueueSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.queue = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithLogger(l logger.Interface) Option {
	return func(c *Controller) { c.log = l }
}

func New(open Opener, m Matcher, r Resolver, store PlayStore, opts ...Option) *Controller {
	c := &Controller{
		open:     open,
		matcher:  m,
		resolver: r,
		store:    store,
		length:   segment.DefaultLength,
		chunk:    DefaultChunk,
		queue:    DefaultQueueSize,
		now:      time.Now,
		log:      logger.GetLogger().WithPrefix("[session]"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartSession captures until ctx is canceled or the source ends. Buffered
// audio, including a final short window, still runs through the pipeline after
// cancellation. Per-window identification and resolution failures are logged
// and skipped; a play log failure ends the session with an error, as does a
// capture failure once the audio read so far has been processed.
func (c *Controller) StartSession(ctx context.Context) (Summary, error) {
	if !c.running.TryLock() {
		return Summary{}, ErrSessionRunning
	}
	defer c.running.Unlock()

	sum := Summary{ID: uuid.NewString(), StartedAt: c.now()}

	captureCtx, stopCapture := context.WithCancel(ctx)
	defer stopCapture()

	src, err := c.open(captureCtx)
	if err != nil {
		return sum, fmt.Errorf("opening audio source: %w", err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			c.log.Warnf("closing audio source: %v", cerr)
		}
	}()

	c.log.Infof("session %s started", sum.ID)

	windows := make(chan models.SampleWindow, c.queue)
	abort := make(chan struct{})

	var g errgroup.Group

	g.Go(func() error {
		defer close(windows)
		for w, err := range segment.Windows(captureCtx, src, c.length, c.chunk) {
			if err != nil {
				if captureCtx.Err() != nil {
					return nil
				}
				return fmt.Errorf("capture: %w", err)
			}
			select {
			case windows <- w:
			case <-abort:
				return nil
			}
		}
		return nil
	})

	g.Go(func() error {
		defer close(abort)
		// Processing outlives the stop signal so buffered audio is not lost.
		pctx := context.WithoutCancel(ctx)
		dd := dedup.New()
		for w := range windows {
			if err := c.process(pctx, w, dd, &sum); err != nil {
				stopCapture()
				return err
			}
		}
		return nil
	})

	err = g.Wait()
	c.log.Infof("session %s ended: %d windows, %d matched, %d plays",
		sum.ID, sum.Windows, sum.Matched, len(sum.Plays))
	return sum, err
}

// process drives one window through match, resolve, dedup and append.
// Only append failures are returned.
func (c *Controller) process(ctx context.Context, w models.SampleWindow, dd *dedup.Deduplicator, sum *Summary) error {
	sum.Windows++
	sum.Duration += w.Duration()

	meta, err := c.identify(ctx, w)
	if err != nil {
		var werr *WindowError
		if errors.As(err, &werr) {
			sum.Failed++
			c.log.Warnf("%v (offset %s), skipping", werr, w.Start())
			return nil
		}
		sum.Unmatched++
		c.log.Debugf("window %d: no match", w.Index)
		return nil
	}
	sum.Matched++

	ev, ok := dd.Observe(meta, c.now())
	if !ok {
		return nil
	}
	if err := c.store.Append(ctx, ev); err != nil {
		return fmt.Errorf("recording play of %s: %w", ev.SongMetadata, err)
	}
	sum.Plays = append(sum.Plays, ev)
	c.log.Infof("now playing: %s", ev.SongMetadata)
	return nil
}

func (c *Controller) identify(ctx context.Context, w models.SampleWindow) (models.SongMetadata, error) {
	cand, err := c.matcher.Match(ctx, w)
	if errors.Is(err, identify.ErrNoMatch) {
		return models.SongMetadata{}, err
	}
	if err != nil {
		stage := StageLookup
		var ierr *identify.Error
		if errors.As(err, &ierr) {
			stage = ierr.Op
		}
		return models.SongMetadata{}, &WindowError{Index: w.Index, Stage: stage, Err: err}
	}

	meta, err := c.resolver.Resolve(ctx, cand.Recording)
	if err != nil {
		return models.SongMetadata{}, &WindowError{Index: w.Index, Stage: StageResolve, Err: err}
	}
	return meta, nil
}

// DisplayData returns the play log ordered by key.
func (c *Controller) DisplayData(ctx context.Context, key models.SortKey) (*storage.QueryResult, error) {
	return c.store.Query(ctx, key)
}
