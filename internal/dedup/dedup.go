// Package dedup collapses consecutive identifications of the same song into a
// single play event.
package dedup

import (
	"time"

	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

type State int

const (
	Idle State = iota
	Tracking
)

func (s State) String() string {
	if s == Tracking {
		return "tracking"
	}
	return "idle"
}

// Deduplicator tracks the song currently playing within one session. It is not
// safe for concurrent use; windows must be observed in stream order.
type Deduplicator struct {
	state   State
	current models.SongMetadata
}

func New() *Deduplicator {
	return &Deduplicator{}
}

// Observe feeds the metadata resolved for one window. It returns a play event
// stamped with now when meta starts a new play, i.e. the deduplicator is idle
// or meta's name and artist differ from the tracked song.
func (d *Deduplicator) Observe(meta models.SongMetadata, now time.Time) (models.PlayEvent, bool) {
	if d.state == Tracking && d.current.SameSong(meta) {
		return models.PlayEvent{}, false
	}
	d.state = Tracking
	d.current = meta
	return models.PlayEvent{Timestamp: now, SongMetadata: meta}, true
}

// Current returns the tracked song, if any.
func (d *Deduplicator) Current() (models.SongMetadata, bool) {
	return d.current, d.state == Tracking
}

func (d *Deduplicator) State() State { return d.state }

// Reset returns to Idle, as at session start.
func (d *Deduplicator) Reset() {
	d.state = Idle
	d.current = models.SongMetadata{}
}
