package models

import (
	"strings"
	"time"
)

// AudioFormat describes decoded PCM samples.
type AudioFormat struct {
	Channels   int // 1 for mono
	SampleRate int // e.g. 44100
	BitDepth   int // bits per sample, 16 for the capture format
}

// CaptureFormat is the format every audio source delivers: mono, 44.1kHz, 16-bit.
var CaptureFormat = AudioFormat{Channels: 1, SampleRate: 44100, BitDepth: 16}

// BytesPerSample returns the sample width in bytes.
func (f AudioFormat) BytesPerSample() int {
	return f.BitDepth / 8
}

// SampleWindow is a fixed-duration slice of the captured stream.
// It must not be mutated once produced by the segmenter.
type SampleWindow struct {
	Index   int     // position of the window in the stream, 0-based
	Offset  int64   // index of the first sample in the stream
	Samples []int16 // interleaved if Channels > 1
	Format  AudioFormat
}

// Start returns the window's start position in the stream.
func (w SampleWindow) Start() time.Duration {
	return samplesToDuration(w.Offset, w.Format)
}

// Duration returns the length of audio the window covers.
func (w SampleWindow) Duration() time.Duration {
	return samplesToDuration(int64(len(w.Samples)), w.Format)
}

func samplesToDuration(n int64, f AudioFormat) time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	frames := n / int64(f.Channels)
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// RecordingID is the identification provider's opaque key for a recording.
type RecordingID string

// Candidate is one entry of a provider lookup, in provider rank order.
type Candidate struct {
	Recording RecordingID
	Score     float64
}

// SongMetadata holds the descriptive fields of a recording. Missing fields are empty strings.
type SongMetadata struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Genre  string `json:"genre"`
}

// SameSong reports whether two results refer to the same ongoing play.
// Only name and artist take part; album and genre may drift between lookups.
func (m SongMetadata) SameSong(other SongMetadata) bool {
	return m.Name == other.Name && m.Artist == other.Artist
}

func (m SongMetadata) String() string {
	var b strings.Builder
	b.WriteString(m.Name)
	if m.Artist != "" {
		b.WriteString(" by ")
		b.WriteString(m.Artist)
	}
	return b.String()
}

// PlayEvent records one detected, distinct listen.
type PlayEvent struct {
	Timestamp time.Time
	SongMetadata
}
