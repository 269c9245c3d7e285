package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

// FileInfo is what ffprobe reports about an audio file.
type FileInfo struct {
	Filename string
	Tags     models.SongMetadata
	Duration time.Duration
	Format   models.AudioFormat
	Codec    string
}

type mediaReport struct {
	Format struct {
		Filename string            `json:"filename"`
		Duration string            `json:"duration"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
	Streams []mediaStream `json:"streams"`
}

type mediaStream struct {
	CodecType     string            `json:"codec_type"`
	CodecName     string            `json:"codec_name"`
	SampleRate    string            `json:"sample_rate"`
	Channels      int               `json:"channels"`
	BitsPerSample int               `json:"bits_per_sample"`
	Tags          map[string]string `json:"tags"`
}

func (p *mediaReport) firstAudioStream() *mediaStream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "audio" {
			return &p.Streams[i]
		}
	}
	return nil
}

// ReadFileInfo runs ffprobe on path. Tags are read from the container, falling back
// to the audio stream (Ogg/Vorbis keeps them there).
func ReadFileInfo(ctx context.Context, path string) (*FileInfo, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(
		ctx,
		"ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseFileInfo(out, path)
}

func parseFileInfo(out []byte, path string) (*FileInfo, error) {
	var report mediaReport
	if err := json.Unmarshal(out, &report); err != nil {
		return nil, fmt.Errorf("decoding ffprobe output: %w", err)
	}

	stream := report.firstAudioStream()
	if stream == nil {
		return nil, errors.New("no audio stream found")
	}

	seconds, _ := strconv.ParseFloat(report.Format.Duration, 64)
	sampleRate, _ := strconv.Atoi(stream.SampleRate)

	tag := func(key string) string {
		for _, tags := range []map[string]string{report.Format.Tags, stream.Tags} {
			for k, v := range tags {
				if strings.EqualFold(k, key) && strings.TrimSpace(v) != "" {
					return strings.TrimSpace(v)
				}
			}
		}
		return ""
	}

	return &FileInfo{
		Filename: filepath.Base(path),
		Tags: models.SongMetadata{
			Name:   tag("title"),
			Artist: tag("artist"),
			Album:  tag("album"),
			Genre:  tag("genre"),
		},
		Duration: time.Duration(seconds * float64(time.Second)),
		Format: models.AudioFormat{
			Channels:   stream.Channels,
			SampleRate: sampleRate,
			BitDepth:   stream.BitsPerSample,
		},
		Codec: stream.CodecName,
	}, nil
}
