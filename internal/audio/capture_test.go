package audio

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// fakeFFmpeg writes an executable shell script standing in for ffmpeg.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}
	return path
}

func TestCaptureReportsFFmpegFailure(t *testing.T) {
	ffmpeg := fakeFFmpeg(t, `printf '\001\000\002\000'; echo "default: No such device" >&2; exit 1`)

	src, err := StartCapture(context.Background(), CaptureConfig{FFmpegPath: ffmpeg})
	if err != nil {
		t.Fatalf("StartCapture: %v", err)
	}

	buf := make([]int16, 8)
	n, err := src.Read(context.Background(), buf)
	if n != 2 || buf[0] != 1 || buf[1] != 2 {
		t.Errorf("Read returned %d samples %v, want [1 2]", n, buf[:n])
	}
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("Read error = %v, want ffmpeg failure", err)
	}
	if !strings.Contains(err.Error(), "No such device") {
		t.Errorf("error %q lacks ffmpeg stderr", err)
	}

	if err := src.Close(); err != nil {
		t.Errorf("Close repeated an already reported failure: %v", err)
	}
}

func TestCaptureCleanExitIsEOF(t *testing.T) {
	ffmpeg := fakeFFmpeg(t, `printf '\001\000'; exit 0`)

	src, err := StartCapture(context.Background(), CaptureConfig{FFmpegPath: ffmpeg})
	if err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	defer src.Close()

	got := readAll(t, src, 4)
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("samples = %v, want [1]", got)
	}
}

func TestCaptureStoppedByContextIsEOF(t *testing.T) {
	ffmpeg := fakeFFmpeg(t, `exec sleep 30`)

	ctx, cancel := context.WithCancel(context.Background())
	src, err := StartCapture(ctx, CaptureConfig{FFmpegPath: ffmpeg})
	if err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	cancel()

	_, err = src.Read(context.Background(), make([]int16, 4))
	if !errors.Is(err, io.EOF) {
		t.Errorf("Read after cancel = %v, want io.EOF", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close after cancel = %v", err)
	}
}
