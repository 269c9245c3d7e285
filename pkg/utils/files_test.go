package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.wav.tmp")
	dst := filepath.Join(dir, "a.wav")
	if err := os.WriteFile(src, []byte("pcm"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source still exists: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "pcm" {
		t.Errorf("destination = %q, %v", data, err)
	}
}

func TestMoveFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := MoveFile(filepath.Join(dir, "missing"), filepath.Join(dir, "out")); err == nil {
		t.Fatal("expected error")
	}
}

func TestUniqueName(t *testing.T) {
	name := UniqueName("upload", "../../etc/passwd")
	if !strings.HasPrefix(name, "upload_") || !strings.HasSuffix(name, "_passwd") {
		t.Errorf("UniqueName = %q", name)
	}
	if strings.Contains(name, "/") {
		t.Errorf("UniqueName kept a separator: %q", name)
	}
	if got := UniqueName("q", ""); !strings.HasSuffix(got, "_file") {
		t.Errorf("UniqueName of empty name = %q", got)
	}
}
