package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/VinylKeeper/internal/audio"
	"github.com/himanishpuri/VinylKeeper/internal/config"
	"github.com/himanishpuri/VinylKeeper/internal/storage"
	"github.com/himanishpuri/VinylKeeper/pkg/logger"
	"github.com/himanishpuri/VinylKeeper/pkg/models"
	"github.com/himanishpuri/VinylKeeper/pkg/vinylkeeper"
)

// splitPositional separates a leading positional argument from the flags that
// follow it.
func splitPositional(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

func handleSession(ctx context.Context, cfg *config.Config, args []string) error {
	log := logger.GetLogger()

	cmd := flag.NewFlagSet("session", flag.ExitOnError)
	file := cmd.String("file", "", "Replay an audio file instead of capturing live input")
	if err := cmd.Parse(args); err != nil {
		return err
	}

	source := liveSource(cfg)
	if *file != "" {
		source = vinylkeeper.FileSource(*file, orDefault(cfg.TempDir, os.TempDir()), cfg.ArchivePath)
		log.Infof("Replaying %s", *file)
	}

	svc, err := createService(cfg, source)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	if *file == "" {
		fmt.Println("🎙️  Listening... press Ctrl+C to stop.")
	}
	sum, err := svc.StartSession(ctx)
	printSummary(os.Stdout, sum)
	return err
}

func handlePlays(ctx context.Context, cfg *config.Config, args []string) error {
	key := models.SortBySong
	if len(args) > 0 {
		k, err := models.ParseSortKey(args[0])
		if err != nil {
			printSortKeys(os.Stdout)
			return err
		}
		key = k
	}

	svc, err := createService(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	res, err := svc.DisplayData(ctx, key)
	if err != nil {
		return err
	}
	printResult(os.Stdout, res)
	return nil
}

func handleRecent(ctx context.Context, cfg *config.Config, args []string) error {
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid count %q", args[0])
		}
		limit = n
	}

	svc, err := createService(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	plays, err := svc.RecentPlays(ctx, limit)
	if err != nil {
		return err
	}
	printEvents(os.Stdout, plays)
	return nil
}

func handleIndex(ctx context.Context, cfg *config.Config, args []string) error {
	log := logger.GetLogger()

	audioPath, flagArgs := splitPositional(args)
	cmd := flag.NewFlagSet("index", flag.ExitOnError)
	title := cmd.String("title", "", "Song title (default: file tag)")
	artist := cmd.String("artist", "", "Artist name (default: file tag)")
	album := cmd.String("album", "", "Album name (default: file tag)")
	genre := cmd.String("genre", "", "Genre (default: file tag)")
	if err := cmd.Parse(flagArgs); err != nil {
		return err
	}
	if audioPath == "" {
		fmt.Println("Usage: vinylkeeper index <audio_file> [--title <t>] [--artist <a>] [--album <a>] [--genre <g>]")
		return errors.New("audio file path required")
	}

	meta := models.SongMetadata{Name: *title, Artist: *artist, Album: *album, Genre: *genre}
	if meta.Name == "" || meta.Artist == "" || meta.Album == "" || meta.Genre == "" {
		info, err := audio.ReadFileInfo(ctx, audioPath)
		if err != nil {
			log.Warnf("Could not read tags from %s: %v", audioPath, err)
		} else {
			meta = fillMetadata(meta, info.Tags)
		}
	}
	if meta.Name == "" || meta.Artist == "" {
		return errors.New("--title and --artist are required when the file carries no tags")
	}

	svc, err := createService(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	fmt.Println("🎵 Processing audio file...")
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	id, err := svc.AddTrack(ctx, audioPath, meta)
	if err != nil {
		return fmt.Errorf("failed to index track: %w", err)
	}

	fmt.Println("\n✅ Track indexed")
	fmt.Printf("   ID:      %s\n", id)
	printMetadata(os.Stdout, meta)
	log.Infof("Indexed track %s", id)
	return nil
}

// fillMetadata fills empty fields of meta from tags.
func fillMetadata(meta, tags models.SongMetadata) models.SongMetadata {
	if meta.Name == "" {
		meta.Name = tags.Name
	}
	if meta.Artist == "" {
		meta.Artist = tags.Artist
	}
	if meta.Album == "" {
		meta.Album = tags.Album
	}
	if meta.Genre == "" {
		meta.Genre = tags.Genre
	}
	return meta
}

func handleMatch(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: vinylkeeper match <audio_file>")
		return errors.New("audio file path required")
	}

	svc, err := createService(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	fmt.Println("🔍 Searching the index...")
	matches, err := svc.MatchFile(ctx, args[0])
	if err != nil {
		return fmt.Errorf("match failed: %w", err)
	}
	printMatches(os.Stdout, matches)
	return nil
}

func handleTracks(ctx context.Context, cfg *config.Config) error {
	svc, err := createService(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	tracks, err := svc.ListTracks(ctx)
	if err != nil {
		return err
	}
	printTracks(os.Stdout, tracks)
	return nil
}

func handleDelete(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: vinylkeeper delete <track_id>")
		return errors.New("track id required")
	}

	svc, err := createService(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	track, err := svc.GetTrack(ctx, args[0])
	if err != nil {
		if errors.Is(err, storage.ErrTrackNotFound) {
			return fmt.Errorf("no track with id %s", args[0])
		}
		return err
	}
	if err := svc.DeleteTrack(ctx, track.ID); err != nil {
		return err
	}
	fmt.Printf("✅ Deleted %q by %s (indexed %s)\n", track.Title, track.Artist, humanize.Time(track.CreatedAt))
	return nil
}

var _ recorder = (*vinylkeeper.Service)(nil)
