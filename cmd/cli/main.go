package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/himanishpuri/VinylKeeper/internal/config"
	"github.com/himanishpuri/VinylKeeper/internal/session"
	"github.com/himanishpuri/VinylKeeper/internal/storage"
	"github.com/himanishpuri/VinylKeeper/pkg/logger"
	"github.com/himanishpuri/VinylKeeper/pkg/vinylkeeper"
)

// Global flags
var (
	dbPath    string
	indexPath string
	tempDir   string
	logLevel  string
)

func init() {
	flag.StringVar(&dbPath, "db", os.Getenv("VINYL_DB_PATH"), "Path to the play log database (env: VINYL_DB_PATH)")
	flag.StringVar(&indexPath, "index", os.Getenv("VINYL_INDEX_PATH"), "Path to the local fingerprint index (env: VINYL_INDEX_PATH)")
	flag.StringVar(&tempDir, "temp", os.Getenv("VINYL_TEMP_DIR"), "Directory for temporary audio files (env: VINYL_TEMP_DIR)")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg)

	log := logger.GetLogger()
	if lvl, ok := logger.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(lvl)
	}

	args := flag.Args()
	command := "menu"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}
	log.Debugf("Executing command: %s", command)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch command {
	case "menu":
		stop()
		err = handleMenu(cfg)
	case "session":
		err = handleSession(ctx, cfg, args)
	case "plays":
		err = handlePlays(ctx, cfg, args)
	case "recent":
		err = handleRecent(ctx, cfg, args)
	case "index":
		err = handleIndex(ctx, cfg, args)
	case "match":
		err = handleMatch(ctx, cfg, args)
	case "tracks":
		err = handleTracks(ctx, cfg)
	case "delete":
		err = handleDelete(ctx, cfg, args)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		log.Errorf("%s failed: %v", command, err)
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config) {
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if indexPath != "" {
		cfg.IndexPath = indexPath
	}
	if tempDir != "" {
		cfg.TempDir = tempDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
}

func liveSource(cfg *config.Config) session.Opener {
	return vinylkeeper.LiveSource(cfg)
}

// createService builds the service from configuration. source may be nil for
// commands that never capture.
func createService(cfg *config.Config, source session.Opener) (*vinylkeeper.Service, error) {
	opts, err := vinylkeeper.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, vinylkeeper.WithLogger(logger.GetLogger().WithPrefix("[vinylkeeper]")))
	if source != nil {
		opts = append(opts, vinylkeeper.WithSource(source))
	}
	return vinylkeeper.NewService(opts...)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func printUsage() {
	fmt.Println("VinylKeeper - record what's playing on the turntable")
	fmt.Println("\nGlobal Options:")
	fmt.Printf("  --db <path>         Play log database (env: VINYL_DB_PATH, default: %s)\n", storage.DefaultDBFile)
	fmt.Printf("  --index <path>      Local fingerprint index (env: VINYL_INDEX_PATH, default: %s)\n", storage.DefaultIndexFile)
	fmt.Println("  --temp <dir>        Temporary directory for audio conversion (env: VINYL_TEMP_DIR)")
	fmt.Println("  --log-level <lvl>   debug, info, warn or error (env: LOG_LEVEL)")
	fmt.Println("\nUsage:")
	fmt.Println("  vinylkeeper [global-options]                         interactive menu")
	fmt.Println("  vinylkeeper [global-options] session [--file <audio>]")
	fmt.Println("  vinylkeeper [global-options] plays [<sort key>]")
	fmt.Println("  vinylkeeper [global-options] recent [<count>]")
	fmt.Println("  vinylkeeper [global-options] index <audio_file> [--title <t>] [--artist <a>] [--album <a>] [--genre <g>]")
	fmt.Println("  vinylkeeper [global-options] match <audio_file>")
	fmt.Println("  vinylkeeper [global-options] tracks")
	fmt.Println("  vinylkeeper [global-options] delete <track_id>")
	fmt.Println("\nSort keys:")
	printSortKeys(os.Stdout)
	fmt.Println("\nConfiguration is read from ~/.config/vinylkeeper/config.toml and ./config.toml.")
}
