package vinylkeeper

import "github.com/himanishpuri/VinylKeeper/pkg/models"

// Logger is the logging surface the service writes to.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

// MatchResult is one indexed track matched against a whole audio file.
type MatchResult struct {
	TrackID string
	models.SongMetadata
	Score      int     // aligned fingerprint hashes
	OffsetMs   int32   // position of the query within the track
	Confidence float64 // 0-100
}
