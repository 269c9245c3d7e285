package models

// Couple is the stored value for a hash bucket entry in the local index.
// AnchorTimeMs is the time (in ms) of the anchor peak in the indexed track.
type Couple struct {
	TrackID      string // UUID of the indexed track
	AnchorTimeMs uint32
}

// Match is a candidate produced by offset voting against the local index.
type Match struct {
	TrackID  string // UUID of the indexed track
	OffsetMs int32  // indexAnchorTimeMs - queryAnchorTimeMs
	Count    int
}
