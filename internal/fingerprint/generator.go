package fingerprint

import (
	"sort"

	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

// Generate runs the full chain over mono samples normalized to [-1, 1]:
// spectrogram, peak extraction, pair hashing.
func Generate(samples []float64, sampleRate int) ([]Hash, []Peak, error) {
	spec, err := Spectrogram(samples, sampleRate)
	if err != nil {
		return nil, nil, err
	}
	peaks := ExtractPeaks(spec, sampleRate)
	return Hashes(peaks), peaks, nil
}

// Couples groups hashes by address for storage under trackID.
func Couples(hashes []Hash, trackID string) map[uint32][]models.Couple {
	fp := make(map[uint32][]models.Couple, len(hashes))
	for _, h := range hashes {
		fp[h.Address] = append(fp[h.Address], models.Couple{TrackID: trackID, AnchorTimeMs: h.AnchorMs})
	}
	return fp
}

// Addresses returns the distinct addresses of hashes, in first-seen order.
func Addresses(hashes []Hash) []uint32 {
	seen := make(map[uint32]struct{}, len(hashes))
	out := make([]uint32, 0, len(hashes))
	for _, h := range hashes {
		if _, ok := seen[h.Address]; ok {
			continue
		}
		seen[h.Address] = struct{}{}
		out = append(out, h.Address)
	}
	return out
}

// Vote scores every indexed track against the query hashes. For each query hash
// found in db, a vote goes to (track, indexAnchor - queryAnchor); a track's score is
// its best-aligned offset's vote count. Matches are ordered by descending count,
// ties by track id.
func Vote(query []Hash, db map[uint32][]models.Couple) []models.Match {
	votes := make(map[string]map[int32]int)
	for _, h := range query {
		for _, cou := range db[h.Address] {
			offset := int32(cou.AnchorTimeMs) - int32(h.AnchorMs)
			m, ok := votes[cou.TrackID]
			if !ok {
				m = make(map[int32]int)
				votes[cou.TrackID] = m
			}
			m[offset]++
		}
	}

	matches := make([]models.Match, 0, len(votes))
	for trackID, offsets := range votes {
		best := models.Match{TrackID: trackID}
		for off, cnt := range offsets {
			if cnt > best.Count || (cnt == best.Count && off < best.OffsetMs) {
				best.Count, best.OffsetMs = cnt, off
			}
		}
		matches = append(matches, best)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Count != matches[j].Count {
			return matches[i].Count > matches[j].Count
		}
		return matches[i].TrackID < matches[j].TrackID
	})
	return matches
}
