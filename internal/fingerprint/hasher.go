package fingerprint

import (
	"math"
)

const (
	// Bits allocated to frequency indices (must fit the number of FFT bins).
	MaxFreqBits = 9

	// Bits allocated to the anchor/target delta in ms; 14 bits covers ~16.3s.
	MaxDeltaBits = 14

	// How many target peaks to pair with each anchor.
	FanOut = 6

	MinDeltaMs = 10
	MaxDeltaMs = 15000
)

// Hash is one anchor/target pair: the packed address and the anchor's time.
type Hash struct {
	Address  uint32 `msgpack:"a"`
	AnchorMs uint32 `msgpack:"t"`
}

// createAddress packs anchor/target frequency and delta time into a 32-bit key:
// [ anchorFreq (9) | targetFreq (9) | delta ms (14) ].
// ok is false when the pair does not fit.
func createAddress(anchor Peak, target Peak) (uint32, bool) {
	anchorFreq := uint32(anchor.FreqIdx)
	targetFreq := uint32(target.FreqIdx)
	deltaMs := uint32(math.Round((target.Time - anchor.Time) * 1000.0))

	if deltaMs < MinDeltaMs || deltaMs > MaxDeltaMs {
		return 0, false
	}

	freqMask := uint32((1 << MaxFreqBits) - 1)
	deltaMask := uint32((1 << MaxDeltaBits) - 1)
	if anchorFreq > freqMask || targetFreq > freqMask || deltaMs > deltaMask {
		return 0, false
	}

	return anchorFreq<<(MaxDeltaBits+MaxFreqBits) | targetFreq<<MaxDeltaBits | deltaMs, true
}

// Hashes pairs each peak with up to FanOut later peaks. peaks must be time-sorted,
// as ExtractPeaks returns them.
func Hashes(peaks []Peak) []Hash {
	out := make([]Hash, 0, len(peaks)*FanOut)
	for i, anchor := range peaks {
		anchorMs := uint32(math.Round(anchor.Time * 1000.0))
		paired := 0
		for j := i + 1; j < len(peaks) && paired < FanOut; j++ {
			addr, ok := createAddress(anchor, peaks[j])
			if !ok {
				continue
			}
			out = append(out, Hash{Address: addr, AnchorMs: anchorMs})
			paired++
		}
	}
	return out
}
