package fingerprint

import (
	"math"
	"sort"
)

type Peak struct {
	TimeIdx int
	FreqIdx int
	Time    float64 // seconds from the start of the analysed audio
	Freq    float64 // Hz
	MagDB   float64
}

const (
	freqNeighbour = 3
	timeNeighbour = 1
	minDbAboveAvg = 3.0
	eps           = 1e-10
)

// bands splits nBins into logarithmic bands: [0,10), [10,20), [20,40), ...
func bands(nBins int) [][2]int {
	out := [][2]int{{0, min(10, nBins)}}
	for start := 10; start < nBins; start *= 2 {
		end := min(start*2, nBins)
		out = append(out, [2]int{start, end})
	}
	return out
}

// ExtractPeaks picks the strongest bin of each band per frame and keeps it if it
// stands minDbAboveAvg above the frame's band average and is a local maximum in
// its time/frequency neighbourhood. Peaks are returned sorted by time, then frequency.
func ExtractPeaks(spectrogram [][]float64, sampleRate int) []Peak {
	if len(spectrogram) == 0 || len(spectrogram[0]) == 0 {
		return nil
	}

	nFrames := len(spectrogram)
	nBins := len(spectrogram[0])
	freqRes := float64(sampleRate) / float64(WindowSize)
	frameTime := float64(HopSize) / float64(sampleRate)
	bs := bands(nBins)

	peaks := make([]Peak, 0, nFrames*2)
	maxMag := make([]float64, len(bs))
	maxIdx := make([]int, len(bs))

	for t, frame := range spectrogram {
		var sumDb float64
		for bi, b := range bs {
			maxMag[bi], maxIdx[bi] = 0, b[0]
			for i := b[0]; i < b[1]; i++ {
				if frame[i] > maxMag[bi] {
					maxMag[bi], maxIdx[bi] = frame[i], i
				}
			}
			sumDb += 20.0 * math.Log10(maxMag[bi]+eps)
		}
		avgDb := sumDb / float64(len(bs))

		for bi, mag := range maxMag {
			if mag <= 0 {
				continue
			}
			magDb := 20.0 * math.Log10(mag+eps)
			if magDb < avgDb+minDbAboveAvg {
				continue
			}
			bin := maxIdx[bi]
			if !isLocalMax(spectrogram, t, bin, mag) {
				continue
			}
			peaks = append(peaks, Peak{
				TimeIdx: t,
				FreqIdx: bin,
				Time:    float64(t) * frameTime,
				Freq:    float64(bin) * freqRes,
				MagDB:   magDb,
			})
		}
	}

	sort.Slice(peaks, func(i, j int) bool {
		if peaks[i].TimeIdx == peaks[j].TimeIdx {
			return peaks[i].FreqIdx < peaks[j].FreqIdx
		}
		return peaks[i].TimeIdx < peaks[j].TimeIdx
	})
	return peaks
}

func isLocalMax(spectrogram [][]float64, t, bin int, mag float64) bool {
	nFrames := len(spectrogram)
	nBins := len(spectrogram[0])
	for tIdx := max(t-timeNeighbour, 0); tIdx <= min(t+timeNeighbour, nFrames-1); tIdx++ {
		for fIdx := max(bin-freqNeighbour, 0); fIdx <= min(bin+freqNeighbour, nBins-1); fIdx++ {
			if tIdx == t && fIdx == bin {
				continue
			}
			if spectrogram[tIdx][fIdx] > mag {
				return false
			}
		}
	}
	return true
}
