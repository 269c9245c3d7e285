package audio

import (
	"encoding/binary"
	"errors"
)

const int16Scale = 1.0 / 32768.0

// DecodeS16LE decodes little-endian 16-bit PCM into out and returns the number of samples.
// A trailing odd byte is ignored.
func DecodeS16LE(data []byte, out []int16) int {
	n := min(len(data)/2, len(out))
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return n
}

// EncodeS16LE encodes samples as little-endian 16-bit PCM.
func EncodeS16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// ToFloat64 converts 16-bit samples to floats normalized to [-1, 1).
func ToFloat64(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) * int16Scale
	}
	return out
}

// FromFloat64 converts normalized floats back to 16-bit samples, clipping out-of-range values.
func FromFloat64(samples []float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		switch {
		case s >= 1.0:
			out[i] = 32767
		case s < -1.0:
			out[i] = -32768
		default:
			out[i] = int16(s * 32768.0)
		}
	}
	return out
}

// Downmix averages interleaved frames of numChannels into mono samples written to out.
// It returns the number of frames written.
func Downmix(interleaved []int, numChannels int, out []int16) (int, error) {
	if numChannels < 1 {
		return 0, errors.New("unsupported channel count")
	}
	frames := min(len(interleaved)/numChannels, len(out))
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < numChannels; c++ {
			sum += interleaved[i*numChannels+c]
		}
		out[i] = int16(sum / numChannels)
	}
	return frames, nil
}
