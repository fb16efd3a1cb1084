// Package resample contains utilities to convert the sample rate of 16-bit PCM audio.
package resample

import (
	"encoding/binary"
	"math"

	"github.com/bluenviron/rtspcam/pkg/liberrors"
)

const sampleSize = 2

func clip(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// Resampler converts 16-bit little-endian mono PCM between sample rates
// whose ratio is an integer.
// Samples that do not fill a whole decimation window are kept
// and prepended to the next chunk, as well as a trailing partial sample.
type Resampler struct {
	// input sample rate.
	InputRate int

	// output sample rate.
	OutputRate int

	// gain applied when decimating.
	// It defaults to 1.
	Gain float64

	ratio   int
	carry   []byte
	partial []byte
}

// Initialize initializes Resampler.
func (r *Resampler) Initialize() error {
	if r.Gain == 0 {
		r.Gain = 1
	}

	switch {
	case r.InputRate <= 0 || r.OutputRate <= 0:
		return liberrors.ErrUnsupportedSampleRate{InputRate: r.InputRate, OutputRate: r.OutputRate}

	case r.InputRate >= r.OutputRate:
		if (r.InputRate % r.OutputRate) != 0 {
			return liberrors.ErrUnsupportedSampleRate{InputRate: r.InputRate, OutputRate: r.OutputRate}
		}
		r.ratio = r.InputRate / r.OutputRate

	default:
		if (r.OutputRate % r.InputRate) != 0 {
			return liberrors.ErrUnsupportedSampleRate{InputRate: r.InputRate, OutputRate: r.OutputRate}
		}
		r.ratio = r.OutputRate / r.InputRate
	}

	r.carry = nil
	r.partial = nil
	return nil
}

// Reset discards the carry and the partial sample.
func (r *Resampler) Reset() {
	r.carry = nil
	r.partial = nil
}

// Carry returns the number of bytes of whole samples kept for the next call.
// It is always even.
func (r *Resampler) Carry() int {
	return len(r.carry)
}

// Partial returns the number of bytes of a trailing partial sample
// kept for the next call.
func (r *Resampler) Partial() int {
	return len(r.partial)
}

// Resample converts a chunk.
func (r *Resampler) Resample(chunk []byte) []byte {
	var in []byte
	if len(r.carry) != 0 || len(r.partial) != 0 {
		in = make([]byte, len(r.carry)+len(r.partial)+len(chunk))
		n := copy(in, r.carry)
		n += copy(in[n:], r.partial)
		copy(in[n:], chunk)
		r.carry = nil
		r.partial = nil
	} else {
		in = chunk
	}

	// a trailing partial sample is completed by the next chunk
	if rest := len(in) % sampleSize; rest != 0 {
		r.partial = []byte{in[len(in)-1]}
		in = in[:len(in)-rest]
	}

	switch {
	case r.InputRate == r.OutputRate:
		out := make([]byte, len(in))
		copy(out, in)
		return out

	case r.InputRate > r.OutputRate:
		return r.decimate(in)

	default:
		return r.replicate(in)
	}
}

func (r *Resampler) decimate(in []byte) []byte {
	window := r.ratio * sampleSize
	n := len(in) / window
	out := make([]byte, n*sampleSize)

	for i := range n {
		sum := 0
		for j := range r.ratio {
			pos := i*window + j*sampleSize
			sum += int(int16(binary.LittleEndian.Uint16(in[pos:])))
		}

		v := math.Round(float64(sum) / float64(r.ratio) * r.Gain)
		binary.LittleEndian.PutUint16(out[i*sampleSize:], uint16(clip(v)))
	}

	if rest := in[n*window:]; len(rest) != 0 {
		r.carry = make([]byte, len(rest))
		copy(r.carry, rest)
	}

	return out
}

func (r *Resampler) replicate(in []byte) []byte {
	out := make([]byte, len(in)*r.ratio)
	pos := 0

	for i := 0; i < len(in); i += sampleSize {
		for range r.ratio {
			out[pos] = in[i]
			out[pos+1] = in[i+1]
			pos += sampleSize
		}
	}

	return out
}
