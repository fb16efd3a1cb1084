package resample

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bluenviron/rtspcam/pkg/liberrors"
)

func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func bytesToSamples(buf []byte) []int16 {
	samples := make([]int16, len(buf)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	return samples
}

func TestResamplerDecimate(t *testing.T) {
	r := &Resampler{InputRate: 16000, OutputRate: 8000}
	err := r.Initialize()
	require.NoError(t, err)

	out := r.Resample(samplesToBytes([]int16{100, 300, -100, 100}))
	require.Equal(t, []int16{200, 0}, bytesToSamples(out))
	require.Equal(t, 0, r.Carry())
}

func TestResamplerGainAndClip(t *testing.T) {
	r := &Resampler{InputRate: 24000, OutputRate: 8000, Gain: 4}
	err := r.Initialize()
	require.NoError(t, err)

	out := r.Resample(samplesToBytes([]int16{
		30000, 30000, 30000,
		-30000, -30000, -30000,
		1, 2, 2,
	}))
	require.Equal(t, []int16{32767, -32768, 7}, bytesToSamples(out))
}

func TestResamplerReplicate(t *testing.T) {
	r := &Resampler{InputRate: 8000, OutputRate: 16000, Gain: 3}
	err := r.Initialize()
	require.NoError(t, err)

	out := r.Resample(samplesToBytes([]int16{5, -7}))
	require.Equal(t, []int16{5, 5, -7, -7}, bytesToSamples(out))
}

func TestResamplerPassThrough(t *testing.T) {
	r := &Resampler{InputRate: 8000, OutputRate: 8000}
	err := r.Initialize()
	require.NoError(t, err)

	out := r.Resample([]byte{1, 2, 3, 4, 5})
	require.Equal(t, []byte{1, 2, 3, 4}, out)
	require.Equal(t, 0, r.Carry())
	require.Equal(t, 1, r.Partial())

	out = r.Resample([]byte{6, 7, 8})
	require.Equal(t, []byte{5, 6, 7, 8}, out)
	require.Equal(t, 0, r.Partial())
}

func TestResamplerPartialSample(t *testing.T) {
	r := &Resampler{InputRate: 16000, OutputRate: 8000}
	err := r.Initialize()
	require.NoError(t, err)

	in := samplesToBytes([]int16{100, 300, -100, 100})

	out := r.Resample(in[:3])
	require.Empty(t, out)
	require.Equal(t, 2, r.Carry())
	require.Equal(t, 1, r.Partial())

	out = r.Resample(in[3:])
	require.Equal(t, []int16{200, 0}, bytesToSamples(out))
	require.Equal(t, 0, r.Carry())
	require.Equal(t, 0, r.Partial())

	r.Resample(in[:5])
	require.Equal(t, 1, r.Partial())
	r.Reset()
	require.Equal(t, 0, r.Carry())
	require.Equal(t, 0, r.Partial())
}

func TestResamplerChunking(t *testing.T) {
	samples := make([]int16, 301)
	for i := range samples {
		samples[i] = int16((i * 211) % 4000)
	}
	all := samplesToBytes(samples)

	ref := &Resampler{InputRate: 48000, OutputRate: 8000, Gain: 1.5}
	err := ref.Initialize()
	require.NoError(t, err)
	expected := ref.Resample(all)
	require.Equal(t, (301%6)*2, ref.Carry())

	for _, split := range []int{1, 2, 3, 7, 8, 12, 13, 100, 333, 334, 599, 600, 601} {
		r := &Resampler{InputRate: 48000, OutputRate: 8000, Gain: 1.5}
		err = r.Initialize()
		require.NoError(t, err)

		var out []byte
		out = append(out, r.Resample(all[:split])...)
		require.Equal(t, 0, r.Carry()%2)
		out = append(out, r.Resample(all[split:])...)

		require.Equal(t, expected, out)
		require.Equal(t, ref.Carry(), r.Carry())
		require.Equal(t, 0, r.Partial())
	}

	// three chunks with odd boundaries
	r := &Resampler{InputRate: 48000, OutputRate: 8000, Gain: 1.5}
	err = r.Initialize()
	require.NoError(t, err)

	var out []byte
	for _, chunk := range [][]byte{all[:5], all[5:42], all[42:]} {
		out = append(out, r.Resample(chunk)...)
	}
	require.Equal(t, expected, out)
}

func TestResamplerUnsupportedRate(t *testing.T) {
	for _, ca := range []struct {
		in  int
		out int
	}{
		{11025, 8000},
		{8000, 11025},
		{0, 8000},
	} {
		r := &Resampler{InputRate: ca.in, OutputRate: ca.out}
		err := r.Initialize()

		var target liberrors.ErrUnsupportedSampleRate
		require.True(t, errors.As(err, &target))
		require.Equal(t, ca.in, target.InputRate)
		require.Equal(t, ca.out, target.OutputRate)
	}
}
