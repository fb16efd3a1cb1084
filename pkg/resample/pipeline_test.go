package resample

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPipelineFrames(t *testing.T) {
	var frames [][]byte

	p := &Pipeline{
		InputRate: 16000,
		OnFrame: func(frame []byte) {
			frames = append(frames, frame)
		},
	}
	err := p.Initialize()
	require.NoError(t, err)
	require.Equal(t, 8000, p.OutputRate)
	require.Equal(t, 960, p.FrameSize)

	p.Start()

	// 1000 input bytes produce 500 output bytes
	p.Write(make([]byte, 1000))
	require.Empty(t, frames)
	require.Equal(t, 500, p.Buffered())

	p.Write(make([]byte, 1000))
	require.Len(t, frames, 1)
	require.Len(t, frames[0], 960)
	require.Equal(t, 40, p.Buffered())

	p.Write(make([]byte, 4000))
	require.Len(t, frames, 3)
	for _, f := range frames {
		require.Len(t, f, 960)
	}
	require.Equal(t, 120, p.Buffered())
}

func TestPipelineInactive(t *testing.T) {
	n := 0

	p := &Pipeline{
		InputRate: 8000,
		OnFrame: func([]byte) {
			n++
		},
	}
	err := p.Initialize()
	require.NoError(t, err)

	p.Write(make([]byte, 2000))
	require.Equal(t, 0, n)
	require.Equal(t, 0, p.Buffered())

	p.Start()
	p.Write(make([]byte, 1000))
	require.Equal(t, 1, n)
	require.Equal(t, 40, p.Buffered())

	p.Stop()
	require.Equal(t, 0, p.Buffered())
	require.Equal(t, 1, n)

	p.Start()
	p.Write(make([]byte, 920))
	require.Equal(t, 1, n)
	p.Write(make([]byte, 40))
	require.Equal(t, 2, n)
}

func TestPipelineStopDiscardsCarry(t *testing.T) {
	var frames [][]byte

	p := &Pipeline{
		InputRate: 48000,
		OnFrame: func(frame []byte) {
			frames = append(frames, frame)
		},
	}
	err := p.Initialize()
	require.NoError(t, err)

	p.Start()
	p.Write(make([]byte, 11))
	require.Equal(t, 10, p.resampler.Carry())
	require.Equal(t, 1, p.resampler.Partial())

	p.Stop()
	require.Equal(t, 0, p.resampler.Carry())
	require.Equal(t, 0, p.resampler.Partial())
	require.Empty(t, frames)
}

func TestPipelineStopBeforeInitialize(t *testing.T) {
	p := &Pipeline{InputRate: 48000}
	require.NotPanics(t, p.Stop)
	require.Equal(t, 0, p.Buffered())
}

func TestPipelineSetInputRate(t *testing.T) {
	p := &Pipeline{InputRate: 16000}
	err := p.Initialize()
	require.NoError(t, err)

	err = p.SetInputRate(44100)
	require.EqualError(t, err,
		"unsupported sample rate conversion: 44100 Hz to 8000 Hz is not an integer ratio")
	require.Equal(t, 16000, p.InputRate)

	err = p.SetInputRate(24000)
	require.NoError(t, err)
	require.Equal(t, 24000, p.InputRate)
}

func TestPipelineUnsupportedRate(t *testing.T) {
	p := &Pipeline{InputRate: 11025}
	err := p.Initialize()
	require.Error(t, err)
}
