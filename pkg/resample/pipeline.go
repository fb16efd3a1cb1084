package resample

const (
	defaultOutputRate = 8000
	defaultFrameSize  = 960
)

// Pipeline converts PCM chunks of arbitrary size into fixed-size frames.
// It is not safe for concurrent use.
type Pipeline struct {
	// input sample rate.
	InputRate int

	// output sample rate.
	// It defaults to 8000.
	OutputRate int

	// gain applied when decimating.
	// It defaults to 1.
	Gain float64

	// size of output frames, in bytes.
	// It defaults to 960 (60ms at 8000Hz).
	FrameSize int

	// called when a frame is complete.
	OnFrame func([]byte)

	resampler *Resampler
	buf       []byte
	active    bool
}

// Initialize initializes Pipeline.
func (p *Pipeline) Initialize() error {
	if p.OutputRate == 0 {
		p.OutputRate = defaultOutputRate
	}
	if p.Gain == 0 {
		p.Gain = 1
	}
	if p.FrameSize == 0 {
		p.FrameSize = defaultFrameSize
	}
	if p.OnFrame == nil {
		p.OnFrame = func([]byte) {}
	}

	return p.setResampler(p.InputRate)
}

func (p *Pipeline) setResampler(inputRate int) error {
	r := &Resampler{
		InputRate:  inputRate,
		OutputRate: p.OutputRate,
		Gain:       p.Gain,
	}
	err := r.Initialize()
	if err != nil {
		return err
	}

	p.InputRate = inputRate
	p.resampler = r
	p.buf = nil
	return nil
}

// Start enables processing of written chunks.
func (p *Pipeline) Start() {
	p.active = true
}

// Stop disables processing and discards buffered audio.
// A partial frame is never emitted.
func (p *Pipeline) Stop() {
	p.active = false
	if p.resampler != nil {
		p.resampler.Reset()
	}
	p.buf = nil
}

// SetInputRate changes the input sample rate.
// Buffered audio is discarded.
func (p *Pipeline) SetInputRate(rate int) error {
	return p.setResampler(rate)
}

// Buffered returns the number of bytes waiting to complete a frame.
func (p *Pipeline) Buffered() int {
	return len(p.buf)
}

// Write processes a chunk. Chunks written while the pipeline is stopped are discarded.
func (p *Pipeline) Write(chunk []byte) {
	if !p.active {
		return
	}

	p.buf = append(p.buf, p.resampler.Resample(chunk)...)

	for len(p.buf) >= p.FrameSize {
		frame := make([]byte, p.FrameSize)
		copy(frame, p.buf)
		p.buf = p.buf[p.FrameSize:]
		p.OnFrame(frame)
	}

	if len(p.buf) == 0 {
		p.buf = nil
	}
}
