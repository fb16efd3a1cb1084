package liberrors

import (
	"fmt"
)

// ErrUnsupportedSampleRate is returned when the ratio between two sample rates
// is not an integer.
type ErrUnsupportedSampleRate struct {
	InputRate  int
	OutputRate int
}

// Error implements the error interface.
func (e ErrUnsupportedSampleRate) Error() string {
	return fmt.Sprintf("unsupported sample rate conversion: %d Hz to %d Hz is not an integer ratio",
		e.InputRate, e.OutputRate)
}

// ErrWriteQueueFull is returned when the talkback write queue is full.
type ErrWriteQueueFull struct{}

// Error implements the error interface.
func (e ErrWriteQueueFull) Error() string {
	return "write queue is full"
}
