package deepcabac

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidParams is returned when layer parameters are inconsistent.
	ErrInvalidParams = errors.New("invalid layer parameters")

	// ErrCapacity is returned when a weight array is shorter than the number of weights to code.
	ErrCapacity = errors.New("weight array too short")

	// ErrNotStarted is returned when decoding is attempted before a buffer is bound.
	ErrNotStarted = errors.New("cabac decoding not started")

	// ErrContextsNotInitialized is returned when weights are coded before the context models are initialized.
	ErrContextsNotInitialized = errors.New("context models not initialized")

	// ErrUnsupportedOption is returned for a coding option this decoder does not implement.
	ErrUnsupportedOption = errors.New("unsupported coding option")

	// ErrEntryPointOutOfRange is returned when an entry point lies beyond the bound buffer.
	ErrEntryPointOutOfRange = errors.New("entry point out of range")

	// ErrEntryPointOrder is returned when an entry point lies before the data already decoded.
	ErrEntryPointOrder = errors.New("entry point behind decoder position")

	// ErrEntryPointCount is returned when the number of entry points does not match the segments of a layer.
	ErrEntryPointCount = errors.New("wrong number of entry points")

	// ErrCorruptStream is returned when the bitstream decodes to a value no encoder can produce.
	ErrCorruptStream = errors.New("corrupt weight stream")

	// ErrLevelNotReachable is returned when a level cannot be coded in the current trellis state.
	ErrLevelNotReachable = errors.New("level not reachable in trellis state")
)
