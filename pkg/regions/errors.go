package regions

import (
	"errors"
	"fmt"
)

var (
	// ErrIOFailure matches any failure of a feature or descriptor persistence operation.
	ErrIOFailure = errors.New("region i/o failure")
	// ErrTypeMismatch is returned when two region sets of different specializations are combined.
	ErrTypeMismatch = errors.New("region set type mismatch")
	// ErrIndexOutOfRange is returned for region indices outside [0, RegionCount()).
	ErrIndexOutOfRange = errors.New("region index out of range")
	// ErrNoDescriptors is returned when descriptors are required but have been cleared.
	ErrNoDescriptors = errors.New("region set holds no descriptors")
	// ErrDescriptorLength is returned when a descriptor does not have the set's length.
	ErrDescriptorLength = errors.New("descriptor length mismatch")
	// ErrCountMismatch is returned when loaded features and descriptors do not pair up.
	ErrCountMismatch = errors.New("feature and descriptor counts differ")
	// ErrUnknownDescriber is returned by NewByName for unregistered names.
	ErrUnknownDescriber = errors.New("unknown describer")
)

// IOError records a failed feature or descriptor file operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Is reports IOError as ErrIOFailure.
func (e *IOError) Is(target error) bool { return target == ErrIOFailure }

func ioError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}

func indexError(what string, i, n int) error {
	return fmt.Errorf("%w: %s index %d, count %d", ErrIndexOutOfRange, what, i, n)
}
