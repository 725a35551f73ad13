package dataset

import "errors"

var (
	// ErrActorNotFound means an actor identifier is missing from a frame's
	// identifier list. It points at an inconsistent recording.
	ErrActorNotFound = errors.New("actor not found in frame")

	// ErrActorNotInMetadata means the metadata has no record, or no integer
	// id, for the requested actor name.
	ErrActorNotInMetadata = errors.New("actor not found in metadata")

	// ErrFrameOutOfRange is returned for frame indexes outside [0, frames).
	ErrFrameOutOfRange = errors.New("frame index out of range")

	// ErrSensorNotFound is returned for sensor names with no sensors/ entry.
	ErrSensorNotFound = errors.New("sensor not found")

	// ErrPathNotFound is returned by containers for unknown group or array paths.
	ErrPathNotFound = errors.New("path not found in container")

	// ErrShapeMismatch is returned when array lengths cannot be reconciled
	// with the inferred frame, actor and point counts.
	ErrShapeMismatch = errors.New("dataset shape mismatch")

	// ErrUnsupportedString is returned for string datasets stored in an
	// encoding the HDF5 reader cannot decode: anything other than
	// fixed-length strings and scalar or 1-D variable-length strings in
	// compact or contiguous storage.
	ErrUnsupportedString = errors.New("unsupported hdf5 string encoding")
)
