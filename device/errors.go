package device

import "errors"

var (
	// ErrUnknownKind is returned when a buffer kind is not one of the
	// defined kinds. No GPU work is issued.
	ErrUnknownKind = errors.New("device: unknown buffer kind")

	// ErrReleased is returned by operations on a released Device.
	ErrReleased = errors.New("device: released")

	// ErrUploadActive is returned by BeginUpload while an upload is recording.
	ErrUploadActive = errors.New("device: upload already recording")

	// ErrNoUpload is returned when an upload operation runs outside
	// BeginUpload/EndUpload.
	ErrNoUpload = errors.New("device: no upload recording")

	// ErrInvalidSize is returned for zero sizes or data larger than the
	// requested size.
	ErrInvalidSize = errors.New("device: invalid size")

	// ErrInvalidDimensions is returned for zero-sized textures or row
	// strides shorter than a row of pixels.
	ErrInvalidDimensions = errors.New("device: invalid texture dimensions")

	// ErrNilResource is returned when a nil resource is passed.
	ErrNilResource = errors.New("device: resource is nil")
)
