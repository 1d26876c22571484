package facecap

import "errors"

// Error kinds reported by the capture pipeline. They are wrapped with
// additional context and should be matched with errors.Is.
var (
	// ErrDeviceUnavailable is returned when the capture device cannot be opened.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrModelLoad is returned when the cascade file is missing or cannot be parsed.
	ErrModelLoad = errors.New("failed to load cascade classifier")
	// ErrDirUnwritable is returned when the samples directory cannot be created or written.
	ErrDirUnwritable = errors.New("samples directory is not writable")
	// ErrFrameRead signals that no more frames can be read from the source.
	ErrFrameRead = errors.New("failed to read frame")
	// ErrSampleWrite is returned when a single face sample could not be saved.
	ErrSampleWrite = errors.New("failed to save sample")
	// ErrRuntimeFault wraps an unexpected failure inside the capture loop.
	ErrRuntimeFault = errors.New("capture loop fault")
)
