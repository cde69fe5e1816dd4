package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced directly to callers.
var (
	// ErrBusy is returned by StartCapture when a capture or processing run
	// is already active.
	ErrBusy = errors.New("a capture is already in progress")

	// ErrNotRecording is returned by StopCapture outside the Recording state.
	ErrNotRecording = errors.New("no active recording")

	// ErrNotFound is returned when an insight id resolves to no record.
	ErrNotFound = errors.New("insight not found")

	// ErrNoResults is returned by search when the vector index is empty.
	ErrNoResults = errors.New("no insights indexed yet")

	// ErrCaptureAborted marks a run the user cancelled mid-recording.
	ErrCaptureAborted = errors.New("capture aborted")
)

// AudioCaptureError is a device or IO failure during recording. The session
// is aborted and no insight is created.
type AudioCaptureError struct {
	Op  string
	Err error
}

func (e *AudioCaptureError) Error() string { return fmt.Sprintf("audio capture: %s: %v", e.Op, e.Err) }
func (e *AudioCaptureError) Unwrap() error { return e.Err }

// TranscriptionError is a pipeline failure; the source audio is retained so
// the user can retry manually.
type TranscriptionError struct {
	AudioPath string
	Err       error
}

func (e *TranscriptionError) Error() string { return fmt.Sprintf("transcription: %v", e.Err) }
func (e *TranscriptionError) Unwrap() error { return e.Err }

// GenerationError means the retry+fallback policy was exhausted without a
// result. Exhausted is true only when every configured backend failed.
type GenerationError struct {
	Exhausted bool
	Attempts  int
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("generation exhausted after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("generation: %v", e.Err)
}
func (e *GenerationError) Unwrap() error { return e.Err }

// StorageError is a durable-write failure. Fatal for the run; never leaves a
// half-written record visible.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Path, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// EmbeddingError is a transient embedding failure. It never fails a capture;
// the insight simply is not searchable until a rebuild repairs it.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return fmt.Sprintf("embedding: %v", e.Err) }
func (e *EmbeddingError) Unwrap() error { return e.Err }

// IndexError is a vector index failure, logged rather than propagated out of
// the capture pipeline.
type IndexError struct {
	Op  string
	Err error
}

func (e *IndexError) Error() string { return fmt.Sprintf("vector index: %s: %v", e.Op, e.Err) }
func (e *IndexError) Unwrap() error { return e.Err }

// SearchError is reported to the search caller, never fatal to the engine.
type SearchError struct {
	Query string
	Err   error
}

func (e *SearchError) Error() string { return fmt.Sprintf("search %q: %v", e.Query, e.Err) }
func (e *SearchError) Unwrap() error { return e.Err }
