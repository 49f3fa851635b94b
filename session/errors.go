package session

import "errors"

var (
	// ErrProcessorRequired is returned when a turn processor is not provided.
	ErrProcessorRequired = errors.New("turn processor required")

	// ErrTranscriptRequired is returned when a transcript repository is not provided.
	ErrTranscriptRequired = errors.New("transcript repository required")

	// ErrInvalidTemperature is returned for temperatures outside [MinTemperature, MaxTemperature].
	ErrInvalidTemperature = errors.New("temperature out of range")

	// ErrRecorderClosed is returned when recording on a closed recorder.
	ErrRecorderClosed = errors.New("recorder closed")
)
