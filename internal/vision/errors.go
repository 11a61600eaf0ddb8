package vision

// ProcessingError reports a recoverable failure in the measurement pipeline:
// a missing frame, an undecodable image, or a frame too small to crop.
// The monitoring loop treats it as "no measurement this cycle".
type ProcessingError struct {
	Reason string
}

func (e *ProcessingError) Error() string { return e.Reason }
