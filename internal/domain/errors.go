package domain

import "errors"

// ExtractionFailureMessage is shown to the driver when a label could not be read.
const ExtractionFailureMessage = "Extraction failed. Make sure the label is well lit and fully inside the frame."

// ExtractionError reports that a label image could not be turned into a record:
// the service was unreachable, answered with an error, or returned a payload
// that does not match the label schema.
type ExtractionError struct {
	Op  string
	Err error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return "extract label: " + e.Op
	}
	return "extract label: " + e.Op + ": " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// UserMessage is the driver-facing advice for retrying the capture.
func (e *ExtractionError) UserMessage() string { return ExtractionFailureMessage }

// IsExtractionError reports whether err carries an ExtractionError.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}
