package application

import (
	"errors"
	"strings"
)

var (
	ErrInvalidStep        = errors.New("invalid step")
	ErrApplicationsClosed = errors.New("applications are closed")
	ErrSubmitInProgress   = errors.New("submission already in progress")
	ErrAlreadySubmitted   = errors.New("application already submitted")
	ErrResetNotConfirmed  = errors.New("reset requires confirmation")
	ErrNoSubmitter        = errors.New("no submitter configured")
)

// User-facing messages.
const (
	MessageClosed          = "Applications are now closed. Your answers are saved but can no longer be submitted."
	MessageSubmitFailed    = "Something went wrong while submitting your application. Please try again."
	MessageSubmitted       = "Your application has been submitted. Thank you!"
	MessageSubmitting      = "Submitting your application..."
	MessageAlmostThere     = "Almost there, we are finalizing your application..."
	MessageStillProcessing = "Still processing. Please keep this page open, this can take up to a minute."
)

// ValidationError lists the problems blocking a step transition.
type ValidationError struct {
	Step     int
	Messages []string
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 0 {
		return "validation failed"
	}
	return e.Messages[0]
}

// SubmissionError is a failed submission reported by the forwarder. Message
// is safe to show to the applicant.
type SubmissionError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "submission failed"
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// userMessage picks what to show for a failed submission.
func userMessage(err error) string {
	var se *SubmissionError
	if errors.As(err, &se) && strings.TrimSpace(se.Message) != "" {
		return se.Message
	}
	return MessageSubmitFailed
}
