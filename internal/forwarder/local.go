package forwarder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sfp-labs/fellowship-portal/internal/application"
)

// Messages returned to applicants. Upstream details never leak into them.
const (
	MessageInvalidPayload = "Your application could not be read. Please refresh the page and try again."
	MessageUpstreamFailed = "We could not save your application right now. Please try again in a moment."
	MessageInternal       = "Something went wrong on our side. Please try again."
)

// StatusFor maps a Forward or ValidatePayload error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, ErrUpstream), errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// MessageFor maps an error to the message shown to the applicant.
func MessageFor(err error) string {
	switch StatusFor(err) {
	case http.StatusBadRequest:
		return MessageInvalidPayload
	case http.StatusBadGateway:
		return MessageUpstreamFailed
	default:
		return MessageInternal
	}
}

// LocalSubmitter submits payloads through an in-process Forwarder.
type LocalSubmitter struct {
	Forwarder *Forwarder
}

// Submit implements application.Submitter.
func (s LocalSubmitter) Submit(ctx context.Context, p application.Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return submissionError(fmt.Errorf("failed to encode payload: %w", err))
	}
	if err := ValidatePayload(body); err != nil {
		return submissionError(err)
	}
	if _, err := s.Forwarder.Forward(ctx, body); err != nil {
		return submissionError(err)
	}
	return nil
}

func submissionError(err error) *application.SubmissionError {
	return &application.SubmissionError{
		StatusCode: StatusFor(err),
		Message:    MessageFor(err),
		Err:        err,
	}
}
