// Package advisor implements clients for the remote course advisory service.
package advisor

import (
	"context"
	"errors"
	"fmt"
)

// ErrStatus is wrapped by errors for non-2xx advisory service responses.
var ErrStatus = errors.New("advisory service returned error status")

var errAnswerFlagged = errors.New("answer flagged as error")

// ContextData is the onboarding profile submitted once the student confirms it.
type ContextData struct {
	Concentration string `json:"concentration"`
	GradeLevel    string `json:"gradeLevel"`
	Semester      string `json:"semester"`
}

// Answer is the advisory service's reply to a free-text question.
type Answer struct {
	Response    string   `json:"response"`
	Intent      string   `json:"intent,omitempty"`
	DataSources []string `json:"data_sources,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// Failed reports whether the service flagged the answer as an error.
func (a Answer) Failed() bool {
	return a.Error != ""
}

// Client is the contract the conversation core consumes.
type Client interface {
	// InitSession announces a new session. Failure is non-fatal to callers.
	InitSession(ctx context.Context, sessionID string) error

	// SetContext commits the completed onboarding profile for a session.
	SetContext(ctx context.Context, sessionID string, data ContextData) error

	// ValidateConcentration returns the canonical name for free-text input.
	ValidateConcentration(ctx context.Context, raw string) (string, error)

	// Answer asks a free-text question within a session.
	Answer(ctx context.Context, sessionID, query string) (Answer, error)
}

// Mode names the transport behind a Client for diagnostics.
type Mode string

const (
	ModeHTTP Mode = "http"
	ModeGRPC Mode = "grpc"
)

func statusError(op string, code int) error {
	return fmt.Errorf("%s: %w: %d", op, ErrStatus, code)
}

// Ensure both transports implement Client.
var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*GrpcClient)(nil)
	_ Client = (*Instrumented)(nil)
)
