package advisor

import (
	"context"
	"time"

	"github.com/ashureev/advisor-chat/internal/metrics"
)

// Instrumented wraps a Client and records per-operation call metrics.
type Instrumented struct {
	next     Client
	recorder *metrics.Recorder
}

// Instrument returns a Client that reports every call to recorder.
func Instrument(next Client, recorder *metrics.Recorder) *Instrumented {
	return &Instrumented{next: next, recorder: recorder}
}

// InitSession implements Client.
func (i *Instrumented) InitSession(ctx context.Context, sessionID string) error {
	start := time.Now()
	err := i.next.InitSession(ctx, sessionID)
	i.recorder.ObserveRemoteCall("init_session", time.Since(start), err)
	return err
}

// SetContext implements Client.
func (i *Instrumented) SetContext(ctx context.Context, sessionID string, data ContextData) error {
	start := time.Now()
	err := i.next.SetContext(ctx, sessionID, data)
	i.recorder.ObserveRemoteCall("set_context", time.Since(start), err)
	return err
}

// ValidateConcentration implements Client.
func (i *Instrumented) ValidateConcentration(ctx context.Context, raw string) (string, error) {
	start := time.Now()
	name, err := i.next.ValidateConcentration(ctx, raw)
	i.recorder.ObserveRemoteCall("validate_concentration", time.Since(start), err)
	return name, err
}

// Answer implements Client. Answers flagged as errors by the service count as failures.
func (i *Instrumented) Answer(ctx context.Context, sessionID, query string) (Answer, error) {
	start := time.Now()
	ans, err := i.next.Answer(ctx, sessionID, query)
	observed := err
	if observed == nil && ans.Failed() {
		observed = errAnswerFlagged
	}
	i.recorder.ObserveRemoteCall("answer", time.Since(start), observed)
	return ans, err
}
