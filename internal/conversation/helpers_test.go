package conversation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/advisor-chat/internal/advisor"
	"github.com/ashureev/advisor-chat/internal/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var planningDate = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// manualScheduler queues callbacks until the test runs them.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	mu      *sync.Mutex
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTask) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTask{mu: &s.mu, delay: d, fn: f}
	s.tasks = append(s.tasks, t)
	return t
}

// RunPending fires every queued callback that was not stopped and returns
// how many ran.
func (s *manualScheduler) RunPending() int {
	s.mu.Lock()
	pending := s.tasks
	s.tasks = nil
	s.mu.Unlock()

	ran := 0
	for _, t := range pending {
		s.mu.Lock()
		skip := t.stopped
		t.fired = !skip
		s.mu.Unlock()
		if skip {
			continue
		}
		t.fn()
		ran++
	}
	return ran
}

func (s *manualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.stopped {
			n++
		}
	}
	return n
}

// fakeClient records calls and returns configurable results.
type fakeClient struct {
	mu        sync.Mutex
	inits     []string
	contexts  []advisor.ContextData
	validated []string
	queries   []string

	initErr     error
	setErr      error
	canonical   map[string]string
	validateErr error
	answer      advisor.Answer
	answerErr   error

	// answerGate, when set, blocks Answer until it is closed.
	answerGate chan struct{}
	answering  chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		canonical: map[string]string{"cs": "Computer Science"},
		answer:    advisor.Answer{Response: "Try CSCI 0150 and CSCI 0200."},
	}
}

func (f *fakeClient) InitSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits = append(f.inits, sessionID)
	return f.initErr
}

func (f *fakeClient) SetContext(_ context.Context, _ string, data advisor.ContextData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contexts = append(f.contexts, data)
	return f.setErr
}

func (f *fakeClient) ValidateConcentration(_ context.Context, raw string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validated = append(f.validated, raw)
	if f.validateErr != nil {
		return "", f.validateErr
	}
	if name, ok := f.canonical[raw]; ok {
		return name, nil
	}
	return raw, nil
}

func (f *fakeClient) Answer(_ context.Context, _ string, query string) (advisor.Answer, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	gate, answering := f.answerGate, f.answering
	ans, err := f.answer, f.answerErr
	f.mu.Unlock()

	if gate != nil {
		if answering != nil {
			close(answering)
		}
		<-gate
	}
	return ans, err
}

func (f *fakeClient) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type harness struct {
	t      *testing.T
	conv   *Conversation
	client *fakeClient
	sched  *manualScheduler
}

func newHarness(t *testing.T, client *fakeClient, hooks Hooks) *harness {
	t.Helper()
	sched := &manualScheduler{}
	conv, err := New(context.Background(), Options{
		Client:        client,
		Vocabulary:    DefaultVocabulary(planningDate),
		Scheduler:     sched,
		GreetingDelay: DefaultGreetingDelay,
		Hooks:         hooks,
		Logger:        testLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(conv.Close)
	return &harness{t: t, conv: conv, client: client, sched: sched}
}

func (h *harness) option(label string) TurnResult {
	h.t.Helper()
	res, err := h.conv.SubmitOption(context.Background(), label)
	require.NoError(h.t, err)
	return res
}

func (h *harness) text(s string) TurnResult {
	h.t.Helper()
	res, err := h.conv.SubmitText(context.Background(), s)
	require.NoError(h.t, err)
	return res
}

// onboard drives a fresh conversation to the ready phase as a Junior in CS.
func (h *harness) onboard() {
	h.t.Helper()
	require.Equal(h.t, 1, h.sched.RunPending())
	h.option("Junior")
	h.option("Fall 2026")
	h.text("cs")
	h.option(OptionYes)
	require.Equal(h.t, domain.PhaseReady, h.conv.Phase())
}
