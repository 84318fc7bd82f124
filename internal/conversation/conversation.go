// Package conversation drives the onboarding flow and the free-form Q&A that
// follows it. Transition is the pure state machine; Conversation owns one
// session's transcript and performs the remote calls Transition asks for.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/advisor-chat/internal/advisor"
	"github.com/ashureev/advisor-chat/internal/domain"
	"github.com/ashureev/advisor-chat/internal/metrics"
	"github.com/ashureev/advisor-chat/internal/transcript"
	"github.com/google/uuid"
)

// ErrClosed is returned for turns submitted after Close.
var ErrClosed = errors.New("conversation closed")

// Default pacing used by the server. Options leave a zero delay as zero,
// which fires on the next scheduler tick.
const (
	DefaultGreetingDelay = 500 * time.Millisecond
	DefaultFollowUpDelay = 500 * time.Millisecond
)

// Hooks observe conversation output. They run outside the conversation's
// locks and must not block.
type Hooks struct {
	// OnAppend is called for every message appended to the transcript.
	OnAppend func(sessionID string, msg domain.Message)
	// OnFinalize is called once a profile is committed.
	OnFinalize func(profile domain.SessionProfile)
	// OnReset is called when a new session starts.
	OnReset func(sessionID string)
}

// Options configures a Conversation.
type Options struct {
	Client          advisor.Client
	Vocabulary      *Vocabulary
	Scheduler       Scheduler
	GreetingDelay   time.Duration
	FollowUpDelay   time.Duration
	HistoryCapacity int
	RecentCapacity  int
	Hooks           Hooks
	Metrics         *metrics.Recorder
	Logger          *slog.Logger
	Now             func() time.Time
}

// TurnResult describes what a single turn did.
type TurnResult struct {
	// Accepted is false when the input was ignored.
	Accepted bool             `json:"accepted"`
	Messages []domain.Message `json:"messages"`
	OpenURL  string           `json:"open_url,omitempty"`
	Phase    domain.Phase     `json:"phase"`
}

// Snapshot is a read-only view of the conversation.
type Snapshot struct {
	SessionID     string                `json:"session_id"`
	Phase         domain.Phase          `json:"phase"`
	Profile       domain.SessionProfile `json:"profile"`
	Messages      []domain.Message      `json:"messages"`
	ActiveOptions []string              `json:"active_options"`
	AcceptsText   bool                  `json:"accepts_text"`
	InputHint     string                `json:"input_hint"`
	Started       bool                  `json:"started"`
	RecentChats   []string              `json:"recent_chats"`
	Offline       bool                  `json:"offline"`
	History       []string              `json:"-"`
}

// Conversation is one student's chat. Turns are serialized; remote calls run
// without holding the state lock, and their results are discarded if the
// session was reset in the meantime.
type Conversation struct {
	client        advisor.Client
	vocab         *Vocabulary
	sched         Scheduler
	greetingDelay time.Duration
	followUpDelay time.Duration
	hooks         Hooks
	metrics       *metrics.Recorder
	logger        *slog.Logger
	now           func() time.Time

	// turnMu serializes student turns end to end, including remote calls.
	turnMu sync.Mutex

	mu           sync.Mutex
	sessionID    string
	state        State
	transcript   *transcript.Store
	history      *transcript.Window
	recent       *transcript.RecentChats
	offline      bool
	closed       bool
	lastActivity time.Time
	tasks        map[uint64]Task
	nextTaskID   uint64
}

// New creates a conversation and starts its first session.
func New(ctx context.Context, opts Options) (*Conversation, error) {
	if opts.Client == nil {
		return nil, errors.New("conversation: advisor client is required")
	}
	if opts.Vocabulary == nil {
		opts.Vocabulary = DefaultVocabulary(time.Now())
	}
	if opts.Scheduler == nil {
		opts.Scheduler = TimerScheduler()
	}
	if opts.HistoryCapacity <= 0 {
		opts.HistoryCapacity = transcript.DefaultHistoryCapacity
	}
	if opts.RecentCapacity <= 0 {
		opts.RecentCapacity = transcript.DefaultRecentCapacity
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Conversation{
		client:        opts.Client,
		vocab:         opts.Vocabulary,
		sched:         opts.Scheduler,
		greetingDelay: opts.GreetingDelay,
		followUpDelay: opts.FollowUpDelay,
		hooks:         opts.Hooks,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		now:           opts.Now,
		history:       transcript.NewWindow(opts.HistoryCapacity),
		recent:        transcript.NewRecentChats(opts.RecentCapacity),
		tasks:         make(map[uint64]Task),
	}
	if err := c.Reset(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func newSessionID() string {
	return "session_" + uuid.NewString()
}

// SessionID returns the current session id.
func (c *Conversation) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Phase returns the current phase.
func (c *Conversation) Phase() domain.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Phase()
}

// LastActivity returns when the conversation last saw a turn or reset.
func (c *Conversation) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Snapshot returns a copy of the conversation's visible state.
func (c *Conversation) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	profile := c.state.Profile()
	profile.SessionID = c.sessionID
	return Snapshot{
		SessionID:     c.sessionID,
		Phase:         c.state.Phase(),
		Profile:       profile,
		Messages:      c.transcript.Messages(),
		ActiveOptions: c.transcript.ActiveOptions(),
		AcceptsText:   c.state.AcceptsText(),
		InputHint:     c.state.InputHint(),
		Started:       c.transcript.HasUserTurn(),
		RecentChats:   c.recent.Labels(),
		Offline:       c.offline,
		History:       c.history.Entries(),
	}
}

// Reset abandons the current session and starts a new one. Pending greeting
// and follow-up callbacks are cancelled; responses still in flight for the old
// session are discarded when they arrive. Recent chats survive.
func (c *Conversation) Reset(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.cancelTasksLocked()
	sid := newSessionID()
	c.sessionID = sid
	c.state = CollectingYear{}
	c.transcript = transcript.NewStore()
	c.history.Reset()
	c.offline = false
	c.lastActivity = c.now()
	c.mu.Unlock()

	c.logger.Info("Conversation session started", "session_id", sid)
	if c.hooks.OnReset != nil {
		c.hooks.OnReset(sid)
	}

	initErr := c.client.InitSession(ctx, sid)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.sessionID != sid {
		return nil
	}
	if initErr != nil {
		c.offline = true
		c.logger.Warn("Advisor session init failed, continuing offline", "session_id", sid, "error", initErr)
	}
	c.scheduleLocked(sid, c.greetingDelay, func() domain.Message {
		return c.appendLocked(domain.AuthorAssistant, c.vocab.greeting(), YearOptions())
	})
	return nil
}

// Close cancels pending callbacks. Later turns return ErrClosed.
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cancelTasksLocked()
}

// SubmitOption handles a click on an option label. Labels outside the active
// option set are ignored.
func (c *Conversation) SubmitOption(ctx context.Context, label string) (TurnResult, error) {
	return c.dispatch(ctx, "option", func() (Event, bool) {
		if !c.transcript.IsActiveOption(label) {
			return nil, false
		}
		return OptionSelected{Label: label}, true
	})
}

// SubmitText handles free text typed by the student.
func (c *Conversation) SubmitText(ctx context.Context, text string) (TurnResult, error) {
	return c.dispatch(ctx, "text", func() (Event, bool) {
		return TextSubmitted{Text: text, Recent: c.history.Last(contextWindow)}, true
	})
}

// dispatch runs one turn: the initial event plus any events produced by the
// remote calls it triggers. build runs with c.mu held.
func (c *Conversation) dispatch(ctx context.Context, kind string, build func() (Event, bool)) (TurnResult, error) {
	c.turnMu.Lock()
	defer c.turnMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return TurnResult{}, ErrClosed
	}
	c.lastActivity = c.now()
	sid := c.sessionID

	var res TurnResult
	ev, ok := build()
	var finalized []domain.SessionProfile
	notified := 0

	for ok {
		next, effects := Transition(c.state, ev, c.vocab)
		if len(effects) == 0 {
			break
		}
		res.Accepted = true
		c.state = next

		remote, profile := c.applyLocked(sid, effects, &res)
		if profile != nil {
			finalized = append(finalized, *profile)
		}
		if remote == nil {
			break
		}

		c.mu.Unlock()
		c.notify(sid, res.Messages[notified:])
		notified = len(res.Messages)
		ev = c.perform(ctx, sid, remote)
		c.mu.Lock()

		if c.closed || c.sessionID != sid {
			c.logger.Debug("Discarding response for stale session", "session_id", sid)
			ok = false
		}
	}

	res.Phase = c.state.Phase()
	c.mu.Unlock()

	c.notify(sid, res.Messages[notified:])
	for _, p := range finalized {
		c.metrics.IncOnboardingCompleted()
		if c.hooks.OnFinalize != nil {
			c.hooks.OnFinalize(p)
		}
	}

	outcome := "ignored"
	if res.Accepted {
		outcome = "accepted"
	}
	c.metrics.ObserveTurn(kind, outcome)
	return res, nil
}

// applyLocked carries out local effects and returns the remote effect, if any,
// plus the profile committed by this step.
func (c *Conversation) applyLocked(sid string, effects []Effect, res *TurnResult) (Effect, *domain.SessionProfile) {
	var remote Effect
	var finalized *domain.SessionProfile

	for _, e := range effects {
		switch e := e.(type) {
		case AppendUser:
			res.Messages = append(res.Messages, c.appendLocked(domain.AuthorUser, e.Content, nil))
		case AppendAssistant:
			res.Messages = append(res.Messages, c.appendLocked(domain.AuthorAssistant, e.Content, e.Options))
		case OpenReference:
			res.OpenURL = e.URL
		case ScheduleFollowUp:
			c.scheduleLocked(sid, c.followUpDelay, func() domain.Message {
				return c.appendLocked(domain.AuthorAssistant, followUpMessage, PrimaryActions())
			})
		case RecordRecentChat:
			c.recent.Add(e.Label)
			profile := c.state.Profile()
			profile.SessionID = sid
			finalized = &profile
		case ValidateConcentration, SubmitContext, AskAdvisor:
			remote = e
		}
	}
	return remote, finalized
}

// perform executes a remote effect and converts its outcome into an event.
func (c *Conversation) perform(ctx context.Context, sid string, eff Effect) Event {
	switch e := eff.(type) {
	case ValidateConcentration:
		name, err := c.client.ValidateConcentration(ctx, e.Raw)
		if err != nil {
			c.logger.Warn("Concentration validation failed, using raw input",
				"session_id", sid, "concentration", e.Raw, "error", err)
			name = ""
		}
		return ConcentrationValidated{Raw: e.Raw, Canonical: name}

	case SubmitContext:
		err := c.client.SetContext(ctx, sid, advisor.ContextData{
			Concentration: e.Profile.Concentration(),
			GradeLevel:    string(e.Profile.Year),
			Semester:      e.Profile.Semester,
		})
		if err != nil {
			c.logger.Error("Failed to set advisor context", "session_id", sid, "error", err)
			return ContextFailed{Err: err}
		}
		return ContextSaved{}

	case AskAdvisor:
		ans, err := c.client.Answer(ctx, sid, e.Query)
		if err != nil {
			c.logger.Warn("Advisor answer failed", "session_id", sid, "error", err)
			return AnswerReceived{Content: e.Fallback, Failed: true}
		}
		if strings.TrimSpace(ans.Response) == "" {
			return AnswerReceived{Content: e.Fallback, Failed: true}
		}
		return AnswerReceived{Content: ans.Response, Failed: ans.Failed()}
	}
	return nil
}

func (c *Conversation) appendLocked(author domain.Author, content string, options []string) domain.Message {
	msg := c.transcript.Append(author, content, options)
	c.history.Record(msg)
	return msg
}

// scheduleLocked registers a delayed assistant message for session sid.
func (c *Conversation) scheduleLocked(sid string, delay time.Duration, produce func() domain.Message) {
	id := c.nextTaskID
	c.nextTaskID++
	c.tasks[id] = c.sched.AfterFunc(delay, func() {
		c.mu.Lock()
		if _, ok := c.tasks[id]; !ok || c.closed || c.sessionID != sid {
			c.mu.Unlock()
			return
		}
		delete(c.tasks, id)
		msg := produce()
		c.mu.Unlock()
		c.notify(sid, []domain.Message{msg})
	})
}

func (c *Conversation) cancelTasksLocked() {
	for id, t := range c.tasks {
		t.Stop()
		delete(c.tasks, id)
	}
}

func (c *Conversation) notify(sid string, msgs []domain.Message) {
	if c.hooks.OnAppend == nil {
		return
	}
	for _, m := range msgs {
		c.hooks.OnAppend(sid, m)
	}
}
