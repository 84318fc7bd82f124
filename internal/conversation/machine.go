package conversation

import (
	"strings"

	"github.com/ashureev/advisor-chat/internal/domain"
)

// Event is an input to Transition: a student turn or the outcome of a remote call.
type Event interface{ event() }

// OptionSelected is a click on a label from the active option set.
type OptionSelected struct{ Label string }

// TextSubmitted is free text typed by the student. Recent holds the latest
// history entries, at most contextWindow of them, as they stood before this turn.
type TextSubmitted struct {
	Text   string
	Recent []string
}

// ConcentrationValidated carries the validation outcome. An empty Canonical
// means validation failed and the raw input is used as-is.
type ConcentrationValidated struct {
	Raw       string
	Canonical string
}

// ContextSaved reports that the advisory service accepted the profile.
type ContextSaved struct{}

// ContextFailed reports that committing the profile failed.
type ContextFailed struct{ Err error }

// AnswerReceived carries the advisor's reply, or the apology when it failed.
type AnswerReceived struct {
	Content string
	Failed  bool
}

func (OptionSelected) event()         {}
func (TextSubmitted) event()          {}
func (ConcentrationValidated) event() {}
func (ContextSaved) event()           {}
func (ContextFailed) event()          {}
func (AnswerReceived) event()         {}

// Effect is an instruction produced by Transition for the dispatcher to carry out.
type Effect interface{ effect() }

// AppendUser records a student turn.
type AppendUser struct{ Content string }

// AppendAssistant records an assistant turn, optionally with options.
type AppendAssistant struct {
	Content string
	Options []string
}

// ValidateConcentration asks the advisory service to canonicalize Raw.
type ValidateConcentration struct{ Raw string }

// SubmitContext commits the completed profile to the advisory service.
type SubmitContext struct{ Profile domain.SessionProfile }

// AskAdvisor sends Query to the advisory service. Fallback is shown on failure.
type AskAdvisor struct {
	Query    string
	Fallback string
}

// OpenReference tells the client to open URL externally.
type OpenReference struct{ URL string }

// ScheduleFollowUp re-offers the primary actions after the follow-up delay.
type ScheduleFollowUp struct{}

// RecordRecentChat adds a completed profile to the recent chats index.
type RecordRecentChat struct{ Label string }

func (AppendUser) effect()            {}
func (AppendAssistant) effect()       {}
func (ValidateConcentration) effect() {}
func (SubmitContext) effect()         {}
func (AskAdvisor) effect()            {}
func (OpenReference) effect()         {}
func (ScheduleFollowUp) effect()      {}
func (RecordRecentChat) effect()      {}

// contextWindow is how many history entries are attached to free-text queries.
const (
	contextThreshold = 4
	contextWindow    = 6
)

// Transition computes the next state and the effects of ev. It performs no I/O.
// An empty effect list means the event was ignored and the state is unchanged.
func Transition(s State, ev Event, v *Vocabulary) (State, []Effect) {
	switch ev := ev.(type) {
	case OptionSelected:
		return onOption(s, ev.Label, v)
	case TextSubmitted:
		return onText(s, ev)
	case ConcentrationValidated:
		cc, ok := s.(CollectingConcentration)
		if !ok {
			return s, nil
		}
		canonical := strings.TrimSpace(ev.Canonical)
		if canonical == "" {
			canonical = ev.Raw
		}
		next := Confirming{Year: cc.Year, Semester: cc.Semester, Raw: ev.Raw, Canonical: canonical}
		return next, []Effect{AppendAssistant{Content: confirmPrompt(next), Options: ConfirmOptions()}}
	case ContextSaved:
		c, ok := s.(Confirming)
		if !ok {
			return s, nil
		}
		next := Ready(c)
		return next, []Effect{
			RecordRecentChat{Label: next.Profile().ChatTitle()},
			AppendAssistant{Content: readyMessage, Options: PrimaryActions()},
		}
	case ContextFailed:
		if _, ok := s.(Confirming); !ok {
			return s, nil
		}
		return s, []Effect{AppendAssistant{Content: setupErrorMessage}}
	case AnswerReceived:
		if _, ok := s.(Ready); !ok {
			return s, nil
		}
		effects := []Effect{AppendAssistant{Content: ev.Content}}
		if !ev.Failed && !HasErrorMarker(ev.Content) {
			effects = append(effects, ScheduleFollowUp{})
		}
		return s, effects
	}
	return s, nil
}

func onOption(s State, label string, v *Vocabulary) (State, []Effect) {
	user := AppendUser{Content: label}

	switch st := s.(type) {
	case CollectingYear:
		if year, ok := domain.ParseYear(label); ok {
			return CollectingSemester{Year: year}, []Effect{
				user,
				AppendAssistant{Content: semesterQuestion, Options: v.Semesters},
			}
		}
	case CollectingSemester:
		if v.isSemester(label) {
			return CollectingConcentration{Year: st.Year, Semester: label}, []Effect{
				user,
				AppendAssistant{Content: concentrationPrompt, Options: []string{v.ReferenceLabel}},
			}
		}
	case CollectingConcentration:
		if label == v.ReferenceLabel {
			return st, []Effect{user, OpenReference{URL: v.ReferenceURL}}
		}
	case Confirming:
		switch label {
		case OptionYes:
			return st, []Effect{user, SubmitContext{Profile: st.Profile()}}
		case OptionNo:
			return CollectingConcentration{Year: st.Year, Semester: st.Semester}, []Effect{
				user,
				AppendAssistant{Content: retypePrompt},
			}
		}
	case Ready:
		if label == ActionHelp {
			return st, []Effect{user, AppendAssistant{Content: v.HelpText}, ScheduleFollowUp{}}
		}
		if query, ok := actionQueries[label]; ok {
			return st, []Effect{user, AskAdvisor{Query: query, Fallback: actionApology}}
		}
	}

	// A known label with no branch in this phase is echoed only.
	return s, []Effect{user}
}

func onText(s State, ev TextSubmitted) (State, []Effect) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return s, nil
	}

	switch st := s.(type) {
	case CollectingConcentration:
		return st, []Effect{AppendUser{Content: text}, ValidateConcentration{Raw: text}}
	case Ready:
		return st, []Effect{
			AppendUser{Content: text},
			AskAdvisor{Query: withContext(text, ev.Recent), Fallback: textApology},
		}
	}
	return s, nil
}

// withContext appends the most recent history entries to a free-text query
// once the conversation is long enough to benefit from them.
func withContext(text string, recent []string) string {
	if len(recent) <= contextThreshold {
		return text
	}
	return text + "\n\n[Context: " + strings.Join(recent, " | ") + "]"
}
