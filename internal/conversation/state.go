package conversation

import "github.com/ashureev/advisor-chat/internal/domain"

// State is the onboarding phase together with the data valid in it.
// Each phase is its own type so fields from later phases cannot leak backwards.
type State interface {
	Phase() domain.Phase
	// AcceptsText reports whether free text is routed in this phase.
	AcceptsText() bool
	// InputHint is the placeholder shown in the text box.
	InputHint() string
	// Profile returns the profile fields collected so far.
	Profile() domain.SessionProfile
}

// CollectingYear waits for a class-year option.
type CollectingYear struct{}

// CollectingSemester waits for a semester option.
type CollectingSemester struct {
	Year domain.Year
}

// CollectingConcentration waits for the concentration as free text.
type CollectingConcentration struct {
	Year     domain.Year
	Semester string
}

// Confirming waits for Yes/No on the collected profile.
type Confirming struct {
	Year      domain.Year
	Semester  string
	Raw       string
	Canonical string
}

// Ready answers free-form questions for a committed profile.
type Ready struct {
	Year      domain.Year
	Semester  string
	Raw       string
	Canonical string
}

const (
	hintSelectOption  = "Select an option above"
	hintConcentration = "Type your concentration..."
	hintAsk           = "Ask me anything about courses..."
)

func (CollectingYear) Phase() domain.Phase            { return domain.PhaseCollectingYear }
func (CollectingYear) AcceptsText() bool              { return false }
func (CollectingYear) InputHint() string              { return hintSelectOption }
func (CollectingYear) Profile() domain.SessionProfile { return domain.SessionProfile{} }
func (CollectingSemester) Phase() domain.Phase        { return domain.PhaseCollectingSemester }
func (CollectingSemester) AcceptsText() bool          { return false }
func (CollectingSemester) InputHint() string          { return hintSelectOption }
func (CollectingConcentration) Phase() domain.Phase   { return domain.PhaseCollectingConcentration }
func (CollectingConcentration) AcceptsText() bool     { return true }
func (CollectingConcentration) InputHint() string     { return hintConcentration }
func (Confirming) Phase() domain.Phase                { return domain.PhaseConfirming }
func (Confirming) AcceptsText() bool                  { return false }
func (Confirming) InputHint() string                  { return hintSelectOption }
func (Ready) Phase() domain.Phase                     { return domain.PhaseReady }
func (Ready) AcceptsText() bool                       { return true }
func (Ready) InputHint() string                       { return hintAsk }

func (s CollectingSemester) Profile() domain.SessionProfile {
	return domain.SessionProfile{Year: s.Year}
}

func (s CollectingConcentration) Profile() domain.SessionProfile {
	return domain.SessionProfile{Year: s.Year, Semester: s.Semester}
}

func (s Confirming) Profile() domain.SessionProfile {
	return domain.SessionProfile{
		Year:                   s.Year,
		Semester:               s.Semester,
		ConcentrationRaw:       s.Raw,
		ConcentrationCanonical: s.Canonical,
	}
}

func (s Ready) Profile() domain.SessionProfile {
	return domain.SessionProfile{
		Year:                   s.Year,
		Semester:               s.Semester,
		ConcentrationRaw:       s.Raw,
		ConcentrationCanonical: s.Canonical,
	}
}
