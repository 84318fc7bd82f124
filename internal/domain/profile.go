package domain

import "time"

// Phase is the discrete stage of the onboarding conversation.
type Phase string

const (
	PhaseCollectingYear          Phase = "collecting-year"
	PhaseCollectingSemester      Phase = "collecting-semester"
	PhaseCollectingConcentration Phase = "collecting-concentration"
	PhaseConfirming              Phase = "confirming"
	PhaseReady                   Phase = "ready"
)

// Year is the student's class year.
type Year string

const (
	YearFreshman  Year = "Freshman"
	YearSophomore Year = "Sophomore"
	YearJunior    Year = "Junior"
	YearSenior    Year = "Senior"
)

// Years lists the class years in the order they are offered.
func Years() []Year {
	return []Year{YearFreshman, YearSophomore, YearJunior, YearSenior}
}

// ParseYear maps an option label onto a Year.
func ParseYear(label string) (Year, bool) {
	for _, y := range Years() {
		if string(y) == label {
			return y, true
		}
	}
	return "", false
}

// SessionProfile is built incrementally across onboarding turns.
// Empty fields are unset.
type SessionProfile struct {
	SessionID              string `json:"session_id"`
	Year                   Year   `json:"year,omitempty"`
	Semester               string `json:"semester,omitempty"`
	ConcentrationRaw       string `json:"concentration_raw,omitempty"`
	ConcentrationCanonical string `json:"concentration_canonical,omitempty"`
}

// Concentration returns the canonical concentration, falling back to the raw input.
func (p SessionProfile) Concentration() string {
	if p.ConcentrationCanonical != "" {
		return p.ConcentrationCanonical
	}
	return p.ConcentrationRaw
}

// ChatTitle returns the recent-chats label for a completed profile.
func (p SessionProfile) ChatTitle() string {
	return string(p.Year) + " - " + p.Concentration()
}

// ProfileRecord is the audit row written when onboarding completes.
type ProfileRecord struct {
	UserID    string
	Profile   SessionProfile
	CreatedAt time.Time
}
