package conversation

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/ashureev/advisor-chat/internal/domain"
	"gopkg.in/yaml.v3"
)

// Fixed option labels.
const (
	OptionYes = "Yes"
	OptionNo  = "No"

	ActionRecommend = "Recommend courses for my concentration"
	ActionSchedule  = "Create a sample schedule"
	ActionConflicts = "Check my schedule for conflicts"
	ActionHelp      = "Help"

	DefaultReferenceLabel = "See concentrations here"
	DefaultReferenceURL   = "https://bulletin.brown.edu/the-college/concentrations/"
	DefaultAssistantName  = "BrownGPT"
)

// Apologies shown when the advisory service cannot answer.
const (
	actionApology = "I'm having trouble processing that. Please try again."
	textApology   = "I'm having trouble connecting. Please try again."
)

// actionQueries translates primary actions into natural-language questions.
var actionQueries = map[string]string{
	ActionRecommend: "What courses should I take for my concentration? Recommend specific courses.",
	ActionSchedule:  "Create a sample 4-course schedule for me this semester",
	ActionConflicts: "I want to check if my courses have schedule conflicts. What courses would you like me to check?",
}

const defaultHelpText = `**Here's what I can do for you:**

- **Recommend courses**: suggestions that fit your concentration and class year.
- **Create a sample schedule**: a four-course plan for the semester you picked.
- **Check schedule conflicts**: tell me the courses you're considering and I'll look for overlapping meeting times.
- **Ask anything**: type a question below, e.g. "What are the prerequisites for CSCI 0200?"

Answers can take 5 to 15 seconds. Always confirm your plan with your academic advisor and the official course catalog.`

// Vocabulary holds the labels and texts the conversation offers.
// Everything except the year, confirmation and primary action labels can be
// overridden from a YAML file.
type Vocabulary struct {
	AssistantName  string   `yaml:"assistant_name"`
	Semesters      []string `yaml:"semesters"`
	ReferenceLabel string   `yaml:"reference_label"`
	ReferenceURL   string   `yaml:"reference_url"`
	HelpText       string   `yaml:"help_text"`

	// pinnedSemesters is set when the YAML file lists semesters explicitly.
	pinnedSemesters bool
}

// DefaultVocabulary returns the built-in vocabulary with semesters derived from now.
func DefaultVocabulary(now time.Time) *Vocabulary {
	return &Vocabulary{
		AssistantName:  DefaultAssistantName,
		Semesters:      UpcomingTerms(now),
		ReferenceLabel: DefaultReferenceLabel,
		ReferenceURL:   DefaultReferenceURL,
		HelpText:       defaultHelpText,
	}
}

// LoadVocabulary reads overrides from a YAML file on top of the defaults.
// An empty path returns the defaults.
func LoadVocabulary(path string, now time.Time) (*Vocabulary, error) {
	v := DefaultVocabulary(now)
	if path == "" {
		return v, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary file: %w", err)
	}

	var override Vocabulary
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse vocabulary file: %w", err)
	}

	if override.AssistantName != "" {
		v.AssistantName = override.AssistantName
	}
	if len(override.Semesters) > 0 {
		v.Semesters = override.Semesters
		v.pinnedSemesters = true
	}
	if override.ReferenceLabel != "" {
		v.ReferenceLabel = override.ReferenceLabel
	}
	if override.ReferenceURL != "" {
		v.ReferenceURL = override.ReferenceURL
	}
	if override.HelpText != "" {
		v.HelpText = override.HelpText
	}

	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// At returns a copy of v as offered at now. Semesters follow the clock
// unless the vocabulary file pinned them.
func (v *Vocabulary) At(now time.Time) *Vocabulary {
	out := *v
	if !v.pinnedSemesters {
		out.Semesters = UpcomingTerms(now)
	}
	return &out
}

// Validate checks that the vocabulary can drive a conversation.
func (v *Vocabulary) Validate() error {
	if len(v.Semesters) == 0 {
		return fmt.Errorf("vocabulary: at least one semester is required")
	}
	for _, s := range v.Semesters {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("vocabulary: empty semester label")
		}
	}
	if v.ReferenceLabel == "" || v.ReferenceURL == "" {
		return fmt.Errorf("vocabulary: reference label and url are required")
	}
	return nil
}

// UpcomingTerms returns labels for the next two terms a student would plan for.
// Fall runs September through December, Spring January through April.
func UpcomingTerms(now time.Time) []string {
	year := now.Year()
	if now.Month() >= time.September {
		return []string{fmt.Sprintf("Spring %d", year+1), fmt.Sprintf("Fall %d", year+1)}
	}
	return []string{fmt.Sprintf("Fall %d", year), fmt.Sprintf("Spring %d", year+1)}
}

// YearOptions returns the class-year labels.
func YearOptions() []string {
	years := domain.Years()
	out := make([]string, len(years))
	for i, y := range years {
		out[i] = string(y)
	}
	return out
}

// ConfirmOptions returns the confirmation labels.
func ConfirmOptions() []string {
	return []string{OptionYes, OptionNo}
}

// PrimaryActions returns the ready-state action labels.
func PrimaryActions() []string {
	return []string{ActionRecommend, ActionSchedule, ActionConflicts, ActionHelp}
}

func (v *Vocabulary) isSemester(label string) bool {
	return slices.Contains(v.Semesters, label)
}

func (v *Vocabulary) greeting() string {
	return fmt.Sprintf("Hi! I'm %s, your AI course advisor. Let's get started. What year are you?", v.AssistantName)
}

const (
	semesterQuestion     = "Great! What semester are you planning for?"
	concentrationPrompt  = "What's your concentration? Type it below (e.g., 'Computer Science', 'APMC', 'Economics'):"
	retypePrompt         = "No problem! Please type your concentration below:"
	readyMessage         = "Perfect! I'm ready to help you. What would you like to do?"
	followUpMessage      = "Is there anything else I can help with?"
	setupErrorMessage    = "There was an error setting up your profile. Click Yes to try again, or start a new chat."
	confirmPromptPattern = "Just to confirm - you're a %s studying %s, planning for %s. Is that correct?"
)

func confirmPrompt(c Confirming) string {
	return fmt.Sprintf(confirmPromptPattern, c.Year, c.Canonical, c.Semester)
}

// HasErrorMarker reports whether assistant content reads like a failure.
// Such answers never re-offer the primary actions.
func HasErrorMarker(content string) bool {
	return strings.Contains(content, "error") ||
		strings.Contains(content, "Error") ||
		strings.Contains(content, "trouble")
}
