package conversation

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpcomingTerms(t *testing.T) {
	tests := []struct {
		month time.Month
		want  []string
	}{
		{time.January, []string{"Fall 2026", "Spring 2027"}},
		{time.May, []string{"Fall 2026", "Spring 2027"}},
		{time.August, []string{"Fall 2026", "Spring 2027"}},
		{time.September, []string{"Spring 2027", "Fall 2027"}},
		{time.December, []string{"Spring 2027", "Fall 2027"}},
	}
	for _, tt := range tests {
		t.Run(tt.month.String(), func(t *testing.T) {
			now := time.Date(2026, tt.month, 15, 12, 0, 0, 0, time.UTC)
			assert.Equal(t, tt.want, UpcomingTerms(now))
		})
	}
}

func TestLoadVocabularyOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
assistant_name: CourseBot
semesters:
  - Summer 2026
  - Fall 2026
`), 0o600))

	v, err := LoadVocabulary(path, planningDate)
	require.NoError(t, err)
	assert.Equal(t, "CourseBot", v.AssistantName)
	assert.Equal(t, []string{"Summer 2026", "Fall 2026"}, v.Semesters)
	assert.Equal(t, DefaultReferenceURL, v.ReferenceURL)
	assert.Contains(t, v.greeting(), "I'm CourseBot")

	later := v.At(time.Date(2026, time.November, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"Summer 2026", "Fall 2026"}, later.Semesters)
}

func TestVocabularyAtFollowsClock(t *testing.T) {
	v := DefaultVocabulary(planningDate)
	require.Equal(t, []string{"Fall 2026", "Spring 2027"}, v.Semesters)

	later := v.At(time.Date(2026, time.September, 1, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"Spring 2027", "Fall 2027"}, later.Semesters)
	assert.Equal(t, v.AssistantName, later.AssistantName)
	assert.Equal(t, []string{"Fall 2026", "Spring 2027"}, v.Semesters, "At must not mutate the receiver")
}

func TestLoadVocabularyEmptyPathUsesDefaults(t *testing.T) {
	v, err := LoadVocabulary("", planningDate)
	require.NoError(t, err)
	assert.Equal(t, DefaultVocabulary(planningDate), v)
}

func TestLoadVocabularyRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadVocabulary(filepath.Join(dir, "missing.yaml"), planningDate)
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("semesters: [\"\"]\n"), 0o600))
	_, err = LoadVocabulary(bad, planningDate)
	require.Error(t, err)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("semesters: {"), 0o600))
	_, err = LoadVocabulary(broken, planningDate)
	require.Error(t, err)
}

func TestYearOptions(t *testing.T) {
	assert.Equal(t, []string{"Freshman", "Sophomore", "Junior", "Senior"}, YearOptions())
}
