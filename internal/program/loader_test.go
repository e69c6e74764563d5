package program

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfp-labs/fellowship-portal/internal/application"
)

const sampleProgram = `
name: SFP 2027
deadlines:
  early_bird: 2026-11-01T23:59:59+07:00
  official: 2026-12-01T23:59:59+07:00
criteria:
  teamwork: Working with others
options:
  programGoals: [Networking, Internship, Other]
`

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "program.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleProgram), 0o600))

	loader := NewLoader()
	require.NoError(t, loader.LoadFromFile(path))

	p := loader.Get()
	assert.Equal(t, "SFP 2027", p.Name)

	ict := time.FixedZone("", 7*60*60)
	assert.True(t, p.Deadlines.EarlyBird.Equal(time.Date(2026, time.November, 1, 23, 59, 59, 0, ict)))
	assert.True(t, p.Deadlines.Official.Equal(time.Date(2026, time.December, 1, 23, 59, 59, 0, ict)))

	var teamwork Criterion
	for _, c := range p.Criteria {
		if c.Key == application.CriterionTeamwork {
			teamwork = c
		}
	}
	assert.Equal(t, "Working with others", teamwork.Label)
	assert.Len(t, p.Criteria, len(application.RatingCriteria))

	assert.Equal(t, []string{"Networking", "Internship", "Other"}, p.Options["programGoals"])
	assert.NotEmpty(t, p.Options["areasOfInterest"], "unspecified options keep defaults")
}

func TestLoadFromFileMissing(t *testing.T) {
	loader := NewLoader()
	err := loader.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Equal(t, Default().Name, loader.Get().Name)
}

func TestParseRejectsInvalidDefinitions(t *testing.T) {
	tests := map[string]string{
		"bad yaml":           "name: [",
		"bad deadline":       "deadlines:\n  early_bird: tomorrow\n",
		"swapped deadlines":  "deadlines:\n  early_bird: 2026-12-01T00:00:00Z\n  official: 2026-11-01T00:00:00Z\n",
		"unknown criterion":  "criteria:\n  charisma: Charisma\n",
		"options for text":   "options:\n  fullName: [a, b]\n",
		"options for nobody": "options:\n  nickname: [a]\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestDefaultCoversEveryCriterion(t *testing.T) {
	p := Default()
	require.Len(t, p.Criteria, len(application.RatingCriteria))
	for i, c := range p.Criteria {
		assert.Equal(t, application.RatingCriteria[i], c.Key)
	}
	require.NoError(t, p.Deadlines.Validate())
}
