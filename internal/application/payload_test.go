package application

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreparePayloadDeterministic(t *testing.T) {
	data := completeForm()
	a := PreparePayload(data, PhaseEarlyBird, earlyBirdNow)
	b := PreparePayload(data, PhaseEarlyBird, earlyBirdNow)
	assert.Equal(t, a, b)
}

func TestPreparePayloadStampsPhaseAndTime(t *testing.T) {
	now := time.Date(2026, time.February, 10, 16, 30, 5, 123_000_000, time.FixedZone("ICT", 7*60*60))
	p := PreparePayload(completeForm(), PhaseOfficial, now)

	assert.Equal(t, "official", p[KeyFormType])
	assert.Equal(t, "2026-02-10T09:30:05.123Z", p[KeyTimestamp])
}

func TestPreparePayloadRenamesMajors(t *testing.T) {
	p := PreparePayload(completeForm(), PhaseOfficial, earlyBirdNow)

	assert.Equal(t, "Economics", p[KeyMajor])
	_, ok := p["majors"]
	assert.False(t, ok)
}

func TestPreparePayloadMergesOther(t *testing.T) {
	data := completeForm()
	data.ProgramGoals = []string{"Networking", OptionOther, "Mentorship"}
	data.ProgramGoalsOther = "  Build a startup "

	p := PreparePayload(data, PhaseOfficial, earlyBirdNow)

	assert.Equal(t, "Networking, Other: Build a startup, Mentorship", p["programGoals"])
	assert.Equal(t, "Consulting, Other: Venture capital", p["areasOfInterest"])
}

func TestPreparePayloadNeverEmitsBareOtherWithText(t *testing.T) {
	pairs := []struct {
		key     string
		choices Field
		other   Field
	}{
		{"areasOfInterest", FieldAreasOfInterest, FieldAreasOfInterestOther},
		{"preferredLocations", FieldPreferredLocations, FieldPreferredLocationsOther},
		{"applyFactors", FieldApplyFactors, FieldApplyFactorsOther},
		{"appliedWith", FieldAppliedWith, FieldAppliedWithOther},
		{"cvChallenges", FieldCVChallenges, FieldCVChallengesOther},
		{"topPriorities", FieldTopPriorities, FieldTopPrioritiesOther},
		{"programGoals", FieldProgramGoals, FieldProgramGoalsOther},
		{"announcementSource", FieldAnnouncementSource, FieldAnnouncementSourceOther},
	}

	for _, pair := range pairs {
		t.Run(pair.key, func(t *testing.T) {
			data := completeForm()
			require.NoError(t, data.Apply(pair.choices, Choices{"First", OptionOther}))
			require.NoError(t, data.Apply(pair.other, Text("custom answer")))

			got := PreparePayload(data, PhaseEarlyBird, earlyBirdNow)[pair.key].(string)
			assert.Equal(t, "First, Other: custom answer", got)
			for _, part := range strings.Split(got, ", ") {
				assert.NotEqual(t, OptionOther, part)
			}
		})
	}
}

func TestPreparePayloadKeepsOtherWithoutText(t *testing.T) {
	data := completeForm()
	data.TopPriorities = []string{OptionOther}
	data.TopPrioritiesOther = ""

	p := PreparePayload(data, PhaseOfficial, earlyBirdNow)
	assert.Equal(t, "Other", p["topPriorities"])
}

func TestPreparePayloadAnnouncementSourceDetail(t *testing.T) {
	data := completeForm()
	p := PreparePayload(data, PhaseEarlyBird, earlyBirdNow)
	assert.Equal(t, "Facebook, University Portal/Club Page (FTU Career Club)", p["announcementSource"])

	data.UniversityPortalName = " "
	p = PreparePayload(data, PhaseEarlyBird, earlyBirdNow)
	assert.Equal(t, "Facebook, University Portal/Club Page", p["announcementSource"])
}

func TestPreparePayloadRatingsDefaultToZero(t *testing.T) {
	data := completeForm()
	data.Ratings = map[string]int{CriterionTeamwork: 4}

	p := PreparePayload(data, PhaseOfficial, earlyBirdNow)
	for _, c := range RatingCriteria {
		want := 0
		if c == CriterionTeamwork {
			want = 4
		}
		assert.Equal(t, want, p[RatingKey(c)], c)
	}
}

func TestRatingKey(t *testing.T) {
	assert.Equal(t, "ratingProblemSolving", RatingKey(CriterionProblemSolving))
	assert.Equal(t, "ratingCommunication", RatingKey(CriterionCommunication))
}

func TestPreparePayloadEmptyChoicesJoinToEmptyString(t *testing.T) {
	p := PreparePayload(NewFormData(), PhaseOfficial, earlyBirdNow)
	assert.Equal(t, "", p["followingDuration"])
	assert.Equal(t, "", p["announcementSource"])
}
