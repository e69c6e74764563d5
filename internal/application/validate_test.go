package application

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCompleteFormPasses(t *testing.T) {
	data := completeForm()
	for _, phase := range []Phase{PhaseEarlyBird, PhaseOfficial, PhaseClosed} {
		for step := 0; step < StepCount; step++ {
			assert.Empty(t, Validate(step, data, phase), "step %d phase %s", step, phase)
		}
	}
}

func TestValidatePersonalInfoOneErrorPerMissingField(t *testing.T) {
	for _, rule := range personalInfoRules {
		t.Run(string(rule.field), func(t *testing.T) {
			data := completeForm()
			require.NoError(t, data.Apply(rule.field, Text("   ")))

			errs := Validate(StepPersonalInfo, data, PhaseOfficial)
			require.Len(t, errs, 1)
			assert.Equal(t, rule.message, errs[0])
		})
	}
}

func TestValidatePersonalInfoBlankFormListsAllInOrder(t *testing.T) {
	errs := Validate(StepPersonalInfo, NewFormData(), PhaseEarlyBird)
	require.Len(t, errs, 10)
	for i, rule := range personalInfoRules {
		assert.Equal(t, rule.message, errs[i])
	}
}

func TestValidateProfileEarlyBirdRequiresMore(t *testing.T) {
	data := completeForm()
	data.FollowingDuration = []string{}
	data.AnnouncementSource = []string{}
	data.ApplyFactors = []string{}
	data.AppliedWith = []string{}

	assert.Empty(t, Validate(StepProfile, data, PhaseOfficial))

	errs := Validate(StepProfile, data, PhaseEarlyBird)
	require.Len(t, errs, 4)
	for i, rule := range earlyBirdProfileRules {
		assert.Equal(t, rule.message, errs[i])
	}
}

func TestValidateProfileBaseRules(t *testing.T) {
	data := NewFormData()
	errs := Validate(StepProfile, data, PhaseOfficial)
	assert.Equal(t, []string{
		"CV link is required",
		"Select at least one area of interest",
		"Select at least one preferred location",
	}, errs)

	assert.Len(t, Validate(StepProfile, data, PhaseEarlyBird), 7)
}

func TestValidateReadinessRatings(t *testing.T) {
	data := completeForm()
	delete(data.Ratings, CriterionTeamwork)
	data.Ratings[CriterionLeadership] = 0

	errs := Validate(StepReadiness, data, PhaseOfficial)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], CriterionTeamwork)
	assert.Contains(t, errs[1], CriterionLeadership)
}

func TestValidateReadinessRatingsOutOfRange(t *testing.T) {
	data := completeForm()
	data.Ratings[CriterionTeamwork] = 9
	data.Ratings[CriterionLeadership] = -3

	errs := Validate(StepReadiness, data, PhaseOfficial)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], CriterionTeamwork)
	assert.Contains(t, errs[1], CriterionLeadership)
}

func TestValidateReadinessBlank(t *testing.T) {
	errs := Validate(StepReadiness, NewFormData(), PhaseOfficial)
	// cv challenges + five ratings + four single answers
	assert.Len(t, errs, 1+len(RatingCriteria)+4)
	assert.Equal(t, "Select at least one CV challenge", errs[0])
}

func TestValidateGoals(t *testing.T) {
	data := completeForm()
	data.FiveYearVision = "\n\t"
	data.ProgramGoals = []string{}

	errs := Validate(StepGoals, data, PhaseEarlyBird)
	assert.Equal(t, []string{
		"Please describe where you see yourself in five years",
		"Select at least one program goal",
	}, errs)
}

func TestValidateUnknownStep(t *testing.T) {
	for _, step := range []int{-1, StepCount, 42} {
		errs := Validate(step, completeForm(), PhaseOfficial)
		require.Len(t, errs, 1)
		assert.True(t, strings.HasPrefix(errs[0], "Unknown step"))
	}
}
