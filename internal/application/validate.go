package application

import "fmt"

// Steps of the application form.
const (
	StepPersonalInfo = iota
	StepProfile
	StepReadiness
	StepGoals

	StepCount
	LastStep = StepCount - 1
)

// StepTitles names each step for display.
var StepTitles = [StepCount]string{
	"Personal Info",
	"Profile & Interests",
	"Readiness",
	"Goals & Submit",
}

type textRule struct {
	field   Field
	message string
}

type choicesRule struct {
	field   Field
	message string
}

var personalInfoRules = []textRule{
	{FieldFullName, "Full name is required"},
	{FieldDateOfBirth, "Date of birth is required"},
	{FieldGender, "Gender is required"},
	{FieldEmail, "Email is required"},
	{FieldPhone, "Phone number is required"},
	{FieldCurrentCity, "Current city is required"},
	{FieldUniversity, "University is required"},
	{FieldMajors, "Major is required"},
	{FieldYearOfStudy, "Year of study is required"},
	{FieldExpectedGraduation, "Expected graduation date is required"},
}

var earlyBirdProfileRules = []choicesRule{
	{FieldFollowingDuration, "Please tell us how long you have been following the program"},
	{FieldAnnouncementSource, "Please tell us where you heard about the program"},
	{FieldApplyFactors, "Please select what made you apply"},
	{FieldAppliedWith, "Please select who you are applying with"},
}

var goalsRules = []textRule{
	{FieldWhyFellowship, "Please tell us why you want to join the fellowship"},
	{FieldFiveYearVision, "Please describe where you see yourself in five years"},
}

// Validate returns the human-readable problems blocking the given step, in
// declaration order. An empty result means the step is complete.
func Validate(step int, data FormData, phase Phase) []string {
	var errs []string

	switch step {
	case StepPersonalInfo:
		errs = checkText(errs, &data, personalInfoRules)

	case StepProfile:
		if blank(data.CVLink) {
			errs = append(errs, "CV link is required")
		}
		if len(data.AreasOfInterest) == 0 {
			errs = append(errs, "Select at least one area of interest")
		}
		if len(data.PreferredLocations) == 0 {
			errs = append(errs, "Select at least one preferred location")
		}
		if phase == PhaseEarlyBird {
			errs = checkChoices(errs, &data, earlyBirdProfileRules)
		}

	case StepReadiness:
		if len(data.CVChallenges) == 0 {
			errs = append(errs, "Select at least one CV challenge")
		}
		for _, c := range RatingCriteria {
			if !validScore(data.Ratings[c]) {
				errs = append(errs, fmt.Sprintf("Please rate yourself on %s", c))
			}
		}
		if blank(data.PortfolioPlan) {
			errs = append(errs, "Please choose your portfolio plan")
		}
		if blank(data.PreviousApplications) {
			errs = append(errs, "Please tell us about previous applications")
		}
		if len(data.TopPriorities) == 0 {
			errs = append(errs, "Select at least one top priority")
		}
		if blank(data.TechBusinessChallenge) {
			errs = append(errs, "Please choose a tech or business challenge")
		}

	case StepGoals:
		errs = checkText(errs, &data, goalsRules)
		if len(data.ProgramGoals) == 0 {
			errs = append(errs, "Select at least one program goal")
		}

	default:
		errs = append(errs, fmt.Sprintf("Unknown step %d", step))
	}

	return errs
}

func checkText(errs []string, data *FormData, rules []textRule) []string {
	for _, r := range rules {
		if blank(*data.textField(r.field)) {
			errs = append(errs, r.message)
		}
	}
	return errs
}

func checkChoices(errs []string, data *FormData, rules []choicesRule) []string {
	for _, r := range rules {
		if len(*data.choicesField(r.field)) == 0 {
			errs = append(errs, r.message)
		}
	}
	return errs
}
