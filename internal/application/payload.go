package application

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Payload is the flat record accepted by the submission endpoint.
type Payload map[string]any

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

const choiceDelimiter = ", "

// Payload keys that are not plain field renames.
const (
	KeyFormType  = "formType"
	KeyTimestamp = "timestamp"
	KeyMajor     = "major"
)

type otherPair struct {
	key     string
	choices Field
	other   Field
}

var textKeys = []struct {
	key   string
	field Field
}{
	{"fullName", FieldFullName},
	{"dateOfBirth", FieldDateOfBirth},
	{"gender", FieldGender},
	{"email", FieldEmail},
	{"phone", FieldPhone},
	{"currentCity", FieldCurrentCity},
	{"university", FieldUniversity},
	{KeyMajor, FieldMajors},
	{"yearOfStudy", FieldYearOfStudy},
	{"expectedGraduation", FieldExpectedGraduation},
	{"cvLink", FieldCVLink},
	{"portfolioLink", FieldPortfolioLink},
	{"portfolioPlan", FieldPortfolioPlan},
	{"previousApplications", FieldPreviousApplications},
	{"techBusinessChallenge", FieldTechBusinessChallenge},
	{"whyFellowship", FieldWhyFellowship},
	{"fiveYearVision", FieldFiveYearVision},
	{"additionalNotes", FieldAdditionalNotes},
}

var choiceKeys = []otherPair{
	{"areasOfInterest", FieldAreasOfInterest, FieldAreasOfInterestOther},
	{"preferredLocations", FieldPreferredLocations, FieldPreferredLocationsOther},
	{"followingDuration", FieldFollowingDuration, ""},
	{"applyFactors", FieldApplyFactors, FieldApplyFactorsOther},
	{"appliedWith", FieldAppliedWith, FieldAppliedWithOther},
	{"cvChallenges", FieldCVChallenges, FieldCVChallengesOther},
	{"topPriorities", FieldTopPriorities, FieldTopPrioritiesOther},
	{"programGoals", FieldProgramGoals, FieldProgramGoalsOther},
}

// PreparePayload shapes form data into the submission schema, stamping the
// phase and the preparation time.
func PreparePayload(data FormData, phase Phase, now time.Time) Payload {
	p := make(Payload, len(textKeys)+len(choiceKeys)+len(RatingCriteria)+3)

	for _, k := range textKeys {
		p[k.key] = strings.TrimSpace(*data.textField(k.field))
	}

	for _, k := range choiceKeys {
		other := ""
		if k.other != "" {
			other = *data.textField(k.other)
		}
		p[k.key] = joinChoices(*data.choicesField(k.choices), other)
	}

	p["announcementSource"] = joinAnnouncementSource(data)

	for _, c := range RatingCriteria {
		p[RatingKey(c)] = data.Ratings[c]
	}

	p[KeyFormType] = string(phase)
	p[KeyTimestamp] = now.UTC().Format(TimestampLayout)
	return p
}

// RatingKey is the payload key for a rating criterion.
func RatingKey(criterion string) string {
	r, size := utf8.DecodeRuneInString(criterion)
	return "rating" + string(unicode.ToUpper(r)) + criterion[size:]
}

func joinChoices(choices []string, other string) string {
	out := make([]string, 0, len(choices))
	for _, c := range choices {
		out = append(out, withOther(c, other))
	}
	return strings.Join(out, choiceDelimiter)
}

func joinAnnouncementSource(data FormData) string {
	detail := strings.TrimSpace(data.UniversityPortalName)
	out := make([]string, 0, len(data.AnnouncementSource))
	for _, c := range data.AnnouncementSource {
		switch {
		case c == OptionUniversityPortal && detail != "":
			out = append(out, c+" ("+detail+")")
		default:
			out = append(out, withOther(c, data.AnnouncementSourceOther))
		}
	}
	return strings.Join(out, choiceDelimiter)
}

func withOther(choice, other string) string {
	other = strings.TrimSpace(other)
	if choice == OptionOther && other != "" {
		return OptionOther + ": " + other
	}
	return choice
}
