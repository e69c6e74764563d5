package application

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrUnknownField  = errors.New("unknown form field")
	ErrFieldKind     = errors.New("value does not match field kind")
	ErrUnknownRating = errors.New("unknown rating criterion")
	ErrRatingRange   = errors.New("rating score must be between 1 and 5")
)

// OptionOther is the literal option that pairs with a free-text "other" field.
const OptionOther = "Other"

// OptionUniversityPortal carries a parenthetical detail in the announcement source.
const OptionUniversityPortal = "University Portal/Club Page"

// Kind is the shape of a form field's value.
type Kind int

const (
	KindText Kind = iota + 1
	KindChoices
	KindRating
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindChoices:
		return "choices"
	case KindRating:
		return "rating"
	default:
		return "unknown"
	}
}

// Field names one answer in the application form.
type Field string

const (
	// Personal info
	FieldFullName           Field = "fullName"
	FieldDateOfBirth        Field = "dateOfBirth"
	FieldGender             Field = "gender"
	FieldEmail              Field = "email"
	FieldPhone              Field = "phone"
	FieldCurrentCity        Field = "currentCity"
	FieldUniversity         Field = "university"
	FieldMajors             Field = "majors"
	FieldYearOfStudy        Field = "yearOfStudy"
	FieldExpectedGraduation Field = "expectedGraduation"

	// Profile & interests
	FieldCVLink                  Field = "cvLink"
	FieldPortfolioLink           Field = "portfolioLink"
	FieldAreasOfInterest         Field = "areasOfInterest"
	FieldAreasOfInterestOther    Field = "areasOfInterestOther"
	FieldPreferredLocations      Field = "preferredLocations"
	FieldPreferredLocationsOther Field = "preferredLocationsOther"
	FieldFollowingDuration       Field = "followingDuration"
	FieldAnnouncementSource      Field = "announcementSource"
	FieldAnnouncementSourceOther Field = "announcementSourceOther"
	FieldUniversityPortalName    Field = "universityPortalName"
	FieldApplyFactors            Field = "applyFactors"
	FieldApplyFactorsOther       Field = "applyFactorsOther"
	FieldAppliedWith             Field = "appliedWith"
	FieldAppliedWithOther        Field = "appliedWithOther"

	// Readiness
	FieldCVChallenges          Field = "cvChallenges"
	FieldCVChallengesOther     Field = "cvChallengesOther"
	FieldRatings               Field = "ratings"
	FieldPortfolioPlan         Field = "portfolioPlan"
	FieldPreviousApplications  Field = "previousApplications"
	FieldTopPriorities         Field = "topPriorities"
	FieldTopPrioritiesOther    Field = "topPrioritiesOther"
	FieldTechBusinessChallenge Field = "techBusinessChallenge"

	// Goals & submit
	FieldWhyFellowship     Field = "whyFellowship"
	FieldFiveYearVision    Field = "fiveYearVision"
	FieldProgramGoals      Field = "programGoals"
	FieldProgramGoalsOther Field = "programGoalsOther"
	FieldAdditionalNotes   Field = "additionalNotes"
)

// Rating criteria, in display order.
const (
	CriterionCommunication   = "communication"
	CriterionProblemSolving  = "problemSolving"
	CriterionTeamwork        = "teamwork"
	CriterionLeadership      = "leadership"
	CriterionTechnicalSkills = "technicalSkills"
)

// Self-rating bounds, inclusive.
const (
	MinRating = 1
	MaxRating = 5
)

// RatingCriteria lists every criterion that must be self-rated.
var RatingCriteria = []string{
	CriterionCommunication,
	CriterionProblemSolving,
	CriterionTeamwork,
	CriterionLeadership,
	CriterionTechnicalSkills,
}

var fieldKinds = map[Field]Kind{
	FieldFullName:           KindText,
	FieldDateOfBirth:        KindText,
	FieldGender:             KindText,
	FieldEmail:              KindText,
	FieldPhone:              KindText,
	FieldCurrentCity:        KindText,
	FieldUniversity:         KindText,
	FieldMajors:             KindText,
	FieldYearOfStudy:        KindText,
	FieldExpectedGraduation: KindText,

	FieldCVLink:                  KindText,
	FieldPortfolioLink:           KindText,
	FieldAreasOfInterest:         KindChoices,
	FieldAreasOfInterestOther:    KindText,
	FieldPreferredLocations:      KindChoices,
	FieldPreferredLocationsOther: KindText,
	FieldFollowingDuration:       KindChoices,
	FieldAnnouncementSource:      KindChoices,
	FieldAnnouncementSourceOther: KindText,
	FieldUniversityPortalName:    KindText,
	FieldApplyFactors:            KindChoices,
	FieldApplyFactorsOther:       KindText,
	FieldAppliedWith:             KindChoices,
	FieldAppliedWithOther:        KindText,

	FieldCVChallenges:          KindChoices,
	FieldCVChallengesOther:     KindText,
	FieldRatings:               KindRating,
	FieldPortfolioPlan:         KindText,
	FieldPreviousApplications:  KindText,
	FieldTopPriorities:         KindChoices,
	FieldTopPrioritiesOther:    KindText,
	FieldTechBusinessChallenge: KindText,

	FieldWhyFellowship:     KindText,
	FieldFiveYearVision:    KindText,
	FieldProgramGoals:      KindChoices,
	FieldProgramGoalsOther: KindText,
	FieldAdditionalNotes:   KindText,
}

// KindOf reports the kind of a field.
func KindOf(f Field) (Kind, bool) {
	k, ok := fieldKinds[f]
	return k, ok
}

// ParseField converts a raw string into a known Field.
func ParseField(s string) (Field, error) {
	f := Field(s)
	if _, ok := fieldKinds[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
	}
	return f, nil
}

// Value is a field value: one of Text, Choices or Rating.
type Value interface {
	Kind() Kind
}

// Text sets a free-text or single-select field.
type Text string

// Choices sets an ordered multi-select field.
type Choices []string

// Rating sets one criterion's score inside the ratings map.
type Rating struct {
	Criterion string `json:"criterion"`
	Score     int    `json:"score"`
}

func (Text) Kind() Kind    { return KindText }
func (Choices) Kind() Kind { return KindChoices }
func (Rating) Kind() Kind  { return KindRating }

// FormData holds every answer of one application.
type FormData struct {
	FullName           string `json:"fullName"`
	DateOfBirth        string `json:"dateOfBirth"`
	Gender             string `json:"gender"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	CurrentCity        string `json:"currentCity"`
	University         string `json:"university"`
	Majors             string `json:"majors"`
	YearOfStudy        string `json:"yearOfStudy"`
	ExpectedGraduation string `json:"expectedGraduation"`

	CVLink                  string   `json:"cvLink"`
	PortfolioLink           string   `json:"portfolioLink"`
	AreasOfInterest         []string `json:"areasOfInterest"`
	AreasOfInterestOther    string   `json:"areasOfInterestOther"`
	PreferredLocations      []string `json:"preferredLocations"`
	PreferredLocationsOther string   `json:"preferredLocationsOther"`
	FollowingDuration       []string `json:"followingDuration"`
	AnnouncementSource      []string `json:"announcementSource"`
	AnnouncementSourceOther string   `json:"announcementSourceOther"`
	UniversityPortalName    string   `json:"universityPortalName"`
	ApplyFactors            []string `json:"applyFactors"`
	ApplyFactorsOther       string   `json:"applyFactorsOther"`
	AppliedWith             []string `json:"appliedWith"`
	AppliedWithOther        string   `json:"appliedWithOther"`

	CVChallenges          []string       `json:"cvChallenges"`
	CVChallengesOther     string         `json:"cvChallengesOther"`
	Ratings               map[string]int `json:"ratings"`
	PortfolioPlan         string         `json:"portfolioPlan"`
	PreviousApplications  string         `json:"previousApplications"`
	TopPriorities         []string       `json:"topPriorities"`
	TopPrioritiesOther    string         `json:"topPrioritiesOther"`
	TechBusinessChallenge string         `json:"techBusinessChallenge"`

	WhyFellowship     string   `json:"whyFellowship"`
	FiveYearVision    string   `json:"fiveYearVision"`
	ProgramGoals      []string `json:"programGoals"`
	ProgramGoalsOther string   `json:"programGoalsOther"`
	AdditionalNotes   string   `json:"additionalNotes"`
}

// NewFormData returns a form with every field at its initial value.
func NewFormData() FormData {
	var d FormData
	d.normalize()
	return d
}

// normalize replaces nil collections with empty ones and drops ratings that
// Apply would have rejected.
func (d *FormData) normalize() {
	for f, k := range fieldKinds {
		if k != KindChoices {
			continue
		}
		if p := d.choicesField(f); *p == nil {
			*p = []string{}
		}
	}
	if d.Ratings == nil {
		d.Ratings = map[string]int{}
	}
	for c, score := range d.Ratings {
		if !slices.Contains(RatingCriteria, c) || !validScore(score) {
			delete(d.Ratings, c)
		}
	}
}

func validScore(score int) bool {
	return score >= MinRating && score <= MaxRating
}

// UnmarshalJSON decodes a form and fills in any missing field.
func (d *FormData) UnmarshalJSON(b []byte) error {
	type plain FormData
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*d = FormData(p)
	d.normalize()
	return nil
}

// Clone returns a deep copy.
func (d FormData) Clone() FormData {
	out := d
	for f, k := range fieldKinds {
		if k != KindChoices {
			continue
		}
		src := d.choicesField(f)
		*out.choicesField(f) = append([]string{}, (*src)...)
	}
	out.Ratings = make(map[string]int, len(d.Ratings))
	for k, v := range d.Ratings {
		out.Ratings[k] = v
	}
	return out
}

// Equal reports whether two forms hold the same answers.
func (d FormData) Equal(o FormData) bool {
	for f, k := range fieldKinds {
		switch k {
		case KindText:
			if *d.textField(f) != *o.textField(f) {
				return false
			}
		case KindChoices:
			if !slices.Equal(*d.choicesField(f), *o.choicesField(f)) {
				return false
			}
		}
	}
	if len(d.Ratings) != len(o.Ratings) {
		return false
	}
	for k, v := range d.Ratings {
		if ov, ok := o.Ratings[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Apply sets one field. The value's kind must match the field's kind.
func (d *FormData) Apply(f Field, v Value) error {
	kind, ok := fieldKinds[f]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	if v == nil || v.Kind() != kind {
		return fmt.Errorf("%w: %s expects %s", ErrFieldKind, f, kind)
	}

	switch val := v.(type) {
	case Text:
		*d.textField(f) = string(val)
	case Choices:
		*d.choicesField(f) = append([]string{}, val...)
	case Rating:
		if !slices.Contains(RatingCriteria, val.Criterion) {
			return fmt.Errorf("%w: %q", ErrUnknownRating, val.Criterion)
		}
		if !validScore(val.Score) {
			return fmt.Errorf("%w: got %d", ErrRatingRange, val.Score)
		}
		if d.Ratings == nil {
			d.Ratings = map[string]int{}
		}
		d.Ratings[val.Criterion] = val.Score
	default:
		return fmt.Errorf("%w: %T", ErrFieldKind, v)
	}
	return nil
}

// DecodeValue parses a JSON value for the given field.
func DecodeValue(f Field, raw json.RawMessage) (Value, error) {
	kind, ok := fieldKinds[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, f)
	}

	switch kind {
	case KindText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %s expects a string", ErrFieldKind, f)
		}
		return Text(s), nil
	case KindChoices:
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("%w: %s expects a list of strings", ErrFieldKind, f)
		}
		if list == nil {
			list = []string{}
		}
		return Choices(list), nil
	case KindRating:
		var r Rating
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("%w: %s expects {criterion, score}", ErrFieldKind, f)
		}
		return r, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownField, f)
}

func (d *FormData) textField(f Field) *string {
	switch f {
	case FieldFullName:
		return &d.FullName
	case FieldDateOfBirth:
		return &d.DateOfBirth
	case FieldGender:
		return &d.Gender
	case FieldEmail:
		return &d.Email
	case FieldPhone:
		return &d.Phone
	case FieldCurrentCity:
		return &d.CurrentCity
	case FieldUniversity:
		return &d.University
	case FieldMajors:
		return &d.Majors
	case FieldYearOfStudy:
		return &d.YearOfStudy
	case FieldExpectedGraduation:
		return &d.ExpectedGraduation
	case FieldCVLink:
		return &d.CVLink
	case FieldPortfolioLink:
		return &d.PortfolioLink
	case FieldAreasOfInterestOther:
		return &d.AreasOfInterestOther
	case FieldPreferredLocationsOther:
		return &d.PreferredLocationsOther
	case FieldAnnouncementSourceOther:
		return &d.AnnouncementSourceOther
	case FieldUniversityPortalName:
		return &d.UniversityPortalName
	case FieldApplyFactorsOther:
		return &d.ApplyFactorsOther
	case FieldAppliedWithOther:
		return &d.AppliedWithOther
	case FieldCVChallengesOther:
		return &d.CVChallengesOther
	case FieldPortfolioPlan:
		return &d.PortfolioPlan
	case FieldPreviousApplications:
		return &d.PreviousApplications
	case FieldTopPrioritiesOther:
		return &d.TopPrioritiesOther
	case FieldTechBusinessChallenge:
		return &d.TechBusinessChallenge
	case FieldWhyFellowship:
		return &d.WhyFellowship
	case FieldFiveYearVision:
		return &d.FiveYearVision
	case FieldProgramGoalsOther:
		return &d.ProgramGoalsOther
	case FieldAdditionalNotes:
		return &d.AdditionalNotes
	}
	panic(fmt.Sprintf("application: %q is not a text field", f))
}

func (d *FormData) choicesField(f Field) *[]string {
	switch f {
	case FieldAreasOfInterest:
		return &d.AreasOfInterest
	case FieldPreferredLocations:
		return &d.PreferredLocations
	case FieldFollowingDuration:
		return &d.FollowingDuration
	case FieldAnnouncementSource:
		return &d.AnnouncementSource
	case FieldApplyFactors:
		return &d.ApplyFactors
	case FieldAppliedWith:
		return &d.AppliedWith
	case FieldCVChallenges:
		return &d.CVChallenges
	case FieldTopPriorities:
		return &d.TopPriorities
	case FieldProgramGoals:
		return &d.ProgramGoals
	}
	panic(fmt.Sprintf("application: %q is not a multi-select field", f))
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
