package application

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormDataHasNoNilCollections(t *testing.T) {
	d := NewFormData()
	for f, k := range fieldKinds {
		if k == KindChoices {
			assert.NotNil(t, *d.choicesField(f), f)
		}
	}
	assert.NotNil(t, d.Ratings)

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "null")
}

func TestEveryFieldHasAnAccessor(t *testing.T) {
	d := NewFormData()
	assert.Len(t, fieldKinds, 37)
	for f, k := range fieldKinds {
		switch k {
		case KindText:
			assert.NotPanics(t, func() { d.textField(f) }, f)
		case KindChoices:
			assert.NotPanics(t, func() { d.choicesField(f) }, f)
		}
	}
}

func TestApply(t *testing.T) {
	d := NewFormData()

	require.NoError(t, d.Apply(FieldFullName, Text("Tran Thi B")))
	assert.Equal(t, "Tran Thi B", d.FullName)

	choices := Choices{"Hanoi", "Da Nang"}
	require.NoError(t, d.Apply(FieldPreferredLocations, choices))
	choices[0] = "mutated"
	assert.Equal(t, []string{"Hanoi", "Da Nang"}, d.PreferredLocations)

	require.NoError(t, d.Apply(FieldRatings, Rating{Criterion: CriterionTeamwork, Score: 5}))
	assert.Equal(t, 5, d.Ratings[CriterionTeamwork])
}

func TestApplyRejects(t *testing.T) {
	d := NewFormData()

	assert.ErrorIs(t, d.Apply("nickname", Text("x")), ErrUnknownField)
	assert.ErrorIs(t, d.Apply(FieldFullName, Choices{"x"}), ErrFieldKind)
	assert.ErrorIs(t, d.Apply(FieldAreasOfInterest, Text("x")), ErrFieldKind)
	assert.ErrorIs(t, d.Apply(FieldRatings, Text("5")), ErrFieldKind)
	assert.ErrorIs(t, d.Apply(FieldFullName, nil), ErrFieldKind)
	assert.ErrorIs(t, d.Apply(FieldRatings, Rating{Criterion: "charisma", Score: 3}), ErrUnknownRating)
	assert.ErrorIs(t, d.Apply(FieldRatings, Rating{Criterion: CriterionTeamwork, Score: 0}), ErrRatingRange)
	assert.ErrorIs(t, d.Apply(FieldRatings, Rating{Criterion: CriterionTeamwork, Score: 6}), ErrRatingRange)

	assert.True(t, d.Equal(NewFormData()))
}

func TestApplyNilChoicesNormalised(t *testing.T) {
	d := completeForm()
	require.NoError(t, d.Apply(FieldProgramGoals, Choices(nil)))
	assert.NotNil(t, d.ProgramGoals)
	assert.Empty(t, d.ProgramGoals)
}

func TestDecodeValue(t *testing.T) {
	v, err := DecodeValue(FieldEmail, json.RawMessage(`"a@b.c"`))
	require.NoError(t, err)
	assert.Equal(t, Text("a@b.c"), v)

	v, err = DecodeValue(FieldProgramGoals, json.RawMessage(`["Networking","Other"]`))
	require.NoError(t, err)
	assert.Equal(t, Choices{"Networking", "Other"}, v)

	v, err = DecodeValue(FieldProgramGoals, json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Equal(t, Choices{}, v)

	v, err = DecodeValue(FieldRatings, json.RawMessage(`{"criterion":"leadership","score":3}`))
	require.NoError(t, err)
	assert.Equal(t, Rating{Criterion: CriterionLeadership, Score: 3}, v)

	_, err = DecodeValue(FieldEmail, json.RawMessage(`["a"]`))
	assert.ErrorIs(t, err, ErrFieldKind)

	_, err = DecodeValue("unknown", json.RawMessage(`"a"`))
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestFormDataJSONFillsMissingFields(t *testing.T) {
	var d FormData
	require.NoError(t, json.Unmarshal([]byte(`{"fullName":"A","programGoals":null}`), &d))

	assert.Equal(t, "A", d.FullName)
	assert.NotNil(t, d.ProgramGoals)
	assert.NotNil(t, d.AreasOfInterest)
	assert.NotNil(t, d.Ratings)
}

func TestFormDataJSONDropsInvalidRatings(t *testing.T) {
	var d FormData
	raw := `{"ratings":{"teamwork":9,"leadership":-3,"communication":4,"charisma":5}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &d))

	assert.Equal(t, map[string]int{CriterionCommunication: 4}, d.Ratings)
}

func TestDraftJSONRoundTrip(t *testing.T) {
	in := Draft{FormData: completeForm(), Step: StepReadiness}

	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out Draft
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)
	assert.True(t, in.FormData.Equal(out.FormData))
}

func TestCloneIsDeep(t *testing.T) {
	d := completeForm()
	c := d.Clone()

	c.AreasOfInterest[0] = "changed"
	c.Ratings[CriterionTeamwork] = 5
	c.Ratings["extra"] = 1

	assert.Equal(t, "Consulting", d.AreasOfInterest[0])
	assert.NotContains(t, d.Ratings, "extra")
	assert.False(t, d.Equal(c))
}
