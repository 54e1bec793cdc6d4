package fees

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInput_Author(t *testing.T) {
	at := time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)
	in, err := ParseInput(FormValues{
		IsAuthor:       "yes",
		Nationality:    "national",
		Category:       "IEEE Member",
		ConferenceType: "tutorial",
		PaperID:        " 42 ",
	}, at)
	require.NoError(t, err)
	assert.True(t, in.IsAuthor)
	assert.Equal(t, NationalityNational, in.Nationality)
	assert.Equal(t, CategoryIEEEMember, in.Category)
	assert.Equal(t, ConferenceFull, in.ConferenceType)
	assert.Equal(t, "42", in.PaperID)
	assert.Equal(t, at, in.EvaluationDate)
}

func TestParseInput_NonAuthorForcesPaperZero(t *testing.T) {
	in, err := ParseInput(FormValues{
		IsAuthor:       "no",
		Nationality:    "international",
		Category:       "Student Non-member",
		ConferenceType: "tutorial",
		PaperID:        "99",
	}, time.Time{})
	require.NoError(t, err)
	assert.False(t, in.IsAuthor)
	assert.Equal(t, ConferenceTutorial, in.ConferenceType)
	assert.Equal(t, "0", in.PaperID)
	assert.False(t, in.EvaluationDate.IsZero())
}

func TestParseInput_Rejects(t *testing.T) {
	valid := FormValues{IsAuthor: "no", Nationality: "national", Category: "Non-member", ConferenceType: "full"}
	cases := []struct {
		name  string
		edit  func(v *FormValues)
		field string
	}{
		{"missing author flag", func(v *FormValues) { v.IsAuthor = "" }, "isAuthor"},
		{"bad author flag", func(v *FormValues) { v.IsAuthor = "maybe" }, "isAuthor"},
		{"missing nationality", func(v *FormValues) { v.Nationality = " " }, "nationality"},
		{"bad nationality", func(v *FormValues) { v.Nationality = "NATIONAL" }, "nationality"},
		{"missing category", func(v *FormValues) { v.Category = "" }, "category"},
		{"bad category", func(v *FormValues) { v.Category = "IEEE_Member" }, "category"},
		{"missing type", func(v *FormValues) { v.ConferenceType = "" }, "conferenceType"},
		{"bad type", func(v *FormValues) { v.ConferenceType = "workshop" }, "conferenceType"},
		{"author without paper", func(v *FormValues) { v.IsAuthor = "yes"; v.PaperID = "" }, "paperId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := valid
			tc.edit(&v)
			_, err := ParseInput(v, time.Time{})
			require.ErrorIs(t, err, ErrInvalidInput)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tc.field, validationErr.Field)
		})
	}
}

func TestNewRateTable_Rejects(t *testing.T) {
	spec := DefaultRateTableSpec()
	spec.EarlyBirdDeadline = time.Time{}
	_, err := NewRateTable(spec)
	require.Error(t, err)

	spec = DefaultRateTableSpec()
	spec.FXRate = spec.FXRate.Neg()
	_, err = NewRateTable(spec)
	require.Error(t, err)

	spec = DefaultRateTableSpec()
	spec.Author[NationalityNational][CategoryIEEEMember] = spec.Author[NationalityNational][CategoryIEEEMember].Neg()
	_, err = NewRateTable(spec)
	require.Error(t, err)
}

func TestRateTable_IsolatedFromSpec(t *testing.T) {
	spec := DefaultRateTableSpec()
	table, err := NewRateTable(spec)
	require.NoError(t, err)

	delete(spec.Author[NationalityNational], CategoryIEEEMember)
	fee, ok := table.AuthorFee(NationalityNational, CategoryIEEEMember)
	require.True(t, ok)
	assert.Equal(t, "12000", fee.String())
}
