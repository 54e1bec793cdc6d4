package fees

import (
	"strings"
	"time"
)

// RegistrationInput is the typed classification a fee is computed from.
type RegistrationInput struct {
	IsAuthor       bool
	Nationality    Nationality
	Category       Category
	ConferenceType ConferenceType
	PaperID        string
	EvaluationDate time.Time
}

// Normalize pins authors to the full conference and non-authors to paper "0".
func (in RegistrationInput) Normalize() RegistrationInput {
	if in.IsAuthor {
		in.ConferenceType = ConferenceFull
	} else {
		in.PaperID = "0"
	}
	return in
}

// FormValues holds the raw classification strings posted by the registration form.
type FormValues struct {
	IsAuthor       string
	Nationality    string
	Category       string
	ConferenceType string
	PaperID        string
}

// ParseInput coerces raw form values into a RegistrationInput.
// A zero evaluationDate defaults to the current time.
func ParseInput(v FormValues, evaluationDate time.Time) (RegistrationInput, error) {
	var in RegistrationInput

	switch strings.ToLower(strings.TrimSpace(v.IsAuthor)) {
	case "yes":
		in.IsAuthor = true
	case "no":
		in.IsAuthor = false
	case "":
		return RegistrationInput{}, missing("isAuthor")
	default:
		return RegistrationInput{}, invalid("isAuthor")
	}

	if strings.TrimSpace(v.Nationality) == "" {
		return RegistrationInput{}, missing("nationality")
	}
	n, ok := ParseNationality(v.Nationality)
	if !ok {
		return RegistrationInput{}, invalid("nationality")
	}
	in.Nationality = n

	if strings.TrimSpace(v.Category) == "" {
		return RegistrationInput{}, missing("category")
	}
	c, ok := ParseCategory(v.Category)
	if !ok {
		return RegistrationInput{}, invalid("category")
	}
	in.Category = c

	if in.IsAuthor {
		in.PaperID = strings.TrimSpace(v.PaperID)
		if in.PaperID == "" {
			return RegistrationInput{}, missing("paperId")
		}
	} else {
		if strings.TrimSpace(v.ConferenceType) == "" {
			return RegistrationInput{}, missing("conferenceType")
		}
		ct, ok := ParseConferenceType(v.ConferenceType)
		if !ok {
			return RegistrationInput{}, invalid("conferenceType")
		}
		in.ConferenceType = ct
	}

	if evaluationDate.IsZero() {
		evaluationDate = time.Now()
	}
	in.EvaluationDate = evaluationDate
	return in.Normalize(), nil
}
