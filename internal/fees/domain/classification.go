package fees

import "strings"

// Nationality classifies a registrant for fee and currency purposes.
type Nationality string

const (
	NationalityNational      Nationality = "national"
	NationalityInternational Nationality = "international"
)

// Category is the registrant membership category.
type Category string

const (
	CategoryIEEEMember        Category = "IEEE Member"
	CategoryNonMember         Category = "Non-member"
	CategoryIEEEStudentMember Category = "IEEE Student Member"
	CategoryStudentNonMember  Category = "Student Non-member"
)

// ConferenceType selects full conference or tutorial-only attendance.
type ConferenceType string

const (
	ConferenceFull     ConferenceType = "full"
	ConferenceTutorial ConferenceType = "tutorial"
)

// Phase is the pricing phase relative to the early-bird deadline.
type Phase string

const (
	PhaseEarly   Phase = "early"
	PhaseRegular Phase = "regular"
)

// Currency is the ISO code the fee is charged in.
type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
)

// Nationalities lists every supported nationality.
var Nationalities = []Nationality{NationalityNational, NationalityInternational}

// Categories lists every supported membership category.
var Categories = []Category{
	CategoryIEEEMember,
	CategoryNonMember,
	CategoryIEEEStudentMember,
	CategoryStudentNonMember,
}

// ConferenceTypes lists every supported conference type.
var ConferenceTypes = []ConferenceType{ConferenceFull, ConferenceTutorial}

// Phases lists every pricing phase.
var Phases = []Phase{PhaseEarly, PhaseRegular}

// ParseNationality validates a nationality string.
func ParseNationality(value string) (Nationality, bool) {
	switch Nationality(strings.TrimSpace(value)) {
	case NationalityNational:
		return NationalityNational, true
	case NationalityInternational:
		return NationalityInternational, true
	default:
		return "", false
	}
}

// ParseCategory validates a membership category string.
func ParseCategory(value string) (Category, bool) {
	value = strings.TrimSpace(value)
	for _, c := range Categories {
		if string(c) == value {
			return c, true
		}
	}
	return "", false
}

// ParseConferenceType validates a conference type string.
func ParseConferenceType(value string) (ConferenceType, bool) {
	switch ConferenceType(strings.TrimSpace(value)) {
	case ConferenceFull:
		return ConferenceFull, true
	case ConferenceTutorial:
		return ConferenceTutorial, true
	default:
		return "", false
	}
}

// CurrencyFor returns the charging currency for a nationality.
func CurrencyFor(n Nationality) Currency {
	if n == NationalityInternational {
		return CurrencyUSD
	}
	return CurrencyINR
}
