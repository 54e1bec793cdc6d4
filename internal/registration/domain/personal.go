package registration

import (
	"strconv"
	"strings"
	"time"
)

// Salutation is the registrant title.
type Salutation string

const (
	SalutationProf Salutation = "Prof."
	SalutationDr   Salutation = "Dr."
	SalutationMr   Salutation = "Mr."
	SalutationMs   Salutation = "Ms."
)

// Gender is the registrant gender.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

const minBirthYear = 1900

// PersonalDetails are the registrant's contact and identity fields.
type PersonalDetails struct {
	Salutation  Salutation `json:"salutation"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email"`
	Gender      Gender     `json:"gender"`
	YearOfBirth int        `json:"year_of_birth"`
	Affiliation string     `json:"affiliation"`
	Country     string     `json:"country"`
	IsStudent   bool       `json:"is_student"`
	Mobile      string     `json:"mobile"`
	WhatsApp    string     `json:"whatsapp,omitempty"`
	IEEENumber  string     `json:"ieee_number,omitempty"`
}

// PersonalForm holds the raw personal fields from the registration form.
type PersonalForm struct {
	Salutation  string
	FirstName   string
	LastName    string
	Email       string
	Gender      string
	YearOfBirth string
	Affiliation string
	Country     string
	IsStudent   string
	Mobile      string
	WhatsApp    string
	IEEENumber  string
}

// ParsePersonal validates raw personal fields. now bounds the year of birth.
func ParsePersonal(f PersonalForm, now time.Time) (PersonalDetails, error) {
	var p PersonalDetails

	switch s := Salutation(strings.TrimSpace(f.Salutation)); s {
	case SalutationProf, SalutationDr, SalutationMr, SalutationMs:
		p.Salutation = s
	case "":
		return PersonalDetails{}, missing("salutation")
	default:
		return PersonalDetails{}, invalid("salutation")
	}

	required := []struct {
		field string
		value string
		dst   *string
	}{
		{"firstName", f.FirstName, &p.FirstName},
		{"lastName", f.LastName, &p.LastName},
		{"email", f.Email, &p.Email},
		{"primaryAffiliation", f.Affiliation, &p.Affiliation},
		{"country", f.Country, &p.Country},
		{"mobile", f.Mobile, &p.Mobile},
	}
	for _, r := range required {
		v := strings.TrimSpace(r.value)
		if v == "" {
			return PersonalDetails{}, missing(r.field)
		}
		*r.dst = v
	}
	if !strings.Contains(p.Email, "@") {
		return PersonalDetails{}, invalid("email")
	}

	switch g := Gender(strings.TrimSpace(f.Gender)); g {
	case GenderMale, GenderFemale, GenderOther:
		p.Gender = g
	case "":
		return PersonalDetails{}, missing("gender")
	default:
		return PersonalDetails{}, invalid("gender")
	}

	yob := strings.TrimSpace(f.YearOfBirth)
	if yob == "" {
		return PersonalDetails{}, missing("yearOfBirth")
	}
	year, err := strconv.Atoi(yob)
	if err != nil || year < minBirthYear || year > now.Year() {
		return PersonalDetails{}, invalid("yearOfBirth")
	}
	p.YearOfBirth = year

	switch strings.ToLower(strings.TrimSpace(f.IsStudent)) {
	case "yes":
		p.IsStudent = true
	case "no", "":
		p.IsStudent = false
	default:
		return PersonalDetails{}, invalid("isStudent")
	}

	p.WhatsApp = strings.TrimSpace(f.WhatsApp)
	p.IEEENumber = strings.TrimSpace(f.IEEENumber)
	return p, nil
}
