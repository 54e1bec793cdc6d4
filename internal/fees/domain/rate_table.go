package fees

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// IST is the conference time zone used for the early-bird deadline.
var IST = time.FixedZone("IST", 5*3600+30*60)

type authorKey struct {
	nationality Nationality
	category    Category
}

type nonAuthorKey struct {
	nationality    Nationality
	category       Category
	conferenceType ConferenceType
	phase          Phase
}

// RateTableSpec is the construction input for a RateTable.
type RateTableSpec struct {
	EarlyBirdDeadline time.Time
	TaxRate           decimal.Decimal
	// FXRate is INR per USD, used only for display conversion.
	FXRate    decimal.Decimal
	Author    map[Nationality]map[Category]decimal.Decimal
	NonAuthor map[Nationality]map[Category]map[ConferenceType]map[Phase]decimal.Decimal
}

// RateTable is the immutable fee configuration. It is safe for concurrent reads.
type RateTable struct {
	deadline  time.Time
	taxRate   decimal.Decimal
	fxRate    decimal.Decimal
	author    map[authorKey]decimal.Decimal
	nonAuthor map[nonAuthorKey]decimal.Decimal
}

// NewRateTable copies spec into an immutable table.
func NewRateTable(spec RateTableSpec) (*RateTable, error) {
	if spec.EarlyBirdDeadline.IsZero() {
		return nil, errors.New("fees: early-bird deadline required")
	}
	if spec.TaxRate.IsNegative() {
		return nil, errors.New("fees: negative tax rate")
	}
	if !spec.FXRate.IsPositive() {
		return nil, errors.New("fees: fx rate must be positive")
	}

	t := &RateTable{
		deadline:  spec.EarlyBirdDeadline,
		taxRate:   spec.TaxRate,
		fxRate:    spec.FXRate,
		author:    make(map[authorKey]decimal.Decimal),
		nonAuthor: make(map[nonAuthorKey]decimal.Decimal),
	}
	for n, byCategory := range spec.Author {
		for c, amount := range byCategory {
			if amount.IsNegative() {
				return nil, fmt.Errorf("fees: negative author rate for %s/%s", n, c)
			}
			t.author[authorKey{n, c}] = amount
		}
	}
	for n, byCategory := range spec.NonAuthor {
		for c, byType := range byCategory {
			for ct, byPhase := range byType {
				for p, amount := range byPhase {
					if amount.IsNegative() {
						return nil, fmt.Errorf("fees: negative rate for %s/%s/%s/%s", n, c, ct, p)
					}
					t.nonAuthor[nonAuthorKey{n, c, ct, p}] = amount
				}
			}
		}
	}
	return t, nil
}

// AuthorFee returns the phase-independent author base fee.
func (t *RateTable) AuthorFee(n Nationality, c Category) (decimal.Decimal, bool) {
	v, ok := t.author[authorKey{n, c}]
	return v, ok
}

// NonAuthorFee returns the base fee for a non-author tuple.
func (t *RateTable) NonAuthorFee(n Nationality, c Category, ct ConferenceType, p Phase) (decimal.Decimal, bool) {
	v, ok := t.nonAuthor[nonAuthorKey{n, c, ct, p}]
	return v, ok
}

// EarlyBirdDeadline returns the last instant of the early phase.
func (t *RateTable) EarlyBirdDeadline() time.Time { return t.deadline }

// TaxRate returns the GST fraction applied to every base fee.
func (t *RateTable) TaxRate() decimal.Decimal { return t.taxRate }

// FXRate returns the illustrative INR per USD rate.
func (t *RateTable) FXRate() decimal.Decimal { return t.fxRate }

// DefaultRateTableSpec returns the published conference rates.
func DefaultRateTableSpec() RateTableSpec {
	d := decimal.NewFromInt
	phases := func(early, regular int64) map[Phase]decimal.Decimal {
		return map[Phase]decimal.Decimal{PhaseEarly: d(early), PhaseRegular: d(regular)}
	}
	return RateTableSpec{
		EarlyBirdDeadline: time.Date(2025, time.October, 26, 23, 59, 59, 0, IST),
		TaxRate:           decimal.RequireFromString("0.18"),
		FXRate:            d(89),
		Author: map[Nationality]map[Category]decimal.Decimal{
			NationalityNational: {
				CategoryIEEEMember:        d(12000),
				CategoryNonMember:         d(14000),
				CategoryIEEEStudentMember: d(8000),
				CategoryStudentNonMember:  d(10000),
			},
			NationalityInternational: {
				CategoryIEEEMember:        d(350),
				CategoryNonMember:         d(400),
				CategoryIEEEStudentMember: d(250),
				CategoryStudentNonMember:  d(300),
			},
		},
		NonAuthor: map[Nationality]map[Category]map[ConferenceType]map[Phase]decimal.Decimal{
			NationalityNational: {
				CategoryIEEEMember:        {ConferenceFull: phases(7000, 8000), ConferenceTutorial: phases(2500, 3000)},
				CategoryNonMember:         {ConferenceFull: phases(8000, 9000), ConferenceTutorial: phases(3000, 3500)},
				CategoryIEEEStudentMember: {ConferenceFull: phases(4500, 5500), ConferenceTutorial: phases(1500, 2000)},
				CategoryStudentNonMember:  {ConferenceFull: phases(5500, 6500), ConferenceTutorial: phases(2000, 2500)},
			},
			NationalityInternational: {
				CategoryIEEEMember:        {ConferenceFull: phases(250, 300), ConferenceTutorial: phases(0, 0)},
				CategoryNonMember:         {ConferenceFull: phases(300, 350), ConferenceTutorial: phases(0, 0)},
				CategoryIEEEStudentMember: {ConferenceFull: phases(150, 200), ConferenceTutorial: phases(0, 0)},
				CategoryStudentNonMember:  {ConferenceFull: phases(200, 250), ConferenceTutorial: phases(0, 0)},
			},
		},
	}
}

// DefaultRateTable builds the published conference rate table.
func DefaultRateTable() *RateTable {
	t, err := NewRateTable(DefaultRateTableSpec())
	if err != nil {
		panic(err)
	}
	return t
}
