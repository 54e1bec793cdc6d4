package fees

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FeeResult is the computed fee for one registration.
type FeeResult struct {
	BaseFee     decimal.Decimal
	FinalFee    int64
	Currency    Currency
	DisplayText string
	SummaryTag  string
	Phase       Phase
}

// Engine computes fees and summary tags from a shared read-only RateTable.
type Engine struct {
	table *RateTable
	clock Clock
}

// Option configures the engine.
type Option func(*Engine)

// WithClock overrides the clock used for phase determination.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// NewEngine constructs an engine over table.
func NewEngine(table *RateTable, opts ...Option) (*Engine, error) {
	if table == nil {
		return nil, ErrNilRateTable
	}
	e := &Engine{table: table, clock: SystemClock{}}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Table returns the engine rate table.
func (e *Engine) Table() *RateTable { return e.table }

// ComputePhase returns PhaseEarly up to and including the deadline.
func (e *Engine) ComputePhase(at time.Time) Phase {
	if at.After(e.table.EarlyBirdDeadline()) {
		return PhaseRegular
	}
	return PhaseEarly
}

// ComputeFee looks up the base fee and applies tax.
// Non-author phase comes from the engine clock, not in.EvaluationDate.
func (e *Engine) ComputeFee(in RegistrationInput) (FeeResult, error) {
	in = in.Normalize()
	phase := e.ComputePhase(e.clock.Now())

	var (
		base decimal.Decimal
		ok   bool
	)
	if in.IsAuthor {
		base, ok = e.table.AuthorFee(in.Nationality, in.Category)
		if !ok {
			return FeeResult{}, &LookupError{Author: true, Nationality: in.Nationality, Category: in.Category}
		}
	} else {
		base, ok = e.table.NonAuthorFee(in.Nationality, in.Category, in.ConferenceType, phase)
		if !ok {
			return FeeResult{}, &LookupError{
				Nationality:    in.Nationality,
				Category:       in.Category,
				ConferenceType: in.ConferenceType,
				Phase:          phase,
			}
		}
	}

	final := base.Mul(decimal.NewFromInt(1).Add(e.table.TaxRate())).Round(0).IntPart()
	currency := CurrencyFor(in.Nationality)
	return FeeResult{
		BaseFee:     base,
		FinalFee:    final,
		Currency:    currency,
		DisplayText: e.displayText(currency, final),
		Phase:       phase,
	}, nil
}

// ComputeSummary builds the canonical summary tag.
func (e *Engine) ComputeSummary(in RegistrationInput) (string, error) {
	in = in.Normalize()
	if in.Nationality == "" {
		return "", missing("nationality")
	}
	if in.Category == "" {
		return "", missing("category")
	}
	if in.ConferenceType == "" {
		return "", missing("conferenceType")
	}
	if strings.TrimSpace(in.PaperID) == "" {
		return "", missing("paperId")
	}

	role := "Non_author"
	if in.IsAuthor {
		role = "Author"
	}
	attendance := "Full_conference"
	if in.ConferenceType == ConferenceTutorial {
		attendance = "Tutorial_only"
	}
	return strings.Join([]string{
		"paper_" + in.PaperID,
		role,
		string(in.Nationality),
		strings.Join(strings.Fields(string(in.Category)), "_"),
		attendance,
	}, "-"), nil
}

// Quote computes the fee and fills in the summary tag.
func (e *Engine) Quote(in RegistrationInput) (FeeResult, error) {
	summary, err := e.ComputeSummary(in)
	if err != nil {
		return FeeResult{}, err
	}
	result, err := e.ComputeFee(in)
	if err != nil {
		return FeeResult{}, err
	}
	result.SummaryTag = summary
	return result, nil
}

// INREquivalent converts a whole USD amount with the illustrative rate.
func (e *Engine) INREquivalent(usd int64) int64 {
	return decimal.NewFromInt(usd).Mul(e.table.FXRate()).Round(0).IntPart()
}

func (e *Engine) displayText(currency Currency, final int64) string {
	if currency == CurrencyUSD {
		return fmt.Sprintf("USD %d (incl. GST) ≈ INR %d", final, e.INREquivalent(final))
	}
	return fmt.Sprintf("INR %d (incl. GST)", final)
}
