package registration

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	fees "confreg/internal/fees/domain"
)

// Status is the registration lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// Registration is a submitted conference registration.
type Registration struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	PersonalDetails

	IsAuthor       bool                `json:"is_author"`
	Nationality    fees.Nationality    `json:"nationality"`
	Category       fees.Category       `json:"category"`
	ConferenceType fees.ConferenceType `json:"conference_type"`
	PaperID        string              `json:"paper_id"`

	BaseFee        decimal.Decimal `json:"base_fee"`
	FinalFee       int64           `json:"fee"`
	Currency       fees.Currency   `json:"currency"`
	FeeDisplayText string          `json:"fee_display_text"`
	Phase          fees.Phase      `json:"phase"`
	SummaryTag     string          `json:"summary"`

	TransactionNo  string    `json:"transaction_no"`
	PaymentDate    time.Time `json:"payment_date"`
	PaymentProof   string    `json:"payment_proof,omitempty"`
	StudentIDCard  string    `json:"student_id_card,omitempty"`
	ReceiptLocator string    `json:"receipt,omitempty"`
	Comment        string    `json:"comment,omitempty"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"registration_date"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName joins salutation, first and last name.
func (r *Registration) FullName() string {
	name := r.FirstName
	if r.LastName != "" {
		name += " " + r.LastName
	}
	if r.Salutation != "" {
		name = string(r.Salutation) + " " + name
	}
	return name
}

// OwnedBy reports whether userID submitted r.
func (r *Registration) OwnedBy(userID string) bool {
	return userID != "" && r.UserID == userID
}

// Cancel moves an active registration to cancelled.
func (r *Registration) Cancel(at time.Time) error {
	if r.Status != StatusActive {
		return ErrAlreadyCancelled
	}
	r.Status = StatusCancelled
	r.UpdatedAt = at
	return nil
}

// ApplyFee copies a computed fee onto r.
func (r *Registration) ApplyFee(in fees.RegistrationInput, result fees.FeeResult) {
	r.IsAuthor = in.IsAuthor
	r.Nationality = in.Nationality
	r.Category = in.Category
	r.ConferenceType = in.ConferenceType
	r.PaperID = in.PaperID
	r.BaseFee = result.BaseFee
	r.FinalFee = result.FinalFee
	r.Currency = result.Currency
	r.FeeDisplayText = result.DisplayText
	r.Phase = result.Phase
	r.SummaryTag = result.SummaryTag
}

// Repository persists registrations.
type Repository interface {
	Create(ctx context.Context, reg *Registration) error
	Get(ctx context.Context, id string) (*Registration, error)
	ListByUser(ctx context.Context, userID string) ([]Registration, error)
	ListAll(ctx context.Context) ([]Registration, error)
	// UpdateStatus transitions id from one status to another, failing with
	// ErrAlreadyCancelled when the stored status is not from.
	UpdateStatus(ctx context.Context, id string, from, to Status, at time.Time) error
}
