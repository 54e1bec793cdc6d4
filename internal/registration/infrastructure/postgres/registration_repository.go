package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	fees "confreg/internal/fees/domain"
	registration "confreg/internal/registration/domain"
)

const selectColumns = `
SELECT id, user_id, salutation, first_name, last_name, email, gender, year_of_birth,
	affiliation, country, is_student, mobile, whatsapp, ieee_number,
	is_author, nationality, category, conference_type, paper_id,
	base_fee, final_fee, currency, fee_display_text, phase, summary,
	transaction_no, payment_date, payment_proof, student_id_card, receipt_locator, comment,
	status, created_at, updated_at
FROM registrations`

// RegistrationRepository persists registrations in Postgres.
type RegistrationRepository struct {
	db *sql.DB
}

// NewRegistrationRepository constructs a repository.
func NewRegistrationRepository(db *sql.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create inserts a registration.
func (r *RegistrationRepository) Create(ctx context.Context, reg *registration.Registration) error {
	if r == nil || r.db == nil {
		return errors.New("registration repo: nil db")
	}
	if reg == nil {
		return errors.New("registration repo: nil registration")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO registrations (
	id, user_id, salutation, first_name, last_name, email, gender, year_of_birth,
	affiliation, country, is_student, mobile, whatsapp, ieee_number,
	is_author, nationality, category, conference_type, paper_id,
	base_fee, final_fee, currency, fee_display_text, phase, summary,
	transaction_no, payment_date, payment_proof, student_id_card, receipt_locator, comment,
	status, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
	$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34
)`,
		reg.ID, reg.UserID, string(reg.Salutation), reg.FirstName, reg.LastName, reg.Email, string(reg.Gender), reg.YearOfBirth,
		reg.Affiliation, reg.Country, reg.IsStudent, reg.Mobile, reg.WhatsApp, reg.IEEENumber,
		reg.IsAuthor, string(reg.Nationality), string(reg.Category), string(reg.ConferenceType), reg.PaperID,
		reg.BaseFee, reg.FinalFee, string(reg.Currency), reg.FeeDisplayText, string(reg.Phase), reg.SummaryTag,
		reg.TransactionNo, reg.PaymentDate, reg.PaymentProof, reg.StudentIDCard, reg.ReceiptLocator, reg.Comment,
		string(reg.Status), reg.CreatedAt, reg.UpdatedAt)
	return err
}

// Get returns a registration by id.
func (r *RegistrationRepository) Get(ctx context.Context, id string) (*registration.Registration, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("registration repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id)
	reg, err := scanRegistration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, registration.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// ListByUser returns the registrations of userID, newest first.
func (r *RegistrationRepository) ListByUser(ctx context.Context, userID string) ([]registration.Registration, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("registration repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, selectColumns+` WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListAll returns every registration, newest first.
func (r *RegistrationRepository) ListAll(ctx context.Context) ([]registration.Registration, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("registration repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// UpdateStatus transitions id from one status to another.
func (r *RegistrationRepository) UpdateStatus(ctx context.Context, id string, from, to registration.Status, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("registration repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE registrations SET status = $3, updated_at = $4
WHERE id = $1 AND status = $2`, id, string(from), string(to), at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM registrations WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return registration.ErrNotFound
	}
	return registration.ErrAlreadyCancelled
}

type scanner interface {
	Scan(dest ...any) error
}

func collect(rows *sql.Rows) ([]registration.Registration, error) {
	defer rows.Close()
	out := make([]registration.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *reg)
	}
	return out, rows.Err()
}

func scanRegistration(row scanner) (*registration.Registration, error) {
	var (
		reg                                            registration.Registration
		salutation, gender                             string
		nationality, category, conferenceType          string
		currency, phase, status                        string
		whatsapp, ieee, proof, studentID, receipt, cmt sql.NullString
	)
	err := row.Scan(
		&reg.ID, &reg.UserID, &salutation, &reg.FirstName, &reg.LastName, &reg.Email, &gender, &reg.YearOfBirth,
		&reg.Affiliation, &reg.Country, &reg.IsStudent, &reg.Mobile, &whatsapp, &ieee,
		&reg.IsAuthor, &nationality, &category, &conferenceType, &reg.PaperID,
		&reg.BaseFee, &reg.FinalFee, &currency, &reg.FeeDisplayText, &phase, &reg.SummaryTag,
		&reg.TransactionNo, &reg.PaymentDate, &proof, &studentID, &receipt, &cmt,
		&status, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	reg.Salutation = registration.Salutation(salutation)
	reg.Gender = registration.Gender(gender)
	reg.Nationality = fees.Nationality(nationality)
	reg.Category = fees.Category(category)
	reg.ConferenceType = fees.ConferenceType(conferenceType)
	reg.Currency = fees.Currency(currency)
	reg.Phase = fees.Phase(phase)
	reg.Status = registration.Status(status)
	reg.WhatsApp = whatsapp.String
	reg.IEEENumber = ieee.String
	reg.PaymentProof = proof.String
	reg.StudentIDCard = studentID.String
	reg.ReceiptLocator = receipt.String
	reg.Comment = cmt.String
	return &reg, nil
}
