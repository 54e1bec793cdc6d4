package interfaces

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	fees "confreg/internal/fees/domain"
	registration "confreg/internal/registration/domain"
)

const (
	receiptTitle   = "Conference Registration Receipt"
	receiptFooter1 = "This is an auto-generated receipt. Please keep it for your records."
	receiptFooter2 = "For any queries, please contact the conference organizers."
	notProvided    = "Not provided"
	labelWidth     = 45.0
	lineHeight     = 6.0
)

type receiptRow struct {
	label string
	value string
}

// BuildReceiptPDF renders the A4 receipt for a persisted registration.
// Fee text is taken from the registration as stored.
func BuildReceiptPDF(reg *registration.Registration, generatedAt time.Time) ([]byte, error) {
	if reg == nil {
		return nil, fmt.Errorf("receipt: nil registration")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.SetTitle("Registration Receipt "+reg.ID, false)
	pdf.SetCreator("confreg", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string {
		return tr(strings.ReplaceAll(s, "≈", "~"))
	}
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(44, 90, 160)
	pdf.CellFormat(0, 12, receiptTitle, "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(85, 85, 85)
	pdf.CellFormat(0, 6, "Receipt Generated: "+generatedAt.In(fees.IST).Format("02/01/2006, 3:04:05 pm"), "", 1, "R", false, 0, "")

	pdf.SetDrawColor(44, 90, 160)
	pdf.SetLineWidth(0.5)
	y := pdf.GetY() + 2
	pdf.Line(18, y, 192, y)
	pdf.Ln(6)

	section := func(title string, rows []receiptRow) {
		pdf.SetFont("Helvetica", "BU", 12)
		pdf.SetTextColor(44, 90, 160)
		pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
		for _, row := range rows {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.CellFormat(labelWidth, lineHeight, row.label, "", 0, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, lineHeight, text(row.value), "", "L", false)
		}
		pdf.Ln(4)
	}

	section("Personal Information", []receiptRow{
		{"Name:", reg.FullName()},
		{"Email:", reg.Email},
		{"Gender:", string(reg.Gender)},
		{"Year of Birth:", strconv.Itoa(reg.YearOfBirth)},
		{"Mobile:", reg.Mobile},
		{"WhatsApp:", orNotProvided(reg.WhatsApp)},
		{"Affiliation:", reg.Affiliation},
		{"Country:", reg.Country},
		{"Nationality:", nationalityLabel(reg.Nationality)},
	})

	section("Registration Details", []receiptRow{
		{"Author:", yesNo(reg.IsAuthor)},
		{"Student:", yesNo(reg.IsStudent)},
		{"Membership:", string(reg.Category)},
		{"IEEE Number:", orNotProvided(reg.IEEENumber)},
		{"Conference Type:", conferenceLabel(reg.ConferenceType)},
		{"Paper ID:", reg.PaperID},
		{"Summary:", reg.SummaryTag},
	})

	section("Payment Details", []receiptRow{
		{"Transaction Number:", reg.TransactionNo},
		{"Payment Date:", reg.PaymentDate.In(fees.IST).Format("02/01/2006")},
		{"Fee Amount:", reg.FeeDisplayText},
		{"Payment Status:", "Submitted (Pending Verification)"},
	})

	if reg.Comment != "" {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(labelWidth, lineHeight, "Comment:", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, lineHeight, text(reg.Comment), "", "L", false)
		pdf.Ln(4)
	}

	pdf.Ln(8)
	pdf.SetDrawColor(204, 204, 204)
	pdf.SetLineWidth(0.3)
	y = pdf.GetY()
	pdf.Line(18, y, 192, y)
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(102, 102, 102)
	pdf.CellFormat(0, 5, receiptFooter1, "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, receiptFooter2, "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func orNotProvided(v string) string {
	if v == "" {
		return notProvided
	}
	return v
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func nationalityLabel(n fees.Nationality) string {
	if n == fees.NationalityNational {
		return "National"
	}
	return "International"
}

func conferenceLabel(ct fees.ConferenceType) string {
	if ct == fees.ConferenceFull {
		return "Full Conference"
	}
	return "Tutorial/Workshop Only"
}
