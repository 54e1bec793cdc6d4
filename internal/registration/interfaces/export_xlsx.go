package interfaces

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	fees "confreg/internal/fees/domain"
	registration "confreg/internal/registration/domain"
)

const (
	registrationsSheet = "registrations"
	totalsSheet        = "totals"
)

var exportHeader = []string{
	"Registration ID", "Registration Date", "Status", "Name", "Email", "Gender", "Year of Birth",
	"Affiliation", "Country", "Mobile", "WhatsApp", "IEEE Number", "Student", "Author", "Paper ID",
	"Nationality", "Category", "Conference Type", "Summary", "Currency", "Fee", "Fee (display)",
	"INR Equivalent", "Transaction No", "Payment Date", "Comment",
}

var amountPrinter = message.NewPrinter(language.MustParse("en-IN"))

// BuildRegistrationsXLSX renders every registration as one row, with an INR equivalent
// computed at fxRate, plus a totals sheet over active registrations.
func BuildRegistrationsXLSX(regs []registration.Registration, fxRate decimal.Decimal) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", registrationsSheet)
	if _, err := f.NewSheet(totalsSheet); err != nil {
		return nil, err
	}

	for i, title := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(registrationsSheet, cell, title)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(exportHeader), 1)
		_ = f.SetCellStyle(registrationsSheet, "A1", last, style)
	}

	type total struct {
		count int
		fee   int64
		inr   int64
	}
	totals := make(map[fees.Currency]*total)

	for i, reg := range regs {
		inr := INRAmount(reg, fxRate)
		values := []any{
			reg.ID,
			reg.CreatedAt.In(fees.IST).Format("2006-01-02 15:04"),
			string(reg.Status),
			reg.FullName(),
			reg.Email,
			string(reg.Gender),
			reg.YearOfBirth,
			reg.Affiliation,
			reg.Country,
			reg.Mobile,
			reg.WhatsApp,
			reg.IEEENumber,
			yesNo(reg.IsStudent),
			yesNo(reg.IsAuthor),
			reg.PaperID,
			string(reg.Nationality),
			string(reg.Category),
			string(reg.ConferenceType),
			reg.SummaryTag,
			string(reg.Currency),
			reg.FinalFee,
			FormatAmount(reg.Currency, reg.FinalFee),
			inr,
			reg.TransactionNo,
			reg.PaymentDate.In(fees.IST).Format("2006-01-02"),
			reg.Comment,
		}
		row := i + 2
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(registrationsSheet, cell, v)
		}

		if reg.Status != registration.StatusActive {
			continue
		}
		t := totals[reg.Currency]
		if t == nil {
			t = &total{}
			totals[reg.Currency] = t
		}
		t.count++
		t.fee += reg.FinalFee
		t.inr += inr
	}

	_ = f.SetCellValue(totalsSheet, "A1", "Currency")
	_ = f.SetCellValue(totalsSheet, "B1", "Active Registrations")
	_ = f.SetCellValue(totalsSheet, "C1", "Total Fee")
	_ = f.SetCellValue(totalsSheet, "D1", "Total (display)")
	_ = f.SetCellValue(totalsSheet, "E1", "INR Equivalent")
	currencies := make([]string, 0, len(totals))
	for c := range totals {
		currencies = append(currencies, string(c))
	}
	sort.Strings(currencies)
	var grandINR int64
	for i, c := range currencies {
		t := totals[fees.Currency(c)]
		row := i + 2
		_ = f.SetCellValue(totalsSheet, fmt.Sprintf("A%d", row), c)
		_ = f.SetCellValue(totalsSheet, fmt.Sprintf("B%d", row), t.count)
		_ = f.SetCellValue(totalsSheet, fmt.Sprintf("C%d", row), t.fee)
		_ = f.SetCellValue(totalsSheet, fmt.Sprintf("D%d", row), FormatAmount(fees.Currency(c), t.fee))
		_ = f.SetCellValue(totalsSheet, fmt.Sprintf("E%d", row), t.inr)
		grandINR += t.inr
	}
	grandRow := len(currencies) + 2
	_ = f.SetCellValue(totalsSheet, fmt.Sprintf("A%d", grandRow), "All")
	_ = f.SetCellValue(totalsSheet, fmt.Sprintf("D%d", grandRow), FormatAmount(fees.CurrencyINR, grandINR))
	_ = f.SetCellValue(totalsSheet, fmt.Sprintf("E%d", grandRow), grandINR)
	_ = f.SetCellValue(totalsSheet, fmt.Sprintf("A%d", grandRow+2), "FX Rate (INR per USD)")
	_ = f.SetCellValue(totalsSheet, fmt.Sprintf("B%d", grandRow+2), fxRate.String())

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// INRAmount returns the fee in INR, converting USD fees at fxRate.
func INRAmount(reg registration.Registration, fxRate decimal.Decimal) int64 {
	if reg.Currency != fees.CurrencyUSD {
		return reg.FinalFee
	}
	return decimal.NewFromInt(reg.FinalFee).Mul(fxRate).Round(0).IntPart()
}

// FormatAmount renders "<currency> <grouped amount>" using Indian digit grouping.
func FormatAmount(currency fees.Currency, amount int64) string {
	return string(currency) + " " + amountPrinter.Sprintf("%d", amount)
}
