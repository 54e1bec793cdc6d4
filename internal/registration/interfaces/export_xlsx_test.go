package interfaces

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	fees "confreg/internal/fees/domain"
	registration "confreg/internal/registration/domain"
)

func TestBuildRegistrationsXLSX(t *testing.T) {
	regs := []registration.Registration{
		sampleRegistration("reg-1", fees.CurrencyINR, 14160, registration.StatusActive),
		sampleRegistration("reg-2", fees.CurrencyUSD, 354, registration.StatusActive),
		sampleRegistration("reg-3", fees.CurrencyUSD, 413, registration.StatusCancelled),
	}
	data, err := BuildRegistrationsXLSX(regs, decimal.NewFromInt(89))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(registrationsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, "reg-1", rows[1][0])
	assert.Equal(t, "Dr. Asha Rao", rows[1][3])
	assert.Equal(t, "cancelled", rows[3][2])

	inrCol := indexOf(exportHeader, "INR Equivalent")
	require.GreaterOrEqual(t, inrCol, 0)
	assert.Equal(t, "14160", rows[1][inrCol])
	assert.Equal(t, "31506", rows[2][inrCol])

	totals, err := f.GetRows(totalsSheet)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(totals), 6)
	assert.Equal(t, []string{"INR", "1", "14160", "INR 14,160", "14160"}, totals[1])
	assert.Equal(t, "USD", totals[2][0])
	assert.Equal(t, "1", totals[2][1], "cancelled registrations are excluded from totals")
	assert.Equal(t, "354", totals[2][2])
	assert.Equal(t, "All", totals[3][0])
	assert.Equal(t, "45666", totals[3][4])
	assert.Equal(t, "89", totals[5][1])
}

func TestBuildRegistrationsXLSX_Empty(t *testing.T) {
	data, err := BuildRegistrationsXLSX(nil, decimal.NewFromInt(89))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(registrationsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestINRAmount(t *testing.T) {
	fx := decimal.RequireFromString("88.5")
	usd := sampleRegistration("r", fees.CurrencyUSD, 3, registration.StatusActive)
	inr := sampleRegistration("r", fees.CurrencyINR, 14160, registration.StatusActive)
	assert.Equal(t, int64(266), INRAmount(usd, fx))
	assert.Equal(t, int64(14160), INRAmount(inr, fx))
}

func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}
