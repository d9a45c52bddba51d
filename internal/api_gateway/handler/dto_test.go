package handler

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/card-repayment-ledger/internal/domain/shared"
)

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*60*60)

	got, err := parseDate("start_date", "2025-03-01", loc)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, time.February, 28, 16, 0, 0, 0, time.UTC)))

	got, err = parseDate("start_date", "2025-03-01T10:00:00Z", loc)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)))

	got, err = parseDate("start_date", "", loc)
	assert.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseDate("end_date", "03/01/2025", loc)
	assert.ErrorIs(t, err, shared.ErrInvalidInput{Field: "end_date"})
}

func TestToMinorUnits(t *testing.T) {
	v, err := toMinorUnits("amount", decimal.RequireFromString("120.07"))
	require.NoError(t, err)
	assert.Equal(t, int64(12007), v)

	_, err = toMinorUnits("amount", decimal.RequireFromString("0.125"))
	assert.ErrorIs(t, err, shared.ErrInvalidInput{Field: "amount"})
}

func TestLastFour(t *testing.T) {
	assert.Equal(t, "1234", lastFour("9999888877771234"))
	assert.Equal(t, "12", lastFour("12"))
}
