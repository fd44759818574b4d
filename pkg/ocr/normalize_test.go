package ocr

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMoney(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1,234.56", "1234.56"},
		{"1.234,56", "1234.56"},
		{"12,345,678.90", "12345678.90"},
		{"12.345.678,90", "12345678.90"},
		{"115.00", "115.00"},
		{"115,00", "115.00"},
		{"R 1,234.56", "1234.56"},
		{"R115.00", "115.00"},
		{"TOTAL: 99.99", "99.99"},
		{"42", "42"},
	}
	for _, c := range cases {
		got, err := NormalizeMoney(c.in)
		require.NoError(t, err, "input %q", c.in)
		assert.True(t, got.Equal(decimal.RequireFromString(c.want)), "input %q: got %s want %s", c.in, got, c.want)
	}
}

func TestNormalizeMoneyRejectsNonNumeric(t *testing.T) {
	_, err := NormalizeMoney("no digits here")
	assert.Error(t, err)
	_, err = NormalizeMoney("")
	assert.Error(t, err)
}

func TestParseDayFirstDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2025-03-10", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"2025/03/10", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"10-03-2025", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"10/03/2025", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"10.03.2025", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"2/1/2025", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"10 Mar 2025", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"10 March 2025", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"10 Mar, 2025", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"  10   Mar   2025 ", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		got, err := ParseDayFirstDate(c.in)
		require.NoError(t, err, "input %q", c.in)
		assert.True(t, got.Equal(c.want), "input %q: got %s want %s", c.in, got, c.want)
	}
}

// An ambiguous numeric date reads day-first, never month-first.
func TestParseDayFirstDateBias(t *testing.T) {
	got, err := ParseDayFirstDate("05/03/2025")
	require.NoError(t, err)
	assert.Equal(t, time.March, got.Month())
	assert.Equal(t, 5, got.Day())
}

func TestParseDayFirstDateRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "not a date", "32/13/2025", "2025"} {
		_, err := ParseDayFirstDate(in)
		assert.Error(t, err, "input %q", in)
	}
}
