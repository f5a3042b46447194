package timeentry

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateHours(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		end      string
		expected string
	}{
		{"zero length shift", "08:00", "08:00", "0.00"},
		{"morning shift before lunch", "07:00", "12:00", "5.00"},
		{"afternoon shift after lunch", "12:30", "18:00", "5.50"},
		{"exactly five hours spanning lunch", "08:00", "13:00", "4.50"},
		{"just under five hours spanning lunch", "08:00", "12:59", "4.98"},
		{"ends exactly at lunch start", "07:30", "12:30", "4.50"},
		{"long day spanning lunch", "07:00", "15:30", "8.00"},
		{"crossing midnight", "22:00", "02:00", "4.00"},
		{"overnight shift starting after lunch is not deducted", "20:00", "13:00", "17.00"},
		{"rounds half up", "09:00", "09:01:30", "0.03"},
		{"quarter hour", "09:00", "09:15", "0.25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, err := ParseClockTime(tt.start)
			require.NoError(t, err)
			end, err := ParseClockTime(tt.end)
			require.NoError(t, err)

			hours := CalculateHours(start, end)

			assert.Equal(t, tt.expected, hours.StringFixed(2))
		})
	}
}

func TestCalculateHours_NoDeductionOutsideLunch(t *testing.T) {
	sixty := decimal.NewFromInt(60)
	for start := 0; start < 24*60; start += 37 {
		for end := start; end < 24*60; end += 53 {
			s, e := NewClockTime(0, start, 0), NewClockTime(0, end, 0)
			if start < 12*60+30 && end >= 12*60+30 {
				continue
			}
			expected := decimal.NewFromInt(int64(end - start)).Div(sixty).Round(2)

			assert.True(t, expected.Equal(CalculateHours(s, e)), "start %s end %s", s, e)
		}
	}
}

func TestCalculateHours_NeverNegative(t *testing.T) {
	for _, pair := range [][2]ClockTime{{0, 0}, {NewClockTime(23, 59, 59), 0}, {1, 0}} {
		assert.False(t, CalculateHours(pair[0], pair[1]).IsNegative())
	}
}

func TestParseClockTime(t *testing.T) {
	c, err := ParseClockTime("07:45")
	require.NoError(t, err)
	assert.Equal(t, NewClockTime(7, 45, 0), c)
	assert.Equal(t, "07:45", c.String())

	c, err = ParseClockTime("23:59:30")
	require.NoError(t, err)
	assert.Equal(t, "23:59:30", c.String())

	_, err = ParseClockTime("24:00")
	assert.Error(t, err)
	_, err = ParseClockTime("7pm")
	assert.Error(t, err)
}
