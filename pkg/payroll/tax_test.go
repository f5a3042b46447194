package payroll

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func tiered(brackets ...TaxBracket) TaxProfile {
	return TaxProfile{Method: TaxMethodTiered, Active: true, Brackets: brackets}
}

func TestCalculateTax(t *testing.T) {
	tests := []struct {
		name    string
		profile TaxProfile
		gross   string
		want    string
	}{
		{
			name:    "two brackets split at the bound",
			profile: tiered(TaxBracket{UpTo: decPtr("1000"), Rate: dec("10")}, TaxBracket{Rate: dec("20")}),
			gross:   "1500",
			want:    "200.00",
		},
		{
			name:    "brackets are sorted with the unbounded one last",
			profile: tiered(TaxBracket{Rate: dec("30")}, TaxBracket{UpTo: decPtr("2000"), Rate: dec("20")}, TaxBracket{UpTo: decPtr("1000"), Rate: dec("10")}),
			gross:   "2500",
			want:    "450.00",
		},
		{
			name:    "gross within the first bracket",
			profile: tiered(TaxBracket{UpTo: decPtr("1000"), Rate: dec("10")}, TaxBracket{Rate: dec("20")}),
			gross:   "999.99",
			want:    "100.00",
		},
		{
			name:    "gross beyond the last bounded bracket is untaxed",
			profile: tiered(TaxBracket{UpTo: decPtr("1000"), Rate: dec("10")}),
			gross:   "5000",
			want:    "100.00",
		},
		{
			name:    "flat rate",
			profile: TaxProfile{Method: TaxMethodFlat, Active: true, FlatRate: dec("12.5")},
			gross:   "1234.56",
			want:    "154.32",
		},
		{
			name:    "inactive profile",
			profile: TaxProfile{Method: TaxMethodFlat, Active: false, FlatRate: dec("50")},
			gross:   "1000",
			want:    "0.00",
		},
		{
			name:    "no gross",
			profile: tiered(TaxBracket{Rate: dec("20")}),
			gross:   "0",
			want:    "0.00",
		},
		{
			name:    "negative gross",
			profile: TaxProfile{Method: TaxMethodFlat, Active: true, FlatRate: dec("20")},
			gross:   "-100",
			want:    "0.00",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateTax(tt.profile, dec(tt.gross))
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestPreviewTax(t *testing.T) {
	t.Run("should expose each bracket and match the calculated total", func(t *testing.T) {
		// given
		profile := tiered(TaxBracket{UpTo: decPtr("1000"), Rate: dec("10")}, TaxBracket{Rate: dec("20")})

		// when
		breakdown := PreviewTax(profile, dec("1500"))

		// then
		require.Len(t, breakdown.Lines, 2)
		assert.Equal(t, "0", breakdown.Lines[0].Lower.String())
		assert.Equal(t, "1000", breakdown.Lines[0].Span.String())
		assert.Equal(t, "100.00", breakdown.Lines[0].Tax.StringFixed(2))
		assert.Equal(t, "1000", breakdown.Lines[1].Lower.String())
		assert.Nil(t, breakdown.Lines[1].Upper)
		assert.Equal(t, "500", breakdown.Lines[1].Span.String())
		assert.Equal(t, "100.00", breakdown.Lines[1].Tax.StringFixed(2))
		assert.True(t, breakdown.Total.Equal(CalculateTax(profile, dec("1500"))))
	})

	t.Run("should leave the profile untouched", func(t *testing.T) {
		profile := tiered(TaxBracket{Rate: dec("20")}, TaxBracket{UpTo: decPtr("1000"), Rate: dec("10")})

		PreviewTax(profile, dec("1500"))

		assert.Nil(t, profile.Brackets[0].UpTo)
	})
}

func TestValidateProfile(t *testing.T) {
	tests := []struct {
		name    string
		profile TaxProfile
		valid   bool
	}{
		{name: "flat", profile: TaxProfile{Method: TaxMethodFlat, FlatRate: dec("15")}, valid: true},
		{name: "flat above 100", profile: TaxProfile{Method: TaxMethodFlat, FlatRate: dec("100.01")}},
		{name: "tiered", profile: tiered(TaxBracket{UpTo: decPtr("1000"), Rate: dec("10")}, TaxBracket{Rate: dec("20")}), valid: true},
		{name: "tiered without brackets", profile: tiered()},
		{name: "two unbounded brackets", profile: tiered(TaxBracket{Rate: dec("10")}, TaxBracket{Rate: dec("20")})},
		{name: "duplicate bounds", profile: tiered(TaxBracket{UpTo: decPtr("1000"), Rate: dec("10")}, TaxBracket{UpTo: decPtr("1000.00"), Rate: dec("20")})},
		{name: "negative rate", profile: tiered(TaxBracket{Rate: dec("-1")})},
		{name: "zero bound", profile: tiered(TaxBracket{UpTo: decPtr("0"), Rate: dec("1")})},
		{name: "unknown method", profile: TaxProfile{Method: "progressive"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProfile(tt.profile)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTaxProfile)
			}
		})
	}
}
