package payroll

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var ErrInvalidTaxProfile = errors.New("invalid tax profile")

var hundred = decimal.NewFromInt(100)

// CalculateTax returns the tax withheld from gross under profile, rounded to cents.
func CalculateTax(profile TaxProfile, gross decimal.Decimal) decimal.Decimal {
	return PreviewTax(profile, gross).Total
}

// PreviewTax runs the same computation as CalculateTax and reports every bracket's
// contribution.
func PreviewTax(profile TaxProfile, gross decimal.Decimal) TaxBreakdown {
	breakdown := TaxBreakdown{Method: profile.Method, Gross: gross, Lines: []BracketLine{}, Total: decimal.Zero}
	if !profile.Active || !gross.IsPositive() {
		return breakdown
	}

	total := decimal.Zero
	switch profile.Method {
	case TaxMethodFlat:
		tax := gross.Mul(profile.FlatRate).Div(hundred)
		breakdown.Lines = append(breakdown.Lines, BracketLine{
			Lower: decimal.Zero,
			Span:  gross,
			Rate:  profile.FlatRate,
			Tax:   tax.Round(2),
		})
		total = tax
	case TaxMethodTiered:
		lower := decimal.Zero
		for _, bracket := range sortedBrackets(profile.Brackets) {
			if !gross.GreaterThan(lower) {
				break
			}
			upper := gross
			if bracket.UpTo != nil && bracket.UpTo.LessThan(gross) {
				upper = *bracket.UpTo
			}
			span := upper.Sub(lower)
			if !span.IsPositive() {
				continue
			}
			tax := span.Mul(bracket.Rate).Div(hundred)
			breakdown.Lines = append(breakdown.Lines, BracketLine{
				Lower: lower,
				Upper: bracket.UpTo,
				Span:  span,
				Rate:  bracket.Rate,
				Tax:   tax.Round(2),
			})
			total = total.Add(tax)
			lower = upper
		}
	}
	breakdown.Total = total.Round(2)
	return breakdown
}

// sortedBrackets orders brackets ascending by UpTo with the unbounded bracket last.
func sortedBrackets(brackets []TaxBracket) []TaxBracket {
	sorted := make([]TaxBracket, len(brackets))
	copy(sorted, brackets)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].UpTo, sorted[j].UpTo
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.LessThan(*b)
		}
	})
	return sorted
}

// ValidateProfile checks rates are within 0..100, tiered profiles have at most one
// unbounded bracket and no two brackets share an upper bound.
func ValidateProfile(profile TaxProfile) error {
	switch profile.Method {
	case TaxMethodFlat:
		if !validRate(profile.FlatRate) {
			return fmt.Errorf("%w: flat rate must be between 0 and 100", ErrInvalidTaxProfile)
		}
	case TaxMethodTiered:
		if len(profile.Brackets) == 0 {
			return fmt.Errorf("%w: tiered profile needs at least one bracket", ErrInvalidTaxProfile)
		}
		unbounded := 0
		seen := make(map[string]bool, len(profile.Brackets))
		for _, b := range profile.Brackets {
			if !validRate(b.Rate) {
				return fmt.Errorf("%w: bracket rate must be between 0 and 100", ErrInvalidTaxProfile)
			}
			if b.UpTo == nil {
				unbounded++
				continue
			}
			if !b.UpTo.IsPositive() {
				return fmt.Errorf("%w: bracket bound must be positive", ErrInvalidTaxProfile)
			}
			key := b.UpTo.String()
			if seen[key] {
				return fmt.Errorf("%w: duplicate bracket bound %s", ErrInvalidTaxProfile, key)
			}
			seen[key] = true
		}
		if unbounded > 1 {
			return fmt.Errorf("%w: at most one unbounded bracket", ErrInvalidTaxProfile)
		}
	default:
		return fmt.Errorf("%w: unknown method %q", ErrInvalidTaxProfile, profile.Method)
	}
	return nil
}

func validRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && !rate.GreaterThan(hundred)
}
