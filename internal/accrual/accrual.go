// Package accrual computes daily-compounded returns on invested principal.
package accrual

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	// InflationRate is the baseline annual inflation assumption.
	InflationRate = decimal.RequireFromString("0.025")
	// InterestPremium is the guaranteed yield above inflation.
	InterestPremium = decimal.RequireFromString("0.015")
	// AnnualRate is the nominal yearly rate applied to every investment.
	AnnualRate = InflationRate.Add(InterestPremium)
	// DailyRate compounds daily so that 365 periods make one year.
	DailyRate = AnnualRate.DivRound(decimal.NewFromInt(daysPerYear), divisionPrecision)
)

const (
	daysPerYear       = 365
	divisionPrecision = 24
	currencyPlaces    = 2
)

// Accrue returns the interest earned on principal after elapsedDays whole
// days of daily compounding: principal * ((1+dailyRate)^days - 1).
// Negative days are treated as zero. The result is not rounded.
func Accrue(principal decimal.Decimal, elapsedDays int, dailyRate decimal.Decimal) decimal.Decimal {
	if elapsedDays <= 0 {
		return decimal.Zero
	}
	growth := powInt(decimal.NewFromInt(1).Add(dailyRate), elapsedDays)
	return principal.Mul(growth.Sub(decimal.NewFromInt(1)))
}

// powInt raises base to a non-negative integer power by squaring, rounding
// each step so the digit count stays bounded over long horizons.
func powInt(base decimal.Decimal, exp int) decimal.Decimal {
	result := decimal.NewFromInt(1)
	for exp > 0 {
		if exp&1 == 1 {
			result = result.Mul(base).Round(divisionPrecision)
		}
		base = base.Mul(base).Round(divisionPrecision)
		exp >>= 1
	}
	return result
}

// Value returns principal plus accrual at the process-wide daily rate.
func Value(principal decimal.Decimal, elapsedDays int) decimal.Decimal {
	return principal.Add(Accrue(principal, elapsedDays, DailyRate))
}

// ElapsedDays counts whole days from start to now, never negative.
func ElapsedDays(start, now time.Time) int {
	if start.IsZero() || now.Before(start) {
		return 0
	}
	return int(now.Sub(start) / (24 * time.Hour))
}

// RoundCurrency rounds to two decimal places for presentation.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(currencyPlaces)
}

// AnnualRatePercent is the annual rate expressed as a percentage.
func AnnualRatePercent() decimal.Decimal {
	return RoundCurrency(AnnualRate.Mul(decimal.NewFromInt(100)))
}
