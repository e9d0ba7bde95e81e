package accrual

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRates(t *testing.T) {
	if !AnnualRate.Equal(decimal.RequireFromString("0.04")) {
		t.Errorf("Expected annual rate 0.04, got %s", AnnualRate)
	}
	if got := DailyRate.Mul(decimal.NewFromInt(365)).Round(10); !got.Equal(AnnualRate) {
		t.Errorf("Expected 365 daily periods to equal annual rate, got %s", got)
	}
	if !AnnualRatePercent().Equal(decimal.NewFromInt(4)) {
		t.Errorf("Expected 4%%, got %s", AnnualRatePercent())
	}
}

func TestAccrue(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		days      int
		want      string // rounded to cents
	}{
		{"zero days", "1000", 0, "0"},
		{"negative days clamp", "1000", -30, "0"},
		{"zero principal", "0", 365, "0"},
		{"one day", "1000", 1, "0.11"},
		{"one year", "1000", 365, "40.81"},
		{"thirty days", "5000", 30, "16.46"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundCurrency(Accrue(decimal.RequireFromString(tt.principal), tt.days, DailyRate))
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Accrue(%s, %d) = %s, want %s", tt.principal, tt.days, got, tt.want)
			}
		})
	}
}

func TestAccrue_OneYearNearAnnualRate(t *testing.T) {
	got := Accrue(decimal.NewFromInt(1000), 365, DailyRate)
	if got.Round(1).String() != "40.8" {
		t.Errorf("Expected about 40.8 after a year, got %s", got)
	}
	// Daily compounding beats simple interest but not by much.
	if !got.GreaterThan(decimal.NewFromInt(40)) || !got.LessThan(decimal.NewFromInt(41)) {
		t.Errorf("Expected accrual between 40 and 41, got %s", got)
	}
}

func TestAccrue_MonotonicInDays(t *testing.T) {
	principal := decimal.NewFromInt(2500)
	prev := decimal.Zero
	for days := 1; days <= 3650; days += 37 {
		got := Accrue(principal, days, DailyRate)
		if !got.GreaterThan(prev) {
			t.Fatalf("Accrual not increasing at day %d: %s <= %s", days, got, prev)
		}
		prev = got
	}
}

func TestAccrue_LinearInPrincipal(t *testing.T) {
	one := Accrue(decimal.NewFromInt(1000), 200, DailyRate)
	three := Accrue(decimal.NewFromInt(3000), 200, DailyRate)
	if !three.Equal(one.Mul(decimal.NewFromInt(3))) {
		t.Errorf("Expected accrual to scale with principal: %s vs 3*%s", three, one)
	}
}

func TestValue(t *testing.T) {
	got := RoundCurrency(Value(decimal.NewFromInt(1000), 365))
	if !got.Equal(decimal.RequireFromString("1040.81")) {
		t.Errorf("Expected 1040.81, got %s", got)
	}
}

func TestElapsedDays(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"same instant", start, 0},
		{"just under a day", start.Add(23*time.Hour + 59*time.Minute), 0},
		{"exactly one day", start.Add(24 * time.Hour), 1},
		{"ten and a half days", start.Add(252 * time.Hour), 10},
		{"clock skew", start.Add(-time.Hour), 0},
	}
	for _, tt := range tests {
		if got := ElapsedDays(start, tt.now); got != tt.want {
			t.Errorf("%s: ElapsedDays = %d, want %d", tt.name, got, tt.want)
		}
	}
	if got := ElapsedDays(time.Time{}, start); got != 0 {
		t.Errorf("Expected zero start to yield 0 days, got %d", got)
	}
}
