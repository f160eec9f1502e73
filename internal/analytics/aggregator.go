// Package analytics aggregates bills and readings into the yearly, monthly and
// category reports. Every report is a single pass over an already scoped slice;
// callers fetch with repository.BillFilter and hand the result in.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/domain"
)

const (
	moneyPlaces = 2
	unitPlaces  = 4
)

const (
	CategoryHighAmount      = "high_amount"
	CategoryHighConsumption = "high_consumption"
)

// Scope selects the bills a report covers. Zero IDs are not filtered on.
type Scope struct {
	UserID    int64
	UtilityID int64
	Year      int
}

func (s Scope) includes(b domain.Bill) bool {
	if s.UserID != 0 && b.UserID != s.UserID {
		return false
	}
	if s.UtilityID != 0 && b.UtilityID != s.UtilityID {
		return false
	}
	return s.Year == 0 || b.CreatedAt.UTC().Year() == s.Year
}

// Filter returns the bills inside the scope, preserving order.
func (s Scope) Filter(bills []domain.Bill) []domain.Bill {
	out := make([]domain.Bill, 0, len(bills))
	for _, b := range bills {
		if s.includes(b) {
			out = append(out, b)
		}
	}
	return out
}

type UserYearSummary struct {
	UserID           int64           `json:"user_id"`
	Year             int             `json:"year"`
	TotalBills       int             `json:"total_bills"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	TotalUnits       decimal.Decimal `json:"total_units"`
	AvgAmount        decimal.Decimal `json:"avg_amount"`
	MinAmount        decimal.Decimal `json:"min_amount"`
	MaxAmount        decimal.Decimal `json:"max_amount"`
	BaseCharges      decimal.Decimal `json:"base_charges"`
	TimeBasedCharges decimal.Decimal `json:"time_based_charges"`
	PaidBills        int             `json:"paid_bills"`
	OverdueBills     int             `json:"overdue_bills"`
}

// SummarizeUserYear computes the yearly summary of one user. No matching bills
// yields a summary with every figure zero.
func SummarizeUserYear(bills []domain.Bill, userID int64, year int) UserYearSummary {
	sum := UserYearSummary{
		UserID:           userID,
		Year:             year,
		TotalAmount:      decimal.Zero,
		TotalUnits:       decimal.Zero,
		AvgAmount:        decimal.Zero,
		MinAmount:        decimal.Zero,
		MaxAmount:        decimal.Zero,
		BaseCharges:      decimal.Zero,
		TimeBasedCharges: decimal.Zero,
	}

	scoped := Scope{UserID: userID, Year: year}.Filter(bills)
	for i, b := range scoped {
		if i == 0 || b.TotalAmount.LessThan(sum.MinAmount) {
			sum.MinAmount = b.TotalAmount
		}
		if i == 0 || b.TotalAmount.GreaterThan(sum.MaxAmount) {
			sum.MaxAmount = b.TotalAmount
		}
		sum.TotalBills++
		sum.TotalAmount = sum.TotalAmount.Add(b.TotalAmount)
		sum.TotalUnits = sum.TotalUnits.Add(b.UnitsConsumed)
		sum.BaseCharges = sum.BaseCharges.Add(b.BaseCharges())
		sum.TimeBasedCharges = sum.TimeBasedCharges.Add(b.TimeBasedCharges())
		countStatus(b.Status, &sum.PaidBills, &sum.OverdueBills)
	}
	sum.AvgAmount = mean(sum.TotalAmount, sum.TotalBills, moneyPlaces)
	return sum
}

type MonthSummary struct {
	BillingMonth        string          `json:"billing_month"`
	MonthNumber         int             `json:"month_number"`
	Quarter             int             `json:"quarter"`
	TotalBills          int             `json:"total_bills"`
	UniqueCustomers     int             `json:"unique_customers"`
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	AvgBillAmount       decimal.Decimal `json:"avg_bill_amount"`
	TotalUnits          decimal.Decimal `json:"total_units"`
	AvgUnits            decimal.Decimal `json:"avg_units"`
	TotalEnergyCharges  decimal.Decimal `json:"total_energy_charges"`
	TotalFixedCharges   decimal.Decimal `json:"total_fixed_charges"`
	TotalPeakCharges    decimal.Decimal `json:"total_peak_charges"`
	TotalOffPeakCharges decimal.Decimal `json:"total_off_peak_charges"`
	TotalTax            decimal.Decimal `json:"total_tax"`
	TotalSubsidy        decimal.Decimal `json:"total_subsidy"`
	PaidCount           int             `json:"paid_count"`
	OverdueCount        int             `json:"overdue_count"`
	PaymentPercentage   decimal.Decimal `json:"payment_percentage"`
}

func newMonthSummary(year int, month time.Month) *MonthSummary {
	return &MonthSummary{
		BillingMonth:        fmt.Sprintf("%04d-%02d", year, int(month)),
		MonthNumber:         int(month),
		Quarter:             (int(month)-1)/3 + 1,
		TotalRevenue:        decimal.Zero,
		TotalUnits:          decimal.Zero,
		TotalEnergyCharges:  decimal.Zero,
		TotalFixedCharges:   decimal.Zero,
		TotalPeakCharges:    decimal.Zero,
		TotalOffPeakCharges: decimal.Zero,
		TotalTax:            decimal.Zero,
		TotalSubsidy:        decimal.Zero,
	}
}

// SummarizeUtilityMonths returns one row per calendar month of year that has
// at least one bill for the utility, ordered by month.
func SummarizeUtilityMonths(bills []domain.Bill, utilityID int64, year int) []MonthSummary {
	months := make(map[time.Month]*MonthSummary)
	customers := make(map[time.Month]map[int64]struct{})

	for _, b := range (Scope{UtilityID: utilityID, Year: year}).Filter(bills) {
		m := b.CreatedAt.UTC().Month()
		row, ok := months[m]
		if !ok {
			row = newMonthSummary(year, m)
			months[m] = row
			customers[m] = make(map[int64]struct{})
		}
		customers[m][b.UserID] = struct{}{}

		row.TotalBills++
		row.TotalRevenue = row.TotalRevenue.Add(b.TotalAmount)
		row.TotalUnits = row.TotalUnits.Add(b.UnitsConsumed)
		row.TotalEnergyCharges = row.TotalEnergyCharges.Add(b.EnergyCharges)
		row.TotalFixedCharges = row.TotalFixedCharges.Add(b.FixedCharges)
		row.TotalPeakCharges = row.TotalPeakCharges.Add(b.PeakCharges)
		row.TotalOffPeakCharges = row.TotalOffPeakCharges.Add(b.OffPeakCharges)
		row.TotalTax = row.TotalTax.Add(b.TaxAmount)
		row.TotalSubsidy = row.TotalSubsidy.Add(b.SubsidyAmount)
		countStatus(b.Status, &row.PaidCount, &row.OverdueCount)
	}

	out := make([]MonthSummary, 0, len(months))
	for m, row := range months {
		row.UniqueCustomers = len(customers[m])
		row.AvgBillAmount = mean(row.TotalRevenue, row.TotalBills, moneyPlaces)
		row.AvgUnits = mean(row.TotalUnits, row.TotalBills, unitPlaces)
		row.PaymentPercentage = decimal.NewFromInt(int64(row.PaidCount)).
			Mul(decimal.NewFromInt(100)).
			DivRound(decimal.NewFromInt(int64(row.TotalBills)), moneyPlaces)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonthNumber < out[j].MonthNumber })
	return out
}

// Thresholds are exclusive lower bounds for the two user categories.
type Thresholds struct {
	HighConsumptionUnits decimal.Decimal
	HighAmount           decimal.Decimal
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		HighConsumptionUnits: decimal.NewFromInt(1000),
		HighAmount:           decimal.NewFromInt(10000),
	}
}

// CategoryRow is one user in one category. Exactly one of TotalUnits and
// TotalAmount is set, matching Category.
type CategoryRow struct {
	Category    string              `json:"category"`
	UserID      int64               `json:"user_id"`
	TotalUnits  decimal.NullDecimal `json:"total_units"`
	TotalAmount decimal.NullDecimal `json:"total_amount"`
}

// Magnitude is the aggregate the row was ranked by.
func (r CategoryRow) Magnitude() decimal.NullDecimal {
	if r.Category == CategoryHighConsumption {
		return r.TotalUnits
	}
	return r.TotalAmount
}

// CategorizeUsers classifies users of a utility for a year into high
// consumption and high amount. The two lists are independent and a user may
// appear in both.
func CategorizeUsers(bills []domain.Bill, utilityID int64, year int, th Thresholds) []CategoryRow {
	units := make(map[int64]decimal.Decimal)
	amounts := make(map[int64]decimal.Decimal)
	for _, b := range (Scope{UtilityID: utilityID, Year: year}).Filter(bills) {
		units[b.UserID] = units[b.UserID].Add(b.UnitsConsumed)
		amounts[b.UserID] = amounts[b.UserID].Add(b.TotalAmount)
	}

	out := make([]CategoryRow, 0)
	for userID, total := range units {
		if total.GreaterThan(th.HighConsumptionUnits) {
			out = append(out, CategoryRow{
				Category:   CategoryHighConsumption,
				UserID:     userID,
				TotalUnits: decimal.NewNullDecimal(total),
			})
		}
	}
	for userID, total := range amounts {
		if total.GreaterThan(th.HighAmount) {
			out = append(out, CategoryRow{
				Category:    CategoryHighAmount,
				UserID:      userID,
				TotalAmount: decimal.NewNullDecimal(total),
			})
		}
	}
	SortCategories(out)
	return out
}

// SortCategories orders rows by category, then magnitude descending with
// missing magnitudes last, then user ID.
func SortCategories(rows []CategoryRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		ma, mb := a.Magnitude(), b.Magnitude()
		switch {
		case ma.Valid && !mb.Valid:
			return true
		case !ma.Valid && mb.Valid:
			return false
		case ma.Valid && !ma.Decimal.Equal(mb.Decimal):
			return ma.Decimal.GreaterThan(mb.Decimal)
		}
		return a.UserID < b.UserID
	})
}

type SlotTotals struct {
	Peak    decimal.Decimal `json:"peak"`
	Normal  decimal.Decimal `json:"normal"`
	OffPeak decimal.Decimal `json:"off_peak"`
}

type ConsumptionStats struct {
	ReadingCount     int             `json:"reading_count"`
	TotalConsumption decimal.Decimal `json:"total_consumption"`
	AvgConsumption   decimal.Decimal `json:"avg_consumption"`
	MinConsumption   decimal.Decimal `json:"min_consumption"`
	MaxConsumption   decimal.Decimal `json:"max_consumption"`
	BySlot           SlotTotals      `json:"by_slot"`
}

// SummarizeReadings aggregates interval consumption. Readings without a slot
// count toward the totals but not toward BySlot.
func SummarizeReadings(readings []domain.MeterReading) ConsumptionStats {
	st := ConsumptionStats{
		TotalConsumption: decimal.Zero,
		AvgConsumption:   decimal.Zero,
		MinConsumption:   decimal.Zero,
		MaxConsumption:   decimal.Zero,
		BySlot:           SlotTotals{Peak: decimal.Zero, Normal: decimal.Zero, OffPeak: decimal.Zero},
	}
	for i, r := range readings {
		e := r.EnergyConsumed
		if i == 0 || e.LessThan(st.MinConsumption) {
			st.MinConsumption = e
		}
		if i == 0 || e.GreaterThan(st.MaxConsumption) {
			st.MaxConsumption = e
		}
		st.ReadingCount++
		st.TotalConsumption = st.TotalConsumption.Add(e)
		if r.TodSlot == nil {
			continue
		}
		switch *r.TodSlot {
		case domain.TodPeak:
			st.BySlot.Peak = st.BySlot.Peak.Add(e)
		case domain.TodNormal:
			st.BySlot.Normal = st.BySlot.Normal.Add(e)
		case domain.TodOffPeak:
			st.BySlot.OffPeak = st.BySlot.OffPeak.Add(e)
		}
	}
	st.AvgConsumption = mean(st.TotalConsumption, st.ReadingCount, unitPlaces)
	return st
}

func countStatus(s domain.BillStatus, paid, overdue *int) {
	switch s {
	case domain.BillPaid:
		*paid++
	case domain.BillOverdue:
		*overdue++
	}
}

func mean(total decimal.Decimal, n, places int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return total.DivRound(decimal.NewFromInt(int64(n)), int32(places))
}
