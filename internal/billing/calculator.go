package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/domain"
)

const (
	moneyPlaces = 2
	unitPlaces  = 4
)

// Charges holds the optional monetary components of a bill. Missing values count as zero.
type Charges struct {
	Energy  decimal.NullDecimal
	Fixed   decimal.NullDecimal
	Peak    decimal.NullDecimal
	OffPeak decimal.NullDecimal
	Tax     decimal.NullDecimal
	Subsidy decimal.NullDecimal
}

// TariffRates prices each time-of-day slot per kWh, plus a flat fixed charge.
type TariffRates struct {
	Normal  decimal.Decimal
	Peak    decimal.Decimal
	OffPeak decimal.Decimal
	Fixed   decimal.Decimal
}

// BillInput is everything the calculator needs to produce a bill candidate.
type BillInput struct {
	UserID      int64
	MeterID     int64
	UtilityID   int64
	BillNumber  string
	PeriodStart time.Time
	PeriodEnd   time.Time
	DueDate     time.Time
	Status      domain.BillStatus

	PreviousReading decimal.NullDecimal
	CurrentReading  decimal.NullDecimal
	UnitsConsumed   decimal.NullDecimal
	Charges         Charges
	TotalAmount     decimal.NullDecimal

	// Readings and Rates are optional. When both are set, missing charge
	// components are priced from per-slot consumption.
	Readings []domain.MeterReading
	Rates    *TariffRates
}

// SlotUsage is interval consumption split by tariff slot.
type SlotUsage struct {
	Peak    decimal.Decimal `json:"peak"`
	Normal  decimal.Decimal `json:"normal"`
	OffPeak decimal.Decimal `json:"off_peak"`
}

func (u SlotUsage) Total() decimal.Decimal { return u.Peak.Add(u.Normal).Add(u.OffPeak) }

// Computation is an unsaved bill plus any non-fatal warnings raised while building it.
type Computation struct {
	Bill     domain.Bill
	Slots    *SlotUsage
	Warnings []error
}

type Calculator struct {
	Schedule TariffSchedule
}

func NewCalculator(schedule TariffSchedule) *Calculator {
	return &Calculator{Schedule: schedule}
}

// Compute derives consumption and totals for a bill candidate.
func (c *Calculator) Compute(in BillInput) (*Computation, error) {
	var slots *SlotUsage
	if len(in.Readings) > 0 {
		u := c.SplitBySlot(in.Readings)
		slots = &u
	}

	units, err := resolveUnits(in.PreviousReading, in.CurrentReading, in.UnitsConsumed, slots)
	if err != nil {
		return nil, err
	}

	charges := in.Charges
	if slots != nil && in.Rates != nil {
		charges = priceSlots(charges, *slots, *in.Rates)
	}

	status := in.Status
	if status == "" {
		status = domain.BillGenerated
	}

	bill := domain.Bill{
		UserID:             in.UserID,
		MeterID:            in.MeterID,
		UtilityID:          in.UtilityID,
		BillNumber:         in.BillNumber,
		BillingPeriodStart: in.PeriodStart,
		BillingPeriodEnd:   in.PeriodEnd,
		PreviousReading:    in.PreviousReading,
		CurrentReading:     in.CurrentReading,
		UnitsConsumed:      units.Round(unitPlaces),
		EnergyCharges:      money(charges.Energy),
		FixedCharges:       money(charges.Fixed),
		PeakCharges:        money(charges.Peak),
		OffPeakCharges:     money(charges.OffPeak),
		TaxAmount:          money(charges.Tax),
		SubsidyAmount:      money(charges.Subsidy),
		DueDate:            in.DueDate,
		Status:             status,
	}

	out := &Computation{Bill: bill, Slots: slots}
	out.Bill.TotalAmount, out.Warnings = settleTotal(bill, in.TotalAmount)
	return out, nil
}

// Recompute re-derives units and total for an existing bill, e.g. after a patch.
// suppliedTotal is only used for mismatch detection.
func (c *Calculator) Recompute(b domain.Bill, explicitUnits, suppliedTotal decimal.NullDecimal) (domain.Bill, []error, error) {
	if explicitUnits.Valid || (b.PreviousReading.Valid && b.CurrentReading.Valid) {
		units, err := resolveUnits(b.PreviousReading, b.CurrentReading, explicitUnits, nil)
		if err != nil {
			return b, nil, err
		}
		b.UnitsConsumed = units.Round(unitPlaces)
	}
	var warnings []error
	b.TotalAmount, warnings = settleTotal(b, suppliedTotal)
	return b, warnings, nil
}

// SplitBySlot sums interval consumption per tariff slot, classifying readings
// that carry no slot yet.
func (c *Calculator) SplitBySlot(readings []domain.MeterReading) SlotUsage {
	usage := SlotUsage{Peak: decimal.Zero, Normal: decimal.Zero, OffPeak: decimal.Zero}
	for _, r := range readings {
		slot := r.TodSlot
		if slot == nil {
			slot = Classify(&r.Timestamp, c.Schedule).TodSlot
		}
		if slot == nil {
			continue
		}
		switch *slot {
		case domain.TodPeak:
			usage.Peak = usage.Peak.Add(r.EnergyConsumed)
		case domain.TodOffPeak:
			usage.OffPeak = usage.OffPeak.Add(r.EnergyConsumed)
		default:
			usage.Normal = usage.Normal.Add(r.EnergyConsumed)
		}
	}
	return usage
}

func resolveUnits(prev, curr, explicit decimal.NullDecimal, slots *SlotUsage) (decimal.Decimal, error) {
	if explicit.Valid && explicit.Decimal.IsNegative() {
		return decimal.Zero, domain.ErrInvalidConsumption
	}
	if prev.Valid && curr.Valid {
		if prev.Decimal.IsNegative() || curr.Decimal.IsNegative() || curr.Decimal.LessThan(prev.Decimal) {
			if explicit.Valid {
				return explicit.Decimal, nil
			}
			return decimal.Zero, domain.ErrInvalidConsumption
		}
		return curr.Decimal.Sub(prev.Decimal), nil
	}
	switch {
	case explicit.Valid:
		return explicit.Decimal, nil
	case curr.Valid:
		if curr.Decimal.IsNegative() {
			return decimal.Zero, domain.ErrInvalidConsumption
		}
		return curr.Decimal, nil
	case slots != nil:
		return slots.Total(), nil
	}
	return decimal.Zero, nil
}

func priceSlots(ch Charges, u SlotUsage, r TariffRates) Charges {
	if !ch.Energy.Valid {
		ch.Energy = decimal.NewNullDecimal(u.Normal.Mul(r.Normal))
	}
	if !ch.Peak.Valid {
		ch.Peak = decimal.NewNullDecimal(u.Peak.Mul(r.Peak))
	}
	if !ch.OffPeak.Valid {
		ch.OffPeak = decimal.NewNullDecimal(u.OffPeak.Mul(r.OffPeak))
	}
	if !ch.Fixed.Valid {
		ch.Fixed = decimal.NewNullDecimal(r.Fixed)
	}
	return ch
}

func settleTotal(b domain.Bill, supplied decimal.NullDecimal) (decimal.Decimal, []error) {
	computed := b.ComputedTotal().Round(moneyPlaces)
	if supplied.Valid && !supplied.Decimal.Equal(computed) {
		return computed, []error{domain.TotalMismatch{Supplied: supplied.Decimal, Computed: computed}}
	}
	return computed, nil
}

func money(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal.Round(moneyPlaces)
}
