package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/domain"
)

// transitions lists the allowed next states for every non-terminal status.
var transitions = map[domain.BillStatus][]domain.BillStatus{
	domain.BillGenerated: {domain.BillSent},
	domain.BillSent:      {domain.BillPaid, domain.BillOverdue, domain.BillDisputed},
	domain.BillOverdue:   {domain.BillPaid, domain.BillDisputed},
	domain.BillDisputed:  {domain.BillSent},
}

// Lifecycle validates bill status changes and mutations. It holds no state;
// callers persist the returned value under a row lock.
type Lifecycle struct{}

// CanTransition reports whether from -> to is an edge of the status graph.
func (Lifecycle) CanTransition(from, to domain.BillStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition returns b moved to status to.
func (l Lifecycle) Transition(b domain.Bill, to domain.BillStatus, now time.Time) (domain.Bill, error) {
	if b.Status == domain.BillPaid {
		return b, fmt.Errorf("bill %d is paid: %w", b.ID, domain.ErrInvalidTransition)
	}
	if !l.CanTransition(b.Status, to) {
		return b, fmt.Errorf("bill %d: %s -> %s: %w", b.ID, b.Status, to, domain.ErrInvalidTransition)
	}
	if to == domain.BillPaid {
		return l.MarkPaid(b, now)
	}
	b.Status = to
	b.UpdatedAt = now
	return b, nil
}

// MarkPaid settles the bill at now.
func (l Lifecycle) MarkPaid(b domain.Bill, now time.Time) (domain.Bill, error) {
	if b.Status == domain.BillPaid {
		return b, fmt.Errorf("bill %d: %w", b.ID, domain.ErrAlreadyPaid)
	}
	if !l.CanTransition(b.Status, domain.BillPaid) {
		return b, fmt.Errorf("bill %d: %s -> %s: %w", b.ID, b.Status, domain.BillPaid, domain.ErrInvalidTransition)
	}
	paidAt := now
	b.Status = domain.BillPaid
	b.PaymentDate = &paidAt
	b.UpdatedAt = now
	return b, nil
}

func (Lifecycle) CanMutate(b domain.Bill) bool { return b.Status != domain.BillPaid }

func (Lifecycle) CanDelete(b domain.Bill) bool { return b.Status != domain.BillPaid }

// BillPatch enumerates every field a caller may change on an unpaid bill.
// Nil / invalid members are left untouched.
type BillPatch struct {
	BillingPeriodStart *time.Time          `json:"billing_period_start"`
	BillingPeriodEnd   *time.Time          `json:"billing_period_end"`
	PreviousReading    decimal.NullDecimal `json:"previous_reading"`
	CurrentReading     decimal.NullDecimal `json:"current_reading"`
	UnitsConsumed      decimal.NullDecimal `json:"units_consumed"`
	EnergyCharges      decimal.NullDecimal `json:"energy_charges"`
	FixedCharges       decimal.NullDecimal `json:"fixed_charges"`
	PeakCharges        decimal.NullDecimal `json:"peak_charges"`
	OffPeakCharges     decimal.NullDecimal `json:"off_peak_charges"`
	TaxAmount          decimal.NullDecimal `json:"tax_amount"`
	SubsidyAmount      decimal.NullDecimal `json:"subsidy_amount"`
	TotalAmount        decimal.NullDecimal `json:"total_amount"`
	DueDate            *time.Time          `json:"due_date"`
}

// Empty reports whether the patch changes nothing.
func (p BillPatch) Empty() bool {
	return p.BillingPeriodStart == nil && p.BillingPeriodEnd == nil && p.DueDate == nil &&
		!p.PreviousReading.Valid && !p.CurrentReading.Valid && !p.UnitsConsumed.Valid &&
		!p.EnergyCharges.Valid && !p.FixedCharges.Valid && !p.PeakCharges.Valid &&
		!p.OffPeakCharges.Valid && !p.TaxAmount.Valid && !p.SubsidyAmount.Valid &&
		!p.TotalAmount.Valid
}

// ApplyPatch applies p to b and re-derives units and total. Returned warnings
// are non-fatal (total mismatch).
func (l Lifecycle) ApplyPatch(b domain.Bill, p BillPatch, calc *Calculator, now time.Time) (domain.Bill, []error, error) {
	if !l.CanMutate(b) {
		return b, nil, fmt.Errorf("bill %d: %w", b.ID, domain.ErrBillImmutable)
	}

	if p.BillingPeriodStart != nil {
		b.BillingPeriodStart = *p.BillingPeriodStart
	}
	if p.BillingPeriodEnd != nil {
		b.BillingPeriodEnd = *p.BillingPeriodEnd
	}
	if p.DueDate != nil {
		b.DueDate = *p.DueDate
	}
	if p.PreviousReading.Valid {
		b.PreviousReading = p.PreviousReading
	}
	if p.CurrentReading.Valid {
		b.CurrentReading = p.CurrentReading
	}
	setMoney(&b.EnergyCharges, p.EnergyCharges)
	setMoney(&b.FixedCharges, p.FixedCharges)
	setMoney(&b.PeakCharges, p.PeakCharges)
	setMoney(&b.OffPeakCharges, p.OffPeakCharges)
	setMoney(&b.TaxAmount, p.TaxAmount)
	setMoney(&b.SubsidyAmount, p.SubsidyAmount)

	if b.BillingPeriodEnd.Before(b.BillingPeriodStart) {
		return b, nil, fmt.Errorf("billing period ends before it starts: %w", domain.ErrInvalidInput)
	}

	// Units are re-derived only when the patch touches them; otherwise the
	// stored value stands as the override.
	units := p.UnitsConsumed
	if !units.Valid && !p.PreviousReading.Valid && !p.CurrentReading.Valid {
		units = decimal.NewNullDecimal(b.UnitsConsumed)
	}
	out, warnings, err := calc.Recompute(b, units, p.TotalAmount)
	if err != nil {
		return b, nil, err
	}
	out.UpdatedAt = now
	return out, warnings, nil
}

func setMoney(dst *decimal.Decimal, v decimal.NullDecimal) {
	if v.Valid {
		*dst = v.Decimal.Round(moneyPlaces)
	}
}
