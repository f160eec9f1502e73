package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/domain"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/search"
)

const billColumns = `bill_id, user_id, meter_id, utility_id, bill_number,
	billing_period_start, billing_period_end, previous_reading, current_reading,
	units_consumed, energy_charges, fixed_charges, peak_charges, off_peak_charges,
	tax_amount, subsidy_amount, total_amount, due_date, bill_status, payment_date,
	created_at, updated_at`

// BillFilter narrows ListBills. Nil fields and zero Year/Limit are ignored.
type BillFilter struct {
	UserID    *int64
	MeterID   *int64
	UtilityID *int64
	Status    *domain.BillStatus
	Year      int
	DueBefore *time.Time
	Limit     int
	Offset    int
}

func (r *Repos) CreateBill(ctx context.Context, b *domain.Bill) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO bills (user_id, meter_id, utility_id, bill_number,
			billing_period_start, billing_period_end, previous_reading, current_reading,
			units_consumed, energy_charges, fixed_charges, peak_charges, off_peak_charges,
			tax_amount, subsidy_amount, total_amount, due_date, bill_status, payment_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		RETURNING bill_id, created_at, updated_at`,
		b.UserID, b.MeterID, b.UtilityID, b.BillNumber,
		b.BillingPeriodStart, b.BillingPeriodEnd, b.PreviousReading, b.CurrentReading,
		b.UnitsConsumed, b.EnergyCharges, b.FixedCharges, b.PeakCharges, b.OffPeakCharges,
		b.TaxAmount, b.SubsidyAmount, b.TotalAmount, b.DueDate, b.Status, b.PaymentDate,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("bill number %q: %w", b.BillNumber, domain.ErrDuplicateBillNumber)
		}
		return fmt.Errorf("failed to insert bill: %w", err)
	}
	return nil
}

func (r *Repos) GetBill(ctx context.Context, id int64) (domain.Bill, error) {
	var b domain.Bill
	err := r.db.GetContext(ctx, &b, `SELECT `+billColumns+` FROM bills WHERE bill_id = $1`, id)
	if err != nil {
		return b, lookupErr(err, "bill", id)
	}
	return b, nil
}

// GetBillByNumber matches bill numbers case-insensitively.
func (r *Repos) GetBillByNumber(ctx context.Context, number string) (domain.Bill, error) {
	var b domain.Bill
	err := r.db.GetContext(ctx, &b,
		`SELECT `+billColumns+` FROM bills WHERE UPPER(bill_number) = UPPER($1)`, strings.TrimSpace(number))
	if err != nil {
		return b, lookupErr(err, "bill", number)
	}
	return b, nil
}

func (r *Repos) ListBills(ctx context.Context, f BillFilter) ([]domain.Bill, error) {
	var status, year, dueBefore any
	if f.Status != nil {
		status = string(*f.Status)
	}
	if f.Year > 0 {
		year = f.Year
	}
	if f.DueBefore != nil {
		dueBefore = *f.DueBefore
	}

	out := make([]domain.Bill, 0)
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+billColumns+` FROM bills
		WHERE ($1::bigint IS NULL OR user_id = $1)
		  AND ($2::bigint IS NULL OR meter_id = $2)
		  AND ($3::bigint IS NULL OR utility_id = $3)
		  AND ($4::text IS NULL OR bill_status = $4)
		  AND ($5::int IS NULL OR EXTRACT(YEAR FROM created_at AT TIME ZONE 'UTC') = $5)
		  AND ($6::date IS NULL OR due_date < $6)
		ORDER BY created_at DESC, bill_id DESC
		LIMIT $7 OFFSET $8`,
		nullInt64(f.UserID), nullInt64(f.MeterID), nullInt64(f.UtilityID),
		status, year, dueBefore, nullPositive(f.Limit), f.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	return out, nil
}

// UpdateBillLocked loads the bill under SELECT ... FOR UPDATE, passes it to fn
// and persists fn's result in the same transaction. An error from fn rolls
// back and is returned unchanged.
func (r *Repos) UpdateBillLocked(ctx context.Context, id int64, fn func(domain.Bill) (domain.Bill, error)) (domain.Bill, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Bill{}, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var current domain.Bill
	if err := tx.GetContext(ctx, &current, `SELECT `+billColumns+` FROM bills WHERE bill_id = $1 FOR UPDATE`, id); err != nil {
		return domain.Bill{}, lookupErr(err, "bill", id)
	}

	next, err := fn(current)
	if err != nil {
		return current, err
	}

	err = tx.QueryRowxContext(ctx, `
		UPDATE bills SET
			billing_period_start = $2, billing_period_end = $3,
			previous_reading = $4, current_reading = $5, units_consumed = $6,
			energy_charges = $7, fixed_charges = $8, peak_charges = $9, off_peak_charges = $10,
			tax_amount = $11, subsidy_amount = $12, total_amount = $13,
			due_date = $14, bill_status = $15, payment_date = $16, updated_at = NOW()
		WHERE bill_id = $1
		RETURNING updated_at`,
		id, next.BillingPeriodStart, next.BillingPeriodEnd,
		next.PreviousReading, next.CurrentReading, next.UnitsConsumed,
		next.EnergyCharges, next.FixedCharges, next.PeakCharges, next.OffPeakCharges,
		next.TaxAmount, next.SubsidyAmount, next.TotalAmount,
		next.DueDate, next.Status, next.PaymentDate,
	).Scan(&next.UpdatedAt)
	if err != nil {
		return current, fmt.Errorf("failed to update bill %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return current, fmt.Errorf("failed to commit bill %d: %w", id, err)
	}
	return next, nil
}

// DeleteBill removes the bill if guard accepts the locked row.
func (r *Repos) DeleteBill(ctx context.Context, id int64, guard func(domain.Bill) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var current domain.Bill
	if err := tx.GetContext(ctx, &current, `SELECT `+billColumns+` FROM bills WHERE bill_id = $1 FOR UPDATE`, id); err != nil {
		return lookupErr(err, "bill", id)
	}
	if err := guard(current); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bills WHERE bill_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete bill %d: %w", id, err)
	}
	return tx.Commit()
}

// ListSearchRecords returns bills whose number, customer name, customer ID or
// meter serial contains term, joined with the fields the ranker needs.
func (r *Repos) ListSearchRecords(ctx context.Context, term string, userID *int64) ([]search.Record, error) {
	out := make([]search.Record, 0)
	err := r.db.SelectContext(ctx, &out, `
		SELECT b.bill_id, b.bill_number, b.user_id, u.customer_id, u.first_name, u.last_name,
			sm.meter_serial_number, uc.company_name, b.bill_status, b.created_at
		FROM bills b
		INNER JOIN users u ON b.user_id = u.user_id
		INNER JOIN smart_meters sm ON b.meter_id = sm.meter_id
		INNER JOIN utility_companies uc ON b.utility_id = uc.utility_id
		WHERE (b.bill_number ILIKE $1 OR u.first_name ILIKE $1 OR u.last_name ILIKE $1
			OR u.customer_id ILIKE $1 OR sm.meter_serial_number ILIKE $1)
		  AND ($2::bigint IS NULL OR b.user_id = $2)`,
		containsPattern(strings.TrimSpace(term)), nullInt64(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to search bills: %w", err)
	}
	return out, nil
}
