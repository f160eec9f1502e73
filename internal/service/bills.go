package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/analytics"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/billing"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/cloud"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/domain"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/repository"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/search"
)

var errNoLongerOverdue = errors.New("bill no longer overdue")

// BillRequest is the input of ComputeBill and CreateBill.
type BillRequest struct {
	UserID      int64             `json:"user_id" validate:"required,gt=0"`
	MeterID     int64             `json:"meter_id" validate:"required,gt=0"`
	BillNumber  string            `json:"bill_number" validate:"omitempty,max=50"`
	PeriodStart time.Time         `json:"billing_period_start" validate:"required"`
	PeriodEnd   time.Time         `json:"billing_period_end" validate:"required"`
	DueDate     *time.Time        `json:"due_date"`
	Status      domain.BillStatus `json:"bill_status" validate:"omitempty,oneof=generated sent"`

	PreviousReading decimal.NullDecimal `json:"previous_reading"`
	CurrentReading  decimal.NullDecimal `json:"current_reading"`
	UnitsConsumed   decimal.NullDecimal `json:"units_consumed"`
	EnergyCharges   decimal.NullDecimal `json:"energy_charges"`
	FixedCharges    decimal.NullDecimal `json:"fixed_charges"`
	PeakCharges     decimal.NullDecimal `json:"peak_charges"`
	OffPeakCharges  decimal.NullDecimal `json:"off_peak_charges"`
	TaxAmount       decimal.NullDecimal `json:"tax_amount"`
	SubsidyAmount   decimal.NullDecimal `json:"subsidy_amount"`
	TotalAmount     decimal.NullDecimal `json:"total_amount"`

	// PriceFromReadings prices missing charge components from the meter's
	// interval readings in the billing period at the configured tariff.
	PriceFromReadings bool `json:"price_from_readings"`
}

type BillingService struct {
	bills     BillStore
	readings  ReadingStore
	customers CustomerStore

	calc          *billing.Calculator
	lifecycle     billing.Lifecycle
	rates         billing.TariffRates
	thresholds    analytics.Thresholds
	dueDays       int
	allowInactive bool

	events  EventPublisher
	archive ReportArchive
	cache   SummaryCache

	now func() time.Time
	log zerolog.Logger
}

func NewBillingService(bills BillStore, readings ReadingStore, customers CustomerStore, opts Options) *BillingService {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &BillingService{
		bills:         bills,
		readings:      readings,
		customers:     customers,
		calc:          billing.NewCalculator(opts.Schedule),
		rates:         opts.Rates,
		thresholds:    opts.Thresholds,
		dueDays:       opts.DueDays,
		allowInactive: opts.AllowInactiveUsers,
		events:        opts.Events,
		archive:       opts.Archive,
		cache:         opts.Cache,
		now:           now,
		log:           opts.Logger.With().Str("component", "billing").Logger(),
	}
}

// ComputeBill builds an unsaved bill for req. Nothing is persisted.
func (s *BillingService) ComputeBill(ctx context.Context, req BillRequest) (*billing.Computation, error) {
	if req.PeriodEnd.Before(req.PeriodStart) {
		return nil, fmt.Errorf("billing period ends before it starts: %w", domain.ErrInvalidInput)
	}

	user, err := s.customers.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !user.Billable() && !s.allowInactive {
		return nil, fmt.Errorf("user %d is %s: %w", user.ID, user.Status, domain.ErrUserNotBillable)
	}
	meter, err := s.customers.GetMeter(ctx, req.MeterID)
	if err != nil {
		return nil, err
	}
	if meter.UserID != user.ID {
		return nil, fmt.Errorf("meter %d does not belong to user %d: %w", meter.ID, user.ID, domain.ErrInvalidInput)
	}

	in := billing.BillInput{
		UserID:          user.ID,
		MeterID:         meter.ID,
		UtilityID:       user.UtilityID,
		BillNumber:      strings.TrimSpace(req.BillNumber),
		PeriodStart:     req.PeriodStart,
		PeriodEnd:       req.PeriodEnd,
		Status:          req.Status,
		PreviousReading: req.PreviousReading,
		CurrentReading:  req.CurrentReading,
		UnitsConsumed:   req.UnitsConsumed,
		Charges: billing.Charges{
			Energy:  req.EnergyCharges,
			Fixed:   req.FixedCharges,
			Peak:    req.PeakCharges,
			OffPeak: req.OffPeakCharges,
			Tax:     req.TaxAmount,
			Subsidy: req.SubsidyAmount,
		},
		TotalAmount: req.TotalAmount,
	}
	if in.BillNumber == "" {
		in.BillNumber = newBillNumber(user.UtilityID, req.PeriodEnd)
	}
	if req.DueDate != nil {
		in.DueDate = *req.DueDate
	} else {
		in.DueDate = req.PeriodEnd.AddDate(0, 0, s.dueDays)
	}

	if req.PriceFromReadings {
		readings, err := s.readings.GetReadings(ctx, meter.ID, req.PeriodStart, req.PeriodEnd)
		if err != nil {
			return nil, err
		}
		rates := s.rates
		in.Readings = readings
		in.Rates = &rates
	}

	comp, err := s.calc.Compute(in)
	if err != nil {
		return nil, fmt.Errorf("bill for user %d: %w", user.ID, err)
	}
	s.logWarnings(comp.Bill, comp.Warnings)
	return comp, nil
}

// CreateBill computes and persists a bill.
func (s *BillingService) CreateBill(ctx context.Context, req BillRequest) (*billing.Computation, error) {
	comp, err := s.ComputeBill(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.bills.CreateBill(ctx, &comp.Bill); err != nil {
		return nil, err
	}

	b := comp.Bill
	s.log.Info().
		Int64("bill_id", b.ID).
		Str("bill_number", b.BillNumber).
		Str("total_amount", b.TotalAmount.StringFixed(2)).
		Msg("bill created")
	s.invalidate(ctx, b)
	s.publish(ctx, cloud.BillEvent{
		Type:        cloud.EventBillCreated,
		BillID:      b.ID,
		BillNumber:  b.BillNumber,
		UserID:      b.UserID,
		ToStatus:    string(b.Status),
		TotalAmount: b.TotalAmount,
	})
	return comp, nil
}

func (s *BillingService) GetBill(ctx context.Context, id int64) (domain.Bill, error) {
	return s.bills.GetBill(ctx, id)
}

// GetBillByNumber looks a bill up by its number, ignoring case.
func (s *BillingService) GetBillByNumber(ctx context.Context, number string) (domain.Bill, error) {
	if strings.TrimSpace(number) == "" {
		return domain.Bill{}, fmt.Errorf("bill number is required: %w", domain.ErrInvalidInput)
	}
	return s.bills.GetBillByNumber(ctx, number)
}

func (s *BillingService) ListBills(ctx context.Context, f repository.BillFilter) ([]domain.Bill, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, fmt.Errorf("unknown bill status %q: %w", *f.Status, domain.ErrInvalidInput)
	}
	return s.bills.ListBills(ctx, f)
}

// UpdateBill applies patch under the row lock. Returned warnings are non-fatal.
func (s *BillingService) UpdateBill(ctx context.Context, id int64, patch billing.BillPatch) (domain.Bill, []error, error) {
	if patch.Empty() {
		return domain.Bill{}, nil, fmt.Errorf("no fields to update: %w", domain.ErrInvalidInput)
	}

	var warnings []error
	b, err := s.bills.UpdateBillLocked(ctx, id, func(cur domain.Bill) (domain.Bill, error) {
		next, w, err := s.lifecycle.ApplyPatch(cur, patch, s.calc, s.now())
		warnings = w
		return next, err
	})
	if err != nil {
		return domain.Bill{}, nil, err
	}

	s.logWarnings(b, warnings)
	s.log.Info().Int64("bill_id", b.ID).Str("bill_number", b.BillNumber).Msg("bill updated")
	s.invalidate(ctx, b)
	return b, warnings, nil
}

// TransitionBill moves a bill to status to under the row lock.
func (s *BillingService) TransitionBill(ctx context.Context, id int64, to domain.BillStatus) (domain.Bill, error) {
	if !to.Valid() {
		return domain.Bill{}, fmt.Errorf("unknown bill status %q: %w", to, domain.ErrInvalidInput)
	}
	var from domain.BillStatus
	b, err := s.bills.UpdateBillLocked(ctx, id, func(cur domain.Bill) (domain.Bill, error) {
		from = cur.Status
		return s.lifecycle.Transition(cur, to, s.now())
	})
	if err != nil {
		return domain.Bill{}, err
	}
	s.statusChanged(ctx, b, from)
	return b, nil
}

// MarkPaid settles a bill. Only one of several concurrent calls succeeds;
// the others see ErrAlreadyPaid.
func (s *BillingService) MarkPaid(ctx context.Context, id int64) (domain.Bill, error) {
	var from domain.BillStatus
	b, err := s.bills.UpdateBillLocked(ctx, id, func(cur domain.Bill) (domain.Bill, error) {
		from = cur.Status
		return s.lifecycle.MarkPaid(cur, s.now())
	})
	if err != nil {
		return domain.Bill{}, err
	}
	s.statusChanged(ctx, b, from)
	return b, nil
}

// DeleteBill removes an unpaid bill.
func (s *BillingService) DeleteBill(ctx context.Context, id int64) error {
	var deleted domain.Bill
	err := s.bills.DeleteBill(ctx, id, func(cur domain.Bill) error {
		if !s.lifecycle.CanDelete(cur) {
			return fmt.Errorf("bill %d: %w", cur.ID, domain.ErrNotDeletable)
		}
		deleted = cur
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().Int64("bill_id", id).Str("bill_number", deleted.BillNumber).Msg("bill deleted")
	s.invalidate(ctx, deleted)
	s.publish(ctx, cloud.BillEvent{
		Type:        cloud.EventBillDeleted,
		BillID:      deleted.ID,
		BillNumber:  deleted.BillNumber,
		UserID:      deleted.UserID,
		FromStatus:  string(deleted.Status),
		TotalAmount: deleted.TotalAmount,
	})
	return nil
}

func (s *BillingService) IsOverdue(ctx context.Context, id int64, asOf time.Time) (bool, error) {
	b, err := s.bills.GetBill(ctx, id)
	if err != nil {
		return false, err
	}
	return billing.IsOverdue(b, asOf), nil
}

// ListOverdue returns the overdue bills at asOf, optionally for one utility.
func (s *BillingService) ListOverdue(ctx context.Context, asOf time.Time, utilityID *int64) ([]billing.OverdueBill, error) {
	sent := domain.BillSent
	bills, err := s.bills.ListBills(ctx, repository.BillFilter{
		UtilityID: utilityID,
		Status:    &sent,
		DueBefore: &asOf,
	})
	if err != nil {
		return nil, err
	}
	return billing.ListOverdue(bills, asOf), nil
}

// SweepOverdue moves every overdue bill to OVERDUE and returns how many moved.
func (s *BillingService) SweepOverdue(ctx context.Context) (int, error) {
	asOf := s.now()
	candidates, err := s.ListOverdue(ctx, asOf, nil)
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, c := range candidates {
		b, err := s.bills.UpdateBillLocked(ctx, c.ID, func(cur domain.Bill) (domain.Bill, error) {
			if !billing.IsOverdue(cur, asOf) {
				return cur, errNoLongerOverdue
			}
			return s.lifecycle.Transition(cur, domain.BillOverdue, asOf)
		})
		if errors.Is(err, errNoLongerOverdue) {
			continue
		}
		if err != nil {
			return moved, fmt.Errorf("sweep bill %d: %w", c.ID, err)
		}
		moved++
		s.log.Info().
			Int64("bill_id", b.ID).
			Str("bill_number", b.BillNumber).
			Int("days_overdue", c.DaysOverdue).
			Msg("bill marked overdue")
		s.invalidate(ctx, b)
	}

	if moved > 0 {
		s.publish(ctx, cloud.BillEvent{Type: cloud.EventOverdueSweep, Count: moved})
	}
	return moved, nil
}

// SummarizeUserYear reports a user's bills created in year.
func (s *BillingService) SummarizeUserYear(ctx context.Context, userID int64, year int) (analytics.UserYearSummary, error) {
	now := s.now()
	if s.cache != nil {
		cached, ok, err := s.cache.GetUserYear(ctx, userID, year, now)
		if err != nil {
			s.log.Error().Err(err).Int64("user_id", userID).Msg("summary cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	bills, err := s.bills.ListBills(ctx, repository.BillFilter{UserID: &userID, Year: year})
	if err != nil {
		return analytics.UserYearSummary{}, err
	}
	summary := analytics.SummarizeUserYear(bills, userID, year)

	if s.cache != nil {
		if err := s.cache.PutUserYear(ctx, summary, now); err != nil {
			s.log.Error().Err(err).Int64("user_id", userID).Msg("summary cache write failed")
		}
	}
	return summary, nil
}

// SummarizeUtilityMonths reports a utility's bills created in year, by month.
func (s *BillingService) SummarizeUtilityMonths(ctx context.Context, utilityID int64, year int) ([]analytics.MonthSummary, error) {
	now := s.now()
	if s.cache != nil {
		cached, ok, err := s.cache.GetUtilityMonths(ctx, utilityID, year, now)
		if err != nil {
			s.log.Error().Err(err).Int64("utility_id", utilityID).Msg("summary cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	rows, err := s.utilityMonths(ctx, utilityID, year)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.PutUtilityMonths(ctx, utilityID, year, rows, now); err != nil {
			s.log.Error().Err(err).Int64("utility_id", utilityID).Msg("summary cache write failed")
		}
	}
	return rows, nil
}

func (s *BillingService) CategorizeUsers(ctx context.Context, utilityID int64, year int) ([]analytics.CategoryRow, error) {
	bills, err := s.bills.ListBills(ctx, repository.BillFilter{UtilityID: &utilityID, Year: year})
	if err != nil {
		return nil, err
	}
	return analytics.CategorizeUsers(bills, utilityID, year, s.thresholds), nil
}

// Search ranks bills matching term. A non-nil userID restricts the search to
// that user's bills.
func (s *BillingService) Search(ctx context.Context, term string, userID *int64) ([]search.Hit, error) {
	if strings.TrimSpace(term) == "" {
		return []search.Hit{}, nil
	}
	records, err := s.bills.ListSearchRecords(ctx, term, userID)
	if err != nil {
		return nil, err
	}
	return search.Rank(records, term, userID), nil
}

// ArchivedReport locates an uploaded monthly report.
type ArchivedReport struct {
	Key    string `json:"key"`
	URL    string `json:"url,omitempty"`
	Months int    `json:"months"`
}

// ArchiveMonthlyReport recomputes a utility's monthly summary and uploads it.
func (s *BillingService) ArchiveMonthlyReport(ctx context.Context, utilityID int64, year int) (ArchivedReport, error) {
	if s.archive == nil {
		return ArchivedReport{}, errors.New("report archive not configured")
	}
	rows, err := s.utilityMonths(ctx, utilityID, year)
	if err != nil {
		return ArchivedReport{}, err
	}

	key, err := s.archive.PutMonthlyReport(ctx, cloud.MonthlyReport{
		UtilityID:   utilityID,
		Year:        year,
		GeneratedAt: s.now().UTC(),
		Months:      rows,
	})
	if err != nil {
		return ArchivedReport{}, err
	}
	out := ArchivedReport{Key: key, Months: len(rows)}

	url, err := s.archive.ReportURL(ctx, key)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("failed to presign report")
	} else {
		out.URL = url
	}
	s.log.Info().Int64("utility_id", utilityID).Int("year", year).Str("key", key).Msg("monthly report archived")
	return out, nil
}

// GetArchivedReport returns the report last archived for a utility and year.
func (s *BillingService) GetArchivedReport(ctx context.Context, utilityID int64, year int) (*cloud.MonthlyReport, error) {
	if s.archive == nil {
		return nil, errors.New("report archive not configured")
	}
	return s.archive.GetMonthlyReport(ctx, utilityID, year)
}

// Now is the service clock. Request defaults such as the overdue cut-off and
// the analytics year derive from it.
func (s *BillingService) Now() time.Time {
	return s.now()
}

func (s *BillingService) utilityMonths(ctx context.Context, utilityID int64, year int) ([]analytics.MonthSummary, error) {
	bills, err := s.bills.ListBills(ctx, repository.BillFilter{UtilityID: &utilityID, Year: year})
	if err != nil {
		return nil, err
	}
	return analytics.SummarizeUtilityMonths(bills, utilityID, year), nil
}

func (s *BillingService) statusChanged(ctx context.Context, b domain.Bill, from domain.BillStatus) {
	s.log.Info().
		Int64("bill_id", b.ID).
		Str("bill_number", b.BillNumber).
		Str("from", string(from)).
		Str("status", string(b.Status)).
		Msg("bill status changed")
	s.invalidate(ctx, b)

	typ := cloud.EventBillStatusChanged
	if b.Status == domain.BillPaid {
		typ = cloud.EventBillPaid
	}
	s.publish(ctx, cloud.BillEvent{
		Type:        typ,
		BillID:      b.ID,
		BillNumber:  b.BillNumber,
		UserID:      b.UserID,
		FromStatus:  string(from),
		ToStatus:    string(b.Status),
		TotalAmount: b.TotalAmount,
	})
}

func (s *BillingService) logWarnings(b domain.Bill, warnings []error) {
	for _, w := range warnings {
		s.log.Warn().Err(w).Str("bill_number", b.BillNumber).Msg("using computed total")
	}
}

func (s *BillingService) publish(ctx context.Context, e cloud.BillEvent) {
	if s.events == nil {
		return
	}
	e.OccurredAt = s.now().UTC()
	if _, err := s.events.Publish(ctx, e); err != nil {
		s.log.Error().Err(err).Str("event", string(e.Type)).Int64("bill_id", e.BillID).Msg("failed to publish bill event")
	}
}

func (s *BillingService) invalidate(ctx context.Context, b domain.Bill) {
	if s.cache == nil || b.CreatedAt.IsZero() {
		return
	}
	if err := s.cache.Invalidate(ctx, b.UserID, b.UtilityID, b.CreatedAt.UTC().Year()); err != nil {
		s.log.Error().Err(err).Int64("bill_id", b.ID).Msg("failed to invalidate summary cache")
	}
}

// newBillNumber generates a bill number of the form U<utility>-<yyyymm>-<8 hex>.
func newBillNumber(utilityID int64, periodEnd time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("U%d-%s-%s", utilityID, periodEnd.Format("200601"), id)
}
