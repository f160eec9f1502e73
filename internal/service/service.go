package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/analytics"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/billing"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/cloud"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/domain"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/repository"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/search"
)

type BillStore interface {
	CreateBill(ctx context.Context, b *domain.Bill) error
	GetBill(ctx context.Context, id int64) (domain.Bill, error)
	GetBillByNumber(ctx context.Context, number string) (domain.Bill, error)
	ListBills(ctx context.Context, f repository.BillFilter) ([]domain.Bill, error)
	UpdateBillLocked(ctx context.Context, id int64, fn func(domain.Bill) (domain.Bill, error)) (domain.Bill, error)
	DeleteBill(ctx context.Context, id int64, guard func(domain.Bill) error) error
	ListSearchRecords(ctx context.Context, term string, userID *int64) ([]search.Record, error)
}

type ReadingStore interface {
	InsertReading(ctx context.Context, rd *domain.MeterReading) error
	GetReadings(ctx context.Context, meterID int64, from, to time.Time) ([]domain.MeterReading, error)
	LatestReading(ctx context.Context, meterID int64) (domain.MeterReading, error)
}

type CustomerStore interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetMeter(ctx context.Context, id int64) (domain.SmartMeter, error)
	GetMeterBySerial(ctx context.Context, serial string) (domain.SmartMeter, error)
}

// EventPublisher receives bill lifecycle events. Implemented by cloud.EventPublisher.
type EventPublisher interface {
	Publish(ctx context.Context, e cloud.BillEvent) (string, error)
}

// ReportArchive stores monthly reports. Implemented by cloud.ReportArchive.
type ReportArchive interface {
	PutMonthlyReport(ctx context.Context, r cloud.MonthlyReport) (string, error)
	ReportURL(ctx context.Context, key string) (string, error)
	GetMonthlyReport(ctx context.Context, utilityID int64, year int) (*cloud.MonthlyReport, error)
}

// SummaryCache holds computed analytics. Implemented by cloud.SummaryCache.
type SummaryCache interface {
	PutUserYear(ctx context.Context, s analytics.UserYearSummary, now time.Time) error
	GetUserYear(ctx context.Context, userID int64, year int, now time.Time) (analytics.UserYearSummary, bool, error)
	PutUtilityMonths(ctx context.Context, utilityID int64, year int, rows []analytics.MonthSummary, now time.Time) error
	GetUtilityMonths(ctx context.Context, utilityID int64, year int, now time.Time) ([]analytics.MonthSummary, bool, error)
	Invalidate(ctx context.Context, userID, utilityID int64, year int) error
}

// Options configures the services. Events, Archive and Cache are optional.
type Options struct {
	Schedule           billing.TariffSchedule
	Rates              billing.TariffRates
	Thresholds         analytics.Thresholds
	DueDays            int
	AllowInactiveUsers bool
	Logger             zerolog.Logger

	Events  EventPublisher
	Archive ReportArchive
	Cache   SummaryCache

	// Now defaults to time.Now.
	Now func() time.Time
}

type Services struct {
	Repos    *repository.Repos
	Bills    *BillingService
	Readings *ReadingService
}

func New(db *sqlx.DB, opts Options) *Services {
	repos := repository.New(db)
	return &Services{
		Repos:    repos,
		Bills:    NewBillingService(repos, repos, repos, opts),
		Readings: NewReadingService(repos, repos, opts),
	}
}
