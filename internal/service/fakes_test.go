package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/analytics"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/cloud"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/domain"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/repository"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/search"
)

// memBills is an in-memory BillStore. The mutex stands in for the row lock.
type memBills struct {
	mu      sync.Mutex
	nextID  int64
	bills   map[int64]domain.Bill
	now     time.Time
	lists   int
	records []search.Record
}

func newMemBills(now time.Time, seed ...domain.Bill) *memBills {
	m := &memBills{bills: map[int64]domain.Bill{}, now: now}
	for _, b := range seed {
		m.bills[b.ID] = b
		if b.ID > m.nextID {
			m.nextID = b.ID
		}
	}
	return m
}

func (m *memBills) CreateBill(_ context.Context, b *domain.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.bills {
		if existing.BillNumber == b.BillNumber {
			return domain.ErrDuplicateBillNumber
		}
	}
	m.nextID++
	b.ID = m.nextID
	b.CreatedAt, b.UpdatedAt = m.now, m.now
	m.bills[b.ID] = *b
	return nil
}

func (m *memBills) GetBill(_ context.Context, id int64) (domain.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bills[id]
	if !ok {
		return b, fmt.Errorf("bill %d: %w", id, domain.ErrNotFound)
	}
	return b, nil
}

func (m *memBills) GetBillByNumber(_ context.Context, number string) (domain.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bills {
		if b.BillNumber == number {
			return b, nil
		}
	}
	return domain.Bill{}, domain.ErrNotFound
}

func (m *memBills) ListBills(_ context.Context, f repository.BillFilter) ([]domain.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	out := make([]domain.Bill, 0)
	for _, b := range m.bills {
		switch {
		case f.UserID != nil && b.UserID != *f.UserID,
			f.UtilityID != nil && b.UtilityID != *f.UtilityID,
			f.Status != nil && b.Status != *f.Status,
			f.Year > 0 && b.CreatedAt.UTC().Year() != f.Year,
			f.DueBefore != nil && !b.DueDate.Before(*f.DueBefore):
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memBills) UpdateBillLocked(_ context.Context, id int64, fn func(domain.Bill) (domain.Bill, error)) (domain.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.bills[id]
	if !ok {
		return cur, domain.ErrNotFound
	}
	next, err := fn(cur)
	if err != nil {
		return cur, err
	}
	m.bills[id] = next
	return next, nil
}

func (m *memBills) DeleteBill(_ context.Context, id int64, guard func(domain.Bill) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.bills[id]
	if !ok {
		return domain.ErrNotFound
	}
	if err := guard(cur); err != nil {
		return err
	}
	delete(m.bills, id)
	return nil
}

func (m *memBills) ListSearchRecords(_ context.Context, _ string, _ *int64) ([]search.Record, error) {
	return m.records, nil
}

type mockCustomers struct{ mock.Mock }

func (m *mockCustomers) GetUser(ctx context.Context, id int64) (domain.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *mockCustomers) GetMeter(ctx context.Context, id int64) (domain.SmartMeter, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.SmartMeter), args.Error(1)
}

func (m *mockCustomers) GetMeterBySerial(ctx context.Context, serial string) (domain.SmartMeter, error) {
	args := m.Called(ctx, serial)
	return args.Get(0).(domain.SmartMeter), args.Error(1)
}

type mockReadings struct{ mock.Mock }

func (m *mockReadings) InsertReading(ctx context.Context, rd *domain.MeterReading) error {
	return m.Called(ctx, rd).Error(0)
}

func (m *mockReadings) GetReadings(ctx context.Context, meterID int64, from, to time.Time) ([]domain.MeterReading, error) {
	args := m.Called(ctx, meterID, from, to)
	out, _ := args.Get(0).([]domain.MeterReading)
	return out, args.Error(1)
}

func (m *mockReadings) LatestReading(ctx context.Context, meterID int64) (domain.MeterReading, error) {
	args := m.Called(ctx, meterID)
	return args.Get(0).(domain.MeterReading), args.Error(1)
}

type mockEvents struct{ mock.Mock }

func (m *mockEvents) Publish(ctx context.Context, e cloud.BillEvent) (string, error) {
	args := m.Called(ctx, e)
	return args.String(0), args.Error(1)
}

type mockArchive struct{ mock.Mock }

func (m *mockArchive) PutMonthlyReport(ctx context.Context, r cloud.MonthlyReport) (string, error) {
	args := m.Called(ctx, r)
	return args.String(0), args.Error(1)
}

func (m *mockArchive) ReportURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *mockArchive) GetMonthlyReport(ctx context.Context, utilityID int64, year int) (*cloud.MonthlyReport, error) {
	args := m.Called(ctx, utilityID, year)
	out, _ := args.Get(0).(*cloud.MonthlyReport)
	return out, args.Error(1)
}

type mockCache struct{ mock.Mock }

func (m *mockCache) PutUserYear(ctx context.Context, s analytics.UserYearSummary, now time.Time) error {
	return m.Called(ctx, s, now).Error(0)
}

func (m *mockCache) GetUserYear(ctx context.Context, userID int64, year int, now time.Time) (analytics.UserYearSummary, bool, error) {
	args := m.Called(ctx, userID, year, now)
	return args.Get(0).(analytics.UserYearSummary), args.Bool(1), args.Error(2)
}

func (m *mockCache) PutUtilityMonths(ctx context.Context, utilityID int64, year int, rows []analytics.MonthSummary, now time.Time) error {
	return m.Called(ctx, utilityID, year, rows, now).Error(0)
}

func (m *mockCache) GetUtilityMonths(ctx context.Context, utilityID int64, year int, now time.Time) ([]analytics.MonthSummary, bool, error) {
	args := m.Called(ctx, utilityID, year, now)
	rows, _ := args.Get(0).([]analytics.MonthSummary)
	return rows, args.Bool(1), args.Error(2)
}

func (m *mockCache) Invalidate(ctx context.Context, userID, utilityID int64, year int) error {
	return m.Called(ctx, userID, utilityID, year).Error(0)
}
