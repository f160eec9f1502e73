package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/domain"
)

var readingRowColumns = []string{
	"reading_id", "meter_id", "timestamp", "energy_consumed", "power_factor", "voltage",
	"current", "frequency", "reactive_power", "apparent_power", "quarter", "season", "tod_slot", "created_at",
}

func TestRepos_InsertReading(t *testing.T) {
	repo, mock := newMockRepos(t)
	ts := time.Date(2024, 7, 1, 19, 0, 0, 0, time.UTC)
	slot := domain.TodPeak
	q, s := int16(3), domain.SeasonMonsoon

	rd := &domain.MeterReading{
		MeterID:        20,
		Timestamp:      ts,
		EnergyConsumed: decimal.RequireFromString("1.25"),
		Quarter:        &q,
		Season:         &s,
		TodSlot:        &slot,
	}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO meter_readings`)).
		WithArgs(int64(20), ts, "1.25", nil, nil, nil, nil, nil, nil, int64(3), int64(3), "peak").
		WillReturnRows(sqlmock.NewRows([]string{"reading_id", "created_at"}).AddRow(int64(7), ts))

	err := repo.InsertReading(context.Background(), rd)

	require.NoError(t, err)
	assert.Equal(t, int64(7), rd.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepos_GetReadings(t *testing.T) {
	repo, mock := newMockRepos(t)
	from := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY timestamp ASC`)).
		WithArgs(int64(20), from, to).
		WillReturnRows(sqlmock.NewRows(readingRowColumns).
			AddRow(int64(1), int64(20), from.Add(time.Hour), "0.5000", nil, "230.10", nil, nil, nil, nil, int64(3), int64(3), "off_peak", from).
			AddRow(int64(2), int64(20), from.Add(19*time.Hour), "1.2500", "0.95", nil, nil, nil, nil, nil, nil, nil, nil, from))

	out, err := repo.GetReadings(context.Background(), 20, from, to)

	require.NoError(t, err)
	require.Len(t, out, 2)
	require.NotNil(t, out[0].TodSlot)
	assert.Equal(t, domain.TodOffPeak, *out[0].TodSlot)
	assert.True(t, out[0].Voltage.Valid)
	assert.Nil(t, out[1].TodSlot)
	assert.True(t, decimal.RequireFromString("1.25").Equal(out[1].EnergyConsumed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepos_LatestReading_None(t *testing.T) {
	repo, mock := newMockRepos(t)

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY timestamp DESC`)).
		WithArgs(int64(20)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.LatestReading(context.Background(), 20)

	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
