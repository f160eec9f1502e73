package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/domain"
)

const readingColumns = `reading_id, meter_id, timestamp, energy_consumed, power_factor, voltage,
	current, frequency, reactive_power, apparent_power, quarter, season, tod_slot, created_at`

func (r *Repos) InsertReading(ctx context.Context, rd *domain.MeterReading) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO meter_readings (meter_id, timestamp, energy_consumed, power_factor, voltage,
			current, frequency, reactive_power, apparent_power, quarter, season, tod_slot)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING reading_id, created_at`,
		rd.MeterID, rd.Timestamp, rd.EnergyConsumed, rd.PowerFactor, rd.Voltage,
		rd.Current, rd.Frequency, rd.ReactivePower, rd.ApparentPower, rd.Quarter, rd.Season, rd.TodSlot,
	).Scan(&rd.ID, &rd.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// GetReadings returns the meter's readings with from <= timestamp <= to,
// oldest first.
func (r *Repos) GetReadings(ctx context.Context, meterID int64, from, to time.Time) ([]domain.MeterReading, error) {
	out := make([]domain.MeterReading, 0)
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+readingColumns+` FROM meter_readings
		WHERE meter_id = $1 AND timestamp BETWEEN $2 AND $3
		ORDER BY timestamp ASC, reading_id ASC`, meterID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get readings: %w", err)
	}
	return out, nil
}

func (r *Repos) LatestReading(ctx context.Context, meterID int64) (domain.MeterReading, error) {
	var rd domain.MeterReading
	err := r.db.GetContext(ctx, &rd, `
		SELECT `+readingColumns+` FROM meter_readings
		WHERE meter_id = $1 ORDER BY timestamp DESC, reading_id DESC LIMIT 1`, meterID)
	if err != nil {
		return rd, lookupErr(err, "reading for meter", meterID)
	}
	return rd, nil
}
