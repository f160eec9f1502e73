package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/analytics"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/billing"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/domain"
)

type ReadingService struct {
	readings  ReadingStore
	customers CustomerStore
	schedule  billing.TariffSchedule
	log       zerolog.Logger
}

func NewReadingService(readings ReadingStore, customers CustomerStore, opts Options) *ReadingService {
	return &ReadingService{
		readings:  readings,
		customers: customers,
		schedule:  opts.Schedule,
		log:       opts.Logger.With().Str("component", "readings").Logger(),
	}
}

// Ingest classifies and stores one interval reading.
func (s *ReadingService) Ingest(ctx context.Context, rd *domain.MeterReading) error {
	if rd.Timestamp.IsZero() {
		return fmt.Errorf("reading timestamp is required: %w", domain.ErrInvalidInput)
	}
	if rd.EnergyConsumed.IsNegative() {
		return fmt.Errorf("energy consumed %s: %w", rd.EnergyConsumed, domain.ErrInvalidConsumption)
	}
	if _, err := s.customers.GetMeter(ctx, rd.MeterID); err != nil {
		return err
	}

	billing.ClassifyReading(rd, s.schedule)
	if err := s.readings.InsertReading(ctx, rd); err != nil {
		return err
	}
	s.log.Debug().Int64("meter_id", rd.MeterID).Int64("reading_id", rd.ID).Msg("reading stored")
	return nil
}

type mqttReading struct {
	MeterSerial    string              `json:"meter_serial"`
	Timestamp      time.Time           `json:"timestamp"`
	EnergyConsumed decimal.Decimal     `json:"energy_consumed"`
	PowerFactor    decimal.NullDecimal `json:"power_factor"`
	Voltage        decimal.NullDecimal `json:"voltage"`
	Current        decimal.NullDecimal `json:"current"`
	Frequency      decimal.NullDecimal `json:"frequency"`
	ReactivePower  decimal.NullDecimal `json:"reactive_power"`
	ApparentPower  decimal.NullDecimal `json:"apparent_power"`
}

// FromMQTT decodes a device message and ingests it. Devices identify their
// meter by serial number.
func (s *ReadingService) FromMQTT(ctx context.Context, topic string, payload []byte) error {
	var m mqttReading
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("topic %s: %v: %w", topic, err, domain.ErrInvalidInput)
	}
	serial := strings.TrimSpace(m.MeterSerial)
	if serial == "" {
		return fmt.Errorf("topic %s: meter_serial is required: %w", topic, domain.ErrInvalidInput)
	}

	meter, err := s.customers.GetMeterBySerial(ctx, serial)
	if err != nil {
		return err
	}
	return s.Ingest(ctx, &domain.MeterReading{
		MeterID:        meter.ID,
		Timestamp:      m.Timestamp,
		EnergyConsumed: m.EnergyConsumed,
		PowerFactor:    m.PowerFactor,
		Voltage:        m.Voltage,
		Current:        m.Current,
		Frequency:      m.Frequency,
		ReactivePower:  m.ReactivePower,
		ApparentPower:  m.ApparentPower,
	})
}

func (s *ReadingService) GetReadings(ctx context.Context, meterID int64, from, to time.Time) ([]domain.MeterReading, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("range ends before it starts: %w", domain.ErrInvalidInput)
	}
	return s.readings.GetReadings(ctx, meterID, from, to)
}

func (s *ReadingService) Latest(ctx context.Context, meterID int64) (domain.MeterReading, error) {
	return s.readings.LatestReading(ctx, meterID)
}

// ConsumptionStats summarizes a meter's readings between from and to.
func (s *ReadingService) ConsumptionStats(ctx context.Context, meterID int64, from, to time.Time) (analytics.ConsumptionStats, error) {
	readings, err := s.GetReadings(ctx, meterID, from, to)
	if err != nil {
		return analytics.ConsumptionStats{}, err
	}
	return analytics.SummarizeReadings(readings), nil
}
