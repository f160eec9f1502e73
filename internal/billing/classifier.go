package billing

import (
	"fmt"
	"time"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/domain"
)

// TariffSchedule describes time-of-day tariff windows as minutes after midnight.
// A window whose end is before its start wraps past midnight.
type TariffSchedule struct {
	PeakStart    int
	PeakEnd      int
	OffPeakStart int
	OffPeakEnd   int
	Location     *time.Location
}

// DefaultSchedule is peak 18:00-22:00 and off-peak 22:00-06:00.
func DefaultSchedule() TariffSchedule {
	return TariffSchedule{
		PeakStart:    18 * 60,
		PeakEnd:      22 * 60,
		OffPeakStart: 22 * 60,
		OffPeakEnd:   6 * 60,
		Location:     time.UTC,
	}
}

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

type Classification struct {
	Quarter *int16
	Season  *int16
	TodSlot *domain.TodSlot
}

// Classify maps a timestamp onto its quarter, season and tariff slot.
// A nil or zero timestamp yields an empty classification.
func Classify(ts *time.Time, schedule TariffSchedule) Classification {
	if ts == nil || ts.IsZero() {
		return Classification{}
	}
	loc := schedule.Location
	if loc == nil {
		loc = time.UTC
	}
	local := ts.In(loc)

	quarter := int16((int(local.Month())-1)/3 + 1)
	season := seasonOf(local.Month())
	slot := schedule.slotAt(local.Hour()*60 + local.Minute())

	return Classification{Quarter: &quarter, Season: &season, TodSlot: &slot}
}

// ClassifyReading fills unset classification fields of r.
func ClassifyReading(r *domain.MeterReading, schedule TariffSchedule) {
	c := Classify(&r.Timestamp, schedule)
	if r.Quarter == nil {
		r.Quarter = c.Quarter
	}
	if r.Season == nil {
		r.Season = c.Season
	}
	if r.TodSlot == nil {
		r.TodSlot = c.TodSlot
	}
}

func (s TariffSchedule) slotAt(minute int) domain.TodSlot {
	if inWindow(minute, s.PeakStart, s.PeakEnd) {
		return domain.TodPeak
	}
	if inWindow(minute, s.OffPeakStart, s.OffPeakEnd) {
		return domain.TodOffPeak
	}
	return domain.TodNormal
}

func inWindow(minute, start, end int) bool {
	switch {
	case start == end:
		return false
	case start < end:
		return minute >= start && minute < end
	default:
		return minute >= start || minute < end
	}
}

func seasonOf(m time.Month) int16 {
	switch m {
	case time.December, time.January, time.February:
		return domain.SeasonWinter
	case time.March, time.April, time.May:
		return domain.SeasonSummer
	case time.June, time.July, time.August, time.September:
		return domain.SeasonMonsoon
	default:
		return domain.SeasonPostMonsoon
	}
}
