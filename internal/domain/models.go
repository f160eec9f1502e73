package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type UtilityType string

const (
	UtilityDISCOM       UtilityType = "DISCOM"
	UtilitySEB          UtilityType = "SEB"
	UtilityMunicipality UtilityType = "Municipality"
)

type UtilityCompany struct {
	ID             int64       `db:"utility_id" json:"utility_id"`
	Code           string      `db:"company_code" json:"company_code"`
	Name           string      `db:"company_name" json:"company_name"`
	Type           UtilityType `db:"type" json:"type"`
	State          *string     `db:"state" json:"state,omitempty"`
	Region         *string     `db:"region" json:"region,omitempty"`
	ContactEmail   *string     `db:"contact_email" json:"contact_email,omitempty"`
	ContactPhone   *string     `db:"contact_phone" json:"contact_phone,omitempty"`
	RegulatoryBody *string     `db:"regulatory_body" json:"regulatory_body,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

type ConnectionType string

const (
	ConnectionResidential ConnectionType = "residential"
	ConnectionCommercial  ConnectionType = "commercial"
	ConnectionIndustrial  ConnectionType = "industrial"
)

type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserInactive  UserStatus = "inactive"
	UserSuspended UserStatus = "suspended"
)

type User struct {
	ID             int64               `db:"user_id" json:"user_id"`
	CustomerID     string              `db:"customer_id" json:"customer_id"`
	FirstName      string              `db:"first_name" json:"first_name"`
	LastName       string              `db:"last_name" json:"last_name"`
	Email          *string             `db:"email" json:"email,omitempty"`
	Phone          *string             `db:"phone" json:"phone,omitempty"`
	Address        *string             `db:"address" json:"address,omitempty"`
	City           *string             `db:"city" json:"city,omitempty"`
	State          *string             `db:"state" json:"state,omitempty"`
	Pincode        *string             `db:"pincode" json:"pincode,omitempty"`
	UtilityID      int64               `db:"utility_id" json:"utility_id"`
	ConnectionType ConnectionType      `db:"connection_type" json:"connection_type"`
	ConnectionLoad decimal.NullDecimal `db:"connection_load" json:"connection_load"`
	TariffCategory *string             `db:"tariff_category" json:"tariff_category,omitempty"`
	Status         UserStatus          `db:"status" json:"status"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at" json:"updated_at"`
}

// Billable reports whether new bills may be raised for the user.
func (u User) Billable() bool { return u.Status == UserActive }

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type MeterStatus string

const (
	MeterActive      MeterStatus = "active"
	MeterInactive    MeterStatus = "inactive"
	MeterFaulty      MeterStatus = "faulty"
	MeterMaintenance MeterStatus = "maintenance"
)

type SmartMeter struct {
	ID                  int64               `db:"meter_id" json:"meter_id"`
	SerialNumber        string              `db:"meter_serial_number" json:"meter_serial_number"`
	UserID              int64               `db:"user_id" json:"user_id"`
	UtilityID           int64               `db:"utility_id" json:"utility_id"`
	MeterType           *string             `db:"meter_type" json:"meter_type,omitempty"`
	Manufacturer        *string             `db:"manufacturer" json:"manufacturer,omitempty"`
	Model               *string             `db:"model" json:"model,omitempty"`
	InstallationDate    *time.Time          `db:"installation_date" json:"installation_date,omitempty"`
	LastCalibrationDate *time.Time          `db:"last_calibration_date" json:"last_calibration_date,omitempty"`
	NextCalibrationDate *time.Time          `db:"next_calibration_date" json:"next_calibration_date,omitempty"`
	Status              MeterStatus         `db:"status" json:"status"`
	Latitude            decimal.NullDecimal `db:"latitude" json:"latitude"`
	Longitude           decimal.NullDecimal `db:"longitude" json:"longitude"`
	CreatedAt           time.Time           `db:"created_at" json:"created_at"`
}

type TodSlot string

const (
	TodPeak    TodSlot = "peak"
	TodNormal  TodSlot = "normal"
	TodOffPeak TodSlot = "off_peak"
)

// Season codes stored on meter readings.
const (
	SeasonWinter      int16 = 1
	SeasonSummer      int16 = 2
	SeasonMonsoon     int16 = 3
	SeasonPostMonsoon int16 = 4
)

// MeterReading is an interval sample. EnergyConsumed is the kWh delta for the
// interval ending at Timestamp, not the register value.
type MeterReading struct {
	ID             int64               `db:"reading_id" json:"reading_id"`
	MeterID        int64               `db:"meter_id" json:"meter_id"`
	Timestamp      time.Time           `db:"timestamp" json:"timestamp"`
	EnergyConsumed decimal.Decimal     `db:"energy_consumed" json:"energy_consumed"`
	PowerFactor    decimal.NullDecimal `db:"power_factor" json:"power_factor"`
	Voltage        decimal.NullDecimal `db:"voltage" json:"voltage"`
	Current        decimal.NullDecimal `db:"current" json:"current"`
	Frequency      decimal.NullDecimal `db:"frequency" json:"frequency"`
	ReactivePower  decimal.NullDecimal `db:"reactive_power" json:"reactive_power"`
	ApparentPower  decimal.NullDecimal `db:"apparent_power" json:"apparent_power"`
	Quarter        *int16              `db:"quarter" json:"quarter,omitempty"`
	Season         *int16              `db:"season" json:"season,omitempty"`
	TodSlot        *TodSlot            `db:"tod_slot" json:"tod_slot,omitempty"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
}

type BillStatus string

const (
	BillGenerated BillStatus = "generated"
	BillSent      BillStatus = "sent"
	BillPaid      BillStatus = "paid"
	BillOverdue   BillStatus = "overdue"
	BillDisputed  BillStatus = "disputed"
)

func (s BillStatus) Valid() bool {
	switch s {
	case BillGenerated, BillSent, BillPaid, BillOverdue, BillDisputed:
		return true
	}
	return false
}

type Bill struct {
	ID                 int64               `db:"bill_id" json:"bill_id"`
	UserID             int64               `db:"user_id" json:"user_id"`
	MeterID            int64               `db:"meter_id" json:"meter_id"`
	UtilityID          int64               `db:"utility_id" json:"utility_id"`
	BillNumber         string              `db:"bill_number" json:"bill_number"`
	BillingPeriodStart time.Time           `db:"billing_period_start" json:"billing_period_start"`
	BillingPeriodEnd   time.Time           `db:"billing_period_end" json:"billing_period_end"`
	PreviousReading    decimal.NullDecimal `db:"previous_reading" json:"previous_reading"`
	CurrentReading     decimal.NullDecimal `db:"current_reading" json:"current_reading"`
	UnitsConsumed      decimal.Decimal     `db:"units_consumed" json:"units_consumed"`
	EnergyCharges      decimal.Decimal     `db:"energy_charges" json:"energy_charges"`
	FixedCharges       decimal.Decimal     `db:"fixed_charges" json:"fixed_charges"`
	PeakCharges        decimal.Decimal     `db:"peak_charges" json:"peak_charges"`
	OffPeakCharges     decimal.Decimal     `db:"off_peak_charges" json:"off_peak_charges"`
	TaxAmount          decimal.Decimal     `db:"tax_amount" json:"tax_amount"`
	SubsidyAmount      decimal.Decimal     `db:"subsidy_amount" json:"subsidy_amount"`
	TotalAmount        decimal.Decimal     `db:"total_amount" json:"total_amount"`
	DueDate            time.Time           `db:"due_date" json:"due_date"`
	Status             BillStatus          `db:"bill_status" json:"bill_status"`
	PaymentDate        *time.Time          `db:"payment_date" json:"payment_date,omitempty"`
	CreatedAt          time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at" json:"updated_at"`
}

// ComputedTotal applies the bill total formula to the stored components.
func (b Bill) ComputedTotal() decimal.Decimal {
	return b.EnergyCharges.
		Add(b.FixedCharges).
		Add(b.PeakCharges).
		Add(b.OffPeakCharges).
		Add(b.TaxAmount).
		Sub(b.SubsidyAmount)
}

// BaseCharges is energy plus fixed charges.
func (b Bill) BaseCharges() decimal.Decimal { return b.EnergyCharges.Add(b.FixedCharges) }

// TimeBasedCharges is peak plus off-peak charges.
func (b Bill) TimeBasedCharges() decimal.Decimal { return b.PeakCharges.Add(b.OffPeakCharges) }
