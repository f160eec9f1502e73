package repository

import (
	"context"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/domain"
)

const userColumns = `user_id, customer_id, first_name, last_name, email, phone, address, city,
	state, pincode, utility_id, connection_type, connection_load, tariff_category, status,
	created_at, updated_at`

const meterColumns = `meter_id, meter_serial_number, user_id, utility_id, meter_type, manufacturer,
	model, installation_date, last_calibration_date, next_calibration_date, status,
	latitude, longitude, created_at`

func (r *Repos) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	if err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, id); err != nil {
		return u, lookupErr(err, "user", id)
	}
	return u, nil
}

func (r *Repos) GetMeter(ctx context.Context, id int64) (domain.SmartMeter, error) {
	var m domain.SmartMeter
	if err := r.db.GetContext(ctx, &m, `SELECT `+meterColumns+` FROM smart_meters WHERE meter_id = $1`, id); err != nil {
		return m, lookupErr(err, "meter", id)
	}
	return m, nil
}

func (r *Repos) GetMeterBySerial(ctx context.Context, serial string) (domain.SmartMeter, error) {
	var m domain.SmartMeter
	if err := r.db.GetContext(ctx, &m, `SELECT `+meterColumns+` FROM smart_meters WHERE meter_serial_number = $1`, serial); err != nil {
		return m, lookupErr(err, "meter", serial)
	}
	return m, nil
}
