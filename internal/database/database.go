package database

import (
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/config"
)

func Connect() (*sqlx.DB, error) {
	db, err := sqlx.Connect("pgx", config.DBDSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(config.DBMaxOpenConns())
	db.SetMaxIdleConns(config.DBMaxOpenConns() / 2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}
