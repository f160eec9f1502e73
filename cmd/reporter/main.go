// Command reporter runs the periodic billing jobs: the overdue sweep and,
// optionally, archiving a utility's monthly report.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/config"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/database"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/service"
)

func main() {
	utilityID := flag.Int64("utility", 0, "utility to archive a monthly report for (0 skips)")
	year := flag.Int("year", time.Now().UTC().Year(), "report year")
	sweep := flag.Bool("sweep", true, "mark overdue bills")
	flag.Parse()

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	db, err := database.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	opts, err := service.OptionsFromConfig(ctx, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("service options")
	}
	svcs := service.New(db, opts)

	if *sweep {
		moved, err := svcs.Bills.SweepOverdue(ctx)
		if err != nil {
			log.Fatal().Err(err).Int("moved", moved).Msg("overdue sweep failed")
		}
		log.Info().Int("moved", moved).Msg("overdue sweep done")
	}

	if *utilityID > 0 {
		rep, err := svcs.Bills.ArchiveMonthlyReport(ctx, *utilityID, *year)
		if err != nil {
			log.Fatal().Err(err).Int64("utility_id", *utilityID).Msg("archive failed")
		}
		log.Info().Str("key", rep.Key).Str("url", rep.URL).Int("months", rep.Months).Msg("report archived")
	}
}
