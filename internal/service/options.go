package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/cloud"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/config"
)

// OptionsFromConfig builds Options from the loaded configuration. Cloud
// clients are attached only when USE_CLOUD_SERVICES is set.
func OptionsFromConfig(ctx context.Context, logger zerolog.Logger) (Options, error) {
	schedule, err := config.TariffSchedule()
	if err != nil {
		return Options{}, err
	}
	rates, err := config.TariffRates()
	if err != nil {
		return Options{}, err
	}
	thresholds, err := config.AnalyticsThresholds()
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		Schedule:           schedule,
		Rates:              rates,
		Thresholds:         thresholds,
		DueDays:            config.BillingDueDays(),
		AllowInactiveUsers: config.AllowInactiveUsers(),
		Logger:             logger,
	}
	if !config.UseCloudServices() {
		logger.Info().Msg("cloud services disabled")
		return opts, nil
	}

	awsCfg, err := cloud.LoadConfig(ctx, config.AWSRegion())
	if err != nil {
		return Options{}, err
	}
	if arn := config.SNSTopicArn(); arn != "" {
		opts.Events = cloud.NewEventPublisher(awsCfg, arn)
	}
	if bucket := config.S3Bucket(); bucket != "" {
		opts.Archive = cloud.NewReportArchive(awsCfg, bucket)
	}
	if table := config.SummaryTable(); table != "" {
		opts.Cache = cloud.NewSummaryCache(awsCfg, table, config.SummaryTTL())
	}
	logger.Info().
		Str("region", config.AWSRegion()).
		Bool("events", opts.Events != nil).
		Bool("archive", opts.Archive != nil).
		Bool("cache", opts.Cache != nil).
		Msg("cloud services enabled")
	return opts, nil
}
