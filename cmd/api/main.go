package main

import (
	"context"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/config"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/database"
	httpHandlers "github.com/ANIKETSHETTY47/smart-utility-billing/internal/http"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	db, err := database.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	defer db.Close()

	if config.DBAutoMigrate() {
		if err := database.Migrate(db); err != nil {
			log.Fatal().Err(err).Msg("migrations failed")
		}
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	opts, err := service.OptionsFromConfig(context.Background(), logger)
	if err != nil {
		log.Fatal().Err(err).Msg("service options")
	}

	svcs := service.New(db, opts)
	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })

	httpHandlers.Register(app, svcs)

	addr := config.APIAddr()
	log.Info().Str("addr", addr).Msg("api listening")
	log.Fatal().Err(app.Listen(addr)).Msg("server exit")
}
