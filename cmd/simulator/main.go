package main

import (
	"encoding/json"
	"flag"
	"math/rand"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/config"
)

type Reading struct {
	MeterSerial    string          `json:"meter_serial"`
	Timestamp      time.Time       `json:"timestamp"`
	EnergyConsumed decimal.Decimal `json:"energy_consumed"`
	Voltage        decimal.Decimal `json:"voltage"`
	Current        decimal.Decimal `json:"current"`
	PowerFactor    decimal.Decimal `json:"power_factor"`
}

func main() {
	serial := flag.String("meter", "SM-0001", "meter serial number")
	count := flag.Int("count", 96, "readings to publish")
	interval := flag.Duration("interval", 15*time.Minute, "simulated time between readings")
	flag.Parse()

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	opts := mqtt.NewClientOptions().AddBroker(config.MQTTBroker())
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	ts := time.Now().Add(-time.Duration(*count) * *interval).Truncate(*interval)
	for i := 0; i < *count; i++ {
		ts = ts.Add(*interval)
		r := Reading{
			MeterSerial:    *serial,
			Timestamp:      ts,
			EnergyConsumed: decimal.NewFromFloat(0.1 + rand.Float64()*0.4).Round(4),
			Voltage:        decimal.NewFromFloat(220 + rand.Float64()*10).Round(2),
			Current:        decimal.NewFromFloat(5 + rand.Float64()*2).Round(2),
			PowerFactor:    decimal.NewFromFloat(0.85 + rand.Float64()*0.14).Round(3),
		}
		payload, _ := json.Marshal(r)
		token := client.Publish(config.MQTTTopic(), 1, false, payload)
		token.Wait()
		time.Sleep(100 * time.Millisecond)
	}
	log.Info().Int("count", *count).Str("meter", *serial).Msg("simulation done")
}
