//go:build tinygo

package main

import (
	"tick/app"
	"tick/hal"
	"tick/internal/config"
)

func main() {
	cfg, err := config.Default()
	if err != nil {
		panic(err)
	}
	app.Run(hal.New(hal.Options{TickRate: cfg.TickRate, BytesPerTick: cfg.Serial.BytesPerTick}), cfg)
}
