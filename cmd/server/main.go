package main

import (
	"cycle-discounts/internal/app/server"
	"cycle-discounts/internal/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel)
	server.Run(cfg)
}
