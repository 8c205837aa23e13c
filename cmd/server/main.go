package main

import (
	"github.com/joho/godotenv"

	"household-ledger/internal/config"
	"household-ledger/internal/database"
	httpserver "household-ledger/internal/http"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.Load()
	logg := config.NewLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logg.WithError(err).Fatal("config")
	}

	db, err := database.Open(cfg.DB, logg)
	if err != nil {
		logg.WithError(err).Fatal("database")
	}
	if err := database.Migrate(db); err != nil {
		logg.WithError(err).Fatal("migrate")
	}

	r := httpserver.NewServer(cfg, db, logg)
	logg.Infof("listening on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		logg.Fatal(err)
	}
}
