package main

import (
	"net/http"
	"os"

	"github.com/contacerta/reconciler/internal/api"
	"github.com/contacerta/reconciler/internal/auth"
	"github.com/contacerta/reconciler/internal/config"
	"github.com/contacerta/reconciler/internal/ingestion"
	"github.com/contacerta/reconciler/internal/license"
	"github.com/contacerta/reconciler/internal/logging"
	"github.com/contacerta/reconciler/internal/matching"
	"github.com/contacerta/reconciler/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").Fatalf("configuration: %v", err)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	log.Infof("initializing database at %s", cfg.DBPath)
	db, err := repository.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	defer db.Close()

	runRepo := repository.NewRunRepo(db)
	accountRepo := repository.NewAccountRepo(db)

	engine, err := matching.NewEngine(cfg.Matching, log)
	if err != nil {
		log.Fatalf("matching engine: %v", err)
	}
	ingestionSvc := ingestion.NewService(runRepo, engine, cfg.UploadDir, log)
	authSvc := auth.NewService(accountRepo, []byte(cfg.JWTSecret), cfg.TokenTTL, log)

	// The server runs without an activation; reconciliation endpoints stay
	// gated until a valid license file is in place.
	publicPEM, err := os.ReadFile(cfg.LicensePublicKey)
	if err != nil {
		log.Warnf("vendor public key not readable at %s, license checks will fail", cfg.LicensePublicKey)
		publicPEM = nil
	}
	licenseSvc, err := license.NewService(publicPEM, cfg.LicenseFile, cfg.ClockGuardFile, log)
	if err != nil {
		log.Fatalf("license service: %v", err)
	}

	router := api.NewRouter(runRepo, ingestionSvc, authSvc, licenseSvc)

	log.Info("ContaCerta reconciliation server")
	log.Infof("listening on http://localhost:%s", cfg.Port)
	log.Infof("API base: http://localhost:%s/api/v1", cfg.Port)

	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
