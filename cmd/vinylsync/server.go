package main

import (
	"net/http"

	"github.com/rs/zerolog"

	"vinylsync/internal/app/collections"
	"vinylsync/internal/app/releases"
	"vinylsync/internal/app/remote"
	"vinylsync/internal/app/suggestions"
	"vinylsync/internal/config"
	"vinylsync/internal/discogs"
	"vinylsync/internal/httpapi"
	"vinylsync/internal/logging"
	"vinylsync/internal/scheduler"
	"vinylsync/internal/store"
	"vinylsync/internal/syncer"
)

type application struct {
	handler   http.Handler
	scheduler *scheduler.Scheduler
}

func newApplication(cfg *config.Config, dataStore *store.Store, logger zerolog.Logger) (*application, error) {
	client := discogs.NewClient(discogs.Config{
		BaseURL:             cfg.Discogs.BaseURL,
		Username:            cfg.Discogs.Username,
		Token:               cfg.Discogs.Token,
		CollectionFolderID:  cfg.Discogs.CollectionFolderID,
		SuggestionsFolderID: cfg.Discogs.SuggestionsFolderID,
		RequestsPerMinute:   cfg.Discogs.RequestsPerMinute,
	}, logger)
	if cfg.Discogs.Token == "" {
		logger.Warn().Msg("DISCOGS_API_TOKEN not set, remote calls will fail until it is configured")
	}

	// Sync engine
	catalog := syncer.NewCatalog(dataStore, logging.Component(logger, "catalog"))
	reconciler := syncer.NewReconciler(client, catalog, dataStore, logging.Component(logger, "reconciler"))

	sched := scheduler.New(scheduler.Config{
		UserID:        cfg.Discogs.Username,
		SyncOnStartup: cfg.Sync.OnStartup,
		StartupDelay:  cfg.Sync.StartupDelay,
		DailyEnabled:  cfg.Sync.CronEnabled,
		CronSpec:      cfg.Sync.CronSpec,
	}, reconciler, logger)

	// Services
	collectionSvc := collections.New(dataStore)
	releaseSvc := releases.New(dataStore)
	suggestionSvc := suggestions.New(dataStore, client, reconciler, logger)
	remoteSvc := remote.New(client, reconciler, sched, dataStore, cfg.Discogs.Username)

	handler, err := httpapi.New(collectionSvc, releaseSvc, suggestionSvc, remoteSvc, dataStore, logger).
		Routes(httpapi.Options{
			APIKey:         cfg.Security.APIKey,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			RateLimit:      cfg.Server.RateLimit,
		})
	if err != nil {
		return nil, err
	}

	return &application{handler: handler, scheduler: sched}, nil
}
