package main

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/hiltonbrown/ledgerbot/credentials"
	"github.com/hiltonbrown/ledgerbot/internal/config"
	"github.com/hiltonbrown/ledgerbot/internal/encryption"
	"github.com/hiltonbrown/ledgerbot/postgres"
	"github.com/hiltonbrown/ledgerbot/ratelimit"
	"github.com/hiltonbrown/ledgerbot/syncer"
	"github.com/hiltonbrown/ledgerbot/xero"
)

// app wires the full dependency graph once per command invocation.
type app struct {
	cfg    config.Config
	log    zerolog.Logger
	db     *sql.DB
	creds  *credentials.Manager
	syncer *syncer.Service
}

func newApp(ctx context.Context, cfg config.Config, log zerolog.Logger) (*app, error) {
	cipher, err := encryption.New(cfg.GetEncryptionSecret())
	if err != nil {
		return nil, errors.WithMessage(err, "initializing token cipher")
	}

	db, err := postgres.Open(ctx, cfg.GetDatabaseDSN())
	if err != nil {
		return nil, errors.WithMessage(err, "opening database")
	}

	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, errors.WithMessage(err, "applying migrations")
	}

	connRepo := postgres.NewConnectionRepo(db, cipher)
	governor := ratelimit.New(connRepo, log)

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GetXeroClientID(),
		ClientSecret: cfg.GetXeroClientSecret(),
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.GetXeroAuthURL(),
			TokenURL: cfg.GetXeroTokenURL(),
		},
		Scopes: strings.Fields(cfg.GetXeroScopes()),
	}

	creds := credentials.New(connRepo, governor, oauthCfg, log,
		credentials.WithClientOptions(xero.WithBaseURL(cfg.GetXeroAPIBaseURL())),
	)

	syncService := syncer.New(creds, postgres.NewSyncStore(db), log,
		syncer.WithBatchSize(cfg.GetSyncBatchSize()),
		syncer.WithPageSize(cfg.GetSyncPageSize()),
	)

	return &app{
		cfg:    cfg,
		log:    log,
		db:     db,
		creds:  creds,
		syncer: syncService,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing database")
	}
}

func redisOpt(cfg config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.GetRedisPassword(),
		DB:       cfg.GetRedisDB(),
	}
}
