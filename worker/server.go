package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/hiltonbrown/ledgerbot/apierror"
	"github.com/hiltonbrown/ledgerbot/credentials"
	"github.com/hiltonbrown/ledgerbot/syncer"
)

// Syncer is the part of the sync service the worker needs.
type Syncer interface {
	SyncTenant(ctx context.Context, userID, tenantID string) (*syncer.Result, error)
}

var _ Syncer = (*syncer.Service)(nil)

// Server consumes sync tasks from the queue and runs them through the sync
// service. Tasks that fail on a revoked grant are dropped rather than
// retried; retrying cannot succeed until the user reconnects.
type Server struct {
	server *asynq.Server
	syncer Syncer
	log    zerolog.Logger
}

func NewServer(redisOpt asynq.RedisClientOpt, sync Syncer, concurrency int, log zerolog.Logger) *Server {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return time.Duration(1<<uint(n)) * time.Minute
		},
		Logger: asynqLogger{log: log},
	})

	return &Server{
		server: srv,
		syncer: sync,
		log:    log,
	}
}

// Run blocks processing tasks until Shutdown is called.
func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSyncTenant, s.handleSyncTenant)

	if err := s.server.Run(mux); err != nil {
		return errors.Wrap(err, "running task server")
	}

	return nil
}

func (s *Server) Shutdown() {
	s.server.Shutdown()
}

func (s *Server) handleSyncTenant(ctx context.Context, task *asynq.Task) error {
	var payload SyncTenantPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// A malformed payload will never parse on retry.
		return errors.Wrapf(asynq.SkipRetry, "unmarshalling sync payload: %v", err)
	}

	log := s.log.With().
		Str("userID", payload.UserID).
		Str("tenantID", payload.TenantID).
		Logger()

	result, err := s.syncer.SyncTenant(ctx, payload.UserID, payload.TenantID)
	if err != nil {
		if requiresReauth(err) {
			log.Warn().Err(err).Msg("connection needs reauthorization, dropping sync task")
			return errors.Wrap(asynq.SkipRetry, err.Error())
		}
		log.Error().Err(err).Msg("sync failed")
		return err
	}

	event := log.Info().
		Int("records", result.Total()).
		Dur("elapsed", result.FinishedAt.Sub(result.StartedAt))
	if result.Failed() {
		event.Strs("errors", result.Errors)
	}
	event.Msg("sync pass complete")

	return nil
}

// requiresReauth recognises both failure shapes: the credentials sentinel
// that the sync service surfaces for a dead grant, and a classified API
// error flagged for reauthorization.
func requiresReauth(err error) bool {
	if errors.Is(err, credentials.ErrReauthRequired) {
		return true
	}
	var classified *apierror.Classified
	return errors.As(err, &classified) && classified.RequiresReauth
}

// asynqLogger adapts zerolog to asynq's internal logger.
type asynqLogger struct {
	log zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug().Msgf("%v", args) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info().Msgf("%v", args) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn().Msgf("%v", args) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error().Msgf("%v", args) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal().Msgf("%v", args) }
