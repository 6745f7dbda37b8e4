// Command relayd runs the relay server: the durable move log API and the
// websocket rooms that carry the live channel between match participants.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/rs/zerolog"

	"turnsync/internal/config"
	"turnsync/internal/identity"
	"turnsync/internal/ports"
	dynamoports "turnsync/internal/ports/dynamo"
	"turnsync/internal/ports/sqlite"
	"turnsync/internal/relay"
)

const tokenTTL = 24 * time.Hour

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "relayd").Logger()

	cfg, err := config.LoadRelayConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	moveLog, err := openMoveLog(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Backend).Msg("failed to open move log backend")
	}

	idp, err := identity.New(cfg.JWTSecret, cfg.JWTIssuer, tokenTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build identity provider")
	}

	srv := relay.NewServer(moveLog, idp, logger)
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("backend", cfg.Backend).Msg("relay listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown incomplete")
	}
}

func openMoveLog(cfg config.RelayConfig) (ports.MoveLog, error) {
	switch cfg.Backend {
	case "dynamo":
		sess, err := session.NewSession()
		if err != nil {
			return nil, err
		}
		return dynamoports.NewMoveLog(dynamodb.New(sess), cfg.DynamoTable, cfg.PollInterval), nil
	default:
		db, err := sqlite.Open(cfg.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		return sqlite.NewMoveLog(db, cfg.PollInterval), nil
	}
}
