// Package main runs the fund transfer API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/go-petr/fund-transfer/cmd/httpserver"
	"github.com/go-petr/fund-transfer/internal/eventpublisher"
	"github.com/go-petr/fund-transfer/internal/metrics"
	"github.com/go-petr/fund-transfer/internal/middleware"
	"github.com/go-petr/fund-transfer/internal/transferservice"
	"github.com/go-petr/fund-transfer/pkg/configpkg"
	"github.com/go-petr/fund-transfer/pkg/dbpkg"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

const shutdownTimeout = 10 * time.Second

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := middleware.CreateLogger(config)

	if err := runMigrations(config.MigrationURL, config.DBSource); err != nil {
		logger.Fatal().Err(err).Msg("cannot run db migrations")
	}

	db, err := dbpkg.Setup(config.DBDriver, config.DBSource)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot connect to database")
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddress,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("cannot connect to redis")
	}

	provider, shutdownMetrics, err := meterProvider(ctx, config.OTLPEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create meter provider")
	}
	defer shutdownMetrics()

	recorder, err := metrics.New(provider)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create metrics")
	}

	opts := []transferservice.Option{transferservice.WithMetrics(recorder)}

	if config.RabbitMQURL != "" {
		publisher, closePublisher, err := eventpublisher.Dial(config.RabbitMQURL, config.RabbitMQExchange)
		if err != nil {
			logger.Fatal().Err(err).Msg("cannot connect to rabbitmq")
		}
		defer closeLogged(logger, "rabbitmq", closePublisher)

		opts = append(opts, transferservice.WithPublisher(publisher))
	}

	server, err := httpserver.New(db, rdb, logger, config, opts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create server")
	}

	srv := &http.Server{
		Addr:              config.ServerAddress,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	logger.Info().Str("address", config.ServerAddress).Msg("FUND TRANSFER API SERVER HAS STARTED")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("cannot start server")
		return
	}

	logger.Info().Msg("server stopped")
}

func runMigrations(url, source string) error {
	m, err := migrate.New(url, source)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

// meterProvider exports to the OTLP collector when an endpoint is set and discards otherwise.
func meterProvider(ctx context.Context, endpoint string) (metric.MeterProvider, func(), error) {
	if endpoint == "" {
		return noop.NewMeterProvider(), func() {}, nil
	}

	exp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(endpoint), otlpmetricgrpc.WithInsecure())
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	otel.SetMeterProvider(mp)

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		_ = mp.Shutdown(shutdownCtx)
	}

	return mp, shutdown, nil
}

func closeLogged(logger zerolog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Error().Err(err).Str("resource", name).Msg("close failed")
	}
}
