// Package httpserver manages server creation and api routing.
package httpserver

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/go-petr/fund-transfer/internal/accountdelivery"
	"github.com/go-petr/fund-transfer/internal/accountlock"
	"github.com/go-petr/fund-transfer/internal/accountrepo"
	"github.com/go-petr/fund-transfer/internal/accountservice"
	"github.com/go-petr/fund-transfer/internal/middleware"
	"github.com/go-petr/fund-transfer/internal/redislock"
	"github.com/go-petr/fund-transfer/internal/transferdelivery"
	"github.com/go-petr/fund-transfer/internal/transferrepo"
	"github.com/go-petr/fund-transfer/internal/transferservice"
	"github.com/go-petr/fund-transfer/pkg/configpkg"
	"github.com/go-petr/fund-transfer/pkg/dbpkg"
	"github.com/go-petr/fund-transfer/pkg/moneypkg"
)

// Server holds db and redis connections, handlers router and configuration.
type Server struct {
	DB     *sql.DB
	Redis  redis.UniversalClient
	Engine *gin.Engine
	Config configpkg.Config
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// New creates Server type with instantiated domains and routes.
//
// opts are passed to the transfer service, main uses them to plug in metrics and event publishing.
func New(conn *sql.DB, rdb redis.UniversalClient, logger zerolog.Logger, config configpkg.Config,
	opts ...transferservice.Option,
) (*Server, error) {
	accountRepo := accountrepo.NewRepoPGS(conn)
	transferRepo := transferrepo.NewRepoPGS(conn)
	txManager := dbpkg.NewTxManager(conn)

	locker := redislock.NewLocker(rdb, config.LockRetryDelay)
	coordinator := accountlock.NewCoordinator(locker, config.LockWaitTimeout, config.LockLeaseDuration)

	opts = append([]transferservice.Option{
		transferservice.WithMaxAttempts(config.TransferMaxAttempts),
		transferservice.WithRetryDelay(config.TransferRetryDelay),
	}, opts...)

	accountService := accountservice.New(accountRepo)
	transferService := transferservice.New(accountRepo, transferRepo, txManager, coordinator, opts...)

	accountHandler := accountdelivery.NewHandler(accountService)
	transferHandler := transferdelivery.NewHandler(transferService)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := moneypkg.Register(v); err != nil {
			return nil, errors.New("cannot register amount validators")
		}
	}

	server := &Server{
		DB:     conn,
		Redis:  rdb,
		Config: config,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(gin.Recovery())

	engine.GET("/health", server.health)

	v1 := engine.Group("/api/v1")

	v1.POST("/accounts", accountHandler.Create)
	v1.GET("/accounts/:id", accountHandler.Get)
	v1.GET("/accounts", accountHandler.List)

	v1.POST("/transfers", transferHandler.Create)
	v1.GET("/transfers/:reference_code", transferHandler.Get)
	v1.GET("/transfers", transferHandler.List)

	server.Engine = engine

	return server, nil
}

func (s *Server) health(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	if err := s.DB.PingContext(ctx); err != nil {
		l.Error().Err(err).Msg("database is unavailable")
		gctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})

		return
	}

	if err := s.Redis.Ping(ctx).Err(); err != nil {
		l.Error().Err(err).Msg("redis is unavailable")
		gctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "redis": "down"})

		return
	}

	gctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}
