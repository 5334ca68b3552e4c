package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/bhavishy2801/CareBridge/internal/config"
	"github.com/bhavishy2801/CareBridge/internal/domain/association"
	"github.com/bhavishy2801/CareBridge/internal/domain/chat"
	"github.com/bhavishy2801/CareBridge/internal/domain/profile"
	"github.com/bhavishy2801/CareBridge/internal/platform/auth"
	"github.com/bhavishy2801/CareBridge/internal/platform/db"
	"github.com/bhavishy2801/CareBridge/internal/platform/metrics"
	"github.com/bhavishy2801/CareBridge/internal/platform/middleware"
	"github.com/bhavishy2801/CareBridge/internal/platform/presence"
	"github.com/bhavishy2801/CareBridge/internal/platform/websocket"
	"github.com/bhavishy2801/CareBridge/internal/realtime"
)

type stores struct {
	profiles     profile.Directory
	associations association.Repository
	messages     chat.Repository
	pool         *pgxpool.Pool
}

func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stores, error) {
	if cfg.UsesMemoryStore() {
		dir := profile.NewMemoryDirectory()
		if cfg.SeedFile != "" {
			f, err := os.Open(cfg.SeedFile)
			if err != nil {
				return nil, fmt.Errorf("open seed file: %w", err)
			}
			defer f.Close()
			n, err := dir.LoadFixtures(f)
			if err != nil {
				return nil, err
			}
			logger.Info().Int("profiles", n).Str("file", cfg.SeedFile).Msg("memory store seeded")
		}
		logger.Warn().Msg("using in-memory stores; data is lost on restart")
		return &stores{
			profiles:     dir,
			associations: association.NewMemoryRepo(),
			messages:     chat.NewMemoryRepo(),
		}, nil
	}

	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to database")
	return &stores{
		profiles:     profile.NewDirectoryPG(pool),
		associations: association.NewRepoPG(pool),
		messages:     chat.NewRepoPG(pool),
		pool:         pool,
	}, nil
}

// openBus connects the cross-process relay when REDIS_URL is set.
func openBus(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (realtime.Bus, func(), error) {
	if cfg.RedisURL == "" {
		return realtime.NopBus{}, func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info().Str("channel", cfg.RedisChannel).Msg("connected to redis bus")
	return realtime.NewRedisBus(client, cfg.RedisChannel, logger), func() { _ = client.Close() }, nil
}

type app struct {
	echo     *echo.Echo
	router   *realtime.Router
	presence *presence.Registry
	closers  []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp wires stores, services and routes. base bounds store calls made
// for websocket connections.
func buildApp(base context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	st, err := openStores(base, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &app{presence: presence.NewRegistry()}
	if st.pool != nil {
		a.closers = append(a.closers, st.pool.Close)
	}

	bus, closeBus, err := openBus(base, cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, closeBus)

	m := metrics.New()
	signer := newSigner(cfg)
	assocSvc := association.NewService(st.associations, st.profiles, logger)
	chatSvc := chat.NewService(st.messages, assocSvc, a.presence, st.profiles, logger)

	a.router = realtime.NewRouter(base, realtime.Deps{
		Hub:      websocket.NewHub(),
		Presence: a.presence,
		Chat:     chatSvc,
		Peers:    assocSvc,
		Verifier: signer,
		Bus:      bus,
		Metrics:  m,
	}, realtime.Config{
		SendBuffer:   cfg.WSSendBuffer,
		StoreTimeout: cfg.StoreTimeout,
		Origins:      cfg.CORSOrigins,
		Conn: websocket.Options{
			PingInterval:    cfg.WSPingInterval,
			PongWait:        cfg.WSPongWait,
			WriteWait:       10 * time.Second,
			MaxMessageBytes: cfg.WSMaxMessageBytes,
		},
	}, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(m.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status": "ok",
			"store":  cfg.StoreDriver,
			"online": a.presence.Count(),
		})
	})
	if st.pool != nil {
		e.GET("/health/db", db.HealthHandler(st.pool, logger))
	}
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	e.GET("/ws", a.router.Handle)

	rateLimitCfg := middleware.RateLimitConfig{RequestsPerSecond: cfg.RateLimitRPS, BurstSize: cfg.RateLimitBurst}
	if rateLimitCfg.RequestsPerSecond <= 0 || rateLimitCfg.BurstSize <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api := e.Group("/api",
		auth.JWTMiddleware(signer),
		middleware.RateLimit(rateLimitCfg),
		middleware.BodyLimit("1M"),
		middleware.RequestTimeout(cfg.RequestTimeout),
	)
	association.NewHandler(assocSvc).RegisterRoutes(api.Group("/associations"))
	chat.NewHandler(chatSvc, a.router).RegisterRoutes(api.Group("/chat"))

	a.echo = e
	return a, nil
}
