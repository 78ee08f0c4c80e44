package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"kanban-board/board-service/api"
	"kanban-board/board-service/storage"
	"kanban-board/config"
	"kanban-board/gateway"
)

func main() {
	cfg, err := config.LoadService(os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.StandardLogger()

	redisOpts, err := config.RedisOptions(cfg.RedisConnectionString)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	rc := redis.NewClient(redisOpts)
	defer rc.Close()

	store := storage.NewCache(storage.NewMemory(), rc, cfg.BoardCacheTTL)
	replays := api.NewRedisReplayGuard(rc, cfg.DeduperTTL)
	notifier := api.NewNotifier(api.NewRedisPublisher(rc, cfg.UpdatesChannel), api.NotifierOptions{
		Workers:        cfg.NotifyWorkers,
		Buffer:         cfg.NotifyBuffer,
		PublishTimeout: 5 * time.Second,
		HandoffTimeout: 15 * time.Millisecond,
	}, logger)
	defer notifier.Close()

	var auth *api.Auth
	if cfg.AuthTestMode {
		auth, err = api.NewTestAuth([]byte(cfg.TestJWTSecret))
		if err != nil {
			log.Fatal(err)
		}
	} else {
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", cfg.Auth0Domain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{RefreshInterval: time.Hour})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		defer jwks.EndBackground()
		auth = api.NewAuth(jwks, cfg.Auth0Audience, "https://"+cfg.Auth0Domain+"/", api.DefaultJWKSCacheTTL)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization,
			gateway.HeaderClientID, gateway.HeaderIdempotencyKey,
		},
	}))
	e.Use(api.GzipRequestMiddleware())

	api.Register(e, store, auth, replays, notifier, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown")
	}
}
