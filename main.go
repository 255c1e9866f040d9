package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"shoplist/api"
	"shoplist/hub"
	"shoplist/lists"
	"shoplist/popularity"
	"shoplist/storage"
)

func main() {
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.StandardLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var backend storage.Backend
	switch cfg.Backend {
	case "table":
		backend, err = storage.NewTableBackend(cfg.ConnStr, cfg.ListsTable)
	default:
		backend, err = storage.NewFileBackend(cfg.DataDir)
	}
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	var rc *redis.Client
	if cfg.RedisConn != "" {
		rc = redis.NewClient(redisOptions(cfg.RedisConn))
		defer rc.Close()
		backend = storage.NewCache(backend, rc, cfg.CacheTTL)
	}

	h := hub.New(cfg.Buffer, logger)
	var notifiers lists.Notifiers
	if rc != nil {
		relay := hub.NewRelay(rc, cfg.RelayChan, h, logger)
		go relay.Run(ctx)
		select {
		case <-relay.Ready():
		case <-time.After(5 * time.Second):
			logger.Warn("relay not subscribed yet, updates from other instances may be missed")
		case <-ctx.Done():
			return
		}
		notifiers = append(notifiers, relay)
	} else {
		notifiers = append(notifiers, h)
	}
	if cfg.FeedQueue != "" {
		q, err := storage.NewEventQueue(cfg.ConnStr, cfg.FeedQueue)
		if err != nil {
			log.Fatalf("change feed: %v", err)
		}
		notifiers = append(notifiers, lists.FeedNotifier{Publisher: q, Logger: logger})
	}

	if cfg.Tracing {
		shutdown := setupTracing(logger)
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.WithError(err).Warn("tracer shutdown")
			}
		}()
	}

	index := popularity.New(backend, cfg.Policy, logger)
	svc := lists.NewService(storage.NewLists(backend), index, notifiers, lists.Options{
		SuggestionsLimit: cfg.Suggestions,
		Logger:           logger,
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	api.Register(e, svc, h, api.Options{KeepAlive: cfg.KeepAlive, Logger: logger})

	go func() {
		logger.WithFields(log.Fields{"addr": cfg.ListenAddr, "backend": cfg.Backend}).Info("listening")
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	// closing the hub ends every open channel so Shutdown is not held up by them
	h.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown")
	}
	logger.WithField("dropped", h.Dropped()).Info("stopped")
}
