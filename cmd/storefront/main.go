package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taller7/muebleria-api/internal/audit"
	"github.com/taller7/muebleria-api/internal/catalog"
	"github.com/taller7/muebleria-api/internal/config"
	"github.com/taller7/muebleria-api/internal/identity"
	"github.com/taller7/muebleria-api/internal/order"
	"github.com/taller7/muebleria-api/internal/postgres"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	var trail *audit.Trail
	if cfg.MongoURI != "" {
		trail, err = audit.Open(ctx, cfg.MongoURI, cfg.MongoDB, cfg.ServiceName)
		if err != nil {
			logger.Fatal("mongo connect", zap.Error(err))
		}
		defer func() { _ = trail.Close(context.Background()) }()
	}

	products := catalog.NewPGRepo(db)
	orders := order.NewPGRepo(db)
	eng := order.NewEngine(orders, products, trail, logger)
	ident := identity.NewService(identity.NewPGRepo(db), rdb, cfg.SessionTTL)

	r := newRouter(logger, ident, products, orders, eng, trail)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
}
