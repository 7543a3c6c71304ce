package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/comptracker/comptracker-api/docs"
	"github.com/comptracker/comptracker-api/internal/account"
	"github.com/comptracker/comptracker-api/internal/config"
	api "github.com/comptracker/comptracker-api/internal/http"
	"github.com/comptracker/comptracker-api/internal/log"
	"github.com/comptracker/comptracker-api/internal/metrics"
	"github.com/comptracker/comptracker-api/internal/oauth"
	"github.com/comptracker/comptracker-api/internal/queue"
	"github.com/comptracker/comptracker-api/internal/repo"
	"github.com/comptracker/comptracker-api/internal/stats"
)

func main() {
	cfg := config.Load()

	logger, err := log.Init(cfg.Production())
	if err != nil {
		stdlog.Fatalf("logger init: %v", err)
	}
	defer logger.Sync()

	metrics.MustRegister()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := repo.NewStore(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Fatal("mongo connect", zap.Error(err))
	}
	defer store.Close(context.Background())

	if err := store.EnsureIndexes(ctx); err != nil {
		logger.Fatal("mongo indexes", zap.Error(err))
	}

	var rds *repo.Redis
	if cfg.RedisAddr != "" {
		rds = repo.NewRedis(cfg.RedisAddr)
		if err := rds.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, rate limiting and stat cache disabled", zap.Error(err))
			rds = nil
		} else {
			defer rds.Close()
		}
	}

	pub := queue.NewNoop()
	if cfg.AMQPURL != "" {
		rp, err := queue.NewRabbit(cfg.AMQPURL, queue.Exchange)
		if err != nil {
			logger.Warn("rabbitmq unavailable, events disabled", zap.Error(err))
		} else {
			pub = rp
			defer pub.Close()
		}
	}

	accounts := account.NewService(store)

	h := api.NewHandler(accounts, store, cfg.JWTSecret, cfg.SessionTTLDays, cfg.Production(), rds, cfg.RateLimitPerMin, pub)
	h.Google = oauth.NewGoogle(cfg.GoogleClientID)
	h.GitHub = oauth.NewGitHub(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.OAuthRedirectURL)
	h.Stats = stats.NewClient()
	h.StatsCacheTTL = time.Duration(cfg.StatsCacheTTL) * time.Minute

	docs.SwaggerInfo.BasePath = "/"
	r := api.NewRouter(h)

	srvErr := make(chan error, 1)
	go func() { srvErr <- r.Run(":" + cfg.Port) }()

	logger.Info("comptracker-api listening", zap.String("port", cfg.Port))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Info("shutting down", zap.String("signal", s.String()))
	case err := <-srvErr:
		logger.Error("server error", zap.Error(err))
	}
}
