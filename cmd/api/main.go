package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tourhub/tourhub/internal/account"
	"github.com/tourhub/tourhub/internal/auth"
	"github.com/tourhub/tourhub/internal/cache"
	"github.com/tourhub/tourhub/internal/catalog"
	"github.com/tourhub/tourhub/internal/config"
	httpx "github.com/tourhub/tourhub/internal/http"
	"github.com/tourhub/tourhub/internal/http/middlewares"
	"github.com/tourhub/tourhub/internal/mail"
	"github.com/tourhub/tourhub/internal/observability"
	"github.com/tourhub/tourhub/internal/redisclient"
	"github.com/tourhub/tourhub/internal/repo/memory"
	"github.com/tourhub/tourhub/internal/repo/mongodb"
)

// stores groups the three collections behind whichever adapter STORE picks.
type stores struct {
	users interface {
		account.UsersStore
		catalog.UserFinder
		middlewares.SubjectLoader
	}
	tours   catalog.ToursStore
	reviews catalog.ReviewsStore
	ping    func(ctx context.Context) error
	close   func(ctx context.Context) error
}

func main() {
	// Load the config set up
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is empty, using an insecure development secret")
		cfg.JWTSecret = "dev-only-secret"
	}

	ctx := context.Background()

	if cfg.OtelEnabled {
		shutdownTracer, err := observability.InitTracer(ctx, "tourhub", cfg.Env, cfg.OtelEndpoint)
		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}
		defer func() {
			sctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdownTracer(sctx)
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	st, err := openStores(ctx, cfg, prom)
	if err != nil {
		log.Error("store init failed", "store", cfg.Store, "err", err)
		os.Exit(1)
	}

	var counter middlewares.Counter
	if cfg.RedisAddr != "" {
		rdb := redisclient.New(redisclient.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()

		pctx, cancel := config.WithTimeout(2 * time.Second)
		if err := rdb.Ping(pctx); err != nil {
			// the limiter falls back to in-process counts while redis is down
			log.Warn("redis not reachable", "addr", cfg.RedisAddr, "err", err)
		}
		cancel()
		counter = middlewares.NewRedisCounter(rdb)
	}

	mailer, err := mail.New(cfg, log, prom)
	if err != nil {
		log.Error("mailer init failed", "err", err)
		os.Exit(1)
	}

	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTExpiresIn)
	accounts := account.NewService(st.users, tokens, mailer, log)
	cat := catalog.NewService(st.tours, st.reviews, st.users, log)

	if err := accounts.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Error("seed admin failed", "err", err)
		os.Exit(1)
	}

	router := httpx.NewRouter(httpx.Deps{
		Config:    cfg,
		Log:       log,
		Prom:      prom,
		Gatherer:  reg,
		Accounts:  accounts,
		Catalog:   cat,
		Tokens:    tokens,
		Users:     st.users,
		Counter:   counter,
		ListCache: cache.New(cfg.ListCacheTTL),
		Ping:      st.ping,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.Store)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		sctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(sctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
		if err := st.close(sctx); err != nil {
			log.Error("store close failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

func openStores(ctx context.Context, cfg config.Config, prom *observability.Prom) (stores, error) {
	if cfg.Store == "memory" {
		tours := memory.NewToursRepo()
		return stores{
			users:   memory.NewUsersRepo(),
			tours:   tours,
			reviews: memory.NewReviewsRepo(),
			ping:    tours.Ping,
			close:   func(context.Context) error { return nil },
		}, nil
	}

	store, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, prom)
	if err != nil {
		return stores{}, err
	}

	ictx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.EnsureIndexes(ictx); err != nil {
		_ = store.Close(ctx)
		return stores{}, fmt.Errorf("ensure indexes: %w", err)
	}

	return stores{
		users:   store.Users(),
		tours:   store.Tours(),
		reviews: store.Reviews(),
		ping:    store.Ping,
		close:   store.Close,
	}, nil
}
