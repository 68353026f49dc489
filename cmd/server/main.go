package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"medical-scheduler-api/internal/config"
	"medical-scheduler-api/internal/handler"
	"medical-scheduler-api/internal/logging"
	"medical-scheduler-api/internal/middleware"
	"medical-scheduler-api/internal/notify"
	"medical-scheduler-api/internal/presence"
	"medical-scheduler-api/internal/scheduler"
	"medical-scheduler-api/internal/scheduling"
	"medical-scheduler-api/internal/store"
	"medical-scheduler-api/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("info")
		boot.Fatal().Err(err).Msg("config")
	}
	log := logging.New(cfg.LogLevel)

	// database
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer pool.Close()
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("db ping")
	}
	log.Info().Msg("connected to postgres")

	// run migrations
	if migration, err := os.ReadFile("db/migrations/001_init.sql"); err != nil {
		log.Warn().Err(err).Msg("migration file not found, skipping")
	} else if _, err := pool.Exec(context.Background(), string(migration)); err != nil {
		log.Warn().Err(err).Msg("migration warning")
	} else {
		log.Info().Msg("migration applied")
	}

	st := store.New(pool)
	registry := presence.NewRegistry()
	hub := ws.NewHub(registry, cfg.ClientOrigin, log)
	dispatcher := notify.NewDispatcher(registry, hub, st, log)
	expander := scheduling.NewExpander(cfg.AppointmentDuration(), cfg.MaxBatchAppointments)

	sched := scheduler.New(st, dispatcher, cfg.ReminderPollInterval(), cfg.ReminderLead(), log)
	sched.Start()

	h := handler.New(st, expander, dispatcher, hub, cfg.JWTSecret, log)
	rl := middleware.NewRateLimiter(5, 10)

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: h.Router(rl),
	}
	go func() {
		log.Info().Str("port", cfg.Port).Msg("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	// graceful shutdown: stop booking first, let the in-flight scan finish,
	// then close the listener
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	log.Info().Msg("shutting down")

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
}
