package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"campushub/internal/broadcast"
	"campushub/internal/checkintoken"
	"campushub/internal/conflict"
	httpapi "campushub/internal/http"
	"campushub/internal/ledger"
	"campushub/internal/notify"
	"campushub/internal/notify/reminder"
	"campushub/internal/platform/config"
	"campushub/internal/platform/httpserver"
	"campushub/internal/platform/logger"
	platformpg "campushub/internal/platform/postgres"
	platformredis "campushub/internal/platform/redis"
	"campushub/internal/registration/handler"
	"campushub/internal/registration/metrics"
	"campushub/internal/registration/service"
	"campushub/internal/registration/store"
	"campushub/internal/venue"
)

const tokenIssuer = "campushub"

// main wires dependencies and owns the process lifecycle. External systems
// are optional: without Postgres, Redis, or Kafka the server runs fully
// in-process, which is the development default.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		events store.EventStore
		regs   store.RegistrationStore
		promos store.PromoStore
		seats  ledger.CapacityLedger
	)

	pool, err := platformpg.Connect(ctx, cfg.Postgres)
	if err != nil {
		log.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
		events = store.NewPostgresEventStore(pool)
		regs = store.NewPostgresRegistrationStore(pool)
		promos = store.NewPostgresPromoStore(pool)
		seats = ledger.NewPostgres(pool, cfg.Ledger.LockTimeout)
		log.Info("using postgres stores", "lock_timeout", cfg.Ledger.LockTimeout)
	} else {
		memEvents := store.NewMemoryEventStore()
		memRegs := store.NewMemoryRegistrationStore(memEvents)
		events = memEvents
		regs = memRegs
		promos = store.NewMemoryPromoStore()
		seats = ledger.NewMemory(memEvents, memRegs, cfg.Ledger.LockTimeout)
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	notifier := notify.Sink(notify.NewMemorySink())
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := notify.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.NotificationsTopic, log)
		if err != nil {
			log.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := kafkaSink.Close(flushCtx); err != nil {
				log.Warn("kafka producer close", "error", err)
			}
		}()
		notifier = kafkaSink
		log.Info("notifications via kafka", "topic", cfg.Kafka.NotificationsTopic)
	}

	broadcaster := broadcast.Sink(broadcast.NewMemorySink())
	var redisClient *platformredis.Client
	redisClient, err = platformredis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		broadcaster = broadcast.NewRedisSink(redisClient.Client)
		log.Info("broadcasts via redis pub/sub")
	}

	detector := conflict.NewDetector(events, regs, venue.NewDistanceModel(), conflict.WithLogger(log))
	tokens := checkintoken.NewService(cfg.CheckIn.SigningKey, tokenIssuer)

	svc := service.New(events, regs, promos, seats, detector, tokens,
		service.WithLogger(log),
		service.WithMetrics(metrics.New()),
		service.WithNotificationSink(notifier),
		service.WithBroadcastSink(broadcaster),
	)

	checks := []httpapi.HealthCheck{}
	if pool != nil {
		checks = append(checks, httpapi.HealthCheck{Name: "postgres", Check: pool.Ping})
	}
	if redisClient != nil {
		checks = append(checks, httpapi.HealthCheck{Name: "redis", Check: redisClient.Health})
	}

	router := httpapi.NewRouter(handler.New(svc, log), log, checks...)
	srv := httpserver.New(cfg.Server.Addr, router)

	reminders := reminder.New(events, regs, notifier, cfg.Reminder.Horizon, cfg.Reminder.Interval, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting campushub", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := reminders.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
