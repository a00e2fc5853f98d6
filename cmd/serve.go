package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Leganyst/calendar-core/internal/appointment"
	"github.com/Leganyst/calendar-core/internal/availability"
	"github.com/Leganyst/calendar-core/internal/cache"
	"github.com/Leganyst/calendar-core/internal/config"
	"github.com/Leganyst/calendar-core/internal/db"
	"github.com/Leganyst/calendar-core/internal/events"
	"github.com/Leganyst/calendar-core/internal/logging"
	"github.com/Leganyst/calendar-core/internal/model"
	"github.com/Leganyst/calendar-core/internal/ops"
	"github.com/Leganyst/calendar-core/internal/repository"
	"github.com/Leganyst/calendar-core/internal/schedule"
	"github.com/Leganyst/calendar-core/internal/service"
	"github.com/Leganyst/calendar-core/internal/telemetry"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC API and the ops HTTP endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Log, cfg.Telemetry.ServiceName)
	slog.SetDefault(log)

	// 1. Телеметрия: метрики всегда, трассы по конфигу.
	tel, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			log.Warn("telemetry shutdown", slog.Any("err", err))
		}
	}()

	// 2. БД и миграции.
	gormDB, err := db.NewGormDB(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("sql DB: %w", err)
	}
	defer sqlDB.Close()

	if err := model.AutoMigrate(gormDB); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	store := repository.NewGormStore(gormDB)

	checks := map[string]ops.Check{"database": store.Ping}

	// 3. Публикация событий: Kafka и сброс кэша сводок.
	var publishers events.Multi
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kp.Close()
		publishers = append(publishers, kp)
	}

	aggOpts := []availability.Option{
		availability.WithLogger(log),
		availability.WithPageSize(cfg.Calendar.DefaultPageSize),
		availability.WithMaxSummaryDays(cfg.Calendar.MaxSummaryDays),
	}
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()

		summaries := cache.NewSummaryCache(rdb, cfg.Redis.SummaryTTL, log)
		publishers = append(publishers, summaries)
		aggOpts = append(aggOpts, availability.WithCache(summaries))
		checks["redis"] = redisCheck(rdb)
	}

	// 4. Ядро.
	registry := schedule.NewRegistry(store.Schedules(), store.Providers(), log)
	ledger := appointment.NewLedger(store,
		appointment.WithPublisher(publishers),
		appointment.WithLogger(log),
		appointment.WithStrictTransitions(cfg.Calendar.StrictStatusTransitions),
	)
	replacer := schedule.NewReplacer(store,
		schedule.WithPublisher(publishers),
		schedule.WithLogger(log),
	)
	aggregator := availability.NewAggregator(
		repository.ProviderDirectory{Repo: store.Providers()},
		registry,
		store.Appointments(),
		aggOpts...,
	)

	// 5. gRPC.
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			service.RecoveryInterceptor(log),
			service.LoggingInterceptor(log),
			service.AuthInterceptor([]byte(cfg.Auth.JWTSecret), cfg.Auth.Disabled),
		),
	)
	service.RegisterCalendarServer(grpcServer, service.NewCalendarService(ledger, registry, replacer, aggregator, log))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPC.Addr, err)
	}

	opsServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           ops.NewRouter(checks),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("grpc server listening", slog.String("addr", cfg.GRPC.Addr))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()
	go func() {
		log.Info("ops server listening", slog.String("addr", cfg.HTTP.Addr))
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("ops serve: %w", err)
		}
	}()

	// 6. Грейсфул-шатдаун по сигналу или падению одного из серверов.
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	log.Info("shutting down")
	healthSrv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("ops shutdown", slog.Any("err", err))
	}
	grpcServer.GracefulStop()
	return runErr
}

func redisCheck(rdb *redis.Client) ops.Check {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
