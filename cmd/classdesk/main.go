package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/classdesk/internal/app"
	"github.com/Freeeeeet/classdesk/internal/config"
	"github.com/Freeeeeet/classdesk/internal/controller/httpapi"
	"github.com/Freeeeeet/classdesk/internal/controller/realtime"
	"github.com/Freeeeeet/classdesk/internal/feed"
	"github.com/Freeeeeet/classdesk/internal/notify"
	"github.com/Freeeeeet/classdesk/internal/repository"
	"github.com/Freeeeeet/classdesk/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type stores struct {
	users repository.UserRepository
	appts repository.AppointmentRepository
	convs repository.ConversationRepository
	audit repository.AuditRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	logger.Info("Starting classdesk",
		zap.String("environment", cfg.Environment),
		zap.String("store", cfg.StoreDriver),
		zap.String("time_zone", cfg.Location().String()),
		zap.Bool("strict_approval", cfg.StrictApproval),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("classdesk stopped", zap.Error(err))
	}
	logger.Info("classdesk stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	broker := feed.NewBroker()

	var st stores
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("create pool: %w", err)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}

		migrator, err := app.NewMigrator(pool, logger)
		if err != nil {
			return err
		}
		err = migrator.Run(ctx)
		_ = migrator.Close()
		if err != nil {
			return err
		}

		st = stores{
			users: repository.NewUserRepository(pool),
			appts: repository.NewAppointmentRepository(pool),
			convs: repository.NewConversationRepository(pool),
			audit: repository.NewAuditRepository(pool),
		}

		listener := repository.NewChangeListener(pool, broker, logger)
		g.Go(func() error { return listener.Run(ctx) })

	case config.StoreDriverMemory:
		logger.Warn("Using in-memory store, data is lost on restart")
		mem := repository.NewMemoryStore(broker)
		st = stores{
			users: mem.Users(),
			appts: mem.Appointments(),
			convs: mem.Conversations(),
			audit: mem.Audit(),
		}
	}

	var forwarder service.AuditForwarder
	if cfg.TelegramEnabled() {
		tf, err := notify.NewTelegramForwarder(cfg.TelegramToken, cfg.TelegramAdminChatID, logger)
		if err != nil {
			return err
		}
		forwarder = tf
	}

	gate := service.NewSessionGate(st.users, logger)
	appts := service.NewAppointmentService(st.users, st.appts, st.convs, broker, service.AppointmentOptions{
		Location:       cfg.Location(),
		StrictApproval: cfg.StrictApproval,
	}, logger)
	convs := service.NewConversationService(st.users, st.convs, broker, logger)
	audit := service.NewAuditLogger(st.audit, forwarder, logger)
	accounts := service.NewAccountService(st.users, appts, audit, logger)

	if cfg.SweepEnabled() {
		scheduler, err := app.NewScheduler(cfg.SweepSchedule, cfg.Location(), appts, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return scheduler.Run(ctx) })
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.SetupRouter(httpapi.Dependencies{
		Gate:         gate,
		Appointments: httpapi.NewAppointmentController(appts, logger),
		Messages:     httpapi.NewMessageController(convs, logger),
		Admin:        httpapi.NewAdminController(accounts, logger),
		Feeds:        realtime.NewGateway(appts, convs, realtime.NewRegistry(), logger),
		CORSOrigins:  cfg.CORSOrigins,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("address", cfg.HTTPAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		return nil
	})

	return g.Wait()
}
