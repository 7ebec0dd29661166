package application

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/mymmrac/telego"
	"golang.org/x/sync/errgroup"

	"trustpay/internal/config"
	"trustpay/internal/domain/service/checkout"
	"trustpay/internal/domain/service/escrow"
	"trustpay/internal/domain/service/settings"
	"trustpay/internal/domain/service/settlement"
	"trustpay/internal/domain/value"
	"trustpay/internal/infrastructure/dedup"
	"trustpay/internal/infrastructure/notifier"
	"trustpay/internal/infrastructure/paystack"
	"trustpay/internal/infrastructure/persistence"
	"trustpay/internal/server"
	"trustpay/internal/transport/bot"
	"trustpay/internal/transport/bot/handler"
	"trustpay/internal/worker"
	"trustpay/pkg/application/connectors"
	"trustpay/pkg/application/modules"
	"trustpay/pkg/logx"
	"trustpay/pkg/lox"
	"trustpay/pkg/middlewarex"
)

func Run(ctx context.Context) error { //nolint:funlen
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	pg := &connectors.Postgres{
		DSN:             cfg.Postgres.DSN,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	}
	db := pg.Client(ctx)
	defer pg.Close(ctx)

	rd := &connectors.Redis{
		Address:            cfg.Redis.Address,
		Username:           cfg.Redis.Username,
		Password:           cfg.Redis.Password,
		DatabaseNumber:     cfg.Redis.DatabaseNumber,
		PoolSize:           cfg.Redis.PoolSize,
		MinIdleConnections: cfg.Redis.MinIdleConnections,
		MaxIdleConnections: cfg.Redis.MaxIdleConnections,
	}
	redisClient := rd.Client(ctx)
	defer rd.Close(ctx)

	// Репозитории
	dealRepo := persistence.NewDealRepository(db)
	auditRepo := persistence.NewAuditRepository(db)
	profileRepo := persistence.NewProfileRepository(db)
	settingsRepo := persistence.NewSettingsRepository(db)

	// Сервисы
	settingsService := settings.NewService(settingsRepo, defaultPolicy(cfg.Escrow), cfg.Escrow.SettingsCacheTTL)
	paystackClient := paystack.NewClient(cfg.Paystack.BaseURL, cfg.Paystack.SecretKey, cfg.Server.LogFieldMaxLen)
	publisher := notifier.NewPublisher(cfg.Escrow.NotifyBuffer)
	dispatcher := settlement.NewDispatcher(paystackClient, profileRepo, dealRepo)
	escrowService := escrow.NewService(dealRepo, dispatcher, settingsService, publisher)
	checkoutService := checkout.NewService(paystackClient, dealRepo, profileRepo)

	// Telegram: один клиент на уведомления и команды
	tg, err := telego.NewBot(cfg.Bot.Token)
	if err != nil {
		return fmt.Errorf("telego.NewBot: %w", err)
	}

	alertBot := notifier.NewTelegramBot(tg, dealRepo, profileRepo, cfg.Bot.AdminChatID)
	g.Go(func() error {
		if err := alertBot.Run(ctx, publisher.Events()); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("alertBot.Run: %w", err)
		}

		return nil
	})

	commandBot, err := bot.New(tg, handler.New(escrowService, checkoutService, dealRepo, profileRepo, settingsService))
	if err != nil {
		return fmt.Errorf("bot.New: %w", err)
	}

	g.Go(func() error {
		if err := commandBot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("commandBot.Run: %w", err)
		}

		return nil
	})

	// HTTP API и вебхуки провайдера
	srv := server.NewServer(
		server.NewEscrowServer(escrowService, auditRepo, checkoutService, checkoutService),
		server.NewWebhookServer(escrowService, paystackClient, dedup.NewRedisDeduper(redisClient, cfg.Escrow.WebhookDedupTTL)),
	)

	masker := logx.NewSensitiveDataMasker()

	router := chi.NewRouter()
	router.Use(
		middlewarex.TraceID,
		middlewarex.Logger,
		middlewarex.UserID,
		middlewarex.Recovery,
		middlewarex.RequestLogging(masker, cfg.Server.LogFieldMaxLen),
		middlewarex.ResponseLogging(masker, cfg.Server.LogFieldMaxLen),
	)
	srv.RegisterRoutes(router)

	//nolint:exhaustruct
	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	modules.HTTPServer{ShutdownTimeout: cfg.Server.ShutdownTimeout}.Run(ctx, g, httpServer)

	// Фоновые задачи: авторелиз по окну и ретраи выплат
	autoRelease := worker.NewAutoRelease(escrowService)
	settlementRetry := worker.NewSettlementRetry(dealRepo, dispatcher)

	modules.AsynqServer{
		RedisUsername: cfg.Redis.Username,
		RedisPassword: cfg.Redis.Password,
		RedisAddress:  cfg.Redis.Address,
		RedisDB:       cfg.Redis.DatabaseNumber,
	}.Run(ctx, g,
		modules.AsynqQueues{"default": 1},
		modules.AsynqHandler{Pattern: worker.TaskAutoReleaseSweep, Handle: autoRelease.Handle},
		modules.AsynqHandler{Pattern: worker.TaskSettlementRetry, Handle: settlementRetry.Handle},
	)

	modules.AsynqScheduler{
		RedisUsername: cfg.Redis.Username,
		RedisPassword: cfg.Redis.Password,
		RedisAddress:  cfg.Redis.Address,
		RedisDB:       cfg.Redis.DatabaseNumber,
	}.Run(ctx, g,
		modules.AsynqSchedulerEntry{Spec: cfg.Escrow.SweepSpec, Task: asynq.NewTask(worker.TaskAutoReleaseSweep, nil)},
		modules.AsynqSchedulerEntry{Spec: cfg.Escrow.RetrySpec, Task: asynq.NewTask(worker.TaskSettlementRetry, nil)},
	)

	modules.MetricServer{ListenAddress: cfg.Server.MetricListenAddress}.Run(ctx, g)
	modules.ProbeServer{
		Name:          cfg.App.Name,
		Version:       cfg.App.Version,
		ListenAddress: cfg.Server.ProbeListenAddress,
	}.Run(ctx, g)

	logger(ctx).Info("application started")

	if err := g.Wait(); err != nil {
		return fmt.Errorf("g.Wait: %w", err)
	}

	return nil
}

// defaultPolicy — правила из окружения; значения из platform_settings
// перекрывают их на лету.
func defaultPolicy(cfg config.Escrow) escrow.Policy {
	return escrow.Policy{
		MinAmount:         cfg.MinDealAmount,
		MaxAmount:         cfg.MaxDealAmount,
		FeeRate:           cfg.FeeRate,
		MinFee:            cfg.MinFee,
		CancelWindow:      cfg.CancelWindow,
		AutoReleaseWindow: cfg.AutoReleaseWindow,
		Arbiters:          lox.Map(cfg.Arbiters, value.NormalizeIdentity),
	}
}
