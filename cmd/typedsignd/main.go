package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TypedSign-Chain/internal/api"
	"TypedSign-Chain/internal/auth"
	"TypedSign-Chain/internal/config"
	"TypedSign-Chain/internal/domain"
	"TypedSign-Chain/internal/keystore"
	"TypedSign-Chain/internal/message"
	"TypedSign-Chain/internal/observability/alerting"
	"TypedSign-Chain/internal/observability/metrics"
	"TypedSign-Chain/internal/signing"
	"TypedSign-Chain/internal/web3/ethereum"
	"TypedSign-Chain/pkg/eip712"
	"TypedSign-Chain/pkg/logger"
)

// main 是 TypedSign 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("typedsignd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		AddSource:   cfg.Logging.AddSource,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.AuditPath != "",
			Path:       cfg.Logging.AuditPath,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		},
	}); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	appLog := logger.Named("typedsignd")

	enc := eip712.NewEncoder(nil)
	metrics.TrackTypeHashCache(enc.Cache().Len)

	domains, err := domain.Load(cfg.Domains.CatalogPath, enc)
	if err != nil {
		return err
	}
	if cfg.Domains.VerifyChains {
		verifyCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := domains.VerifyChains(verifyCtx, ethereum.VerifyEndpoint)
		cancel()
		if err != nil {
			return err
		}
	}

	keys, err := keystore.Load(cfg.Keys, enc, os.Getenv)
	if err != nil {
		return err
	}
	defer keys.Close()

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	queue, err := openQueue(ctx, cfg.Queue)
	if err != nil {
		_ = store.Close()
		return err
	}

	kinds := message.NewCatalog()
	executor := signing.NewTypedDataExecutor(domains, kinds, keys, enc)
	service := signing.NewService(store, queue, executor, cfg.Processor.MaxRetries)
	defer func() {
		if err := service.Close(); err != nil {
			appLog.Error("关闭签名服务失败", slog.Any("error", err))
		}
	}()

	notifiers := []alerting.Notifier{&alerting.LogNotifier{Logger: logger.Named("alert")}}
	if cfg.Alerting.WebhookURL != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{
			URL:    cfg.Alerting.WebhookURL,
			Client: &http.Client{Timeout: 10 * time.Second},
		})
	}
	processor := signing.NewProcessor(executor, store, queue, queue,
		signing.WithWorkerCount(cfg.Processor.Workers),
		signing.WithProcessorLogger(logger.Named("processor")),
		signing.WithAlertDispatcher(alerting.NewFanout(notifiers...)),
	)

	authCfg, err := auth.ConfigFromSettings(cfg.Auth, os.LookupEnv)
	if err != nil {
		return err
	}
	authService, err := auth.NewService(authCfg)
	if err != nil {
		return err
	}

	processorCtx, processorCancel := context.WithCancel(ctx)
	defer processorCancel()
	go func() {
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			appLog.Error("签名处理器异常退出", slog.Any("error", err))
		}
	}()

	if cfg.Server.MetricsAddress != "" {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Server.MetricsAddress); err != nil && !errors.Is(err, context.Canceled) {
				appLog.Error("指标服务异常退出", slog.Any("error", err))
			}
		}()
	}

	appLog.Info("typedsignd 已启动",
		slog.String("address", cfg.Server.Address),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("queue", cfg.Queue.Driver),
		slog.Int("domains", len(domains.List())),
		slog.Int("keys", len(keys.List())),
		slog.String("auth", string(authService.Mode())),
	)

	server := api.NewServer(cfg.Server.Address, service,
		api.WithTypedData(executor),
		api.WithDomains(domains),
		api.WithKinds(kinds),
		api.WithKeys(keys),
		api.WithAuth(authService),
		api.WithShutdownTimeout(cfg.Server.ShutdownTimeout.Duration),
	)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (signing.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return signing.NewMemoryStore(), nil
	case "mysql":
		return signing.NewMySQLStore(ctx, signing.MySQLConfig{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime.Duration,
		})
	default:
		return nil, fmt.Errorf("未知的存储驱动: %s", cfg.Driver)
	}
}

func openQueue(ctx context.Context, cfg config.QueueConfig) (signing.Queue, error) {
	switch cfg.Driver {
	case "", "memory":
		return signing.NewMemoryQueue(cfg.Buffer), nil
	case "redis":
		return signing.NewRedisQueue(ctx, signing.RedisQueueConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Queue:     cfg.Redis.Key,
			BlockWait: cfg.Redis.Block.Duration,
		})
	case "rabbitmq":
		return signing.NewRabbitMQQueue(signing.RabbitMQConfig{
			URL:      cfg.RabbitMQ.URL,
			Queue:    cfg.RabbitMQ.Queue,
			Prefetch: cfg.RabbitMQ.Prefetch,
			Durable:  true,
		})
	default:
		return nil, fmt.Errorf("未知的队列驱动: %s", cfg.Driver)
	}
}
