package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fundbooks/ledger-gateway/internal/config"
	"github.com/fundbooks/ledger-gateway/internal/feed"
	gateway "github.com/fundbooks/ledger-gateway/internal/gateways"
	"github.com/fundbooks/ledger-gateway/internal/queue"
	"github.com/fundbooks/ledger-gateway/internal/repository"
	"github.com/fundbooks/ledger-gateway/pkg/logger"
	"github.com/fundbooks/ledger-gateway/pkg/pg"
	"github.com/fundbooks/ledger-gateway/pkg/prom"
	"github.com/fundbooks/ledger-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill, os.Interrupt, syscall.SIGTERM)
	cfg := &gateway.Config{
		Providers: []gateway.ProviderConfig{
			{Name: "primary", URL: config.Get().BankProviderPrimaryUrl, Weight: 100},
			{Name: "secondary", URL: config.Get().BankProviderSecondaryUrl, Weight: 80},
			{Name: "backup", URL: config.Get().BankProviderBackupUrl, Weight: 60},
		},
		Timeout:                 time.Second * 5,
		MaxRetries:              3,
		RetryDelay:              time.Millisecond * 100,
		MaxConns:                1000,
		ReadBufferSize:          1024 * 4,
		WriteBufferSize:         1024 * 4,
		HealthCheckInterval:     30 * time.Second,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   60 * time.Second,
	}
	client, err := gateway.NewClient(cfg)
	if err != nil {
		logger.Error("failed to create gateway", "error", err)
		return
	}

	transactionRepo := repository.NewTransactionRepository(db)
	accountRepo := repository.NewBankAccountRepository(db)

	// Initialize idempotency service
	idempotencyConfig := feed.DefaultIdempotencyConfig()
	idempotencyService := feed.NewIdempotencyService(redisAdap, idempotencyConfig)

	service, err := feed.NewFeedService(redisAdap)
	if err != nil {
		logger.Error("failed to create the feed service", "error", err)
		return
	}
	service.RegisterProcessor(feed.NewBankFeedProcessor(transactionRepo, accountRepo, idempotencyService))

	// publish side: the poller pulls from the bank providers and feeds the
	// same stream the service consumes
	publishQ, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName + "-poller",
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}

	poller := feed.NewPoller(client, publishQ, accountRepo, config.Get().FeedOrganizationID, config.Get().FeedPollInterval)
	pollCtx, pollCancel := context.WithCancel(context.Background())

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	go func() {
		err := service.Start()
		if err != nil {
			logger.Error("failed to start the feed service", "error", err)
		}
	}()

	go poller.Run(pollCtx)

	select {
	case <-c:
		pollCancel()
		service.Stop()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
