package main

import (
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fundbooks/ledger-gateway/internal/config"
	"github.com/fundbooks/ledger-gateway/internal/handlers"
	"github.com/fundbooks/ledger-gateway/internal/repository"
	"github.com/fundbooks/ledger-gateway/internal/services"
	xhttp "github.com/fundbooks/ledger-gateway/pkg/http"
	"github.com/fundbooks/ledger-gateway/pkg/logger"
	"github.com/fundbooks/ledger-gateway/pkg/pg"
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

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

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

	transactionRepo := repository.NewTransactionRepository(db)
	grantRepo := repository.NewGrantRepository(db)
	accountRepo := repository.NewBankAccountRepository(db)

	// services
	grantService := services.NewGrantService(grantRepo, transactionRepo)
	transactionService := services.NewTransactionService(transactionRepo, grantRepo, grantService, accountRepo)
	accountService := services.NewBankAccountService(accountRepo)
	importService := services.NewImportService(transactionRepo)
	healthService := services.NewHealthService()

	// v1 handlers
	transactionHandler := handlers.NewTransactionHandler(transactionService, importService)
	grantHandler := handlers.NewGrantHandler(grantService)
	accountHandler := handlers.NewBankAccountHandler(accountService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterTransactionRoutes(g, transactionHandler)
	handlers.RegisterGrantRoutes(g, grantHandler)
	handlers.RegisterBankAccountRoutes(g, accountHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	// Create new server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
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
