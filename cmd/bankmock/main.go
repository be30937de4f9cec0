package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// FeedTransaction is one synthetic bank transaction emitted by the mock
type FeedTransaction struct {
	EventID     string          `json:"event_id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
}

// TransactionsResponse mirrors the provider fetch response
type TransactionsResponse struct {
	AccountExternalID string            `json:"account_external_id"`
	Transactions      []FeedTransaction `json:"transactions"`
	Balance           *decimal.Decimal  `json:"balance,omitempty"`
	ProviderID        string            `json:"provider_id"`
	FetchedAt         time.Time         `json:"fetched_at"`
}

// BalanceResponse is the standalone balance endpoint payload
type BalanceResponse struct {
	AccountExternalID string          `json:"account_external_id"`
	Balance           decimal.Decimal `json:"balance"`
	ProviderID        string          `json:"provider_id"`
	AsOf              time.Time       `json:"as_of"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status     string    `json:"status"`
	ProviderID string    `json:"provider_id"`
	Timestamp  time.Time `json:"timestamp"`
}

type accountState struct {
	balance decimal.Decimal
	lastTxn time.Time
}

// MockBank simulates a bank data provider: every poll it invents a few
// new transactions per account and moves the running balance accordingly
type MockBank struct {
	mu          sync.Mutex
	providerID  string
	accounts    map[string]*accountState
	maxPerPoll  int
	activityPct float64
	rng         *rand.Rand
}

func NewMockBank(maxPerPoll int, activityPct float64) *MockBank {
	return &MockBank{
		providerID:  "MOCK_BANK_" + uuid.New().String()[:8],
		accounts:    make(map[string]*accountState),
		maxPerPoll:  maxPerPoll,
		activityPct: activityPct,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockBank) account(externalID string) *accountState {
	state, ok := m.accounts[externalID]
	if !ok {
		state = &accountState{
			balance: decimal.NewFromInt(int64(1000 + m.rng.Intn(9000))),
			lastTxn: time.Now().Add(-24 * time.Hour),
		}
		m.accounts[externalID] = state
	}
	return state
}

var descriptions = []struct {
	text    string
	txnType string
}{
	{"ACH deposit", "income"},
	{"Wire transfer in", "income"},
	{"Card purchase", "expense"},
	{"Monthly service fee", "expense"},
	{"Vendor payment", "expense"},
	{"Payroll run", "expense"},
	{"Interest earned", "income"},
}

// pullTransactions invents new activity since the given cursor
func (m *MockBank) pullTransactions(externalID string, since time.Time) *TransactionsResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.account(externalID)
	now := time.Now()

	resp := &TransactionsResponse{
		AccountExternalID: externalID,
		Transactions:      []FeedTransaction{},
		ProviderID:        m.providerID,
		FetchedAt:         now,
	}

	// quiet account this round
	if m.rng.Float64() > m.activityPct {
		balance := state.balance
		resp.Balance = &balance
		return resp
	}

	count := 1 + m.rng.Intn(m.maxPerPoll)
	for i := 0; i < count; i++ {
		pick := descriptions[m.rng.Intn(len(descriptions))]
		amount := decimal.NewFromInt(int64(5 + m.rng.Intn(500))).
			Add(decimal.New(int64(m.rng.Intn(100)), -2))

		date := state.lastTxn.Add(time.Duration(m.rng.Intn(3600)) * time.Second)
		if date.After(now) {
			date = now
		}
		state.lastTxn = date

		if date.Before(since) {
			date = since.Add(time.Second)
		}

		if pick.txnType == "income" {
			state.balance = state.balance.Add(amount)
		} else {
			state.balance = state.balance.Sub(amount)
		}

		resp.Transactions = append(resp.Transactions, FeedTransaction{
			EventID:     uuid.New().String(),
			Date:        date,
			Description: pick.text,
			Amount:      amount,
			Type:        pick.txnType,
		})
	}

	balance := state.balance
	resp.Balance = &balance

	log.Info().
		Str("account", externalID).
		Int("count", count).
		Str("balance", balance.String()).
		Msg("Generated feed transactions")

	return resp
}

func (m *MockBank) currentBalance(externalID string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.account(externalID).balance
}

// Handler struct holds the mock bank and routes
type Handler struct {
	bank *MockBank
}

func NewHandler(bank *MockBank) *Handler {
	return &Handler{bank: bank}
}

// GetTransactions serves the incremental transaction pull
func (h *Handler) GetTransactions(c *gin.Context) {
	accountID := c.Param("account_id")
	if accountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "account_id is required",
		})
		return
	}

	var since time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid since parameter",
				"details": err.Error(),
			})
			return
		}
		since = parsed
	}

	resp := h.bank.pullTransactions(accountID, since)
	c.JSON(http.StatusOK, resp)
}

// GetBalance serves the standalone balance check
func (h *Handler) GetBalance(c *gin.Context) {
	accountID := c.Param("account_id")
	if accountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "account_id is required",
		})
		return
	}

	c.JSON(http.StatusOK, BalanceResponse{
		AccountExternalID: accountID,
		Balance:           h.bank.currentBalance(accountID),
		ProviderID:        h.bank.providerID,
		AsOf:              time.Now(),
	})
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		ProviderID: h.bank.providerID,
		Timestamp:  time.Now(),
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	// Add request logging middleware
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/accounts/:account_id/transactions", handler.GetTransactions)
		v1.GET("/accounts/:account_id/balance", handler.GetBalance)
		v1.GET("/health", handler.HealthCheck)
	}

	// Root health check
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Get configuration from environment
	port := getEnv("PORT", "8081")
	maxPerPoll := getEnvInt("MAX_TXNS_PER_POLL", 3)
	activityPct := getEnvFloat("ACTIVITY_RATE", 0.7)

	log.Info().
		Str("port", port).
		Int("max_per_poll", maxPerPoll).
		Float64("activity_rate", activityPct).
		Msg("Starting Mock Bank Provider")

	// Create mock bank
	bank := NewMockBank(maxPerPoll, activityPct)
	handler := NewHandler(bank)
	router := SetupRouter(handler)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}
