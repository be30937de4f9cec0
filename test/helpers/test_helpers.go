package helpers

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fundbooks/ledger-gateway/internal/model"
	"github.com/fundbooks/ledger-gateway/internal/repository"
	"github.com/fundbooks/ledger-gateway/pkg/pg"
	"github.com/fundbooks/ledger-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.BankAccountEntity{},
		&repository.GrantEntity{},
		&repository.TransactionEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	adapter, err := redis.NewRedisAdapter("test", "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestAccount(t *testing.T, db *pg.DB, organizationID int64, name string, initialBalance string, anchorDate *time.Time) *repository.BankAccountEntity {
	ctx := context.Background()
	account := &repository.BankAccountEntity{
		OrganizationID:     organizationID,
		Name:               name,
		InitialBalance:     decimal.RequireFromString(initialBalance),
		InitialBalanceDate: anchorDate,
	}
	err := db.Write(ctx).Create(account).Error
	require.NoError(t, err)
	return account
}

func CreateTestGrant(t *testing.T, db *pg.DB, organizationID int64, name string, amount string) *repository.GrantEntity {
	ctx := context.Background()
	awarded := decimal.RequireFromString(amount)
	grant := &repository.GrantEntity{
		OrganizationID:   organizationID,
		Name:             name,
		Amount:           awarded,
		FundType:         string(model.FundTypeRestricted),
		RemainingBalance: awarded,
	}
	err := db.Write(ctx).Create(grant).Error
	require.NoError(t, err)
	return grant
}

func CreateTestTransaction(t *testing.T, db *pg.DB, organizationID int64, date time.Time, amount string, txnType string, opts ...func(*repository.TransactionEntity)) *repository.TransactionEntity {
	ctx := context.Background()
	txn := &repository.TransactionEntity{
		OrganizationID:       organizationID,
		Date:                 date,
		Amount:               decimal.RequireFromString(amount),
		Type:                 txnType,
		Source:               string(model.SourceManual),
		ReconciliationStatus: string(model.StatusUnreconciled),
	}
	for _, opt := range opts {
		opt(txn)
	}
	err := db.Write(ctx).Create(txn).Error
	require.NoError(t, err)
	return txn
}

func WithBankAccount(id int64) func(*repository.TransactionEntity) {
	return func(e *repository.TransactionEntity) {
		e.BankAccountID = &id
	}
}

func WithGrant(id int64) func(*repository.TransactionEntity) {
	return func(e *repository.TransactionEntity) {
		e.GrantID = &id
	}
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
