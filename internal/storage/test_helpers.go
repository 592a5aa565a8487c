package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/receipt-ledger/internal/migrations"
	"github.com/magabrotheeeer/receipt-ledger/internal/models"
	"github.com/magabrotheeeer/receipt-ledger/internal/storage/testpg"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя со случайной сессией и возвращает его ID
func (f *TestDataFactory) CreateUser(t *testing.T, username string) int64 {
	t.Helper()
	id, err := f.storage.RegisterUser(context.Background(), username, "hashedpassword", uuid.NewString())
	require.NoError(t, err)
	return id
}

// CreateBill создает тестовый чек
func (f *TestDataFactory) CreateBill(t *testing.T, userID int64, amount, date, clock, shop string) int64 {
	t.Helper()
	d, err := time.Parse(models.DateLayout, date)
	require.NoError(t, err)

	id, err := f.storage.InsertBill(context.Background(), models.Bill{
		UserID:     userID,
		Amount:     decimal.RequireFromString(amount),
		BillDate:   d,
		BillTime:   clock,
		Shop:       shop,
		ImageRef:   uuid.NewString() + ".png",
		UploadedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return id
}

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции
func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	dsn := testpg.Start(t)

	storage, err := New(context.Background(), dsn)
	require.NoError(t, err, "failed to create storage")
	t.Cleanup(func() { _ = storage.Close() })

	require.NoError(t, migrations.Run(storage.DB), "failed to apply migrations")
	return storage
}
