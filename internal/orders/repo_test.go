package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/digibazaar/digibazaar-backend/pkg/db/models"
	"github.com/digibazaar/digibazaar-backend/pkg/enums"
	"github.com/digibazaar/digibazaar-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  buyer_user_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  amount_paise INTEGER NOT NULL,
  platform_fee_paise INTEGER NOT NULL,
  seller_amount_paise INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'created',
  is_refunded INTEGER NOT NULL DEFAULT 0,
  refund_id TEXT,
  payment_reference TEXT,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, sellerID uuid.UUID, status enums.OrderStatus, amount int64, created time.Time) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:                uuid.New(),
		BuyerUserID:       uuid.New(),
		SellerID:          sellerID,
		ProductID:         uuid.New(),
		AmountPaise:       amount,
		PlatformFeePaise:  amount / 10,
		SellerAmountPaise: amount - amount/10,
		Status:            status,
		CreatedAt:         created,
		UpdatedAt:         created,
	}
	if status == enums.OrderStatusPaid {
		paidAt := created
		order.PaidAt = &paidAt
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestRepositoryFindByID(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	sellerID := uuid.New()
	seeded := seedOrder(t, db, sellerID, enums.OrderStatusPaid, 100000, time.Now().UTC())

	found, err := repo.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, found.ID)
	assert.Equal(t, int64(100000), found.AmountPaise)
	assert.True(t, found.SplitBalanced())

	_, err = repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryUpdate(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	seeded := seedOrder(t, db, uuid.New(), enums.OrderStatusCreated, 50000, time.Now().UTC())

	paidAt := time.Now().UTC()
	err := repo.Update(context.Background(), seeded.ID, map[string]any{
		"status":            enums.OrderStatusPaid,
		"payment_reference": "pay_abc",
		"paid_at":           paidAt,
	})
	require.NoError(t, err)

	found, err := repo.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, found.Status)
	require.NotNil(t, found.PaymentReference)
	assert.Equal(t, "pay_abc", *found.PaymentReference)
	require.NotNil(t, found.PaidAt)
}

func TestRepositoryListBySeller(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	sellerID := uuid.New()
	otherSeller := uuid.New()
	now := time.Now().UTC()

	older := seedOrder(t, db, sellerID, enums.OrderStatusPaid, 100000, now.Add(-2*time.Hour))
	newer := seedOrder(t, db, sellerID, enums.OrderStatusCreated, 20000, now)
	seedOrder(t, db, otherSeller, enums.OrderStatusPaid, 30000, now)

	list, total, err := repo.ListBySeller(context.Background(), sellerID, pagination.Params{Limit: 10}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
}

func TestRepositoryListBySeller_statusFilterAndPaging(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	sellerID := uuid.New()
	now := time.Now().UTC()
	seedOrder(t, db, sellerID, enums.OrderStatusPaid, 100000, now.Add(-3*time.Hour))
	seedOrder(t, db, sellerID, enums.OrderStatusPaid, 60000, now.Add(-2*time.Hour))
	seedOrder(t, db, sellerID, enums.OrderStatusFailed, 40000, now.Add(-time.Hour))

	paid := enums.OrderStatusPaid
	list, total, err := repo.ListBySeller(context.Background(), sellerID, pagination.Params{Limit: 1}, &paid)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 1)
	assert.Equal(t, int64(60000), list[0].AmountPaise)

	second, _, err := repo.ListBySeller(context.Background(), sellerID, pagination.Params{Page: 2, Limit: 1}, &paid)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, int64(100000), second[0].AmountPaise)
}
