package payouts

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
	dbtypes "github.com/digibazaar/digibazaar-backend/pkg/db/types"
	"github.com/digibazaar/digibazaar-backend/pkg/enums"
	"github.com/digibazaar/digibazaar-backend/pkg/pagination"
)

func setupPayoutsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS payouts (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  bank_account_id TEXT NOT NULL,
  amount_paise INTEGER NOT NULL,
  total_earnings_paise INTEGER NOT NULL,
  platform_commission_paise INTEGER NOT NULL,
  gst_on_commission_paise INTEGER NOT NULL,
  total_deductions_paise INTEGER NOT NULL,
  net_payable_paise INTEGER NOT NULL,
  covered_order_ids TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  rejection_reason TEXT,
  notes TEXT,
  paid_by TEXT,
  paid_at DATETIME,
  payment_method TEXT,
  payment_reference TEXT,
  payment_notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedPayout(t *testing.T, db *gorm.DB, sellerID, bankAccountID uuid.UUID, status enums.PayoutStatus, covered []uuid.UUID, created time.Time) *models.Payout {
	t.Helper()

	payout := &models.Payout{
		ID:                      uuid.New(),
		SellerID:                sellerID,
		BankAccountID:           bankAccountID,
		AmountPaise:             90000,
		TotalEarningsPaise:      100000,
		PlatformCommissionPaise: 10000,
		GSTOnCommissionPaise:    1800,
		TotalDeductionsPaise:    11800,
		NetPayablePaise:         88200,
		CoveredOrderIDs:         dbtypes.UUIDArray(covered),
		Status:                  status,
		CreatedAt:               created,
		UpdatedAt:               created,
	}
	if status == enums.PayoutStatusPaid {
		paidAt := created
		payout.PaidAt = &paidAt
	}
	require.NoError(t, db.Create(payout).Error)
	return payout
}

func TestPayoutsRepositoryListBySeller(t *testing.T) {
	db := setupPayoutsTestDB(t)
	repo := NewRepository(db)

	sellerID := uuid.New()
	bankID := uuid.New()
	now := time.Now().UTC()

	older := seedPayout(t, db, sellerID, bankID, enums.PayoutStatusPaid, nil, now.Add(-2*time.Hour))
	newer := seedPayout(t, db, sellerID, bankID, enums.PayoutStatusPending, nil, now)
	seedPayout(t, db, uuid.New(), uuid.New(), enums.PayoutStatusPending, nil, now)

	list, total, err := repo.ListBySeller(context.Background(), sellerID, pagination.Params{Limit: 10}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	paid := enums.PayoutStatusPaid
	filtered, total, err := repo.ListBySeller(context.Background(), sellerID, pagination.Params{Limit: 10}, &paid)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, filtered, 1)
	assert.Equal(t, older.ID, filtered[0].ID)
}

func TestPayoutsRepositoryCountReservingByBankAccount(t *testing.T) {
	db := setupPayoutsTestDB(t)
	repo := NewRepository(db)

	sellerID := uuid.New()
	bankID := uuid.New()
	now := time.Now().UTC()

	seedPayout(t, db, sellerID, bankID, enums.PayoutStatusPending, nil, now.Add(-3*time.Hour))
	seedPayout(t, db, sellerID, bankID, enums.PayoutStatusProcessing, nil, now.Add(-2*time.Hour))
	seedPayout(t, db, sellerID, bankID, enums.PayoutStatusPaid, nil, now.Add(-time.Hour))
	seedPayout(t, db, sellerID, bankID, enums.PayoutStatusRejected, nil, now)

	count, err := repo.CountReservingByBankAccount(context.Background(), bankID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = repo.CountReservingByBankAccount(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPayoutsRepositoryCountReservingSeesTransactionWrites(t *testing.T) {
	db := setupPayoutsTestDB(t)
	repo := NewRepository(db)

	sellerID := uuid.New()
	bankID := uuid.New()

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		seedPayout(t, tx, sellerID, bankID, enums.PayoutStatusPending, nil, time.Now().UTC())

		count, err := repo.CountReservingByBankAccountTx(context.Background(), tx, bankID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		return nil
	}))
}

func TestPayoutsRepositoryFindPaidCoveringOrder(t *testing.T) {
	db := setupPayoutsTestDB(t)
	repo := NewRepository(db)

	sellerID := uuid.New()
	bankID := uuid.New()
	coveredOrder := uuid.New()
	otherOrder := uuid.New()
	now := time.Now().UTC()

	paid := seedPayout(t, db, sellerID, bankID, enums.PayoutStatusPaid, []uuid.UUID{coveredOrder}, now.Add(-time.Hour))
	// Pending payouts never count as settled coverage even when they list the order.
	seedPayout(t, db, sellerID, bankID, enums.PayoutStatusPending, []uuid.UUID{otherOrder}, now)

	found, err := repo.FindPaidCoveringOrder(context.Background(), sellerID, coveredOrder)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, paid.ID, found.ID)
	assert.True(t, found.CoveredOrderIDs.Contains(coveredOrder))
	assert.True(t, found.SnapshotBalanced())

	miss, err := repo.FindPaidCoveringOrder(context.Background(), sellerID, otherOrder)
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestPayoutsRepositoryUpdateStatus(t *testing.T) {
	db := setupPayoutsTestDB(t)
	repo := NewRepository(db)

	payout := seedPayout(t, db, uuid.New(), uuid.New(), enums.PayoutStatusPending, nil, time.Now().UTC())

	reason := "bank details mismatch"
	err := repo.Update(context.Background(), payout.ID, map[string]any{
		"status":           enums.PayoutStatusRejected,
		"rejection_reason": reason,
	})
	require.NoError(t, err)

	found, err := repo.FindByID(context.Background(), payout.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PayoutStatusRejected, found.Status)
	require.NotNil(t, found.RejectionReason)
	assert.Equal(t, reason, *found.RejectionReason)
}
