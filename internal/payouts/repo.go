package payouts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digibazaar/digibazaar-backend/pkg/db/models"
	"github.com/digibazaar/digibazaar-backend/pkg/enums"
	"github.com/digibazaar/digibazaar-backend/pkg/pagination"
)

// Repository persists payout rows and answers the reservation queries the
// dispute and bank workflows depend on.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	AcquireSellerLock(ctx context.Context, sellerID uuid.UUID) error
	Create(ctx context.Context, payout *models.Payout) error
	FindByID(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error)
	Update(ctx context.Context, payoutID uuid.UUID, updates map[string]any) error
	ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params, status *enums.PayoutStatus) ([]models.Payout, int64, error)
	ListByStatus(ctx context.Context, status *enums.PayoutStatus, params pagination.Params) ([]models.Payout, int64, error)
	CountReservingByBankAccount(ctx context.Context, bankAccountID uuid.UUID) (int64, error)
	CountReservingByBankAccountTx(ctx context.Context, tx *gorm.DB, bankAccountID uuid.UUID) (int64, error)
	FindPaidCoveringOrder(ctx context.Context, sellerID, orderID uuid.UUID) (*models.Payout, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payout repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// AcquireSellerLock serializes payout requests per seller for the lifetime of
// the surrounding transaction. Call it on a Repository already bound to a tx.
func (r *repository) AcquireSellerLock(ctx context.Context, sellerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtext(?))", sellerID.String()).Error
}

func (r *repository) Create(ctx context.Context, payout *models.Payout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) FindByID(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).
		Where("id = ?", payoutID).
		First(&payout).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) Update(ctx context.Context, payoutID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Payout{}).
		Where("id = ?", payoutID).
		Updates(updates).Error
}

func (r *repository) ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params, status *enums.PayoutStatus) ([]models.Payout, int64, error) {
	params = pagination.Normalize(params)

	query := r.db.WithContext(ctx).Model(&models.Payout{}).Where("seller_id = ?", sellerID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payouts []models.Payout
	if err := query.
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&payouts).Error; err != nil {
		return nil, 0, err
	}
	return payouts, total, nil
}

func (r *repository) ListByStatus(ctx context.Context, status *enums.PayoutStatus, params pagination.Params) ([]models.Payout, int64, error) {
	params = pagination.Normalize(params)

	query := r.db.WithContext(ctx).Model(&models.Payout{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payouts []models.Payout
	if err := query.
		Order("created_at ASC").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&payouts).Error; err != nil {
		return nil, 0, err
	}
	return payouts, total, nil
}

// CountReservingByBankAccount counts payouts that still hold funds against
// the account, which blocks removing it.
func (r *repository) CountReservingByBankAccount(ctx context.Context, bankAccountID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Payout{}).
		Where("bank_account_id = ? AND status IN ?", bankAccountID,
			[]enums.PayoutStatus{enums.PayoutStatusPending, enums.PayoutStatusProcessing}).
		Count(&count).Error
	return count, err
}

// CountReservingByBankAccountTx is CountReservingByBankAccount bound to a
// caller-supplied transaction, so the check sees rows written inside it.
func (r *repository) CountReservingByBankAccountTx(ctx context.Context, tx *gorm.DB, bankAccountID uuid.UUID) (int64, error) {
	return r.WithTx(tx).CountReservingByBankAccount(ctx, bankAccountID)
}

// FindPaidCoveringOrder returns the settled payout whose frozen snapshot
// included the order, or nil when no paid payout covers it. The containment
// check happens in Go so the query stays portable across drivers.
func (r *repository) FindPaidCoveringOrder(ctx context.Context, sellerID, orderID uuid.UUID) (*models.Payout, error) {
	var payouts []models.Payout
	if err := r.db.WithContext(ctx).
		Where("seller_id = ? AND status = ?", sellerID, enums.PayoutStatusPaid).
		Order("paid_at ASC").
		Find(&payouts).Error; err != nil {
		return nil, err
	}
	for i := range payouts {
		if payouts[i].CoveredOrderIDs.Contains(orderID) {
			return &payouts[i], nil
		}
	}
	return nil, nil
}
