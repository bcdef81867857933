package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digibazaar/digibazaar-backend/pkg/db/models"
	"github.com/digibazaar/digibazaar-backend/pkg/enums"
)

// Repository reads the records the balance derivation is computed from.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListPaidOrders(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error)
	ListActiveInvoices(ctx context.Context, sellerID uuid.UUID) ([]models.Invoice, error)
	ListPayouts(ctx context.Context, sellerID uuid.UUID) ([]models.Payout, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListPaidOrders(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).
		Where("seller_id = ? AND status = ?", sellerID, enums.OrderStatusPaid).
		Order("paid_at ASC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) ListActiveInvoices(ctx context.Context, sellerID uuid.UUID) ([]models.Invoice, error) {
	var invoices []models.Invoice
	if err := r.db.WithContext(ctx).
		Where("seller_id = ? AND superseded_by_id IS NULL", sellerID).
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repository) ListPayouts(ctx context.Context, sellerID uuid.UUID) ([]models.Payout, error) {
	var payouts []models.Payout
	if err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at ASC").
		Find(&payouts).Error; err != nil {
		return nil, err
	}
	return payouts, nil
}
