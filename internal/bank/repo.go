package bank

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digibazaar/digibazaar-backend/pkg/db/models"
)

// Repository persists seller bank accounts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, account *models.BankAccount) error
	FindByID(ctx context.Context, accountID uuid.UUID) (*models.BankAccount, error)
	FindForSeller(ctx context.Context, sellerID, accountID uuid.UUID) (*models.BankAccount, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.BankAccount, error)
	CountBySeller(ctx context.Context, sellerID uuid.UUID) (int64, error)
	Update(ctx context.Context, accountID uuid.UUID, updates map[string]any) error
	UnsetPrimary(ctx context.Context, sellerID uuid.UUID) error
	FindLatestVerified(ctx context.Context, sellerID uuid.UUID, excludeID uuid.UUID) (*models.BankAccount, error)
	Delete(ctx context.Context, accountID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a bank account repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, account *models.BankAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) FindByID(ctx context.Context, accountID uuid.UUID) (*models.BankAccount, error) {
	var account models.BankAccount
	if err := r.db.WithContext(ctx).
		Where("id = ?", accountID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// FindForSeller returns nil without an error when the account does not exist
// or belongs to someone else, so callers cannot probe foreign rows.
func (r *repository) FindForSeller(ctx context.Context, sellerID, accountID uuid.UUID) (*models.BankAccount, error) {
	var account models.BankAccount
	err := r.db.WithContext(ctx).
		Where("id = ? AND seller_id = ?", accountID, sellerID).
		First(&account).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.BankAccount, error) {
	var accounts []models.BankAccount
	if err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at ASC").
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repository) CountBySeller(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BankAccount{}).
		Where("seller_id = ?", sellerID).
		Count(&count).Error
	return count, err
}

func (r *repository) Update(ctx context.Context, accountID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.BankAccount{}).
		Where("id = ?", accountID).
		Updates(updates).Error
}

func (r *repository) UnsetPrimary(ctx context.Context, sellerID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.BankAccount{}).
		Where("seller_id = ? AND is_primary", sellerID).
		Update("is_primary", false).Error
}

func (r *repository) FindLatestVerified(ctx context.Context, sellerID uuid.UUID, excludeID uuid.UUID) (*models.BankAccount, error) {
	var account models.BankAccount
	err := r.db.WithContext(ctx).
		Where("seller_id = ? AND is_verified AND id <> ?", sellerID, excludeID).
		Order("created_at DESC").
		First(&account).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) Delete(ctx context.Context, accountID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", accountID).
		Delete(&models.BankAccount{}).Error
}
