package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/digibazaar/digibazaar-backend/pkg/enums"
)

// Order represents a buyer's purchase of a digital product from a seller.
// The commission split is frozen on the row so amount == platform_fee +
// seller_amount holds for every paid order regardless of later rate changes.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerUserID       uuid.UUID         `gorm:"column:buyer_user_id;type:uuid;not null;index"`
	SellerID          uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index"`
	ProductID         uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	AmountPaise       int64             `gorm:"column:amount_paise;not null"`
	PlatformFeePaise  int64             `gorm:"column:platform_fee_paise;not null"`
	SellerAmountPaise int64             `gorm:"column:seller_amount_paise;not null"`
	Status            enums.OrderStatus `gorm:"column:status;type:text;not null;default:'created'"`
	IsRefunded        bool              `gorm:"column:is_refunded;not null;default:false"`
	RefundID          *string           `gorm:"column:refund_id"`
	PaymentReference  *string           `gorm:"column:payment_reference"`
	PaidAt            *time.Time        `gorm:"column:paid_at"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// SplitBalanced reports whether the frozen commission split still adds up.
func (o Order) SplitBalanced() bool {
	return o.AmountPaise == o.PlatformFeePaise+o.SellerAmountPaise
}
