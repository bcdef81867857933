package models

import (
	"time"

	"github.com/google/uuid"
)

// Invoice is the immutable financial-split snapshot created when an order is
// paid. Rows are never updated; re-issuing creates a new row pointing at the
// one it supersedes.
type Invoice struct {
	ID                       uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID                  uuid.UUID  `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_invoices_order_active,where:superseded_by_id IS NULL"`
	SellerID                 uuid.UUID  `gorm:"column:seller_id;type:uuid;not null;index"`
	InvoiceNumber            string     `gorm:"column:invoice_number;not null;unique"`
	ProductPricePaise        int64      `gorm:"column:product_price_paise;not null"`
	PlatformFeePaise         int64      `gorm:"column:platform_fee_paise;not null"`
	GSTAmountPaise           int64      `gorm:"column:gst_amount_paise;not null"`
	TotalPlatformAmountPaise int64      `gorm:"column:total_platform_amount_paise;not null"`
	SellerAmountPaise        int64      `gorm:"column:seller_amount_paise;not null"`
	SupersededByID           *uuid.UUID `gorm:"column:superseded_by_id;type:uuid"`
	IssuedAt                 time.Time  `gorm:"column:issued_at;not null"`
	CreatedAt                time.Time  `gorm:"column:created_at;autoCreateTime"`
}
