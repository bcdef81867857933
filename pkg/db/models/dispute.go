package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/digibazaar/digibazaar-backend/pkg/enums"
)

// Dispute is a buyer complaint against a paid order. Approval is the only
// path that reverses ledger state.
type Dispute struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	BuyerUserID uuid.UUID           `gorm:"column:buyer_user_id;type:uuid;not null"`
	Reason      string              `gorm:"column:reason;not null"`
	Status      enums.DisputeStatus `gorm:"column:status;type:text;not null;default:'open'"`
	AdminNote   *string             `gorm:"column:admin_note"`
	RefundID    *string             `gorm:"column:refund_id"`
	ResolvedBy  *uuid.UUID          `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt  *time.Time          `gorm:"column:resolved_at"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
