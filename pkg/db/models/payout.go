package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/digibazaar/digibazaar-backend/pkg/db/types"
	"github.com/digibazaar/digibazaar-backend/pkg/enums"
)

// Payout is a seller withdrawal request. The earnings/commission breakdown is
// frozen at request time so the row justifies its own net payable amount even
// after the underlying orders change.
type Payout struct {
	ID                      uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID                uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	BankAccountID           uuid.UUID           `gorm:"column:bank_account_id;type:uuid;not null"`
	AmountPaise             int64               `gorm:"column:amount_paise;not null"`
	TotalEarningsPaise      int64               `gorm:"column:total_earnings_paise;not null"`
	PlatformCommissionPaise int64               `gorm:"column:platform_commission_paise;not null"`
	GSTOnCommissionPaise    int64               `gorm:"column:gst_on_commission_paise;not null"`
	TotalDeductionsPaise    int64               `gorm:"column:total_deductions_paise;not null"`
	NetPayablePaise         int64               `gorm:"column:net_payable_paise;not null"`
	CoveredOrderIDs         dbtypes.UUIDArray   `gorm:"column:covered_order_ids;type:uuid[]"`
	Status                  enums.PayoutStatus  `gorm:"column:status;type:text;not null;default:'pending'"`
	RejectionReason         *string             `gorm:"column:rejection_reason"`
	Notes                   *string             `gorm:"column:notes"`
	PaidBy                  *uuid.UUID          `gorm:"column:paid_by;type:uuid"`
	PaidAt                  *time.Time          `gorm:"column:paid_at"`
	PaymentMethod           *enums.PaymentMethod `gorm:"column:payment_method;type:text"`
	PaymentReference        *string             `gorm:"column:payment_reference"`
	PaymentNotes            *string             `gorm:"column:payment_notes"`
	CreatedAt               time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// SnapshotBalanced reports whether the frozen breakdown is internally
// consistent: deductions = commission + gst, net = earnings - deductions.
func (p Payout) SnapshotBalanced() bool {
	if p.TotalDeductionsPaise != p.PlatformCommissionPaise+p.GSTOnCommissionPaise {
		return false
	}
	return p.NetPayablePaise == p.TotalEarningsPaise-p.TotalDeductionsPaise
}
