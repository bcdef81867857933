package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/digibazaar/digibazaar-backend/pkg/enums"
)

// BankAccount is a seller payout destination. At most one row per seller is
// primary (enforced by a partial unique index), and only a verified row may
// be the target of a payout request.
type BankAccount struct {
	ID                   uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID             uuid.UUID             `gorm:"column:seller_id;type:uuid;not null;index"`
	AccountHolderName    string                `gorm:"column:account_holder_name;not null"`
	AccountNumber        string                `gorm:"column:account_number;not null"`
	IFSCCode             string                `gorm:"column:ifsc_code;not null"`
	AccountType          enums.BankAccountType `gorm:"column:account_type;type:text;not null;default:'savings'"`
	IsPrimary            bool                  `gorm:"column:is_primary;not null;default:false"`
	IsVerified           bool                  `gorm:"column:is_verified;not null;default:false"`
	VerifiedAt           *time.Time            `gorm:"column:verified_at"`
	GatewayContactID     *string               `gorm:"column:gateway_contact_id"`
	GatewayFundAccountID *string               `gorm:"column:gateway_fund_account_id"`
	CreatedAt            time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
