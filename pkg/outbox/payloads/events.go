package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/digibazaar/digibazaar-backend/pkg/enums"
)

// OrderPaidEvent is emitted when a payment confirmation lands and the
// seller's earnings entry is recorded.
type OrderPaidEvent struct {
	OrderID           uuid.UUID `json:"order_id"`
	SellerID          uuid.UUID `json:"seller_id"`
	BuyerID           uuid.UUID `json:"buyer_id"`
	AmountPaise       int64     `json:"amount_paise"`
	SellerAmountPaise int64     `json:"seller_amount_paise"`
	InvoiceNumber     string    `json:"invoice_number"`
	PaidAt            time.Time `json:"paid_at"`
}

// OrderRefundedEvent signals that an approved dispute reversed an order.
type OrderRefundedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	DisputeID   uuid.UUID `json:"dispute_id"`
	AmountPaise int64     `json:"amount_paise"`
	RefundedAt  time.Time `json:"refunded_at"`
}

// PayoutStatusEvent carries the common fields for payout lifecycle events.
type PayoutStatusEvent struct {
	PayoutID        uuid.UUID          `json:"payout_id"`
	SellerID        uuid.UUID          `json:"seller_id"`
	Status          enums.PayoutStatus `json:"status"`
	NetPayablePaise int64              `json:"net_payable_paise"`
	Reason          string             `json:"reason,omitempty"`
}

// PayoutPaidEvent is emitted when an admin settles a payout.
type PayoutPaidEvent struct {
	PayoutID         uuid.UUID           `json:"payout_id"`
	SellerID         uuid.UUID           `json:"seller_id"`
	NetPayablePaise  int64               `json:"net_payable_paise"`
	PaymentMethod    enums.PaymentMethod `json:"payment_method"`
	PaymentReference string              `json:"payment_reference,omitempty"`
	PaidAt           time.Time           `json:"paid_at"`
}

// DisputeOpenedEvent tells downstream systems a buyer raised a dispute.
type DisputeOpenedEvent struct {
	DisputeID uuid.UUID `json:"dispute_id"`
	OrderID   uuid.UUID `json:"order_id"`
	SellerID  uuid.UUID `json:"seller_id"`
	BuyerID   uuid.UUID `json:"buyer_id"`
	Reason    string    `json:"reason,omitempty"`
}

// DisputeResolvedEvent reports an admin decision on a dispute.
type DisputeResolvedEvent struct {
	DisputeID        uuid.UUID           `json:"dispute_id"`
	OrderID          uuid.UUID           `json:"order_id"`
	SellerID         uuid.UUID           `json:"seller_id"`
	Status           enums.DisputeStatus `json:"status"`
	ClawbackRequired bool                `json:"clawback_required"`
	ResolvedAt       time.Time           `json:"resolved_at"`
}
