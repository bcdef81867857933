package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digibazaar/digibazaar-backend/pkg/commission"
	"github.com/digibazaar/digibazaar-backend/pkg/db/models"
	"github.com/digibazaar/digibazaar-backend/pkg/enums"
	pkgerrors "github.com/digibazaar/digibazaar-backend/pkg/errors"
	"github.com/digibazaar/digibazaar-backend/pkg/outbox"
	"github.com/digibazaar/digibazaar-backend/pkg/outbox/payloads"
	"github.com/digibazaar/digibazaar-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// InvoiceIssuer creates the invoice snapshot inside the payment transaction.
type InvoiceIssuer interface {
	IssueTx(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Invoice, error)
}

// Service defines the order lifecycle operations feeding the settlement core.
type Service interface {
	CreateCheckout(ctx context.Context, input CreateCheckoutInput) (*models.Order, error)
	ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*models.Order, error)
	FailPayment(ctx context.Context, orderID uuid.UUID) error
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params, status *enums.OrderStatus) ([]models.Order, pagination.Page, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	invoices InvoiceIssuer
	rates    commission.Rates
	now      func() time.Time
}

// CreateCheckoutInput captures a new purchase before payment.
type CreateCheckoutInput struct {
	BuyerUserID uuid.UUID
	SellerID    uuid.UUID
	ProductID   uuid.UUID
	AmountPaise int64
}

// ConfirmPaymentInput carries the gateway confirmation for an order.
type ConfirmPaymentInput struct {
	OrderID          uuid.UUID
	PaymentReference string
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, invoices InvoiceIssuer, rates commission.Rates) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if invoices == nil {
		return nil, fmt.Errorf("invoice issuer required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   outboxSvc,
		invoices: invoices,
		rates:    rates,
		now:      time.Now,
	}, nil
}

func (s *service) CreateCheckout(ctx context.Context, input CreateCheckoutInput) (*models.Order, error) {
	if input.BuyerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.AmountPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	breakdown, err := commission.Split(input.AmountPaise, s.rates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "compute commission split")
	}

	order := &models.Order{
		BuyerUserID:       input.BuyerUserID,
		SellerID:          input.SellerID,
		ProductID:         input.ProductID,
		AmountPaise:       input.AmountPaise,
		PlatformFeePaise:  breakdown.CommissionPaise,
		SellerAmountPaise: breakdown.SellerAmountPaise,
		Status:            enums.OrderStatusCreated,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return order, nil
}

// ConfirmPayment moves the order to paid, issues the invoice in the same
// transaction and queues the order.paid event. Confirming an already paid
// order is a no-op so gateway retries stay harmless.
func (s *service) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.PaymentReference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}

	var confirmed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.Status == enums.OrderStatusPaid {
			confirmed = order
			return nil
		}
		if !order.Status.CanTransition(enums.OrderStatusPaid) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be paid in current state")
		}

		paidAt := s.now()
		updates := map[string]any{
			"status":            enums.OrderStatusPaid,
			"payment_reference": input.PaymentReference,
			"paid_at":           paidAt,
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		order.Status = enums.OrderStatusPaid
		order.PaymentReference = &input.PaymentReference
		order.PaidAt = &paidAt

		invoice, err := s.invoices.IssueTx(ctx, tx, order)
		if err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.OutboxEventOrderPaid,
			AggregateType: enums.OutboxAggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderPaidEvent{
				OrderID:           order.ID,
				SellerID:          order.SellerID,
				BuyerID:           order.BuyerUserID,
				AmountPaise:       order.AmountPaise,
				SellerAmountPaise: order.SellerAmountPaise,
				InvoiceNumber:     invoice.InvoiceNumber,
				PaidAt:            paidAt,
			},
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return err
		}

		confirmed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

func (s *service) FailPayment(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == enums.OrderStatusFailed {
			return nil
		}
		if !order.Status.CanTransition(enums.OrderStatusFailed) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot fail in current state")
		}
		if err := repo.Update(ctx, order.ID, map[string]any{"status": enums.OrderStatusFailed}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		return nil
	})
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params, status *enums.OrderStatus) ([]models.Order, pagination.Page, error) {
	if sellerID == uuid.Nil {
		return nil, pagination.Page{}, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	params = pagination.Normalize(params)
	ordersList, total, err := s.repo.ListBySeller(ctx, sellerID, params, status)
	if err != nil {
		return nil, pagination.Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return ordersList, pagination.NewPage(params, total), nil
}
