package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digibazaar/digibazaar-backend/pkg/commission"
	"github.com/digibazaar/digibazaar-backend/pkg/db/models"
	"github.com/digibazaar/digibazaar-backend/pkg/enums"
	pkgerrors "github.com/digibazaar/digibazaar-backend/pkg/errors"
	"github.com/digibazaar/digibazaar-backend/pkg/outbox"
	"github.com/digibazaar/digibazaar-backend/pkg/pagination"
)

type stubOrdersRepo struct {
	orders  map[uuid.UUID]*models.Order
	updates map[string]any
}

func newStubOrdersRepo() *stubOrdersRepo {
	return &stubOrdersRepo{orders: make(map[uuid.UUID]*models.Order)}
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.orders[order.ID] = order
	return nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (s *stubOrdersRepo) Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	order, ok := s.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.updates = updates
	if v, ok := updates["status"].(enums.OrderStatus); ok {
		order.Status = v
	}
	if v, ok := updates["paid_at"].(time.Time); ok {
		order.PaidAt = &v
	}
	if v, ok := updates["payment_reference"].(string); ok {
		order.PaymentReference = &v
	}
	return nil
}

func (s *stubOrdersRepo) ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params, status *enums.OrderStatus) ([]models.Order, int64, error) {
	out := []models.Order{}
	for _, order := range s.orders {
		if order.SellerID != sellerID {
			continue
		}
		if status != nil && order.Status != *status {
			continue
		}
		out = append(out, *order)
	}
	return out, int64(len(out)), nil
}

type stubInvoiceIssuer struct {
	issued  []*models.Invoice
	callErr error
}

func (s *stubInvoiceIssuer) IssueTx(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Invoice, error) {
	if s.callErr != nil {
		return nil, s.callErr
	}
	invoice := &models.Invoice{
		ID:            uuid.New(),
		OrderID:       order.ID,
		SellerID:      order.SellerID,
		InvoiceNumber: "INV-202608-deadbeef",
	}
	s.issued = append(s.issued, invoice)
	return invoice, nil
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func newOrdersService(t *testing.T, repo Repository, issuer InvoiceIssuer, publisher outboxPublisher) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, publisher, issuer, commission.DefaultRates)
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func TestCreateCheckoutPrecomputesSplit(t *testing.T) {
	repo := newStubOrdersRepo()
	svc := newOrdersService(t, repo, &stubInvoiceIssuer{}, &stubOutboxPublisher{})

	order, err := svc.CreateCheckout(context.Background(), CreateCheckoutInput{
		BuyerUserID: uuid.New(),
		SellerID:    uuid.New(),
		ProductID:   uuid.New(),
		AmountPaise: 100000,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.PlatformFeePaise != 10000 {
		t.Fatalf("unexpected fee %d", order.PlatformFeePaise)
	}
	if order.SellerAmountPaise != 90000 {
		t.Fatalf("unexpected seller amount %d", order.SellerAmountPaise)
	}
	if !order.SplitBalanced() {
		t.Fatal("split does not balance")
	}
	if order.Status != enums.OrderStatusCreated {
		t.Fatalf("unexpected status %s", order.Status)
	}
}

func TestCreateCheckoutRejectsNonPositiveAmount(t *testing.T) {
	svc := newOrdersService(t, newStubOrdersRepo(), &stubInvoiceIssuer{}, &stubOutboxPublisher{})

	_, err := svc.CreateCheckout(context.Background(), CreateCheckoutInput{
		BuyerUserID: uuid.New(),
		SellerID:    uuid.New(),
		ProductID:   uuid.New(),
		AmountPaise: 0,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestConfirmPaymentIssuesInvoiceAndEmits(t *testing.T) {
	repo := newStubOrdersRepo()
	issuer := &stubInvoiceIssuer{}
	publisher := &stubOutboxPublisher{}
	svc := newOrdersService(t, repo, issuer, publisher)

	created, err := svc.CreateCheckout(context.Background(), CreateCheckoutInput{
		BuyerUserID: uuid.New(),
		SellerID:    uuid.New(),
		ProductID:   uuid.New(),
		AmountPaise: 100000,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	order, err := svc.ConfirmPayment(context.Background(), ConfirmPaymentInput{
		OrderID:          created.ID,
		PaymentReference: "pay_123",
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.Status != enums.OrderStatusPaid {
		t.Fatalf("unexpected status %s", order.Status)
	}
	if order.PaidAt == nil {
		t.Fatal("paid_at not set")
	}
	if len(issuer.issued) != 1 {
		t.Fatalf("expected invoice issued, got %d", len(issuer.issued))
	}
	if len(publisher.events) != 1 || publisher.events[0].EventType != enums.OutboxEventOrderPaid {
		t.Fatalf("unexpected events %+v", publisher.events)
	}
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	repo := newStubOrdersRepo()
	issuer := &stubInvoiceIssuer{}
	publisher := &stubOutboxPublisher{}
	svc := newOrdersService(t, repo, issuer, publisher)

	created, _ := svc.CreateCheckout(context.Background(), CreateCheckoutInput{
		BuyerUserID: uuid.New(),
		SellerID:    uuid.New(),
		ProductID:   uuid.New(),
		AmountPaise: 100000,
	})

	input := ConfirmPaymentInput{OrderID: created.ID, PaymentReference: "pay_123"}
	if _, err := svc.ConfirmPayment(context.Background(), input); err != nil {
		t.Fatalf("first confirm failed: %v", err)
	}
	if _, err := svc.ConfirmPayment(context.Background(), input); err != nil {
		t.Fatalf("second confirm failed: %v", err)
	}
	if len(issuer.issued) != 1 {
		t.Fatalf("expected single invoice, got %d", len(issuer.issued))
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected single event, got %d", len(publisher.events))
	}
}

func TestConfirmPaymentRejectsFailedOrder(t *testing.T) {
	repo := newStubOrdersRepo()
	svc := newOrdersService(t, repo, &stubInvoiceIssuer{}, &stubOutboxPublisher{})

	created, _ := svc.CreateCheckout(context.Background(), CreateCheckoutInput{
		BuyerUserID: uuid.New(),
		SellerID:    uuid.New(),
		ProductID:   uuid.New(),
		AmountPaise: 100000,
	})
	if err := svc.FailPayment(context.Background(), created.ID); err != nil {
		t.Fatalf("fail payment: %v", err)
	}

	_, err := svc.ConfirmPayment(context.Background(), ConfirmPaymentInput{
		OrderID:          created.ID,
		PaymentReference: "pay_123",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestFailPaymentIdempotent(t *testing.T) {
	repo := newStubOrdersRepo()
	svc := newOrdersService(t, repo, &stubInvoiceIssuer{}, &stubOutboxPublisher{})

	created, _ := svc.CreateCheckout(context.Background(), CreateCheckoutInput{
		BuyerUserID: uuid.New(),
		SellerID:    uuid.New(),
		ProductID:   uuid.New(),
		AmountPaise: 100000,
	})
	if err := svc.FailPayment(context.Background(), created.ID); err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if err := svc.FailPayment(context.Background(), created.ID); err != nil {
		t.Fatalf("expected idempotent no-op got %v", err)
	}
}
