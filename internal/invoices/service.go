package invoices

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digibazaar/digibazaar-backend/pkg/commission"
	"github.com/digibazaar/digibazaar-backend/pkg/db/models"
	"github.com/digibazaar/digibazaar-backend/pkg/enums"
	pkgerrors "github.com/digibazaar/digibazaar-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service issues and re-issues invoice snapshots for paid orders.
type Service interface {
	IssueTx(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Invoice, error)
	Reissue(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Invoice, error)
}

type service struct {
	repo  Repository
	tx    txRunner
	rates commission.Rates
	now   func() time.Time
}

// NewService wires an invoice service with the provided repository and rates.
func NewService(repo Repository, tx txRunner, rates commission.Rates) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("invoices repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:  repo,
		tx:    tx,
		rates: rates,
		now:   time.Now,
	}, nil
}

// IssueTx creates the immutable invoice for a freshly paid order inside the
// caller's transaction. Issuing twice for the same order returns the existing
// active invoice instead of failing.
func (s *service) IssueTx(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Invoice, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for invoice issue")
	}
	if order == nil || order.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if order.Status != enums.OrderStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invoice requires a paid order")
	}
	if !order.SplitBalanced() {
		return nil, pkgerrors.New(pkgerrors.CodeBalanceIntegrity, "order commission split does not balance").
			WithDetails(map[string]any{"order_id": order.ID})
	}

	repo := s.repo.WithTx(tx)
	if existing, err := repo.FindActiveByOrder(ctx, order.ID); err == nil {
		return existing, nil
	} else if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing invoice")
	}

	invoice, err := s.build(order)
	if err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, invoice); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice")
	}
	return invoice, nil
}

// Reissue supersedes the active invoice with a fresh snapshot. The old row is
// kept and linked; invoices are never edited in place.
func (s *service) Reissue(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var reissued *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindActiveByOrder(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}

		next := &models.Invoice{
			OrderID:                  current.OrderID,
			SellerID:                 current.SellerID,
			InvoiceNumber:            s.nextNumber(),
			ProductPricePaise:        current.ProductPricePaise,
			PlatformFeePaise:         current.PlatformFeePaise,
			GSTAmountPaise:           current.GSTAmountPaise,
			TotalPlatformAmountPaise: current.TotalPlatformAmountPaise,
			SellerAmountPaise:        current.SellerAmountPaise,
			IssuedAt:                 s.now(),
		}
		if err := repo.Create(ctx, next); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice")
		}
		if err := repo.MarkSuperseded(ctx, current.ID, next.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "supersede invoice")
		}
		reissued = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reissued, nil
}

func (s *service) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	invoice, err := s.repo.FindActiveByOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	return invoice, nil
}

func (s *service) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Invoice, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	return s.repo.ListBySeller(ctx, sellerID)
}

func (s *service) build(order *models.Order) (*models.Invoice, error) {
	breakdown, err := commission.Split(order.AmountPaise, s.rates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "compute commission split")
	}
	return &models.Invoice{
		OrderID:                  order.ID,
		SellerID:                 order.SellerID,
		InvoiceNumber:            s.nextNumber(),
		ProductPricePaise:        order.AmountPaise,
		PlatformFeePaise:         order.PlatformFeePaise,
		GSTAmountPaise:           breakdown.GSTOnCommissionPaise,
		TotalPlatformAmountPaise: order.PlatformFeePaise + breakdown.GSTOnCommissionPaise,
		SellerAmountPaise:        order.SellerAmountPaise,
		IssuedAt:                 s.now(),
	}, nil
}

// nextNumber yields identifiers like INV-202608-9f2c41ab. Uniqueness is
// enforced by the database, the random tail just keeps collisions unlikely.
func (s *service) nextNumber() string {
	tail := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("INV-%s-%s", s.now().UTC().Format("200601"), tail)
}
