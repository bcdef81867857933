package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digibazaar/digibazaar-backend/pkg/db/models"
	"github.com/digibazaar/digibazaar-backend/pkg/enums"
	pkgerrors "github.com/digibazaar/digibazaar-backend/pkg/errors"
	"github.com/digibazaar/digibazaar-backend/pkg/logger"
)

// Balance is the derived view of a seller's funds. It is recomputed on every
// read; nothing here is persisted.
type Balance struct {
	AvailablePaise      int64 `json:"available_paise"`
	PendingPaise        int64 `json:"pending_paise"`
	ReservedPaise       int64 `json:"reserved_paise"`
	TotalEarningsPaise  int64 `json:"total_earnings_paise"`
	TotalWithdrawnPaise int64 `json:"total_withdrawn_paise"`
}

// OrderEarning is one paid order's contribution to the balance, joined with
// its invoice for the commission/GST figures.
type OrderEarning struct {
	OrderID           uuid.UUID
	AmountPaise       int64
	PlatformFeePaise  int64
	GSTAmountPaise    int64
	SellerAmountPaise int64
	PaidAt            time.Time
}

// Statement is the balance plus the mature orders backing it, used by the
// payout workflow to freeze a breakdown snapshot.
type Statement struct {
	Balance      Balance
	MatureOrders []OrderEarning
	AsOf         time.Time
}

// Service derives seller balances from orders, invoices and payout history.
type Service interface {
	WithTx(tx *gorm.DB) Service
	GetBalance(ctx context.Context, sellerID uuid.UUID) (*Balance, error)
	GetStatement(ctx context.Context, sellerID uuid.UUID) (*Statement, error)
}

type service struct {
	repo    Repository
	logg    *logger.Logger
	holding time.Duration
	now     func() time.Time
}

// NewService wires a ledger service with the provided repository and holding window.
func NewService(repo Repository, logg *logger.Logger, holdingPeriod time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if holdingPeriod < 0 {
		return nil, fmt.Errorf("holding period must be non-negative")
	}
	return &service{
		repo:    repo,
		logg:    logg,
		holding: holdingPeriod,
		now:     time.Now,
	}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{
		repo:    s.repo.WithTx(tx),
		logg:    s.logg,
		holding: s.holding,
		now:     s.now,
	}
}

func (s *service) GetBalance(ctx context.Context, sellerID uuid.UUID) (*Balance, error) {
	statement, err := s.GetStatement(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	return &statement.Balance, nil
}

func (s *service) GetStatement(ctx context.Context, sellerID uuid.UUID) (*Statement, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}

	orders, err := s.repo.ListPaidOrders(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load paid orders")
	}
	invoices, err := s.repo.ListActiveInvoices(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoices")
	}
	payouts, err := s.repo.ListPayouts(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payouts")
	}

	invoiceByOrder := make(map[uuid.UUID]models.Invoice, len(invoices))
	for _, inv := range invoices {
		invoiceByOrder[inv.OrderID] = inv
	}

	now := s.now()
	cutoff := now.Add(-s.holding)

	statement := &Statement{AsOf: now}
	var matureSum int64

	for _, order := range orders {
		invoice, ok := invoiceByOrder[order.ID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeBalanceIntegrity, "paid order has no invoice").
				WithDetails(map[string]any{"order_id": order.ID})
		}
		if !order.SplitBalanced() {
			return nil, pkgerrors.New(pkgerrors.CodeBalanceIntegrity, "order commission split does not balance").
				WithDetails(map[string]any{"order_id": order.ID})
		}
		if order.PaidAt == nil {
			return nil, pkgerrors.New(pkgerrors.CodeBalanceIntegrity, "paid order missing paid_at").
				WithDetails(map[string]any{"order_id": order.ID})
		}
		if order.IsRefunded {
			continue
		}

		statement.Balance.TotalEarningsPaise += order.SellerAmountPaise

		if order.PaidAt.After(cutoff) {
			statement.Balance.PendingPaise += order.SellerAmountPaise
			continue
		}

		matureSum += order.SellerAmountPaise
		statement.MatureOrders = append(statement.MatureOrders, OrderEarning{
			OrderID:           order.ID,
			AmountPaise:       order.AmountPaise,
			PlatformFeePaise:  order.PlatformFeePaise,
			GSTAmountPaise:    invoice.GSTAmountPaise,
			SellerAmountPaise: order.SellerAmountPaise,
			PaidAt:            *order.PaidAt,
		})
	}

	for _, payout := range payouts {
		switch payout.Status {
		case enums.PayoutStatusPending, enums.PayoutStatusProcessing:
			statement.Balance.ReservedPaise += payout.NetPayablePaise
		case enums.PayoutStatusPaid:
			statement.Balance.TotalWithdrawnPaise += payout.NetPayablePaise
		}
	}

	available := matureSum - statement.Balance.ReservedPaise - statement.Balance.TotalWithdrawnPaise
	if available < 0 {
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"seller_id":       sellerID.String(),
				"available_paise": available,
			})
			s.logg.Warn(logCtx, "seller balance derived negative, flooring at zero")
		}
		available = 0
	}
	statement.Balance.AvailablePaise = available

	return statement, nil
}
