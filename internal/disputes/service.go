package disputes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digibazaar/digibazaar-backend/internal/orders"
	"github.com/digibazaar/digibazaar-backend/internal/payouts"
	"github.com/digibazaar/digibazaar-backend/pkg/db"
	"github.com/digibazaar/digibazaar-backend/pkg/db/models"
	"github.com/digibazaar/digibazaar-backend/pkg/enums"
	pkgerrors "github.com/digibazaar/digibazaar-backend/pkg/errors"
	"github.com/digibazaar/digibazaar-backend/pkg/metrics"
	"github.com/digibazaar/digibazaar-backend/pkg/outbox"
	"github.com/digibazaar/digibazaar-backend/pkg/outbox/payloads"
	"github.com/digibazaar/digibazaar-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OpenInput is a buyer's complaint against a paid order.
type OpenInput struct {
	OrderID     uuid.UUID
	BuyerUserID uuid.UUID
	Reason      string
	Actor       *outbox.ActorRef
}

// ResolveInput carries an admin decision on an open dispute.
type ResolveInput struct {
	DisputeID uuid.UUID
	AdminID   uuid.UUID
	AdminNote *string
	RefundID  *string
	Actor     *outbox.ActorRef
}

// Service runs the dispute lifecycle and the refund reconciliation that an
// approval triggers.
type Service interface {
	Open(ctx context.Context, input OpenInput) (*models.Dispute, error)
	Approve(ctx context.Context, input ResolveInput) (*models.Dispute, error)
	Reject(ctx context.Context, input ResolveInput) (*models.Dispute, error)
	Get(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error)
	ListByStatus(ctx context.Context, status *enums.DisputeStatus, params pagination.Params) ([]models.Dispute, pagination.Page, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.Dispute, pagination.Page, error)
}

type service struct {
	repo    Repository
	orders  orders.Repository
	payouts payouts.Repository
	tx      txRunner
	outbox  outboxPublisher
	stats   *metrics.SettlementMetrics
	now     func() time.Time
}

// NewService wires the dispute workflow against its collaborators.
func NewService(repo Repository, ordersRepo orders.Repository, payoutsRepo payouts.Repository, tx txRunner, outboxSvc outboxPublisher, stats *metrics.SettlementMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("disputes repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if payoutsRepo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    repo,
		orders:  ordersRepo,
		payouts: payoutsRepo,
		tx:      tx,
		outbox:  outboxSvc,
		stats:   stats,
		now:     time.Now,
	}, nil
}

// Open raises a dispute against a paid order. A second open dispute on the
// same order is refused; the partial unique index backs the check under
// concurrency.
func (s *service) Open(ctx context.Context, input OpenInput) (*models.Dispute, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.BuyerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason required")
	}

	var opened *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		order, err := ordersRepo.FindByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.BuyerUserID != input.BuyerUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to the buyer")
		}
		if order.Status != enums.OrderStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only paid orders can be disputed")
		}
		if order.IsRefunded {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already refunded")
		}

		repo := s.repo.WithTx(tx)
		if existing, err := repo.FindOpenByOrder(ctx, input.OrderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open dispute")
		} else if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already has an open dispute")
		}

		dispute := &models.Dispute{
			OrderID:     input.OrderID,
			BuyerUserID: input.BuyerUserID,
			Reason:      input.Reason,
			Status:      enums.DisputeStatusOpen,
		}
		if err := repo.Create(ctx, dispute); err != nil {
			if db.IsUniqueViolation(err, "ux_disputes_order_open") {
				return pkgerrors.New(pkgerrors.CodeConflict, "order already has an open dispute")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dispute")
		}

		event := outbox.DomainEvent{
			EventType:     enums.OutboxEventDisputeOpened,
			AggregateType: enums.OutboxAggregateDispute,
			AggregateID:   dispute.ID,
			Actor:         input.Actor,
			Data: payloads.DisputeOpenedEvent{
				DisputeID: dispute.ID,
				OrderID:   order.ID,
				SellerID:  order.SellerID,
				BuyerID:   order.BuyerUserID,
				Reason:    input.Reason,
			},
			Version:    1,
			OccurredAt: s.now(),
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
		opened = dispute
		return nil
	})
	if err != nil {
		return nil, err
	}
	return opened, nil
}

// Approve upholds the dispute and refunds the order. All writes commit
// together; when a settled payout already covered the order, the refund still
// stands and the caller gets a clawback error referencing that payout so the
// recovery can be reconciled manually.
func (s *service) Approve(ctx context.Context, input ResolveInput) (*models.Dispute, error) {
	if input.DisputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id required")
	}

	var resolved *models.Dispute
	var clawbackPayoutID *uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		dispute, err := s.load(ctx, repo, input.DisputeID)
		if err != nil {
			return err
		}
		if !dispute.Status.CanTransition(enums.DisputeStatusApproved) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "dispute is already resolved")
		}

		ordersRepo := s.orders.WithTx(tx)
		order, err := ordersRepo.FindByID(ctx, dispute.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load disputed order")
		}

		resolvedAt := s.now()
		refundID := input.RefundID
		if refundID == nil {
			generated := fmt.Sprintf("rfnd_%s", uuid.NewString())
			refundID = &generated
		}

		updates := map[string]any{
			"status":      enums.DisputeStatusApproved,
			"resolved_by": input.AdminID,
			"resolved_at": resolvedAt,
			"refund_id":   *refundID,
		}
		if input.AdminNote != nil {
			updates["admin_note"] = *input.AdminNote
		}
		if err := repo.Update(ctx, dispute.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve dispute")
		}

		if err := ordersRepo.Update(ctx, order.ID, map[string]any{
			"is_refunded": true,
			"refund_id":   *refundID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order refunded")
		}

		dispute.Status = enums.DisputeStatusApproved
		dispute.ResolvedBy = &input.AdminID
		dispute.ResolvedAt = &resolvedAt
		dispute.RefundID = refundID
		dispute.AdminNote = input.AdminNote

		covering, err := s.payouts.WithTx(tx).FindPaidCoveringOrder(ctx, order.SellerID, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check settled payouts")
		}
		if covering != nil {
			clawbackPayoutID = &covering.ID
		}

		refunded := outbox.DomainEvent{
			EventType:     enums.OutboxEventOrderRefunded,
			AggregateType: enums.OutboxAggregateOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor,
			Data: payloads.OrderRefundedEvent{
				OrderID:     order.ID,
				SellerID:    order.SellerID,
				DisputeID:   dispute.ID,
				AmountPaise: order.AmountPaise,
				RefundedAt:  resolvedAt,
			},
			Version:    1,
			OccurredAt: resolvedAt,
		}
		if err := s.outbox.Emit(ctx, tx, refunded); err != nil {
			return err
		}

		if err := s.emitResolved(ctx, tx, dispute, order, clawbackPayoutID != nil, resolvedAt, input.Actor); err != nil {
			return err
		}
		resolved = dispute
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.stats.IncDisputeResolved("approved")
	if clawbackPayoutID != nil {
		s.stats.IncClawbackFlagged()
		return resolved, pkgerrors.New(pkgerrors.CodeClawbackRequired, "refunded order was already covered by a settled payout").
			WithDetails(map[string]any{
				"payout_id":  clawbackPayoutID.String(),
				"dispute_id": resolved.ID.String(),
			})
	}
	return resolved, nil
}

// Reject closes the dispute without touching the order or the ledger.
func (s *service) Reject(ctx context.Context, input ResolveInput) (*models.Dispute, error) {
	if input.DisputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id required")
	}

	var resolved *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		dispute, err := s.load(ctx, repo, input.DisputeID)
		if err != nil {
			return err
		}
		if !dispute.Status.CanTransition(enums.DisputeStatusRejected) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "dispute is already resolved")
		}

		order, err := s.orders.WithTx(tx).FindByID(ctx, dispute.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load disputed order")
		}

		resolvedAt := s.now()
		updates := map[string]any{
			"status":      enums.DisputeStatusRejected,
			"resolved_by": input.AdminID,
			"resolved_at": resolvedAt,
		}
		if input.AdminNote != nil {
			updates["admin_note"] = *input.AdminNote
		}
		if err := repo.Update(ctx, dispute.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject dispute")
		}

		dispute.Status = enums.DisputeStatusRejected
		dispute.ResolvedBy = &input.AdminID
		dispute.ResolvedAt = &resolvedAt
		dispute.AdminNote = input.AdminNote

		if err := s.emitResolved(ctx, tx, dispute, order, false, resolvedAt, input.Actor); err != nil {
			return err
		}
		resolved = dispute
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.stats.IncDisputeResolved("rejected")
	return resolved, nil
}

func (s *service) Get(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	return s.load(ctx, s.repo, disputeID)
}

func (s *service) ListByStatus(ctx context.Context, status *enums.DisputeStatus, params pagination.Params) ([]models.Dispute, pagination.Page, error) {
	disputes, total, err := s.repo.ListByStatus(ctx, status, params)
	if err != nil {
		return nil, pagination.Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list disputes")
	}
	return disputes, pagination.NewPage(params, total), nil
}

func (s *service) ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.Dispute, pagination.Page, error) {
	disputes, total, err := s.repo.ListBySeller(ctx, sellerID, params)
	if err != nil {
		return nil, pagination.Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list disputes")
	}
	return disputes, pagination.NewPage(params, total), nil
}

func (s *service) load(ctx context.Context, repo Repository, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, err := repo.FindByID(ctx, disputeID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispute")
	}
	return dispute, nil
}

func (s *service) emitResolved(ctx context.Context, tx *gorm.DB, dispute *models.Dispute, order *models.Order, clawback bool, resolvedAt time.Time, actor *outbox.ActorRef) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.OutboxEventDisputeResolved,
		AggregateType: enums.OutboxAggregateDispute,
		AggregateID:   dispute.ID,
		Actor:         actor,
		Data: payloads.DisputeResolvedEvent{
			DisputeID:        dispute.ID,
			OrderID:          order.ID,
			SellerID:         order.SellerID,
			Status:           dispute.Status,
			ClawbackRequired: clawback,
			ResolvedAt:       resolvedAt,
		},
		Version:    1,
		OccurredAt: resolvedAt,
	})
}
