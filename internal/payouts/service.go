package payouts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digibazaar/digibazaar-backend/internal/ledger"
	"github.com/digibazaar/digibazaar-backend/pkg/config"
	"github.com/digibazaar/digibazaar-backend/pkg/db"
	"github.com/digibazaar/digibazaar-backend/pkg/db/models"
	dbtypes "github.com/digibazaar/digibazaar-backend/pkg/db/types"
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
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// BankAccountReader resolves a seller's payout destination for the verified
// precondition check.
type BankAccountReader interface {
	FindForSeller(ctx context.Context, sellerID, accountID uuid.UUID) (*models.BankAccount, error)
}

// RequestInput carries a seller's withdrawal request.
type RequestInput struct {
	SellerID      uuid.UUID
	BankAccountID uuid.UUID
	AmountPaise   int64
	Notes         *string
	Actor         *outbox.ActorRef
}

// MarkPaidInput records how an admin settled a processing payout.
type MarkPaidInput struct {
	PayoutID         uuid.UUID
	AdminID          uuid.UUID
	PaymentMethod    enums.PaymentMethod
	PaymentReference string
	PaymentNotes     *string
	PaidAt           time.Time
	Actor            *outbox.ActorRef
}

// RejectInput carries an admin rejection of a payout.
type RejectInput struct {
	PayoutID uuid.UUID
	AdminID  uuid.UUID
	Reason   string
	Actor    *outbox.ActorRef
}

// Service runs the payout state machine from request to settlement.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.Payout, error)
	Acknowledge(ctx context.Context, payoutID, adminID uuid.UUID, actor *outbox.ActorRef) (*models.Payout, error)
	MarkPaid(ctx context.Context, input MarkPaidInput) (*models.Payout, error)
	Reject(ctx context.Context, input RejectInput) (*models.Payout, error)
	Cancel(ctx context.Context, sellerID, payoutID uuid.UUID, actor *outbox.ActorRef) (*models.Payout, error)
	Get(ctx context.Context, sellerID, payoutID uuid.UUID) (*models.Payout, error)
	History(ctx context.Context, sellerID uuid.UUID, params pagination.Params, status *enums.PayoutStatus) ([]models.Payout, pagination.Page, error)
	ListAll(ctx context.Context, status *enums.PayoutStatus, params pagination.Params) ([]models.Payout, pagination.Page, error)
}

type service struct {
	repo   Repository
	ledger ledger.Service
	banks  BankAccountReader
	tx     txRunner
	outbox outboxPublisher
	stats  *metrics.SettlementMetrics
	cfg    config.SettlementConfig
	now    func() time.Time
}

// NewService wires the payout workflow against its collaborators.
func NewService(repo Repository, ledgerSvc ledger.Service, banks BankAccountReader, tx txRunner, outboxSvc outboxPublisher, stats *metrics.SettlementMetrics, cfg config.SettlementConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if banks == nil {
		return nil, fmt.Errorf("bank account reader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		ledger: ledgerSvc,
		banks:  banks,
		tx:     tx,
		outbox: outboxSvc,
		stats:  stats,
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

// Request validates the withdrawal, reserves the amount and freezes the
// earnings breakdown. The balance check and the insert run under a per-seller
// advisory lock so two concurrent requests cannot both pass against the same
// available balance.
func (s *service) Request(ctx context.Context, input RequestInput) (*models.Payout, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if input.BankAccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bank account id required")
	}
	if input.AmountPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.AmountPaise < s.cfg.MinimumPayoutPaise {
		s.stats.ObservePayoutRequest("minimum_not_met", input.AmountPaise)
		return nil, pkgerrors.New(pkgerrors.CodeMinimumNotMet, "amount is below the minimum payout").
			WithDetails(map[string]any{"minimum_paise": s.cfg.MinimumPayoutPaise})
	}

	account, err := s.banks.FindForSeller(ctx, input.SellerID, input.BankAccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bank account not found")
	}
	if !account.IsVerified {
		s.stats.ObservePayoutRequest("bank_not_verified", input.AmountPaise)
		return nil, pkgerrors.New(pkgerrors.CodeBankNotVerified, "bank account is not verified")
	}

	payout, err := s.requestOnce(ctx, input)
	if db.IsSerializationFailure(err) {
		payout, err = s.requestOnce(ctx, input)
		if db.IsSerializationFailure(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "concurrent payout request, retry")
		}
	}
	if err != nil {
		return nil, err
	}
	s.stats.ObservePayoutRequest("accepted", input.AmountPaise)
	return payout, nil
}

func (s *service) requestOnce(ctx context.Context, input RequestInput) (*models.Payout, error) {
	var created *models.Payout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.AcquireSellerLock(ctx, input.SellerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire seller lock")
		}

		statement, err := s.ledger.WithTx(tx).GetStatement(ctx, input.SellerID)
		if err != nil {
			return err
		}
		if statement.Balance.AvailablePaise < input.AmountPaise {
			s.stats.ObservePayoutRequest("insufficient_balance", input.AmountPaise)
			return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "requested amount exceeds available balance").
				WithDetails(map[string]any{
					"available_paise": statement.Balance.AvailablePaise,
					"requested_paise": input.AmountPaise,
				})
		}

		payout := buildSnapshot(input, statement)
		if err := repo.Create(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
		}

		if err := s.emitStatus(ctx, tx, payout, enums.OutboxEventPayoutRequested, "", input.Actor); err != nil {
			return err
		}

		if s.cfg.AutoAcknowledge {
			if err := repo.Update(ctx, payout.ID, map[string]any{"status": enums.PayoutStatusProcessing}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "auto acknowledge payout")
			}
			payout.Status = enums.PayoutStatusProcessing
			if err := s.emitStatus(ctx, tx, payout, enums.OutboxEventPayoutProcessing, "", input.Actor); err != nil {
				return err
			}
		}

		created = payout
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// buildSnapshot freezes the breakdown behind the requested amount. The net
// payable equals the request exactly; commission and GST are the platform
// charges already retained on the mature orders backing the balance, grossed
// back into total earnings so the row justifies its own arithmetic.
func buildSnapshot(input RequestInput, statement *ledger.Statement) *models.Payout {
	var commission, gst int64
	covered := make(dbtypes.UUIDArray, 0, len(statement.MatureOrders))
	for _, earning := range statement.MatureOrders {
		commission += earning.PlatformFeePaise
		gst += earning.GSTAmountPaise
		covered = append(covered, earning.OrderID)
	}
	deductions := commission + gst

	return &models.Payout{
		SellerID:                input.SellerID,
		BankAccountID:           input.BankAccountID,
		AmountPaise:             input.AmountPaise,
		TotalEarningsPaise:      input.AmountPaise + deductions,
		PlatformCommissionPaise: commission,
		GSTOnCommissionPaise:    gst,
		TotalDeductionsPaise:    deductions,
		NetPayablePaise:         input.AmountPaise,
		CoveredOrderIDs:         covered,
		Status:                  enums.PayoutStatusPending,
		Notes:                   input.Notes,
	}
}

// Acknowledge moves a pending payout to processing, signalling an admin has
// picked it up for settlement.
func (s *service) Acknowledge(ctx context.Context, payoutID, adminID uuid.UUID, actor *outbox.ActorRef) (*models.Payout, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}

	var acknowledged *models.Payout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := s.load(ctx, repo, payoutID)
		if err != nil {
			return err
		}
		if payout.Status == enums.PayoutStatusProcessing {
			acknowledged = payout
			return nil
		}
		if !payout.Status.CanTransition(enums.PayoutStatusProcessing) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payout cannot move to processing")
		}

		if err := repo.Update(ctx, payout.ID, map[string]any{"status": enums.PayoutStatusProcessing}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payout status")
		}
		payout.Status = enums.PayoutStatusProcessing

		if err := s.emitStatus(ctx, tx, payout, enums.OutboxEventPayoutProcessing, "", actor); err != nil {
			return err
		}
		acknowledged = payout
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acknowledged, nil
}

// MarkPaid settles a processing payout. The payment reference is mandatory
// so every settled row can be traced back to a bank transaction.
func (s *service) MarkPaid(ctx context.Context, input MarkPaidInput) (*models.Payout, error) {
	if input.PayoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	if input.PaymentReference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}

	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}

	var settled *models.Payout
	var transitioned bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := s.load(ctx, repo, input.PayoutID)
		if err != nil {
			return err
		}
		if payout.Status == enums.PayoutStatusPaid {
			settled = payout
			return nil
		}
		if !payout.Status.CanTransition(enums.PayoutStatusPaid) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only processing payouts can be marked paid")
		}

		updates := map[string]any{
			"status":            enums.PayoutStatusPaid,
			"paid_by":           input.AdminID,
			"paid_at":           paidAt,
			"payment_method":    input.PaymentMethod,
			"payment_reference": input.PaymentReference,
		}
		if input.PaymentNotes != nil {
			updates["payment_notes"] = *input.PaymentNotes
		}
		if err := repo.Update(ctx, payout.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle payout")
		}

		payout.Status = enums.PayoutStatusPaid
		payout.PaidBy = &input.AdminID
		payout.PaidAt = &paidAt
		payout.PaymentMethod = &input.PaymentMethod
		payout.PaymentReference = &input.PaymentReference
		payout.PaymentNotes = input.PaymentNotes

		event := outbox.DomainEvent{
			EventType:     enums.OutboxEventPayoutPaid,
			AggregateType: enums.OutboxAggregatePayout,
			AggregateID:   payout.ID,
			Actor:         input.Actor,
			Data: payloads.PayoutPaidEvent{
				PayoutID:         payout.ID,
				SellerID:         payout.SellerID,
				NetPayablePaise:  payout.NetPayablePaise,
				PaymentMethod:    input.PaymentMethod,
				PaymentReference: input.PaymentReference,
				PaidAt:           paidAt,
			},
			Version:    1,
			OccurredAt: paidAt,
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return err
		}
		settled = payout
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if transitioned {
		s.stats.IncPayoutSettled()
	}
	return settled, nil
}

// Reject declines a payout and releases its reservation. Rejecting an
// already rejected payout is a no-op.
func (s *service) Reject(ctx context.Context, input RejectInput) (*models.Payout, error) {
	if input.PayoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
	}
	return s.reject(ctx, input.PayoutID, input.Reason, input.Actor)
}

// Cancel lets a seller withdraw their own request before settlement, whether
// it is still pending or already acknowledged. It lands in the rejected state
// with a system reason so the history reads the same way.
func (s *service) Cancel(ctx context.Context, sellerID, payoutID uuid.UUID, actor *outbox.ActorRef) (*models.Payout, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}

	payout, err := s.Get(ctx, sellerID, payoutID)
	if err != nil {
		return nil, err
	}
	if payout.Status != enums.PayoutStatusPending && payout.Status != enums.PayoutStatusProcessing {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "settled payouts cannot be cancelled")
	}
	return s.reject(ctx, payoutID, "cancelled by seller", actor)
}

func (s *service) reject(ctx context.Context, payoutID uuid.UUID, reason string, actor *outbox.ActorRef) (*models.Payout, error) {
	var rejected *models.Payout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := s.load(ctx, repo, payoutID)
		if err != nil {
			return err
		}
		if payout.Status == enums.PayoutStatusRejected {
			rejected = payout
			return nil
		}
		if !payout.Status.CanTransition(enums.PayoutStatusRejected) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "paid payouts cannot be rejected")
		}

		updates := map[string]any{
			"status":           enums.PayoutStatusRejected,
			"rejection_reason": reason,
		}
		if err := repo.Update(ctx, payout.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject payout")
		}
		payout.Status = enums.PayoutStatusRejected
		payout.RejectionReason = &reason

		if err := s.emitStatus(ctx, tx, payout, enums.OutboxEventPayoutRejected, reason, actor); err != nil {
			return err
		}
		rejected = payout
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

// Get returns the payout when it belongs to the seller.
func (s *service) Get(ctx context.Context, sellerID, payoutID uuid.UUID) (*models.Payout, error) {
	payout, err := s.load(ctx, s.repo, payoutID)
	if err != nil {
		return nil, err
	}
	if payout.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
	}
	return payout, nil
}

func (s *service) History(ctx context.Context, sellerID uuid.UUID, params pagination.Params, status *enums.PayoutStatus) ([]models.Payout, pagination.Page, error) {
	payouts, total, err := s.repo.ListBySeller(ctx, sellerID, params, status)
	if err != nil {
		return nil, pagination.Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	return payouts, pagination.NewPage(params, total), nil
}

func (s *service) ListAll(ctx context.Context, status *enums.PayoutStatus, params pagination.Params) ([]models.Payout, pagination.Page, error) {
	payouts, total, err := s.repo.ListByStatus(ctx, status, params)
	if err != nil {
		return nil, pagination.Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	return payouts, pagination.NewPage(params, total), nil
}

func (s *service) load(ctx context.Context, repo Repository, payoutID uuid.UUID) (*models.Payout, error) {
	payout, err := repo.FindByID(ctx, payoutID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	return payout, nil
}

func (s *service) emitStatus(ctx context.Context, tx *gorm.DB, payout *models.Payout, eventType enums.OutboxEventType, reason string, actor *outbox.ActorRef) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.OutboxAggregatePayout,
		AggregateID:   payout.ID,
		Actor:         actor,
		Data: payloads.PayoutStatusEvent{
			PayoutID:        payout.ID,
			SellerID:        payout.SellerID,
			Status:          payout.Status,
			NetPayablePaise: payout.NetPayablePaise,
			Reason:          reason,
		},
		Version:    1,
		OccurredAt: s.now(),
	})
}
