package payouts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/digibazaar/digibazaar-backend/internal/ledger"
	"github.com/digibazaar/digibazaar-backend/pkg/config"
	"github.com/digibazaar/digibazaar-backend/pkg/db/models"
	"github.com/digibazaar/digibazaar-backend/pkg/enums"
	pkgerrors "github.com/digibazaar/digibazaar-backend/pkg/errors"
	"github.com/digibazaar/digibazaar-backend/pkg/outbox"
	"github.com/digibazaar/digibazaar-backend/pkg/pagination"
)

type stubPayoutsRepo struct {
	payouts   map[uuid.UUID]*models.Payout
	createErr error
	lockCalls int
}

func newStubPayoutsRepo() *stubPayoutsRepo {
	return &stubPayoutsRepo{payouts: make(map[uuid.UUID]*models.Payout)}
}

func (s *stubPayoutsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubPayoutsRepo) AcquireSellerLock(ctx context.Context, sellerID uuid.UUID) error {
	s.lockCalls++
	return nil
}

func (s *stubPayoutsRepo) Create(ctx context.Context, payout *models.Payout) error {
	if s.createErr != nil {
		err := s.createErr
		s.createErr = nil
		return err
	}
	if payout.ID == uuid.Nil {
		payout.ID = uuid.New()
	}
	s.payouts[payout.ID] = payout
	return nil
}

func (s *stubPayoutsRepo) FindByID(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	payout, ok := s.payouts[payoutID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *payout
	return &copied, nil
}

func (s *stubPayoutsRepo) Update(ctx context.Context, payoutID uuid.UUID, updates map[string]any) error {
	payout, ok := s.payouts[payoutID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := updates["status"].(enums.PayoutStatus); ok {
		payout.Status = v
	}
	if v, ok := updates["rejection_reason"].(string); ok {
		payout.RejectionReason = &v
	}
	if v, ok := updates["paid_at"].(time.Time); ok {
		payout.PaidAt = &v
	}
	if v, ok := updates["payment_reference"].(string); ok {
		payout.PaymentReference = &v
	}
	return nil
}

func (s *stubPayoutsRepo) ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params, status *enums.PayoutStatus) ([]models.Payout, int64, error) {
	out := []models.Payout{}
	for _, payout := range s.payouts {
		if payout.SellerID != sellerID {
			continue
		}
		if status != nil && payout.Status != *status {
			continue
		}
		out = append(out, *payout)
	}
	return out, int64(len(out)), nil
}

func (s *stubPayoutsRepo) ListByStatus(ctx context.Context, status *enums.PayoutStatus, params pagination.Params) ([]models.Payout, int64, error) {
	out := []models.Payout{}
	for _, payout := range s.payouts {
		if status != nil && payout.Status != *status {
			continue
		}
		out = append(out, *payout)
	}
	return out, int64(len(out)), nil
}

func (s *stubPayoutsRepo) CountReservingByBankAccount(ctx context.Context, bankAccountID uuid.UUID) (int64, error) {
	var count int64
	for _, payout := range s.payouts {
		if payout.BankAccountID == bankAccountID && !payout.Status.IsTerminal() {
			count++
		}
	}
	return count, nil
}

func (s *stubPayoutsRepo) CountReservingByBankAccountTx(ctx context.Context, tx *gorm.DB, bankAccountID uuid.UUID) (int64, error) {
	return s.CountReservingByBankAccount(ctx, bankAccountID)
}

func (s *stubPayoutsRepo) FindPaidCoveringOrder(ctx context.Context, sellerID, orderID uuid.UUID) (*models.Payout, error) {
	for _, payout := range s.payouts {
		if payout.SellerID == sellerID && payout.Status == enums.PayoutStatusPaid && payout.CoveredOrderIDs.Contains(orderID) {
			copied := *payout
			return &copied, nil
		}
	}
	return nil, nil
}

// reservedFor mirrors the ledger's reservation rule so the stub ledger can
// recompute available balance between requests.
func (s *stubPayoutsRepo) reservedFor(sellerID uuid.UUID) int64 {
	var reserved int64
	for _, payout := range s.payouts {
		if payout.SellerID != sellerID {
			continue
		}
		switch payout.Status {
		case enums.PayoutStatusPending, enums.PayoutStatusProcessing, enums.PayoutStatusPaid:
			reserved += payout.NetPayablePaise
		}
	}
	return reserved
}

type stubLedger struct {
	repo         *stubPayoutsRepo
	sellerID     uuid.UUID
	grossPaise   int64
	matureOrders []ledger.OrderEarning
}

func (s *stubLedger) WithTx(tx *gorm.DB) ledger.Service { return s }

func (s *stubLedger) GetStatement(ctx context.Context, sellerID uuid.UUID) (*ledger.Statement, error) {
	available := s.grossPaise
	if s.repo != nil {
		available -= s.repo.reservedFor(s.sellerID)
	}
	return &ledger.Statement{
		Balance:      ledger.Balance{AvailablePaise: available},
		MatureOrders: s.matureOrders,
		AsOf:         time.Now().UTC(),
	}, nil
}

func (s *stubLedger) GetBalance(ctx context.Context, sellerID uuid.UUID) (*ledger.Balance, error) {
	statement, err := s.GetStatement(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	return &statement.Balance, nil
}

type stubBankReader struct {
	accounts map[uuid.UUID]*models.BankAccount
}

func (s *stubBankReader) FindForSeller(ctx context.Context, sellerID, accountID uuid.UUID) (*models.BankAccount, error) {
	account, ok := s.accounts[accountID]
	if !ok || account.SellerID != sellerID {
		return nil, nil
	}
	return account, nil
}

type stubPayoutOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubPayoutOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubPayoutOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubPayoutOutbox) lastType(t *testing.T) enums.OutboxEventType {
	t.Helper()
	if len(s.events) == 0 {
		t.Fatal("no events emitted")
	}
	return s.events[len(s.events)-1].EventType
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type payoutFixture struct {
	repo    *stubPayoutsRepo
	ledger  *stubLedger
	banks   *stubBankReader
	outbox  *stubPayoutOutbox
	svc     Service
	seller  uuid.UUID
	account uuid.UUID
}

func newPayoutFixture(t *testing.T, grossPaise int64, verified bool) *payoutFixture {
	t.Helper()

	sellerID := uuid.New()
	accountID := uuid.New()
	repo := newStubPayoutsRepo()
	led := &stubLedger{
		repo:       repo,
		sellerID:   sellerID,
		grossPaise: grossPaise,
		matureOrders: []ledger.OrderEarning{
			{OrderID: uuid.New(), AmountPaise: 100000, PlatformFeePaise: 10000, GSTAmountPaise: 1800, SellerAmountPaise: 90000},
		},
	}
	banks := &stubBankReader{accounts: map[uuid.UUID]*models.BankAccount{
		accountID: {ID: accountID, SellerID: sellerID, IsVerified: verified},
	}}
	ob := &stubPayoutOutbox{}

	cfg := config.SettlementConfig{MinimumPayoutPaise: 50000}
	svc, err := NewService(repo, led, banks, stubTxRunner{}, ob, nil, cfg)
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return &payoutFixture{repo: repo, ledger: led, banks: banks, outbox: ob, svc: svc, seller: sellerID, account: accountID}
}

func (f *payoutFixture) request(t *testing.T, amount int64) (*models.Payout, error) {
	t.Helper()
	return f.svc.Request(context.Background(), RequestInput{
		SellerID:      f.seller,
		BankAccountID: f.account,
		AmountPaise:   amount,
	})
}

func TestRequestFreezesSnapshot(t *testing.T) {
	f := newPayoutFixture(t, 90000, true)

	payout, err := f.request(t, 88000)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if payout.NetPayablePaise != 88000 {
		t.Fatalf("net payable %d, want requested amount", payout.NetPayablePaise)
	}
	if payout.PlatformCommissionPaise != 10000 || payout.GSTOnCommissionPaise != 1800 {
		t.Fatalf("unexpected deduction breakdown %d/%d", payout.PlatformCommissionPaise, payout.GSTOnCommissionPaise)
	}
	if payout.TotalDeductionsPaise != 11800 {
		t.Fatalf("unexpected total deductions %d", payout.TotalDeductionsPaise)
	}
	if payout.TotalEarningsPaise != 99800 {
		t.Fatalf("unexpected total earnings %d", payout.TotalEarningsPaise)
	}
	if !payout.SnapshotBalanced() {
		t.Fatal("snapshot does not balance")
	}
	if len(payout.CoveredOrderIDs) != 1 {
		t.Fatalf("expected covered orders recorded, got %d", len(payout.CoveredOrderIDs))
	}
	if payout.Status != enums.PayoutStatusPending {
		t.Fatalf("unexpected status %s", payout.Status)
	}
	if f.outbox.lastType(t) != enums.OutboxEventPayoutRequested {
		t.Fatalf("unexpected event %s", f.outbox.lastType(t))
	}
}

func TestRequestBelowMinimum(t *testing.T) {
	f := newPayoutFixture(t, 90000, true)

	_, err := f.request(t, 49999)
	if !pkgerrors.HasCode(err, pkgerrors.CodeMinimumNotMet) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestRequestUnverifiedBank(t *testing.T) {
	f := newPayoutFixture(t, 90000, false)

	_, err := f.request(t, 60000)
	if !pkgerrors.HasCode(err, pkgerrors.CodeBankNotVerified) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestRequestUnknownBankAccount(t *testing.T) {
	f := newPayoutFixture(t, 90000, true)

	_, err := f.svc.Request(context.Background(), RequestInput{
		SellerID:      f.seller,
		BankAccountID: uuid.New(),
		AmountPaise:   60000,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestRequestInsufficientBalance(t *testing.T) {
	f := newPayoutFixture(t, 50000, true)

	_, err := f.request(t, 60000)
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestRequestSecondWithdrawalCannotDoubleSpend(t *testing.T) {
	f := newPayoutFixture(t, 60000, true)

	first, err := f.request(t, 50000)
	if err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if first.NetPayablePaise != 50000 {
		t.Fatalf("unexpected reservation %d", first.NetPayablePaise)
	}

	_, err = f.request(t, 50000)
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance) {
		t.Fatalf("expected insufficient balance after reservation, got %v", err)
	}
}

func TestRequestRetriesSerializationFailure(t *testing.T) {
	f := newPayoutFixture(t, 90000, true)
	f.repo.createErr = &pgconn.PgError{Code: "40001"}

	payout, err := f.request(t, 60000)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if payout.Status != enums.PayoutStatusPending {
		t.Fatalf("unexpected status %s", payout.Status)
	}
}

// serialTxRunner stands in for the per-seller advisory lock: transactions
// run one at a time, so the second request sees the first one's reservation.
type serialTxRunner struct {
	mu sync.Mutex
}

func (s *serialTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&gorm.DB{})
}

func TestRequestConcurrentWithdrawalsSingleWinner(t *testing.T) {
	sellerID := uuid.New()
	accountID := uuid.New()
	repo := newStubPayoutsRepo()
	led := &stubLedger{
		repo:       repo,
		sellerID:   sellerID,
		grossPaise: 60000,
		matureOrders: []ledger.OrderEarning{
			{OrderID: uuid.New(), AmountPaise: 66667, PlatformFeePaise: 6667, GSTAmountPaise: 1200, SellerAmountPaise: 60000},
		},
	}
	banks := &stubBankReader{accounts: map[uuid.UUID]*models.BankAccount{
		accountID: {ID: accountID, SellerID: sellerID, IsVerified: true},
	}}

	cfg := config.SettlementConfig{MinimumPayoutPaise: 50000}
	svc, err := NewService(repo, led, banks, &serialTxRunner{}, &stubPayoutOutbox{}, nil, cfg)
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Request(context.Background(), RequestInput{
				SellerID:      sellerID,
				BankAccountID: accountID,
				AmountPaise:   50000,
			})
		}(i)
	}
	wg.Wait()

	var successes, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientBalance):
			insufficient++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if successes != 1 || insufficient != 1 {
		t.Fatalf("expected exactly one winner, got %d successes and %d balance refusals", successes, insufficient)
	}
	if len(repo.payouts) != 1 {
		t.Fatalf("expected a single payout row, got %d", len(repo.payouts))
	}
	if repo.lockCalls != 2 {
		t.Fatalf("expected both requests to take the seller lock, got %d", repo.lockCalls)
	}
}

func TestRequestAutoAcknowledge(t *testing.T) {
	f := newPayoutFixture(t, 90000, true)
	svc := f.svc.(*service)
	svc.cfg.AutoAcknowledge = true

	payout, err := f.request(t, 60000)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if payout.Status != enums.PayoutStatusProcessing {
		t.Fatalf("unexpected status %s", payout.Status)
	}
	if f.outbox.lastType(t) != enums.OutboxEventPayoutProcessing {
		t.Fatalf("unexpected event %s", f.outbox.lastType(t))
	}
}

func TestAcknowledgeTransitions(t *testing.T) {
	f := newPayoutFixture(t, 90000, true)
	payout, _ := f.request(t, 60000)

	adminID := uuid.New()
	acknowledged, err := f.svc.Acknowledge(context.Background(), payout.ID, adminID, nil)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if acknowledged.Status != enums.PayoutStatusProcessing {
		t.Fatalf("unexpected status %s", acknowledged.Status)
	}
	if f.outbox.lastType(t) != enums.OutboxEventPayoutProcessing {
		t.Fatalf("unexpected event %s", f.outbox.lastType(t))
	}

	before := len(f.outbox.events)
	again, err := f.svc.Acknowledge(context.Background(), payout.ID, adminID, nil)
	if err != nil {
		t.Fatalf("expected idempotent no-op got %v", err)
	}
	if again.Status != enums.PayoutStatusProcessing {
		t.Fatalf("unexpected status %s", again.Status)
	}
	if len(f.outbox.events) != before {
		t.Fatal("idempotent acknowledge emitted an event")
	}
}

func TestMarkPaidRequiresProcessing(t *testing.T) {
	f := newPayoutFixture(t, 90000, true)
	payout, _ := f.request(t, 60000)

	_, err := f.svc.MarkPaid(context.Background(), MarkPaidInput{
		PayoutID:         payout.ID,
		AdminID:          uuid.New(),
		PaymentMethod:    enums.PaymentMethodNEFT,
		PaymentReference: "UTR123",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestMarkPaidSettles(t *testing.T) {
	f := newPayoutFixture(t, 90000, true)
	payout, _ := f.request(t, 60000)
	adminID := uuid.New()
	if _, err := f.svc.Acknowledge(context.Background(), payout.ID, adminID, nil); err != nil {
		t.Fatalf("acknowledge failed: %v", err)
	}

	settled, err := f.svc.MarkPaid(context.Background(), MarkPaidInput{
		PayoutID:         payout.ID,
		AdminID:          adminID,
		PaymentMethod:    enums.PaymentMethodNEFT,
		PaymentReference: "UTR123",
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if settled.Status != enums.PayoutStatusPaid {
		t.Fatalf("unexpected status %s", settled.Status)
	}
	if settled.PaidAt == nil || settled.PaymentReference == nil {
		t.Fatal("settlement details not recorded")
	}
	if f.outbox.lastType(t) != enums.OutboxEventPayoutPaid {
		t.Fatalf("unexpected event %s", f.outbox.lastType(t))
	}

	before := len(f.outbox.events)
	if _, err := f.svc.MarkPaid(context.Background(), MarkPaidInput{
		PayoutID:         payout.ID,
		AdminID:          adminID,
		PaymentMethod:    enums.PaymentMethodNEFT,
		PaymentReference: "UTR123",
	}); err != nil {
		t.Fatalf("expected idempotent no-op got %v", err)
	}
	if len(f.outbox.events) != before {
		t.Fatal("idempotent settle emitted an event")
	}
}

func TestMarkPaidValidation(t *testing.T) {
	f := newPayoutFixture(t, 90000, true)
	payout, _ := f.request(t, 60000)

	_, err := f.svc.MarkPaid(context.Background(), MarkPaidInput{
		PayoutID:      payout.ID,
		AdminID:       uuid.New(),
		PaymentMethod: enums.PaymentMethodNEFT,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing reference, got %v", err)
	}

	_, err = f.svc.MarkPaid(context.Background(), MarkPaidInput{
		PayoutID:         payout.ID,
		AdminID:          uuid.New(),
		PaymentMethod:    enums.PaymentMethod("cheque"),
		PaymentReference: "UTR123",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown method, got %v", err)
	}
}

func TestRejectReleasesReservation(t *testing.T) {
	f := newPayoutFixture(t, 60000, true)
	payout, _ := f.request(t, 50000)

	rejected, err := f.svc.Reject(context.Background(), RejectInput{
		PayoutID: payout.ID,
		AdminID:  uuid.New(),
		Reason:   "bank details mismatch",
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if rejected.Status != enums.PayoutStatusRejected {
		t.Fatalf("unexpected status %s", rejected.Status)
	}
	if f.outbox.lastType(t) != enums.OutboxEventPayoutRejected {
		t.Fatalf("unexpected event %s", f.outbox.lastType(t))
	}

	// The reservation is released, so the same amount can be requested again.
	if _, err := f.request(t, 50000); err != nil {
		t.Fatalf("expected balance released after rejection, got %v", err)
	}

	if _, err := f.svc.Reject(context.Background(), RejectInput{
		PayoutID: payout.ID,
		AdminID:  uuid.New(),
		Reason:   "again",
	}); err != nil {
		t.Fatalf("expected idempotent no-op got %v", err)
	}
}

func TestRejectPaidPayout(t *testing.T) {
	f := newPayoutFixture(t, 90000, true)
	payout, _ := f.request(t, 60000)
	adminID := uuid.New()
	f.svc.Acknowledge(context.Background(), payout.ID, adminID, nil)
	f.svc.MarkPaid(context.Background(), MarkPaidInput{
		PayoutID:         payout.ID,
		AdminID:          adminID,
		PaymentMethod:    enums.PaymentMethodUPI,
		PaymentReference: "UTR999",
	})

	_, err := f.svc.Reject(context.Background(), RejectInput{
		PayoutID: payout.ID,
		AdminID:  adminID,
		Reason:   "too late",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestCancelPendingPayout(t *testing.T) {
	f := newPayoutFixture(t, 90000, true)
	payout, _ := f.request(t, 60000)

	cancelled, err := f.svc.Cancel(context.Background(), f.seller, payout.ID, nil)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if cancelled.Status != enums.PayoutStatusRejected {
		t.Fatalf("unexpected status %s", cancelled.Status)
	}
	if cancelled.RejectionReason == nil || *cancelled.RejectionReason != "cancelled by seller" {
		t.Fatalf("unexpected reason %v", cancelled.RejectionReason)
	}
}

func TestCancelProcessingPayout(t *testing.T) {
	f := newPayoutFixture(t, 90000, true)
	payout, _ := f.request(t, 60000)
	f.svc.Acknowledge(context.Background(), payout.ID, uuid.New(), nil)

	cancelled, err := f.svc.Cancel(context.Background(), f.seller, payout.ID, nil)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if cancelled.Status != enums.PayoutStatusRejected {
		t.Fatalf("unexpected status %s", cancelled.Status)
	}
	if cancelled.RejectionReason == nil || *cancelled.RejectionReason != "cancelled by seller" {
		t.Fatalf("unexpected reason %v", cancelled.RejectionReason)
	}
}

func TestCancelRejectsPaidPayout(t *testing.T) {
	f := newPayoutFixture(t, 90000, true)
	payout, _ := f.request(t, 60000)
	adminID := uuid.New()
	f.svc.Acknowledge(context.Background(), payout.ID, adminID, nil)
	f.svc.MarkPaid(context.Background(), MarkPaidInput{
		PayoutID:         payout.ID,
		AdminID:          adminID,
		PaymentMethod:    enums.PaymentMethodUPI,
		PaymentReference: "UTR555",
	})

	_, err := f.svc.Cancel(context.Background(), f.seller, payout.ID, nil)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	f := newPayoutFixture(t, 90000, true)
	payout, _ := f.request(t, 60000)

	if _, err := f.svc.Get(context.Background(), f.seller, payout.ID); err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), uuid.New(), payout.ID); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatal("expected not found for foreign seller")
	}
}
