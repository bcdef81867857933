package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	internalbank "github.com/digibazaar/digibazaar-backend/internal/bank"
	"github.com/digibazaar/digibazaar-backend/internal/ledger"
	"github.com/digibazaar/digibazaar-backend/pkg/config"
	"github.com/digibazaar/digibazaar-backend/pkg/db/models"
	"github.com/digibazaar/digibazaar-backend/pkg/logger"

	"github.com/digibazaar/digibazaar-backend/api/middleware"
)

type stubLedgerService struct {
	balance *ledger.Balance
}

func (s *stubLedgerService) WithTx(tx *gorm.DB) ledger.Service { return s }

func (s *stubLedgerService) GetBalance(ctx context.Context, sellerID uuid.UUID) (*ledger.Balance, error) {
	return s.balance, nil
}

func (s *stubLedgerService) GetStatement(ctx context.Context, sellerID uuid.UUID) (*ledger.Statement, error) {
	return &ledger.Statement{Balance: *s.balance, AsOf: time.Now().UTC()}, nil
}

type stubBankService struct {
	accounts []models.BankAccount
}

func (s *stubBankService) AddAccount(ctx context.Context, input internalbank.AddAccountInput) (*models.BankAccount, error) {
	return nil, nil
}

func (s *stubBankService) List(ctx context.Context, sellerID uuid.UUID) ([]models.BankAccount, error) {
	return s.accounts, nil
}

func (s *stubBankService) Get(ctx context.Context, sellerID, accountID uuid.UUID) (*models.BankAccount, error) {
	return nil, nil
}

func (s *stubBankService) SetPrimary(ctx context.Context, sellerID, accountID uuid.UUID) (*models.BankAccount, error) {
	return nil, nil
}

func (s *stubBankService) Verify(ctx context.Context, input internalbank.VerifyInput) (*models.BankAccount, error) {
	return nil, nil
}

func (s *stubBankService) Remove(ctx context.Context, sellerID, accountID uuid.UUID) error {
	return nil
}

func TestSellerBalancePayload(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
	sellerID := uuid.New()
	primaryID := uuid.New()

	ledgerStub := &stubLedgerService{balance: &ledger.Balance{
		AvailablePaise:     90000,
		PendingPaise:       45000,
		TotalEarningsPaise: 135000,
	}}
	bankStub := &stubBankService{accounts: []models.BankAccount{
		{ID: uuid.New(), SellerID: sellerID, IsPrimary: false, IsVerified: true},
		{ID: primaryID, SellerID: sellerID, IsPrimary: true, IsVerified: true},
	}}
	cfg := config.SettlementConfig{MinimumPayoutPaise: 50000}

	ctx := middleware.WithSellerID(context.Background(), sellerID.String())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/seller/balance", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	SellerBalance(ledgerStub, bankStub, cfg, logg).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var envelope struct {
		Data struct {
			AvailablePaise     int64 `json:"available_paise"`
			MinimumPayoutPaise int64 `json:"minimum_payout_paise"`
			BankAccount        *struct {
				AccountID  uuid.UUID `json:"account_id"`
				IsVerified bool      `json:"is_verified"`
				IsPrimary  bool      `json:"is_primary"`
			} `json:"bank_account"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.AvailablePaise != 90000 {
		t.Fatalf("unexpected available %d", envelope.Data.AvailablePaise)
	}
	if envelope.Data.MinimumPayoutPaise != 50000 {
		t.Fatalf("expected minimum payout in payload, got %d", envelope.Data.MinimumPayoutPaise)
	}
	if envelope.Data.BankAccount == nil {
		t.Fatal("expected primary bank account block")
	}
	if envelope.Data.BankAccount.AccountID != primaryID {
		t.Fatalf("expected primary account, got %s", envelope.Data.BankAccount.AccountID)
	}
	if !envelope.Data.BankAccount.IsVerified || !envelope.Data.BankAccount.IsPrimary {
		t.Fatal("expected verified primary flags")
	}
}

func TestSellerBalanceNoBankAccounts(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
	sellerID := uuid.New()

	ledgerStub := &stubLedgerService{balance: &ledger.Balance{AvailablePaise: 10000}}
	cfg := config.SettlementConfig{MinimumPayoutPaise: 50000}

	ctx := middleware.WithSellerID(context.Background(), sellerID.String())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/seller/balance", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	SellerBalance(ledgerStub, &stubBankService{}, cfg, logg).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var envelope struct {
		Data struct {
			BankAccount *json.RawMessage `json:"bank_account"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.BankAccount != nil && string(*envelope.Data.BankAccount) != "null" {
		t.Fatalf("expected null bank account, got %s", *envelope.Data.BankAccount)
	}
}

func TestSellerBalanceRequiresSellerContext(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/seller/balance", nil)
	rec := httptest.NewRecorder()
	ledgerStub := &stubLedgerService{balance: &ledger.Balance{}}
	SellerBalance(ledgerStub, &stubBankService{}, config.SettlementConfig{}, logg).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without seller context, got %d", rec.Code)
	}
}
