package bank

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digibazaar/digibazaar-backend/pkg/db"
	"github.com/digibazaar/digibazaar-backend/pkg/db/models"
	"github.com/digibazaar/digibazaar-backend/pkg/enums"
	pkgerrors "github.com/digibazaar/digibazaar-backend/pkg/errors"
)

var (
	ifscPattern          = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	accountNumberPattern = regexp.MustCompile(`^[0-9]{9,18}$`)
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// reservationGuard blocks removing an account a live payout still points at.
// The count runs on the caller's transaction so it sees the same snapshot as
// the delete.
type reservationGuard interface {
	CountReservingByBankAccountTx(ctx context.Context, tx *gorm.DB, bankAccountID uuid.UUID) (int64, error)
}

// AddAccountInput carries a seller's new payout destination.
type AddAccountInput struct {
	SellerID          uuid.UUID
	AccountHolderName string
	AccountNumber     string
	IFSCCode          string
	AccountType       enums.BankAccountType
}

// VerifyInput records a successful penny-drop verification from the gateway.
type VerifyInput struct {
	AccountID            uuid.UUID
	GatewayContactID     *string
	GatewayFundAccountID *string
}

// Service manages the bank account registry behind payouts.
type Service interface {
	AddAccount(ctx context.Context, input AddAccountInput) (*models.BankAccount, error)
	List(ctx context.Context, sellerID uuid.UUID) ([]models.BankAccount, error)
	Get(ctx context.Context, sellerID, accountID uuid.UUID) (*models.BankAccount, error)
	SetPrimary(ctx context.Context, sellerID, accountID uuid.UUID) (*models.BankAccount, error)
	Verify(ctx context.Context, input VerifyInput) (*models.BankAccount, error)
	Remove(ctx context.Context, sellerID, accountID uuid.UUID) error
}

type service struct {
	repo    Repository
	payouts reservationGuard
	tx      txRunner
	now     func() time.Time
}

// NewService wires the bank account registry against its collaborators.
func NewService(repo Repository, payoutsRepo reservationGuard, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bank repository required")
	}
	if payoutsRepo == nil {
		return nil, fmt.Errorf("payouts reservation guard required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:    repo,
		payouts: payoutsRepo,
		tx:      tx,
		now:     time.Now,
	}, nil
}

// AddAccount registers a destination. The first account a seller adds becomes
// primary automatically; every account starts unverified.
func (s *service) AddAccount(ctx context.Context, input AddAccountInput) (*models.BankAccount, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if input.AccountHolderName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account holder name required")
	}
	if !accountNumberPattern.MatchString(input.AccountNumber) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account number must be 9 to 18 digits")
	}
	if !ifscPattern.MatchString(input.IFSCCode) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid IFSC code")
	}
	accountType := input.AccountType
	if accountType == "" {
		accountType = enums.BankAccountTypeSavings
	}
	if !accountType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown account type")
	}

	var created *models.BankAccount
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		count, err := repo.CountBySeller(ctx, input.SellerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count bank accounts")
		}

		account := &models.BankAccount{
			SellerID:          input.SellerID,
			AccountHolderName: input.AccountHolderName,
			AccountNumber:     input.AccountNumber,
			IFSCCode:          input.IFSCCode,
			AccountType:       accountType,
			IsPrimary:         count == 0,
		}
		if err := repo.Create(ctx, account); err != nil {
			if db.IsUniqueViolation(err, "ux_bank_accounts_seller_number") {
				return pkgerrors.New(pkgerrors.CodeConflict, "account number already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bank account")
		}
		created = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) List(ctx context.Context, sellerID uuid.UUID) ([]models.BankAccount, error) {
	accounts, err := s.repo.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bank accounts")
	}
	return accounts, nil
}

func (s *service) Get(ctx context.Context, sellerID, accountID uuid.UUID) (*models.BankAccount, error) {
	account, err := s.repo.FindForSeller(ctx, sellerID, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bank account")
	}
	if account == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bank account not found")
	}
	return account, nil
}

// SetPrimary makes the account the seller's default destination. The unset
// and set run in one transaction so the partial unique index never trips.
func (s *service) SetPrimary(ctx context.Context, sellerID, accountID uuid.UUID) (*models.BankAccount, error) {
	var updated *models.BankAccount
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		account, err := repo.FindForSeller(ctx, sellerID, accountID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bank account")
		}
		if account == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "bank account not found")
		}
		if account.IsPrimary {
			updated = account
			return nil
		}

		if err := repo.UnsetPrimary(ctx, sellerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unset primary account")
		}
		if err := repo.Update(ctx, account.ID, map[string]any{"is_primary": true}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set primary account")
		}
		account.IsPrimary = true
		updated = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Verify is the only path that flips is_verified. It records the gateway
// identifiers so later transfers can reuse the fund account.
func (s *service) Verify(ctx context.Context, input VerifyInput) (*models.BankAccount, error) {
	if input.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}

	account, err := s.repo.FindByID(ctx, input.AccountID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bank account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bank account")
	}
	if account.IsVerified {
		return account, nil
	}

	verifiedAt := s.now()
	updates := map[string]any{
		"is_verified": true,
		"verified_at": verifiedAt,
	}
	if input.GatewayContactID != nil {
		updates["gateway_contact_id"] = *input.GatewayContactID
	}
	if input.GatewayFundAccountID != nil {
		updates["gateway_fund_account_id"] = *input.GatewayFundAccountID
	}
	if err := s.repo.Update(ctx, account.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify bank account")
	}

	account.IsVerified = true
	account.VerifiedAt = &verifiedAt
	account.GatewayContactID = input.GatewayContactID
	account.GatewayFundAccountID = input.GatewayFundAccountID
	return account, nil
}

// Remove deletes the account unless a pending or processing payout still
// points at it. Removing the primary promotes the most recently verified
// remaining account.
func (s *service) Remove(ctx context.Context, sellerID, accountID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		account, err := repo.FindForSeller(ctx, sellerID, accountID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bank account")
		}
		if account == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "bank account not found")
		}

		reserving, err := s.payouts.CountReservingByBankAccountTx(ctx, tx, account.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payout reservations")
		}
		if reserving > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "account is the destination of an active payout")
		}

		if err := repo.Delete(ctx, account.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete bank account")
		}

		if account.IsPrimary {
			successor, err := repo.FindLatestVerified(ctx, sellerID, account.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find successor account")
			}
			if successor != nil {
				if err := repo.Update(ctx, successor.ID, map[string]any{"is_primary": true}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote successor account")
				}
			}
		}
		return nil
	})
}
