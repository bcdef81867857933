package controllers

import (
	"net/http"

	internalbank "github.com/digibazaar/digibazaar-backend/internal/bank"
	"github.com/digibazaar/digibazaar-backend/pkg/enums"
	pkgerrors "github.com/digibazaar/digibazaar-backend/pkg/errors"
	"github.com/digibazaar/digibazaar-backend/pkg/logger"

	"github.com/digibazaar/digibazaar-backend/api/responses"
	"github.com/digibazaar/digibazaar-backend/api/validators"
)

type addBankAccountBody struct {
	AccountHolderName string `json:"accountHolderName" validate:"required,min=2,max=120"`
	AccountNumber     string `json:"accountNumber" validate:"required"`
	IFSCCode          string `json:"ifscCode" validate:"required"`
	AccountType       string `json:"accountType" validate:"omitempty,oneof=savings current"`
}

// AddBankAccount registers a payout destination for the seller.
func AddBankAccount(svc internalbank.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bank account service unavailable"))
			return
		}

		sellerID, err := sellerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body addBankAccountBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalbank.AddAccountInput{
			SellerID:          sellerID,
			AccountHolderName: body.AccountHolderName,
			AccountNumber:     body.AccountNumber,
			IFSCCode:          body.IFSCCode,
		}
		if body.AccountType != "" {
			accountType, err := enums.ParseBankAccountType(body.AccountType)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid account type"))
				return
			}
			input.AccountType = accountType
		}

		account, err := svc.AddAccount(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, account)
	}
}

// ListBankAccounts returns the seller's registered accounts.
func ListBankAccounts(svc internalbank.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bank account service unavailable"))
			return
		}

		sellerID, err := sellerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		accounts, err := svc.List(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, accounts)
	}
}

// GetBankAccount returns one of the seller's accounts.
func GetBankAccount(svc internalbank.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bank account service unavailable"))
			return
		}

		sellerID, err := sellerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		accountID, err := uuidParam(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.Get(r.Context(), sellerID, accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, account)
	}
}

// SetPrimaryBankAccount promotes one account to the default payout destination.
func SetPrimaryBankAccount(svc internalbank.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bank account service unavailable"))
			return
		}

		sellerID, err := sellerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		accountID, err := uuidParam(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.SetPrimary(r.Context(), sellerID, accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, account)
	}
}

// RemoveBankAccount deletes an account unless an active payout targets it.
func RemoveBankAccount(svc internalbank.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bank account service unavailable"))
			return
		}

		sellerID, err := sellerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		accountID, err := uuidParam(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Remove(r.Context(), sellerID, accountID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}

type verifyBankAccountBody struct {
	GatewayContactID     *string `json:"gatewayContactId,omitempty" validate:"omitempty,max=120"`
	GatewayFundAccountID *string `json:"gatewayFundAccountId,omitempty" validate:"omitempty,max=120"`
}

// AdminVerifyBankAccount records a successful penny-drop verification.
func AdminVerifyBankAccount(svc internalbank.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bank account service unavailable"))
			return
		}

		accountID, err := uuidParam(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body verifyBankAccountBody
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		account, err := svc.Verify(r.Context(), internalbank.VerifyInput{
			AccountID:            accountID,
			GatewayContactID:     validators.SanitizeOptional(body.GatewayContactID),
			GatewayFundAccountID: validators.SanitizeOptional(body.GatewayFundAccountID),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, account)
	}
}
