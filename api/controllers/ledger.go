package controllers

import (
	"net/http"

	"github.com/google/uuid"

	internalbank "github.com/digibazaar/digibazaar-backend/internal/bank"
	"github.com/digibazaar/digibazaar-backend/internal/ledger"
	"github.com/digibazaar/digibazaar-backend/pkg/config"
	pkgerrors "github.com/digibazaar/digibazaar-backend/pkg/errors"
	"github.com/digibazaar/digibazaar-backend/pkg/logger"

	"github.com/digibazaar/digibazaar-backend/api/responses"
)

// bankAccountStatus summarizes the destination a withdrawal would land in,
// so clients can tell before requesting whether a payout can succeed.
type bankAccountStatus struct {
	AccountID  uuid.UUID `json:"account_id"`
	IsVerified bool      `json:"is_verified"`
	IsPrimary  bool      `json:"is_primary"`
}

type balancePayload struct {
	*ledger.Balance
	MinimumPayoutPaise int64              `json:"minimum_payout_paise"`
	BankAccount        *bankAccountStatus `json:"bank_account"`
}

// SellerBalance returns the seller's available, reserved, and withdrawn
// totals plus the payout preconditions: the configured minimum and the
// primary bank account's verification state.
func SellerBalance(svc ledger.Service, banks internalbank.Service, cfg config.SettlementConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || banks == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		sellerID, err := sellerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.GetBalance(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		accounts, err := banks.List(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := balancePayload{
			Balance:            balance,
			MinimumPayoutPaise: cfg.MinimumPayoutPaise,
		}
		for i := range accounts {
			if accounts[i].IsPrimary {
				payload.BankAccount = &bankAccountStatus{
					AccountID:  accounts[i].ID,
					IsVerified: accounts[i].IsVerified,
					IsPrimary:  true,
				}
				break
			}
		}
		responses.WriteSuccess(w, payload)
	}
}

// SellerStatement returns the balance plus the mature orders that back it.
func SellerStatement(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		sellerID, err := sellerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		statement, err := svc.GetStatement(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, statement)
	}
}
