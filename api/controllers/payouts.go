package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	internalpayouts "github.com/digibazaar/digibazaar-backend/internal/payouts"
	"github.com/digibazaar/digibazaar-backend/pkg/config"
	"github.com/digibazaar/digibazaar-backend/pkg/db/models"
	"github.com/digibazaar/digibazaar-backend/pkg/enums"
	pkgerrors "github.com/digibazaar/digibazaar-backend/pkg/errors"
	"github.com/digibazaar/digibazaar-backend/pkg/logger"

	"github.com/digibazaar/digibazaar-backend/api/responses"
	"github.com/digibazaar/digibazaar-backend/api/validators"
)

type requestPayoutBody struct {
	BankAccountID string  `json:"bankAccountId" validate:"required,uuid"`
	AmountPaise   int64   `json:"amountPaise" validate:"required,gt=0"`
	Notes         *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

type payoutRequestedPayload struct {
	*models.Payout
	EstimatedArrival time.Time `json:"estimated_arrival"`
}

// RequestPayout opens a withdrawal against the seller's available balance.
func RequestPayout(svc internalpayouts.Service, cfg config.SettlementConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		sellerID, err := sellerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body requestPayoutBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bankAccountID, err := uuid.Parse(body.BankAccountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid bank account id"))
			return
		}

		payout, err := svc.Request(r.Context(), internalpayouts.RequestInput{
			SellerID:      sellerID,
			BankAccountID: bankAccountID,
			AmountPaise:   body.AmountPaise,
			Notes:         validators.SanitizeOptional(body.Notes),
			Actor:         actorFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payoutRequestedPayload{
			Payout:           payout,
			EstimatedArrival: payout.CreatedAt.Add(cfg.PayoutSLA()),
		})
	}
}

// PayoutHistory lists the seller's payouts newest first.
func PayoutHistory(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		sellerID, err := sellerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := payoutStatusFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payouts, page, err := svc.History(r.Context(), sellerID, params, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listEnvelope{Items: payouts, Page: page})
	}
}

// PayoutDetail returns one of the seller's payouts with its frozen snapshot.
func PayoutDetail(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		sellerID, err := sellerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payoutID, err := uuidParam(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.Get(r.Context(), sellerID, payoutID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}

// CancelPayout lets the seller withdraw a payout that has not settled yet.
func CancelPayout(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		sellerID, err := sellerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payoutID, err := uuidParam(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.Cancel(r.Context(), sellerID, payoutID, actorFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}

func payoutStatusFilter(r *http.Request) (*enums.PayoutStatus, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("status"))
	if raw == "" {
		return nil, nil
	}
	status, err := enums.ParsePayoutStatus(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
	}
	return &status, nil
}
