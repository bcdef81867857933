package controllers

import (
	"net/http"
	"time"

	internalpayouts "github.com/digibazaar/digibazaar-backend/internal/payouts"
	"github.com/digibazaar/digibazaar-backend/pkg/enums"
	pkgerrors "github.com/digibazaar/digibazaar-backend/pkg/errors"
	"github.com/digibazaar/digibazaar-backend/pkg/logger"

	"github.com/digibazaar/digibazaar-backend/api/responses"
	"github.com/digibazaar/digibazaar-backend/api/validators"
)

// AdminPayouts lists payouts across all sellers, optionally filtered by status.
func AdminPayouts(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
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

		payouts, page, err := svc.ListAll(r.Context(), status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listEnvelope{Items: payouts, Page: page})
	}
}

// AdminAcknowledgePayout moves a pending payout into processing.
func AdminAcknowledgePayout(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		adminID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payoutID, err := uuidParam(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.Acknowledge(r.Context(), payoutID, adminID, actorFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}

type markPayoutPaidBody struct {
	PaymentMethod    string  `json:"paymentMethod" validate:"required"`
	PaymentReference string  `json:"paymentReference" validate:"required,max=120"`
	PaymentNotes     *string `json:"paymentNotes,omitempty" validate:"omitempty,max=500"`
	PaidAt           *string `json:"paidAt,omitempty"`
}

// AdminMarkPayoutPaid settles a processing payout with the bank transfer proof.
func AdminMarkPayoutPaid(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		adminID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payoutID, err := uuidParam(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body markPayoutPaidBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(body.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}
		paidAt := time.Now().UTC()
		if body.PaidAt != nil {
			parsed, err := time.Parse(time.RFC3339, *body.PaidAt)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "paidAt must be RFC3339"))
				return
			}
			paidAt = parsed.UTC()
		}

		payout, err := svc.MarkPaid(r.Context(), internalpayouts.MarkPaidInput{
			PayoutID:         payoutID,
			AdminID:          adminID,
			PaymentMethod:    method,
			PaymentReference: validators.SanitizeString(body.PaymentReference, 120),
			PaymentNotes:     validators.SanitizeOptional(body.PaymentNotes),
			PaidAt:           paidAt,
			Actor:            actorFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}

type rejectPayoutBody struct {
	Reason string `json:"reason" validate:"required,min=5,max=500"`
}

// AdminRejectPayout declines a payout and releases its reservation.
func AdminRejectPayout(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		adminID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payoutID, err := uuidParam(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body rejectPayoutBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.Reject(r.Context(), internalpayouts.RejectInput{
			PayoutID: payoutID,
			AdminID:  adminID,
			Reason:   validators.SanitizeString(body.Reason, 500),
			Actor:    actorFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}
