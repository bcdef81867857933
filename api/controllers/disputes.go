package controllers

import (
	"net/http"

	"github.com/google/uuid"

	internaldisputes "github.com/digibazaar/digibazaar-backend/internal/disputes"
	pkgerrors "github.com/digibazaar/digibazaar-backend/pkg/errors"
	"github.com/digibazaar/digibazaar-backend/pkg/logger"

	"github.com/digibazaar/digibazaar-backend/api/responses"
	"github.com/digibazaar/digibazaar-backend/api/validators"
)

type openDisputeBody struct {
	OrderID string `json:"orderId" validate:"required,uuid"`
	Reason  string `json:"reason" validate:"required,min=10,max=2000"`
}

// OpenDispute files a dispute against a paid order the buyer owns.
func OpenDispute(svc internaldisputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispute service unavailable"))
			return
		}

		buyerID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body openDisputeBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := uuid.Parse(body.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		dispute, err := svc.Open(r.Context(), internaldisputes.OpenInput{
			OrderID:     orderID,
			BuyerUserID: buyerID,
			Reason:      validators.SanitizeString(body.Reason, 2000),
			Actor:       actorFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dispute)
	}
}

// SellerDisputes lists disputes raised against the seller's orders.
func SellerDisputes(svc internaldisputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispute service unavailable"))
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

		disputes, page, err := svc.ListBySeller(r.Context(), sellerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listEnvelope{Items: disputes, Page: page})
	}
}
