package controllers

import (
	"net/http"
	"strings"

	internaldisputes "github.com/digibazaar/digibazaar-backend/internal/disputes"
	"github.com/digibazaar/digibazaar-backend/pkg/enums"
	pkgerrors "github.com/digibazaar/digibazaar-backend/pkg/errors"
	"github.com/digibazaar/digibazaar-backend/pkg/logger"

	"github.com/digibazaar/digibazaar-backend/api/responses"
	"github.com/digibazaar/digibazaar-backend/api/validators"
)

// AdminDisputes lists disputes across all sellers, optionally filtered by status.
func AdminDisputes(svc internaldisputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispute service unavailable"))
			return
		}

		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := disputeStatusFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		disputes, page, err := svc.ListByStatus(r.Context(), status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listEnvelope{Items: disputes, Page: page})
	}
}

// AdminDisputeDetail returns a single dispute.
func AdminDisputeDetail(svc internaldisputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispute service unavailable"))
			return
		}

		disputeID, err := uuidParam(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Get(r.Context(), disputeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispute)
	}
}

type resolveDisputeBody struct {
	AdminNote *string `json:"adminNote,omitempty" validate:"omitempty,max=2000"`
	RefundID  *string `json:"refundId,omitempty" validate:"omitempty,max=120"`
}

// AdminApproveDispute refunds the order behind a dispute. When the refunded
// order was already covered by a settled payout the refund still stands and
// the response carries the payout flagged for clawback.
func AdminApproveDispute(svc internaldisputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispute service unavailable"))
			return
		}

		adminID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := uuidParam(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body resolveDisputeBody
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		dispute, err := svc.Approve(r.Context(), internaldisputes.ResolveInput{
			DisputeID: disputeID,
			AdminID:   adminID,
			AdminNote: validators.SanitizeOptional(body.AdminNote),
			RefundID:  validators.SanitizeOptional(body.RefundID),
			Actor:     actorFromRequest(r),
		})
		if err != nil {
			if clawback := pkgerrors.As(err); clawback != nil && clawback.Code() == pkgerrors.CodeClawbackRequired && dispute != nil {
				responses.WriteSuccess(w, map[string]any{
					"dispute":  dispute,
					"clawback": clawback.Details(),
				})
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispute)
	}
}

// AdminRejectDispute closes a dispute without refunding the order.
func AdminRejectDispute(svc internaldisputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispute service unavailable"))
			return
		}

		adminID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := uuidParam(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body resolveDisputeBody
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		dispute, err := svc.Reject(r.Context(), internaldisputes.ResolveInput{
			DisputeID: disputeID,
			AdminID:   adminID,
			AdminNote: validators.SanitizeOptional(body.AdminNote),
			Actor:     actorFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispute)
	}
}

func disputeStatusFilter(r *http.Request) (*enums.DisputeStatus, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("status"))
	if raw == "" {
		return nil, nil
	}
	status, err := enums.ParseDisputeStatus(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
	}
	return &status, nil
}
