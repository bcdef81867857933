package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/digibazaar/digibazaar-backend/api/responses"
	internalorders "github.com/digibazaar/digibazaar-backend/internal/orders"
	"github.com/digibazaar/digibazaar-backend/pkg/config"
	pkgerrors "github.com/digibazaar/digibazaar-backend/pkg/errors"
	"github.com/digibazaar/digibazaar-backend/pkg/logger"
)

const (
	signatureHeader = "X-Gateway-Signature"
	guardConsumer   = "payment-gateway"

	eventPaymentCaptured = "payment.captured"
	eventPaymentFailed   = "payment.failed"
)

type replayGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

// PaymentEvent is the payload the payment gateway posts on capture or failure.
type PaymentEvent struct {
	EventID string `json:"eventId"`
	Type    string `json:"type"`
	Data    struct {
		OrderID          string `json:"orderId"`
		PaymentReference string `json:"paymentReference"`
	} `json:"data"`
}

// PaymentGateway handles payment capture and failure callbacks. Signature
// verification runs against the raw body before anything is decoded, and a
// replay guard keeps gateway retries from confirming the same event twice.
func PaymentGateway(svc internalorders.Service, cfg config.GatewayConfig, guard replayGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "replay guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get(signatureHeader)
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "gateway signature missing"))
			return
		}
		if !validSignature(payload, cfg.WebhookSecret, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid gateway signature"))
			return
		}

		var event PaymentEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}
		eventID := strings.TrimSpace(event.EventID)
		if eventID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event id is required"))
			return
		}
		orderID, err := uuid.Parse(strings.TrimSpace(event.Data.OrderID))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		alreadyProcessed, err := guard.CheckAndMarkProcessed(ctx, guardConsumer, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check replay guard"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, map[string]string{"status": "duplicate"})
			return
		}

		switch event.Type {
		case eventPaymentCaptured:
			_, err = svc.ConfirmPayment(ctx, internalorders.ConfirmPaymentInput{
				OrderID:          orderID,
				PaymentReference: strings.TrimSpace(event.Data.PaymentReference),
			})
		case eventPaymentFailed:
			err = svc.FailPayment(ctx, orderID)
		default:
			_ = guard.Delete(ctx, guardConsumer, eventID)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unsupported event type").WithDetails(map[string]any{"type": event.Type}))
			return
		}
		if err != nil {
			// Drop the guard key so the gateway retry can reach the service again.
			_ = guard.Delete(ctx, guardConsumer, eventID)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("gateway event %s processed", eventID))
		}
		responses.WriteSuccess(w, map[string]string{"status": "processed"})
	}
}

func validSignature(payload []byte, secret, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(header)))
}
