package registry

import (
	"encoding/json"
	"testing"

	"github.com/digibazaar/digibazaar-backend/pkg/enums"
	"github.com/digibazaar/digibazaar-backend/pkg/outbox/payloads"
)

func TestDecoderRegistryRoundTrip(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.OutboxEventDisputeOpened, 1, func(payload json.RawMessage) (interface{}, error) {
		var evt payloads.DisputeOpenedEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			return nil, err
		}
		return &evt, nil
	})

	decoded, err := reg.Decode(enums.OutboxEventDisputeOpened, 1, json.RawMessage(`{"reason":"item not delivered"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	evt, ok := decoded.(*payloads.DisputeOpenedEvent)
	if !ok {
		t.Fatalf("unexpected type %T", decoded)
	}
	if evt.Reason != "item not delivered" {
		t.Fatalf("unexpected reason %q", evt.Reason)
	}

	if _, err := reg.Decode(enums.OutboxEventDisputeOpened, 2, json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected error for unregistered version")
	}
}
