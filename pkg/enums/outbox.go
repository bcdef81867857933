package enums

import "fmt"

// OutboxEventType names the domain events the settlement core emits.
// Delivery is someone else's job; these are only the triggers.
type OutboxEventType string

const (
	OutboxEventOrderPaid        OutboxEventType = "order.paid"
	OutboxEventOrderRefunded    OutboxEventType = "order.refunded"
	OutboxEventPayoutRequested  OutboxEventType = "payout.requested"
	OutboxEventPayoutProcessing OutboxEventType = "payout.processing"
	OutboxEventPayoutPaid       OutboxEventType = "payout.paid"
	OutboxEventPayoutRejected   OutboxEventType = "payout.rejected"
	OutboxEventDisputeOpened    OutboxEventType = "dispute.opened"
	OutboxEventDisputeResolved  OutboxEventType = "dispute.resolved"
)

var validOutboxEventTypes = []OutboxEventType{
	OutboxEventOrderPaid,
	OutboxEventOrderRefunded,
	OutboxEventPayoutRequested,
	OutboxEventPayoutProcessing,
	OutboxEventPayoutPaid,
	OutboxEventPayoutRejected,
	OutboxEventDisputeOpened,
	OutboxEventDisputeResolved,
}

// String implements fmt.Stringer.
func (o OutboxEventType) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OutboxEventType.
func (o OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	OutboxAggregateOrder   OutboxAggregateType = "order"
	OutboxAggregatePayout  OutboxAggregateType = "payout"
	OutboxAggregateDispute OutboxAggregateType = "dispute"
)

var validOutboxAggregateTypes = []OutboxAggregateType{
	OutboxAggregateOrder,
	OutboxAggregatePayout,
	OutboxAggregateDispute,
}

// IsValid reports whether the value is a known OutboxAggregateType.
func (o OutboxAggregateType) IsValid() bool {
	for _, candidate := range validOutboxAggregateTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
