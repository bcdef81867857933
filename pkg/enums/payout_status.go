package enums

import "fmt"

// PayoutStatus tracks a withdrawal request from creation to settlement.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusPaid       PayoutStatus = "paid"
	PayoutStatusRejected   PayoutStatus = "rejected"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusPending,
	PayoutStatusProcessing,
	PayoutStatusPaid,
	PayoutStatusRejected,
}

// payoutTransitions is the authoritative transition table. Paid and rejected
// are terminal; any write that would violate this table must be refused
// before it reaches the database.
var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutStatusPending:    {PayoutStatusProcessing, PayoutStatusRejected},
	PayoutStatusProcessing: {PayoutStatusPaid, PayoutStatusRejected},
	PayoutStatusPaid:       {},
	PayoutStatusRejected:   {},
}

// String implements fmt.Stringer.
func (p PayoutStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutStatus.
func (p PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (p PayoutStatus) IsTerminal() bool {
	return len(payoutTransitions[p]) == 0 && p.IsValid()
}

// CanTransition reports whether the status may move to the target state.
func (p PayoutStatus) CanTransition(to PayoutStatus) bool {
	for _, candidate := range payoutTransitions[p] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Reserves reports whether a payout in this status holds funds against the
// seller's available balance. Paid payouts stay reserved so settled money is
// never counted as withdrawable again.
func (p PayoutStatus) Reserves() bool {
	switch p {
	case PayoutStatusPending, PayoutStatusProcessing, PayoutStatusPaid:
		return true
	default:
		return false
	}
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}
