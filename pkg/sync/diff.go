package sync

import (
	"time"

	"github.com/bazaarhq/bazaar/pkg/billing"
)

// PeriodTolerance is the maximum skew between local and authoritative
// period timestamps that is not considered drift. It absorbs clock and
// serialization jitter without triggering spurious writes. The value is
// a business constant carried over from the original sync behavior; do
// not re-derive it.
const PeriodTolerance = 1000 * time.Millisecond

// NeedsUpdate reports whether the local record has drifted from the
// authoritative one. Any single rule triggers an update:
//
//  1. status differs (case-sensitive)
//  2. a period timestamp is missing locally, or differs from the
//     authoritative one by more than PeriodTolerance
//  3. the cancel-at-period-end flag differs
func NeedsUpdate(local *billing.Subscription, remote *billing.ProviderSubscription) bool {
	if local.Status != remote.Status {
		return true
	}
	if periodDrifted(local.CurrentPeriodStart, remote.CurrentPeriodStart) {
		return true
	}
	if periodDrifted(local.CurrentPeriodEnd, remote.CurrentPeriodEnd) {
		return true
	}
	if remote.CancelAtPeriodEnd != nil && local.CancelAtPeriodEnd != *remote.CancelAtPeriodEnd {
		return true
	}
	return false
}

// periodDrifted compares one period timestamp. An authoritative value
// with no local counterpart is drift; an absent authoritative value is
// not (there is nothing to converge on).
func periodDrifted(local, remote *time.Time) bool {
	if remote == nil {
		return false
	}
	if local == nil {
		return true
	}
	diff := local.Sub(*remote)
	if diff < 0 {
		diff = -diff
	}
	return diff > PeriodTolerance
}

// BuildUpdate assembles the write-back for a drifted record: status and
// both period timestamps always, the cancellation fields only when the
// authoritative record carries them. The price id is never part of an
// update; price changes are handled by plan discovery.
func BuildUpdate(remote *billing.ProviderSubscription) *billing.SubscriptionUpdate {
	update := &billing.SubscriptionUpdate{
		Status:             remote.Status,
		CurrentPeriodStart: remote.CurrentPeriodStart,
		CurrentPeriodEnd:   remote.CurrentPeriodEnd,
	}
	if remote.CancelAtPeriodEnd != nil {
		update.CancelAtPeriodEnd = remote.CancelAtPeriodEnd
	}
	if remote.CanceledAt != nil {
		update.CanceledAt = remote.CanceledAt
	}
	return update
}
