// Package billing holds the domain types shared between the subscription
// store and the reconciliation engine, plus the client for the upstream
// billing provider.
//
// # Overview
//
// Bazaar keeps a local copy of every subscription sold through the
// marketplace. The provider (Stripe) remains the source of truth for
// subscription state and pricing; this package defines the local records
// (Subscription, Plan) and the narrow Provider interface the sync engine
// needs to read authoritative state:
//
//	sub, err := provider.GetSubscription(ctx, "sub_123")
//	price, err := provider.GetPrice(ctx, "price_abc")
//
// The engine never creates charges or mutates provider-side state; both
// calls are read-only.
//
// # Related Packages
//
//   - pkg/storage: persistence for Subscription and Plan rows
//   - pkg/sync: the reconciliation engine consuming Provider
package billing
