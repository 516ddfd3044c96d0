package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bazaarhq/bazaar/pkg/billing"
	"github.com/bazaarhq/bazaar/pkg/storage"
)

// genericProductName is the fallback when the provider returns a price
// with no product name attached.
const genericProductName = "Marketplace Plan"

// defaultPlanFeatures is the baseline feature set assigned to discovered
// plans whose price metadata carries no parseable feature list. A fixed
// business constant; plans needing different features are edited through
// the admin tooling after discovery.
var defaultPlanFeatures = []string{
	"marketplace_listings",
	"standard_support",
	"email_notifications",
}

// DefaultPlanFeatures returns a copy of the baseline feature set
func DefaultPlanFeatures() []string {
	return append([]string(nil), defaultPlanFeatures...)
}

// DerivePlanName builds the internal plan name from the provider product
// name and billing interval: lower-cased, whitespace collapsed to
// underscores, suffixed with the interval plus "ly" ("premium" + "month"
// becomes "premium_monthly").
func DerivePlanName(productName string, interval billing.BillingInterval) string {
	if productName == "" {
		productName = genericProductName
	}
	base := strings.Join(strings.Fields(strings.ToLower(productName)), "_")
	return base + "_" + intervalSuffix(interval)
}

// DeriveDisplayName builds the operator-facing plan name from the
// product name and a readable interval label.
func DeriveDisplayName(productName string, interval billing.BillingInterval) string {
	if productName == "" {
		productName = genericProductName
	}
	return productName + " (" + intervalLabel(interval) + ")"
}

func intervalSuffix(interval billing.BillingInterval) string {
	switch interval {
	case billing.IntervalYear:
		return "yearly"
	case billing.IntervalMonth:
		return "monthly"
	default:
		// Unknown intervals degrade to monthly rather than failing
		// discovery.
		return "monthly"
	}
}

func intervalLabel(interval billing.BillingInterval) string {
	switch interval {
	case billing.IntervalYear:
		return "Yearly"
	case billing.IntervalMonth:
		return "Monthly"
	default:
		return "Monthly"
	}
}

// ParseFeatures extracts a feature list from price metadata. It accepts
// a JSON string array or a comma-separated list; anything else falls
// back to the baseline feature set.
func ParseFeatures(metadata string) []string {
	metadata = strings.TrimSpace(metadata)
	if metadata == "" {
		return DefaultPlanFeatures()
	}

	if strings.HasPrefix(metadata, "[") {
		var features []string
		if err := json.Unmarshal([]byte(metadata), &features); err == nil && len(features) > 0 {
			return features
		}
		return DefaultPlanFeatures()
	}

	var features []string
	for _, f := range strings.Split(metadata, ",") {
		if f = strings.TrimSpace(f); f != "" {
			features = append(features, f)
		}
	}
	if len(features) == 0 {
		return DefaultPlanFeatures()
	}
	return features
}

// PlanFromPrice derives a local Plan from provider price data. The
// provider expresses amounts in the smallest currency unit; the local
// plan stores major units.
func PlanFromPrice(price *billing.ProviderPrice) *billing.Plan {
	return &billing.Plan{
		Name:          DerivePlanName(price.ProductName, price.Interval),
		DisplayName:   DeriveDisplayName(price.ProductName, price.Interval),
		StripePriceID: price.ID,
		Price:         float64(price.UnitAmount) / 100,
		Currency:      price.Currency,
		Interval:      price.Interval,
		Features:      ParseFeatures(price.MetadataFeatures),
		IsActive:      true,
		DiscoveredAt:  time.Now().UTC(),
	}
}

// Discoverer resolves unknown provider price ids into persisted plans.
// Concurrent discoveries of the same price id are collapsed through
// singleflight; the store's insert-if-absent contract is the backstop
// for races across processes.
type Discoverer struct {
	provider billing.Provider
	store    storage.SubscriptionStore
	group    singleflight.Group
}

// NewDiscoverer creates a plan discoverer
func NewDiscoverer(provider billing.Provider, store storage.SubscriptionStore) *Discoverer {
	return &Discoverer{provider: provider, store: store}
}

// Discover retrieves price metadata for the given price id, derives a
// plan, and persists it when persist is true. A provider failure returns
// an error the caller records as a per-run error; it is not retried
// within the run.
func (d *Discoverer) Discover(ctx context.Context, priceID string, persist bool) (*billing.Plan, error) {
	key := priceID
	if !persist {
		key = "dryrun:" + priceID
	}

	v, err, _ := d.group.Do(key, func() (interface{}, error) {
		price, err := d.provider.GetPrice(ctx, priceID)
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve price %s: %w", priceID, err)
		}

		plan := PlanFromPrice(price)
		if !persist {
			return plan, nil
		}

		inserted, err := d.store.InsertPlan(ctx, plan)
		if err != nil {
			return nil, fmt.Errorf("failed to persist plan for %s: %w", priceID, err)
		}
		return inserted, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*billing.Plan), nil
}
