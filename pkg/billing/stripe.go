package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultStripeBaseURL = "https://api.stripe.com/v1"

// StripeClient implements Provider against the Stripe REST API. It only
// performs reads; writes to Stripe are out of scope for the sync engine.
type StripeClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewStripeClient creates a Stripe-backed Provider. The timeout bounds
// each individual API call; a timeout surfaces as a per-record sync error.
func NewStripeClient(apiKey string, timeout time.Duration) *StripeClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StripeClient{
		apiKey:  apiKey,
		baseURL: defaultStripeBaseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithBaseURL overrides the API base URL. Used by tests and for
// API-compatible mock servers.
func (c *StripeClient) WithBaseURL(baseURL string) *StripeClient {
	c.baseURL = baseURL
	return c
}

// stripeSubscription mirrors the subset of Stripe's subscription object
// the engine cares about. Timestamps are unix seconds.
type stripeSubscription struct {
	ID                 string `json:"id"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CanceledAt         int64  `json:"canceled_at"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// stripePrice mirrors the subset of Stripe's price object the plan
// discovery path cares about. Product is expanded server-side.
type stripePrice struct {
	ID         string `json:"id"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
	Recurring  struct {
		Interval string `json:"interval"`
	} `json:"recurring"`
	Product struct {
		Name string `json:"name"`
	} `json:"product"`
	Metadata map[string]string `json:"metadata"`
}

// GetSubscription retrieves a subscription from Stripe
func (c *StripeClient) GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error) {
	var raw stripeSubscription
	if err := c.get(ctx, "/subscriptions/"+url.PathEscape(subscriptionID), nil, &raw); err != nil {
		return nil, err
	}

	sub := &ProviderSubscription{
		ID:                 raw.ID,
		Status:             SubscriptionStatus(raw.Status),
		CurrentPeriodStart: unixTime(raw.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTime(raw.CurrentPeriodEnd),
		CancelAtPeriodEnd:  &raw.CancelAtPeriodEnd,
		CanceledAt:         unixTime(raw.CanceledAt),
	}
	if len(raw.Items.Data) > 0 {
		sub.PriceID = raw.Items.Data[0].Price.ID
	}
	return sub, nil
}

// GetPrice retrieves a price with its product expanded
func (c *StripeClient) GetPrice(ctx context.Context, priceID string) (*ProviderPrice, error) {
	params := url.Values{}
	params.Add("expand[]", "product")

	var raw stripePrice
	if err := c.get(ctx, "/prices/"+url.PathEscape(priceID), params, &raw); err != nil {
		return nil, err
	}

	return &ProviderPrice{
		ID:               raw.ID,
		UnitAmount:       raw.UnitAmount,
		Currency:         raw.Currency,
		Interval:         BillingInterval(raw.Recurring.Interval),
		ProductName:      raw.Product.Name,
		MetadataFeatures: raw.Metadata["features"],
	}, nil
}

func (c *StripeClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Stripe-Version", "2024-06-20")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("stripe request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read stripe response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("stripe returned status %d for %s", resp.StatusCode, path)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode stripe response: %w", err)
	}
	return nil
}

// unixTime converts a unix-seconds timestamp to *time.Time, treating zero
// as absent (Stripe serializes missing timestamps as null, decoded to 0).
func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
