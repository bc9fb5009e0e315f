/**
 * @description
 * This package provides a read-only client for the external payment provider's
 * query API. The engine never calls provider mutation endpoints: it only
 * searches approved payments in a time range and fetches single payments by
 * id, and treats the provider's ledger as ground truth for "money received".
 *
 * @dependencies
 * - context, encoding/json, fmt, net/http, net/url, time: Standard Go libraries.
 */
package paymentclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// Client is a client for the payment provider's query API.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a new payment provider client.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// PaymentRecord is one provider-confirmed payment. Quantity is carried in the
// provider's checkout metadata when the collaborator that created the payment
// supplied it; zero means unknown, and the engine never derives a quantity
// from the amount.
type PaymentRecord struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Amount     int64     `json:"amount"` // smallest currency unit
	CampaignID int64     `json:"campaign_id"`
	Quantity   int       `json:"quantity"`
	PayerRef   string    `json:"payer_ref"`
	PayerName  string    `json:"payer_name"`
	ApprovedAt time.Time `json:"approved_at"`
}

type searchResponse struct {
	Data []PaymentRecord `json:"data"`
}

type paymentResponse struct {
	Data PaymentRecord `json:"data"`
}

// ErrorResponse represents an error from the provider API.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("payment provider error (status %d): %s", e.Status, e.Message)
}

// ErrPaymentNotFound is returned by GetPayment when the provider has no record
// for the id.
var ErrPaymentNotFound = &ErrorResponse{Status: http.StatusNotFound, Message: "payment not found"}

// SearchApprovedPayments returns every approved payment whose approval
// timestamp falls within [from, to].
func (c *Client) SearchApprovedPayments(ctx context.Context, from, to time.Time) ([]PaymentRecord, error) {
	query := url.Values{}
	query.Set("status", "approved")
	query.Set("from", from.UTC().Format(time.RFC3339))
	query.Set("to", to.UTC().Format(time.RFC3339))

	var resp searchResponse
	if err := c.get(ctx, "/v1/payments/search?"+query.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetPayment fetches a single payment by its external id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*PaymentRecord, error) {
	var resp paymentResponse
	if err := c.get(ctx, "/v1/payments/"+url.PathEscape(paymentID), &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create provider request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute provider request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrPaymentNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=payment_client path=%s status=%d msg=\"non-2xx response (unparsable error body)\"", path, resp.StatusCode)
			return fmt.Errorf("provider returned status %d", resp.StatusCode)
		}
		if errResp.Status == 0 {
			errResp.Status = resp.StatusCode
		}
		log.Printf("level=warn component=payment_client path=%s status=%d message=%q", path, resp.StatusCode, errResp.Message)
		return &errResp
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	return nil
}
