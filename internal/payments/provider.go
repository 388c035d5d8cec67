package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker/v2"
)

const (
	ProviderMTN    = "MTN"
	ProviderAirtel = "AIRTEL"

	currency = "RWF"
)

type PaymentRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callbackUrl"`
	Currency    string `json:"currency"`
}

type PaymentResult struct {
	TransactionID string
	Provider      string
}

type StatusResult struct {
	TransactionID string `json:"transaction_id"`
	Provider      string `json:"provider"`
	Status        string `json:"status"`
}

// WebhookEvent is the normalized form of a provider callback.
type WebhookEvent struct {
	Reference string
	Status    string
	Amount    int64
}

// Provider is one mobile-money integration. Implementations form a small
// closed set selected by phone-number classification.
type Provider interface {
	Name() string
	RequestToPay(ctx context.Context, req PaymentRequest) (*PaymentResult, error)
	CheckStatus(ctx context.Context, transactionID string) (*StatusResult, error)
	ParseWebhook(payload []byte) (*WebhookEvent, error)
}

// apiClient holds what the MTN and Airtel clients share: bearer-token HTTP
// calls guarded by a circuit breaker, so a flapping provider API stops
// burning checkout latency.
type apiClient struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
}

func newAPIClient(name, baseURL, apiKey string, httpClient *http.Client) apiClient {
	return apiClient{
		name:       name,
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name: name,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (c *apiClient) postJSON(ctx context.Context, path, referenceID string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if referenceID != "" {
		// The provider dedupes initiation attempts by this reference, which
		// makes client-triggered retries of the same checkout idempotent.
		req.Header.Set("X-Reference-Id", referenceID)
	}

	return c.do(req)
}

func (c *apiClient) getJSON(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *apiClient) do(req *http.Request) (*http.Response, error) {
	return c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("%s api returned status %d", c.name, resp.StatusCode)
		}
		return resp, nil
	})
}

func (c *apiClient) requestToPay(ctx context.Context, path string, req PaymentRequest) (*PaymentResult, error) {
	req.Currency = currency

	resp, err := c.postJSON(ctx, path, req.Reference, req)
	if err != nil {
		return nil, fmt.Errorf("%s request to pay: %w", c.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%s request to pay returned status %d", c.name, resp.StatusCode)
	}

	var body struct {
		TransactionID string `json:"transactionId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%s request to pay response: %w", c.name, err)
	}
	if body.TransactionID == "" {
		body.TransactionID = req.Reference
	}

	return &PaymentResult{TransactionID: body.TransactionID, Provider: c.name}, nil
}

func (c *apiClient) checkStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	resp, err := c.getJSON(ctx, "/payment/v1/status/"+transactionID)
	if err != nil {
		return nil, fmt.Errorf("%s status check: %w", c.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s status check returned status %d", c.name, resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%s status check response: %w", c.name, err)
	}

	return &StatusResult{TransactionID: transactionID, Provider: c.name, Status: body.Status}, nil
}

// webhookPayload covers the field spellings both providers use.
type webhookPayload struct {
	Reference     string `json:"reference"`
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	Amount        int64  `json:"amount"`
}

func (c *apiClient) parseWebhook(payload []byte) (*WebhookEvent, error) {
	var body webhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%s webhook payload: %w", c.name, err)
	}

	reference := body.Reference
	if reference == "" {
		reference = body.TransactionID
	}
	status := body.Status
	if status == "" {
		status = body.PaymentStatus
	}

	if reference == "" || status == "" {
		return nil, fmt.Errorf("%s webhook payload missing reference or status", c.name)
	}

	return &WebhookEvent{Reference: reference, Status: status, Amount: body.Amount}, nil
}
