package payments

import (
	"context"
	"net/http"
)

type MTNProvider struct {
	apiClient
}

func NewMTNProvider(baseURL, apiKey string, httpClient *http.Client) *MTNProvider {
	return &MTNProvider{apiClient: newAPIClient(ProviderMTN, baseURL, apiKey, httpClient)}
}

func (p *MTNProvider) Name() string {
	return ProviderMTN
}

func (p *MTNProvider) RequestToPay(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	return p.requestToPay(ctx, "/collection/v1_0/requesttopay", req)
}

func (p *MTNProvider) CheckStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	return p.checkStatus(ctx, transactionID)
}

func (p *MTNProvider) ParseWebhook(payload []byte) (*WebhookEvent, error) {
	return p.parseWebhook(payload)
}
