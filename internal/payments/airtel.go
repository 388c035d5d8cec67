package payments

import (
	"context"
	"net/http"
)

type AirtelProvider struct {
	apiClient
}

func NewAirtelProvider(baseURL, apiKey string, httpClient *http.Client) *AirtelProvider {
	return &AirtelProvider{apiClient: newAPIClient(ProviderAirtel, baseURL, apiKey, httpClient)}
}

func (p *AirtelProvider) Name() string {
	return ProviderAirtel
}

func (p *AirtelProvider) RequestToPay(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	return p.requestToPay(ctx, "/payment/v1/merchant/pay", req)
}

func (p *AirtelProvider) CheckStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	return p.checkStatus(ctx, transactionID)
}

func (p *AirtelProvider) ParseWebhook(payload []byte) (*WebhookEvent, error) {
	return p.parseWebhook(payload)
}
