package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/joao-fontenele/momo-checkout/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGatewayInitiatePayment(t *testing.T) {
	t.Run("dispatches to the provider matching the phone prefix", func(t *testing.T) {
		var captured struct {
			path        string
			auth        string
			referenceID string
			body        PaymentRequest
		}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured.path = r.URL.Path
			captured.auth = r.Header.Get("Authorization")
			captured.referenceID = r.Header.Get("X-Reference-Id")
			if err := json.NewDecoder(r.Body).Decode(&captured.body); err != nil {
				t.Errorf("decode request body: %v", err)
			}
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(map[string]string{"transactionId": "txn-42"})
		}))
		defer server.Close()

		mtn := NewMTNProvider(server.URL, "secret-key", server.Client())
		gw := NewGateway("https://shop.example.com", time.Second, testLogger(), mtn)

		result, err := gw.InitiatePayment(context.Background(), InitiateRequest{
			PhoneNumber: "0788123456",
			Amount:      36000,
			OrderID:     "order-1",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.Provider != ProviderMTN {
			t.Errorf("expected provider MTN, got %s", result.Provider)
		}
		if result.TransactionID != "txn-42" {
			t.Errorf("expected transaction txn-42, got %s", result.TransactionID)
		}
		if !strings.HasPrefix(result.Reference, "ECR-") {
			t.Errorf("expected ECR- reference, got %s", result.Reference)
		}

		if captured.path != "/collection/v1_0/requesttopay" {
			t.Errorf("unexpected path %s", captured.path)
		}
		if captured.auth != "Bearer secret-key" {
			t.Errorf("unexpected authorization header %q", captured.auth)
		}
		if captured.referenceID != result.Reference {
			t.Errorf("X-Reference-Id %q does not match reference %q", captured.referenceID, result.Reference)
		}
		if captured.body.PhoneNumber != "250788123456" {
			t.Errorf("expected normalized phone, got %s", captured.body.PhoneNumber)
		}
		if captured.body.Amount != 36000 || captured.body.Currency != "RWF" {
			t.Errorf("unexpected amount/currency: %d %s", captured.body.Amount, captured.body.Currency)
		}
		if captured.body.CallbackURL != "https://shop.example.com/checkout/webhook/mtn" {
			t.Errorf("unexpected callback url %s", captured.body.CallbackURL)
		}
	})

	t.Run("airtel numbers hit the airtel endpoint", func(t *testing.T) {
		var path string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"transactionId":"atl-7"}`))
		}))
		defer server.Close()

		airtel := NewAirtelProvider(server.URL, "key", server.Client())
		gw := NewGateway("https://shop.example.com", time.Second, testLogger(), airtel)

		result, err := gw.InitiatePayment(context.Background(), InitiateRequest{
			PhoneNumber: "0728123456",
			Amount:      5000,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Provider != ProviderAirtel {
			t.Errorf("expected AIRTEL, got %s", result.Provider)
		}
		if path != "/payment/v1/merchant/pay" {
			t.Errorf("unexpected path %s", path)
		}
	})

	t.Run("falls back to the reference when the provider omits a transaction id", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		gw := NewGateway("https://shop.example.com", time.Second, testLogger(),
			NewMTNProvider(server.URL, "key", server.Client()))

		result, err := gw.InitiatePayment(context.Background(), InitiateRequest{
			PhoneNumber: "0788123456",
			Amount:      1000,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.TransactionID != result.Reference {
			t.Errorf("expected transaction id to fall back to reference, got %s", result.TransactionID)
		}
	})

	t.Run("provider 5xx fails the initiation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		gw := NewGateway("https://shop.example.com", time.Second, testLogger(),
			NewMTNProvider(server.URL, "key", server.Client()))

		if _, err := gw.InitiatePayment(context.Background(), InitiateRequest{
			PhoneNumber: "0788123456",
			Amount:      1000,
		}); err == nil {
			t.Fatal("expected error for provider 5xx")
		}
	})

	t.Run("rejects numbers with no configured provider", func(t *testing.T) {
		gw := NewGateway("https://shop.example.com", time.Second, testLogger())

		_, err := gw.InitiatePayment(context.Background(), InitiateRequest{
			PhoneNumber: "0788123456",
			Amount:      1000,
		})
		if !errors.Is(err, ErrUnsupportedProvider) {
			t.Errorf("expected ErrUnsupportedProvider, got %v", err)
		}
	})

	t.Run("rejects invalid phone numbers before any provider call", func(t *testing.T) {
		gw := NewGateway("https://shop.example.com", time.Second, testLogger(),
			NewMTNProvider("http://unused.invalid", "key", http.DefaultClient))

		_, err := gw.InitiatePayment(context.Background(), InitiateRequest{
			PhoneNumber: "12345",
			Amount:      1000,
		})
		if !errors.Is(err, ErrInvalidPhoneNumber) {
			t.Errorf("expected ErrInvalidPhoneNumber, got %v", err)
		}
	})
}

func TestGatewayCheckStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payment/v1/status/txn-42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"SUCCESS"}`))
	}))
	defer server.Close()

	gw := NewGateway("https://shop.example.com", time.Second, testLogger(),
		NewMTNProvider(server.URL, "key", server.Client()))

	result, err := gw.CheckStatus(context.Background(), "mtn", "txn-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "SUCCESS" || result.Provider != ProviderMTN || result.TransactionID != "txn-42" {
		t.Errorf("unexpected result %+v", result)
	}

	if _, err := gw.CheckStatus(context.Background(), "vodafone", "txn-42"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestGatewayParseWebhook(t *testing.T) {
	gw := NewGateway("https://shop.example.com", time.Second, testLogger(),
		NewMTNProvider("http://unused.invalid", "key", http.DefaultClient))

	t.Run("canonical fields", func(t *testing.T) {
		event, err := gw.ParseWebhook("MTN", []byte(`{"reference":"ECR-abc","status":"SUCCESS","amount":36000}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if event.Reference != "ECR-abc" || event.Status != "SUCCESS" || event.Amount != 36000 {
			t.Errorf("unexpected event %+v", event)
		}
	})

	t.Run("alternate field spellings", func(t *testing.T) {
		event, err := gw.ParseWebhook("mtn", []byte(`{"transactionId":"ECR-def","paymentStatus":"FAILED"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if event.Reference != "ECR-def" || event.Status != "FAILED" {
			t.Errorf("unexpected event %+v", event)
		}
	})

	t.Run("missing reference or status", func(t *testing.T) {
		if _, err := gw.ParseWebhook("MTN", []byte(`{"amount":100}`)); err == nil {
			t.Error("expected error for payload missing reference and status")
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		if _, err := gw.ParseWebhook("MTN", []byte(`not json`)); err == nil {
			t.Error("expected error for malformed payload")
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		if _, err := gw.ParseWebhook("vodafone", []byte(`{}`)); !errors.Is(err, ErrUnsupportedProvider) {
			t.Errorf("expected ErrUnsupportedProvider, got %v", err)
		}
	})
}

func TestMapProviderStatus(t *testing.T) {
	cases := []struct {
		status  string
		want    domain.OrderStatus
		settles bool
	}{
		{"SUCCESS", domain.OrderStatusPaid, true},
		{"completed", domain.OrderStatusPaid, true},
		{"Paid", domain.OrderStatusPaid, true},
		{"FAILED", domain.OrderStatusFailed, true},
		{"cancelled", domain.OrderStatusFailed, true},
		{"PENDING", domain.OrderStatusPending, false},
		{"PROCESSING", domain.OrderStatusPending, false},
	}
	for _, tc := range cases {
		got, settles := MapProviderStatus(tc.status)
		if settles != tc.settles || (settles && got != tc.want) {
			t.Errorf("MapProviderStatus(%q) = %v, %v; want %v, %v", tc.status, got, settles, tc.want, tc.settles)
		}
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := NewMTNProvider(server.URL, "key", server.Client())

	for i := 0; i < 7; i++ {
		_, err := provider.RequestToPay(context.Background(), PaymentRequest{
			PhoneNumber: "250788123456",
			Amount:      100,
			Reference:   "ECR-breaker",
		})
		if err == nil {
			t.Fatal("expected error while provider is failing")
		}
	}

	if hits > 5 {
		t.Errorf("breaker should stop requests after 5 consecutive failures, server saw %d", hits)
	}
}
