package paystack_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"trustpay/internal/domain"
	"trustpay/internal/domain/service/checkout"
	"trustpay/internal/domain/service/settlement"
	"trustpay/internal/infrastructure/paystack"
	"trustpay/pkg/errcodes"
)

const testSecret = "sk_test_secret"

func TestClientInitializeTransaction(t *testing.T) {
	rq := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rq.Equal(http.MethodPost, r.Method)
		rq.Equal("/transaction/initialize", r.URL.Path)
		rq.Equal("Bearer "+testSecret, r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		rq.NoError(err)
		rq.Contains(string(body), `"reference":"ESC-TEST1"`)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": true,
			"message": "Authorization URL created",
			"data": {
				"authorization_url": "https://checkout.paystack.com/abc123",
				"reference": "ESC-TEST1"
			}
		}`))
	}))
	defer srv.Close()

	client := paystack.NewClient(srv.URL, testSecret, 0)

	session, err := client.InitializeTransaction(context.Background(), checkout.ChargeParams{
		Email:     "buyer@example.com",
		Amount:    5000,
		Reference: "ESC-TEST1",
		DealID:    "ESC-TEST1",
	})
	rq.NoError(err)
	rq.Equal("https://checkout.paystack.com/abc123", session.AuthorizationURL)
	rq.Equal("ESC-TEST1", session.Reference)
}

func TestClientCreateTransfer(t *testing.T) {
	rq := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rq.Equal("/transfer", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		rq.NoError(err)
		rq.Contains(string(body), `"recipient":"RCP_123"`)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": true,
			"message": "Transfer has been queued",
			"data": {"transfer_code": "TRF_xyz", "reference": "ESC-TEST2"}
		}`))
	}))
	defer srv.Close()

	client := paystack.NewClient(srv.URL, testSecret, 0)

	ref, err := client.CreateTransfer(context.Background(), settlement.TransferRequest{
		Amount:    4700,
		Recipient: "RCP_123",
		Reason:    "deal payout",
		Reference: "ESC-TEST2",
		DealID:    "ESC-TEST2",
	})
	rq.NoError(err)
	rq.Equal("TRF_xyz", ref)
}

func TestClientCreateRecipient(t *testing.T) {
	rq := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rq.Equal("/transferrecipient", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": true,
			"message": "Transfer recipient created successfully",
			"data": {"recipient_code": "RCP_456"}
		}`))
	}))
	defer srv.Close()

	client := paystack.NewClient(srv.URL, testSecret, 0)

	code, err := client.CreateRecipient(context.Background(), checkout.RecipientParams{
		Name:          "Seller Name",
		AccountNumber: "0123456789",
		BankCode:      "058",
	})
	rq.NoError(err)
	rq.Equal("RCP_456", code)
}

func TestClientProviderRejected(t *testing.T) {
	rq := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status": false, "message": "Insufficient balance"}`))
	}))
	defer srv.Close()

	client := paystack.NewClient(srv.URL, testSecret, 0)

	_, err := client.CreateTransfer(context.Background(), settlement.TransferRequest{
		Amount:    4700,
		Recipient: "RCP_123",
		Reference: "ESC-TEST3",
	})
	rq.Error(err)
	rq.True(domain.HasCode(err, errcodes.ProviderRejected))
}

func TestClientProviderUnavailable(t *testing.T) {
	rq := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := paystack.NewClient(srv.URL, testSecret, 0)

	_, err := client.CreateRefund(context.Background(), "PAY_REF")
	rq.Error(err)
	rq.True(domain.HasCode(err, errcodes.ProviderUnavailable))
}

func TestClientVerifySignature(t *testing.T) {
	rq := require.New(t)

	client := paystack.NewClient("http://localhost", testSecret, 0)

	body := []byte(`{"event":"charge.success","data":{"reference":"ESC-TEST4"}}`)

	mac := hmac.New(sha512.New, []byte(testSecret))
	mac.Write(body)
	valid := hex.EncodeToString(mac.Sum(nil))

	rq.True(client.VerifySignature(body, valid))
	rq.False(client.VerifySignature(body, "deadbeef"))
	rq.False(client.VerifySignature([]byte(`tampered`), valid))
}
