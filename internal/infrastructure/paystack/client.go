package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"trustpay/internal/domain"
	"trustpay/internal/domain/service/checkout"
	"trustpay/internal/domain/service/settlement"
	"trustpay/pkg/errcodes"
	"trustpay/pkg/httpx"
	"trustpay/pkg/logx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

const defaultBaseURL = "https://api.paystack.co"

// Client — HTTP-клиент Paystack. Покрывает четыре вызова: инициализация
// оплаты, регистрация получателя, трансфер и возврат. Суммы везде в минорных
// единицах, как и в остальной системе.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

// staticAuthenticator — секретный ключ Paystack не истекает, повторная
// аутентификация не нужна.
type staticAuthenticator struct {
	token string
}

func (a staticAuthenticator) Authenticate(context.Context) error { return nil }
func (a staticAuthenticator) BearerToken() string                { return a.token }

func NewClient(baseURL, secretKey string, logFieldMaxLen int) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	transport := httpx.NewAuthBearerRoundTripper(
		httpx.NewLoggingRoundTripper(
			http.DefaultTransport,
			httpx.WithLogFieldMaxLen(logFieldMaxLen),
			httpx.WithSensitiveDataMasker(logx.NewSensitiveDataMasker()),
		),
		staticAuthenticator{token: secretKey},
	)

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		baseURL:   baseURL,
		secretKey: secretKey,
	}
}

// InitializeTransaction создаёт платёжную сессию для покупателя.
func (c *Client) InitializeTransaction(ctx context.Context, p checkout.ChargeParams) (*checkout.Checkout, error) {
	payload := map[string]any{
		"email":     p.Email,
		"amount":    p.Amount,
		"reference": p.Reference,
		"metadata":  map[string]any{"deal_id": p.DealID},
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		Reference        string `json:"reference"`
	}

	if err := c.post(ctx, "/transaction/initialize", payload, &data); err != nil {
		return nil, err
	}

	return &checkout.Checkout{
		AuthorizationURL: data.AuthorizationURL,
		Reference:        data.Reference,
	}, nil
}

// CreateRecipient регистрирует банковский счёт продавца и возвращает
// recipient_code для последующих трансферов.
func (c *Client) CreateRecipient(ctx context.Context, p checkout.RecipientParams) (string, error) {
	payload := map[string]any{
		"type":           "nuban",
		"name":           p.Name,
		"account_number": p.AccountNumber,
		"bank_code":      p.BankCode,
		"currency":       "NGN",
	}

	var data struct {
		RecipientCode string `json:"recipient_code"`
	}

	if err := c.post(ctx, "/transferrecipient", payload, &data); err != nil {
		return "", err
	}

	return data.RecipientCode, nil
}

// CreateTransfer запускает выплату. Reference — ключ идемпотентности на
// стороне провайдера: повторный вызов с тем же reference не создаст второй
// трансфер.
func (c *Client) CreateTransfer(ctx context.Context, req settlement.TransferRequest) (string, error) {
	payload := map[string]any{
		"source":    "balance",
		"amount":    req.Amount,
		"recipient": req.Recipient,
		"reason":    req.Reason,
		"reference": req.Reference,
	}

	var data struct {
		TransferCode string `json:"transfer_code"`
		Reference    string `json:"reference"`
	}

	if err := c.post(ctx, "/transfer", payload, &data); err != nil {
		return "", err
	}

	if data.TransferCode != "" {
		return data.TransferCode, nil
	}

	return data.Reference, nil
}

// CreateRefund возвращает платёж целиком по референсу исходной транзакции.
func (c *Client) CreateRefund(ctx context.Context, paymentRef string) (string, error) {
	payload := map[string]any{
		"transaction": paymentRef,
	}

	var data struct {
		Status string `json:"status"`
	}

	if err := c.post(ctx, "/refund", payload, &data); err != nil {
		return "", err
	}

	return data.Status, nil
}

// VerifySignature проверяет подпись вебхука: HMAC-SHA512 тела запроса
// секретным ключом, hex в заголовке x-paystack-signature.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

type envelope struct {
	Status  bool                `json:"status"`
	Message string              `json:"message"`
	Data    jsoniter.RawMessage `json:"data"`
}

// post выполняет вызов и разворачивает стандартный конверт ответа.
// Сетевые ошибки маппятся в ProviderUnavailable (можно ретраить), явные
// отказы провайдера — в ProviderRejected (ретрай бессмыслен).
func (c *Client) post(ctx context.Context, path string, payload any, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to build request")
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(err, errcodes.ProviderUnavailable, "paystack is unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return domain.NewError(errcodes.ProviderUnavailable,
			fmt.Sprintf("paystack returned %d on %s", resp.StatusCode, path))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return domain.WrapError(err, errcodes.ProviderUnavailable, "failed to decode paystack response")
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Status {
		return domain.NewError(errcodes.ProviderRejected,
			fmt.Sprintf("paystack rejected %s: %s", path, env.Message))
	}

	if dest != nil {
		if err := json.Unmarshal(env.Data, dest); err != nil {
			return domain.WrapError(err, errcodes.ProviderUnavailable, "failed to decode paystack data")
		}
	}

	return nil
}
