// Package paystack предоставляет клиент для платёжного провайдера Paystack.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/adirebymkz/shop-backend/internal/model"
)

// Client инкапсулирует HTTP-взаимодействие с API Paystack.
type Client struct {
	baseURL     string
	secretKey   string
	callbackURL string
	httpClient  *retryablehttp.Client
}

// Intent описывает созданное намерение платежа: ссылку на страницу оплаты
// и reference для последующей верификации.
type Intent struct {
	AuthorizationURL string
	Reference        string
}

type initializeRequest struct {
	Email       string   `json:"email"`
	Amount      int64    `json:"amount"`
	Currency    string   `json:"currency"`
	CallbackURL string   `json:"callback_url,omitempty"`
	Metadata    metadata `json:"metadata"`
}

type metadata struct {
	OrderID string `json:"orderId"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status    string   `json:"status"`
		Reference string   `json:"reference"`
		Amount    int64    `json:"amount"`
		Metadata  metadata `json:"metadata"`
	} `json:"data"`
}

// NewClient создаёт клиент Paystack с указанным адресом API и секретным ключом.
// Верификация платежа — идемпотентный GET, поэтому повторы на сетевых
// ошибках безопасны.
func NewClient(baseURL, secretKey string, callbackURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 3 * time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = 10 * time.Second

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		secretKey:   secretKey,
		httpClient:  rc,
		callbackURL: callbackURL,
	}
}

// Initialize создаёт намерение платежа для заказа на указанную сумму в кобо.
func (c *Client) Initialize(ctx context.Context, email string, amountKobo int64, currency, orderID string) (*Intent, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("paystack client not configured")
	}

	payload, err := json.Marshal(initializeRequest{
		Email:       email,
		Amount:      amountKobo,
		Currency:    currency,
		CallbackURL: c.callbackURL,
		Metadata:    metadata{OrderID: orderID},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/transaction/initialize", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var result initializeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if !result.Status {
		return nil, fmt.Errorf("initialize rejected: %s", result.Message)
	}

	return &Intent{
		AuthorizationURL: result.Data.AuthorizationURL,
		Reference:        result.Data.Reference,
	}, nil
}

// Verify запрашивает у провайдера статус платежа по reference
// и возвращает нормализованный результат.
func (c *Client) Verify(ctx context.Context, reference string) (*model.VerificationResult, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("paystack client not configured")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if !result.Status {
		return nil, fmt.Errorf("verify rejected: %s", result.Message)
	}

	return &model.VerificationResult{
		Reference: result.Data.Reference,
		Status:    result.Data.Status,
		OrderID:   result.Data.Metadata.OrderID,
	}, nil
}
