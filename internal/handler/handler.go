// Package handler содержит HTTP-обработчики API магазина.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/adirebymkz/shop-backend/internal/currency"
	"github.com/adirebymkz/shop-backend/internal/model"
	"github.com/adirebymkz/shop-backend/internal/paystack"
	"github.com/adirebymkz/shop-backend/internal/repository"
	"github.com/adirebymkz/shop-backend/internal/service"
	"github.com/adirebymkz/shop-backend/internal/signature"
)

// Заголовок подписи вебхука Paystack.
const signatureHeader = "x-paystack-signature"

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	InitializePayment(ctx context.Context, orderID, email string) (*paystack.Intent, error)
	VerifyPayment(ctx context.Context, reference string) (*model.Order, bool, error)
	ProcessWebhookEvent(ctx context.Context, event string, res *model.VerificationResult) (*model.Order, bool, error)
	CreateOrder(ctx context.Context, items []model.OrderItem) (*model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	CreateProduct(ctx context.Context, name string, priceKobo int64, stock int32) (*model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	RestockProduct(ctx context.Context, id string, quantity int32) error
}

// Handler реализует HTTP-обработчики API магазина.
type Handler struct {
	service  Service
	logger   *zap.Logger
	verifier *signature.Verifier
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, verifier *signature.Verifier) *Handler {
	return &Handler{
		service:  s,
		logger:   logger,
		verifier: verifier,
	}
}

type orderResponse struct {
	ID           string             `json:"id"`
	Items        []model.OrderItem  `json:"items"`
	TotalPrice   float64            `json:"total_price"`
	PaymentState string             `json:"payment_state"`
	PaymentInfo  *model.PaymentInfo `json:"payment_info,omitempty"`
	PaidAt       *string            `json:"paid_at,omitempty"`
	CreatedAt    string             `json:"created_at"`
}

func toOrderResponse(o *model.Order) orderResponse {
	resp := orderResponse{
		ID:           o.ID,
		Items:        o.Items,
		TotalPrice:   currency.FromKobo(o.TotalKobo),
		PaymentState: string(o.PaymentState),
		PaymentInfo:  o.PaymentInfo,
		CreatedAt:    o.CreatedAt.Format(time.RFC3339),
	}
	if o.PaidAt != nil {
		s := o.PaidAt.Format(time.RFC3339)
		resp.PaidAt = &s
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type initializeRequest struct {
	OrderID string `json:"order_id"`
	Email   string `json:"email"`
}

type initializeResponse struct {
	Success          bool   `json:"success"`
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
}

// InitializePayment создаёт намерение платежа для заказа.
func (h *Handler) InitializePayment(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.OrderID == "" || req.Email == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	intent, err := h.service.InitializePayment(r.Context(), req.OrderID, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrOrderAlreadyPaid):
			http.Error(w, "order already paid", http.StatusBadRequest)
		default:
			h.logger.Error("initialize payment error", zap.Error(err), zap.String("order", req.OrderID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, initializeResponse{
		Success:          true,
		AuthorizationURL: intent.AuthorizationURL,
		Reference:        intent.Reference,
	})
}

type verifyResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Order   orderResponse `json:"order"`
}

// VerifyPayment запрашивает у провайдера статус платежа по reference
// и проводит сверку заказа.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	if reference == "" {
		http.Error(w, "payment reference required", http.StatusBadRequest)
		return
	}

	order, already, err := h.service.VerifyPayment(r.Context(), reference)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotSuccessful):
			http.Error(w, "payment verification failed", http.StatusBadRequest)
		case errors.Is(err, repository.ErrOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrInsufficientStock):
			h.logger.Error("paid order cannot be fulfilled", zap.Error(err), zap.String("reference", reference))
			http.Error(w, "insufficient stock for paid order", http.StatusConflict)
		default:
			h.logger.Error("verify payment error", zap.Error(err), zap.String("reference", reference))
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		}
		return
	}

	message := "payment verified, stock updated, order confirmed"
	if already {
		message = "order already processed"
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		Success: true,
		Message: message,
		Order:   toOrderResponse(order),
	})
}

type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Metadata  struct {
			OrderID string `json:"orderId"`
		} `json:"metadata"`
	} `json:"data"`
}

// PaystackWebhook обрабатывает асинхронные уведомления провайдера.
// Тело читается целиком до разбора JSON: подпись считается по байтам
// ровно в том виде, в каком они пришли по сети.
func (h *Handler) PaystackWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !h.verifier.Verify(body, r.Header.Get(signatureHeader)) {
		http.Error(w, "invalid webhook signature", http.StatusForbidden)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if payload.Event == service.EventChargeSuccess && payload.Data.Metadata.OrderID == "" {
		http.Error(w, "order id missing in metadata", http.StatusBadRequest)
		return
	}

	_, _, err = h.service.ProcessWebhookEvent(r.Context(), payload.Event, &model.VerificationResult{
		Reference: payload.Data.Reference,
		Status:    payload.Data.Status,
		OrderID:   payload.Data.Metadata.OrderID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotSuccessful):
			// провайдер прислал charge.success с неуспешным статусом:
			// подтверждаем доставку, состояние не меняем
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("event acknowledged"))
		case errors.Is(err, repository.ErrOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrInsufficientStock):
			// non-2xx заставит провайдера повторить доставку после пополнения остатков
			h.logger.Error("paid order cannot be fulfilled", zap.Error(err),
				zap.String("order", payload.Data.Metadata.OrderID))
			http.Error(w, "insufficient stock for paid order", http.StatusConflict)
		default:
			h.logger.Error("webhook processing error", zap.Error(err),
				zap.String("reference", payload.Data.Reference))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("webhook processed"))
}

type createOrderRequest struct {
	Items []model.OrderItem `json:"items"`
}

// CreateOrder создаёт неоплаченный заказ.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), req.Items)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("create order error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// GetOrder возвращает заказ по идентификатору.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get order error", zap.Error(err), zap.String("order", orderID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type productRequest struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int32   `json:"stock"`
}

type productResponse struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int32   `json:"stock"`
}

func toProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:    p.ID,
		Name:  p.Name,
		Price: currency.FromKobo(p.PriceKobo),
		Stock: p.Stock,
	}
}

// CreateProduct создаёт товар. Цена принимается в основных единицах валюты.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	product, err := h.service.CreateProduct(r.Context(), req.Name, currency.ToKobo(req.Price), req.Stock)
	if err != nil {
		h.logger.Error("create product error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

// GetProduct возвращает товар по идентификатору.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	product, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get product error", zap.Error(err), zap.String("product", productID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

type restockRequest struct {
	Quantity int32 `json:"quantity"`
}

// RestockProduct увеличивает остаток товара. После пополнения повторная
// доставка вебхука или повторная верификация проводят зависший заказ.
func (h *Handler) RestockProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	var req restockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.RestockProduct(r.Context(), productID, req.Quantity); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("restock error", zap.Error(err), zap.String("product", productID))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
}
