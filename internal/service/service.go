// Package service реализует бизнес-логику магазина и сверку платежей.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adirebymkz/shop-backend/internal/alerts"
	"github.com/adirebymkz/shop-backend/internal/cache"
	"github.com/adirebymkz/shop-backend/internal/model"
	"github.com/adirebymkz/shop-backend/internal/paystack"
	"github.com/adirebymkz/shop-backend/internal/repository"
)

// Валюта магазина. Провайдер принимает суммы в кобо.
const currencyNGN = "NGN"

// EventChargeSuccess — единственное событие вебхука, запускающее сверку платежа.
const EventChargeSuccess = "charge.success"

// ErrPaymentNotSuccessful возвращается, если провайдер не подтвердил платёж.
var ErrPaymentNotSuccessful = errors.New("payment not successful")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateProduct(ctx context.Context, name string, priceKobo int64, stock int32) (*model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	RestockProduct(ctx context.Context, id string, quantity int32) error
	CheckAvailability(ctx context.Context, productID string, quantity int32) (bool, error)
	TryDecrementStock(ctx context.Context, productID string, quantity int32) error
	CreateOrder(ctx context.Context, items []model.OrderItem) (*model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ApplyPayment(ctx context.Context, orderID, reference, providerStatus string) (*model.Order, error)
}

// Gateway описывает контракт платёжного провайдера.
type Gateway interface {
	Initialize(ctx context.Context, email string, amountKobo int64, currency, orderID string) (*paystack.Intent, error)
	Verify(ctx context.Context, reference string) (*model.VerificationResult, error)
}

// Service содержит бизнес-логику магазина.
type Service struct {
	repo    Repository
	gateway Gateway
	alerts  *alerts.Producer
	events  *cache.Events
}

// NewService создаёт сервис. Продюсер уведомлений и кеш событий опциональны.
func NewService(repo Repository, gateway Gateway, alertProducer *alerts.Producer, events *cache.Events) *Service {
	return &Service{
		repo:    repo,
		gateway: gateway,
		alerts:  alertProducer,
		events:  events,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.events != nil {
		_ = s.events.Close()
	}
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// InitializePayment создаёт намерение платежа для неоплаченного заказа.
func (s *Service) InitializePayment(ctx context.Context, orderID, email string) (*paystack.Intent, error) {
	if s.gateway == nil {
		return nil, fmt.Errorf("payment gateway not configured")
	}

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Paid() {
		return nil, repository.ErrOrderAlreadyPaid
	}

	return s.gateway.Initialize(ctx, email, order.TotalKobo, currencyNGN, order.ID)
}

// Reconcile применяет результат проверки платежа к заказу: единственный
// путь перевода заказа в PAID и списания остатков. Возвращает итоговое
// состояние заказа и признак того, что заказ уже был проведён ранее.
//
// Оба входа — запрос верификации и вебхук — попадают сюда; гонки между
// ними разрешает атомарный ApplyPayment хранилища, а не эта функция.
func (s *Service) Reconcile(ctx context.Context, res *model.VerificationResult) (*model.Order, bool, error) {
	if !res.Succeeded() {
		return nil, false, fmt.Errorf("%w: provider status %q", ErrPaymentNotSuccessful, res.Status)
	}

	order, err := s.repo.ApplyPayment(ctx, res.OrderID, res.Reference, res.Status)
	if err == nil {
		return order, false, nil
	}

	if errors.Is(err, repository.ErrOrderAlreadyPaid) {
		order, getErr := s.repo.GetOrder(ctx, res.OrderID)
		if getErr != nil {
			return nil, false, getErr
		}
		return order, true, nil
	}

	if errors.Is(err, repository.ErrInsufficientStock) {
		// Клиент уже заплатил, а провести заказ нельзя: заказ остаётся UNPAID
		// до пополнения остатков, оператор получает уведомление.
		s.alerts.PublishStockAlert(alerts.StockAlert{
			OrderID:    res.OrderID,
			Reference:  res.Reference,
			Reason:     err.Error(),
			OccurredAt: time.Now().UTC(),
		})
	}

	return nil, false, err
}

// VerifyPayment запрашивает у провайдера статус платежа по reference
// и проводит сверку.
func (s *Service) VerifyPayment(ctx context.Context, reference string) (*model.Order, bool, error) {
	if s.gateway == nil {
		return nil, false, fmt.Errorf("payment gateway not configured")
	}

	res, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, false, err
	}

	return s.Reconcile(ctx, res)
}

// ProcessWebhookEvent обрабатывает аутентифицированное событие вебхука.
// Сверку запускает только charge.success, остальные события подтверждаются
// без обработки. Повторные доставки срезаются кешем, но источником истины
// остаётся атомарная проверка-и-захват заказа в хранилище.
func (s *Service) ProcessWebhookEvent(ctx context.Context, event string, res *model.VerificationResult) (*model.Order, bool, error) {
	if event != EventChargeSuccess {
		return nil, false, nil
	}

	if s.events.Seen(ctx, res.Reference) {
		return nil, true, nil
	}

	order, already, err := s.Reconcile(ctx, res)
	if err != nil {
		return nil, false, err
	}

	s.events.MarkProcessed(ctx, res.Reference)

	return order, already, nil
}

// CreateOrder создаёт неоплаченный заказ по списку позиций.
func (s *Service) CreateOrder(ctx context.Context, items []model.OrderItem) (*model.Order, error) {
	if len(items) == 0 {
		return nil, errors.New("order must contain at least one item")
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("quantity must be positive for product %s", it.ProductID)
		}
	}

	return s.repo.CreateOrder(ctx, items)
}

// GetOrder возвращает заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// CreateProduct создаёт товар. Цена хранится в кобо.
func (s *Service) CreateProduct(ctx context.Context, name string, priceKobo int64, stock int32) (*model.Product, error) {
	if name == "" {
		return nil, errors.New("product name required")
	}
	if priceKobo < 0 {
		return nil, errors.New("price must not be negative")
	}
	if stock < 0 {
		return nil, errors.New("stock must not be negative")
	}

	return s.repo.CreateProduct(ctx, name, priceKobo, stock)
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// RestockProduct увеличивает остаток товара.
func (s *Service) RestockProduct(ctx context.Context, id string, quantity int32) error {
	if quantity <= 0 {
		return errors.New("restock quantity must be positive")
	}

	return s.repo.RestockProduct(ctx, id, quantity)
}
