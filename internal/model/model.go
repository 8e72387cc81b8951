// Package model содержит доменные сущности магазина.
package model

import "time"

// PaymentState описывает статус оплаты заказа.
type PaymentState string

const (
	PaymentStateUnpaid PaymentState = "UNPAID"
	PaymentStatePaid   PaymentState = "PAID"
)

// OrderItem описывает позицию заказа: товар и количество.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

// PaymentInfo содержит данные платежа, полученные от платёжного провайдера.
// Заполняется ровно один раз при переходе заказа в состояние PAID.
type PaymentInfo struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// Order описывает заказ.
// PaymentInfo и PaidAt равны nil тогда и только тогда, когда PaymentState == UNPAID.
type Order struct {
	ID           string
	Items        []OrderItem
	TotalKobo    int64
	PaymentState PaymentState
	PaymentInfo  *PaymentInfo
	PaidAt       *time.Time
	CreatedAt    time.Time
}

// Paid сообщает, оплачен ли заказ.
func (o *Order) Paid() bool {
	return o.PaymentState == PaymentStatePaid
}

// Product описывает товар и его остаток на складе.
type Product struct {
	ID        string
	Name      string
	PriceKobo int64
	Stock     int32
	CreatedAt time.Time
}

// Статусы платежа, которые возвращает платёжный провайдер.
const (
	ProviderStatusSuccess   = "success"
	ProviderStatusFailed    = "failed"
	ProviderStatusPending   = "pending"
	ProviderStatusAbandoned = "abandoned"
)

// VerificationResult описывает нормализованный результат проверки платежа.
// Поступает либо из ответа провайдера на запрос верификации, либо из тела вебхука.
type VerificationResult struct {
	Reference string
	Status    string
	OrderID   string
}

// Succeeded сообщает, подтвердил ли провайдер успешность платежа.
// Любой неизвестный статус считается неуспешным.
func (r *VerificationResult) Succeeded() bool {
	return r.Status == ProviderStatusSuccess
}
