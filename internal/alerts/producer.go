// Package alerts публикует операторские уведомления в Kafka.
package alerts

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// TopicStockAlert — топик уведомлений о нехватке остатков по оплаченным заказам.
const TopicStockAlert = "payment.stock.alert"

// StockAlert описывает заказ, который оплачен провайдером, но не может быть
// проведён из-за нехватки остатка. Требует ручного вмешательства оператора.
type StockAlert struct {
	OrderID    string    `json:"order_id"`
	Reference  string    `json:"reference"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Producer асинхронно публикует уведомления в Kafka.
type Producer struct {
	w      *kafka.Writer
	inbox  chan kafka.Message
	done   chan struct{}
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewProducer создаёт продюсер уведомлений для указанных брокеров.
func NewProducer(brokers []string, logger *zap.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        TopicStockAlert,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		inbox:  make(chan kafka.Message, 256),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Start запускает цикл отправки. Останавливается при отмене контекста,
// дослав накопленные сообщения. Канал inbox не закрывается: во время
// остановки HTTP-сервер ещё дорабатывает запросы и может публиковать
// уведомления — такие публикации отбрасываются по флагу, а не паникуют.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		for {
			select {
			case <-ctx.Done():
				p.mu.Lock()
				p.closed = true
				p.mu.Unlock()

				for {
					select {
					case m := <-p.inbox:
						p.write(m)
					default:
						_ = p.w.Close()
						return
					}
				}
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.logger.Error("publish alert", zap.Error(err), zap.String("key", string(m.Key)))
	}
}

// PublishStockAlert ставит уведомление в очередь на отправку.
// Ключ партиционирования — идентификатор заказа, чтобы события одного
// заказа сохраняли порядок. Nil-продюсер безопасен: уведомления выключены.
func (p *Producer) PublishStockAlert(alert StockAlert) {
	if p == nil {
		return
	}

	value, err := json.Marshal(alert)
	if err != nil {
		p.logger.Error("marshal alert", zap.Error(err))
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.logger.Warn("producer stopped, dropping alert", zap.String("order", alert.OrderID))
		return
	}

	select {
	case p.inbox <- kafka.Message{Key: []byte(alert.OrderID), Value: value, Time: time.Now()}:
	default:
		p.logger.Warn("alert inbox full, dropping", zap.String("order", alert.OrderID))
	}
}

// WaitClosed блокируется до завершения цикла отправки.
func (p *Producer) WaitClosed() {
	if p == nil {
		return
	}
	<-p.done
}
