package alerts

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPublishStockAlert_NilProducerSafe(t *testing.T) {
	var p *Producer

	p.PublishStockAlert(StockAlert{OrderID: "order-1"})
	p.WaitClosed()
}

func TestPublishStockAlert_Enqueues(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, zap.NewNop())

	p.PublishStockAlert(StockAlert{
		OrderID:    "order-1",
		Reference:  "ref-1",
		Reason:     "insufficient stock: product gele",
		OccurredAt: time.Now().UTC(),
	})

	select {
	case m := <-p.inbox:
		if string(m.Key) != "order-1" {
			t.Fatalf("key = %q, want order-1", m.Key)
		}
		var alert StockAlert
		if err := json.Unmarshal(m.Value, &alert); err != nil {
			t.Fatalf("unmarshal alert: %v", err)
		}
		if alert.Reference != "ref-1" {
			t.Fatalf("reference = %q, want ref-1", alert.Reference)
		}
	default:
		t.Fatalf("alert was not enqueued")
	}
}

// Во время остановки сервер ещё дорабатывает запросы: публикация после
// завершения цикла отправки должна молча отбрасываться, а не паниковать.
func TestPublishStockAlert_AfterShutdownDropped(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()
	p.WaitClosed()

	p.PublishStockAlert(StockAlert{
		OrderID:    "order-1",
		Reference:  "ref-1",
		Reason:     "insufficient stock: product gele",
		OccurredAt: time.Now().UTC(),
	})

	select {
	case <-p.inbox:
		t.Fatalf("alert enqueued after shutdown")
	default:
	}
}
