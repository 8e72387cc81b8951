// Package cache содержит быстрый путь дедупликации вебхуков поверх Redis.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Ключ дедупликации доставки вебхука: dedup:webhook:{reference}
	keyWebhookDedup = "dedup:webhook:%s"

	dedupTTL = 48 * time.Hour
)

// Events отмечает обработанные reference платёжных событий, чтобы повторные
// доставки вебхука подтверждались без обращения к БД. Источник истины —
// атомарная проверка-и-захват заказа в хранилище; кеш лишь срезает лишние транзакции.
type Events struct {
	rdb *redis.Client
}

// NewEvents создаёт кеш событий поверх Redis по указанному адресу.
func NewEvents(addr string) *Events {
	return &Events{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Seen сообщает, обрабатывался ли уже указанный reference.
// Ошибки Redis считаются промахом: корректность обеспечивает БД.
func (e *Events) Seen(ctx context.Context, reference string) bool {
	if e == nil {
		return false
	}

	n, err := e.rdb.Exists(ctx, fmt.Sprintf(keyWebhookDedup, reference)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// MarkProcessed отмечает reference как обработанный.
func (e *Events) MarkProcessed(ctx context.Context, reference string) {
	if e == nil {
		return
	}

	e.rdb.SetNX(ctx, fmt.Sprintf(keyWebhookDedup, reference), 1, dedupTTL)
}

// Close закрывает соединение с Redis.
func (e *Events) Close() error {
	if e == nil {
		return nil
	}
	return e.rdb.Close()
}
