package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/adirebymkz/shop-backend/internal/model"
)

// Идентификаторы приходят из URL и metadata вебхука: произвольная строка
// должна разрешаться в «не найдено», а не в ошибку приведения UUID из БД.
func TestInvalidIDResolvesToNotFound(t *testing.T) {
	r := &PostgresRepository{}
	ctx := context.Background()

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{
			name: "get order",
			call: func() error {
				_, err := r.GetOrder(ctx, "not-a-uuid")
				return err
			},
			wantErr: ErrOrderNotFound,
		},
		{
			name: "apply payment",
			call: func() error {
				_, err := r.ApplyPayment(ctx, "../../etc/passwd", "ref-1", model.ProviderStatusSuccess)
				return err
			},
			wantErr: ErrOrderNotFound,
		},
		{
			name: "get product",
			call: func() error {
				_, err := r.GetProduct(ctx, "42")
				return err
			},
			wantErr: ErrProductNotFound,
		},
		{
			name: "restock product",
			call: func() error {
				return r.RestockProduct(ctx, "", 5)
			},
			wantErr: ErrProductNotFound,
		},
		{
			name: "check availability",
			call: func() error {
				_, err := r.CheckAvailability(ctx, "gele", 1)
				return err
			},
			wantErr: ErrProductNotFound,
		},
		{
			name: "decrement stock",
			call: func() error {
				return r.TryDecrementStock(ctx, "gele", 1)
			},
			wantErr: ErrProductNotFound,
		},
		{
			name: "create order",
			call: func() error {
				_, err := r.CreateOrder(ctx, []model.OrderItem{{ProductID: "gele", Quantity: 1}})
				return err
			},
			wantErr: ErrProductNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
