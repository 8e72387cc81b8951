// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/adirebymkz/shop-backend/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrOrderNotFound возвращается, если заказ не найден.
var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderAlreadyPaid возвращается при попытке провести оплату уже оплаченного заказа.
	ErrOrderAlreadyPaid = errors.New("order already paid")
	// ErrInsufficientStock возвращается, если остатка товара не хватает на позицию заказа.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Ошибки контекста не ретраим
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Конкурентные сверки сериализуются на блокировке строки заказа,
		// но deadlock или serialization failure всё равно возможны и безопасны для повтора.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

// isValidID отсекает идентификаторы, которые заведомо не могут существовать
// в хранилище. Идентификаторы приходят извне (URL, metadata вебхука), и
// не-UUID значение должно разрешаться в «не найдено», а не в ошибку
// приведения типов на стороне PostgreSQL.
func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateProduct создаёт товар с указанной ценой в кобо и начальным остатком.
func (r *PostgresRepository) CreateProduct(ctx context.Context, name string, priceKobo int64, stock int32) (*model.Product, error) {
	p := model.Product{
		ID:        uuid.NewString(),
		Name:      name,
		PriceKobo: priceKobo,
		Stock:     stock,
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (id, name, price, stock) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		p.ID, p.Name, p.PriceKobo, p.Stock,
	).Scan(&p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}

	return &p, nil
}

// GetProduct возвращает товар по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	if !isValidID(id) {
		return nil, ErrProductNotFound
	}

	var p model.Product
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, price, stock, created_at FROM products WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.PriceKobo, &p.Stock, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return &p, nil
}

// RestockProduct увеличивает остаток товара. Используется оператором
// для разблокировки заказов, упершихся в нехватку остатка.
func (r *PostgresRepository) RestockProduct(ctx context.Context, id string, quantity int32) error {
	if !isValidID(id) {
		return ErrProductNotFound
	}

	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE products SET stock = stock + $2 WHERE id = $1`,
		id, quantity,
	)
	if err != nil {
		return fmt.Errorf("restock product: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// CheckAvailability сообщает, хватает ли остатка товара на указанное количество.
func (r *PostgresRepository) CheckAvailability(ctx context.Context, productID string, quantity int32) (bool, error) {
	if !isValidID(productID) {
		return false, ErrProductNotFound
	}

	var stock int32
	err := r.pool.QueryRow(ctx,
		`SELECT stock FROM products WHERE id = $1`,
		productID,
	).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrProductNotFound
		}
		return false, fmt.Errorf("check availability: %w", err)
	}

	return stock >= quantity, nil
}

// TryDecrementStock атомарно уменьшает остаток товара, если его хватает.
// Условие stock >= quantity входит в сам UPDATE, поэтому конкурентные
// списания не могут увести остаток в минус.
func (r *PostgresRepository) TryDecrementStock(ctx context.Context, productID string, quantity int32) error {
	if !isValidID(productID) {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return r.tryDecrementStock(ctx, r.pool, productID, quantity)
}

// queryExecer покрывает pgxpool.Pool и pgx.Tx.
type queryExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PostgresRepository) tryDecrementStock(ctx context.Context, q queryExecer, productID string, quantity int32) error {
	cmdTag, err := q.Exec(ctx,
		`UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`,
		productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	if cmdTag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`,
		productID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check product exists: %w", err)
	}

	if !exists {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return fmt.Errorf("%w: product %s", ErrInsufficientStock, productID)
}

// CreateOrder создаёт неоплаченный заказ. Сумма заказа фиксируется
// по текущим ценам товаров в момент создания.
func (r *PostgresRepository) CreateOrder(ctx context.Context, items []model.OrderItem) (*model.Order, error) {
	for _, it := range items {
		if !isValidID(it.ProductID) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	o := model.Order{
		ID:           uuid.NewString(),
		Items:        items,
		PaymentState: model.PaymentStateUnpaid,
	}

	var total int64
	for _, it := range items {
		var price int64
		err := tx.QueryRow(ctx, `SELECT price FROM products WHERE id = $1`, it.ProductID).Scan(&price)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
			}
			return nil, fmt.Errorf("select product price: %w", err)
		}
		total += price * int64(it.Quantity)
	}
	o.TotalKobo = total

	err = tx.QueryRow(ctx,
		`INSERT INTO orders (id, total) VALUES ($1, $2) RETURNING created_at`,
		o.ID, o.TotalKobo,
	).Scan(&o.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for _, it := range items {
		_, err := tx.Exec(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity) VALUES ($1, $2, $3)`,
			o.ID, it.ProductID, it.Quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &o, nil
}

// GetOrder возвращает заказ с позициями по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	if !isValidID(id) {
		return nil, ErrOrderNotFound
	}

	var (
		o         model.Order
		state     string
		reference *string
		status    *string
	)

	err := r.pool.QueryRow(ctx,
		`SELECT id, total, payment_state, payment_reference, payment_status, paid_at, created_at
		 FROM orders
		 WHERE id = $1`,
		id,
	).Scan(&o.ID, &o.TotalKobo, &state, &reference, &status, &o.PaidAt, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	o.PaymentState = model.PaymentState(state)

	if reference != nil {
		o.PaymentInfo = &model.PaymentInfo{Reference: *reference, Status: *status}
	}

	items, err := r.getOrderItems(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	o.Items = items

	return &o, nil
}

func (r *PostgresRepository) getOrderItems(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, orderID string) ([]model.OrderItem, error) {
	rows, err := q.Query(ctx,
		`SELECT product_id, quantity FROM order_items WHERE order_id = $1 ORDER BY product_id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ProductID, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// ApplyPayment проводит оплату заказа как единую транзакцию:
// захват заказа, списание остатков по всем позициям и перевод в PAID.
// Строка заказа блокируется через FOR UPDATE, поэтому из конкурентных
// сверок одного заказа только первая увидит UNPAID; остальные получают
// ErrOrderAlreadyPaid. При нехватке остатка хотя бы по одной позиции
// транзакция откатывается целиком и заказ остаётся UNPAID.
func (r *PostgresRepository) ApplyPayment(ctx context.Context, orderID, reference, providerStatus string) (*model.Order, error) {
	if !isValidID(orderID) {
		return nil, ErrOrderNotFound
	}

	var order *model.Order

	err := r.withRetry(ctx, func() error {
		var txErr error
		order, txErr = r.applyPayment(ctx, orderID, reference, providerStatus)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func (r *PostgresRepository) applyPayment(ctx context.Context, orderID, reference, providerStatus string) (*model.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		o     model.Order
		state string
	)
	err = tx.QueryRow(ctx,
		`SELECT id, total, payment_state, created_at FROM orders WHERE id = $1 FOR UPDATE`,
		orderID,
	).Scan(&o.ID, &o.TotalKobo, &state, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	o.PaymentState = model.PaymentState(state)

	if o.PaymentState == model.PaymentStatePaid {
		return nil, ErrOrderAlreadyPaid
	}

	items, err := r.getOrderItems(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	o.Items = items

	for _, it := range items {
		if err := r.tryDecrementStock(ctx, tx, it.ProductID, it.Quantity); err != nil {
			return nil, err
		}
	}

	var paidAt time.Time
	err = tx.QueryRow(ctx,
		`UPDATE orders
		 SET payment_state = $2, payment_reference = $3, payment_status = $4, paid_at = now()
		 WHERE id = $1
		 RETURNING paid_at`,
		orderID, string(model.PaymentStatePaid), reference, providerStatus,
	).Scan(&paidAt)
	if err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	o.PaymentState = model.PaymentStatePaid
	o.PaymentInfo = &model.PaymentInfo{Reference: reference, Status: providerStatus}
	o.PaidAt = &paidAt

	return &o, nil
}
