package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "storefront_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

const orderColumns = `id, user_id, total, shipping_address, notes, status,
	payment_method, payment_status, payment_metadata,
	shipping_option_id, shipping_cost, shipping_option_name,
	created_at, updated_at`

func (r *Repository) CreatePendingOrder(ctx context.Context, order *domain.Order) error {
	metadataJSON, err := json.Marshal(orDefault(order.PaymentMetadata))
	if err != nil {
		return fmt.Errorf("marshal payment metadata: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO orders (id, user_id, total, shipping_address, notes, status,
	              payment_method, payment_status, payment_metadata,
	              shipping_option_id, shipping_cost, shipping_option_name, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())`

	_, err = tx.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		order.Total,
		order.ShippingAddress,
		order.Notes,
		order.Status,
		order.PaymentMethod,
		order.PaymentStatus,
		metadataJSON,
		order.ShippingOptionID,
		order.ShippingCost,
		order.ShippingOptionName,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price)
	              VALUES ($1, $2, $3, $4, $5)`
	for _, item := range order.Items {
		if _, err := tx.ExecContext(ctx, itemQuery,
			order.ID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice); err != nil {
			return fmt.Errorf("insert order item %d: %w", item.ProductID, err)
		}
	}

	if err := insertOutboxEvent(ctx, tx, EventOrderCreated, order); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

func (r *Repository) ConfirmOrder(ctx context.Context, id uuid.UUID, metadata map[string]any) (*domain.Order, bool, error) {
	metadataJSON, err := json.Marshal(orDefault(metadata))
	if err != nil {
		return nil, false, fmt.Errorf("marshal payment metadata: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Guarded update: the payment_status predicate makes the idempotency
	// check atomic with the write, so a duplicate webhook and a duplicate
	// client confirm cannot both win.
	query := fmt.Sprintf(`UPDATE orders
	          SET status = $2, payment_status = $3,
	              payment_metadata = payment_metadata || $4::jsonb, updated_at = NOW()
	          WHERE id = $1 AND payment_status <> $3
	          RETURNING %s`, orderColumns)

	order, err := scanOrder(tx.QueryRowContext(ctx, query,
		id, domain.OrderStatusConfirmed, domain.PaymentStatusCompleted, metadataJSON))
	if errors.Is(err, sql.ErrNoRows) {
		// Already completed (or missing): no-op, return the existing state.
		existing, getErr := r.GetOrderByID(ctx, id)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("confirm order: %w", err)
	}

	if err := insertOutboxEvent(ctx, tx, EventOrderConfirmed, order); err != nil {
		return nil, false, err
	}

	// Items are read inside the tx: a failure here rolls the confirm back
	// instead of reporting an error for a transition that already committed.
	order.Items, err = loadItems(ctx, tx, order.ID)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit confirm: %w", err)
	}
	return order, true, nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	order.Items, err = loadItems(ctx, r.db, order.ID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *Repository) GetOrderByProviderRef(ctx context.Context, key, value string) (*domain.Order, error) {
	ref, err := json.Marshal(map[string]string{key: value})
	if err != nil {
		return nil, fmt.Errorf("marshal provider ref: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM orders WHERE payment_metadata @> $1::jsonb
	          ORDER BY created_at DESC LIMIT 1`, orderColumns)

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by provider ref: %w", err)
	}

	order.Items, err = loadItems(ctx, r.db, order.ID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *Repository) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, orderColumns)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	for _, order := range orders {
		order.Items, err = loadItems(ctx, r.db, order.ID)
		if err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *Repository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	current, err := r.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrBadTransition, current.Status, status)
	}

	query := fmt.Sprintf(`UPDATE orders SET status = $2, updated_at = NOW()
	          WHERE id = $1 AND status = $3 RETURNING %s`, orderColumns)

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id, status, current.Status))
	if errors.Is(err, sql.ErrNoRows) {
		// Lost a race with a concurrent transition.
		return nil, fmt.Errorf("%w: %s -> %s", ErrBadTransition, current.Status, status)
	}
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	order.Items = current.Items
	return order, nil
}

func (r *Repository) CancelStaleOrders(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `UPDATE orders SET status = $1, payment_status = $2, updated_at = NOW()
	          WHERE status = $3 AND payment_status = $4 AND created_at < $5`

	res, err := r.db.ExecContext(ctx, query,
		domain.OrderStatusCancelled,
		domain.PaymentStatusFailed,
		domain.OrderStatusPending,
		domain.PaymentStatusPending,
		time.Now().Add(-olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("cancel stale orders: %w", err)
	}
	return res.RowsAffected()
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM outbox_events WHERE processed_at IS NULL
	          ORDER BY id ASC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadItems(ctx context.Context, q querier, orderID uuid.UUID) ([]domain.OrderItem, error) {
	query := `SELECT product_id, product_name, quantity, unit_price
	          FROM order_items WHERE order_id = $1 ORDER BY id ASC`

	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var metadataJSON []byte
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Total,
		&order.ShippingAddress,
		&order.Notes,
		&order.Status,
		&order.PaymentMethod,
		&order.PaymentStatus,
		&metadataJSON,
		&order.ShippingOptionID,
		&order.ShippingCost,
		&order.ShippingOptionName,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadataJSON, &order.PaymentMetadata); err != nil {
		return nil, fmt.Errorf("unmarshal payment metadata: %w", err)
	}
	return &order, nil
}

func insertOutboxEvent(ctx context.Context, tx *sql.Tx, eventType string, order *domain.Order) error {
	payload := map[string]any{
		"order_id":       order.ID.String(),
		"user_id":        order.UserID,
		"total":          order.Total.StringFixed(2),
		"status":         order.Status,
		"payment_method": order.PaymentMethod,
		"metadata":       orDefault(order.PaymentMetadata),
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		order.ID.String(), eventType, payloadJSON)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func orDefault(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
