package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/domain"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrSettingsNotFound = errors.New("provider settings not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrBadTransition    = errors.New("illegal order status transition")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OutboxEvent is a notification row written in the same transaction as the
// order mutation it describes and published asynchronously.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

const (
	EventOrderCreated   = "order.created"
	EventOrderConfirmed = "order.confirmed"
)

type OrderRepository interface {
	// CreatePendingOrder inserts the order, its items and the order.created
	// outbox event as one atomic unit.
	CreatePendingOrder(ctx context.Context, order *domain.Order) error

	// ConfirmOrder transitions the order to confirmed/completed with a guarded
	// update: metadata is shallow-merged into payment_metadata and the
	// order.confirmed event is written only when this call wins the
	// transition. The bool reports whether the transition happened now; false
	// means the order was already completed and nothing was written.
	ConfirmOrder(ctx context.Context, id uuid.UUID, metadata map[string]any) (*domain.Order, bool, error)

	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)

	// GetOrderByProviderRef finds an order whose payment_metadata contains the
	// given key/value pair. Used by webhook resolution and as the durable
	// fallback when the in-memory pending registry has lost an entry.
	GetOrderByProviderRef(ctx context.Context, key, value string) (*domain.Order, error)

	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)

	// UpdateOrderStatus applies an admin lifecycle transition.
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error)

	// CancelStaleOrders cancels pending/pending orders older than the cutoff
	// and returns how many were touched.
	CancelStaleOrders(ctx context.Context, olderThan time.Duration) (int64, error)

	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error

	RunMigrations(*Credentials) error
	Close() error
}

type ProductStore interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

// ProviderSettings is the per-provider configuration singleton managed by the
// back office. Read-only to the payment core.
type ProviderSettings struct {
	Provider      string
	Enabled       bool
	Mode          string // sandbox | live
	APIKey        string
	ClientID      string
	ClientSecret  string
	WebhookSecret string
	UpdatedAt     time.Time
}

func (s *ProviderSettings) Sandbox() bool {
	return s.Mode != "live"
}

// Fingerprint identifies a credentials+mode combination so cached provider
// clients can be reused until the settings actually change.
func (s *ProviderSettings) Fingerprint() string {
	h := sha256.New()
	for _, part := range []string{s.Provider, s.Mode, s.APIKey, s.ClientID, s.ClientSecret} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

type SettingsStore interface {
	GetProviderSettings(ctx context.Context, provider string) (*ProviderSettings, error)
}
