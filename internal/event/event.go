package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/chygoz/storefront/internal/domain"
	pkgkafka "github.com/chygoz/storefront/pkg/kafka"
)

// Topics (Kafka) and routing keys (RabbitMQ) of cart events.
const (
	TopicCartUpdated    = "storefront.cart.updated"
	TopicCartCleared    = "storefront.cart.cleared"
	TopicCartSwitched   = "storefront.cart.switched"
	TopicCartCheckedOut = "storefront.cart.checked_out"
)

const (
	AggregateTypeCart = "cart"
	SourceCartService = "cart-service"
)

// CartRef identifies one shopper's cart in one storefront.
type CartRef struct {
	SessionID string
	StoreID   string
}

// AggregateID keys every event of the cart, so a partitioned broker keeps
// them in order.
func (r CartRef) AggregateID() string {
	return r.SessionID + ":" + r.StoreID
}

// CartUpdatedData is the payload of storefront.cart.updated.
type CartUpdatedData struct {
	SessionID  string            `json:"session_id"`
	StoreID    string            `json:"store_id"`
	Items      []domain.CartItem `json:"items"`
	TotalItems int               `json:"total_items"`
	Subtotal   decimal.Decimal   `json:"subtotal"`
}

// CartClearedData is the payload of storefront.cart.cleared.
type CartClearedData struct {
	SessionID string `json:"session_id"`
	StoreID   string `json:"store_id"`
}

// CartSwitchedData is the payload of storefront.cart.switched, emitted when
// adding another store's item discarded the previous cart.
type CartSwitchedData struct {
	SessionID        string   `json:"session_id"`
	FromStoreID      string   `json:"from_store_id"`
	ToStoreID        string   `json:"to_store_id"`
	DiscardedItems   int      `json:"discarded_items"`
	DiscardedLineIDs []string `json:"discarded_line_ids"`
}

// CartCheckedOutData is the payload of storefront.cart.checked_out.
type CartCheckedOutData struct {
	SessionID  string            `json:"session_id"`
	StoreID    string            `json:"store_id"`
	OrderID    string            `json:"order_id"`
	Items      []domain.CartItem `json:"items"`
	TotalItems int               `json:"total_items"`
	Subtotal   decimal.Decimal   `json:"subtotal"`
}

// Publisher emits cart domain events.
type Publisher interface {
	PublishCartUpdated(ctx context.Context, ref CartRef, cart domain.Cart) error
	PublishCartCleared(ctx context.Context, ref CartRef) error
	PublishCartSwitched(ctx context.Context, ref CartRef, from domain.Cart, toStoreID string) error
	PublishCartCheckedOut(ctx context.Context, ref CartRef, orderID string, cart domain.Cart) error
}

// Transport delivers an event envelope to a topic. *pkgkafka.Producer and
// *RabbitMQTransport implement it.
type Transport interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
	Close() error
}

// CartPublisher builds cart events and hands them to a Transport.
type CartPublisher struct {
	transport Transport
	logger    *slog.Logger
}

var _ Publisher = (*CartPublisher)(nil)

// NewCartPublisher creates a publisher on top of transport.
func NewCartPublisher(transport Transport, logger *slog.Logger) *CartPublisher {
	return &CartPublisher{transport: transport, logger: logger}
}

// PublishCartUpdated publishes the cart state after a mutation.
func (p *CartPublisher) PublishCartUpdated(ctx context.Context, ref CartRef, cart domain.Cart) error {
	return p.publish(ctx, TopicCartUpdated, ref, CartUpdatedData{
		SessionID:  ref.SessionID,
		StoreID:    cart.StoreID,
		Items:      cart.Items,
		TotalItems: cart.TotalItems,
		Subtotal:   cart.Subtotal,
	})
}

// PublishCartCleared publishes that the cart was emptied.
func (p *CartPublisher) PublishCartCleared(ctx context.Context, ref CartRef) error {
	return p.publish(ctx, TopicCartCleared, ref, CartClearedData{
		SessionID: ref.SessionID,
		StoreID:   ref.StoreID,
	})
}

// PublishCartSwitched publishes that from was discarded in favour of a cart
// for toStoreID.
func (p *CartPublisher) PublishCartSwitched(ctx context.Context, ref CartRef, from domain.Cart, toStoreID string) error {
	ids := make([]string, len(from.Items))
	for i, item := range from.Items {
		ids[i] = item.ID
	}
	return p.publish(ctx, TopicCartSwitched, ref, CartSwitchedData{
		SessionID:        ref.SessionID,
		FromStoreID:      from.StoreID,
		ToStoreID:        toStoreID,
		DiscardedItems:   from.TotalItems,
		DiscardedLineIDs: ids,
	})
}

// PublishCartCheckedOut publishes the cart that was turned into orderID.
func (p *CartPublisher) PublishCartCheckedOut(ctx context.Context, ref CartRef, orderID string, cart domain.Cart) error {
	return p.publish(ctx, TopicCartCheckedOut, ref, CartCheckedOutData{
		SessionID:  ref.SessionID,
		StoreID:    cart.StoreID,
		OrderID:    orderID,
		Items:      cart.Items,
		TotalItems: cart.TotalItems,
		Subtotal:   cart.Subtotal,
	})
}

func (p *CartPublisher) publish(ctx context.Context, topic string, ref CartRef, data any) error {
	evt, err := pkgkafka.NewEventFromContext(ctx, topic, ref.AggregateID(), AggregateTypeCart, SourceCartService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	evt.WithMetadata("store_id", ref.StoreID)

	if err := p.transport.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published cart event",
		slog.String("topic", topic),
		slog.String("aggregate_id", ref.AggregateID()),
	)
	return nil
}

// Close releases the transport.
func (p *CartPublisher) Close() error {
	return p.transport.Close()
}

// NoopTransport drops every event. It backs EVENT_BROKER=none.
type NoopTransport struct{}

// Publish implements Transport.
func (NoopTransport) Publish(context.Context, string, *pkgkafka.Event) error { return nil }

// Close implements Transport.
func (NoopTransport) Close() error { return nil }
