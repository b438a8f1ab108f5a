package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/chygoz/storefront/internal/backend"
	"github.com/chygoz/storefront/internal/cartstore"
	"github.com/chygoz/storefront/internal/domain"
	"github.com/chygoz/storefront/internal/event"
	"github.com/chygoz/storefront/internal/storage"
	apperrors "github.com/chygoz/storefront/pkg/errors"
	"github.com/chygoz/storefront/pkg/tracing"
)

// Limits caps what a single shopper can put in a cart.
type Limits struct {
	MaxQuantityPerItem int
	MaxItemsPerCart    int
	MaxPrice           decimal.Decimal
}

// DefaultLimits returns the storefront cart limits.
func DefaultLimits() Limits {
	return Limits{
		MaxQuantityPerItem: 100,
		MaxItemsPerCart:    50,
		MaxPrice:           decimal.NewFromInt(100_000),
	}
}

// AddItemInput holds the parameters for adding an item to the cart.
// StoreID defaults to the store the request was made against.
type AddItemInput struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Image    string
	Quantity int
	StoreID  string
}

// CheckoutInput holds the buyer details sent with the order.
type CheckoutInput struct {
	Email           string
	Currency        string
	ShippingAddress backend.ShippingAddress
}

// CheckoutResult is the outcome of a successful checkout.
type CheckoutResult struct {
	OrderID string      `json:"orderId"`
	Status  string      `json:"status"`
	Cart    domain.Cart `json:"cart"`
}

// OrderSubmitter creates orders in the order service.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, req backend.OrderRequest) (*backend.OrderResponse, error)
}

// CartService implements the cart operations of the storefront API. Every
// call hydrates the session's cart for one store, applies the change and
// publishes the matching event.
type CartService struct {
	storage   storage.Storage
	publisher event.Publisher
	orders    OrderSubmitter
	limits    Limits
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewCartService creates a new cart service. orders may be nil, in which case
// Checkout reports the order service as unavailable.
func NewCartService(st storage.Storage, publisher event.Publisher, orders OrderSubmitter, limits Limits, logger *slog.Logger) *CartService {
	return &CartService{
		storage:   st,
		publisher: publisher,
		orders:    orders,
		limits:    limits,
		logger:    logger,
		tracer:    tracing.Tracer("cart-service"),
	}
}

// open hydrates the cart of sessionID for storeID.
func (s *CartService) open(ctx context.Context, sessionID, storeID string) (*cartstore.Store, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}
	if storeID == "" {
		return nil, apperrors.InvalidInput("store id is required")
	}
	if !domain.ValidStoreID(storeID) {
		return nil, apperrors.InvalidInput("store id is not valid")
	}
	scoped := storage.Namespace(storage.SessionPrefix(sessionID), s.storage)
	return cartstore.New(ctx, storeID, scoped, s.logger), nil
}

func (s *CartService) startSpan(ctx context.Context, name, sessionID, storeID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "CartService."+name, trace.WithAttributes(
		attribute.String("cart.session_id", sessionID),
		attribute.String("cart.store_id", storeID),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// GetCart returns the cart of sessionID for storeID. A missing cart is empty.
func (s *CartService) GetCart(ctx context.Context, sessionID, storeID string) (cart *domain.Cart, err error) {
	ctx, span := s.startSpan(ctx, "GetCart", sessionID, storeID)
	defer func() { endSpan(span, err) }()

	store, err := s.open(ctx, sessionID, storeID)
	if err != nil {
		return nil, err
	}
	snapshot := store.Snapshot()
	return &snapshot, nil
}

// AddItem adds an item, merging it into an existing line with the same id.
// An item from another store replaces the whole cart.
func (s *CartService) AddItem(ctx context.Context, sessionID, storeID string, input AddItemInput) (cart *domain.Cart, err error) {
	ctx, span := s.startSpan(ctx, "AddItem", sessionID, storeID)
	defer func() { endSpan(span, err) }()

	if input.ID == "" {
		return nil, apperrors.InvalidInput("item id is required")
	}
	if input.Quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be greater than 0")
	}
	if input.Quantity > s.limits.MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", s.limits.MaxQuantityPerItem))
	}
	if input.Price.IsNegative() {
		return nil, apperrors.InvalidInput("price must not be negative")
	}
	if input.Price.GreaterThan(s.limits.MaxPrice) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("price must not exceed %s", s.limits.MaxPrice))
	}
	itemStore := strings.TrimSpace(input.StoreID)
	if itemStore == "" {
		itemStore = storeID
	} else if !domain.ValidStoreID(itemStore) {
		return nil, apperrors.InvalidInput("item store id is not valid")
	}

	store, err := s.open(ctx, sessionID, storeID)
	if err != nil {
		return nil, err
	}

	item := domain.CartItem{
		ID:       input.ID,
		Name:     input.Name,
		Price:    input.Price,
		Image:    input.Image,
		Quantity: input.Quantity,
		StoreID:  itemStore,
	}

	before := store.Snapshot()
	switching := len(before.Items) > 0 && before.StoreID != item.StoreID
	if !switching {
		if idx := domain.FindItemIndex(before.Items, item.ID); idx >= 0 {
			if before.Items[idx].Quantity+item.Quantity > s.limits.MaxQuantityPerItem {
				return nil, apperrors.InvalidInput(fmt.Sprintf("combined quantity must not exceed %d", s.limits.MaxQuantityPerItem))
			}
		} else if len(before.Items) >= s.limits.MaxItemsPerCart {
			return nil, apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", s.limits.MaxItemsPerCart))
		}
	}

	if err := store.AddItem(ctx, item); err != nil {
		return nil, err
	}

	ref := event.CartRef{SessionID: sessionID, StoreID: storeID}
	after := store.Snapshot()

	if switching {
		span.SetAttributes(attribute.String("cart.switched_from", before.StoreID))
		s.logger.InfoContext(ctx, "cart switched store",
			slog.String("from_store_id", before.StoreID),
			slog.String("to_store_id", item.StoreID),
			slog.Int("discarded_items", before.TotalItems),
		)
		if err := s.publisher.PublishCartSwitched(ctx, ref, before, item.StoreID); err != nil {
			s.logPublishError(ctx, event.TopicCartSwitched, err)
		}
	}
	s.publishUpdated(ctx, ref, after)

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("item_id", item.ID),
		slog.Int("quantity", item.Quantity),
	)

	return &after, nil
}

// UpdateQuantity sets the quantity of a line. A quantity of 0 or less removes it.
func (s *CartService) UpdateQuantity(ctx context.Context, sessionID, storeID, itemID string, quantity int) (cart *domain.Cart, err error) {
	ctx, span := s.startSpan(ctx, "UpdateQuantity", sessionID, storeID)
	defer func() { endSpan(span, err) }()

	if itemID == "" {
		return nil, apperrors.InvalidInput("item id is required")
	}
	if quantity > s.limits.MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", s.limits.MaxQuantityPerItem))
	}

	store, err := s.open(ctx, sessionID, storeID)
	if err != nil {
		return nil, err
	}
	if domain.FindItemIndex(store.Items(), itemID) < 0 {
		return nil, apperrors.NotFound("cart item", itemID)
	}

	if err := store.UpdateQuantity(ctx, itemID, quantity); err != nil {
		return nil, err
	}

	after := store.Snapshot()
	s.publishUpdated(ctx, event.CartRef{SessionID: sessionID, StoreID: storeID}, after)

	s.logger.InfoContext(ctx, "cart item quantity updated",
		slog.String("item_id", itemID),
		slog.Int("quantity", quantity),
	)

	return &after, nil
}

// RemoveItem drops a line from the cart.
func (s *CartService) RemoveItem(ctx context.Context, sessionID, storeID, itemID string) (cart *domain.Cart, err error) {
	ctx, span := s.startSpan(ctx, "RemoveItem", sessionID, storeID)
	defer func() { endSpan(span, err) }()

	if itemID == "" {
		return nil, apperrors.InvalidInput("item id is required")
	}

	store, err := s.open(ctx, sessionID, storeID)
	if err != nil {
		return nil, err
	}
	if domain.FindItemIndex(store.Items(), itemID) < 0 {
		return nil, apperrors.NotFound("cart item", itemID)
	}

	if err := store.RemoveItem(ctx, itemID); err != nil {
		return nil, err
	}

	after := store.Snapshot()
	s.publishUpdated(ctx, event.CartRef{SessionID: sessionID, StoreID: storeID}, after)

	s.logger.InfoContext(ctx, "item removed from cart", slog.String("item_id", itemID))

	return &after, nil
}

// ClearCart empties the cart and deletes its record.
func (s *CartService) ClearCart(ctx context.Context, sessionID, storeID string) (err error) {
	ctx, span := s.startSpan(ctx, "ClearCart", sessionID, storeID)
	defer func() { endSpan(span, err) }()

	store, err := s.open(ctx, sessionID, storeID)
	if err != nil {
		return err
	}
	if err := store.ClearCart(ctx); err != nil {
		return err
	}

	ref := event.CartRef{SessionID: sessionID, StoreID: storeID}
	if err := s.publisher.PublishCartCleared(ctx, ref); err != nil {
		s.logPublishError(ctx, event.TopicCartCleared, err)
	}

	s.logger.InfoContext(ctx, "cart cleared")
	return nil
}

// Checkout submits the cart as an order and empties it once the order
// service has accepted it.
func (s *CartService) Checkout(ctx context.Context, sessionID, storeID string, input CheckoutInput) (result *CheckoutResult, err error) {
	ctx, span := s.startSpan(ctx, "Checkout", sessionID, storeID)
	defer func() { endSpan(span, err) }()

	store, err := s.open(ctx, sessionID, storeID)
	if err != nil {
		return nil, err
	}

	cart := store.Snapshot()
	if len(cart.Items) == 0 {
		return nil, apperrors.InvalidInput("cart is empty")
	}
	if s.orders == nil {
		return nil, apperrors.ServiceUnavailable("checkout is not available", nil)
	}

	req := backend.NewOrderRequest(sessionID, cart)
	req.Email = input.Email
	req.Currency = input.Currency
	req.ShippingAddress = input.ShippingAddress

	order, err := s.orders.SubmitOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}
	span.SetAttributes(attribute.String("order.id", order.OrderID))

	// The order exists at this point; a failed clear only leaves a stale cart.
	if err := store.ClearCart(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cart after checkout",
			slog.String("order_id", order.OrderID),
			slog.String("error", err.Error()),
		)
	}

	ref := event.CartRef{SessionID: sessionID, StoreID: storeID}
	if err := s.publisher.PublishCartCheckedOut(ctx, ref, order.OrderID, cart); err != nil {
		s.logPublishError(ctx, event.TopicCartCheckedOut, err)
	}

	s.logger.InfoContext(ctx, "cart checked out",
		slog.String("order_id", order.OrderID),
		slog.Int("total_items", cart.TotalItems),
		slog.String("subtotal", cart.Subtotal.String()),
	)

	return &CheckoutResult{OrderID: order.OrderID, Status: order.Status, Cart: cart}, nil
}

func (s *CartService) publishUpdated(ctx context.Context, ref event.CartRef, cart domain.Cart) {
	if err := s.publisher.PublishCartUpdated(ctx, ref, cart); err != nil {
		s.logPublishError(ctx, event.TopicCartUpdated, err)
	}
}

func (s *CartService) logPublishError(ctx context.Context, topic string, err error) {
	s.logger.ErrorContext(ctx, "failed to publish cart event",
		slog.String("topic", topic),
		slog.String("error", err.Error()),
	)
}
