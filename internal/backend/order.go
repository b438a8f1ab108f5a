// Package backend holds clients for the storefront services the cart hands
// work to.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chygoz/storefront/internal/domain"
	apperrors "github.com/chygoz/storefront/pkg/errors"
	"github.com/chygoz/storefront/pkg/httpclient"
)

const orderServiceName = "order"

// IdempotencyKeyHeader carries the key the order API deduplicates on.
const IdempotencyKeyHeader = "Idempotency-Key"

var orderKeySpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("storefront/cart-checkout"))

// HTTPDoer executes HTTP requests. httpclient.Client and
// httpclient.CircuitBreakerClient satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// ShippingAddress is the delivery address sent with an order.
type ShippingAddress struct {
	FullName    string `json:"full_name"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
}

// OrderItem is one cart line in an order request.
type OrderItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// OrderRequest is the body posted to the order API.
type OrderRequest struct {
	SessionID       string          `json:"session_id"`
	StoreID         string          `json:"store_id"`
	Email           string          `json:"email"`
	Currency        string          `json:"currency"`
	Items           []OrderItem     `json:"items"`
	TotalItems      int             `json:"total_items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
}

// OrderResponse is the data part of the order API response.
type OrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// NewOrderRequest builds an order request from a cart snapshot.
func NewOrderRequest(sessionID string, cart domain.Cart) OrderRequest {
	items := make([]OrderItem, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = OrderItem{
			ID:       item.ID,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		}
	}
	return OrderRequest{
		SessionID:  sessionID,
		StoreID:    cart.StoreID,
		Items:      items,
		TotalItems: cart.TotalItems,
		Subtotal:   cart.Subtotal,
	}
}

// IdempotencyKey derives a stable key from the session, store and cart lines.
// Retries and repeated checkouts of the same cart send the same key, so the
// order API creates at most one order for them.
func (r OrderRequest) IdempotencyKey() string {
	var b strings.Builder
	b.WriteString(r.SessionID)
	b.WriteByte(0)
	b.WriteString(r.StoreID)
	for _, item := range r.Items {
		fmt.Fprintf(&b, "\x00%s\x1f%s\x1f%d", item.ID, item.Price.String(), item.Quantity)
	}
	return uuid.NewSHA1(orderKeySpace, []byte(b.String())).String()
}

// OrderClient submits checked-out carts to the order API.
type OrderClient struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewOrderClient creates a client for the order API at baseURL.
func NewOrderClient(doer HTTPDoer, baseURL string, logger *slog.Logger) *OrderClient {
	return &OrderClient{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// SubmitOrder creates an order. The request carries an Idempotency-Key, so
// retries of a failed attempt cannot create a second order. Error responses
// are mapped to AppErrors; an open circuit or an unreachable order API is
// reported as ServiceUnavailable.
func (c *OrderClient) SubmitOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(IdempotencyKeyHeader, req.IdempotencyKey())

	resp, err := c.http.Do(ctx, httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("call order service: %w", err)
		}
		if errors.Is(err, httpclient.ErrCircuitOpen) {
			return nil, apperrors.ServiceUnavailable("order service is temporarily unavailable, please retry later", err)
		}
		return nil, apperrors.ServiceUnavailable("order service request failed", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, httpclient.ParseResponseError(resp, orderServiceName)
	}
	defer resp.Body.Close()

	var envelope struct {
		Data *OrderResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	if envelope.Data == nil || envelope.Data.OrderID == "" {
		return nil, fmt.Errorf("decode order response: missing order id")
	}

	c.logger.InfoContext(ctx, "order submitted",
		slog.String("store_id", req.StoreID),
		slog.String("order_id", envelope.Data.OrderID),
	)

	return envelope.Data, nil
}
