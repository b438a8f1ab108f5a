package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Aggregates
// ============================================================================

func TestSubtotal_MultipleItems(t *testing.T) {
	items := []CartItem{
		{ID: "p1", Price: decimal.NewFromInt(20), Quantity: 2},
		{ID: "p2", Price: decimal.RequireFromString("9.99"), Quantity: 3},
	}
	// 40 + 29.97
	assert.True(t, decimal.RequireFromString("69.97").Equal(Subtotal(items)))
}

func TestSubtotal_Empty(t *testing.T) {
	assert.True(t, Subtotal(nil).IsZero())
}

func TestTotalItems(t *testing.T) {
	items := []CartItem{
		{ID: "p1", Quantity: 2},
		{ID: "p2", Quantity: 5},
	}
	assert.Equal(t, 7, TotalItems(items))
	assert.Equal(t, 0, TotalItems(nil))
}

func TestLineTotal_ZeroQuantity(t *testing.T) {
	item := CartItem{Price: decimal.NewFromInt(10), Quantity: 0}
	assert.True(t, item.LineTotal().IsZero())
}

func TestFindItemIndex(t *testing.T) {
	items := []CartItem{{ID: "a"}, {ID: "b"}}
	assert.Equal(t, 1, FindItemIndex(items, "b"))
	assert.Equal(t, -1, FindItemIndex(items, "missing"))
}

// ============================================================================
// Wire format
// ============================================================================

func TestCartItem_JSONFieldNames(t *testing.T) {
	item := CartItem{
		ID:       "p1",
		Name:     "Shirt",
		Price:    decimal.NewFromInt(20),
		Image:    "",
		Quantity: 2,
		StoreID:  "S1",
	}

	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"p1","name":"Shirt","price":20,"image":"","quantity":2,"storeId":"S1"}`, string(data))
}

func TestCartItem_DecodesQuotedPrice(t *testing.T) {
	var item CartItem
	require.NoError(t, json.Unmarshal([]byte(`{"id":"p1","price":"12.50","quantity":1,"storeId":"S1"}`), &item))
	assert.True(t, decimal.RequireFromString("12.5").Equal(item.Price))
}

func TestValidStoreID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"acme", true},
		{"Store-1", true},
		{"store_1", true},
		{"store.1", true},
		{"tenant:42", true},
		{"", false},
		{"-acme", false},
		{"acme outdoor", false},
		{"Café", false},
		{"acme/1", false},
		{strings.Repeat("a", MaxStoreIDLength), true},
		{strings.Repeat("a", MaxStoreIDLength+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidStoreID(tt.id))
		})
	}
}
