package domain

import (
	"regexp"

	"github.com/shopspring/decimal"
)

// MaxStoreIDLength bounds store ids so they stay usable in storage keys.
const MaxStoreIDLength = 128

var storeIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]*$`)

func init() {
	// Stored cart records carry price as a bare JSON number.
	decimal.MarshalJSONWithoutQuotes = true
}

// CartItem is one product (or variant) selection in a storefront cart.
type CartItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image"`
	Quantity int             `json:"quantity"`
	StoreID  string          `json:"storeId"`
}

// LineTotal returns price multiplied by quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the read model returned to storefront clients.
type Cart struct {
	StoreID    string          `json:"storeId"`
	Items      []CartItem      `json:"items"`
	TotalItems int             `json:"totalItems"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// TotalItems sums the quantity of every item.
func TotalItems(items []CartItem) int {
	var count int
	for _, item := range items {
		count += item.Quantity
	}
	return count
}

// Subtotal sums price * quantity over every item.
func Subtotal(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// FindItemIndex returns the index of the item with the given id, or -1.
func FindItemIndex(items []CartItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// ValidStoreID reports whether id can name a storefront. Store ids are opaque
// and case-sensitive: "store_1" and "Store-1" are different stores.
func ValidStoreID(id string) bool {
	return len(id) <= MaxStoreIDLength && storeIDPattern.MatchString(id)
}
