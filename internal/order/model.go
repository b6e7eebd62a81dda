package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type ShippingAddress struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// missingField returns the name of the first blank required field, or "".
func (a ShippingAddress) missingField() string {
	switch {
	case a.Name == "":
		return "name"
	case a.Email == "":
		return "email"
	case a.Address == "":
		return "address"
	case a.City == "":
		return "city"
	case a.PostalCode == "":
		return "postalCode"
	case a.Country == "":
		return "country"
	}
	return ""
}

// LineItem is an immutable snapshot taken at order creation. Name, image and
// unit price are copied from the product so later catalog edits do not
// rewrite order history.
type LineItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

type Order struct {
	ID       string          `json:"id"`
	UserID   string          `json:"user_id,omitempty"` // empty on legacy ownerless orders
	Items    []LineItem      `json:"items"`
	Shipping ShippingAddress `json:"shipping_address"`

	ItemsSubtotal  decimal.Decimal `json:"items_subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	ShippingAmount decimal.Decimal `json:"shipping_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`

	IsPaid      bool       `json:"is_paid"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	IsDelivered bool       `json:"is_delivered"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AdminOrder is an order with the owner's account details attached, for the
// admin listing.
type AdminOrder struct {
	Order
	OwnerName  string `json:"owner_name,omitempty"`
	OwnerEmail string `json:"owner_email,omitempty"`
}
