package order

import "github.com/shopspring/decimal"

// SubmittedItem is one cart line as the client sent it. The price is carried
// only so old clients keep working; placement discards it and uses the
// catalog price.
// swagger:model SubmittedItem
type SubmittedItem struct {
	ProductID string          `json:"product"`
	Quantity  int             `json:"qty" example:"2"`
	UnitPrice decimal.Decimal `json:"price"`
}

// PlaceOrderRequest is the POST /orders body.
// swagger:model PlaceOrderRequest
type PlaceOrderRequest struct {
	OrderItems      []SubmittedItem `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	TaxPrice        decimal.Decimal `json:"taxPrice"`
	ShippingPrice   decimal.Decimal `json:"shippingPrice"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
}
