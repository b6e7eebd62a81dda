// Package order turns client-submitted carts into durable orders while
// keeping stock non-negative and prices un-forgeable.
package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/taller7/muebleria-api/internal/audit"
	"github.com/taller7/muebleria-api/internal/catalog"
)

// Engine validates carts against the catalog, persists orders and debits
// stock. It holds no lock across its I/O calls; concurrent safety rests on
// the catalog's conditional decrement.
type Engine struct {
	orders  Repository
	catalog catalog.Repository
	trail   *audit.Trail
	log     *zap.Logger
}

func NewEngine(orders Repository, cat catalog.Repository, trail *audit.Trail, log *zap.Logger) *Engine {
	return &Engine{orders: orders, catalog: cat, trail: trail, log: log}
}

// PlaceOrder validates the submitted cart, recomputes authoritative pricing
// and persists the order under ownerID. Every rejection happens before any
// write; once the order is durable, stock is debited per line item with an
// atomic conditional decrement, and a debit that loses the race is flagged
// rather than rolled back.
func (e *Engine) PlaceOrder(ctx context.Context, ownerID string, req PlaceOrderRequest) (*Order, error) {
	if len(req.OrderItems) == 0 {
		return nil, invalidf("no order items")
	}
	if f := req.ShippingAddress.missingField(); f != "" {
		return nil, invalidf("shippingAddress.%s is required", f)
	}
	for _, it := range req.OrderItems {
		if it.Quantity < 1 {
			return nil, invalidf("invalid quantity for product %s", it.ProductID)
		}
	}

	// One batched lookup for the distinct product ids.
	seen := make(map[string]bool, len(req.OrderItems))
	ids := make([]string, 0, len(req.OrderItems))
	for _, it := range req.OrderItems {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	found, err := e.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]catalog.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	// Rewrite every line item from the catalog: authoritative price, name and
	// image snapshots. The client-submitted price is discarded.
	now := time.Now().UTC()
	items := make([]LineItem, 0, len(req.OrderItems))
	subtotal := decimal.Zero
	for _, it := range req.OrderItems {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: it.ProductID}
		}
		if it.Quantity > p.Stock {
			return nil, &catalog.InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Available: p.Stock,
				Requested: it.Quantity,
			}
		}
		items = append(items, LineItem{
			ID:        uuid.NewString(),
			ProductID: p.ID,
			Name:      p.Name,
			ImageURL:  p.ImageURL,
			UnitPrice: p.Price,
			Quantity:  it.Quantity,
		})
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	// Tax and shipping are accepted as quoted, but the total they claim must
	// add up against the server-side subtotal.
	expected := subtotal.Add(req.TaxPrice).Add(req.ShippingPrice)
	if !expected.Equal(req.TotalPrice) {
		return nil, invalidf("order total mismatch: expected %s, got %s", expected, req.TotalPrice)
	}

	o := &Order{
		ID:             uuid.NewString(),
		UserID:         ownerID,
		Items:          items,
		Shipping:       req.ShippingAddress,
		ItemsSubtotal:  subtotal,
		TaxAmount:      req.TaxPrice,
		ShippingAmount: req.ShippingPrice,
		TotalAmount:    req.TotalPrice,
		IsPaid:         true, // payment is simulated
		PaidAt:         &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	if err := e.orders.Create(ctx, o); err != nil {
		return nil, err
	}

	// Stock debits are independent per product and deliberately not
	// transactional with the order: the catalog is a separate store. A debit
	// that fails here lost a race after validation; the order stands and the
	// discrepancy is flagged for reconciliation.
	for _, it := range o.Items {
		if err := e.catalog.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			e.log.Error("stock debit failed after order persisted",
				zap.String("order_id", o.ID),
				zap.String("product_id", it.ProductID),
				zap.Int("quantity", it.Quantity),
				zap.Error(err))
			go e.trail.Record(context.Background(), audit.ActionStockDiscrepancy, o.ID, bson.M{
				"product_id": it.ProductID,
				"quantity":   it.Quantity,
				"reason":     err.Error(),
			})
		}
	}

	go e.trail.Record(context.Background(), audit.ActionPlaceOrder, o.ID, bson.M{
		"user_id": ownerID,
		"total":   o.TotalAmount.String(),
		"items":   len(o.Items),
	})
	return o, nil
}

// MarkDelivered advances an order along its single terminal transition. The
// caller is expected to have already established admin privileges.
func (e *Engine) MarkDelivered(ctx context.Context, orderID string) (*Order, error) {
	o, err := e.orders.MarkDelivered(ctx, orderID)
	if err != nil {
		return nil, err
	}
	go e.trail.Record(context.Background(), audit.ActionMarkDelivered, o.ID, bson.M{
		"delivered_at": o.DeliveredAt,
	})
	return o, nil
}
