package catalog

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Category    string `json:"category,omitempty"`
	// Price is authoritative; order placement never trusts a client price.
	// Stored as NUMERIC in Postgres.
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// InsufficientStockError reports a requested quantity that exceeds what is
// available, naming the product so the message can go to the client as-is.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	label := e.Name
	if label == "" {
		label = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for %s. Available: %d, Requested: %d", label, e.Available, e.Requested)
}

// ListResponse is the paginated product listing.
// swagger:model
type ListResponse struct {
	Q      string    `json:"q,omitempty"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
	Items  []Product `json:"items"`
}

// CreateProductRequest payload of creation.
// swagger:model CreateProductRequest
type CreateProductRequest struct {
	Name        string `json:"name"        example:"Roble Dining Table"`
	Description string `json:"description" example:"Solid oak, seats six"`
	ImageURL    string `json:"image_url"   example:"/img/roble-table.jpg"`
	Category    string `json:"category"    example:"tables"`
	Price       string `json:"price"       example:"499.90"`
	Stock       int    `json:"stock"       example:"10"`
}

// UpdateProductRequest payload of partial update.
// swagger:model UpdateProductRequest
type UpdateProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Category    string `json:"category"`
	Price       string `json:"price"`
	Stock       *int   `json:"stock"`
}
