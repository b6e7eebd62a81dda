package order

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByOwner(ctx context.Context, userID string) ([]Order, error)
	ListAll(ctx context.Context) ([]AdminOrder, error)
	MarkDelivered(ctx context.Context, id string) (*Order, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const orderCols = `id, COALESCE(user_id::text,''), ship_name, ship_email, ship_address, ship_city,
	ship_postal_code, ship_country, items_subtotal::text, tax_amount::text, shipping_amount::text,
	total_amount::text, is_paid, paid_at, is_delivered, delivered_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var subtotal, tax, shipping, total string
	err := row.Scan(&o.ID, &o.UserID, &o.Shipping.Name, &o.Shipping.Email, &o.Shipping.Address,
		&o.Shipping.City, &o.Shipping.PostalCode, &o.Shipping.Country,
		&subtotal, &tax, &shipping, &total,
		&o.IsPaid, &o.PaidAt, &o.IsDelivered, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	for _, p := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&o.ItemsSubtotal, subtotal},
		{&o.TaxAmount, tax},
		{&o.ShippingAmount, shipping},
		{&o.TotalAmount, total},
	} {
		d, err := decimal.NewFromString(p.src)
		if err != nil {
			return nil, err
		}
		*p.dst = d
	}
	return &o, nil
}

func (r *PGRepo) Create(ctx context.Context, o *Order) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, ship_name, ship_email, ship_address, ship_city,
			ship_postal_code, ship_country, items_subtotal, tax_amount, shipping_amount,
			total_amount, is_paid, paid_at, is_delivered, created_at, updated_at)
		VALUES ($1, NULLIF($2,'')::uuid, $3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,false,NOW(),NOW())
	`, o.ID, o.UserID, o.Shipping.Name, o.Shipping.Email, o.Shipping.Address, o.Shipping.City,
		o.Shipping.PostalCode, o.Shipping.Country, o.ItemsSubtotal.String(), o.TaxAmount.String(),
		o.ShippingAmount.String(), o.TotalAmount.String(), o.IsPaid, o.PaidAt); err != nil {
		return err
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, name, image_url, unit_price, quantity)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, it.ID, o.ID, it.ProductID, it.Name, it.ImageURL, it.UnitPrice.String(), it.Quantity); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return nil, ErrNotFound
	}
	items, err := r.loadItems(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

// ListByOwner returns the owner's orders, newest first, items included.
func (r *PGRepo) ListByOwner(ctx context.Context, userID string) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+orderCols+` FROM orders
		WHERE user_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	var ids []string
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

// ListAll is the admin view: every order, newest first, with the owner's
// account name and email joined in. Items are not loaded here.
func (r *PGRepo) ListAll(ctx context.Context) ([]AdminOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT o.id, COALESCE(o.user_id::text,''), o.ship_name, o.ship_email, o.ship_address, o.ship_city,
			o.ship_postal_code, o.ship_country, o.items_subtotal::text, o.tax_amount::text,
			o.shipping_amount::text, o.total_amount::text, o.is_paid, o.paid_at, o.is_delivered,
			o.delivered_at, o.created_at, o.updated_at,
			COALESCE(u.name,''), COALESCE(u.email,'')
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AdminOrder
	for rows.Next() {
		var a AdminOrder
		var subtotal, tax, shipping, total string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Shipping.Name, &a.Shipping.Email, &a.Shipping.Address,
			&a.Shipping.City, &a.Shipping.PostalCode, &a.Shipping.Country,
			&subtotal, &tax, &shipping, &total,
			&a.IsPaid, &a.PaidAt, &a.IsDelivered, &a.DeliveredAt, &a.CreatedAt, &a.UpdatedAt,
			&a.OwnerName, &a.OwnerEmail); err != nil {
			return nil, err
		}
		for _, p := range []struct {
			dst *decimal.Decimal
			src string
		}{
			{&a.ItemsSubtotal, subtotal},
			{&a.TaxAmount, tax},
			{&a.ShippingAmount, shipping},
			{&a.TotalAmount, total},
		} {
			d, err := decimal.NewFromString(p.src)
			if err != nil {
				return nil, err
			}
			*p.dst = d
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkDelivered performs the only mutation an order admits after creation.
// The is_delivered=false guard makes the transition single-shot even under
// concurrent delivery requests.
func (r *PGRepo) MarkDelivered(ctx context.Context, id string) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET is_delivered = true, delivered_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND is_delivered = false
	`, id)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		var delivered bool
		if err := r.db.QueryRow(ctx, `SELECT is_delivered FROM orders WHERE id=$1`, id).Scan(&delivered); err != nil {
			return nil, ErrNotFound
		}
		if delivered {
			return nil, ErrAlreadyDelivered
		}
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *PGRepo) loadItems(ctx context.Context, orderIDs []string) (map[string][]LineItem, error) {
	out := make(map[string][]LineItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(orderIDs))
	params := ""
	for i, id := range orderIDs {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, name, image_url, unit_price::text, quantity
		FROM order_items WHERE order_id IN (`+params+`)
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it LineItem
		var price string
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.ImageURL, &price, &it.Quantity); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(price)
		if err != nil {
			return nil, err
		}
		it.UnitPrice = d
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}
