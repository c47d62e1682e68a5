package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/apperror"
	"github.com/vasiliy-maslov/ecommerce-microservices/shop-service/internal/db"
)

var (
	ErrOrderNotFound       = fmt.Errorf("order %w", apperror.ErrNotFound)
	ErrOrderNumberConflict = errors.New("order number already taken")
)

type Repository interface {
	// Create stores the header and every item. It returns
	// ErrOrderNumberConflict without side effects when the order number is
	// already in use.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// GetForUpdate loads the header and items and locks the order row.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
	UpdateStatus(ctx context.Context, o *Order) error
	SetPaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error
	AddHistory(ctx context.Context, change *StatusChange) error
	Stats(ctx context.Context, userID uuid.UUID) (*Stats, error)
}

type postgresRepository struct {
	db *db.Postgres
}

func NewRepository(db *db.Postgres) Repository {
	return &postgresRepository{db: db}
}

const orderColumns = `id, order_number, user_id, status, payment_status,
	subtotal, tax_amount, shipping_amount, discount_amount, total_amount, coupon_code,
	billing_first_name, billing_last_name, billing_company, billing_address_line_1, billing_address_line_2,
	billing_city, billing_state, billing_postal_code, billing_country, billing_phone,
	shipping_first_name, shipping_last_name, shipping_company, shipping_address_line_1, shipping_address_line_2,
	shipping_city, shipping_state, shipping_postal_code, shipping_country, shipping_phone,
	notes, tracking_number, shipped_at, delivered_at, created_at, updated_at`

func addressArgs(a Address) []any {
	return []any{a.FirstName, a.LastName, a.Company, a.AddressLine1, a.AddressLine2, a.City, a.State, a.PostalCode, a.Country, a.Phone}
}

func addressDest(a *Address) []any {
	return []any{&a.FirstName, &a.LastName, &a.Company, &a.AddressLine1, &a.AddressLine2, &a.City, &a.State, &a.PostalCode, &a.Country, &a.Phone}
}

func scanOrder(row pgx.Row, o *Order) error {
	var status, paymentStatus string
	dest := []any{
		&o.ID, &o.OrderNumber, &o.UserID, &status, &paymentStatus,
		&o.Subtotal, &o.TaxAmount, &o.ShippingAmount, &o.DiscountAmount, &o.TotalAmount, &o.CouponCode,
	}
	dest = append(dest, addressDest(&o.Billing)...)
	dest = append(dest, addressDest(&o.Shipping)...)
	dest = append(dest, &o.Notes, &o.TrackingNumber, &o.ShippedAt, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		return err
	}
	o.Status = Status(status)
	o.PaymentStatus = PaymentStatus(paymentStatus)
	return nil
}

func (r *postgresRepository) Create(ctx context.Context, o *Order) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate order ID: %w", err)
	}
	now := time.Now().UTC()

	args := []any{
		id, o.OrderNumber, o.UserID, string(o.Status), string(o.PaymentStatus),
		o.Subtotal, o.TaxAmount, o.ShippingAmount, o.DiscountAmount, o.TotalAmount, o.CouponCode,
	}
	args = append(args, addressArgs(o.Billing)...)
	args = append(args, addressArgs(o.Shipping)...)
	args = append(args, o.Notes, o.TrackingNumber, o.ShippedAt, o.DeliveredAt, now, now)

	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21,
			$22, $23, $24, $25, $26, $27, $28, $29, $30, $31,
			$32, $33, $34, $35, $36, $37)
		ON CONFLICT (order_number) DO NOTHING`

	tag, err := r.db.Conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNumberConflict
	}

	o.ID = id
	o.CreatedAt = now
	o.UpdatedAt = now

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, variant_id, name, quantity, unit_price, total_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for i := range o.Items {
		item := &o.Items[i]

		itemID, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate order item ID: %w", err)
		}

		_, err = r.db.Conn(ctx).Exec(ctx, itemQuery,
			itemID,
			id,
			item.ProductID,
			item.VariantID,
			item.Name,
			item.Quantity,
			item.UnitPrice,
			item.TotalPrice,
			now,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order item for product %s: %w", item.ProductID, err)
		}

		item.ID = itemID
		item.OrderID = id
		item.CreatedAt = now
	}

	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := r.getHeader(ctx, id, "")
	if err != nil {
		return nil, err
	}

	items, err := r.listItems(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	o.Items = itemsOrEmpty(items[id])

	if o.History, err = r.listHistory(ctx, id); err != nil {
		return nil, err
	}

	return o, nil
}

func (r *postgresRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := r.getHeader(ctx, id, " FOR UPDATE")
	if err != nil {
		return nil, err
	}

	items, err := r.listItems(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	o.Items = itemsOrEmpty(items[id])

	return o, nil
}

func (r *postgresRepository) getHeader(ctx context.Context, id uuid.UUID, suffix string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1` + suffix

	var o Order
	if err := scanOrder(r.db.Conn(ctx).QueryRow(ctx, query, id), &o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}
	return &o, nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Conn(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user %s: %w", userID, err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	if len(ids) == 0 {
		return orders, nil
	}

	items, err := r.listItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = itemsOrEmpty(items[orders[i].ID])
	}

	return orders, nil
}

func (r *postgresRepository) listItems(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]Item, error) {
	query := `
		SELECT id, order_id, product_id, variant_id, name, quantity, unit_price, total_price, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at, id
	`
	rows, err := r.db.Conn(ctx).Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[uuid.UUID][]Item)
	for rows.Next() {
		var item Item
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.VariantID,
			&item.Name,
			&item.Quantity,
			&item.UnitPrice,
			&item.TotalPrice,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}

	return byOrder, nil
}

func (r *postgresRepository) listHistory(ctx context.Context, orderID uuid.UUID) ([]StatusChange, error) {
	query := `
		SELECT id, order_id, status, notes, created_by, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.Conn(ctx).Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query status history: %w", err)
	}
	defer rows.Close()

	history := make([]StatusChange, 0)
	for rows.Next() {
		var h StatusChange
		var status string
		if err := rows.Scan(&h.ID, &h.OrderID, &status, &h.Notes, &h.CreatedBy, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan status history: %w", err)
		}
		h.Status = Status(status)
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating status history: %w", err)
	}

	return history, nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, o *Order) error {
	query := `
		UPDATE orders
		SET status = $1, tracking_number = $2, shipped_at = $3, delivered_at = $4, updated_at = $5
		WHERE id = $6
	`
	now := time.Now().UTC()
	tag, err := r.db.Conn(ctx).Exec(ctx, query, string(o.Status), o.TrackingNumber, o.ShippedAt, o.DeliveredAt, now, o.ID)
	if err != nil {
		return fmt.Errorf("repository: failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	o.UpdatedAt = now
	return nil
}

func (r *postgresRepository) SetPaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error {
	query := `UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.db.Conn(ctx).Exec(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("repository: failed to update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *postgresRepository) AddHistory(ctx context.Context, change *StatusChange) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate history ID: %w", err)
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO order_status_history (id, order_id, status, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.Conn(ctx).Exec(ctx, query, id, change.OrderID, string(change.Status), change.Notes, change.CreatedBy, now)
	if err != nil {
		return fmt.Errorf("repository: failed to insert status history: %w", err)
	}

	change.ID = id
	change.CreatedAt = now
	return nil
}

// Stats runs on the report connection.
func (r *postgresRepository) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	query := `
		SELECT
			COUNT(*) AS total_orders,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending_orders,
			COUNT(*) FILTER (WHERE status = 'delivered') AS completed_orders,
			COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled_orders,
			COALESCE(SUM(total_amount) FILTER (WHERE payment_status = 'paid'), 0) AS total_spent
		FROM orders
		WHERE user_id = $1
	`
	var stats Stats
	if err := r.db.Reports().GetContext(ctx, &stats, query, userID); err != nil {
		return nil, fmt.Errorf("repository: failed to compute order stats: %w", err)
	}
	return &stats, nil
}

func itemsOrEmpty(items []Item) []Item {
	if items == nil {
		return make([]Item, 0)
	}
	return items
}
