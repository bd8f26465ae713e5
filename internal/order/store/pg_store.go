package store

import (
	"context"
	"errors"
	"fmt"

	ordererrors "github.com/avargas/gestock/internal/order/errors"
	perrors "github.com/avargas/gestock/internal/product/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore implements OrderStore using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of OrderStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{db: dbp}
}

const orderColumns = `id, customer_id, status, requested_at, version`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	if err := row.Scan(&o.ID, &o.CustomerID, &o.Status, &o.RequestedAt, &o.Version); err != nil {
		return nil, err
	}
	return &o, nil
}

func (p *PgStore) FindByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	row := p.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ordererrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}
	if err := p.loadItems(ctx, []*Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (p *PgStore) FindAll(ctx context.Context, offset, limit int32) ([]Order, error) {
	return p.findOrders(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY requested_at DESC OFFSET $1 LIMIT $2`,
		offset, limit)
}

func (p *PgStore) FindByStatus(ctx context.Context, status Status, offset, limit int32) ([]Order, error) {
	// LIMIT NULL means no limit.
	var lim any
	if limit > 0 {
		lim = limit
	}
	return p.findOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY requested_at ASC OFFSET $2 LIMIT $3`,
		status, offset, lim)
}

func (p *PgStore) FindPendingByProduct(ctx context.Context, productID uuid.UUID) ([]Order, error) {
	return p.findOrders(ctx,
		`SELECT `+orderColumns+` FROM orders o
		  WHERE o.status = $1
		    AND EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = o.id AND i.product_id = $2)
		  ORDER BY o.requested_at ASC`,
		StatusPending, productID)
}

// Create inserts the order and its line items in one transaction. The initial
// status is computed against current stock: AVAILABLE reserves stock for every
// line item, PENDING leaves stock untouched. Product rows are locked while the
// decision is made so the check and the decrement cannot be interleaved.
func (p *PgStore) Create(ctx context.Context, customerID uuid.UUID, items []ItemParams) (*Order, error) {
	var created *Order

	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		totals := aggregateItems(items)
		covered := true
		for _, item := range totals {
			var stock int32
			err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1 FOR UPDATE`, item.ProductID).Scan(&stock)
			if errors.Is(err, pgx.ErrNoRows) {
				// A vanished product can never be covered.
				covered = false
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to read stock for product %s: %w", item.ProductID, err)
			}
			if stock < item.Quantity {
				covered = false
			}
		}

		status := StatusPending
		if covered {
			status = StatusAvailable
			for _, item := range totals {
				if _, err := tx.Exec(ctx,
					`UPDATE products SET stock = stock - $2, version = version + 1 WHERE id = $1`,
					item.ProductID, item.Quantity); err != nil {
					return fmt.Errorf("failed to reserve stock for product %s: %w", item.ProductID, err)
				}
			}
		}

		row := tx.QueryRow(ctx,
			`INSERT INTO orders (customer_id, status) VALUES ($1, $2) RETURNING `+orderColumns,
			customerID, status)
		order, err := scanOrder(row)
		if err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		order.Items = make([]OrderItem, 0, len(items))
		for _, item := range items {
			var oi OrderItem
			err := tx.QueryRow(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity) VALUES ($1, $2, $3)
				 RETURNING id, order_id, product_id, quantity`,
				order.ID, item.ProductID, item.Quantity).Scan(&oi.ID, &oi.OrderID, &oi.ProductID, &oi.Quantity)
			if err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
			order.Items = append(order.Items, oi)
		}
		created = order
		return nil
	})

	if txErr != nil {
		return nil, txErr
	}
	return created, nil
}

// MarkAvailable performs the reservation transition: PENDING -> AVAILABLE
// plus one stock decrement per line item, all inside a single transaction.
// Any uncovered line item rolls the whole transition back.
func (p *PgStore) MarkAvailable(ctx context.Context, id uuid.UUID) error {
	return p.withTransaction(ctx, func(tx pgx.Tx) error {
		var status Status
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ordererrors.ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock order %s: %w", id, err)
		}
		if status != StatusPending {
			return ordererrors.ErrOrderNotPending
		}

		items, err := p.queryItems(ctx, tx, id)
		if err != nil {
			return err
		}

		for _, item := range itemTotals(items) {
			var stock int32
			err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1 FOR UPDATE`, item.ProductID).Scan(&stock)
			if errors.Is(err, pgx.ErrNoRows) {
				return perrors.ErrProductNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to read stock for product %s: %w", item.ProductID, err)
			}
			if stock < item.Quantity {
				return perrors.ErrInsufficientStock
			}
			if _, err := tx.Exec(ctx,
				`UPDATE products SET stock = stock - $2, version = version + 1 WHERE id = $1`,
				item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("failed to reserve stock for product %s: %w", item.ProductID, err)
			}
		}

		if _, err := tx.Exec(ctx,
			`UPDATE orders SET status = $2, version = version + 1 WHERE id = $1`,
			id, StatusAvailable); err != nil {
			return fmt.Errorf("failed to mark order %s available: %w", id, err)
		}
		return nil
	})
}

// Deliver transitions an order to DELIVERED. Only a PENDING order consumes
// stock here (floored at zero); an AVAILABLE order was already reserved.
func (p *PgStore) Deliver(ctx context.Context, id uuid.UUID, version int32) (*Order, error) {
	var delivered *Order

	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		var status Status
		var currentVersion int32
		err := tx.QueryRow(ctx, `SELECT status, version FROM orders WHERE id = $1 FOR UPDATE`, id).
			Scan(&status, &currentVersion)
		if errors.Is(err, pgx.ErrNoRows) {
			return ordererrors.ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock order %s: %w", id, err)
		}
		if currentVersion != version {
			return ordererrors.ErrOptimisticLock
		}
		if !CanTransition(status, StatusDelivered) {
			return ordererrors.ErrInvalidTransition
		}

		items, err := p.queryItems(ctx, tx, id)
		if err != nil {
			return err
		}

		if status == StatusPending {
			// Force-delivery of an unreserved order: absorb any shortfall.
			for _, item := range itemTotals(items) {
				if _, err := tx.Exec(ctx,
					`UPDATE products SET stock = GREATEST(stock - $2, 0), version = version + 1 WHERE id = $1`,
					item.ProductID, item.Quantity); err != nil {
					return fmt.Errorf("failed to consume stock for product %s: %w", item.ProductID, err)
				}
			}
		}

		row := tx.QueryRow(ctx,
			`UPDATE orders SET status = $2, version = version + 1 WHERE id = $1 RETURNING `+orderColumns,
			id, StatusDelivered)
		order, err := scanOrder(row)
		if err != nil {
			return fmt.Errorf("failed to deliver order %s: %w", id, err)
		}
		order.Items = items
		delivered = order
		return nil
	})

	if txErr != nil {
		return nil, txErr
	}
	return delivered, nil
}

func (p *PgStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	ct, err := p.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order by ID: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ordererrors.ErrOrderNotFound
	}
	return nil
}

func (p *PgStore) findOrders(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.Status, &o.RequestedAt, &o.Version); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]*Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	if err := p.loadItems(ctx, refs); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadItems attaches line items to the given orders in one round trip.
func (p *PgStore) loadItems(ctx context.Context, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(orders))
	byID := make(map[uuid.UUID]*Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
		o.Items = make([]OrderItem, 0, 1)
	}

	rows, err := p.db.Query(ctx,
		`SELECT id, order_id, product_id, quantity FROM order_items WHERE order_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("failed to find order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}

func (p *PgStore) queryItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, order_id, product_id, quantity FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to find order items: %w", err)
	}
	defer rows.Close()

	items := make([]OrderItem, 0)
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (p *PgStore) withTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return ordererrors.ErrTransactionBegin
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return ordererrors.ErrTransactionRollback
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return ordererrors.ErrTransactionCommit
	}
	return nil
}
