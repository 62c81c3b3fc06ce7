package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// InsertOrders сохраняет пакет в одной транзакции: либо все строки, либо ни одной.
func (r *orderRepository) InsertOrders(ctx context.Context, orders []domain.Order) (err error) {
	if len(orders) == 0 {
		return nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, order := range orders {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO orders (
				id, customer_id, payment_id, pet_id, order_date, total_amount
			) VALUES ($1,$2,$3,$4,$5,$6)
		`,
			order.ID, order.CustomerID, order.PaymentID, order.PetID,
			order.OrderDate.UTC(), order.TotalAmount.StringFixed(2),
		); err != nil {
			if isUniqueViolation(err) {
				err = fmt.Errorf("%w: %s", domain.ErrOrderAlreadyExists, order.ID)
				return err
			}
			err = fmt.Errorf("insert order %s: %w", order.ID, err)
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit orders: %w", err)
	}
	return nil
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, customer_id, payment_id, pet_id, order_date, total_amount
		FROM orders
		WHERE customer_id = $1
		ORDER BY order_date DESC, seq DESC`
	args := []any{customerID}
	if limit > 0 {
		query += `
		LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID,
			&order.CustomerID,
			&order.PaymentID,
			&order.PetID,
			&order.OrderDate,
			&order.TotalAmount,
		); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		order.OrderDate = order.OrderDate.UTC()
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
