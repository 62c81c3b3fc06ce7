package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

type paymentMethodRepository struct {
	db *sql.DB
}

// NewPaymentMethodRepository создаёт PostgreSQL-реализацию PaymentMethodRepository.
func NewPaymentMethodRepository(store *Store) domain.PaymentMethodRepository {
	return &paymentMethodRepository{db: store.DB()}
}

func (r *paymentMethodRepository) GetByCustomer(ctx context.Context, customerID string) (domain.PaymentMethod, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var method domain.PaymentMethod
	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, card_number, expiration, cardholder_name, billing_address
		FROM payment_methods
		WHERE customer_id = $1
	`, customerID).Scan(
		&method.ID,
		&method.CustomerID,
		&method.CardNumber,
		&method.Expiration,
		&method.CardholderName,
		&method.BillingAddress,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PaymentMethod{}, false, nil
		}
		return domain.PaymentMethod{}, false, fmt.Errorf("get payment method: %w", err)
	}

	return method, true, nil
}

// Save выполняет upsert по customer_id: у клиента всегда одна запись.
func (r *paymentMethodRepository) Save(ctx context.Context, method domain.PaymentMethod) error {
	if strings.TrimSpace(method.CustomerID) == "" {
		return domain.ErrCustomerRequired
	}
	if method.ID == "" {
		method.ID = uuid.NewString()
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_methods (
			id, customer_id, card_number, expiration, cardholder_name, billing_address, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (customer_id) DO UPDATE SET
			id = EXCLUDED.id,
			card_number = EXCLUDED.card_number,
			expiration = EXCLUDED.expiration,
			cardholder_name = EXCLUDED.cardholder_name,
			billing_address = EXCLUDED.billing_address,
			updated_at = EXCLUDED.updated_at
	`,
		method.ID, method.CustomerID, method.CardNumber, method.Expiration,
		method.CardholderName, method.BillingAddress, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("save payment method: %w", err)
	}

	return nil
}

var _ domain.PaymentMethodRepository = (*paymentMethodRepository)(nil)
