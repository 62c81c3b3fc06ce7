package memory

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

// DemoCustomerID - покупатель с заранее сохранённой картой для локального запуска.
const DemoCustomerID = "demo-customer"

// DemoPaymentMethod возвращает платёжные данные демо-покупателя.
func DemoPaymentMethod() domain.PaymentMethod {
	return domain.PaymentMethod{
		ID:             "demo-payment",
		CustomerID:     DemoCustomerID,
		CardNumber:     "4242424242424242",
		Expiration:     "12/30",
		CardholderName: "Demo Customer",
		BillingAddress: "1 Demo Street",
	}
}

// SeedDemoData сохраняет демо-карту в хранилище платёжных данных.
func SeedDemoData(ctx context.Context, payments domain.PaymentMethodRepository) error {
	if err := payments.Save(ctx, DemoPaymentMethod()); err != nil {
		return fmt.Errorf("seed demo payment method: %w", err)
	}
	return nil
}
