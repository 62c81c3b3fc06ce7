package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order - запись о покупке одного питомца.
// TotalAmount равен сумме всей корзины и одинаков во всех строках одного оформления.
type Order struct {
	ID          string
	CustomerID  string
	PaymentID   string
	PetID       string
	OrderDate   time.Time
	TotalAmount decimal.Decimal
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.PaymentID == "" {
		errs = append(errs, ErrPaymentIDRequired)
	}
	if o.PetID == "" {
		errs = append(errs, ErrPetIDRequired)
	}
	if !o.TotalAmount.IsPositive() {
		errs = append(errs, ErrTotalNotPositive)
	}

	return errs
}
