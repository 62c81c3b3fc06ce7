package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

// State - состояние экрана оформления.
type State string

const (
	StateIdle                 State = "Idle"
	StateUnauthenticated      State = "Unauthenticated"
	StateLoadingPaymentInfo   State = "LoadingPaymentInfo"
	StateReady                State = "Ready"
	StateNoPaymentInfo        State = "NoPaymentInfo"
	StateLoadError            State = "LoadError"
	StateConfirming           State = "Confirming"
	StateCommitted            State = "Committed"
	StateCommitPartialFailure State = "CommitPartialFailure"
)

// busy сообщает, что в состоянии выполняется удалённый вызов.
func (s State) busy() bool {
	return s == StateLoadingPaymentInfo || s == StateConfirming
}

// View - то, что показывает экран оформления.
type View struct {
	State      State
	CheckoutID string
	CustomerID string
	Email      string

	// Платёжные данные; номер карты только в маскированном виде.
	MaskedCard     string
	CardholderName string
	Expiration     string
	BillingAddress string

	Items      []domain.Pet
	Total      decimal.Decimal
	CanConfirm bool
	Navigate   domain.Navigation
}

// Receipt - результат подтверждения. Для пользователя оформление всегда успешно:
// ошибки записи отражаются только в State и FailedSteps.
type Receipt struct {
	CheckoutID  string
	Orders      []domain.Order
	Total       decimal.Decimal
	State       State
	FailedSteps []domain.CheckoutStep
	Navigate    domain.Navigation
}
