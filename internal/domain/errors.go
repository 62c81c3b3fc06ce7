package domain

import "errors"

var (
	// ErrUnauthenticated возвращается, если в сессии нет customer_id.
	ErrUnauthenticated = errors.New("customer is not signed in")
	// ErrRemoteRead - ошибка чтения из удалённого хранилища (платёжные данные).
	ErrRemoteRead = errors.New("remote read failed")
	// ErrRemoteWrite - ошибка записи заказов или статусов питомцев.
	ErrRemoteWrite = errors.New("remote write failed")

	// ErrValidation объединяет ошибки проверки перед оформлением.
	ErrValidation = errors.New("checkout validation failed")
	// Ошибка пустой корзины.
	ErrCartEmpty = errors.New("cart is empty")
	// Ошибка неположительной суммы корзины.
	ErrTotalNotPositive = errors.New("cart total must be greater than zero")
	// Ошибка отсутствия загруженного способа оплаты.
	ErrPaymentMethodMissing = errors.New("payment method is not loaded")
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего идентификатора питомца в заказе.
	ErrPetIDRequired = errors.New("pet_id is required")
	// Ошибка отсутствующего идентификатора платёжных данных.
	ErrPaymentIDRequired = errors.New("payment_id is required")
	// Ошибка отрицательной цены.
	ErrPriceNegative = errors.New("price must be non-negative")
	// Ошибка неизвестного вида животного.
	ErrSpeciesInvalid = errors.New("species is not supported")

	// ErrCheckoutInProgress - повторный вход во время загрузки или подтверждения.
	ErrCheckoutInProgress = errors.New("checkout is already in progress")
	// ErrCheckoutNotReady - подтверждение вне состояния Ready.
	ErrCheckoutNotReady = errors.New("checkout is not ready for confirmation")
	// ErrCheckoutAbandoned - экран оформления покинут до завершения загрузки.
	ErrCheckoutAbandoned = errors.New("checkout was abandoned")

	// ErrPetNotFound возвращается, если питомец не найден в каталоге.
	ErrPetNotFound = errors.New("pet not found")
	// ErrSessionNotFound возвращается, если сессия витрины не найдена.
	ErrSessionNotFound = errors.New("storefront session not found")

	// ErrCheckoutIDRequired возвращается при записи события без checkout_id.
	ErrCheckoutIDRequired = errors.New("checkout_id is required")
	// ErrOrderAlreadyExists возвращается при повторной вставке заказа с тем же ID.
	ErrOrderAlreadyExists = errors.New("order already exists")

	// ErrOutboxPublish - ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrOutboxMessageInvalid - сообщение нельзя поставить в outbox.
	ErrOutboxMessageInvalid = errors.New("invalid outbox message")
)

// IsValidation проверяет, является ли ошибка ошибкой валидации оформления.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
