package domain

// PaymentMethod - сохранённые платёжные данные клиента (одна запись на клиента).
// Данные только хранятся и показываются, никакой обработки платежей нет.
type PaymentMethod struct {
	ID             string
	CustomerID     string
	CardNumber     string
	Expiration     string
	CardholderName string
	BillingAddress string
}

// MaskedCardNumber возвращает номер карты для отображения.
func (p PaymentMethod) MaskedCardNumber() string {
	return MaskCardNumber(p.CardNumber)
}

// MaskCardNumber оставляет последние 4 символа: "****1234". Пустая строка остаётся пустой.
func MaskCardNumber(number string) string {
	if number == "" {
		return ""
	}
	if len(number) <= 4 {
		return "****" + number
	}
	return "****" + number[len(number)-4:]
}
