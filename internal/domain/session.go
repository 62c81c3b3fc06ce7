package domain

// Session - текущий пользователь витрины. Пустой CustomerID означает отсутствие входа.
type Session struct {
	CustomerID string
	Email      string
}

// Authenticated сообщает, выполнен ли вход.
func (s Session) Authenticated() bool {
	return s.CustomerID != ""
}
