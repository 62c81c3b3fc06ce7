package grpcsvc

import "time"

// Pet - карточка питомца в ответах API. Цена передаётся строкой с двумя знаками.
type Pet struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Species        string `json:"species"`
	Price          string `json:"price"`
	AdoptionStatus string `json:"adoption_status"`
}

// Order - запись о покупке.
type Order struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customer_id"`
	PaymentID   string    `json:"payment_id"`
	PetID       string    `json:"pet_id"`
	OrderDate   time.Time `json:"order_date"`
	TotalAmount string    `json:"total_amount"`
}

// Session - текущая идентичность покупателя.
type Session struct {
	CustomerID    string `json:"customer_id"`
	Email         string `json:"email,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

type OpenSessionRequest struct{}

type OpenSessionResponse struct {
	SessionID string `json:"session_id"`
	Pets      []Pet  `json:"pets"`
	Page      int    `json:"page"`
	Exhausted bool   `json:"exhausted"`
}

type SignInRequest struct {
	CustomerID string `json:"customer_id"`
	Email      string `json:"email,omitempty"`
}

type SignInResponse struct {
	Session Session `json:"session"`
}

type SignOutRequest struct{}

type SignOutResponse struct {
	Session Session `json:"session"`
}

// ListPetsRequest - параметры видимого списка: поиск по виду, фильтр и сортировка.
type ListPetsRequest struct {
	Text    string `json:"text,omitempty"`
	Species string `json:"species,omitempty"`
	Sort    string `json:"sort,omitempty"`
}

type ListPetsResponse struct {
	Pets      []Pet `json:"pets"`
	Page      int   `json:"page"`
	Exhausted bool  `json:"exhausted"`
}

// LoadMoreRequest - CurrentPage=0 означает последнюю загруженную страницу.
type LoadMoreRequest struct {
	CurrentPage int `json:"current_page,omitempty"`
}

type LoadMoreResponse struct {
	Added     []Pet `json:"added"`
	Page      int   `json:"page"`
	Exhausted bool  `json:"exhausted"`
}

type GetPetRequest struct {
	PetID string `json:"pet_id"`
}

type GetPetResponse struct {
	Pet         Pet    `json:"pet"`
	Breed       string `json:"breed"`
	Age         string `json:"age"`
	Gender      string `json:"gender"`
	Fixed       string `json:"fixed"`
	Description string `json:"description"`
	Health      string `json:"health"`
}

type AddToCartRequest struct {
	PetID string `json:"pet_id"`
}

type GetCartRequest struct{}

type ClearCartRequest struct{}

type CartResponse struct {
	PetIDs []string `json:"pet_ids"`
	Items  []Pet    `json:"items"`
	Total  string   `json:"total"`
}

type EnterCheckoutRequest struct{}

// CheckoutView - экран оформления. Номер карты только маскированный.
type CheckoutView struct {
	State          string `json:"state"`
	CheckoutID     string `json:"checkout_id,omitempty"`
	CustomerID     string `json:"customer_id,omitempty"`
	Email          string `json:"email,omitempty"`
	MaskedCard     string `json:"masked_card,omitempty"`
	CardholderName string `json:"cardholder_name,omitempty"`
	Expiration     string `json:"expiration,omitempty"`
	BillingAddress string `json:"billing_address,omitempty"`
	Items          []Pet  `json:"items"`
	Total          string `json:"total"`
	CanConfirm     bool   `json:"can_confirm"`
	Navigate       string `json:"navigate,omitempty"`
}

type LeaveCheckoutRequest struct{}

type LeaveCheckoutResponse struct {
	State string `json:"state"`
}

type ConfirmCheckoutRequest struct{}

type ConfirmCheckoutResponse struct {
	CheckoutID  string   `json:"checkout_id"`
	State       string   `json:"state"`
	Orders      []Order  `json:"orders"`
	Total       string   `json:"total"`
	FailedSteps []string `json:"failed_steps,omitempty"`
	Navigate    string   `json:"navigate"`
}

type ListOrdersRequest struct {
	Limit int `json:"limit,omitempty"`
}

type ListOrdersResponse struct {
	Orders []Order `json:"orders"`
}
