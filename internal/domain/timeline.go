package domain

import "time"

// TimelineEvent описывает событие в жизни одного оформления заказа (checkout).
type TimelineEvent struct {
	CheckoutID string
	Type       string
	Reason     string
	Occurred   time.Time
}
