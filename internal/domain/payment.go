package domain

import "time"

// PaymentIntent identifies an open bill at the payment gateway. It lives in
// the poller's dedup window until a terminal status is observed.
type PaymentIntent struct {
	BillID    string
	PayURL    string
	CreatedAt time.Time
}
