package domain

import "time"

// Rating is a single entry in a profile's received-ratings log.
type Rating struct {
	ProfileID int64
	RaterID   int64
	Value     int
	Comment   *string
	CreatedAt time.Time
}
