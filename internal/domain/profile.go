package domain

import "time"

// Profile is the canonical rateable card, one per user.
type Profile struct {
	ID            int64
	Name          string
	City          string
	Media         string
	Score         float64
	RatingsCount  int64
	ExposureQuota int64
	Blocked       bool
	VIP           bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Active reports whether the profile may still be served to raters.
func (p Profile) Active() bool {
	return p.ExposureQuota > 0
}

// ProfileSummary is the projection used by search and leaderboard listings.
type ProfileSummary struct {
	ID           int64
	Name         string
	City         string
	Media        string
	Score        float64
	RatingsCount int64
}
