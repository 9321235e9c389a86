package domain

import "time"

// TrackingLink maps a short tracking id to a destination URL. Visits to the
// tracking id record the visitor's reported coordinates.
type TrackingLink struct {
	ID             string
	UserID         string
	OriginalURL    string
	TrackingID     string
	RequireConsent bool
	CreatedAt      time.Time
}

// LocationLog is one recorded position for a tracking link. Country is a
// best-effort ISO code resolved from the caller's IP.
type LocationLog struct {
	ID        int64
	LinkID    string
	Latitude  float64
	Longitude float64
	Country   string
	CreatedAt time.Time
}
