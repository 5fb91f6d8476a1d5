package models

import "time"

// Guest represents a registered event guest
type Guest struct {
	ID           string    `json:"id"`
	GuestID      string    `json:"guestId"`
	Name         string    `json:"name"`
	Age          int       `json:"age"`
	Important    string    `json:"important"`
	Goal         string    `json:"goal"`
	EventID      string    `json:"eventId"`
	RegisteredAt time.Time `json:"registeredAt"`
	QRCode       string    `json:"qrCode"`
	Points       int       `json:"points"`
	Activities   []string  `json:"activities"`
}

const (
	// PointsPerVote is awarded to the voter for every accepted vote
	PointsPerVote = 10

	// ActivityPollParticipation is appended to a guest's activities per vote
	ActivityPollParticipation = "Poll Participation"

	// GuestTokenPrefix starts every public guest token
	GuestTokenPrefix = "GUEST-"
)

// Active reports whether the guest has taken part in anything yet
func (g Guest) Active() bool {
	return g.Points > 0
}
