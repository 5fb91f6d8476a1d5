package models

import "time"

// DateLayout is the calendar date format used for events
const DateLayout = "2006-01-02"

// DefaultEventName is used when the first event has to be created automatically
const DefaultEventName = "Speed Dating Night"

// Event represents a single speed dating event
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
}
