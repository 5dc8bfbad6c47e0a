package core

import "time"

// EventStatus is the progress of a hosted event.
type EventStatus string

const (
	EventPending   EventStatus = "pending"
	EventConfirmed EventStatus = "confirmed"
	EventCancelled EventStatus = "cancelled"
)

// Event is a gathering hosted by an account, attended by attendees. The
// Premium flag marks events sold as premium, either explicitly or via the
// hosting account's tier; featured evaluation treats it as an opaque input.
type Event struct {
	ID        string
	AccountID string
	Title     string
	Location  string
	Status    EventStatus
	Premium   bool
	StartTime time.Time
	EndTime   time.Time
	CreatedAt time.Time
}
