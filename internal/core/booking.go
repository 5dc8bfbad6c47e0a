package core

import "time"

// BookingStatus is the progress of a booking on an account's calendar.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is a reserved slot on an account's calendar. StartTime is strictly
// before EndTime.
type Booking struct {
	ID        string
	AccountID string
	Title     string
	Status    BookingStatus
	StartTime time.Time
	EndTime   time.Time
	CreatedAt time.Time
}

// Duration is the booked span.
func (b Booking) Duration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}

func (b Booking) Confirmed() bool {
	return b.Status == BookingConfirmed
}
