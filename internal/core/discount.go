package core

import "time"

// Discount eligibility criteria. An account qualifies only when it is
// strictly older than a year, has strictly more than ten confirmed bookings,
// and those bookings total strictly more than a hundred hours.
const (
	DiscountAgeCriteriaDays       = 365
	DiscountBookingsCountCriteria = 10
	DiscountDurationCriteriaHours = 100
)

// EvaluateDiscount checks an account's booking history against the discount
// criteria. All three criteria are evaluated unconditionally so a failing
// outcome carries every applicable reason, in evaluation order. Only
// confirmed bookings count; pending and cancelled ones are ignored.
func EvaluateDiscount(a Account, bookings []Booking, now time.Time) Outcome[Account] {
	confirmed := confirmedBookings(bookings)

	var reasons []Reason
	if accountAgeDays(a, now) <= DiscountAgeCriteriaDays {
		reasons = append(reasons, ReasonAccountAgeBelowCriteria)
	}
	if len(confirmed) <= DiscountBookingsCountCriteria {
		reasons = append(reasons, ReasonBookingsCountBelowCriteria)
	}
	if totalHours(confirmed) <= DiscountDurationCriteriaHours {
		reasons = append(reasons, ReasonDurationBelowCriteria)
	}

	if len(reasons) > 0 {
		return Failure(a, reasons...)
	}
	return Success(a)
}

// accountAgeDays is the whole number of calendar days between the account's
// creation date and the current date.
func accountAgeDays(a Account, now time.Time) int {
	return int(dateOf(now).Sub(dateOf(a.CreatedAt)).Hours() / 24)
}

// totalHours sums the bookings' durations and truncates the total to whole
// hours. Truncation happens on the sum, not per booking.
func totalHours(bookings []Booking) int {
	var total time.Duration
	for _, b := range bookings {
		total += b.Duration()
	}
	return int(total.Hours())
}

func confirmedBookings(bookings []Booking) []Booking {
	var confirmed []Booking
	for _, b := range bookings {
		if b.Confirmed() {
			confirmed = append(confirmed, b)
		}
	}
	return confirmed
}
