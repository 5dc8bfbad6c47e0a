package core

import "time"

const (
	// FeaturedRecentDays is how far back an event still counts as recent.
	FeaturedRecentDays = 7
	// FeaturedPopularityThreshold is the attendee count an event must
	// strictly exceed to count as highly popular.
	FeaturedPopularityThreshold = 100
)

// IsEventFeatured decides whether an event qualifies for featured promotion,
// keyed off the hosting account's tier:
//
//   - standard: highly popular AND recent AND premium
//   - premium:  highly popular OR (recent AND premium)
//   - vip:      always
//   - free or anything else: never
//
// attendeeCount is the event's current attendee count; tier comes from the
// hosting account.
func IsEventFeatured(e Event, tier AccountTier, attendeeCount int, now time.Time) bool {
	highPopularity := attendeeCount > FeaturedPopularityThreshold
	recent := eventRecent(e, now)
	premium := e.Premium

	switch tier {
	case TierStandard:
		return highPopularity && recent && premium
	case TierPremium:
		return highPopularity || (recent && premium)
	case TierVIP:
		return true
	default:
		return false
	}
}

// eventRecent reports whether the event was created strictly within the last
// FeaturedRecentDays. An event created exactly seven days ago is not recent.
func eventRecent(e Event, now time.Time) bool {
	return e.CreatedAt.After(now.AddDate(0, 0, -FeaturedRecentDays))
}
