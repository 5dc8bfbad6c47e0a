// Package core implements the decision engines for bookable accounts and
// their events: account status resolution, discount eligibility, featured
// event evaluation, and the attendee lifecycle state machine.
//
// Every time-dependent function takes the current time as an explicit
// argument so evaluations stay pure and deterministic under test.
package core

import (
	"strings"
	"time"
)

// AccountTier is the commercial tier an account is on.
type AccountTier string

const (
	TierFree     AccountTier = "free"
	TierStandard AccountTier = "standard"
	TierPremium  AccountTier = "premium"
	TierVIP      AccountTier = "vip"
)

// AccountStatus is the single lifecycle status derived from an account's
// facts. Exactly one applies at any time.
type AccountStatus string

const (
	StatusActive         AccountStatus = "active"
	StatusArchived       AccountStatus = "archived"
	StatusClosed         AccountStatus = "closed"
	StatusExpired        AccountStatus = "expired"
	StatusExpiring       AccountStatus = "expiring"
	StatusUpdateRequired AccountStatus = "update_required"
)

// SoonToExpireDays is the width of the "expiring soon" window, inclusive of
// the boundary date.
const SoonToExpireDays = 30

// Account hosts bookings and events. A nil ExpiresAt means the account is
// eternal and never expires.
type Account struct {
	ID         string
	Name       string
	Website    string
	Tier       AccountTier
	ExpiresAt  *time.Time
	ArchivedAt *time.Time
	ClosedAt   *time.Time
	CreatedAt  time.Time
}

func (a Account) Archived() bool {
	return a.ArchivedAt != nil
}

func (a Account) Closed() bool {
	return a.ClosedAt != nil
}

// Eternal reports whether the account has no expiration date.
func (a Account) Eternal() bool {
	return a.ExpiresAt == nil
}

// Expired reports whether the account's expiration date is strictly before
// the current date. Comparison is at date granularity: an account expiring
// today is not yet expired.
func (a Account) Expired(now time.Time) bool {
	if a.Eternal() {
		return false
	}
	return dateOf(*a.ExpiresAt).Before(dateOf(now))
}

// ExpiringSoon reports whether the account expires within SoonToExpireDays
// from now, boundary inclusive. Expired and eternal accounts are never
// expiring.
func (a Account) ExpiringSoon(now time.Time) bool {
	if a.Eternal() || a.Expired(now) {
		return false
	}
	deadline := dateOf(now).AddDate(0, 0, SoonToExpireDays)
	return !dateOf(*a.ExpiresAt).After(deadline)
}

// UpdateRequired reports whether the account needs attention: a blank
// website or a passed expiration date.
func (a Account) UpdateRequired(now time.Time) bool {
	return strings.TrimSpace(a.Website) == "" || a.Expired(now)
}

// ResolveAccountStatus derives the account's lifecycle status. Precedence is
// fixed: archived wins over closed, closed over expiring, expiring over
// update_required, and active is the fallback. Total over all valid accounts.
func ResolveAccountStatus(a Account, now time.Time) AccountStatus {
	switch {
	case a.Archived():
		return StatusArchived
	case a.Closed():
		return StatusClosed
	case a.ExpiringSoon(now):
		return StatusExpiring
	case a.UpdateRequired(now):
		return StatusUpdateRequired
	default:
		return StatusActive
	}
}

// dateOf truncates t to its calendar date in UTC.
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
