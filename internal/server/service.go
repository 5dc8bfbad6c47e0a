package server

import (
	"context"

	"github.com/mhalley/gatherd/internal/core"
	"github.com/mhalley/gatherd/internal/service"
)

// Service is the application surface the HTTP transport exposes.
type Service interface {
	CreateAccount(ctx context.Context, account core.Account) (core.Account, error)
	ArchiveAccount(ctx context.Context, accountID string) error
	CloseAccount(ctx context.Context, accountID string) error
	ResolveAccountStatus(ctx context.Context, accountID string) (core.AccountStatus, error)
	EvaluateDiscountEligibility(ctx context.Context, accountID string) (core.Outcome[core.Account], error)
	CreateBooking(ctx context.Context, booking core.Booking) (core.Booking, error)
	CreateEvent(ctx context.Context, event core.Event) (core.Event, error)
	IsEventFeatured(ctx context.Context, eventID string) (bool, error)
	RegisterAttendee(ctx context.Context, attendee core.Attendee) (core.Attendee, error)
	GetAttendee(ctx context.Context, attendeeID string) (core.Attendee, error)
	FireAttendeeEvent(ctx context.Context, attendeeID string, event core.LifecycleEvent) (core.Attendee, bool, error)
}

var _ Service = (*service.Service)(nil)
