// Package service orchestrates the core decision engines over persisted
// aggregates: it loads accounts, bookings, events, and attendees through the
// repository, delegates every decision to [core], and hands lifecycle
// notifications to the dispatcher.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mhalley/gatherd/internal/clock"
	"github.com/mhalley/gatherd/internal/core"
	"github.com/mhalley/gatherd/internal/repository"
)

var (
	ErrNameRequired     = errors.New("name is required")
	ErrTitleRequired    = errors.New("title is required")
	ErrLocationRequired = errors.New("location is required")
	ErrEmailRequired    = errors.New("email is required")
	ErrInvalidTimeRange = errors.New("start time must be before end time")
	ErrUnknownEvent     = errors.New("unknown lifecycle event")
)

// Repository is the persistence capability the service needs. The core's
// evaluators only borrow read access; the lifecycle machine additionally
// writes the attendee status back.
type Repository interface {
	CreateAccount(ctx context.Context, account core.Account) (core.Account, error)
	GetAccount(ctx context.Context, id string) (core.Account, error)
	ArchiveAccount(ctx context.Context, id string, at time.Time) error
	CloseAccount(ctx context.Context, id string, at time.Time) error
	CreateBooking(ctx context.Context, booking core.Booking) (core.Booking, error)
	ListBookings(ctx context.Context, accountID string) ([]core.Booking, error)
	CreateEvent(ctx context.Context, event core.Event) (core.Event, error)
	GetEvent(ctx context.Context, id string) (core.Event, error)
	CountAttendees(ctx context.Context, eventID string) (int, error)
	CreateAttendee(ctx context.Context, attendee core.Attendee) (core.Attendee, error)
	GetAttendee(ctx context.Context, id string) (core.Attendee, error)
	UpdateAttendeeStatus(ctx context.Context, id string, from, to core.AttendeeStatus) error
}

// Dispatcher schedules a notification without blocking on delivery.
// Satisfied by [notify.Dispatcher].
type Dispatcher interface {
	Dispatch(template core.NotificationTemplate, attendee core.Attendee)
}

type Service struct {
	repo     Repository
	clock    clock.Clock
	dispatch Dispatcher
	log      *slog.Logger

	onEvaluation func(evaluator string, passed bool)
	onTransition func(event core.LifecycleEvent, applied bool)
}

type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithEvaluationMetrics installs a hook observed after every evaluator run.
func WithEvaluationMetrics(fn func(evaluator string, passed bool)) Option {
	return func(s *Service) {
		s.onEvaluation = fn
	}
}

// WithTransitionMetrics installs a hook observed after every lifecycle
// firing attempt.
func WithTransitionMetrics(fn func(event core.LifecycleEvent, applied bool)) Option {
	return func(s *Service) {
		s.onTransition = fn
	}
}

func New(repo Repository, clk clock.Clock, dispatch Dispatcher, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("repository is nil")
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if dispatch == nil {
		return nil, errors.New("dispatcher is nil")
	}

	svc := &Service{
		repo:     repo,
		clock:    clk,
		dispatch: dispatch,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateAccount stores a new account. Tier defaults to free.
func (s *Service) CreateAccount(ctx context.Context, account core.Account) (core.Account, error) {
	if strings.TrimSpace(account.Name) == "" {
		return core.Account{}, ErrNameRequired
	}

	created, err := s.repo.CreateAccount(ctx, account)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return created, nil
}

// ArchiveAccount stamps the account archived as of now. Idempotent: an
// already-archived account keeps its original timestamp.
func (s *Service) ArchiveAccount(ctx context.Context, accountID string) error {
	if err := s.repo.ArchiveAccount(ctx, accountID, s.clock.Now()); err != nil {
		return fmt.Errorf("archive account: %w", err)
	}
	return nil
}

// CloseAccount stamps the account closed as of now. Idempotent like
// ArchiveAccount.
func (s *Service) CloseAccount(ctx context.Context, accountID string) error {
	if err := s.repo.CloseAccount(ctx, accountID, s.clock.Now()); err != nil {
		return fmt.Errorf("close account: %w", err)
	}
	return nil
}

// ResolveAccountStatus derives the account's lifecycle status as of now.
func (s *Service) ResolveAccountStatus(ctx context.Context, accountID string) (core.AccountStatus, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("resolve account status: %w", err)
	}

	return core.ResolveAccountStatus(account, s.clock.Now()), nil
}

// EvaluateDiscountEligibility runs the discount evaluator over the account's
// full booking history. A failing outcome is a routine result, not an error.
func (s *Service) EvaluateDiscountEligibility(ctx context.Context, accountID string) (core.Outcome[core.Account], error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return core.Outcome[core.Account]{}, fmt.Errorf("evaluate discount: %w", err)
	}
	bookings, err := s.repo.ListBookings(ctx, accountID)
	if err != nil {
		return core.Outcome[core.Account]{}, fmt.Errorf("evaluate discount: %w", err)
	}

	outcome := core.EvaluateDiscount(account, bookings, s.clock.Now())
	if s.onEvaluation != nil {
		s.onEvaluation("discount", outcome.OK())
	}
	if outcome.Failed() {
		s.log.DebugContext(ctx, "discount eligibility denied",
			"account_id", accountID,
			"reasons", outcome.ReasonStrings(),
		)
	}
	return outcome, nil
}

// CreateBooking stores a booking on an account.
func (s *Service) CreateBooking(ctx context.Context, booking core.Booking) (core.Booking, error) {
	if strings.TrimSpace(booking.Title) == "" {
		return core.Booking{}, ErrTitleRequired
	}
	if !booking.StartTime.Before(booking.EndTime) {
		return core.Booking{}, ErrInvalidTimeRange
	}
	if _, err := s.repo.GetAccount(ctx, booking.AccountID); err != nil {
		return core.Booking{}, fmt.Errorf("create booking: %w", err)
	}

	created, err := s.repo.CreateBooking(ctx, booking)
	if err != nil {
		return core.Booking{}, fmt.Errorf("create booking: %w", err)
	}
	return created, nil
}

// CreateEvent stores an event hosted by an account.
func (s *Service) CreateEvent(ctx context.Context, event core.Event) (core.Event, error) {
	if strings.TrimSpace(event.Title) == "" {
		return core.Event{}, ErrTitleRequired
	}
	if strings.TrimSpace(event.Location) == "" {
		return core.Event{}, ErrLocationRequired
	}
	if !event.StartTime.Before(event.EndTime) {
		return core.Event{}, ErrInvalidTimeRange
	}
	if _, err := s.repo.GetAccount(ctx, event.AccountID); err != nil {
		return core.Event{}, fmt.Errorf("create event: %w", err)
	}

	created, err := s.repo.CreateEvent(ctx, event)
	if err != nil {
		return core.Event{}, fmt.Errorf("create event: %w", err)
	}
	return created, nil
}

// IsEventFeatured runs the featured evaluator for one event, keyed off the
// hosting account's tier.
func (s *Service) IsEventFeatured(ctx context.Context, eventID string) (bool, error) {
	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("featured evaluation: %w", err)
	}
	account, err := s.repo.GetAccount(ctx, event.AccountID)
	if err != nil {
		return false, fmt.Errorf("featured evaluation: %w", err)
	}
	attendees, err := s.repo.CountAttendees(ctx, eventID)
	if err != nil {
		return false, fmt.Errorf("featured evaluation: %w", err)
	}

	featured := core.IsEventFeatured(event, account.Tier, attendees, s.clock.Now())
	if s.onEvaluation != nil {
		s.onEvaluation("featured", featured)
	}
	return featured, nil
}

// RegisterAttendee stores a new attendee in the registered state and
// schedules the "registered" notification.
func (s *Service) RegisterAttendee(ctx context.Context, attendee core.Attendee) (core.Attendee, error) {
	if strings.TrimSpace(attendee.Name) == "" {
		return core.Attendee{}, ErrNameRequired
	}
	if strings.TrimSpace(attendee.Email) == "" {
		return core.Attendee{}, ErrEmailRequired
	}
	if _, err := s.repo.GetEvent(ctx, attendee.EventID); err != nil {
		return core.Attendee{}, fmt.Errorf("register attendee: %w", err)
	}

	attendee.Status = core.AttendeeRegistered
	created, err := s.repo.CreateAttendee(ctx, attendee)
	if err != nil {
		return core.Attendee{}, fmt.Errorf("register attendee: %w", err)
	}

	s.dispatch.Dispatch(core.TemplateRegistered, created)
	return created, nil
}

// GetAttendee retrieves one attendee.
func (s *Service) GetAttendee(ctx context.Context, attendeeID string) (core.Attendee, error) {
	attendee, err := s.repo.GetAttendee(ctx, attendeeID)
	if err != nil {
		return core.Attendee{}, fmt.Errorf("get attendee: %w", err)
	}
	return attendee, nil
}

// FireAttendeeEvent applies one lifecycle event to an attendee. It returns
// false when the transition is denied (the current state is not in the
// event's source set, or a concurrent transition won the status write),
// leaving the attendee unchanged. The notification, if the transition
// defines one, is dispatched asynchronously only after the new status is
// durable; its delivery never affects the returned result.
func (s *Service) FireAttendeeEvent(ctx context.Context, attendeeID string, event core.LifecycleEvent) (core.Attendee, bool, error) {
	if !core.KnownLifecycleEvent(event) {
		return core.Attendee{}, false, ErrUnknownEvent
	}

	attendee, err := s.repo.GetAttendee(ctx, attendeeID)
	if err != nil {
		return core.Attendee{}, false, fmt.Errorf("fire attendee event: %w", err)
	}

	from := attendee.Status
	template, ok := attendee.Fire(event)
	if !ok {
		if s.onTransition != nil {
			s.onTransition(event, false)
		}
		s.log.DebugContext(ctx, "lifecycle transition denied",
			"attendee_id", attendeeID,
			"event", string(event),
			"status", string(from),
		)
		return attendee, false, nil
	}

	if err := s.repo.UpdateAttendeeStatus(ctx, attendeeID, from, attendee.Status); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			// Lost a concurrent transition; report denial, not an error,
			// with the status the winner left behind.
			if s.onTransition != nil {
				s.onTransition(event, false)
			}
			current, readErr := s.repo.GetAttendee(ctx, attendeeID)
			if readErr != nil {
				return core.Attendee{}, false, fmt.Errorf("fire attendee event: %w", readErr)
			}
			return current, false, nil
		}
		return core.Attendee{}, false, fmt.Errorf("fire attendee event: %w", err)
	}

	if s.onTransition != nil {
		s.onTransition(event, true)
	}
	if template != "" {
		s.dispatch.Dispatch(template, attendee)
	}
	return attendee, true, nil
}
