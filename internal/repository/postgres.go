// Package repository provides PostgreSQL-backed persistence for accounts,
// bookings, events, and attendees. The decision engines never touch it
// directly; the service layer reads aggregates through it and writes back
// attendee status changes.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mhalley/gatherd/internal/core"
)

var (
	// ErrNotFound wraps pgx.ErrNoRows at the repository boundary.
	ErrNotFound = errors.New("record not found")
	// ErrStaleStatus reports a status write that lost a concurrent race:
	// the row's status no longer matched the one the transition began from.
	ErrStaleStatus = errors.New("attendee status changed concurrently")
)

// PostgresRepository stores the domain aggregates in PostgreSQL via a
// pgxpool connection pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const accountColumns = "id, name, website, account_tier, expires_at, archived_at, closed_at, created_at"

// CreateAccount inserts a new account and returns it with the generated ID
// and server timestamp.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account core.Account) (core.Account, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.Tier == "" {
		account.Tier = core.TierFree
	}

	var created core.Account
	err := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, name, website, account_tier, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+accountColumns+`
	`,
		account.ID,
		account.Name,
		account.Website,
		string(account.Tier),
		account.ExpiresAt,
	).Scan(
		&created.ID,
		&created.Name,
		&created.Website,
		&created.Tier,
		&created.ExpiresAt,
		&created.ArchivedAt,
		&created.ClosedAt,
		&created.CreatedAt,
	)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	return created, nil
}

// GetAccount retrieves one account by ID.
func (r *PostgresRepository) GetAccount(ctx context.Context, id string) (core.Account, error) {
	var account core.Account
	err := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id).Scan(
		&account.ID,
		&account.Name,
		&account.Website,
		&account.Tier,
		&account.ExpiresAt,
		&account.ArchivedAt,
		&account.ClosedAt,
		&account.CreatedAt,
	)
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", wrapNoRows(err))
	}

	return account, nil
}

// ArchiveAccount stamps archived_at. Already-archived accounts keep their
// original timestamp.
func (r *PostgresRepository) ArchiveAccount(ctx context.Context, id string, at time.Time) error {
	return r.stampAccount(ctx, "archived_at", id, at)
}

// CloseAccount stamps closed_at. Already-closed accounts keep their original
// timestamp.
func (r *PostgresRepository) CloseAccount(ctx context.Context, id string, at time.Time) error {
	return r.stampAccount(ctx, "closed_at", id, at)
}

func (r *PostgresRepository) stampAccount(ctx context.Context, column, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE accounts
		SET %s = COALESCE(%s, $2)
		WHERE id = $1
	`, column, column), id, at)
	if err != nil {
		return fmt.Errorf("stamp account %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("stamp account %s: %w", column, ErrNotFound)
	}
	return nil
}

const bookingColumns = "id, account_id, title, status, start_time, end_time, created_at"

// CreateBooking inserts a booking for an account.
func (r *PostgresRepository) CreateBooking(ctx context.Context, booking core.Booking) (core.Booking, error) {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = core.BookingPending
	}

	var created core.Booking
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bookings (id, account_id, title, status, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+bookingColumns+`
	`,
		booking.ID,
		booking.AccountID,
		booking.Title,
		string(booking.Status),
		booking.StartTime,
		booking.EndTime,
	).Scan(
		&created.ID,
		&created.AccountID,
		&created.Title,
		&created.Status,
		&created.StartTime,
		&created.EndTime,
		&created.CreatedAt,
	)
	if err != nil {
		return core.Booking{}, fmt.Errorf("create booking: %w", err)
	}

	return created, nil
}

// ListBookings returns every booking on an account, oldest first. The
// discount evaluator filters by status itself.
func (r *PostgresRepository) ListBookings(ctx context.Context, accountID string) ([]core.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE account_id = $1
		ORDER BY start_time
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]core.Booking, 0)
	for rows.Next() {
		var booking core.Booking
		if err := rows.Scan(
			&booking.ID,
			&booking.AccountID,
			&booking.Title,
			&booking.Status,
			&booking.StartTime,
			&booking.EndTime,
			&booking.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}

		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	return bookings, nil
}

const eventColumns = "id, account_id, title, location, status, premium, start_time, end_time, created_at"

// CreateEvent inserts an event for an account.
func (r *PostgresRepository) CreateEvent(ctx context.Context, event core.Event) (core.Event, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Status == "" {
		event.Status = core.EventPending
	}

	var created core.Event
	err := r.pool.QueryRow(ctx, `
		INSERT INTO events (id, account_id, title, location, status, premium, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+eventColumns+`
	`,
		event.ID,
		event.AccountID,
		event.Title,
		event.Location,
		string(event.Status),
		event.Premium,
		event.StartTime,
		event.EndTime,
	).Scan(
		&created.ID,
		&created.AccountID,
		&created.Title,
		&created.Location,
		&created.Status,
		&created.Premium,
		&created.StartTime,
		&created.EndTime,
		&created.CreatedAt,
	)
	if err != nil {
		return core.Event{}, fmt.Errorf("create event: %w", err)
	}

	return created, nil
}

// GetEvent retrieves one event by ID.
func (r *PostgresRepository) GetEvent(ctx context.Context, id string) (core.Event, error) {
	var event core.Event
	err := r.pool.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE id = $1
	`, id).Scan(
		&event.ID,
		&event.AccountID,
		&event.Title,
		&event.Location,
		&event.Status,
		&event.Premium,
		&event.StartTime,
		&event.EndTime,
		&event.CreatedAt,
	)
	if err != nil {
		return core.Event{}, fmt.Errorf("get event: %w", wrapNoRows(err))
	}

	return event, nil
}

// CountAttendees returns the number of attendees registered for an event.
func (r *PostgresRepository) CountAttendees(ctx context.Context, eventID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM attendees
		WHERE event_id = $1
	`, eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attendees: %w", err)
	}

	return count, nil
}

const attendeeColumns = "id, event_id, name, email, status, created_at"

// CreateAttendee inserts an attendee in the registered state.
func (r *PostgresRepository) CreateAttendee(ctx context.Context, attendee core.Attendee) (core.Attendee, error) {
	if attendee.ID == "" {
		attendee.ID = uuid.NewString()
	}
	if attendee.Status == "" {
		attendee.Status = core.AttendeeRegistered
	}

	var created core.Attendee
	err := r.pool.QueryRow(ctx, `
		INSERT INTO attendees (id, event_id, name, email, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+attendeeColumns+`
	`,
		attendee.ID,
		attendee.EventID,
		attendee.Name,
		attendee.Email,
		string(attendee.Status),
	).Scan(
		&created.ID,
		&created.EventID,
		&created.Name,
		&created.Email,
		&created.Status,
		&created.CreatedAt,
	)
	if err != nil {
		return core.Attendee{}, fmt.Errorf("create attendee: %w", err)
	}

	return created, nil
}

// GetAttendee retrieves one attendee by ID.
func (r *PostgresRepository) GetAttendee(ctx context.Context, id string) (core.Attendee, error) {
	var attendee core.Attendee
	err := r.pool.QueryRow(ctx, `
		SELECT `+attendeeColumns+`
		FROM attendees
		WHERE id = $1
	`, id).Scan(
		&attendee.ID,
		&attendee.EventID,
		&attendee.Name,
		&attendee.Email,
		&attendee.Status,
		&attendee.CreatedAt,
	)
	if err != nil {
		return core.Attendee{}, fmt.Errorf("get attendee: %w", wrapNoRows(err))
	}

	return attendee, nil
}

// UpdateAttendeeStatus writes the attendee's new status with a
// compare-and-set on the status the transition was computed from.
// Concurrent transitions on the same attendee serialize here: the loser's
// guard no longer matches and the write returns ErrStaleStatus.
func (r *PostgresRepository) UpdateAttendeeStatus(ctx context.Context, id string, from, to core.AttendeeStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE attendees
		SET status = $3
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("update attendee status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update attendee status: %w", ErrStaleStatus)
	}
	return nil
}

func wrapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
