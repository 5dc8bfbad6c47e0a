package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mhalley/gatherd/internal/core"
	"github.com/mhalley/gatherd/internal/metrics"
	"github.com/mhalley/gatherd/internal/repository"
	"github.com/mhalley/gatherd/internal/service"
)

// fakeService implements Service in memory for handler tests.
type fakeService struct {
	accounts  map[string]core.Account
	events    map[string]core.Event
	attendees map[string]core.Attendee
	bookings  map[string][]core.Booking
	now       time.Time
	nextID    int

	dispatched []core.NotificationTemplate
}

func newFakeService() *fakeService {
	return &fakeService{
		accounts:  make(map[string]core.Account),
		events:    make(map[string]core.Event),
		attendees: make(map[string]core.Attendee),
		bookings:  make(map[string][]core.Booking),
		now:       time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (f *fakeService) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeService) CreateAccount(_ context.Context, account core.Account) (core.Account, error) {
	if account.Name == "" {
		return core.Account{}, service.ErrNameRequired
	}
	account.ID = f.id("acct")
	if account.Tier == "" {
		account.Tier = core.TierFree
	}
	account.CreatedAt = f.now
	f.accounts[account.ID] = account
	return account, nil
}

func (f *fakeService) ArchiveAccount(_ context.Context, accountID string) error {
	account, ok := f.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	if account.ArchivedAt == nil {
		at := f.now
		account.ArchivedAt = &at
		f.accounts[accountID] = account
	}
	return nil
}

func (f *fakeService) CloseAccount(_ context.Context, accountID string) error {
	account, ok := f.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	if account.ClosedAt == nil {
		at := f.now
		account.ClosedAt = &at
		f.accounts[accountID] = account
	}
	return nil
}

func (f *fakeService) ResolveAccountStatus(_ context.Context, accountID string) (core.AccountStatus, error) {
	account, ok := f.accounts[accountID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return core.ResolveAccountStatus(account, f.now), nil
}

func (f *fakeService) EvaluateDiscountEligibility(_ context.Context, accountID string) (core.Outcome[core.Account], error) {
	account, ok := f.accounts[accountID]
	if !ok {
		return core.Outcome[core.Account]{}, repository.ErrNotFound
	}
	return core.EvaluateDiscount(account, f.bookings[accountID], f.now), nil
}

func (f *fakeService) CreateBooking(_ context.Context, booking core.Booking) (core.Booking, error) {
	if _, ok := f.accounts[booking.AccountID]; !ok {
		return core.Booking{}, repository.ErrNotFound
	}
	if !booking.StartTime.Before(booking.EndTime) {
		return core.Booking{}, service.ErrInvalidTimeRange
	}
	booking.ID = f.id("bkg")
	f.bookings[booking.AccountID] = append(f.bookings[booking.AccountID], booking)
	return booking, nil
}

func (f *fakeService) CreateEvent(_ context.Context, event core.Event) (core.Event, error) {
	if _, ok := f.accounts[event.AccountID]; !ok {
		return core.Event{}, repository.ErrNotFound
	}
	event.ID = f.id("evt")
	event.CreatedAt = f.now
	f.events[event.ID] = event
	return event, nil
}

func (f *fakeService) IsEventFeatured(_ context.Context, eventID string) (bool, error) {
	event, ok := f.events[eventID]
	if !ok {
		return false, repository.ErrNotFound
	}
	account := f.accounts[event.AccountID]
	count := 0
	for _, attendee := range f.attendees {
		if attendee.EventID == eventID {
			count++
		}
	}
	return core.IsEventFeatured(event, account.Tier, count, f.now), nil
}

func (f *fakeService) RegisterAttendee(_ context.Context, attendee core.Attendee) (core.Attendee, error) {
	if _, ok := f.events[attendee.EventID]; !ok {
		return core.Attendee{}, repository.ErrNotFound
	}
	attendee.ID = f.id("att")
	attendee.Status = core.AttendeeRegistered
	f.attendees[attendee.ID] = attendee
	f.dispatched = append(f.dispatched, core.TemplateRegistered)
	return attendee, nil
}

func (f *fakeService) GetAttendee(_ context.Context, attendeeID string) (core.Attendee, error) {
	attendee, ok := f.attendees[attendeeID]
	if !ok {
		return core.Attendee{}, repository.ErrNotFound
	}
	return attendee, nil
}

func (f *fakeService) FireAttendeeEvent(_ context.Context, attendeeID string, event core.LifecycleEvent) (core.Attendee, bool, error) {
	if !core.KnownLifecycleEvent(event) {
		return core.Attendee{}, false, service.ErrUnknownEvent
	}
	attendee, ok := f.attendees[attendeeID]
	if !ok {
		return core.Attendee{}, false, repository.ErrNotFound
	}
	template, applied := attendee.Fire(event)
	if applied {
		f.attendees[attendeeID] = attendee
		if template != "" {
			f.dispatched = append(f.dispatched, template)
		}
	}
	return attendee, applied, nil
}

func newTestHandler() (*fakeService, http.Handler) {
	svc := newFakeService()
	return svc, NewHTTPHandler(svc, metrics.New())
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestCreateAccountEndpoint(t *testing.T) {
	_, handler := newTestHandler()

	rec := doJSON(t, handler, http.MethodPost, "/v1/accounts", map[string]any{
		"name":    "Orbit Studios",
		"website": "https://orbit.example",
		"tier":    "premium",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body.String())
	}

	account := decodeBody[accountJSON](t, rec)
	if account.ID == "" || account.Tier != "premium" {
		t.Fatalf("unexpected account response: %+v", account)
	}
}

func TestCreateAccountValidation(t *testing.T) {
	_, handler := newTestHandler()

	rec := doJSON(t, handler, http.MethodPost, "/v1/accounts", map[string]any{"website": "https://x.example"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestCreateAccountOwnerAgeGate(t *testing.T) {
	_, handler := newTestHandler()

	tests := []struct {
		name     string
		ownerAge any
		want     int
	}{
		{"adult is accepted", 34, http.StatusCreated},
		{"exactly minimum age is accepted", 18, http.StatusCreated},
		{"minor is rejected", 17, http.StatusUnprocessableEntity},
		{"negative age is rejected", -1, http.StatusUnprocessableEntity},
		{"non-integer age is rejected", 18.5, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/v1/accounts", map[string]any{
				"name":      "Host",
				"owner_age": tt.ownerAge,
			})
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d; body %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestAccountStatusEndpoint(t *testing.T) {
	svc, handler := newTestHandler()
	account, _ := svc.CreateAccount(context.Background(), core.Account{Name: "Host", Website: "https://host.example"})

	rec := doJSON(t, handler, http.MethodGet, "/v1/accounts/"+account.ID+"/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody[map[string]string](t, rec)
	if body["status"] != "active" {
		t.Fatalf("status = %q, want active", body["status"])
	}

	rec = doJSON(t, handler, http.MethodPost, "/v1/accounts/"+account.ID+"/archive", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("archive status = %d, want 204", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/accounts/"+account.ID+"/status", nil)
	body = decodeBody[map[string]string](t, rec)
	if body["status"] != "archived" {
		t.Fatalf("status after archive = %q, want archived", body["status"])
	}
}

func TestAccountStatusNotFound(t *testing.T) {
	_, handler := newTestHandler()

	rec := doJSON(t, handler, http.MethodGet, "/v1/accounts/missing/status", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDiscountEndpoint(t *testing.T) {
	svc, handler := newTestHandler()
	account, _ := svc.CreateAccount(context.Background(), core.Account{Name: "New Venue"})
	// The fake stamps CreatedAt = now, so the account is too young and has
	// no bookings: all three criteria fail.
	rec := doJSON(t, handler, http.MethodGet, "/v1/accounts/"+account.ID+"/discount", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody[discountResponse](t, rec)
	if body.Outcome != "failure" {
		t.Fatalf("outcome = %q, want failure", body.Outcome)
	}
	want := []string{"account_age_below_criteria", "bookings_count_below_criteria", "duration_below_criteria"}
	if len(body.Reasons) != len(want) {
		t.Fatalf("reasons = %v, want %v", body.Reasons, want)
	}
	for i := range want {
		if body.Reasons[i] != want[i] {
			t.Fatalf("reasons[%d] = %q, want %q", i, body.Reasons[i], want[i])
		}
	}
}

func TestFeaturedEndpoint(t *testing.T) {
	svc, handler := newTestHandler()
	ctx := context.Background()
	account, _ := svc.CreateAccount(ctx, core.Account{Name: "VIP Host", Tier: core.TierVIP})
	event, _ := svc.CreateEvent(ctx, core.Event{AccountID: account.ID, Title: "Gala", Location: "Hall"})

	rec := doJSON(t, handler, http.MethodGet, "/v1/events/"+event.ID+"/featured", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody[map[string]bool](t, rec)
	if !body["featured"] {
		t.Fatalf("featured = false for a vip event")
	}
}

func TestTransitionEndpoint(t *testing.T) {
	svc, handler := newTestHandler()
	ctx := context.Background()
	account, _ := svc.CreateAccount(ctx, core.Account{Name: "Host"})
	event, _ := svc.CreateEvent(ctx, core.Event{AccountID: account.ID, Title: "Meetup", Location: "Hall"})
	attendee, _ := svc.RegisterAttendee(ctx, core.Attendee{EventID: event.ID, Name: "Ada", Email: "ada@example.com"})

	t.Run("valid transition applies", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/v1/attendees/"+attendee.ID+"/transitions", map[string]string{"event": "attend"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
		}
		body := decodeBody[fireTransitionResponse](t, rec)
		if !body.Applied || body.Status != "attending" {
			t.Fatalf("response = %+v, want applied attending", body)
		}
	})

	t.Run("denied transition returns conflict", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/v1/attendees/"+attendee.ID+"/transitions", map[string]string{"event": "attend"})
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
		body := decodeBody[fireTransitionResponse](t, rec)
		if body.Applied || body.Status != "attending" {
			t.Fatalf("response = %+v, want denied attending", body)
		}
	})

	t.Run("unknown event is a bad request", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/v1/attendees/"+attendee.ID+"/transitions", map[string]string{"event": "promote"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/attendees/"+attendee.ID+"/transitions", bytes.NewReader([]byte("{")))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHealthzEndpoint(t *testing.T) {
	_, handler := newTestHandler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, handler := newTestHandler()

	// One request to populate the counters, then scrape.
	doJSON(t, handler, http.MethodGet, "/healthz", nil)
	rec := doJSON(t, handler, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("gatherd_http_requests_total")) {
		t.Fatalf("metrics body missing gatherd_http_requests_total")
	}
}
