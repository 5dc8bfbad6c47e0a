// Package server exposes the gatherd service over HTTP. Routing uses the
// standard mux with method patterns; every decision the API reports is made
// by the service and the core underneath it.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mhalley/gatherd/internal/core"
	"github.com/mhalley/gatherd/internal/metrics"
	"github.com/mhalley/gatherd/internal/repository"
	"github.com/mhalley/gatherd/internal/service"
)

const maxJSONBodyBytes = 1 << 20

type HTTPServer struct {
	service Service
	metrics *metrics.Metrics
}

// NewHTTPHandler builds the full API handler. metrics may be nil, which
// disables the /metrics endpoint and request instrumentation.
func NewHTTPHandler(svc Service, m *metrics.Metrics) http.Handler {
	if svc == nil {
		panic("service is nil")
	}

	server := &HTTPServer{service: svc, metrics: m}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/accounts", server.handleCreateAccount)
	mux.HandleFunc("GET /v1/accounts/{id}/status", server.handleAccountStatus)
	mux.HandleFunc("GET /v1/accounts/{id}/discount", server.handleDiscount)
	mux.HandleFunc("POST /v1/accounts/{id}/archive", server.handleArchiveAccount)
	mux.HandleFunc("POST /v1/accounts/{id}/close", server.handleCloseAccount)
	mux.HandleFunc("POST /v1/accounts/{id}/bookings", server.handleCreateBooking)
	mux.HandleFunc("POST /v1/accounts/{id}/events", server.handleCreateEvent)
	mux.HandleFunc("GET /v1/events/{id}/featured", server.handleFeatured)
	mux.HandleFunc("POST /v1/events/{id}/attendees", server.handleRegisterAttendee)
	mux.HandleFunc("GET /v1/attendees/{id}", server.handleGetAttendee)
	mux.HandleFunc("POST /v1/attendees/{id}/transitions", server.handleFireTransition)
	mux.HandleFunc("GET /healthz", server.handleHealthz)
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	return server.withMetrics(mux)
}

func (s *HTTPServer) withMetrics(mux *http.ServeMux) http.Handler {
	if s.metrics == nil {
		return mux
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		mux.ServeHTTP(rw, r)

		// The route label is the mux pattern, not the raw path, to keep
		// metric cardinality bounded.
		_, route := mux.Handler(r)
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RecordHTTPRequest(r.Method, route, rw.status, time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

type accountJSON struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Website    string     `json:"website,omitempty"`
	Tier       string     `json:"tier"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toAccountJSON(a core.Account) accountJSON {
	return accountJSON{
		ID:         a.ID,
		Name:       a.Name,
		Website:    a.Website,
		Tier:       string(a.Tier),
		ExpiresAt:  a.ExpiresAt,
		ArchivedAt: a.ArchivedAt,
		ClosedAt:   a.ClosedAt,
		CreatedAt:  a.CreatedAt,
	}
}

type createAccountRequest struct {
	Name      string     `json:"name"`
	Website   string     `json:"website"`
	Tier      string     `json:"tier"`
	ExpiresAt *time.Time `json:"expires_at"`
	// OwnerAge is optional; when present the holder must be an adult.
	OwnerAge json.Number `json:"owner_age"`
}

func (s *HTTPServer) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.OwnerAge != "" {
		ok, err := core.ValidAge(req.OwnerAge.String())
		if err != nil {
			writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if !ok {
			writeJSONError(w, http.StatusUnprocessableEntity, "account holder must be at least 18")
			return
		}
	}

	account, err := s.service.CreateAccount(r.Context(), core.Account{
		Name:      req.Name,
		Website:   req.Website,
		Tier:      core.AccountTier(req.Tier),
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountJSON(account))
}

func (s *HTTPServer) handleAccountStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.ResolveAccountStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

type discountResponse struct {
	Outcome string   `json:"outcome"`
	Reasons []string `json:"reasons,omitempty"`
}

func (s *HTTPServer) handleDiscount(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.service.EvaluateDiscountEligibility(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := discountResponse{Outcome: "success"}
	if outcome.Failed() {
		resp.Outcome = "failure"
		resp.Reasons = outcome.ReasonStrings()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleArchiveAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ArchiveAccount(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleCloseAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CloseAccount(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createBookingRequest struct {
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := s.service.CreateBooking(r.Context(), core.Booking{
		AccountID: r.PathValue("id"),
		Title:     req.Title,
		Status:    core.BookingStatus(req.Status),
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

type createEventRequest struct {
	Title     string    `json:"title"`
	Location  string    `json:"location"`
	Premium   bool      `json:"premium"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func (s *HTTPServer) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := s.service.CreateEvent(r.Context(), core.Event{
		AccountID: r.PathValue("id"),
		Title:     req.Title,
		Location:  req.Location,
		Premium:   req.Premium,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

func (s *HTTPServer) handleFeatured(w http.ResponseWriter, r *http.Request) {
	featured, err := s.service.IsEventFeatured(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"featured": featured})
}

type registerAttendeeRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *HTTPServer) handleRegisterAttendee(w http.ResponseWriter, r *http.Request) {
	var req registerAttendeeRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	attendee, err := s.service.RegisterAttendee(r.Context(), core.Attendee{
		EventID: r.PathValue("id"),
		Name:    req.Name,
		Email:   req.Email,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, attendee)
}

func (s *HTTPServer) handleGetAttendee(w http.ResponseWriter, r *http.Request) {
	attendee, err := s.service.GetAttendee(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, attendee)
}

type fireTransitionRequest struct {
	Event string `json:"event"`
}

type fireTransitionResponse struct {
	Applied bool   `json:"applied"`
	Status  string `json:"status"`
}

func (s *HTTPServer) handleFireTransition(w http.ResponseWriter, r *http.Request) {
	var req fireTransitionRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	attendee, applied, err := s.service.FireAttendeeEvent(r.Context(), r.PathValue("id"), core.LifecycleEvent(req.Event))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if !applied {
		// The transition was denied; the attendee state did not change.
		status = http.StatusConflict
	}
	writeJSON(w, status, fireTransitionResponse{
		Applied: applied,
		Status:  string(attendee.Status),
	})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrUnknownEvent):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case isValidationError(err):
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		service.ErrNameRequired,
		service.ErrTitleRequired,
		service.ErrLocationRequired,
		service.ErrEmailRequired,
		service.ErrInvalidTimeRange,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
