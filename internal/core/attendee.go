package core

import "time"

// AttendeeStatus is an attendee's position in the lifecycle. It changes only
// through Fire; confirmed, cancelled, and checkedin have no outgoing
// transitions and are de facto terminal.
type AttendeeStatus string

const (
	AttendeeRegistered AttendeeStatus = "registered"
	AttendeeAttending  AttendeeStatus = "attending"
	AttendeeConfirmed  AttendeeStatus = "confirmed"
	AttendeeCancelled  AttendeeStatus = "cancelled"
	AttendeeCheckedIn  AttendeeStatus = "checkedin"
)

// LifecycleEvent names a transition in the attendee state machine.
type LifecycleEvent string

const (
	EventAttend            LifecycleEvent = "attend"
	EventConfirmAttendance LifecycleEvent = "confirm_attendance"
	EventCancel            LifecycleEvent = "cancel"
	EventCheckin           LifecycleEvent = "checkin"
)

// NotificationTemplate names the mail sent to an attendee after a lifecycle
// change.
type NotificationTemplate string

const (
	TemplateRegistered NotificationTemplate = "registered"
	TemplateAttending  NotificationTemplate = "attending"
	TemplateCancelled  NotificationTemplate = "cancelled"
	TemplateCheckedIn  NotificationTemplate = "checkedin"
)

// Attendee is a person registered for an event.
type Attendee struct {
	ID        string
	EventID   string
	Name      string
	Email     string
	Status    AttendeeStatus
	CreatedAt time.Time
}

type transition struct {
	sources  []AttendeeStatus
	target   AttendeeStatus
	template NotificationTemplate // empty when the transition sends nothing
}

// transitions is the full attendee state machine. A lifecycle event fires
// only when the current status is in its source set.
var transitions = map[LifecycleEvent]transition{
	EventAttend: {
		sources:  []AttendeeStatus{AttendeeRegistered},
		target:   AttendeeAttending,
		template: TemplateAttending,
	},
	EventConfirmAttendance: {
		sources: []AttendeeStatus{AttendeeAttending, AttendeeCheckedIn},
		target:  AttendeeConfirmed,
	},
	EventCancel: {
		sources:  []AttendeeStatus{AttendeeRegistered, AttendeeAttending},
		target:   AttendeeCancelled,
		template: TemplateCancelled,
	},
	EventCheckin: {
		sources:  []AttendeeStatus{AttendeeRegistered, AttendeeAttending},
		target:   AttendeeCheckedIn,
		template: TemplateCheckedIn,
	},
}

// KnownLifecycleEvent reports whether name is a declared lifecycle event.
func KnownLifecycleEvent(name LifecycleEvent) bool {
	_, ok := transitions[name]
	return ok
}

// Fire applies event to the attendee. On success it mutates the attendee's
// status and returns the notification template to dispatch afterwards (empty
// when the transition sends nothing) and true. When the current status is
// not in the event's source set, or the event is unknown, the attendee is
// left untouched and Fire reports false. Denied transitions are an expected
// outcome callers must check, not an error.
func (a *Attendee) Fire(event LifecycleEvent) (NotificationTemplate, bool) {
	tr, ok := transitions[event]
	if !ok {
		return "", false
	}
	for _, source := range tr.sources {
		if a.Status == source {
			a.Status = tr.target
			return tr.template, true
		}
	}
	return "", false
}

// CanFire reports whether event would succeed from the attendee's current
// status, without applying it.
func (a Attendee) CanFire(event LifecycleEvent) bool {
	tr, ok := transitions[event]
	if !ok {
		return false
	}
	for _, source := range tr.sources {
		if a.Status == source {
			return true
		}
	}
	return false
}
