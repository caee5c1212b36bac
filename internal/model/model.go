// Package model defines the core domain types for the campus events ledger.
package model

import (
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/tenant"
)

// EventType categorises an event.
type EventType string

const (
	EventTypeWorkshop   EventType = "workshop"
	EventTypeSeminar    EventType = "seminar"
	EventTypeConference EventType = "conference"
	EventTypeHackathon  EventType = "hackathon"
	EventTypeWebinar    EventType = "webinar"
	EventTypeMeetup     EventType = "meetup"
	EventTypeOther      EventType = "other"
)

// EventStatus is the temporal state of an event derived from its time window.
type EventStatus string

const (
	StatusUpcoming  EventStatus = "upcoming"
	StatusOngoing   EventStatus = "ongoing"
	StatusCompleted EventStatus = "completed"
	StatusCancelled EventStatus = "cancelled"
)

// CheckInMethod records how an attendance mark was taken.
type CheckInMethod string

const (
	MethodQRCode          CheckInMethod = "qr_code"
	MethodManual          CheckInMethod = "manual"
	MethodNFC             CheckInMethod = "nfc"
	MethodFaceRecognition CheckInMethod = "face_recognition"
	MethodEmail           CheckInMethod = "email"
	MethodOther           CheckInMethod = "other"
)

// College is the tenant root.
type College struct {
	ID           tenant.ID `json:"id"`
	Name         string    `json:"name"`
	Domain       *string   `json:"domain,omitempty"`
	ContactEmail *string   `json:"contact_email,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Student belongs to exactly one college. Email is unique within it.
type Student struct {
	ID         string    `json:"id"`
	CollegeID  tenant.ID `json:"college_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	RollNo     *string   `json:"roll_no,omitempty"`
	Department *string   `json:"department,omitempty"`
	BatchYear  *int      `json:"batch_year,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Event is organised by one college. Status is derived on read and never stored.
type Event struct {
	ID                   string      `json:"id"`
	CollegeID            tenant.ID   `json:"college_id"`
	Title                string      `json:"title"`
	Type                 EventType   `json:"type"`
	Description          *string     `json:"description,omitempty"`
	StartTime            time.Time   `json:"start_time"`
	EndTime              time.Time   `json:"end_time"`
	Venue                *string     `json:"venue,omitempty"`
	Capacity             *int        `json:"capacity,omitempty"`
	RegistrationDeadline *time.Time  `json:"registration_deadline,omitempty"`
	IsCancelled          bool        `json:"is_cancelled"`
	Status               EventStatus `json:"status,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// Remaining returns the number of open seats for the given registration
// count, or nil when the event has no capacity limit.
func (e *Event) Remaining(registered int) *int {
	if e.Capacity == nil {
		return nil
	}
	left := *e.Capacity - registered
	if left < 0 {
		left = 0
	}
	return &left
}

// IsFull reports whether registered has reached the capacity limit.
func (e *Event) IsFull(registered int) bool {
	return e.Capacity != nil && registered >= *e.Capacity
}

// InteractionKey identifies a (college, event, student) triple.
type InteractionKey struct {
	CollegeID tenant.ID
	EventID   string
	StudentID string
}

// Registration records a student's sign-up for an event.
type Registration struct {
	ID           string    `json:"id"`
	CollegeID    tenant.ID `json:"college_id"`
	EventID      string    `json:"event_id"`
	StudentID    string    `json:"student_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Key returns the uniqueness key of the registration.
func (r Registration) Key() InteractionKey {
	return InteractionKey{CollegeID: r.CollegeID, EventID: r.EventID, StudentID: r.StudentID}
}

// Attendance is the authoritative presence mark for a student at an event.
// A later mark replaces an earlier one.
type Attendance struct {
	ID        string         `json:"id"`
	CollegeID tenant.ID      `json:"college_id"`
	EventID   string         `json:"event_id"`
	StudentID string         `json:"student_id"`
	Present   bool           `json:"present"`
	Method    *CheckInMethod `json:"method,omitempty"`
	MarkedAt  time.Time      `json:"marked_at"`
}

// Key returns the uniqueness key of the attendance mark.
func (a Attendance) Key() InteractionKey {
	return InteractionKey{CollegeID: a.CollegeID, EventID: a.EventID, StudentID: a.StudentID}
}

// Feedback is a student's rating of an event; one per student per event.
type Feedback struct {
	ID          string     `json:"id"`
	CollegeID   tenant.ID  `json:"college_id"`
	EventID     string     `json:"event_id"`
	StudentID   string     `json:"student_id"`
	Rating      int        `json:"rating"`
	Comment     *string    `json:"comment,omitempty"`
	IsAnonymous bool       `json:"is_anonymous"`
	SubmittedAt time.Time  `json:"submitted_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Key returns the uniqueness key of the feedback.
func (f Feedback) Key() InteractionKey {
	return InteractionKey{CollegeID: f.CollegeID, EventID: f.EventID, StudentID: f.StudentID}
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
