package model

import "time"

// CreateCollegeRequest is the payload for onboarding a college.
type CreateCollegeRequest struct {
	ID           string  `json:"id" validate:"required,min=3,max=50"`
	Name         string  `json:"name" validate:"required,min=3,max=100"`
	Domain       *string `json:"domain,omitempty" validate:"omitempty,fqdn,max=100"`
	ContactEmail *string `json:"contact_email,omitempty" validate:"omitempty,email,max=100"`
}

// UpdateCollegeRequest changes the provided fields only.
type UpdateCollegeRequest struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,min=3,max=100"`
	Domain       *string `json:"domain,omitempty" validate:"omitempty,fqdn,max=100"`
	ContactEmail *string `json:"contact_email,omitempty" validate:"omitempty,email,max=100"`
}

// CreateStudentRequest is the payload for adding a student to a college.
// ID is optional; a UUID is generated when it is empty.
type CreateStudentRequest struct {
	ID         string  `json:"id,omitempty" validate:"omitempty,max=64"`
	Name       string  `json:"name" validate:"required,min=2,max=100"`
	Email      string  `json:"email" validate:"required,email,max=100"`
	RollNo     *string `json:"roll_no,omitempty" validate:"omitempty,min=1,max=50"`
	Department *string `json:"department,omitempty" validate:"omitempty,max=50"`
	BatchYear  *int    `json:"batch_year,omitempty" validate:"omitempty,gte=2000,lte=2100"`
}

// UpdateStudentRequest changes the provided fields only.
type UpdateStudentRequest struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Email      *string `json:"email,omitempty" validate:"omitempty,email,max=100"`
	RollNo     *string `json:"roll_no,omitempty" validate:"omitempty,min=1,max=50"`
	Department *string `json:"department,omitempty" validate:"omitempty,max=50"`
	BatchYear  *int    `json:"batch_year,omitempty" validate:"omitempty,gte=2000,lte=2100"`
}

// StudentFilter narrows ListStudents.
type StudentFilter struct {
	Query  string
	Limit  int
	Offset int
}

// CreateEventRequest is the payload for scheduling an event.
type CreateEventRequest struct {
	ID                   string     `json:"id,omitempty" validate:"omitempty,max=64"`
	Title                string     `json:"title" validate:"required,min=3,max=200"`
	Type                 EventType  `json:"type,omitempty" validate:"omitempty,oneof=workshop seminar conference hackathon webinar meetup other"`
	Description          *string    `json:"description,omitempty" validate:"omitempty,max=5000"`
	StartTime            time.Time  `json:"start_time" validate:"required"`
	EndTime              time.Time  `json:"end_time" validate:"required"`
	Venue                *string    `json:"venue,omitempty" validate:"omitempty,max=200"`
	Capacity             *int       `json:"capacity,omitempty" validate:"omitempty,gte=1,lte=100000"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
}

// UpdateEventRequest changes the provided fields only. Cancellation has its
// own operation.
type UpdateEventRequest struct {
	Title                *string    `json:"title,omitempty" validate:"omitempty,min=3,max=200"`
	Type                 *EventType `json:"type,omitempty" validate:"omitempty,oneof=workshop seminar conference hackathon webinar meetup other"`
	Description          *string    `json:"description,omitempty" validate:"omitempty,max=5000"`
	StartTime            *time.Time `json:"start_time,omitempty"`
	EndTime              *time.Time `json:"end_time,omitempty"`
	Venue                *string    `json:"venue,omitempty" validate:"omitempty,max=200"`
	Capacity             *int       `json:"capacity,omitempty" validate:"omitempty,gte=1,lte=100000"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
}

// EventFilter narrows ListEvents.
type EventFilter struct {
	Type   EventType
	Status EventStatus
	Limit  int
	Offset int
}

// RegisterRequest is the payload for registering a student for an event.
type RegisterRequest struct {
	EventID   string `json:"event_id" validate:"required,max=64"`
	StudentID string `json:"student_id" validate:"required,max=64"`
}

// MarkAttendanceRequest is the payload for recording a presence mark.
type MarkAttendanceRequest struct {
	EventID   string         `json:"event_id" validate:"required,max=64"`
	StudentID string         `json:"student_id" validate:"required,max=64"`
	Present   bool           `json:"present"`
	Method    *CheckInMethod `json:"method,omitempty" validate:"omitempty,oneof=qr_code manual nfc face_recognition email other"`
}

// SubmitFeedbackRequest is the payload for a first feedback submission.
type SubmitFeedbackRequest struct {
	EventID     string  `json:"event_id" validate:"required,max=64"`
	StudentID   string  `json:"student_id" validate:"required,max=64"`
	Rating      int     `json:"rating" validate:"gte=1,lte=5"`
	Comment     *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
	IsAnonymous bool    `json:"is_anonymous"`
}

// UpdateFeedbackRequest corrects an existing submission.
type UpdateFeedbackRequest struct {
	EventID   string  `json:"event_id" validate:"required,max=64"`
	StudentID string  `json:"student_id" validate:"required,max=64"`
	Rating    int     `json:"rating" validate:"gte=1,lte=5"`
	Comment   *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

// InteractionFilter selects ledger rows within a college. Empty fields match
// everything.
type InteractionFilter struct {
	EventID   string
	StudentID string
}

// PopularityFilter narrows EventPopularity.
type PopularityFilter struct {
	Type  EventType
	Limit int
}

// ParticipationFilter narrows StudentParticipation.
type ParticipationFilter struct {
	MinEvents int
	From      *time.Time
	To        *time.Time
	Limit     int
}
