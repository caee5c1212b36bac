package model

import "time"

// DashboardStats is the tenant-wide summary shown on the admin dashboard.
type DashboardStats struct {
	TotalStudents  int     `json:"total_students"`
	TotalEvents    int     `json:"total_events"`
	AttendanceRate float64 `json:"attendance_rate"`
	UpcomingEvents int     `json:"upcoming_events"`
}

// EventPopularity is one row of the popularity ranking.
type EventPopularity struct {
	EventID         string      `json:"event_id"`
	Title           string      `json:"title"`
	Type            EventType   `json:"type"`
	Venue           *string     `json:"venue,omitempty"`
	StartTime       time.Time   `json:"start_time"`
	EndTime         time.Time   `json:"end_time"`
	Status          EventStatus `json:"status"`
	Registrations   int         `json:"registrations"`
	AttendanceCount int         `json:"attendance_count"`
}

// AttendanceSummary breaks down attendance for a single event.
// Present and Absent count registered students only; walk-ins are separate.
type AttendanceSummary struct {
	EventID           string      `json:"event_id"`
	Title             string      `json:"title"`
	Status            EventStatus `json:"status"`
	Registered        int         `json:"registered"`
	Present           int         `json:"present"`
	Absent            int         `json:"absent"`
	Unmarked          int         `json:"unmarked"`
	WalkIns           int         `json:"walk_ins"`
	AttendancePct     float64     `json:"attendance_pct"`
	Capacity          *int        `json:"capacity,omitempty"`
	RemainingCapacity *int        `json:"remaining_capacity,omitempty"`
}

// FeedbackSummary aggregates the ratings of one event.
type FeedbackSummary struct {
	EventID       string      `json:"event_id"`
	Title         string      `json:"title"`
	Responses     int         `json:"responses"`
	AverageRating float64     `json:"average_rating"`
	MinRating     int         `json:"min_rating"`
	MaxRating     int         `json:"max_rating"`
	Distribution  map[int]int `json:"distribution"`
}

// StudentParticipation ranks students by how many events they attended.
type StudentParticipation struct {
	StudentID        string   `json:"student_id"`
	Name             string   `json:"name"`
	Email            string   `json:"email"`
	RollNo           *string  `json:"roll_no,omitempty"`
	EventsRegistered int      `json:"events_registered"`
	EventsAttended   int      `json:"events_attended"`
	AttendanceRate   float64  `json:"attendance_rate"`
	AttendedEvents   []string `json:"attended_events"`
}

// RegistrationTrend is one calendar day of RegistrationTrends, keyed by the
// UTC date of the events' start_time.
type RegistrationTrend struct {
	Date           string `json:"date"`
	Events         int    `json:"events"`
	Registrations  int    `json:"registrations"`
	UniqueStudents int    `json:"unique_students"`
}
