// Package repository persists colleges, students, events and the interaction
// ledger. Every query is scoped by college id.
//
// Two backends implement Store: PostgresStore (pgx, no ORM) and MemoryStore
// (in-process copy-on-write snapshots). Both enforce the same uniqueness and
// referential rules and report violations with the sentinel errors in
// errors.go, so callers can switch backends without changing error handling.
package repository

import (
	"context"
	"errors"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/tenant"
)

// Store is the unit-of-work boundary.
type Store interface {
	// WithTx runs fn in a read-write transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn against a consistent read-only snapshot. Concurrent
	// commits are not visible inside fn and fn never blocks writers.
	View(ctx context.Context, fn func(r Reader) error) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	Close()
}

// Reader is the read side shared by snapshots and transactions.
// Get methods return ErrNotFound when the row does not exist in the college.
type Reader interface {
	GetCollege(ctx context.Context, id tenant.ID) (*model.College, error)
	ListColleges(ctx context.Context) ([]model.College, error)

	GetStudent(ctx context.Context, collegeID tenant.ID, id string) (*model.Student, error)
	// ListStudents orders by name then id.
	ListStudents(ctx context.Context, collegeID tenant.ID, f model.StudentFilter) ([]model.Student, error)
	CountStudents(ctx context.Context, collegeID tenant.ID) (int, error)

	GetEvent(ctx context.Context, collegeID tenant.ID, id string) (*model.Event, error)
	// ListEvents orders by start_time then id. An empty eventType matches all.
	ListEvents(ctx context.Context, collegeID tenant.ID, eventType model.EventType) ([]model.Event, error)
	CountEvents(ctx context.Context, collegeID tenant.ID) (int, error)

	GetRegistration(ctx context.Context, key model.InteractionKey) (*model.Registration, error)
	// ListRegistrations orders by registered_at then id.
	ListRegistrations(ctx context.Context, collegeID tenant.ID, f model.InteractionFilter) ([]model.Registration, error)
	CountRegistrations(ctx context.Context, collegeID tenant.ID, eventID string) (int, error)

	GetAttendance(ctx context.Context, key model.InteractionKey) (*model.Attendance, error)
	// ListAttendance orders by marked_at then id.
	ListAttendance(ctx context.Context, collegeID tenant.ID, f model.InteractionFilter) ([]model.Attendance, error)

	GetFeedback(ctx context.Context, key model.InteractionKey) (*model.Feedback, error)
	// ListFeedback orders by submitted_at then id.
	ListFeedback(ctx context.Context, collegeID tenant.ID, f model.InteractionFilter) ([]model.Feedback, error)

	// CountInteractions counts registration, attendance and feedback rows
	// matching f.
	CountInteractions(ctx context.Context, collegeID tenant.ID, f model.InteractionFilter) (int, error)
}

// Tx is a read-write transaction.
//
// Insert methods return ErrConflict on a uniqueness violation and ErrNotFound
// when a referenced college, event or student is missing. Update and Delete
// methods return ErrNotFound when the target row is missing; Delete returns
// ErrConflict while dependent rows exist.
type Tx interface {
	Reader

	// LockEvent reads an event and holds it exclusively until the
	// transaction ends, serialising capacity checks.
	LockEvent(ctx context.Context, collegeID tenant.ID, id string) (*model.Event, error)

	InsertCollege(ctx context.Context, c *model.College) error
	UpdateCollege(ctx context.Context, c *model.College) error
	DeleteCollege(ctx context.Context, id tenant.ID) error

	InsertStudent(ctx context.Context, s *model.Student) error
	UpdateStudent(ctx context.Context, s *model.Student) error
	DeleteStudent(ctx context.Context, collegeID tenant.ID, id string) error

	InsertEvent(ctx context.Context, e *model.Event) error
	UpdateEvent(ctx context.Context, e *model.Event) error
	DeleteEvent(ctx context.Context, collegeID tenant.ID, id string) error

	InsertRegistration(ctx context.Context, r *model.Registration) error

	// UpsertAttendance stores a mark unless a mark with a later marked_at
	// already exists for the same triple. It returns the row that is stored
	// after the call.
	UpsertAttendance(ctx context.Context, a *model.Attendance) (*model.Attendance, error)

	InsertFeedback(ctx context.Context, f *model.Feedback) error
	// UpdateFeedback replaces rating, comment and updated_at of the row
	// identified by f's triple.
	UpdateFeedback(ctx context.Context, f *model.Feedback) error

	// DeleteInteractions removes registration, attendance and feedback rows
	// matching f and returns how many were removed.
	DeleteInteractions(ctx context.Context, collegeID tenant.ID, f model.InteractionFilter) (int, error)
}

// IsDomainError reports whether err carries one of the sentinel errors, as
// opposed to an infrastructure failure.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrCapacityExceeded)
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
	_ Tx    = (*pgTx)(nil)
	_ Tx    = (*memTx)(nil)
)
