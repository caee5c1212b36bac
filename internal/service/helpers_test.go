package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository"
	"github.com/Shivanand-hulikatti/campus-events/internal/tenant"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

// fixture wires the three services to one memory store and a settable clock.
type fixture struct {
	ctx      context.Context
	mu       sync.Mutex
	now      time.Time
	store    repository.Store
	entities *EntityStore
	ledger   *InteractionLedger
	reports  *ReportingEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{ctx: context.Background(), now: t0}
	store := repository.NewMemoryStore()
	f.store = store
	opts := Options{Now: f.clock, CheckInLead: 30 * time.Minute}
	f.entities = NewEntityStore(store, opts)
	f.ledger = NewInteractionLedger(store, opts)
	f.reports = NewReportingEngine(store, opts)
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) setNow(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

func (f *fixture) college(t *testing.T, id string) tenant.ID {
	t.Helper()
	c, err := f.entities.CreateCollege(f.ctx, model.CreateCollegeRequest{ID: id, Name: "College " + id})
	if err != nil {
		t.Fatalf("CreateCollege(%q): %v", id, err)
	}
	return c.ID
}

func (f *fixture) student(t *testing.T, cid tenant.ID, id, name string) *model.Student {
	t.Helper()
	st, err := f.entities.CreateStudent(f.ctx, cid, model.CreateStudentRequest{
		ID: id, Name: name, Email: id + "@example.edu",
	})
	if err != nil {
		t.Fatalf("CreateStudent(%q): %v", id, err)
	}
	return st
}

// event schedules a two hour event starting at start.
func (f *fixture) event(t *testing.T, cid tenant.ID, id string, start time.Time, capacity *int) *model.Event {
	t.Helper()
	e, err := f.entities.CreateEvent(f.ctx, cid, model.CreateEventRequest{
		ID: id, Title: "Event " + id, Type: model.EventTypeWorkshop,
		StartTime: start, EndTime: start.Add(2 * time.Hour), Capacity: capacity,
	})
	if err != nil {
		t.Fatalf("CreateEvent(%q): %v", id, err)
	}
	return e
}

func (f *fixture) register(t *testing.T, cid tenant.ID, eventID, studentID string) {
	t.Helper()
	if _, err := f.ledger.Register(f.ctx, cid, model.RegisterRequest{EventID: eventID, StudentID: studentID}); err != nil {
		t.Fatalf("Register(%s, %s): %v", eventID, studentID, err)
	}
}

func (f *fixture) mark(t *testing.T, cid tenant.ID, eventID, studentID string, present bool) {
	t.Helper()
	req := model.MarkAttendanceRequest{EventID: eventID, StudentID: studentID, Present: present}
	if _, err := f.ledger.MarkAttendance(f.ctx, cid, req); err != nil {
		t.Fatalf("MarkAttendance(%s, %s): %v", eventID, studentID, err)
	}
}

func wantErr(t *testing.T, name string, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("%s: error = %v, want %v", name, err, target)
	}
}
