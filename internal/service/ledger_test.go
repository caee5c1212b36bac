package service

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository"
)

func TestInteractionLedger_RegisterCapacity(t *testing.T) {
	f := newFixture(t)
	cid := f.college(t, "alpha")
	for _, id := range []string{"s1", "s2", "s3"} {
		f.student(t, cid, id, "Student "+id)
	}
	f.event(t, cid, "e1", t0.Add(time.Hour), ptr(2))

	f.register(t, cid, "e1", "s1")
	f.register(t, cid, "e1", "s2")
	_, err := f.ledger.Register(f.ctx, cid, model.RegisterRequest{EventID: "e1", StudentID: "s3"})
	wantErr(t, "third registration", err, repository.ErrCapacityExceeded)

	regs, err := f.ledger.ListRegistrations(f.ctx, cid, "e1")
	if err != nil {
		t.Fatalf("ListRegistrations: %v", err)
	}
	if len(regs) != 2 {
		t.Errorf("registrations = %d, want 2", len(regs))
	}
}

func TestInteractionLedger_RegisterDuplicate(t *testing.T) {
	f := newFixture(t)
	cid := f.college(t, "alpha")
	f.student(t, cid, "s1", "Asha")
	f.event(t, cid, "e1", t0.Add(time.Hour), nil)

	f.register(t, cid, "e1", "s1")
	_, err := f.ledger.Register(f.ctx, cid, model.RegisterRequest{EventID: "e1", StudentID: "s1"})
	wantErr(t, "second registration", err, repository.ErrConflict)

	regs, err := f.ledger.StudentRegistrations(f.ctx, cid, "s1")
	if err != nil {
		t.Fatalf("StudentRegistrations: %v", err)
	}
	if len(regs) != 1 {
		t.Errorf("registrations = %d, want 1", len(regs))
	}
}

func TestInteractionLedger_RegisterConcurrent(t *testing.T) {
	const n = 10

	t.Run("capacity", func(t *testing.T) {
		f := newFixture(t)
		cid := f.college(t, "alpha")
		for i := range n {
			f.student(t, cid, fmt.Sprintf("s%02d", i), fmt.Sprintf("Student %d", i))
		}
		f.event(t, cid, "e1", t0.Add(time.Hour), ptr(2))

		ok, full := runConcurrent(n, func(i int) error {
			_, err := f.ledger.Register(f.ctx, cid, model.RegisterRequest{EventID: "e1", StudentID: fmt.Sprintf("s%02d", i)})
			return err
		}, repository.ErrCapacityExceeded)
		if ok != 2 || full != n-2 {
			t.Errorf("ok = %d, full = %d; want 2 and %d", ok, full, n-2)
		}
	})

	t.Run("same student", func(t *testing.T) {
		f := newFixture(t)
		cid := f.college(t, "alpha")
		f.student(t, cid, "s1", "Asha")
		f.event(t, cid, "e1", t0.Add(time.Hour), ptr(2))

		ok, dup := runConcurrent(n, func(int) error {
			_, err := f.ledger.Register(f.ctx, cid, model.RegisterRequest{EventID: "e1", StudentID: "s1"})
			return err
		}, repository.ErrConflict)
		if ok != 1 || dup != n-1 {
			t.Errorf("ok = %d, conflicts = %d; want 1 and %d", ok, dup, n-1)
		}
	})
}

// runConcurrent starts n calls of fn at once and counts successes and
// failures matching target. Any other error counts as neither.
func runConcurrent(n int, fn func(i int) error, target error) (ok, matched int) {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := fn(i)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, target):
				matched++
			}
		}()
	}
	close(start)
	wg.Wait()
	return ok, matched
}

func TestInteractionLedger_RegisterDeadline(t *testing.T) {
	f := newFixture(t)
	cid := f.college(t, "alpha")
	f.student(t, cid, "s1", "Asha")
	start := t0.Add(24 * time.Hour)
	_, err := f.entities.CreateEvent(f.ctx, cid, model.CreateEventRequest{
		ID: "e1", Title: "Deadline Talk", StartTime: start, EndTime: start.Add(time.Hour),
		RegistrationDeadline: ptr(t0.Add(time.Hour)),
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	f.setNow(t0.Add(2 * time.Hour))
	_, err = f.ledger.Register(f.ctx, cid, model.RegisterRequest{EventID: "e1", StudentID: "s1"})
	wantErr(t, "register after deadline", err, repository.ErrConflict)

	f.setNow(t0.Add(time.Hour))
	if _, err := f.ledger.Register(f.ctx, cid, model.RegisterRequest{EventID: "e1", StudentID: "s1"}); err != nil {
		t.Errorf("register at deadline: %v", err)
	}
}

func TestInteractionLedger_RegisterUnknown(t *testing.T) {
	f := newFixture(t)
	cid := f.college(t, "alpha")
	f.student(t, cid, "s1", "Asha")
	f.event(t, cid, "e1", t0.Add(time.Hour), nil)

	tests := []struct {
		name string
		req  model.RegisterRequest
		want error
	}{
		{"missing event id", model.RegisterRequest{StudentID: "s1"}, repository.ErrValidation},
		{"unknown event", model.RegisterRequest{EventID: "nope", StudentID: "s1"}, repository.ErrNotFound},
		{"unknown student", model.RegisterRequest{EventID: "e1", StudentID: "nope"}, repository.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Register(f.ctx, cid, tt.req)
			wantErr(t, "Register", err, tt.want)
		})
	}
}

func TestInteractionLedger_MarkAttendanceWindow(t *testing.T) {
	f := newFixture(t)
	cid := f.college(t, "alpha")
	f.student(t, cid, "s1", "Asha")
	f.event(t, cid, "e1", t0.Add(time.Hour), nil)
	f.event(t, cid, "e2", t0.Add(time.Hour), nil)
	if _, err := f.entities.CancelEvent(f.ctx, cid, "e2"); err != nil {
		t.Fatalf("CancelEvent: %v", err)
	}

	tests := []struct {
		name    string
		now     time.Time
		eventID string
		want    error
	}{
		{"before check-in opens", t0.Add(29 * time.Minute), "e1", repository.ErrConflict},
		{"check-in open", t0.Add(30 * time.Minute), "e1", nil},
		{"during event", t0.Add(2 * time.Hour), "e1", nil},
		{"after event", t0.Add(10 * time.Hour), "e1", nil},
		{"cancelled", t0.Add(2 * time.Hour), "e2", repository.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.setNow(tt.now)
			_, err := f.ledger.MarkAttendance(f.ctx, cid, model.MarkAttendanceRequest{EventID: tt.eventID, StudentID: "s1", Present: true})
			if tt.want == nil {
				if err != nil {
					t.Fatalf("MarkAttendance: %v", err)
				}
				return
			}
			wantErr(t, "MarkAttendance", err, tt.want)
		})
	}
}

func TestInteractionLedger_MarkAttendanceLatestWins(t *testing.T) {
	f := newFixture(t)
	cid := f.college(t, "alpha")
	f.student(t, cid, "s1", "Asha")
	f.event(t, cid, "e1", t0.Add(time.Hour), nil)

	f.setNow(t0.Add(time.Hour))
	first, err := f.ledger.MarkAttendance(f.ctx, cid, model.MarkAttendanceRequest{
		EventID: "e1", StudentID: "s1", Present: false, Method: ptr(model.MethodManual),
	})
	if err != nil {
		t.Fatalf("first mark: %v", err)
	}

	f.setNow(t0.Add(90 * time.Minute))
	second, err := f.ledger.MarkAttendance(f.ctx, cid, model.MarkAttendanceRequest{
		EventID: "e1", StudentID: "s1", Present: true, Method: ptr(model.MethodQRCode),
	})
	if err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("mark id changed from %s to %s", first.ID, second.ID)
	}
	if !second.Present || *second.Method != model.MethodQRCode || !second.MarkedAt.Equal(t0.Add(90*time.Minute)) {
		t.Errorf("stored mark = %+v, want the later one", second)
	}

	marks, err := f.ledger.ListAttendance(f.ctx, cid, "e1")
	if err != nil {
		t.Fatalf("ListAttendance: %v", err)
	}
	if len(marks) != 1 || !marks[0].Present {
		t.Errorf("marks = %+v, want a single present mark", marks)
	}

	_, err = f.ledger.MarkAttendance(f.ctx, cid, model.MarkAttendanceRequest{
		EventID: "e1", StudentID: "s1", Method: ptr(model.CheckInMethod("telepathy")),
	})
	wantErr(t, "unknown method", err, repository.ErrValidation)
}

func TestInteractionLedger_Feedback(t *testing.T) {
	f := newFixture(t)
	cid := f.college(t, "alpha")
	f.student(t, cid, "s1", "Asha")
	f.student(t, cid, "s2", "Ravi")
	f.event(t, cid, "e1", t0.Add(time.Hour), nil)

	_, err := f.ledger.SubmitFeedback(f.ctx, cid, model.SubmitFeedbackRequest{EventID: "e1", StudentID: "s1", Rating: 6})
	wantErr(t, "rating out of range", err, repository.ErrValidation)

	fb, err := f.ledger.SubmitFeedback(f.ctx, cid, model.SubmitFeedbackRequest{
		EventID: "e1", StudentID: "s1", Rating: 3, Comment: ptr("  decent  "),
	})
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if fb.Comment == nil || *fb.Comment != "decent" || fb.UpdatedAt != nil {
		t.Errorf("feedback = %+v, want trimmed comment and no update time", fb)
	}

	_, err = f.ledger.SubmitFeedback(f.ctx, cid, model.SubmitFeedbackRequest{EventID: "e1", StudentID: "s1", Rating: 4})
	wantErr(t, "second submission", err, repository.ErrConflict)

	f.setNow(t0.Add(time.Hour))
	updated, err := f.ledger.UpdateFeedback(f.ctx, cid, model.UpdateFeedbackRequest{EventID: "e1", StudentID: "s1", Rating: 5})
	if err != nil {
		t.Fatalf("UpdateFeedback: %v", err)
	}
	if updated.Rating != 5 || updated.ID != fb.ID || updated.UpdatedAt == nil || !updated.UpdatedAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("updated = %+v, want rating 5 on the same row", updated)
	}

	_, err = f.ledger.UpdateFeedback(f.ctx, cid, model.UpdateFeedbackRequest{EventID: "e1", StudentID: "s2", Rating: 2})
	wantErr(t, "update without submission", err, repository.ErrNotFound)

	if _, err := f.ledger.SubmitFeedback(f.ctx, cid, model.SubmitFeedbackRequest{EventID: "e1", StudentID: "s2", Rating: 4, IsAnonymous: true}); err != nil {
		t.Fatalf("anonymous SubmitFeedback: %v", err)
	}
	rows, err := f.ledger.ListFeedback(f.ctx, cid, "e1")
	if err != nil {
		t.Fatalf("ListFeedback: %v", err)
	}
	for _, row := range rows {
		if row.IsAnonymous && row.StudentID != "" {
			t.Errorf("anonymous row exposes student %q", row.StudentID)
		}
		if !row.IsAnonymous && row.StudentID != "s1" {
			t.Errorf("named row student = %q, want s1", row.StudentID)
		}
	}
}
