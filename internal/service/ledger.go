package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/logging"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository"
	"github.com/Shivanand-hulikatti/campus-events/internal/tenant"
)

// InteractionLedger records registrations, attendance and feedback.
type InteractionLedger struct {
	store repository.Store
	opts  Options
}

// NewInteractionLedger constructs an InteractionLedger.
func NewInteractionLedger(store repository.Store, opts Options) *InteractionLedger {
	return &InteractionLedger{store: store, opts: opts.withDefaults()}
}

// Register signs a student up for an event.
//
// The whole check-then-insert runs in one transaction that first locks the
// event row. Concurrent registrations for the same event therefore queue on
// that lock and each one sees every registration committed before it, so at
// most capacity rows are ever stored and a repeated triple is rejected with
// ErrConflict instead of producing a second row.
func (l *InteractionLedger) Register(ctx context.Context, collegeID tenant.ID, req model.RegisterRequest) (reg *model.Registration, err error) {
	defer func(start time.Time) { observe(ctx, "register", start, err) }(time.Now())

	if err := validate(&req); err != nil {
		return nil, err
	}
	key := model.InteractionKey{CollegeID: collegeID, EventID: req.EventID, StudentID: req.StudentID}

	err = l.store.WithTx(ctx, func(tx repository.Tx) error {
		event, err := tx.LockEvent(ctx, collegeID, req.EventID)
		if err != nil {
			return err
		}
		if _, err := tx.GetStudent(ctx, collegeID, req.StudentID); err != nil {
			return err
		}

		now := l.opts.clock()
		if event.IsCancelled {
			return fmt.Errorf("%w: event is cancelled", repository.ErrConflict)
		}
		if event.RegistrationDeadline != nil && now.After(*event.RegistrationDeadline) {
			return fmt.Errorf("%w: registration closed at %s", repository.ErrConflict,
				event.RegistrationDeadline.Format(time.RFC3339))
		}

		_, err = tx.GetRegistration(ctx, key)
		switch {
		case err == nil:
			return fmt.Errorf("%w: student already registered for this event", repository.ErrConflict)
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		count, err := tx.CountRegistrations(ctx, collegeID, req.EventID)
		if err != nil {
			return err
		}
		if event.IsFull(count) {
			return fmt.Errorf("%w: %d of %d seats taken", repository.ErrCapacityExceeded, count, *event.Capacity)
		}

		reg = &model.Registration{
			ID:           newID(),
			CollegeID:    collegeID,
			EventID:      req.EventID,
			StudentID:    req.StudentID,
			RegisteredAt: now,
		}
		return tx.InsertRegistration(ctx, reg)
	})
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info().
		Str("event_id", reg.EventID).
		Str("student_id", reg.StudentID).
		Msg("registration recorded")
	return reg, nil
}

// ListRegistrations returns the registrations of one event.
func (l *InteractionLedger) ListRegistrations(ctx context.Context, collegeID tenant.ID, eventID string) (regs []model.Registration, err error) {
	err = l.store.View(ctx, func(r repository.Reader) error {
		if _, err := r.GetEvent(ctx, collegeID, eventID); err != nil {
			return err
		}
		regs, err = r.ListRegistrations(ctx, collegeID, model.InteractionFilter{EventID: eventID})
		return err
	})
	return regs, err
}

// StudentRegistrations returns the registrations of one student.
func (l *InteractionLedger) StudentRegistrations(ctx context.Context, collegeID tenant.ID, studentID string) (regs []model.Registration, err error) {
	err = l.store.View(ctx, func(r repository.Reader) error {
		if _, err := r.GetStudent(ctx, collegeID, studentID); err != nil {
			return err
		}
		regs, err = r.ListRegistrations(ctx, collegeID, model.InteractionFilter{StudentID: studentID})
		return err
	})
	return regs, err
}

// MarkAttendance records a presence mark. Registration is not required.
// Marking opens CheckInLead before start_time and stays open after the event
// ends so late corrections are possible; cancelled events reject marks.
// One mark is kept per student and event: a later marked_at replaces an
// earlier one and the stored mark is returned.
func (l *InteractionLedger) MarkAttendance(ctx context.Context, collegeID tenant.ID, req model.MarkAttendanceRequest) (a *model.Attendance, err error) {
	defer func(start time.Time) { observe(ctx, "mark_attendance", start, err) }(time.Now())

	if err := validate(&req); err != nil {
		return nil, err
	}

	err = l.store.WithTx(ctx, func(tx repository.Tx) error {
		event, err := tx.GetEvent(ctx, collegeID, req.EventID)
		if err != nil {
			return err
		}
		if _, err := tx.GetStudent(ctx, collegeID, req.StudentID); err != nil {
			return err
		}

		now := l.opts.clock()
		switch ResolveStatus(event, now.Add(l.opts.CheckInLead)) {
		case model.StatusCancelled:
			return fmt.Errorf("%w: event is cancelled", repository.ErrConflict)
		case model.StatusUpcoming:
			return fmt.Errorf("%w: check-in opens at %s", repository.ErrConflict,
				event.StartTime.Add(-l.opts.CheckInLead).Format(time.RFC3339))
		}

		a, err = tx.UpsertAttendance(ctx, &model.Attendance{
			ID:        newID(),
			CollegeID: collegeID,
			EventID:   req.EventID,
			StudentID: req.StudentID,
			Present:   req.Present,
			Method:    req.Method,
			MarkedAt:  now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAttendance returns the attendance marks of one event.
func (l *InteractionLedger) ListAttendance(ctx context.Context, collegeID tenant.ID, eventID string) (marks []model.Attendance, err error) {
	err = l.store.View(ctx, func(r repository.Reader) error {
		if _, err := r.GetEvent(ctx, collegeID, eventID); err != nil {
			return err
		}
		marks, err = r.ListAttendance(ctx, collegeID, model.InteractionFilter{EventID: eventID})
		return err
	})
	return marks, err
}

// SubmitFeedback records a student's first rating of an event. A second
// submission fails with ErrConflict; UpdateFeedback is the correction path.
func (l *InteractionLedger) SubmitFeedback(ctx context.Context, collegeID tenant.ID, req model.SubmitFeedbackRequest) (fb *model.Feedback, err error) {
	defer func(start time.Time) { observe(ctx, "submit_feedback", start, err) }(time.Now())

	if err := validate(&req); err != nil {
		return nil, err
	}
	key := model.InteractionKey{CollegeID: collegeID, EventID: req.EventID, StudentID: req.StudentID}

	err = l.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetEvent(ctx, collegeID, req.EventID); err != nil {
			return err
		}
		if _, err := tx.GetStudent(ctx, collegeID, req.StudentID); err != nil {
			return err
		}
		_, err := tx.GetFeedback(ctx, key)
		switch {
		case err == nil:
			return fmt.Errorf("%w: feedback already submitted", repository.ErrConflict)
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		fb = &model.Feedback{
			ID:          newID(),
			CollegeID:   collegeID,
			EventID:     req.EventID,
			StudentID:   req.StudentID,
			Rating:      req.Rating,
			Comment:     trimOptional(req.Comment),
			IsAnonymous: req.IsAnonymous,
			SubmittedAt: l.opts.clock(),
		}
		return tx.InsertFeedback(ctx, fb)
	})
	if err != nil {
		return nil, err
	}
	return fb, nil
}

// UpdateFeedback corrects an existing submission.
func (l *InteractionLedger) UpdateFeedback(ctx context.Context, collegeID tenant.ID, req model.UpdateFeedbackRequest) (fb *model.Feedback, err error) {
	defer func(start time.Time) { observe(ctx, "update_feedback", start, err) }(time.Now())

	if err := validate(&req); err != nil {
		return nil, err
	}
	key := model.InteractionKey{CollegeID: collegeID, EventID: req.EventID, StudentID: req.StudentID}

	err = l.store.WithTx(ctx, func(tx repository.Tx) error {
		fb, err = tx.GetFeedback(ctx, key)
		if err != nil {
			return err
		}
		now := l.opts.clock()
		fb.Rating = req.Rating
		fb.Comment = trimOptional(req.Comment)
		fb.UpdatedAt = &now
		return tx.UpdateFeedback(ctx, fb)
	})
	if err != nil {
		return nil, err
	}
	return fb, nil
}

// ListFeedback returns the feedback of one event. Anonymous submissions have
// their student id removed.
func (l *InteractionLedger) ListFeedback(ctx context.Context, collegeID tenant.ID, eventID string) (out []model.Feedback, err error) {
	err = l.store.View(ctx, func(r repository.Reader) error {
		if _, err := r.GetEvent(ctx, collegeID, eventID); err != nil {
			return err
		}
		out, err = r.ListFeedback(ctx, collegeID, model.InteractionFilter{EventID: eventID})
		return err
	})
	if err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].IsAnonymous {
			out[i].StudentID = ""
		}
	}
	return out, nil
}
