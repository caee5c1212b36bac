package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/logging"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository"
	"github.com/Shivanand-hulikatti/campus-events/internal/tenant"
)

// EntityStore manages colleges, students and events.
type EntityStore struct {
	store repository.Store
	opts  Options
}

// NewEntityStore constructs an EntityStore.
func NewEntityStore(store repository.Store, opts Options) *EntityStore {
	return &EntityStore{store: store, opts: opts.withDefaults()}
}

// ─── Colleges ────────────────────────────────────────────────────────────────

// CreateCollege onboards a new tenant.
func (s *EntityStore) CreateCollege(ctx context.Context, req model.CreateCollegeRequest) (c *model.College, err error) {
	defer func(start time.Time) { observe(ctx, "create_college", start, err) }(time.Now())

	if err := validate(&req); err != nil {
		return nil, err
	}
	id, err := tenant.Parse(req.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrValidation, err)
	}

	now := s.opts.clock()
	college := &model.College{
		ID:           id,
		Name:         strings.TrimSpace(req.Name),
		Domain:       lowerOptional(req.Domain),
		ContactEmail: lowerOptional(req.ContactEmail),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		return tx.InsertCollege(ctx, college)
	})
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info().Str("college_id", id.String()).Msg("college created")
	return college, nil
}

// GetCollege returns one college.
func (s *EntityStore) GetCollege(ctx context.Context, id tenant.ID) (c *model.College, err error) {
	err = s.store.View(ctx, func(r repository.Reader) error {
		c, err = r.GetCollege(ctx, id)
		return err
	})
	return c, err
}

// ListColleges returns every college ordered by id.
func (s *EntityStore) ListColleges(ctx context.Context) (colleges []model.College, err error) {
	err = s.store.View(ctx, func(r repository.Reader) error {
		colleges, err = r.ListColleges(ctx)
		return err
	})
	return colleges, err
}

// UpdateCollege applies the provided fields.
func (s *EntityStore) UpdateCollege(ctx context.Context, id tenant.ID, req model.UpdateCollegeRequest) (c *model.College, err error) {
	defer func(start time.Time) { observe(ctx, "update_college", start, err) }(time.Now())

	if err := validate(&req); err != nil {
		return nil, err
	}
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		c, err = tx.GetCollege(ctx, id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			c.Name = strings.TrimSpace(*req.Name)
		}
		if req.Domain != nil {
			c.Domain = lowerOptional(req.Domain)
		}
		if req.ContactEmail != nil {
			c.ContactEmail = lowerOptional(req.ContactEmail)
		}
		c.UpdatedAt = s.opts.clock()
		return tx.UpdateCollege(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCollege removes a college. Without cascade it fails with ErrConflict
// while the college still has students or events; with cascade every row
// owned by the college is removed in the same transaction.
func (s *EntityStore) DeleteCollege(ctx context.Context, id tenant.ID, cascade bool) (err error) {
	defer func(start time.Time) { observe(ctx, "delete_college", start, err) }(time.Now())

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetCollege(ctx, id); err != nil {
			return err
		}
		if !cascade {
			students, err := tx.CountStudents(ctx, id)
			if err != nil {
				return err
			}
			events, err := tx.CountEvents(ctx, id)
			if err != nil {
				return err
			}
			if students+events > 0 {
				return fmt.Errorf("%w: college has %d students and %d events", repository.ErrConflict, students, events)
			}
			return tx.DeleteCollege(ctx, id)
		}

		if _, err := tx.DeleteInteractions(ctx, id, model.InteractionFilter{}); err != nil {
			return err
		}
		events, err := tx.ListEvents(ctx, id, "")
		if err != nil {
			return err
		}
		for _, e := range events {
			if err := tx.DeleteEvent(ctx, id, e.ID); err != nil {
				return err
			}
		}
		students, err := tx.ListStudents(ctx, id, model.StudentFilter{})
		if err != nil {
			return err
		}
		for _, st := range students {
			if err := tx.DeleteStudent(ctx, id, st.ID); err != nil {
				return err
			}
		}
		return tx.DeleteCollege(ctx, id)
	})
	if err == nil {
		logging.Ctx(ctx).Info().Str("college_id", id.String()).Bool("cascade", cascade).Msg("college deleted")
	}
	return err
}

// ─── Students ────────────────────────────────────────────────────────────────

// CreateStudent adds a student to a college. Email is stored trimmed and
// lowercased and must be unique within the college.
func (s *EntityStore) CreateStudent(ctx context.Context, collegeID tenant.ID, req model.CreateStudentRequest) (st *model.Student, err error) {
	defer func(start time.Time) { observe(ctx, "create_student", start, err) }(time.Now())

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := validate(&req); err != nil {
		return nil, err
	}

	now := s.opts.clock()
	st = &model.Student{
		ID:         strings.TrimSpace(req.ID),
		CollegeID:  collegeID,
		Name:       req.Name,
		Email:      req.Email,
		RollNo:     trimOptional(req.RollNo),
		Department: trimOptional(req.Department),
		BatchYear:  req.BatchYear,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if st.ID == "" {
		st.ID = newID()
	}

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetCollege(ctx, collegeID); err != nil {
			return err
		}
		return tx.InsertStudent(ctx, st)
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// GetStudent returns one student of the college.
func (s *EntityStore) GetStudent(ctx context.Context, collegeID tenant.ID, id string) (st *model.Student, err error) {
	err = s.store.View(ctx, func(r repository.Reader) error {
		st, err = r.GetStudent(ctx, collegeID, id)
		return err
	})
	return st, err
}

// ListStudents returns a page of the college's students ordered by name.
func (s *EntityStore) ListStudents(ctx context.Context, collegeID tenant.ID, f model.StudentFilter) (students []model.Student, err error) {
	f.Limit = s.opts.pageSize(f.Limit)
	if f.Offset < 0 {
		f.Offset = 0
	}
	err = s.store.View(ctx, func(r repository.Reader) error {
		students, err = r.ListStudents(ctx, collegeID, f)
		return err
	})
	return students, err
}

// UpdateStudent applies the provided fields.
func (s *EntityStore) UpdateStudent(ctx context.Context, collegeID tenant.ID, id string, req model.UpdateStudentRequest) (st *model.Student, err error) {
	defer func(start time.Time) { observe(ctx, "update_student", start, err) }(time.Now())

	if req.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &e
	}
	if err := validate(&req); err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		st, err = tx.GetStudent(ctx, collegeID, id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			st.Name = strings.TrimSpace(*req.Name)
		}
		if req.Email != nil {
			st.Email = *req.Email
		}
		if req.RollNo != nil {
			st.RollNo = trimOptional(req.RollNo)
		}
		if req.Department != nil {
			st.Department = trimOptional(req.Department)
		}
		if req.BatchYear != nil {
			st.BatchYear = req.BatchYear
		}
		st.UpdatedAt = s.opts.clock()
		return tx.UpdateStudent(ctx, st)
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// DeleteStudent removes a student. Without cascade it fails with ErrConflict
// while registrations, attendance or feedback reference the student.
func (s *EntityStore) DeleteStudent(ctx context.Context, collegeID tenant.ID, id string, cascade bool) (err error) {
	defer func(start time.Time) { observe(ctx, "delete_student", start, err) }(time.Now())

	return s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetStudent(ctx, collegeID, id); err != nil {
			return err
		}
		return deleteWithDependents(ctx, tx, collegeID, model.InteractionFilter{StudentID: id}, cascade,
			func() error { return tx.DeleteStudent(ctx, collegeID, id) })
	})
}

// deleteWithDependents runs del after removing (cascade) or refusing on
// (no cascade) the ledger rows matching f.
func deleteWithDependents(ctx context.Context, tx repository.Tx, collegeID tenant.ID,
	f model.InteractionFilter, cascade bool, del func() error) error {
	if cascade {
		removed, err := tx.DeleteInteractions(ctx, collegeID, f)
		if err != nil {
			return err
		}
		logging.Ctx(ctx).Debug().Int("removed", removed).Msg("cascaded dependent records")
		return del()
	}
	n, err := tx.CountInteractions(ctx, collegeID, f)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: has %d dependent records", repository.ErrConflict, n)
	}
	return del()
}

// ─── Events ──────────────────────────────────────────────────────────────────

func checkEventWindow(start, end time.Time, deadline *time.Time) error {
	if !end.After(start) {
		return fmt.Errorf("%w: end_time must be after start_time", repository.ErrValidation)
	}
	if deadline != nil && deadline.After(start) {
		return fmt.Errorf("%w: registration_deadline must not be after start_time", repository.ErrValidation)
	}
	return nil
}

// CreateEvent schedules an event for a college.
func (s *EntityStore) CreateEvent(ctx context.Context, collegeID tenant.ID, req model.CreateEventRequest) (e *model.Event, err error) {
	defer func(start time.Time) { observe(ctx, "create_event", start, err) }(time.Now())

	req.Title = strings.TrimSpace(req.Title)
	if err := validate(&req); err != nil {
		return nil, err
	}
	startTime, endTime := normalizeTime(req.StartTime), normalizeTime(req.EndTime)
	deadline := normalizeOptionalTime(req.RegistrationDeadline)
	if err := checkEventWindow(startTime, endTime, deadline); err != nil {
		return nil, err
	}
	eventType := req.Type
	if eventType == "" {
		eventType = model.EventTypeOther
	}

	now := s.opts.clock()
	event := &model.Event{
		ID:                   strings.TrimSpace(req.ID),
		CollegeID:            collegeID,
		Title:                req.Title,
		Type:                 eventType,
		Description:          trimOptional(req.Description),
		StartTime:            startTime,
		EndTime:              endTime,
		Venue:                trimOptional(req.Venue),
		Capacity:             req.Capacity,
		RegistrationDeadline: deadline,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if event.ID == "" {
		event.ID = newID()
	}

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetCollege(ctx, collegeID); err != nil {
			return err
		}
		return tx.InsertEvent(ctx, event)
	})
	if err != nil {
		return nil, err
	}
	out := withStatus(*event, s.opts.clock())
	return &out, nil
}

// GetEvent returns one event with its derived status.
func (s *EntityStore) GetEvent(ctx context.Context, collegeID tenant.ID, id string) (e *model.Event, err error) {
	err = s.store.View(ctx, func(r repository.Reader) error {
		e, err = r.GetEvent(ctx, collegeID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := withStatus(*e, s.opts.clock())
	return &out, nil
}

// ListEvents returns a page of the college's events ordered by start time,
// optionally filtered by type and derived status.
func (s *EntityStore) ListEvents(ctx context.Context, collegeID tenant.ID, f model.EventFilter) ([]model.Event, error) {
	var events []model.Event
	err := s.store.View(ctx, func(r repository.Reader) error {
		var err error
		events, err = r.ListEvents(ctx, collegeID, f.Type)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := s.opts.clock()
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		e = withStatus(e, now)
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		out = append(out, e)
	}

	offset := max(f.Offset, 0)
	if offset >= len(out) {
		return []model.Event{}, nil
	}
	out = out[offset:]
	if limit := s.opts.pageSize(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateEvent applies the provided fields. The merged window is re-checked
// and capacity may not drop below the current registration count. The event
// row is locked so the capacity check cannot race a registration.
func (s *EntityStore) UpdateEvent(ctx context.Context, collegeID tenant.ID, id string, req model.UpdateEventRequest) (e *model.Event, err error) {
	defer func(start time.Time) { observe(ctx, "update_event", start, err) }(time.Now())

	if err := validate(&req); err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		e, err = tx.LockEvent(ctx, collegeID, id)
		if err != nil {
			return err
		}
		if req.Title != nil {
			e.Title = strings.TrimSpace(*req.Title)
		}
		if req.Type != nil {
			e.Type = *req.Type
		}
		if req.Description != nil {
			e.Description = trimOptional(req.Description)
		}
		if req.StartTime != nil {
			e.StartTime = normalizeTime(*req.StartTime)
		}
		if req.EndTime != nil {
			e.EndTime = normalizeTime(*req.EndTime)
		}
		if req.Venue != nil {
			e.Venue = trimOptional(req.Venue)
		}
		if req.RegistrationDeadline != nil {
			e.RegistrationDeadline = normalizeOptionalTime(req.RegistrationDeadline)
		}
		if err := checkEventWindow(e.StartTime, e.EndTime, e.RegistrationDeadline); err != nil {
			return err
		}
		if req.Capacity != nil {
			registered, err := tx.CountRegistrations(ctx, collegeID, id)
			if err != nil {
				return err
			}
			if *req.Capacity < registered {
				return fmt.Errorf("%w: capacity %d is below current registrations (%d)",
					repository.ErrConflict, *req.Capacity, registered)
			}
			e.Capacity = req.Capacity
		}
		e.UpdatedAt = s.opts.clock()
		return tx.UpdateEvent(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	out := withStatus(*e, s.opts.clock())
	return &out, nil
}

// CancelEvent flags an event as cancelled. Its ledger rows are kept and stay
// reportable. Cancelling twice is a no-op.
func (s *EntityStore) CancelEvent(ctx context.Context, collegeID tenant.ID, id string) (e *model.Event, err error) {
	defer func(start time.Time) { observe(ctx, "cancel_event", start, err) }(time.Now())

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		e, err = tx.LockEvent(ctx, collegeID, id)
		if err != nil || e.IsCancelled {
			return err
		}
		e.IsCancelled = true
		e.UpdatedAt = s.opts.clock()
		return tx.UpdateEvent(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info().Str("event_id", id).Msg("event cancelled")
	out := withStatus(*e, s.opts.clock())
	return &out, nil
}

// DeleteEvent removes an event. Without cascade it fails with ErrConflict
// while registrations, attendance or feedback reference the event.
func (s *EntityStore) DeleteEvent(ctx context.Context, collegeID tenant.ID, id string, cascade bool) (err error) {
	defer func(start time.Time) { observe(ctx, "delete_event", start, err) }(time.Now())

	return s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.LockEvent(ctx, collegeID, id); err != nil {
			return err
		}
		return deleteWithDependents(ctx, tx, collegeID, model.InteractionFilter{EventID: id}, cascade,
			func() error { return tx.DeleteEvent(ctx, collegeID, id) })
	})
}
