package repository

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/tenant"
)

// scopedKey addresses a student or event inside a college.
type scopedKey struct {
	CollegeID tenant.ID
	ID        string
}

// memState is one committed version of the data. A published memState is
// never mutated; write transactions clone the maps they touch.
type memState struct {
	colleges      map[tenant.ID]model.College
	students      map[scopedKey]model.Student
	events        map[scopedKey]model.Event
	registrations map[model.InteractionKey]model.Registration
	attendance    map[model.InteractionKey]model.Attendance
	feedback      map[model.InteractionKey]model.Feedback
}

// MemoryStore implements Store in process memory.
//
// Writers are serialised by writeMu, which makes LockEvent trivially
// exclusive. Each write transaction works on a private copy-on-write version
// and publishes it with a single atomic pointer swap on commit, so View
// callers read a consistent version without taking any lock.
type MemoryStore struct {
	writeMu sync.Mutex
	current atomic.Pointer[memState]
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{}
	m.current.Store(&memState{
		colleges:      map[tenant.ID]model.College{},
		students:      map[scopedKey]model.Student{},
		events:        map[scopedKey]model.Event{},
		registrations: map[model.InteractionKey]model.Registration{},
		attendance:    map[model.InteractionKey]model.Attendance{},
		feedback:      map[model.InteractionKey]model.Feedback{},
	})
	return m
}

// WithTx implements Store.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(Tx) error) (err error) {
	start := time.Now()
	defer func() { recordTx("memory", "write", start, err) }()

	if err = ctx.Err(); err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	base := *m.current.Load()
	tx := &memTx{memReader: memReader{s: &base}}
	if err = fn(tx); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	m.current.Store(tx.s)
	return nil
}

// View implements Store.
func (m *MemoryStore) View(ctx context.Context, fn func(Reader) error) (err error) {
	start := time.Now()
	defer func() { recordTx("memory", "read", start, err) }()

	if err = ctx.Err(); err != nil {
		return err
	}
	return fn(memReader{s: m.current.Load()})
}

// Ping implements Store.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close implements Store.
func (m *MemoryStore) Close() {}

type memReader struct {
	s *memState
}

func (r memReader) GetCollege(_ context.Context, id tenant.ID) (*model.College, error) {
	c, ok := r.s.colleges[id]
	if !ok {
		return nil, fmt.Errorf("%w: college %s", ErrNotFound, id)
	}
	return &c, nil
}

func (r memReader) ListColleges(_ context.Context) ([]model.College, error) {
	out := slices.Collect(maps.Values(r.s.colleges))
	slices.SortFunc(out, func(a, b model.College) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r memReader) GetStudent(_ context.Context, collegeID tenant.ID, id string) (*model.Student, error) {
	s, ok := r.s.students[scopedKey{collegeID, id}]
	if !ok {
		return nil, fmt.Errorf("%w: student %s", ErrNotFound, id)
	}
	return &s, nil
}

func (r memReader) ListStudents(_ context.Context, collegeID tenant.ID, f model.StudentFilter) ([]model.Student, error) {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := []model.Student{}
	for k, s := range r.s.students {
		if k.CollegeID != collegeID {
			continue
		}
		if q != "" && !studentMatches(s, q) {
			continue
		}
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b model.Student) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return paginate(out, f.Limit, f.Offset), nil
}

func studentMatches(s model.Student, q string) bool {
	if strings.Contains(strings.ToLower(s.Name), q) || strings.Contains(strings.ToLower(s.Email), q) {
		return true
	}
	return s.RollNo != nil && strings.Contains(strings.ToLower(*s.RollNo), q)
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (r memReader) CountStudents(_ context.Context, collegeID tenant.ID) (int, error) {
	n := 0
	for k := range r.s.students {
		if k.CollegeID == collegeID {
			n++
		}
	}
	return n, nil
}

func (r memReader) GetEvent(_ context.Context, collegeID tenant.ID, id string) (*model.Event, error) {
	e, ok := r.s.events[scopedKey{collegeID, id}]
	if !ok {
		return nil, fmt.Errorf("%w: event %s", ErrNotFound, id)
	}
	return &e, nil
}

func (r memReader) ListEvents(_ context.Context, collegeID tenant.ID, eventType model.EventType) ([]model.Event, error) {
	out := []model.Event{}
	for k, e := range r.s.events {
		if k.CollegeID != collegeID || (eventType != "" && e.Type != eventType) {
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b model.Event) int {
		return cmp.Or(a.StartTime.Compare(b.StartTime), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (r memReader) CountEvents(_ context.Context, collegeID tenant.ID) (int, error) {
	n := 0
	for k := range r.s.events {
		if k.CollegeID == collegeID {
			n++
		}
	}
	return n, nil
}

func matchesInteraction(key model.InteractionKey, collegeID tenant.ID, f model.InteractionFilter) bool {
	return key.CollegeID == collegeID &&
		(f.EventID == "" || key.EventID == f.EventID) &&
		(f.StudentID == "" || key.StudentID == f.StudentID)
}

func (r memReader) GetRegistration(_ context.Context, key model.InteractionKey) (*model.Registration, error) {
	reg, ok := r.s.registrations[key]
	if !ok {
		return nil, fmt.Errorf("%w: registration", ErrNotFound)
	}
	return &reg, nil
}

func (r memReader) ListRegistrations(_ context.Context, collegeID tenant.ID, f model.InteractionFilter) ([]model.Registration, error) {
	out := []model.Registration{}
	for k, reg := range r.s.registrations {
		if matchesInteraction(k, collegeID, f) {
			out = append(out, reg)
		}
	}
	slices.SortFunc(out, func(a, b model.Registration) int {
		return cmp.Or(a.RegisteredAt.Compare(b.RegisteredAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (r memReader) CountRegistrations(_ context.Context, collegeID tenant.ID, eventID string) (int, error) {
	n := 0
	for k := range r.s.registrations {
		if k.CollegeID == collegeID && k.EventID == eventID {
			n++
		}
	}
	return n, nil
}

func (r memReader) GetAttendance(_ context.Context, key model.InteractionKey) (*model.Attendance, error) {
	a, ok := r.s.attendance[key]
	if !ok {
		return nil, fmt.Errorf("%w: attendance", ErrNotFound)
	}
	return &a, nil
}

func (r memReader) ListAttendance(_ context.Context, collegeID tenant.ID, f model.InteractionFilter) ([]model.Attendance, error) {
	out := []model.Attendance{}
	for k, a := range r.s.attendance {
		if matchesInteraction(k, collegeID, f) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b model.Attendance) int {
		return cmp.Or(a.MarkedAt.Compare(b.MarkedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (r memReader) GetFeedback(_ context.Context, key model.InteractionKey) (*model.Feedback, error) {
	fb, ok := r.s.feedback[key]
	if !ok {
		return nil, fmt.Errorf("%w: feedback", ErrNotFound)
	}
	return &fb, nil
}

func (r memReader) ListFeedback(_ context.Context, collegeID tenant.ID, f model.InteractionFilter) ([]model.Feedback, error) {
	out := []model.Feedback{}
	for k, fb := range r.s.feedback {
		if matchesInteraction(k, collegeID, f) {
			out = append(out, fb)
		}
	}
	slices.SortFunc(out, func(a, b model.Feedback) int {
		return cmp.Or(a.SubmittedAt.Compare(b.SubmittedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (r memReader) CountInteractions(_ context.Context, collegeID tenant.ID, f model.InteractionFilter) (int, error) {
	n := 0
	for k := range r.s.registrations {
		if matchesInteraction(k, collegeID, f) {
			n++
		}
	}
	for k := range r.s.attendance {
		if matchesInteraction(k, collegeID, f) {
			n++
		}
	}
	for k := range r.s.feedback {
		if matchesInteraction(k, collegeID, f) {
			n++
		}
	}
	return n, nil
}

// memTx writes into a private memState. Each map is cloned the first time
// the transaction modifies it.
type memTx struct {
	memReader
	dirty struct {
		colleges, students, events, registrations, attendance, feedback bool
	}
}

func cloneOnce[K comparable, V any](m *map[K]V, done *bool) map[K]V {
	if !*done {
		*m = maps.Clone(*m)
		*done = true
	}
	return *m
}

func (t *memTx) colleges() map[tenant.ID]model.College {
	return cloneOnce(&t.s.colleges, &t.dirty.colleges)
}

func (t *memTx) students() map[scopedKey]model.Student {
	return cloneOnce(&t.s.students, &t.dirty.students)
}

func (t *memTx) events() map[scopedKey]model.Event {
	return cloneOnce(&t.s.events, &t.dirty.events)
}

func (t *memTx) registrations() map[model.InteractionKey]model.Registration {
	return cloneOnce(&t.s.registrations, &t.dirty.registrations)
}

func (t *memTx) attendanceRows() map[model.InteractionKey]model.Attendance {
	return cloneOnce(&t.s.attendance, &t.dirty.attendance)
}

func (t *memTx) feedbackRows() map[model.InteractionKey]model.Feedback {
	return cloneOnce(&t.s.feedback, &t.dirty.feedback)
}

func (t *memTx) LockEvent(ctx context.Context, collegeID tenant.ID, id string) (*model.Event, error) {
	return t.GetEvent(ctx, collegeID, id)
}

// ─── Colleges ────────────────────────────────────────────────────────────────

func (t *memTx) domainTaken(domain *string, except tenant.ID) bool {
	if domain == nil {
		return false
	}
	for id, c := range t.s.colleges {
		if id != except && c.Domain != nil && strings.EqualFold(*c.Domain, *domain) {
			return true
		}
	}
	return false
}

func (t *memTx) InsertCollege(_ context.Context, c *model.College) error {
	if _, ok := t.s.colleges[c.ID]; ok {
		return fmt.Errorf("%w: college %s already exists", ErrConflict, c.ID)
	}
	if t.domainTaken(c.Domain, "") {
		return fmt.Errorf("%w: domain %s already in use", ErrConflict, *c.Domain)
	}
	t.colleges()[c.ID] = *c
	return nil
}

func (t *memTx) UpdateCollege(_ context.Context, c *model.College) error {
	if _, ok := t.s.colleges[c.ID]; !ok {
		return fmt.Errorf("%w: college %s", ErrNotFound, c.ID)
	}
	if t.domainTaken(c.Domain, c.ID) {
		return fmt.Errorf("%w: domain %s already in use", ErrConflict, *c.Domain)
	}
	t.colleges()[c.ID] = *c
	return nil
}

func (t *memTx) DeleteCollege(ctx context.Context, id tenant.ID) error {
	if _, ok := t.s.colleges[id]; !ok {
		return fmt.Errorf("%w: college %s", ErrNotFound, id)
	}
	students, _ := t.CountStudents(ctx, id)
	events, _ := t.CountEvents(ctx, id)
	if students+events > 0 {
		return fmt.Errorf("%w: college %s still has students or events", ErrConflict, id)
	}
	delete(t.colleges(), id)
	return nil
}

// ─── Students ────────────────────────────────────────────────────────────────

func (t *memTx) checkStudentUnique(s *model.Student) error {
	for k, other := range t.s.students {
		if k.CollegeID != s.CollegeID || k.ID == s.ID {
			continue
		}
		if other.Email == s.Email {
			return fmt.Errorf("%w: email %s already registered in college", ErrConflict, s.Email)
		}
		if s.RollNo != nil && other.RollNo != nil && *other.RollNo == *s.RollNo {
			return fmt.Errorf("%w: roll number %s already registered in college", ErrConflict, *s.RollNo)
		}
	}
	return nil
}

func (t *memTx) InsertStudent(_ context.Context, s *model.Student) error {
	if _, ok := t.s.colleges[s.CollegeID]; !ok {
		return fmt.Errorf("%w: college %s", ErrNotFound, s.CollegeID)
	}
	key := scopedKey{s.CollegeID, s.ID}
	if _, ok := t.s.students[key]; ok {
		return fmt.Errorf("%w: student %s already exists", ErrConflict, s.ID)
	}
	if err := t.checkStudentUnique(s); err != nil {
		return err
	}
	t.students()[key] = *s
	return nil
}

func (t *memTx) UpdateStudent(_ context.Context, s *model.Student) error {
	key := scopedKey{s.CollegeID, s.ID}
	if _, ok := t.s.students[key]; !ok {
		return fmt.Errorf("%w: student %s", ErrNotFound, s.ID)
	}
	if err := t.checkStudentUnique(s); err != nil {
		return err
	}
	t.students()[key] = *s
	return nil
}

func (t *memTx) DeleteStudent(ctx context.Context, collegeID tenant.ID, id string) error {
	key := scopedKey{collegeID, id}
	if _, ok := t.s.students[key]; !ok {
		return fmt.Errorf("%w: student %s", ErrNotFound, id)
	}
	if n, _ := t.CountInteractions(ctx, collegeID, model.InteractionFilter{StudentID: id}); n > 0 {
		return fmt.Errorf("%w: student %s has %d dependent records", ErrConflict, id, n)
	}
	delete(t.students(), key)
	return nil
}

// ─── Events ──────────────────────────────────────────────────────────────────

func checkEventRow(e *model.Event) error {
	if !e.EndTime.After(e.StartTime) {
		return fmt.Errorf("%w: end_time must be after start_time", ErrValidation)
	}
	if e.RegistrationDeadline != nil && e.RegistrationDeadline.After(e.StartTime) {
		return fmt.Errorf("%w: registration_deadline must not be after start_time", ErrValidation)
	}
	if e.Capacity != nil && (*e.Capacity < 1 || *e.Capacity > 100000) {
		return fmt.Errorf("%w: capacity out of range", ErrValidation)
	}
	return nil
}

func (t *memTx) InsertEvent(_ context.Context, e *model.Event) error {
	if _, ok := t.s.colleges[e.CollegeID]; !ok {
		return fmt.Errorf("%w: college %s", ErrNotFound, e.CollegeID)
	}
	key := scopedKey{e.CollegeID, e.ID}
	if _, ok := t.s.events[key]; ok {
		return fmt.Errorf("%w: event %s already exists", ErrConflict, e.ID)
	}
	if err := checkEventRow(e); err != nil {
		return err
	}
	t.events()[key] = *e
	return nil
}

func (t *memTx) UpdateEvent(_ context.Context, e *model.Event) error {
	key := scopedKey{e.CollegeID, e.ID}
	if _, ok := t.s.events[key]; !ok {
		return fmt.Errorf("%w: event %s", ErrNotFound, e.ID)
	}
	if err := checkEventRow(e); err != nil {
		return err
	}
	t.events()[key] = *e
	return nil
}

func (t *memTx) DeleteEvent(ctx context.Context, collegeID tenant.ID, id string) error {
	key := scopedKey{collegeID, id}
	if _, ok := t.s.events[key]; !ok {
		return fmt.Errorf("%w: event %s", ErrNotFound, id)
	}
	if n, _ := t.CountInteractions(ctx, collegeID, model.InteractionFilter{EventID: id}); n > 0 {
		return fmt.Errorf("%w: event %s has %d dependent records", ErrConflict, id, n)
	}
	delete(t.events(), key)
	return nil
}

// ─── Interactions ────────────────────────────────────────────────────────────

// checkParents mirrors the composite foreign keys of the SQL schema.
func (t *memTx) checkParents(key model.InteractionKey) error {
	if _, ok := t.s.events[scopedKey{key.CollegeID, key.EventID}]; !ok {
		return fmt.Errorf("%w: event %s", ErrNotFound, key.EventID)
	}
	if _, ok := t.s.students[scopedKey{key.CollegeID, key.StudentID}]; !ok {
		return fmt.Errorf("%w: student %s", ErrNotFound, key.StudentID)
	}
	return nil
}

func (t *memTx) InsertRegistration(_ context.Context, reg *model.Registration) error {
	key := reg.Key()
	if err := t.checkParents(key); err != nil {
		return err
	}
	if _, ok := t.s.registrations[key]; ok {
		return fmt.Errorf("%w: student already registered for this event", ErrConflict)
	}
	t.registrations()[key] = *reg
	return nil
}

func (t *memTx) UpsertAttendance(_ context.Context, a *model.Attendance) (*model.Attendance, error) {
	key := a.Key()
	if err := t.checkParents(key); err != nil {
		return nil, err
	}
	row := *a
	if existing, ok := t.s.attendance[key]; ok {
		if existing.MarkedAt.After(a.MarkedAt) {
			return &existing, nil
		}
		row.ID = existing.ID
	}
	t.attendanceRows()[key] = row
	return &row, nil
}

func (t *memTx) InsertFeedback(_ context.Context, fb *model.Feedback) error {
	key := fb.Key()
	if err := t.checkParents(key); err != nil {
		return err
	}
	if fb.Rating < 1 || fb.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	if _, ok := t.s.feedback[key]; ok {
		return fmt.Errorf("%w: feedback already submitted", ErrConflict)
	}
	t.feedbackRows()[key] = *fb
	return nil
}

func (t *memTx) UpdateFeedback(_ context.Context, fb *model.Feedback) error {
	key := fb.Key()
	existing, ok := t.s.feedback[key]
	if !ok {
		return fmt.Errorf("%w: feedback", ErrNotFound)
	}
	if fb.Rating < 1 || fb.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	existing.Rating = fb.Rating
	existing.Comment = fb.Comment
	existing.UpdatedAt = fb.UpdatedAt
	t.feedbackRows()[key] = existing
	return nil
}

func (t *memTx) DeleteInteractions(_ context.Context, collegeID tenant.ID, f model.InteractionFilter) (int, error) {
	n := 0
	n += deleteMatching(t.s.registrations, t.registrations, collegeID, f)
	n += deleteMatching(t.s.attendance, t.attendanceRows, collegeID, f)
	n += deleteMatching(t.s.feedback, t.feedbackRows, collegeID, f)
	return n, nil
}

func deleteMatching[V any](current map[model.InteractionKey]V, mutable func() map[model.InteractionKey]V,
	collegeID tenant.ID, f model.InteractionFilter) int {
	var doomed []model.InteractionKey
	for k := range current {
		if matchesInteraction(k, collegeID, f) {
			doomed = append(doomed, k)
		}
	}
	if len(doomed) == 0 {
		return 0
	}
	m := mutable()
	for _, k := range doomed {
		delete(m, k)
	}
	return len(doomed)
}
