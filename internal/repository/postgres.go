package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/campus-events/internal/metrics"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/tenant"
)

// PostgreSQL error codes mapped to sentinel errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

const (
	collegeColumns      = `id, name, domain, contact_email, created_at, updated_at`
	studentColumns      = `id, college_id, name, email, roll_no, department, batch_year, created_at, updated_at`
	eventColumns        = `id, college_id, title, type, description, start_time, end_time, venue, capacity, registration_deadline, is_cancelled, created_at, updated_at`
	registrationColumns = `id, college_id, event_id, student_id, registered_at`
	attendanceColumns   = `id, college_id, event_id, student_id, present, method, marked_at`
	feedbackColumns     = `id, college_id, event_id, student_id, rating, comment, is_anonymous, submitted_at, updated_at`
)

// PostgresStore implements Store on a pgx connection pool.
//
// Write transactions run at READ COMMITTED. Registration capacity is
// protected by LockEvent, which takes a row lock with SELECT … FOR UPDATE:
// a second registration for the same event blocks on that lock until the
// first commits or rolls back, so the count it then reads is current.
//
// Snapshots run in a REPEATABLE READ, READ ONLY transaction so every query
// inside one View sees the same committed state.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// WithTx implements Store.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(Tx) error) (err error) {
	start := time.Now()
	defer func() { recordTx("postgres", "write", start, err) }()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// No-op once committed.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err = fn(&pgTx{pgReader: pgReader{q: tx}}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return mapPgError(fmt.Errorf("commit transaction: %w", err), ErrConflict)
	}
	return nil
}

// View implements Store.
func (s *PostgresStore) View(ctx context.Context, fn func(Reader) error) (err error) {
	start := time.Now()
	defer func() { recordTx("postgres", "read", start, err) }()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err = fn(pgReader{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements Store.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func recordTx(backend, kind string, start time.Time, err error) {
	if err != nil && IsDomainError(err) {
		err = nil
	}
	metrics.RecordStoreTx(backend, kind, time.Since(start), err)
}

// mapPgError translates constraint violations into sentinel errors.
// onForeignKey is returned for 23503: ErrNotFound when inserting a row whose
// parent is missing, ErrConflict when deleting a row that still has children.
func mapPgError(err error, onForeignKey error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: duplicate value violates %s", ErrConflict, pgErr.ConstraintName)
	case pgForeignKeyViolation:
		if errors.Is(onForeignKey, ErrNotFound) {
			return fmt.Errorf("%w: referenced row does not exist (%s)", ErrNotFound, pgErr.ConstraintName)
		}
		return fmt.Errorf("%w: dependent rows exist (%s)", onForeignKey, pgErr.ConstraintName)
	case pgCheckViolation:
		return fmt.Errorf("%w: %s", ErrValidation, pgErr.ConstraintName)
	default:
		return err
	}
}

// querier is satisfied by pgx.Tx and *pgxpool.Pool.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgReader struct {
	q querier
}

// ─── Colleges ────────────────────────────────────────────────────────────────

func scanCollege(row pgx.Row) (*model.College, error) {
	var c model.College
	if err := row.Scan(&c.ID, &c.Name, &c.Domain, &c.ContactEmail, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r pgReader) GetCollege(ctx context.Context, id tenant.ID) (*model.College, error) {
	c, err := scanCollege(r.q.QueryRow(ctx,
		`SELECT `+collegeColumns+` FROM colleges WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: college %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get college: %w", err)
	}
	return c, nil
}

func (r pgReader) ListColleges(ctx context.Context) ([]model.College, error) {
	rows, err := r.q.Query(ctx, `SELECT `+collegeColumns+` FROM colleges ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list colleges: %w", err)
	}
	defer rows.Close()

	colleges := []model.College{}
	for rows.Next() {
		c, err := scanCollege(rows)
		if err != nil {
			return nil, fmt.Errorf("scan college: %w", err)
		}
		colleges = append(colleges, *c)
	}
	return colleges, rows.Err()
}

// ─── Students ────────────────────────────────────────────────────────────────

func scanStudent(row pgx.Row) (*model.Student, error) {
	var s model.Student
	if err := row.Scan(&s.ID, &s.CollegeID, &s.Name, &s.Email, &s.RollNo, &s.Department,
		&s.BatchYear, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r pgReader) GetStudent(ctx context.Context, collegeID tenant.ID, id string) (*model.Student, error) {
	s, err := scanStudent(r.q.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE college_id = $1 AND id = $2`, collegeID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: student %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return s, nil
}

// likePattern escapes LIKE metacharacters and wraps q for a substring match.
func likePattern(q string) string {
	q = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(q)
	return "%" + q + "%"
}

func (r pgReader) ListStudents(ctx context.Context, collegeID tenant.ID, f model.StudentFilter) ([]model.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE college_id = $1`
	args := []any{collegeID}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, likePattern(q))
		query += ` AND (name ILIKE $2 OR email ILIKE $2 OR roll_no ILIKE $2)`
	}
	query += ` ORDER BY name, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	students := []model.Student{}
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, *s)
	}
	return students, rows.Err()
}

func (r pgReader) CountStudents(ctx context.Context, collegeID tenant.ID) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM students WHERE college_id = $1`, collegeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return n, nil
}

// ─── Events ──────────────────────────────────────────────────────────────────

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	if err := row.Scan(&e.ID, &e.CollegeID, &e.Title, &e.Type, &e.Description, &e.StartTime,
		&e.EndTime, &e.Venue, &e.Capacity, &e.RegistrationDeadline, &e.IsCancelled,
		&e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r pgReader) GetEvent(ctx context.Context, collegeID tenant.ID, id string) (*model.Event, error) {
	return r.getEvent(ctx, collegeID, id, "")
}

func (r pgReader) getEvent(ctx context.Context, collegeID tenant.ID, id, suffix string) (*model.Event, error) {
	e, err := scanEvent(r.q.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE college_id = $1 AND id = $2`+suffix, collegeID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: event %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (r pgReader) ListEvents(ctx context.Context, collegeID tenant.ID, eventType model.EventType) ([]model.Event, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE college_id = $1 AND ($2 = '' OR type = $2)
		 ORDER BY start_time, id`,
		collegeID, string(eventType))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (r pgReader) CountEvents(ctx context.Context, collegeID tenant.ID) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM events WHERE college_id = $1`, collegeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// ─── Interactions ────────────────────────────────────────────────────────────

// interactionWhere filters one of the ledger tables by college and the
// optional event/student ids in $1..$3.
const interactionWhere = ` WHERE college_id = $1 AND ($2 = '' OR event_id = $2) AND ($3 = '' OR student_id = $3)`

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var reg model.Registration
	if err := row.Scan(&reg.ID, &reg.CollegeID, &reg.EventID, &reg.StudentID, &reg.RegisteredAt); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r pgReader) GetRegistration(ctx context.Context, key model.InteractionKey) (*model.Registration, error) {
	reg, err := scanRegistration(r.q.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE college_id = $1 AND event_id = $2 AND student_id = $3`,
		key.CollegeID, key.EventID, key.StudentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: registration", ErrNotFound)
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

func (r pgReader) ListRegistrations(ctx context.Context, collegeID tenant.ID, f model.InteractionFilter) ([]model.Registration, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+registrationColumns+` FROM registrations`+interactionWhere+
			` ORDER BY registered_at, id`,
		collegeID, f.EventID, f.StudentID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	regs := []model.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

func (r pgReader) CountRegistrations(ctx context.Context, collegeID tenant.ID, eventID string) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE college_id = $1 AND event_id = $2`,
		collegeID, eventID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

func scanAttendance(row pgx.Row) (*model.Attendance, error) {
	var a model.Attendance
	if err := row.Scan(&a.ID, &a.CollegeID, &a.EventID, &a.StudentID, &a.Present, &a.Method, &a.MarkedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r pgReader) GetAttendance(ctx context.Context, key model.InteractionKey) (*model.Attendance, error) {
	a, err := scanAttendance(r.q.QueryRow(ctx,
		`SELECT `+attendanceColumns+` FROM attendance
		 WHERE college_id = $1 AND event_id = $2 AND student_id = $3`,
		key.CollegeID, key.EventID, key.StudentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: attendance", ErrNotFound)
		}
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	return a, nil
}

func (r pgReader) ListAttendance(ctx context.Context, collegeID tenant.ID, f model.InteractionFilter) ([]model.Attendance, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+attendanceColumns+` FROM attendance`+interactionWhere+
			` ORDER BY marked_at, id`,
		collegeID, f.EventID, f.StudentID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	marks := []model.Attendance{}
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		marks = append(marks, *a)
	}
	return marks, rows.Err()
}

func scanFeedback(row pgx.Row) (*model.Feedback, error) {
	var fb model.Feedback
	if err := row.Scan(&fb.ID, &fb.CollegeID, &fb.EventID, &fb.StudentID, &fb.Rating, &fb.Comment,
		&fb.IsAnonymous, &fb.SubmittedAt, &fb.UpdatedAt); err != nil {
		return nil, err
	}
	return &fb, nil
}

func (r pgReader) GetFeedback(ctx context.Context, key model.InteractionKey) (*model.Feedback, error) {
	fb, err := scanFeedback(r.q.QueryRow(ctx,
		`SELECT `+feedbackColumns+` FROM feedback
		 WHERE college_id = $1 AND event_id = $2 AND student_id = $3`,
		key.CollegeID, key.EventID, key.StudentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: feedback", ErrNotFound)
		}
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	return fb, nil
}

func (r pgReader) ListFeedback(ctx context.Context, collegeID tenant.ID, f model.InteractionFilter) ([]model.Feedback, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+feedbackColumns+` FROM feedback`+interactionWhere+
			` ORDER BY submitted_at, id`,
		collegeID, f.EventID, f.StudentID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	out := []model.Feedback{}
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		out = append(out, *fb)
	}
	return out, rows.Err()
}

func (r pgReader) CountInteractions(ctx context.Context, collegeID tenant.ID, f model.InteractionFilter) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM registrations`+interactionWhere+`)
		      + (SELECT COUNT(*) FROM attendance`+interactionWhere+`)
		      + (SELECT COUNT(*) FROM feedback`+interactionWhere+`)`,
		collegeID, f.EventID, f.StudentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count interactions: %w", err)
	}
	return n, nil
}

// ─── Writes ──────────────────────────────────────────────────────────────────

type pgTx struct {
	pgReader
}

// LockEvent takes an exclusive row lock on the event.
//
// SELECT … FOR UPDATE blocks any other transaction issuing the same lock on
// this row until we commit or roll back, which turns the read-check-insert in
// registration into a critical section per event.
func (t *pgTx) LockEvent(ctx context.Context, collegeID tenant.ID, id string) (*model.Event, error) {
	return t.getEvent(ctx, collegeID, id, ` FOR UPDATE`)
}

func (t *pgTx) exec(ctx context.Context, onForeignKey error, sql string, args ...any) (int64, error) {
	tag, err := t.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapPgError(err, onForeignKey)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) InsertCollege(ctx context.Context, c *model.College) error {
	if _, err := t.exec(ctx, ErrNotFound,
		`INSERT INTO colleges (`+collegeColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Name, c.Domain, c.ContactEmail, c.CreatedAt, c.UpdatedAt); err != nil {
		return fmt.Errorf("insert college: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateCollege(ctx context.Context, c *model.College) error {
	n, err := t.exec(ctx, ErrNotFound,
		`UPDATE colleges SET name = $2, domain = $3, contact_email = $4, updated_at = $5 WHERE id = $1`,
		c.ID, c.Name, c.Domain, c.ContactEmail, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update college: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: college %s", ErrNotFound, c.ID)
	}
	return nil
}

func (t *pgTx) DeleteCollege(ctx context.Context, id tenant.ID) error {
	n, err := t.exec(ctx, ErrConflict, `DELETE FROM colleges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete college: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: college %s", ErrNotFound, id)
	}
	return nil
}

func (t *pgTx) InsertStudent(ctx context.Context, s *model.Student) error {
	if _, err := t.exec(ctx, ErrNotFound,
		`INSERT INTO students (`+studentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.CollegeID, s.Name, s.Email, s.RollNo, s.Department, s.BatchYear, s.CreatedAt, s.UpdatedAt); err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateStudent(ctx context.Context, s *model.Student) error {
	n, err := t.exec(ctx, ErrNotFound,
		`UPDATE students SET name = $3, email = $4, roll_no = $5, department = $6, batch_year = $7, updated_at = $8
		 WHERE college_id = $1 AND id = $2`,
		s.CollegeID, s.ID, s.Name, s.Email, s.RollNo, s.Department, s.BatchYear, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: student %s", ErrNotFound, s.ID)
	}
	return nil
}

func (t *pgTx) DeleteStudent(ctx context.Context, collegeID tenant.ID, id string) error {
	n, err := t.exec(ctx, ErrConflict,
		`DELETE FROM students WHERE college_id = $1 AND id = $2`, collegeID, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: student %s", ErrNotFound, id)
	}
	return nil
}

func (t *pgTx) InsertEvent(ctx context.Context, e *model.Event) error {
	if _, err := t.exec(ctx, ErrNotFound,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.ID, e.CollegeID, e.Title, e.Type, e.Description, e.StartTime, e.EndTime, e.Venue,
		e.Capacity, e.RegistrationDeadline, e.IsCancelled, e.CreatedAt, e.UpdatedAt); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateEvent(ctx context.Context, e *model.Event) error {
	n, err := t.exec(ctx, ErrNotFound,
		`UPDATE events SET title = $3, type = $4, description = $5, start_time = $6, end_time = $7,
		        venue = $8, capacity = $9, registration_deadline = $10, is_cancelled = $11, updated_at = $12
		 WHERE college_id = $1 AND id = $2`,
		e.CollegeID, e.ID, e.Title, e.Type, e.Description, e.StartTime, e.EndTime, e.Venue,
		e.Capacity, e.RegistrationDeadline, e.IsCancelled, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: event %s", ErrNotFound, e.ID)
	}
	return nil
}

func (t *pgTx) DeleteEvent(ctx context.Context, collegeID tenant.ID, id string) error {
	n, err := t.exec(ctx, ErrConflict,
		`DELETE FROM events WHERE college_id = $1 AND id = $2`, collegeID, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: event %s", ErrNotFound, id)
	}
	return nil
}

func (t *pgTx) InsertRegistration(ctx context.Context, reg *model.Registration) error {
	if _, err := t.exec(ctx, ErrNotFound,
		`INSERT INTO registrations (`+registrationColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		reg.ID, reg.CollegeID, reg.EventID, reg.StudentID, reg.RegisteredAt); err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// UpsertAttendance keeps one row per triple. The WHERE clause on the conflict
// branch discards a mark older than the stored one; in that case RETURNING
// yields nothing and the stored row is read back instead.
func (t *pgTx) UpsertAttendance(ctx context.Context, a *model.Attendance) (*model.Attendance, error) {
	stored, err := scanAttendance(t.q.QueryRow(ctx,
		`INSERT INTO attendance (`+attendanceColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (college_id, event_id, student_id) DO UPDATE
		 SET present = EXCLUDED.present, method = EXCLUDED.method, marked_at = EXCLUDED.marked_at
		 WHERE attendance.marked_at <= EXCLUDED.marked_at
		 RETURNING `+attendanceColumns,
		a.ID, a.CollegeID, a.EventID, a.StudentID, a.Present, a.Method, a.MarkedAt))
	if err == nil {
		return stored, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return t.GetAttendance(ctx, a.Key())
	}
	return nil, fmt.Errorf("upsert attendance: %w", mapPgError(err, ErrNotFound))
}

func (t *pgTx) InsertFeedback(ctx context.Context, fb *model.Feedback) error {
	if _, err := t.exec(ctx, ErrNotFound,
		`INSERT INTO feedback (`+feedbackColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		fb.ID, fb.CollegeID, fb.EventID, fb.StudentID, fb.Rating, fb.Comment, fb.IsAnonymous,
		fb.SubmittedAt, fb.UpdatedAt); err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateFeedback(ctx context.Context, fb *model.Feedback) error {
	n, err := t.exec(ctx, ErrNotFound,
		`UPDATE feedback SET rating = $4, comment = $5, updated_at = $6
		 WHERE college_id = $1 AND event_id = $2 AND student_id = $3`,
		fb.CollegeID, fb.EventID, fb.StudentID, fb.Rating, fb.Comment, fb.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update feedback: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: feedback", ErrNotFound)
	}
	return nil
}

func (t *pgTx) DeleteInteractions(ctx context.Context, collegeID tenant.ID, f model.InteractionFilter) (int, error) {
	var total int64
	for _, table := range []string{"feedback", "attendance", "registrations"} {
		n, err := t.exec(ctx, ErrConflict, `DELETE FROM `+table+interactionWhere,
			collegeID, f.EventID, f.StudentID)
		if err != nil {
			return 0, fmt.Errorf("delete %s: %w", table, err)
		}
		total += n
	}
	return int(total), nil
}
