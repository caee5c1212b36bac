package service

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository"
	"github.com/Shivanand-hulikatti/campus-events/internal/tenant"
)

// ReportingEngine computes read-only aggregates. Each report reads all of its
// rows inside one snapshot, so it never mixes two committed states and never
// sees a partially committed write.
type ReportingEngine struct {
	store repository.Store
	opts  Options
}

// NewReportingEngine constructs a ReportingEngine.
func NewReportingEngine(store repository.Store, opts Options) *ReportingEngine {
	return &ReportingEngine{store: store, opts: opts.withDefaults()}
}

// maxTrendDays bounds the RegistrationTrends look-back.
const maxTrendDays = 366

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// percent returns num/den as a percentage rounded to one decimal, or 0 when
// den is 0.
func percent(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return round(float64(num)/float64(den)*100, 1)
}

// DashboardStats summarises a college. attendance_rate is present marks over
// registrations across the college.
func (e *ReportingEngine) DashboardStats(ctx context.Context, collegeID tenant.ID) (stats *model.DashboardStats, err error) {
	defer func(start time.Time) { observe(ctx, "dashboard_stats", start, err) }(time.Now())

	now := e.opts.clock()
	err = e.store.View(ctx, func(r repository.Reader) error {
		if _, err := r.GetCollege(ctx, collegeID); err != nil {
			return err
		}
		students, err := r.CountStudents(ctx, collegeID)
		if err != nil {
			return err
		}
		events, err := r.ListEvents(ctx, collegeID, "")
		if err != nil {
			return err
		}
		regs, err := r.ListRegistrations(ctx, collegeID, model.InteractionFilter{})
		if err != nil {
			return err
		}
		marks, err := r.ListAttendance(ctx, collegeID, model.InteractionFilter{})
		if err != nil {
			return err
		}

		upcoming := 0
		for _, ev := range events {
			if ev.StartTime.After(now) {
				upcoming++
			}
		}
		present := 0
		for _, a := range marks {
			if a.Present {
				present++
			}
		}

		stats = &model.DashboardStats{
			TotalStudents:  students,
			TotalEvents:    len(events),
			AttendanceRate: percent(present, len(regs)),
			UpcomingEvents: upcoming,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// EventPopularity ranks events by registrations, most first. Ties go to the
// earlier start_time, then to the lower id.
func (e *ReportingEngine) EventPopularity(ctx context.Context, collegeID tenant.ID, f model.PopularityFilter) (rows []model.EventPopularity, err error) {
	defer func(start time.Time) { observe(ctx, "event_popularity", start, err) }(time.Now())

	now := e.opts.clock()
	err = e.store.View(ctx, func(r repository.Reader) error {
		if _, err := r.GetCollege(ctx, collegeID); err != nil {
			return err
		}
		events, err := r.ListEvents(ctx, collegeID, f.Type)
		if err != nil {
			return err
		}
		regs, err := r.ListRegistrations(ctx, collegeID, model.InteractionFilter{})
		if err != nil {
			return err
		}
		marks, err := r.ListAttendance(ctx, collegeID, model.InteractionFilter{})
		if err != nil {
			return err
		}

		regCount := make(map[string]int, len(events))
		for _, reg := range regs {
			regCount[reg.EventID]++
		}
		presentCount := make(map[string]int, len(events))
		for _, a := range marks {
			if a.Present {
				presentCount[a.EventID]++
			}
		}

		rows = make([]model.EventPopularity, 0, len(events))
		for i := range events {
			ev := &events[i]
			rows = append(rows, model.EventPopularity{
				EventID:         ev.ID,
				Title:           ev.Title,
				Type:            ev.Type,
				Venue:           ev.Venue,
				StartTime:       ev.StartTime,
				EndTime:         ev.EndTime,
				Status:          ResolveStatus(ev, now),
				Registrations:   regCount[ev.ID],
				AttendanceCount: presentCount[ev.ID],
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(rows, func(a, b model.EventPopularity) int {
		return cmp.Or(
			cmp.Compare(b.Registrations, a.Registrations),
			a.StartTime.Compare(b.StartTime),
			cmp.Compare(a.EventID, b.EventID),
		)
	})
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}
	return rows, nil
}

// UpcomingEvents returns events whose start_time is after now, soonest
// first. Cancelled events are included and carry the cancelled status.
func (e *ReportingEngine) UpcomingEvents(ctx context.Context, collegeID tenant.ID, limit int) (out []model.Event, err error) {
	defer func(start time.Time) { observe(ctx, "upcoming_events", start, err) }(time.Now())

	now := e.opts.clock()
	limit = e.opts.pageSize(limit)
	err = e.store.View(ctx, func(r repository.Reader) error {
		if _, err := r.GetCollege(ctx, collegeID); err != nil {
			return err
		}
		events, err := r.ListEvents(ctx, collegeID, "")
		if err != nil {
			return err
		}
		out = make([]model.Event, 0, min(limit, len(events)))
		for _, ev := range events {
			if ev.StartTime.After(now) {
				out = append(out, withStatus(ev, now))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(out, func(a, b model.Event) int {
		return cmp.Or(a.StartTime.Compare(b.StartTime), cmp.Compare(a.ID, b.ID))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AttendanceSummary breaks down attendance for one event. Present, absent
// and unmarked partition the registered students; walk-ins are present marks
// from students who never registered.
func (e *ReportingEngine) AttendanceSummary(ctx context.Context, collegeID tenant.ID, eventID string) (sum *model.AttendanceSummary, err error) {
	defer func(start time.Time) { observe(ctx, "attendance_summary", start, err) }(time.Now())

	now := e.opts.clock()
	err = e.store.View(ctx, func(r repository.Reader) error {
		ev, err := r.GetEvent(ctx, collegeID, eventID)
		if err != nil {
			return err
		}
		filter := model.InteractionFilter{EventID: eventID}
		regs, err := r.ListRegistrations(ctx, collegeID, filter)
		if err != nil {
			return err
		}
		marks, err := r.ListAttendance(ctx, collegeID, filter)
		if err != nil {
			return err
		}

		registered := make(map[string]bool, len(regs))
		for _, reg := range regs {
			registered[reg.StudentID] = true
		}

		sum = &model.AttendanceSummary{
			EventID:           ev.ID,
			Title:             ev.Title,
			Status:            ResolveStatus(ev, now),
			Registered:        len(regs),
			Capacity:          ev.Capacity,
			RemainingCapacity: ev.Remaining(len(regs)),
		}
		for _, a := range marks {
			switch {
			case !registered[a.StudentID]:
				if a.Present {
					sum.WalkIns++
				}
			case a.Present:
				sum.Present++
			default:
				sum.Absent++
			}
		}
		sum.Unmarked = sum.Registered - sum.Present - sum.Absent
		sum.AttendancePct = percent(sum.Present, sum.Registered)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sum, nil
}

// FeedbackSummary aggregates the ratings of one event. The average is
// rounded to two decimals; Distribution always has keys 1 through 5.
func (e *ReportingEngine) FeedbackSummary(ctx context.Context, collegeID tenant.ID, eventID string) (sum *model.FeedbackSummary, err error) {
	defer func(start time.Time) { observe(ctx, "feedback_summary", start, err) }(time.Now())

	err = e.store.View(ctx, func(r repository.Reader) error {
		ev, err := r.GetEvent(ctx, collegeID, eventID)
		if err != nil {
			return err
		}
		rows, err := r.ListFeedback(ctx, collegeID, model.InteractionFilter{EventID: eventID})
		if err != nil {
			return err
		}

		sum = &model.FeedbackSummary{
			EventID:      ev.ID,
			Title:        ev.Title,
			Responses:    len(rows),
			Distribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
		}
		total := 0
		for i, fb := range rows {
			total += fb.Rating
			sum.Distribution[fb.Rating]++
			if i == 0 || fb.Rating < sum.MinRating {
				sum.MinRating = fb.Rating
			}
			if fb.Rating > sum.MaxRating {
				sum.MaxRating = fb.Rating
			}
		}
		if len(rows) > 0 {
			sum.AverageRating = round(float64(total)/float64(len(rows)), 2)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sum, nil
}

// StudentParticipation ranks students by events attended, then attendance
// rate, then name. Students who attended fewer than MinEvents (at least one)
// are left out. From and To restrict both counts to events starting inside
// the window.
func (e *ReportingEngine) StudentParticipation(ctx context.Context, collegeID tenant.ID, f model.ParticipationFilter) (out []model.StudentParticipation, err error) {
	defer func(start time.Time) { observe(ctx, "student_participation", start, err) }(time.Now())

	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, fmt.Errorf("%w: to must not be before from", repository.ErrValidation)
	}
	minEvents := max(f.MinEvents, 1)
	limit := e.opts.pageSize(f.Limit)
	err = e.store.View(ctx, func(r repository.Reader) error {
		if _, err := r.GetCollege(ctx, collegeID); err != nil {
			return err
		}
		students, err := r.ListStudents(ctx, collegeID, model.StudentFilter{})
		if err != nil {
			return err
		}
		events, err := r.ListEvents(ctx, collegeID, "")
		if err != nil {
			return err
		}
		regs, err := r.ListRegistrations(ctx, collegeID, model.InteractionFilter{})
		if err != nil {
			return err
		}
		marks, err := r.ListAttendance(ctx, collegeID, model.InteractionFilter{})
		if err != nil {
			return err
		}

		// Events arrive ordered by start time; remember that order for titles.
		order := make(map[string]int, len(events))
		titles := make(map[string]string, len(events))
		for i, ev := range events {
			if f.From != nil && ev.StartTime.Before(*f.From) {
				continue
			}
			if f.To != nil && ev.StartTime.After(*f.To) {
				continue
			}
			order[ev.ID] = i
			titles[ev.ID] = ev.Title
		}
		registered := make(map[string]int, len(students))
		for _, reg := range regs {
			if _, ok := titles[reg.EventID]; ok {
				registered[reg.StudentID]++
			}
		}
		attended := make(map[string][]string, len(students))
		for _, a := range marks {
			if _, ok := titles[a.EventID]; ok && a.Present {
				attended[a.StudentID] = append(attended[a.StudentID], a.EventID)
			}
		}

		out = make([]model.StudentParticipation, 0, len(students))
		for _, st := range students {
			eventIDs := attended[st.ID]
			if len(eventIDs) < minEvents {
				continue
			}
			slices.SortFunc(eventIDs, func(a, b string) int { return cmp.Compare(order[a], order[b]) })
			attendedTitles := make([]string, 0, len(eventIDs))
			for _, id := range eventIDs {
				attendedTitles = append(attendedTitles, titles[id])
			}
			out = append(out, model.StudentParticipation{
				StudentID:        st.ID,
				Name:             st.Name,
				Email:            st.Email,
				RollNo:           st.RollNo,
				EventsRegistered: registered[st.ID],
				EventsAttended:   len(eventIDs),
				AttendanceRate:   percent(len(eventIDs), registered[st.ID]),
				AttendedEvents:   attendedTitles,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b model.StudentParticipation) int {
		return cmp.Or(
			cmp.Compare(b.EventsAttended, a.EventsAttended),
			cmp.Compare(b.AttendanceRate, a.AttendanceRate),
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.StudentID, b.StudentID),
		)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RegistrationTrends buckets the events starting on or after midnight UTC
// days ago by calendar day of start_time. Each bucket counts its events,
// their registrations and the distinct students behind them. Days without
// events are omitted. days of 0 means 30.
func (e *ReportingEngine) RegistrationTrends(ctx context.Context, collegeID tenant.ID, days int) (out []model.RegistrationTrend, err error) {
	defer func(start time.Time) { observe(ctx, "registration_trends", start, err) }(time.Now())

	switch {
	case days == 0:
		days = 30
	case days < 0 || days > maxTrendDays:
		return nil, fmt.Errorf("%w: days must be between 1 and %d", repository.ErrValidation, maxTrendDays)
	}
	since := e.opts.clock().Truncate(24*time.Hour).AddDate(0, 0, -days)

	err = e.store.View(ctx, func(r repository.Reader) error {
		if _, err := r.GetCollege(ctx, collegeID); err != nil {
			return err
		}
		events, err := r.ListEvents(ctx, collegeID, "")
		if err != nil {
			return err
		}
		regs, err := r.ListRegistrations(ctx, collegeID, model.InteractionFilter{})
		if err != nil {
			return err
		}

		dayOf := make(map[string]string, len(events))
		buckets := make(map[string]*model.RegistrationTrend)
		for _, ev := range events {
			if ev.StartTime.Before(since) {
				continue
			}
			day := ev.StartTime.UTC().Format(time.DateOnly)
			dayOf[ev.ID] = day
			b, ok := buckets[day]
			if !ok {
				b = &model.RegistrationTrend{Date: day}
				buckets[day] = b
			}
			b.Events++
		}
		students := make(map[string]map[string]struct{}, len(buckets))
		for _, reg := range regs {
			day, ok := dayOf[reg.EventID]
			if !ok {
				continue
			}
			buckets[day].Registrations++
			if students[day] == nil {
				students[day] = make(map[string]struct{})
			}
			students[day][reg.StudentID] = struct{}{}
		}

		out = make([]model.RegistrationTrend, 0, len(buckets))
		for day, b := range buckets {
			b.UniqueStudents = len(students[day])
			out = append(out, *b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b model.RegistrationTrend) int { return cmp.Compare(a.Date, b.Date) })
	return out, nil
}
