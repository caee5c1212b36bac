package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/tenant"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

// seed creates one college with a student and an event.
func seed(t *testing.T, s Store, cid tenant.ID) {
	t.Helper()
	err := s.WithTx(context.Background(), func(tx Tx) error {
		if err := tx.InsertCollege(context.Background(), &model.College{ID: cid, Name: "College " + cid.String(), CreatedAt: t0, UpdatedAt: t0}); err != nil {
			return err
		}
		if err := tx.InsertStudent(context.Background(), &model.Student{ID: "s1", CollegeID: cid, Name: "Asha", Email: "asha@example.edu", CreatedAt: t0, UpdatedAt: t0}); err != nil {
			return err
		}
		return tx.InsertEvent(context.Background(), &model.Event{
			ID: "e1", CollegeID: cid, Title: "Go Workshop", Type: model.EventTypeWorkshop,
			StartTime: t0.Add(time.Hour), EndTime: t0.Add(3 * time.Hour), Capacity: ptr(2),
			CreatedAt: t0, UpdatedAt: t0,
		})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestMemoryStore_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, "alpha")

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx Tx) error {
		if err := tx.InsertStudent(ctx, &model.Student{ID: "s2", CollegeID: "alpha", Name: "Ravi", Email: "ravi@example.edu"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	_ = s.View(ctx, func(r Reader) error {
		if _, err := r.GetStudent(ctx, "alpha", "s2"); !errors.Is(err, ErrNotFound) {
			t.Errorf("rolled back student visible: err = %v", err)
		}
		return nil
	})
}

func TestMemoryStore_ViewIsStableDuringCommit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, "alpha")

	inView := make(chan struct{})
	committed := make(chan struct{})
	var before, after int

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.View(ctx, func(r Reader) error {
			before, _ = r.CountStudents(ctx, "alpha")
			close(inView)
			<-committed
			after, _ = r.CountStudents(ctx, "alpha")
			return nil
		})
	}()

	<-inView
	err := s.WithTx(ctx, func(tx Tx) error {
		return tx.InsertStudent(ctx, &model.Student{ID: "s2", CollegeID: "alpha", Name: "Ravi", Email: "ravi@example.edu"})
	})
	close(committed)
	wg.Wait()

	if err != nil {
		t.Fatalf("WithTx() = %v (writer must not block on an open snapshot)", err)
	}
	if before != 1 || after != 1 {
		t.Errorf("snapshot counts = %d, %d; want 1, 1", before, after)
	}
}

func TestMemoryStore_Constraints(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		write   func(tx Tx) error
		wantErr error
	}{
		{
			name: "duplicate college id",
			write: func(tx Tx) error {
				return tx.InsertCollege(ctx, &model.College{ID: "alpha", Name: "Again"})
			},
			wantErr: ErrConflict,
		},
		{
			name: "duplicate email in college",
			write: func(tx Tx) error {
				return tx.InsertStudent(ctx, &model.Student{ID: "s9", CollegeID: "alpha", Name: "Clone", Email: "asha@example.edu"})
			},
			wantErr: ErrConflict,
		},
		{
			name: "student in unknown college",
			write: func(tx Tx) error {
				return tx.InsertStudent(ctx, &model.Student{ID: "s9", CollegeID: "nowhere", Name: "Lost", Email: "lost@example.edu"})
			},
			wantErr: ErrNotFound,
		},
		{
			name: "event window inverted",
			write: func(tx Tx) error {
				return tx.InsertEvent(ctx, &model.Event{ID: "bad", CollegeID: "alpha", Title: "Bad", StartTime: t0, EndTime: t0})
			},
			wantErr: ErrValidation,
		},
		{
			name: "registration for other college's event",
			write: func(tx Tx) error {
				return tx.InsertRegistration(ctx, &model.Registration{ID: "r1", CollegeID: "beta", EventID: "e1", StudentID: "s1"})
			},
			wantErr: ErrNotFound,
		},
		{
			name: "feedback rating out of range",
			write: func(tx Tx) error {
				return tx.InsertFeedback(ctx, &model.Feedback{ID: "f1", CollegeID: "alpha", EventID: "e1", StudentID: "s1", Rating: 6})
			},
			wantErr: ErrValidation,
		},
		{
			name: "update missing feedback",
			write: func(tx Tx) error {
				return tx.UpdateFeedback(ctx, &model.Feedback{CollegeID: "alpha", EventID: "e1", StudentID: "s1", Rating: 3})
			},
			wantErr: ErrNotFound,
		},
		{
			name: "delete college with students",
			write: func(tx Tx) error {
				return tx.DeleteCollege(ctx, "alpha")
			},
			wantErr: ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMemoryStore()
			seed(t, s, "alpha")
			err := s.WithTx(ctx, tt.write)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMemoryStore_DuplicateRegistration(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, "alpha")

	reg := &model.Registration{ID: "r1", CollegeID: "alpha", EventID: "e1", StudentID: "s1", RegisteredAt: t0}
	if err := s.WithTx(ctx, func(tx Tx) error { return tx.InsertRegistration(ctx, reg) }); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	again := *reg
	again.ID = "r2"
	err := s.WithTx(ctx, func(tx Tx) error { return tx.InsertRegistration(ctx, &again) })
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("second insert error = %v, want ErrConflict", err)
	}

	err = s.WithTx(ctx, func(tx Tx) error { return tx.DeleteStudent(ctx, "alpha", "s1") })
	if !errors.Is(err, ErrConflict) {
		t.Errorf("delete student with registration = %v, want ErrConflict", err)
	}
}

func TestMemoryStore_UpsertAttendanceLatestWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, "alpha")

	mark := func(id string, present bool, at time.Time) *model.Attendance {
		var stored *model.Attendance
		err := s.WithTx(ctx, func(tx Tx) error {
			var err error
			stored, err = tx.UpsertAttendance(ctx, &model.Attendance{
				ID: id, CollegeID: "alpha", EventID: "e1", StudentID: "s1", Present: present, MarkedAt: at,
			})
			return err
		})
		if err != nil {
			t.Fatalf("UpsertAttendance: %v", err)
		}
		return stored
	}

	first := mark("a1", true, t0.Add(2*time.Hour))
	if first.ID != "a1" || !first.Present {
		t.Fatalf("first mark = %+v", first)
	}

	stale := mark("a2", false, t0.Add(time.Hour))
	if !stale.Present || !stale.MarkedAt.Equal(t0.Add(2*time.Hour)) {
		t.Errorf("older mark replaced newer one: %+v", stale)
	}

	newer := mark("a3", false, t0.Add(3*time.Hour))
	if newer.Present || newer.ID != "a1" {
		t.Errorf("newer mark = %+v, want absent with the first id", newer)
	}

	_ = s.View(ctx, func(r Reader) error {
		rows, _ := r.ListAttendance(ctx, "alpha", model.InteractionFilter{EventID: "e1"})
		if len(rows) != 1 {
			t.Errorf("attendance rows = %d, want 1", len(rows))
		}
		return nil
	})
}

func TestMemoryStore_ListStudentsFilterAndPage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, "alpha")
	err := s.WithTx(ctx, func(tx Tx) error {
		for _, st := range []model.Student{
			{ID: "s2", CollegeID: "alpha", Name: "Bala", Email: "bala@example.edu", RollNo: ptr("CS-02")},
			{ID: "s3", CollegeID: "alpha", Name: "Chitra", Email: "chitra@example.edu", RollNo: ptr("EE-01")},
		} {
			if err := tx.InsertStudent(ctx, &st); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	_ = s.View(ctx, func(r Reader) error {
		all, _ := r.ListStudents(ctx, "alpha", model.StudentFilter{})
		if len(all) != 3 || all[0].Name != "Asha" || all[2].Name != "Chitra" {
			t.Errorf("ListStudents() order = %v", all)
		}
		byRoll, _ := r.ListStudents(ctx, "alpha", model.StudentFilter{Query: "cs-"})
		if len(byRoll) != 1 || byRoll[0].ID != "s2" {
			t.Errorf("query by roll number = %v", byRoll)
		}
		page, _ := r.ListStudents(ctx, "alpha", model.StudentFilter{Limit: 1, Offset: 1})
		if len(page) != 1 || page[0].ID != "s2" {
			t.Errorf("page = %v", page)
		}
		beyond, _ := r.ListStudents(ctx, "alpha", model.StudentFilter{Offset: 10})
		if len(beyond) != 0 {
			t.Errorf("offset past end = %v", beyond)
		}
		return nil
	})
}

func TestMemoryStore_DeleteInteractionsScoped(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, "alpha")
	seed(t, s, "beta")

	err := s.WithTx(ctx, func(tx Tx) error {
		for _, cid := range []tenant.ID{"alpha", "beta"} {
			if err := tx.InsertRegistration(ctx, &model.Registration{ID: "r-" + cid.String(), CollegeID: cid, EventID: "e1", StudentID: "s1", RegisteredAt: t0}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	var removed int
	err = s.WithTx(ctx, func(tx Tx) error {
		var err error
		removed, err = tx.DeleteInteractions(ctx, "alpha", model.InteractionFilter{EventID: "e1"})
		return err
	})
	if err != nil || removed != 1 {
		t.Fatalf("DeleteInteractions() = %d, %v; want 1, nil", removed, err)
	}

	_ = s.View(ctx, func(r Reader) error {
		if n, _ := r.CountRegistrations(ctx, "beta", "e1"); n != 1 {
			t.Errorf("beta registrations = %d, want 1", n)
		}
		return nil
	})
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMemoryStore()
	if err := s.WithTx(ctx, func(Tx) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("WithTx() = %v, want context.Canceled", err)
	}
	if err := s.View(ctx, func(Reader) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("View() = %v, want context.Canceled", err)
	}
}
