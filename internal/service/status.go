package service

import (
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

// ResolveStatus derives the temporal state of e at now. Both window
// boundaries count as ongoing; a cancelled event is always cancelled.
func ResolveStatus(e *model.Event, now time.Time) model.EventStatus {
	switch {
	case e.IsCancelled:
		return model.StatusCancelled
	case now.Before(e.StartTime):
		return model.StatusUpcoming
	case now.After(e.EndTime):
		return model.StatusCompleted
	default:
		return model.StatusOngoing
	}
}

// withStatus returns a copy of e with Status filled in for now.
func withStatus(e model.Event, now time.Time) model.Event {
	e.Status = ResolveStatus(&e, now)
	return e
}
