// Package service implements the tenant-scoped core: entity management, the
// interaction ledger and reporting. Every operation takes the college id as an
// explicit argument, validates its typed request once, and runs its reads and
// writes inside a single repository transaction or snapshot.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/campus-events/internal/logging"
	"github.com/Shivanand-hulikatti/campus-events/internal/metrics"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository"
	"github.com/Shivanand-hulikatti/campus-events/internal/validation"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Options tunes the services. Zero values select defaults.
type Options struct {
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// CheckInLead opens attendance marking this long before start_time.
	CheckInLead time.Duration

	DefaultPageSize int
	MaxPageSize     int
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.DefaultPageSize <= 0 {
		o.DefaultPageSize = defaultPageSize
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = maxPageSize
	}
	if o.DefaultPageSize > o.MaxPageSize {
		o.DefaultPageSize = o.MaxPageSize
	}
	return o
}

// clock returns the current time in UTC at the store's microsecond precision.
func (o Options) clock() time.Time {
	return o.Now().UTC().Truncate(time.Microsecond)
}

func (o Options) pageSize(limit int) int {
	switch {
	case limit <= 0:
		return o.DefaultPageSize
	case limit > o.MaxPageSize:
		return o.MaxPageSize
	default:
		return limit
	}
}

// validate runs struct rules and folds failures into ErrValidation.
func validate(req any) error {
	if verr := validation.ValidateStruct(req); verr != nil {
		return fmt.Errorf("%w: %s", repository.ErrValidation, verr.Error())
	}
	return nil
}

func newID() string {
	return uuid.New().String()
}

// normalizeTime converts t to UTC at microsecond precision so values
// round-trip through PostgreSQL unchanged.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func normalizeOptionalTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := normalizeTime(*t)
	return &n
}

// trimOptional trims s and maps blank strings to nil.
func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func lowerOptional(s *string) *string {
	s = trimOptional(s)
	if s == nil {
		return nil
	}
	v := strings.ToLower(*s)
	return &v
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, repository.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, repository.ErrValidation):
		return metrics.OutcomeInvalid
	case errors.Is(err, repository.ErrCapacityExceeded):
		return metrics.OutcomeFull
	case errors.Is(err, repository.ErrConflict):
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}

// observe records metrics and a log line for one core operation. Rejected
// operations log at debug; infrastructure failures at error.
func observe(ctx context.Context, op string, start time.Time, err error) {
	elapsed := time.Since(start)
	outcome := outcomeOf(err)
	metrics.RecordOperation(op, outcome, elapsed)

	logger := logging.Ctx(ctx)
	switch outcome {
	case metrics.OutcomeOK:
		logger.Debug().Str("operation", op).Dur("duration", elapsed).Msg("operation completed")
	case metrics.OutcomeError:
		logger.Error().Err(err).Str("operation", op).Dur("duration", elapsed).Msg("operation failed")
	default:
		logger.Debug().Str("operation", op).Str("outcome", outcome).Str("reason", err.Error()).Msg("operation rejected")
	}
}
