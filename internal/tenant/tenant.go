// Package tenant defines the college identifier that scopes every core
// operation. A tenant.ID is parsed once at the boundary and then passed
// explicitly; nothing in the core reads it from ambient state.
package tenant

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ID identifies a college, the unit of data isolation.
type ID string

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)

// ErrInvalid is returned by Parse for malformed identifiers.
var ErrInvalid = errors.New("invalid college id")

// Parse trims and validates a raw college identifier.
func Parse(raw string) (ID, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalid)
	}
	if !idPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return ID(s), nil
}

// String implements fmt.Stringer.
func (id ID) String() string { return string(id) }

