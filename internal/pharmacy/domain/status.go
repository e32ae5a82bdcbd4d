// Package domain holds the pharmacy fulfillment model and its state machines.
package domain

import (
	"database/sql/driver"
	stderrors "errors"
	"fmt"
)

// ErrIllegalTransition is returned when a state machine is asked to make a move it does not allow
var ErrIllegalTransition = stderrors.New("illegal state transition")

// Status is the fulfillment state of a prescription
type Status string

const (
	// StatusPending means at least one requested medicine was not in the catalog
	StatusPending Status = "Pending"
	// StatusReady means every requested medicine resolved against the catalog
	StatusReady Status = "Ready"
	// StatusDispensed is terminal: an invoice has settled against the prescription
	StatusDispensed Status = "Dispensed"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReady, StatusDispensed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	return s == StatusDispensed
}

// InitialStatus picks the status of a newly reconciled prescription
func InitialStatus(missing int) Status {
	if missing == 0 {
		return StatusReady
	}
	return StatusPending
}

// CanTransition reports whether from -> to is a legal move.
// Pending and Ready only ever move to Dispensed.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending, StatusReady:
		return to == StatusDispensed
	default:
		return false
	}
}

// Transition returns the new status, or ErrIllegalTransition
func (s Status) Transition(to Status) (Status, error) {
	if !CanTransition(s, to) {
		return s, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s, to)
	}
	return to, nil
}

// Scan implements sql.Scanner and rejects unknown values
func (s *Status) Scan(src interface{}) error {
	var v string
	switch t := src.(type) {
	case string:
		v = t
	case []byte:
		v = string(t)
	default:
		return fmt.Errorf("cannot scan %T into Status", src)
	}

	status := Status(v)
	if !status.Valid() {
		return fmt.Errorf("unknown prescription status %q", v)
	}
	*s = status
	return nil
}

// Value implements driver.Valuer
func (s Status) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown prescription status %q", string(s))
	}
	return string(s), nil
}
