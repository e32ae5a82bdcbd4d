package domain

import "fmt"

// SettlementState is the lifecycle of a single settlement attempt
type SettlementState string

const (
	SettlementValidating SettlementState = "validating"
	SettlementReserving  SettlementState = "reserving"
	SettlementCommitted  SettlementState = "committed"
	SettlementRejected   SettlementState = "rejected"
	SettlementRolledBack SettlementState = "rolled_back"
)

// SettlementAttempt tracks one settlement from validation to its final outcome.
//
//	Validating -> Reserving -> Committed
//	Validating -> Rejected
//	Reserving  -> RolledBack
//
// It is owned by a single request and is not safe for concurrent use.
type SettlementAttempt struct {
	state SettlementState
	err   error
}

// NewSettlementAttempt starts an attempt in Validating
func NewSettlementAttempt() *SettlementAttempt {
	return &SettlementAttempt{state: SettlementValidating}
}

// State returns the current state
func (a *SettlementAttempt) State() SettlementState {
	return a.state
}

// Err returns the error that ended the attempt, if any
func (a *SettlementAttempt) Err() error {
	return a.err
}

// Done reports whether the attempt reached a final state
func (a *SettlementAttempt) Done() bool {
	switch a.state {
	case SettlementCommitted, SettlementRejected, SettlementRolledBack:
		return true
	}
	return false
}

// Reserve moves from Validating into the unit of work
func (a *SettlementAttempt) Reserve() error {
	return a.move(SettlementValidating, SettlementReserving, nil)
}

// Commit marks the unit of work as committed
func (a *SettlementAttempt) Commit() error {
	return a.move(SettlementReserving, SettlementCommitted, nil)
}

// Reject ends the attempt before anything was reserved
func (a *SettlementAttempt) Reject(err error) error {
	return a.move(SettlementValidating, SettlementRejected, err)
}

// RollBack ends the attempt after the unit of work aborted
func (a *SettlementAttempt) RollBack(err error) error {
	return a.move(SettlementReserving, SettlementRolledBack, err)
}

func (a *SettlementAttempt) move(from, to SettlementState, cause error) error {
	if a.state != from {
		return fmt.Errorf("%w: settlement %s -> %s", ErrIllegalTransition, a.state, to)
	}
	a.state = to
	a.err = cause
	return nil
}
