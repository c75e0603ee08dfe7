package workflow

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of a purchase order. Values are persisted and
// transported as the literal strings below.
type Status string

const (
	StatusPending  Status = "Pendiente"
	StatusApproved Status = "Aprobado"
	StatusRejected Status = "Rechazado"
	StatusOrdered  Status = "Ordenado"
	StatusReceived Status = "Recibido"
)

// ErrInvalidStatus is matched by every error produced for an out-of-enum status.
var ErrInvalidStatus = errors.New("invalid status")

// InvalidStatusError reports the offending raw value.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status %q", e.Value)
}

// Is lets errors.Is(err, ErrInvalidStatus) match.
func (e *InvalidStatusError) Is(target error) bool {
	return target == ErrInvalidStatus
}

var statuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusOrdered, StatusReceived}

// Statuses returns every status in workflow order.
func Statuses() []Status {
	out := make([]Status, len(statuses))
	copy(out, statuses)
	return out
}

// Valid reports whether s is one of the five known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusOrdered, StatusReceived:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// Terminal reports whether no transition other than a self-loop can leave s.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusReceived
}

// Deletable reports whether an order in s may still be removed. Orders already
// placed with a supplier or received stay on record.
func (s Status) Deletable() bool {
	return s == StatusPending || s == StatusRejected
}

// ParseStatus matches raw byte-for-byte; no trimming or case folding.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", &InvalidStatusError{Value: raw}
	}
	return s, nil
}
