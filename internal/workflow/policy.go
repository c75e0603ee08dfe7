// Package workflow holds the purchase order state machine and the role gate
// that guards it. Everything here is pure and safe for concurrent use.
//
// State graph:
//
//	Pendiente ──┬──> Aprobado ──┬──> Ordenado ──> Recibido
//	            │     (self)    │     (self)      (self)
//	            │               ├──> Recibido
//	            └──> Rechazado <┘
//
// Rechazado is terminal and does not even accept itself.
package workflow

// Reason explains a denied verdict.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonInsufficientRole  Reason = "insufficient_role"
	ReasonIllegalTransition Reason = "illegal_transition"
)

// Verdict is the policy decision for a single proposed transition.
type Verdict struct {
	From    Status
	To      Status
	Role    Role
	Allowed bool
	Reason  Reason
	// RequiresConfirmation marks an allowed but irreversible transition.
	RequiresConfirmation bool
}

// Denied reports whether the transition was refused.
func (v Verdict) Denied() bool {
	return !v.Allowed
}

// Request is a transition proposal for one order.
type Request struct {
	OrderID   int64
	Current   Status
	Requested Status
	Role      Role
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusApproved, StatusRejected, StatusOrdered, StatusReceived},
	StatusRejected: {},
	StatusOrdered:  {StatusOrdered, StatusReceived},
	StatusReceived: {StatusReceived},
}

func hasEdge(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Evaluate decides whether role may move an order from current to requested.
// An error is returned only when either status is outside the enum; policy
// refusals are expressed through the Verdict.
func Evaluate(current, requested Status, role Role) (Verdict, error) {
	if !current.Valid() {
		return Verdict{}, &InvalidStatusError{Value: string(current)}
	}
	if !requested.Valid() {
		return Verdict{}, &InvalidStatusError{Value: string(requested)}
	}

	v := Verdict{From: current, To: requested, Role: role}
	switch {
	case role != RoleAdmin:
		v.Reason = ReasonInsufficientRole
	case !hasEdge(current, requested):
		v.Reason = ReasonIllegalTransition
	default:
		v.Allowed = true
		v.RequiresConfirmation = requested == StatusRejected && current != StatusRejected
	}
	return v, nil
}

// EvaluateRequest is Evaluate on a Request.
func EvaluateRequest(req Request) (Verdict, error) {
	return Evaluate(req.Current, req.Requested, req.Role)
}

// AllowedNext lists the statuses role may move an order to from current, in
// workflow order. Non-admin roles always get an empty list.
func AllowedNext(current Status, role Role) ([]Status, error) {
	if !current.Valid() {
		return nil, &InvalidStatusError{Value: string(current)}
	}
	if role != RoleAdmin {
		return []Status{}, nil
	}
	next := transitions[current]
	out := make([]Status, len(next))
	copy(out, next)
	return out, nil
}
