package changerequest

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/pmo-suite/change-request-service/internal/permission"
)

// Event is a requested transition together with its caller-supplied input.
type Event struct {
	Action   Action
	Actor    Actor
	Reason   string
	ReturnTo ReturnTarget
}

// Decision is the outcome of a successful transition.
type Decision struct {
	Action   Action
	From     Status
	To       Status
	ReturnTo ReturnTarget
	// Reason is the rejection reason to store. Nil clears it.
	Reason *string
	// Reviewed is set when the actor should be recorded as the reviewer.
	Reviewed bool
}

func (d Decision) Changed() bool {
	return d.From != d.To
}

// StatusChangeMessage is the audit text emitted for a status change.
func StatusChangeMessage(from, to Status) string {
	return fmt.Sprintf("Status changed from %s to %s", from, to)
}

// firstLine reports whether the role reviews ahead of Main PMO.
func firstLine(role permission.Role) bool {
	return role == permission.RoleSubPMO || role == permission.RoleDepartmentDirector
}

// Next computes the transition for ev applied to cr. It has no side effects.
func Next(cr ChangeRequest, ev Event) (Decision, error) {
	if err := authorize(cr, ev); err != nil {
		return Decision{}, err
	}
	if cr.Status.IsTerminal() {
		return Decision{}, ErrTerminalState
	}

	switch ev.Action {
	case ActionApprove:
		return approve(cr, ev)
	case ActionReject:
		return reject(cr, ev)
	case ActionResubmit:
		return resubmit(cr, ev)
	default:
		return Decision{}, errors.Errorf("%w: unknown action %q", ErrInvalidTransition, ev.Action)
	}
}

func authorize(cr ChangeRequest, ev Event) error {
	if ev.Actor.Permissions().CanApproveChangeRequest {
		return nil
	}
	if ev.Action == ActionResubmit && ev.Actor.ID != "" && ev.Actor.ID == cr.RequestedBy {
		return nil
	}
	return ErrUnauthorized
}

func approve(cr ChangeRequest, ev Event) (Decision, error) {
	if !cr.Status.IsPending() {
		return Decision{}, ErrInvalidTransition
	}
	d := Decision{Action: ActionApprove, From: cr.Status, To: StatusApproved, Reviewed: true}
	if cr.Type != TypeFaculty && cr.Status == StatusPending && firstLine(ev.Actor.Role) {
		d.To = StatusPendingMainPMO
	}
	return d, nil
}

func reject(cr ChangeRequest, ev Event) (Decision, error) {
	if !cr.Status.IsPending() {
		return Decision{}, ErrInvalidTransition
	}
	reason := strings.TrimSpace(ev.Reason)
	if reason == "" {
		return Decision{}, ErrReasonRequired
	}

	target := ev.ReturnTo
	if firstLine(ev.Actor.Role) {
		target = ReturnProjectManager
	}

	d := Decision{Action: ActionReject, From: cr.Status, ReturnTo: target, Reason: &reason, Reviewed: true}
	switch target {
	case ReturnNone:
		d.To = StatusRejected
	case ReturnProjectManager, ReturnSubPMO:
		d.To = target.status()
	default:
		return Decision{}, errors.Errorf("%w: %q", ErrInvalidReturnTarget, target)
	}
	return d, nil
}

func resubmit(cr ChangeRequest, _ Event) (Decision, error) {
	if !cr.Status.IsReturned() {
		return Decision{}, ErrInvalidTransition
	}
	return Decision{Action: ActionResubmit, From: cr.Status, To: StatusPending}, nil
}

// ActionForStatus maps the status a client asks for onto a workflow action. A ReturnedTo*
// status carries its own return target.
func ActionForStatus(s Status) (Action, ReturnTarget, error) {
	switch s {
	case StatusApproved, StatusPendingMainPMO:
		return ActionApprove, ReturnNone, nil
	case StatusRejected:
		return ActionReject, ReturnNone, nil
	case StatusReturnedToProjectManager:
		return ActionReject, ReturnProjectManager, nil
	case StatusReturnedToSubPMO:
		return ActionReject, ReturnSubPMO, nil
	case StatusPending:
		return ActionResubmit, ReturnNone, nil
	default:
		return "", ReturnNone, errors.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}
