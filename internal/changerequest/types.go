package changerequest

import (
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/pmo-suite/change-request-service/internal/permission"
)

type Type string

const (
	TypeSchedule   Type = "Schedule"
	TypeBudget     Type = "Budget"
	TypeScope      Type = "Scope"
	TypeDelegation Type = "Delegation"
	TypeStatus     Type = "Status"
	TypeClosure    Type = "Closure"
	TypeAdjustTeam Type = "AdjustTeam"
	TypeFaculty    Type = "Faculty"
)

var types = []Type{
	TypeSchedule, TypeBudget, TypeScope, TypeDelegation,
	TypeStatus, TypeClosure, TypeAdjustTeam, TypeFaculty,
}

func Types() []Type {
	return append([]Type(nil), types...)
}

func (t Type) Valid() bool {
	for _, known := range types {
		if t == known {
			return true
		}
	}
	return false
}

func ParseType(raw string) (Type, error) {
	t := Type(strings.TrimSpace(raw))
	if !t.Valid() {
		return "", errors.Errorf("%w: %q", ErrInvalidType, raw)
	}
	return t, nil
}

type Status string

const (
	StatusPending                  Status = "Pending"
	StatusPendingMainPMO           Status = "PendingMainPMO"
	StatusApproved                 Status = "Approved"
	StatusRejected                 Status = "Rejected"
	StatusReturnedToProjectManager Status = "ReturnedToProjectManager"
	StatusReturnedToSubPMO         Status = "ReturnedToSubPMO"
)

var statuses = []Status{
	StatusPending, StatusPendingMainPMO, StatusApproved, StatusRejected,
	StatusReturnedToProjectManager, StatusReturnedToSubPMO,
}

func Statuses() []Status {
	return append([]Status(nil), statuses...)
}

func (s Status) Valid() bool {
	for _, known := range statuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

func (s Status) IsPending() bool {
	return s == StatusPending || s == StatusPendingMainPMO
}

func (s Status) IsReturned() bool {
	return s == StatusReturnedToProjectManager || s == StatusReturnedToSubPMO
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", errors.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// ReturnTarget names the role a rejected request is routed back to for revision.
// The empty target means no return routing.
type ReturnTarget string

const (
	ReturnNone           ReturnTarget = ""
	ReturnProjectManager ReturnTarget = "ProjectManager"
	ReturnSubPMO         ReturnTarget = "SubPMO"
)

func ParseReturnTarget(raw string) (ReturnTarget, error) {
	switch t := ReturnTarget(strings.TrimSpace(raw)); t {
	case ReturnNone, ReturnProjectManager, ReturnSubPMO:
		return t, nil
	default:
		return "", errors.Errorf("%w: %q", ErrInvalidReturnTarget, raw)
	}
}

func (t ReturnTarget) status() Status {
	if t == ReturnSubPMO {
		return StatusReturnedToSubPMO
	}
	return StatusReturnedToProjectManager
}

type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionResubmit Action = "resubmit"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string
	Role permission.Role
}

func (a Actor) Permissions() permission.Set {
	return permission.For(a.Role)
}

type ChangeRequest struct {
	ID              int64      `json:"id"`
	ProjectID       int64      `json:"projectId"`
	Type            Type       `json:"type"`
	Status          Status     `json:"status"`
	Details         string     `json:"details"`
	RejectionReason *string    `json:"rejectionReason,omitempty"`
	RequestedBy     string     `json:"requestedByUserId"`
	ReviewedBy      *string    `json:"reviewedByUserId,omitempty"`
	ReviewedAt      *time.Time `json:"reviewedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}
