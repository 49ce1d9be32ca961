package storage

import (
	"encoding/json"
	"time"

	"github.com/pmo-suite/change-request-service/internal/changerequest"
)

type EntityType string

const (
	EntityTask          EntityType = "task"
	EntityAssignment    EntityType = "assignment"
	EntityChangeRequest EntityType = "change_request"
)

func (e EntityType) Valid() bool {
	switch e {
	case EntityTask, EntityAssignment, EntityChangeRequest:
		return true
	default:
		return false
	}
}

type Comment struct {
	ID         int64           `json:"id"`
	EntityType EntityType      `json:"entityType"`
	EntityID   int64           `json:"entityId"`
	UserID     string          `json:"userId"`
	Content    string          `json:"content"`
	System     bool            `json:"system"`
	Changes    json.RawMessage `json:"changes,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// ListFilter narrows ListChangeRequests. Zero-valued fields do not filter.
type ListFilter struct {
	Statuses    []changerequest.Status
	ProjectID   int64
	RequestedBy string
	Limit       int
}

// StatusPatch is applied by UpdateStatus. Nil ReviewedBy/ReviewedAt/Details keep the stored
// value; RejectionReason is always written, so nil clears it.
type StatusPatch struct {
	Status          changerequest.Status
	RejectionReason *string
	ReviewedBy      *string
	ReviewedAt      *time.Time
	Details         *string
}
