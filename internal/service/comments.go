package service

import (
	"context"
	"strings"

	"github.com/pmo-suite/change-request-service/internal/changerequest"
	"github.com/pmo-suite/change-request-service/internal/storage"
)

const maxCommentLength = 4000

func (s *Service) AddComment(ctx context.Context, actor changerequest.Actor, entity storage.EntityType, entityID int64, content string) (storage.Comment, error) {
	if !entity.Valid() {
		return storage.Comment{}, storage.ErrCommentTargetInvalid
	}
	if entityID <= 0 {
		return storage.Comment{}, invalid("id must be positive")
	}
	content = strings.TrimSpace(content)
	switch {
	case content == "":
		return storage.Comment{}, invalid("content is required")
	case len(content) > maxCommentLength:
		return storage.Comment{}, invalid("content is too long")
	}
	if entity == storage.EntityChangeRequest {
		if _, err := s.store.GetChangeRequest(ctx, entityID); err != nil {
			return storage.Comment{}, err
		}
	}
	return s.store.CreateComment(ctx, storage.Comment{
		EntityType: entity,
		EntityID:   entityID,
		UserID:     actor.ID,
		Content:    content,
	})
}

// ListComments returns the thread of an entity oldest first, system entries included.
func (s *Service) ListComments(ctx context.Context, entity storage.EntityType, entityID int64) ([]storage.Comment, error) {
	if !entity.Valid() {
		return nil, storage.ErrCommentTargetInvalid
	}
	if entity == storage.EntityChangeRequest {
		if _, err := s.store.GetChangeRequest(ctx, entityID); err != nil {
			return nil, err
		}
	}
	return s.store.ListComments(ctx, entity, entityID)
}

// Export returns the rows of the change request report.
func (s *Service) Export(ctx context.Context, actor changerequest.Actor, filter storage.ListFilter) ([]changerequest.ChangeRequest, error) {
	if !actor.Permissions().CanViewReports {
		return nil, changerequest.ErrUnauthorized
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, changerequest.ErrInvalidStatus
		}
	}
	return s.store.ListChangeRequests(ctx, filter)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
