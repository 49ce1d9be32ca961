package audit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/wI2L/jsondiff"

	"github.com/pmo-suite/change-request-service/internal/cache"
	"github.com/pmo-suite/change-request-service/internal/changerequest"
	"github.com/pmo-suite/change-request-service/internal/metrics"
	"github.com/pmo-suite/change-request-service/internal/storage"
)

// Entry describes one status change of a change request.
type Entry struct {
	ChangeRequestID int64
	ActorID         string
	Message         string
	Before          changerequest.ChangeRequest
	After           changerequest.ChangeRequest
	// Invalidate lists cache keys whose read models are stale after the change.
	Invalidate []string
}

type CommentWriter interface {
	CreateComment(ctx context.Context, c storage.Comment) (storage.Comment, error)
}

// Recorder writes the status-change comment and drops stale read models.
type Recorder struct {
	comments CommentWriter
	cache    cache.Cache
	logger   *logrus.Entry
	metrics  *metrics.Collectors
}

func NewRecorder(comments CommentWriter, c cache.Cache, logger *logrus.Logger) *Recorder {
	return &Recorder{
		comments: comments,
		cache:    c,
		logger:   logger.WithField("component", "audit"),
		metrics:  metrics.Get(),
	}
}

// Record runs every step even when an earlier one fails and returns the joined errors.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	log := r.logger.WithContext(ctx).WithFields(logrus.Fields{
		"change-request-id": e.ChangeRequestID,
		"actor-id":          e.ActorID,
	})

	comment := storage.Comment{
		EntityType: storage.EntityChangeRequest,
		EntityID:   e.ChangeRequestID,
		UserID:     e.ActorID,
		Content:    e.Message,
		System:     true,
	}
	if patch, err := diff(e.Before, e.After); err != nil {
		log.WithError(err).Warn("failed to diff change request snapshots")
	} else {
		comment.Changes = patch
	}

	var errs []error
	if _, err := r.comments.CreateComment(ctx, comment); err != nil {
		r.metrics.SideEffects.WithLabelValues("comment", "error").Inc()
		log.WithError(err).Error("failed to record status change comment")
		errs = append(errs, err)
	} else {
		r.metrics.SideEffects.WithLabelValues("comment", "ok").Inc()
	}

	if r.cache != nil && len(e.Invalidate) > 0 {
		if err := r.cache.Delete(ctx, e.Invalidate...); err != nil {
			r.metrics.SideEffects.WithLabelValues("invalidate", "error").Inc()
			log.WithError(err).Error("failed to invalidate cached read models")
			errs = append(errs, err)
		} else {
			r.metrics.SideEffects.WithLabelValues("invalidate", "ok").Inc()
		}
	}

	return errors.Join(errs...)
}

func diff(before, after changerequest.ChangeRequest) (json.RawMessage, error) {
	patch, err := jsondiff.Compare(before, after, jsondiff.Ignores("/updatedAt"))
	if err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return nil, nil
	}
	return json.Marshal(patch)
}
