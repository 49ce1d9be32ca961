package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pmo-suite/change-request-service/internal/audit"
	"github.com/pmo-suite/change-request-service/internal/cache"
	"github.com/pmo-suite/change-request-service/internal/changerequest"
	"github.com/pmo-suite/change-request-service/internal/metrics"
	"github.com/pmo-suite/change-request-service/internal/permission"
	"github.com/pmo-suite/change-request-service/internal/storage"
)

var tracer = otel.Tracer("change-request-service/service")

// Notifier receives one entry per status change. Its failures never undo the change.
type Notifier interface {
	Record(ctx context.Context, e audit.Entry) error
}

type Service struct {
	store    storage.Store
	notifier Notifier
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *logrus.Entry
	metrics  *metrics.Collectors
	now      func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithCache enables caching of pending lists for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store storage.Store, logger *logrus.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  logger.WithField("component", "workflow"),
		metrics: metrics.Get(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func invalid(msg string) error {
	return &changerequest.Error{Kind: changerequest.KindValidation, Message: msg}
}

type CreateInput struct {
	ProjectID int64
	Type      changerequest.Type
	Details   string
}

func (s *Service) Create(ctx context.Context, actor changerequest.Actor, in CreateInput) (changerequest.ChangeRequest, error) {
	if !actor.Permissions().CanSubmitChangeRequest {
		return changerequest.ChangeRequest{}, changerequest.ErrUnauthorized
	}
	if in.ProjectID <= 0 {
		return changerequest.ChangeRequest{}, invalid("projectId must be positive")
	}
	if !in.Type.Valid() {
		return changerequest.ChangeRequest{}, changerequest.ErrInvalidType
	}
	details := strings.TrimSpace(in.Details)
	if details == "" {
		return changerequest.ChangeRequest{}, invalid("details are required")
	}

	created, err := s.store.CreateChangeRequest(ctx, changerequest.ChangeRequest{
		ProjectID:   in.ProjectID,
		Type:        in.Type,
		Status:      changerequest.StatusPending,
		Details:     details,
		RequestedBy: actor.ID,
	})
	if err != nil {
		return changerequest.ChangeRequest{}, err
	}
	s.dropPending(ctx)

	s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"change-request-id": created.ID,
		"project-id":        created.ProjectID,
		"type":              created.Type,
		"actor-id":          actor.ID,
	}).Info("change request submitted")
	return created, nil
}

func (s *Service) Get(ctx context.Context, id int64) (changerequest.ChangeRequest, error) {
	return s.store.GetChangeRequest(ctx, id)
}

func (s *Service) ListByProject(ctx context.Context, projectID int64) ([]changerequest.ChangeRequest, error) {
	if projectID <= 0 {
		return nil, invalid("projectId must be positive")
	}
	return s.store.ListChangeRequests(ctx, storage.ListFilter{ProjectID: projectID})
}

// ListMine returns the requests the actor submitted.
func (s *Service) ListMine(ctx context.Context, actor changerequest.Actor) ([]changerequest.ChangeRequest, error) {
	return s.store.ListChangeRequests(ctx, storage.ListFilter{RequestedBy: actor.ID})
}

const (
	pendingKeyPrefix = "change-requests:pending:"
	// pendingGenerationKey holds a token that every invalidation removes. A fill only
	// survives if the token it started with is still in place after the write.
	pendingGenerationKey = pendingKeyPrefix + "generation"
)

type pendingScope struct {
	name     string
	statuses []changerequest.Status
}

var (
	mainScope      = pendingScope{"main", []changerequest.Status{changerequest.StatusPending, changerequest.StatusPendingMainPMO}}
	firstLineScope = pendingScope{"first-line", []changerequest.Status{changerequest.StatusPending}}
)

func scopeFor(role permission.Role) (pendingScope, bool) {
	switch role {
	case permission.RoleMainPMO, permission.RoleAdministrator:
		return mainScope, true
	case permission.RoleSubPMO, permission.RoleDepartmentDirector:
		return firstLineScope, true
	default:
		return pendingScope{}, false
	}
}

// PendingCacheKeys lists every cache key to delete when a pending list goes stale.
func PendingCacheKeys() []string {
	return []string{pendingKeyPrefix + mainScope.name, pendingKeyPrefix + firstLineScope.name, pendingGenerationKey}
}

// ListPending returns the requests awaiting the actor's decision.
func (s *Service) ListPending(ctx context.Context, actor changerequest.Actor) ([]changerequest.ChangeRequest, error) {
	scope, ok := scopeFor(actor.Role)
	if !ok || !actor.Permissions().CanApproveChangeRequest {
		return nil, changerequest.ErrUnauthorized
	}
	key := pendingKeyPrefix + scope.name
	log := s.logger.WithContext(ctx).WithField("cache-key", key)

	var generation string
	if s.cache != nil {
		raw, hit, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			log.WithError(err).Warn("pending cache read failed")
		case hit:
			var cached []changerequest.ChangeRequest
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
			log.Warn("discarding undecodable pending cache entry")
		}
		if err == nil {
			generation = s.pendingGeneration(ctx, log)
		}
	}

	list, err := s.store.ListChangeRequests(ctx, storage.ListFilter{Statuses: scope.statuses})
	if err != nil {
		return nil, err
	}
	if generation != "" {
		s.fillPending(ctx, log, key, generation, list)
	}
	return list, nil
}

// pendingGeneration returns the current invalidation token, minting one when none is set.
// An empty result disables the fill.
func (s *Service) pendingGeneration(ctx context.Context, log *logrus.Entry) string {
	raw, hit, err := s.cache.Get(ctx, pendingGenerationKey)
	if err != nil {
		log.WithError(err).Warn("pending cache generation read failed")
		return ""
	}
	if hit {
		return string(raw)
	}
	token := uuid.NewString()
	if err := s.cache.Set(ctx, pendingGenerationKey, []byte(token), 0); err != nil {
		log.WithError(err).Warn("pending cache generation write failed")
		return ""
	}
	return token
}

// fillPending caches list under key, then drops it again if an invalidation ran since
// generation was read. Invalidations after the re-check delete the entry themselves.
func (s *Service) fillPending(ctx context.Context, log *logrus.Entry, key, generation string, list []changerequest.ChangeRequest) {
	raw, err := json.Marshal(list)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		log.WithError(err).Warn("pending cache write failed")
		return
	}
	current, hit, err := s.cache.Get(ctx, pendingGenerationKey)
	if err == nil && hit && string(current) == generation {
		return
	}
	log.Debug("pending list invalidated while loading, not caching")
	if err := s.cache.Delete(ctx, key); err != nil {
		log.WithError(err).Warn("pending cache invalidation failed")
	}
}

type ReviewInput struct {
	Status          changerequest.Status
	RejectionReason string
	ReturnTo        changerequest.ReturnTarget
	// Details replaces the description; only accepted on resubmission.
	Details *string
}

// Review applies the transition the caller asked for. A concurrent transition on the same
// request makes this call fail with storage.ErrStaleState; nothing is retried here.
func (s *Service) Review(ctx context.Context, actor changerequest.Actor, id int64, in ReviewInput) (cr changerequest.ChangeRequest, err error) {
	ctx, span := tracer.Start(ctx, "workflow.Review")
	span.SetAttributes(
		attribute.Int64("change_request.id", id),
		attribute.String("change_request.requested_status", string(in.Status)),
		attribute.String("actor.role", string(actor.Role)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	action, implied, err := changerequest.ActionForStatus(in.Status)
	if err != nil {
		return s.fail(err)
	}
	returnTo := in.ReturnTo
	if returnTo == changerequest.ReturnNone {
		returnTo = implied
	}

	current, err := s.store.GetChangeRequest(ctx, id)
	if err != nil {
		return s.fail(err)
	}

	decision, err := changerequest.Next(current, changerequest.Event{
		Action:   action,
		Actor:    actor,
		Reason:   in.RejectionReason,
		ReturnTo: returnTo,
	})
	if err != nil {
		return s.fail(err)
	}

	patch := storage.StatusPatch{
		Status:          decision.To,
		RejectionReason: decision.Reason,
	}
	if decision.Reviewed {
		now := s.now()
		reviewer := actor.ID
		patch.ReviewedBy = &reviewer
		patch.ReviewedAt = &now
	}
	if in.Details != nil {
		details := strings.TrimSpace(*in.Details)
		if decision.Action != changerequest.ActionResubmit {
			return s.fail(invalid("details can only be edited when resubmitting"))
		}
		if details == "" {
			return s.fail(invalid("details are required"))
		}
		patch.Details = &details
	}

	updated, err := s.store.UpdateStatus(ctx, id, decision.From, patch)
	if err != nil {
		return s.fail(err)
	}
	s.metrics.Transitions.WithLabelValues(string(decision.From), string(decision.To), string(decision.Action)).Inc()

	s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"change-request-id": id,
		"actor-id":          actor.ID,
		"actor-role":        actor.Role,
		"action":            decision.Action,
		"from":              decision.From,
		"to":                decision.To,
	}).Info("change request transitioned")

	if decision.Changed() {
		s.notify(ctx, audit.Entry{
			ChangeRequestID: id,
			ActorID:         actor.ID,
			Message:         changerequest.StatusChangeMessage(decision.From, decision.To),
			Before:          current,
			After:           updated,
			Invalidate:      PendingCacheKeys(),
		})
	}
	return updated, nil
}

func (s *Service) fail(err error) (changerequest.ChangeRequest, error) {
	kind := "internal"
	switch k, ok := changerequest.KindOf(err); {
	case ok:
		kind = k.String()
	case errors.Is(err, storage.ErrStaleState):
		kind = changerequest.KindConflict.String()
	case errors.Is(err, storage.ErrChangeRequestNotFound):
		kind = "not_found"
	}
	s.metrics.TransitionFailures.WithLabelValues(kind).Inc()
	return changerequest.ChangeRequest{}, err
}

func (s *Service) notify(ctx context.Context, e audit.Entry) {
	if s.notifier == nil {
		s.dropPending(ctx)
		return
	}
	if err := s.notifier.Record(ctx, e); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("change-request-id", e.ChangeRequestID).
			Warn("status change side effects incomplete")
	}
}

func (s *Service) dropPending(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, PendingCacheKeys()...); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("pending cache invalidation failed")
	}
}
