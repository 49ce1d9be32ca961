package server

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pmo-suite/change-request-service/internal/apperr"
	"github.com/pmo-suite/change-request-service/internal/changerequest"
	"github.com/pmo-suite/change-request-service/internal/permission"
	"github.com/pmo-suite/change-request-service/internal/report"
	"github.com/pmo-suite/change-request-service/internal/service"
	"github.com/pmo-suite/change-request-service/internal/storage"
)

type handlers struct {
	svc    *service.Service
	logger *logrus.Logger
	fail   func(http.ResponseWriter, *http.Request, error)
}

// GET /health
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.svc.Ping(ctx); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("health check failed")
		writeAPIError(w, apperr.New(http.StatusServiceUnavailable, apperr.CodeUnavailable, "store unreachable"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type permissionsResponse struct {
	UserID       string                  `json:"userId"`
	Role         permission.Role         `json:"role"`
	Permissions  permission.Set          `json:"permissions"`
	Capabilities []permission.Capability `json:"capabilities"`
}

// GET /api/me/permissions
func (h *handlers) myPermissions(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	set := actor.Permissions()
	writeJSON(w, http.StatusOK, permissionsResponse{
		UserID:       actor.ID,
		Role:         actor.Role,
		Permissions:  set,
		Capabilities: set.Capabilities(),
	})
}

// GET /api/change-requests/pending
func (h *handlers) listPending(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListPending(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// GET /api/change-requests/mine
func (h *handlers) listMine(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListMine(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// GET /api/change-requests?projectId=
func (h *handlers) listByProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := queryInt(r, "projectId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.svc.ListByProject(r.Context(), projectID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// POST /api/change-requests
func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	var dto CreateChangeRequestDTO
	if err := decode(w, r, &dto); err != nil {
		h.fail(w, r, err)
		return
	}
	in, err := dto.Input()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	created, err := h.svc.Create(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GET /api/change-requests/{id}
func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cr, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cr)
}

// PUT /api/change-requests/{id}
func (h *handlers) review(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var dto ReviewChangeRequestDTO
	if err := decode(w, r, &dto); err != nil {
		h.fail(w, r, err)
		return
	}
	in, err := dto.Input()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.svc.Review(r.Context(), actorFrom(r.Context()), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// GET /api/change-requests/{id}/comments
func (h *handlers) listChangeRequestComments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeComments(w, r, storage.EntityChangeRequest, id)
}

// GET /api/{tasks|assignments}/{id}/comments
func (h *handlers) listComments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeComments(w, r, entityFromPath(r), id)
}

func (h *handlers) writeComments(w http.ResponseWriter, r *http.Request, entity storage.EntityType, id int64) {
	comments, err := h.svc.ListComments(r.Context(), entity, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(comments))
}

// POST /api/{tasks|assignments}/{id}/comments
func (h *handlers) addComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var dto CommentDTO
	if err := decode(w, r, &dto); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.svc.AddComment(r.Context(), actorFrom(r.Context()), entityFromPath(r), id, dto.Content)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GET /api/change-requests/export.xlsx?projectId=&status=
func (h *handlers) export(w http.ResponseWriter, r *http.Request) {
	filter := storage.ListFilter{}
	if r.URL.Query().Get("projectId") != "" {
		projectID, err := queryInt(r, "projectId")
		if err != nil {
			h.fail(w, r, err)
			return
		}
		filter.ProjectID = projectID
	}
	for _, raw := range r.URL.Query()["status"] {
		for _, part := range strings.Split(raw, ",") {
			status, err := changerequest.ParseStatus(part)
			if err != nil {
				h.fail(w, r, err)
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	rows, err := h.svc.Export(r.Context(), actorFrom(r.Context()), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := report.WriteChangeRequests(&buf, rows); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="change-requests.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(http.StatusBadRequest, apperr.CodeValidation, "id must be a positive integer")
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.New(http.StatusBadRequest, apperr.CodeValidation, name+" must be an integer")
	}
	return v, nil
}

func entityFromPath(r *http.Request) storage.EntityType {
	switch mux.Vars(r)["entity"] {
	case "tasks":
		return storage.EntityTask
	case "assignments":
		return storage.EntityAssignment
	default:
		return storage.EntityType(mux.Vars(r)["entity"])
	}
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
