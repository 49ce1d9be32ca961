package service

import (
	"errors"
	"net/http"

	"github.com/pmo-suite/change-request-service/internal/apperr"
	"github.com/pmo-suite/change-request-service/internal/changerequest"
	"github.com/pmo-suite/change-request-service/internal/storage"
)

// MapError translates workflow and storage errors into API errors. Unknown errors map to nil
// and are reported as internal failures by the caller.
func MapError(err error) *apperr.APIError {
	var apiErr *apperr.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, storage.ErrChangeRequestNotFound):
		return apperr.New(http.StatusNotFound, apperr.CodeNotFound, "change request not found")
	case errors.Is(err, storage.ErrStaleState):
		return apperr.New(http.StatusConflict, apperr.CodeConflict, "change request was modified concurrently, reload and retry")
	case errors.Is(err, storage.ErrCommentTargetInvalid):
		return apperr.New(http.StatusBadRequest, apperr.CodeValidation, "comments can only target tasks, assignments or change requests")
	}

	var wfErr *changerequest.Error
	if !errors.As(err, &wfErr) {
		return nil
	}
	switch wfErr.Kind {
	case changerequest.KindValidation:
		return apperr.New(http.StatusBadRequest, apperr.CodeValidation, wfErr.Message)
	case changerequest.KindAuthorization:
		return apperr.New(http.StatusForbidden, apperr.CodeForbidden, wfErr.Message)
	case changerequest.KindConflict:
		return apperr.New(http.StatusConflict, apperr.CodeInvalidTransition, wfErr.Message)
	default:
		return nil
	}
}
