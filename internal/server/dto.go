package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"github.com/pmo-suite/change-request-service/internal/apperr"
	"github.com/pmo-suite/change-request-service/internal/changerequest"
	"github.com/pmo-suite/change-request-service/internal/service"
)

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

const maxBodyBytes = 1 << 20

type CreateChangeRequestDTO struct {
	ProjectID int64  `json:"projectId" validate:"required,gt=0"`
	Type      string `json:"type" validate:"required"`
	Details   string `json:"details" validate:"required,max=10000"`
}

func (d *CreateChangeRequestDTO) Input() (service.CreateInput, error) {
	typ, err := changerequest.ParseType(d.Type)
	if err != nil {
		return service.CreateInput{}, err
	}
	return service.CreateInput{ProjectID: d.ProjectID, Type: typ, Details: d.Details}, nil
}

type ReviewChangeRequestDTO struct {
	Status          string  `json:"status" validate:"required"`
	RejectionReason string  `json:"rejectionReason" validate:"max=2000"`
	ReturnTo        string  `json:"returnTo" validate:"omitempty,oneof=ProjectManager SubPMO"`
	Details         *string `json:"details" validate:"omitempty,max=10000"`
}

func (d *ReviewChangeRequestDTO) Input() (service.ReviewInput, error) {
	status, err := changerequest.ParseStatus(d.Status)
	if err != nil {
		return service.ReviewInput{}, err
	}
	target, err := changerequest.ParseReturnTarget(d.ReturnTo)
	if err != nil {
		return service.ReviewInput{}, err
	}
	return service.ReviewInput{
		Status:          status,
		RejectionReason: d.RejectionReason,
		ReturnTo:        target,
		Details:         d.Details,
	}, nil
}

type CommentDTO struct {
	Content string `json:"content" validate:"required,max=4000"`
}

// decode reads a JSON body into dst and runs its validation tags.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.New(http.StatusRequestEntityTooLarge, apperr.CodeTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		}
		return apperr.New(http.StatusBadRequest, apperr.CodeValidation, fmt.Sprintf("invalid request body: %v", err))
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperr.New(http.StatusBadRequest, apperr.CodeValidation, err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return apperr.New(http.StatusBadRequest, apperr.CodeValidation, strings.Join(msgs, "; "))
}
