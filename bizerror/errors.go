package bizerror

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrPeriodLocked      = errors.New("period is locked")
	ErrProjectInUse      = errors.New("project is referenced")
	ErrClientInUse       = errors.New("client is referenced")
	ErrInvalidTransition = errors.New("invalid state transition")
)

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Status  int
	Code    string
	Message string

	Data  interface{}
	Cause error
}

type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "common.bad_param"
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	message := "common.bad_param"
	if e.Cause != nil {
		message = e.Cause.Error()
	}
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: "common.bad_param", Message: message, Data: nil}
}

// ErrExternalService wraps a failure of a collaborator outside the core
// (renderer, file store, e-signature provider).
type ErrExternalService struct {
	Service string
	Cause   error
}

func (e *ErrExternalService) Unwrap() error {
	return e.Cause
}
func (e *ErrExternalService) Error() string {
	if e.Cause != nil {
		return e.Service + ": " + e.Cause.Error()
	}
	return e.Service + ": external service failure"
}
func (e *ErrExternalService) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusBadGateway, Code: "common.external_service_failure",
		Message: e.Error(), Data: e.Service, Cause: e.Cause}
}

func External(service string, cause error) error {
	if cause == nil {
		return nil
	}
	return &ErrExternalService{Service: service, Cause: cause}
}
