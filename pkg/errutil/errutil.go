package errutil

import (
	"errors"
	"net/http"
)

type ErrCode uint32

const (
	CodeUnknown ErrCode = iota
	CodeValidation
	CodeBadRequest
	CodeNotFound
	CodeCompliance
	CodeContentPolicy
	CodeTransientTransport
	CodePermanentTransport
	CodeQuotaExceeded
	CodeConflict
)

type Error struct {
	code ErrCode
	err  error
}

func (e *Error) Error() string {
	return e.err.Error()
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) Code() ErrCode {
	return e.code
}

func newError(code ErrCode, err error) *Error {
	return &Error{code: code, err: err}
}

// ValidationError marks a bad campaign or request configuration, rejected at creation.
func ValidationError(err error) error {
	return newError(CodeValidation, err)
}

func BadRequestError(err error) error {
	return newError(CodeBadRequest, err)
}

func NotFoundError(err error) error {
	return newError(CodeNotFound, err)
}

// ComplianceViolation marks an ineligible recipient. The contact is skipped, the
// campaign continues.
func ComplianceViolation(err error) error {
	return newError(CodeCompliance, err)
}

// ContentPolicyViolation marks generated content rejected by the content collaborator.
func ContentPolicyViolation(err error) error {
	return newError(CodeContentPolicy, err)
}

// TransientTransportError is retried per backoff policy.
func TransientTransportError(err error) error {
	return newError(CodeTransientTransport, err)
}

// PermanentTransportError marks the dispatch record failed with no retry.
func PermanentTransportError(err error) error {
	return newError(CodePermanentTransport, err)
}

// QuotaExceededError pauses the stage until the next quota window.
func QuotaExceededError(err error) error {
	return newError(CodeQuotaExceeded, err)
}

func ConflictError(err error) error {
	return newError(CodeConflict, err)
}

func GetCode(err error) ErrCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return CodeUnknown
}

func Is(err error, code ErrCode) bool {
	return GetCode(err) == code
}

func ParseHttpError(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}

	var e *Error
	if errors.As(err, &e) {
		switch e.Code() {
		case CodeValidation, CodeBadRequest:
			return http.StatusBadRequest, e.Error()
		case CodeNotFound:
			return http.StatusNotFound, e.Error()
		case CodeCompliance, CodeContentPolicy:
			return http.StatusUnprocessableEntity, e.Error()
		case CodeQuotaExceeded:
			return http.StatusTooManyRequests, e.Error()
		case CodeConflict:
			return http.StatusConflict, e.Error()
		}
	}

	return http.StatusInternalServerError, err.Error()
}
