package services

import (
	"errors"
	"fmt"

	"video-share-service/internal/domain/repositories"
)

// Error types.
const (
	ErrTypeValidation = "validation_error"
	ErrTypeNotFound   = "not_found_error"
	ErrTypePermission = "permission_error"
	ErrTypeTransient  = "transient_error"
	ErrTypeDatabase   = "database_error"
)

// Error codes.
const (
	ErrCodeInvalidInput        = "invalid_input"
	ErrCodeVideoNotFound       = "video_not_found"
	ErrCodeShareNotFound       = "share_not_found"
	ErrCodeQualityNotFound     = "quality_not_found"
	ErrCodeDuplicateShare      = "duplicate_share"
	ErrCodeUnknownOrganization = "unknown_organization"
	ErrCodePermissionDenied    = "permission_denied"
	ErrCodeEncodeFailed        = "encode_failed"
	ErrCodeStorageFailed       = "storage_failed"
	ErrCodeQueueFailed         = "queue_failed"
	ErrCodeRemoteFailed        = "remote_failed"
	ErrCodeDBQuery             = "db_query_failed"
	ErrCodeJobInterrupted      = "job_interrupted"
)

// ServiceError classifies a failure. errors.Is matches on Type and Code.
type ServiceError struct {
	Type    string
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %s: %s", e.Type, e.Code, e.Message, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s - %s", e.Type, e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// Sentinels for errors.Is.
var (
	ErrInvalidInput        = &ServiceError{Type: ErrTypeValidation, Code: ErrCodeInvalidInput}
	ErrVideoNotFound       = &ServiceError{Type: ErrTypeNotFound, Code: ErrCodeVideoNotFound}
	ErrShareNotFound       = &ServiceError{Type: ErrTypeNotFound, Code: ErrCodeShareNotFound}
	ErrQualityNotFound     = &ServiceError{Type: ErrTypeNotFound, Code: ErrCodeQualityNotFound}
	ErrDuplicateShare      = &ServiceError{Type: ErrTypeValidation, Code: ErrCodeDuplicateShare}
	ErrUnknownOrganization = &ServiceError{Type: ErrTypeValidation, Code: ErrCodeUnknownOrganization}
	ErrPermissionDenied    = &ServiceError{Type: ErrTypePermission, Code: ErrCodePermissionDenied}
	ErrEncodeFailed        = &ServiceError{Type: ErrTypeTransient, Code: ErrCodeEncodeFailed}
	ErrStorageFailed       = &ServiceError{Type: ErrTypeTransient, Code: ErrCodeStorageFailed}
	ErrQueueFailed         = &ServiceError{Type: ErrTypeTransient, Code: ErrCodeQueueFailed}
	ErrRemoteFailed        = &ServiceError{Type: ErrTypeTransient, Code: ErrCodeRemoteFailed}
	ErrDatabase            = &ServiceError{Type: ErrTypeDatabase, Code: ErrCodeDBQuery}
	ErrJobInterrupted      = &ServiceError{Type: ErrTypeTransient, Code: ErrCodeJobInterrupted}
)

func newError(kind *ServiceError, message string, err error) *ServiceError {
	return &ServiceError{Type: kind.Type, Code: kind.Code, Message: message, Err: err}
}

func dbError(message string, err error) error {
	return newError(ErrDatabase, message, err)
}

// notFoundOr maps a repository miss to kind and anything else to a database error.
func notFoundOr(kind *ServiceError, message string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return newError(kind, message, err)
	}
	return dbError(message, err)
}

// ErrorType returns the Type of the first ServiceError in err's chain, or "".
func ErrorType(err error) string {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Type
	}
	return ""
}
