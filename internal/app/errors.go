package app

import (
	"fmt"
	"net/http"
)

const (
	codeValidation   = "VALIDATION_ERROR"
	codeUnauthorized = "UNAUTHORIZED"
	codeForbidden    = "FORBIDDEN"
	codeNotFound     = "NOT_FOUND"
	codeConflict     = "CONFLICT"
	codeUpstream     = "UPSTREAM_ERROR"
	codeRateLimited  = "RATE_LIMITED"
	codeServer       = "SERVER_ERROR"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string) *DomainError {
	return domainError(http.StatusBadRequest, codeValidation, message, nil)
}

func unauthorizedError(message string) *DomainError {
	return domainError(http.StatusUnauthorized, codeUnauthorized, message, nil)
}

func forbiddenError(message string) *DomainError {
	return domainError(http.StatusForbidden, codeForbidden, message, nil)
}

func notFoundError(message string) *DomainError {
	return domainError(http.StatusNotFound, codeNotFound, message, nil)
}

func conflictError(message string) *DomainError {
	return domainError(http.StatusConflict, codeConflict, message, nil)
}

// upstreamError reports a failed call to an external collaborator such as photo storage.
func upstreamError(message string) *DomainError {
	return domainError(http.StatusInternalServerError, codeUpstream, message, nil)
}
