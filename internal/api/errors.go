package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
)

type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest     = &AppError{Code: http.StatusBadRequest, Message: "bad request"}
	ErrUnauthorized   = &AppError{Code: http.StatusUnauthorized, Message: "unauthorized"}
	ErrForbidden      = &AppError{Code: http.StatusForbidden, Message: "forbidden"}
	ErrNotFound       = &AppError{Code: http.StatusNotFound, Message: "not found"}
	ErrConflict       = &AppError{Code: http.StatusConflict, Message: "conflict"}
	ErrInternalServer = &AppError{Code: http.StatusInternalServerError, Message: "internal server error"}
	ErrInvalidToken   = &AppError{Code: http.StatusUnauthorized, Message: "invalid or expired token"}
	ErrTooManyRequest = &AppError{Code: http.StatusTooManyRequests, Message: "too many requests"}
	ErrValidation     = &AppError{Code: http.StatusBadRequest, Message: "validation error"}
)

func NewBadRequestError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg}
}

func NewConflictError(msg string) *AppError {
	return &AppError{Code: http.StatusConflict, Message: msg}
}

func NewValidationError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

// StatusFor maps a domain error code to an HTTP status.
func StatusFor(code string) int {
	switch code {
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.EQUOTA, domain.ESCHEDULE:
		return http.StatusUnprocessableEntity
	case domain.EAMOUNT, domain.EINVALID:
		return http.StatusBadRequest
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody is the error envelope. Code is only set for domain errors.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func HandleError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		JSONErrorMessage(w, appErr.Code, appErr.Message)
		return
	}

	var domErr *domain.Error
	if errors.As(err, &domErr) {
		status := StatusFor(domErr.Code)
		if status == http.StatusInternalServerError {
			slog.Error("internal error", "error", err, "op", domErr.Op)
		}
		writeJSON(w, status, ErrorBody{Error: domain.ErrorMessage(err), Code: domErr.Code})
		return
	}

	slog.Error("unhandled error", "error", err)
	JSONErrorMessage(w, http.StatusInternalServerError, "internal server error")
}
