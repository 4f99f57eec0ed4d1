package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/viant/chemflow/model/types"
	"github.com/viant/chemflow/runtime/orchestrator"
)

// ErrorCode classifies API errors
type ErrorCode string

const (
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeInvalidGraph  ErrorCode = "INVALID_WORKFLOW"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse is the body of an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes an error
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Issues  []string  `json:"issues,omitempty"`
}

// DataResponse wraps a successful response
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse wraps a list response
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total"`
}

// JSON writes v with status
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Success writes a 200 response with data
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created writes a 201 response with data
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, DataResponse{Data: data})
}

// List writes a list response
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error writes an error response
func Error(w http.ResponseWriter, status int, detail ErrorDetail) {
	JSON(w, status, ErrorResponse{Error: detail})
}

// BadRequest writes a 400 response
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrorDetail{Code: ErrCodeBadRequest, Message: message})
}

// HandleError maps err onto a response; it returns false when err is nil
func HandleError(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	if err == nil {
		return false
	}
	var graphErr *types.GraphError
	var notFound *types.NotFoundError
	switch {
	case errors.As(err, &notFound):
		Error(w, http.StatusNotFound, ErrorDetail{Code: ErrCodeNotFound, Message: err.Error()})
	case errors.As(err, &graphErr):
		Error(w, http.StatusBadRequest, ErrorDetail{Code: ErrCodeInvalidGraph, Message: err.Error(), Issues: graphErr.Issues})
	case errors.Is(err, orchestrator.ErrNotRetryable):
		Error(w, http.StatusConflict, ErrorDetail{Code: ErrCodeConflict, Message: err.Error()})
	default:
		logger.Error("internal error", "error", err)
		Error(w, http.StatusInternalServerError, ErrorDetail{Code: ErrCodeInternalError, Message: err.Error()})
	}
	return true
}
