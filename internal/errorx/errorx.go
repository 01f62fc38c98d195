// Package errorx maps service errors onto HTTP responses.
package errorx

import (
	"context"
	"errors"
	"net/http"

	"quant-api/pkg/analysis"
	"quant-api/pkg/datasource"
)

// CodeError is an error with an HTTP status.
type CodeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *CodeError) Error() string { return e.Message }

// New builds a CodeError.
func New(code int, msg string) *CodeError {
	return &CodeError{Code: code, Message: msg}
}

// BadRequest reports invalid input.
func BadRequest(msg string) *CodeError {
	return New(http.StatusBadRequest, msg)
}

// From classifies err.
func From(err error) *CodeError {
	var ce *CodeError
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, datasource.ErrNotFound), errors.Is(err, analysis.ErrNoRecord):
		return New(http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return New(http.StatusGatewayTimeout, err.Error())
	}
	var pe *datasource.ProviderError
	if errors.As(err, &pe) {
		return New(http.StatusBadGateway, err.Error())
	}
	return New(http.StatusInternalServerError, err.Error())
}

// Handler is installed with httpx.SetErrorHandlerCtx.
func Handler(_ context.Context, err error) (int, any) {
	ce := From(err)
	return ce.Code, ce
}
