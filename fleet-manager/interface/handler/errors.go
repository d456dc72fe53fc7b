package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

type errorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Reason string `json:"reason,omitempty"`
	State  string `json:"state,omitempty"`
}

type requestError struct {
	msg string
}

func (e *requestError) Error() string {
	return e.msg
}

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

func statusFor(code string) int {
	switch code {
	case domain.CodeNotWatched, domain.CodeInstanceNotFound:
		return http.StatusNotFound
	case domain.CodeInstanceNotRunning, domain.CodeActionInProgress:
		return http.StatusConflict
	case domain.CodeProviderRejected, domain.CodeCommandRejected:
		return http.StatusUnprocessableEntity
	case domain.CodeProviderUnavailable:
		return http.StatusServiceUnavailable
	case domain.CodeInvalidAction, domain.CodeScriptPathRequired:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorHandler renders domain errors as JSON with a stable code.
func NewErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := toResponse(err)
		if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
			logger.Error("request failed",
				slog.String("path", c.Path()),
				slog.Any("error", err),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error("failed to write error response", slog.Any("error", err))
		}
	}
}

func toResponse(err error) (int, *errorResponse) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return http.StatusBadRequest, &errorResponse{Error: reqErr.msg, Code: "BAD_REQUEST"}
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg := http.StatusText(httpErr.Code)
		if m, ok := httpErr.Message.(string); ok {
			msg = m
		}
		return httpErr.Code, &errorResponse{Error: msg, Code: "HTTP_ERROR"}
	}

	code := domain.ErrorCode(err)
	body := &errorResponse{Error: err.Error(), Code: code}

	var notRunning *domain.InstanceNotRunningError
	var providerRejected *domain.ProviderRejectedError
	var commandRejected *domain.CommandRejectedError
	switch {
	case errors.As(err, &notRunning):
		body.State = string(notRunning.State)
	case errors.As(err, &providerRejected):
		body.Reason = providerRejected.Reason
	case errors.As(err, &commandRejected):
		body.Reason = commandRejected.Reason
	}

	if code == domain.CodeInternal {
		body.Error = "internal error"
	}
	return statusFor(code), body
}
