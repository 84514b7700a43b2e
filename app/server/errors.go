package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mahesh-hegde/explorer/app/common"
	"github.com/mahesh-hegde/explorer/app/dataservice"
)

// errorBody maps err onto a status code and the JSON error payload that
// dataservice.Client decodes back into the same error kinds.
func errorBody(err error) (int, dataservice.ErrorBody) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		body := dataservice.ErrorBody{Error: http.StatusText(he.Code)}
		if he.Message != nil {
			body.Error = fmt.Sprintf("%v", he.Message)
		}
		return he.Code, body
	}

	code := common.HTTPStatus(err)
	body := dataservice.ErrorBody{Error: err.Error()}

	var uve *common.UserVisibleError
	var cee *common.ContextEvaluationError
	var ce *common.ConfigurationError
	switch {
	case errors.As(err, &uve):
		body.Error = uve.Message
	case errors.As(err, &cee):
		body.Field = cee.Field
	case errors.As(err, &ce):
		body.Error = ce.Message
	}

	if code >= http.StatusInternalServerError && code != http.StatusBadGateway && code != http.StatusServiceUnavailable {
		body.Error = http.StatusText(code)
	}
	return code, body
}

func jsonErrorHandler(err error, c echo.Context) {
	code, body := errorBody(err)
	if code >= http.StatusInternalServerError {
		slog.Error("request failed", "uri", c.Request().RequestURI, "status", code, "err", err)
	}

	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, body)
	}
	if err != nil {
		slog.Error("failed to write error response", "err", err)
	}
}
