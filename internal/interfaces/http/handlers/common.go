// Package handlers holds the gin request handlers for the REST API.
package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eastgrand/geoinsight/internal/application/insight"
	"github.com/eastgrand/geoinsight/pkg/errors"
)

type errorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Detail  string      `json:"detail,omitempty"`
	Hints   interface{} `json:"hints,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// respondError renders err as a structured JSON error.  Out-of-scope
// rejections carry their near-miss hints so callers can rephrase.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	body := errorBody{
		Code:    string(errors.ErrCodeInternal),
		Message: "internal server error",
	}
	status := http.StatusInternalServerError

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		status = appErr.Code.HTTPStatus()
		body.Code = string(appErr.Code)
		body.Message = appErr.Message
		body.Detail = appErr.Detail
	}

	var rej *insight.RejectionError
	if stderrors.As(err, &rej) && rej.Rejection != nil && len(rej.Rejection.Hints) > 0 {
		body.Hints = rej.Rejection.Hints
	}

	c.AbortWithStatusJSON(status, errorResponse{Error: body})
}
