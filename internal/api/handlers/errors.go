package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/eventface/internal/faceerr"
	"github.com/your-org/eventface/pkg/dto"
)

// respondError maps error kinds to HTTP statuses. Unknown errors are logged
// and reported as 500 without their message.
func respondError(c *gin.Context, err error) {
	code := faceerr.Code(err)
	resp := dto.ErrorResponse{Error: err.Error(), Code: code, Retriable: faceerr.Retriable(err)}

	var status int
	switch code {
	case "validation_failed":
		status = http.StatusBadRequest
	case "no_face_detected":
		status = http.StatusUnprocessableEntity
		resp.Error = "no face found in the photo, try a clearer picture"
	case "dimension_mismatch":
		status = http.StatusConflict
	case "extractor_unavailable", "extractor_timeout":
		status = http.StatusServiceUnavailable
		c.Header("Retry-After", "5")
	default:
		if errors.Is(err, context.Canceled) {
			// Client went away; nobody reads the body.
			c.Status(499)
			return
		}
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		status = http.StatusInternalServerError
		resp.Error = "internal error"
	}
	c.JSON(status, resp)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: msg, Code: "bad_request"})
}

func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: msg, Code: "not_found"})
}
