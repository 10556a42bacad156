// README: Base handler utilities (JSON helpers, ID parsing, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bloodlink/internal/http/middleware"
	"bloodlink/internal/modules/hospital"
	"bloodlink/internal/modules/inventory"
	"bloodlink/internal/modules/location"
	"bloodlink/internal/modules/matching"
	"bloodlink/internal/modules/request"
	"bloodlink/internal/types"
)

var ErrForbidden = errors.New("forbidden")

type errorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// pathID parses a UUID path parameter, writing a 400 when it is malformed.
func pathID(c *gin.Context, name string) (types.ID, bool) {
	id, ok := types.ParseID(c.Param(name))
	if !ok {
		writeJSON(c, http.StatusBadRequest, errorResponse{Error: "invalid " + name, Field: name, Reason: "must be a UUID"})
		return "", false
	}
	return id, true
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			writeValidation(c, verr)
			return false
		}
		writeError(c, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func writeValidation(c *gin.Context, verr *types.ValidationError) {
	writeJSON(c, http.StatusBadRequest, errorResponse{Error: verr.Error(), Field: verr.Field, Reason: verr.Reason})
}

// writeServiceError maps module errors to status codes. Unknown errors are
// logged and reported as a bare 500.
func writeServiceError(c *gin.Context, log *zap.Logger, err error) {
	var verr *types.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidation(c, verr)
	case errors.Is(err, inventory.ErrInvalidAdjustment), errors.Is(err, request.ErrInsufficientStock):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, inventory.ErrNotFound), errors.Is(err, hospital.ErrNotFound),
		errors.Is(err, request.ErrNotFound), errors.Is(err, matching.ErrNotFound),
		errors.Is(err, location.ErrDonorNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, request.ErrInvalidState), errors.Is(err, request.ErrConflict),
		errors.Is(err, inventory.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	default:
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// orEmpty keeps empty results encoded as [] rather than null.
func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

// ownerErr maps a module not-found error for RequireOwnerOrRole.
func ownerErr(err error) error {
	if errors.Is(err, request.ErrNotFound) || errors.Is(err, hospital.ErrNotFound) {
		return middleware.ErrOwnerNotFound
	}
	return err
}
