// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"carryhub/internal/errs"
	"carryhub/internal/http/middleware"
	"carryhub/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// isValidID accepts the uuid-shaped ids we issue and rejects anything else before a query runs.
func isValidID(v string) bool {
	if v == "" || len(v) > 36 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' {
			continue
		}
		return false
	}
	return true
}

// pathID reads :id and writes a 400 when it is not a valid id.
func pathID(c *gin.Context) (types.ID, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid id", "invalid_id")
		return "", false
	}
	return types.ID(id), true
}

func caller(c *gin.Context) (types.ID, bool) {
	return middleware.CallerID(c), middleware.IsAdmin(c)
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg, code string) {
	writeJSON(c, status, errorResponse{Error: msg, Code: code})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errs.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrExternal):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError maps a module error onto a status. Internal details never reach the client.
func writeServiceError(c *gin.Context, err error) {
	status := statusOf(err)
	switch status {
	case http.StatusInternalServerError:
		if errors.Is(err, errs.ErrInvariant) {
			log.Printf("[http] INVARIANT %s %s: %v", c.Request.Method, c.FullPath(), err)
		} else {
			log.Printf("[http] %s %s: %v", c.Request.Method, c.FullPath(), err)
		}
		writeError(c, status, "internal error", "")
	case http.StatusBadGateway:
		log.Printf("[http] %s %s: %v", c.Request.Method, c.FullPath(), err)
		writeError(c, status, "upstream service unavailable", errs.CodeOf(err))
	default:
		writeError(c, status, err.Error(), errs.CodeOf(err))
	}
}
