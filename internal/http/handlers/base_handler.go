// README: Base handler utilities (JSON helpers, error mapping, query parsing).
package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/unrecano/taxi24/internal/apperrors"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps module errors onto HTTP statuses. Unclassified
// errors are logged and hidden behind a generic message.
func writeServiceError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		writeError(c, status, "internal error")
		return
	}
	writeError(c, status, err.Error())
}

// queryFloat parses an optional float query parameter.
func queryFloat(c *gin.Context, key string) (float64, bool, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be a number: %w", key, apperrors.ErrInvalidInput)
	}
	return v, true, nil
}
