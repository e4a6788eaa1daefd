package handler

import (
	"net/http"

	"workflowbridge/internal/apperr"
	"workflowbridge/pkg/response"

	"github.com/gin-gonic/gin"
)

// respondError renders err with the status of its kind. Unclassified errors
// are attached to the context for the request logger and hidden from clients.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	if current := apperr.CurrentStatusOf(err); current != "" {
		c.JSON(status, response.ErrorWithDetails(status, apperr.Public(err), gin.H{"current_status": current}))
		return
	}
	c.JSON(status, response.Error(status, apperr.Public(err)))
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
}
