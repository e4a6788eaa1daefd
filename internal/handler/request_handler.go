package handler

import (
	"net/http"

	"workflowbridge/internal/middleware"
	"workflowbridge/internal/model"
	"workflowbridge/internal/service"
	"workflowbridge/pkg/pagination"
	"workflowbridge/pkg/response"

	"github.com/gin-gonic/gin"
)

type RequestHandler struct {
	requestService service.RequestService
}

func NewRequestHandler(requestService service.RequestService) *RequestHandler {
	return &RequestHandler{requestService: requestService}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/requests")
	{
		requests.GET("", h.ListRequests)
		requests.POST("", middleware.RequireCapability(model.CapCreateRequest), h.CreateRequest)
		requests.GET("/:id", h.GetRequest)
		requests.POST("/:id/action", h.ActOnRequest)
		requests.POST("/:id/cancel", h.CancelRequest)
	}
}

// ListRequests handles GET /api/requests
// @Summary      List requests
// @Description  Lists requests visible to the caller. my_approvals keeps only requests currently waiting on the caller.
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        status         query     string  false  "in_progress, approved, rejected or cancelled"
// @Param        department_id  query     string  false  "Department ID"
// @Param        my_requests    query     bool    false  "Only requests submitted by the caller"
// @Param        my_approvals   query     bool    false  "Only requests awaiting the caller"
// @Param        search         query     string  false  "Title or request number"
// @Param        page           query     int     false  "Page number (default 1)"
// @Param        limit          query     int     false  "Items per page (default 50, max 200)"
// @Success      200            {object}  response.Paged{data=[]model.Request}
// @Failure      400            {object}  response.Response
// @Router       /api/requests [get]
func (h *RequestHandler) ListRequests(c *gin.Context) {
	var filter service.RequestFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondBindError(c, err)
		return
	}
	p := pagination.ParseWith(c, pagination.Requests)
	filter.Offset, filter.Limit = p.Offset, p.Limit

	requests, total, err := h.requestService.ListRequests(c.Request.Context(), middleware.CurrentActor(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Page(requests, total, p.Page, p.Limit))
}

// CreateRequest handles POST /api/requests
// @Summary      Submit a request
// @Description  Validates the form data, resolves the approver chain and notifies the first approver
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateRequestDTO  true  "Request"
// @Success      201      {object}  response.Response{data=model.Request}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/requests [post]
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	var req service.CreateRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	created, err := h.requestService.CreateRequest(c.Request.Context(), middleware.CurrentActor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, created))
}

// GetRequest handles GET /api/requests/:id
// @Summary      Get request
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=model.Request}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id} [get]
func (h *RequestHandler) GetRequest(c *gin.Context) {
	req, err := h.requestService.GetRequest(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, req))
}

// ActOnRequest handles POST /api/requests/:id/action
// @Summary      Approve or reject the current step
// @Description  A 409 response carries details.current_status so the caller can refresh
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                    true  "Request ID"
// @Param        payload  body      service.ActionRequestDTO  true  "approve or reject"
// @Success      200      {object}  response.Response{data=model.Request}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/requests/{id}/action [post]
func (h *RequestHandler) ActOnRequest(c *gin.Context) {
	var req service.ActionRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	updated, err := h.requestService.ActOnRequest(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, updated))
}

// CancelRequest handles POST /api/requests/:id/cancel
// @Summary      Cancel an in-progress request
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=model.Request}
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/requests/{id}/cancel [post]
func (h *RequestHandler) CancelRequest(c *gin.Context) {
	cancelled, err := h.requestService.CancelRequest(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, cancelled))
}
