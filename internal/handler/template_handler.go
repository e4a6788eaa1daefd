package handler

import (
	"net/http"

	"workflowbridge/internal/middleware"
	"workflowbridge/internal/service"
	"workflowbridge/pkg/pagination"
	"workflowbridge/pkg/response"

	"github.com/gin-gonic/gin"
)

type TemplateHandler struct {
	templateService service.TemplateService
}

func NewTemplateHandler(templateService service.TemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: templateService}
}

func (h *TemplateHandler) RegisterRoutes(router *gin.RouterGroup) {
	templates := router.Group("/form-templates")
	{
		templates.GET("", h.ListTemplates)
		templates.GET("/all", middleware.RequireAdmin(), h.ListAllTemplates)
		templates.GET("/:id", h.GetTemplate)
		templates.POST("", middleware.RequireAdmin(), h.CreateTemplate)
		templates.PUT("/:id", middleware.RequireAdmin(), h.UpdateTemplate)
		templates.DELETE("/:id", middleware.RequireAdmin(), h.DeleteTemplate)
	}
}

// ListTemplates handles GET /api/form-templates
// @Summary      List form templates
// @Description  Non-admins only see active templates
// @Tags         form-templates
// @Produce      json
// @Security     BearerAuth
// @Param        department_id  query     string  false  "Department ID"
// @Param        page           query     int     false  "Page number (default 1)"
// @Param        limit          query     int     false  "Items per page (default 20)"
// @Success      200            {object}  response.Paged{data=[]model.FormTemplate}
// @Router       /api/form-templates [get]
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	var filter service.TemplateFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondBindError(c, err)
		return
	}
	p := pagination.Parse(c)
	filter.Offset, filter.Limit = p.Offset, p.Limit

	tpls, total, err := h.templateService.ListTemplates(c.Request.Context(), middleware.CurrentActor(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Page(tpls, total, p.Page, p.Limit))
}

// ListAllTemplates handles GET /api/form-templates/all
// @Summary      List every form template
// @Tags         form-templates
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]model.FormTemplate}
// @Router       /api/form-templates/all [get]
func (h *TemplateHandler) ListAllTemplates(c *gin.Context) {
	tpls, err := h.templateService.ListAllTemplates(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tpls))
}

// GetTemplate handles GET /api/form-templates/:id
// @Summary      Get form template
// @Tags         form-templates
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Template ID"
// @Success      200  {object}  response.Response{data=model.FormTemplate}
// @Failure      404  {object}  response.Response
// @Router       /api/form-templates/{id} [get]
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	tpl, err := h.templateService.GetTemplate(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tpl))
}

// CreateTemplate handles POST /api/form-templates
// @Summary      Create form template
// @Tags         form-templates
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.TemplateRequest  true  "Template"
// @Success      201      {object}  response.Response{data=model.FormTemplate}
// @Failure      400      {object}  response.Response
// @Router       /api/form-templates [post]
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var req service.TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	tpl, err := h.templateService.CreateTemplate(c.Request.Context(), middleware.CurrentActor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, tpl))
}

// UpdateTemplate handles PUT /api/form-templates/:id
// @Summary      Update form template
// @Tags         form-templates
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                   true  "Template ID"
// @Param        payload  body      service.TemplateRequest  true  "Template"
// @Success      200      {object}  response.Response{data=model.FormTemplate}
// @Failure      400      {object}  response.Response
// @Router       /api/form-templates/{id} [put]
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	var req service.TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	tpl, err := h.templateService.UpdateTemplate(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tpl))
}

// DeleteTemplate handles DELETE /api/form-templates/:id
// @Summary      Deactivate form template
// @Tags         form-templates
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Template ID"
// @Success      200  {object}  response.Response
// @Router       /api/form-templates/{id} [delete]
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	if err := h.templateService.DeleteTemplate(c.Request.Context(), middleware.CurrentActor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "form template deactivated"}))
}
