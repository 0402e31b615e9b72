package handler

import (
	"net/http"

	"ims-backend/internal/middleware"
	"ims-backend/internal/service"
	"ims-backend/pkg/pagination"
	"ims-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type WorkflowHandler struct {
	workflow service.WorkflowService
}

func NewWorkflowHandler(workflow service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{workflow: workflow}
}

func (h *WorkflowHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/api/requests")
	{
		requests.POST("", middleware.RequirePermission("requests.submit"), h.SubmitRequest)
		requests.GET("/mine", middleware.RequirePermission("requests.read"), h.ListMyRequests)
		requests.GET("/:id", middleware.RequirePermission("requests.read"), h.GetRequest)
		requests.POST("/:id/resubmit", middleware.RequirePermission("requests.submit"), h.Resubmit)
	}

	approvals := router.Group("/api/approvals")
	{
		approvals.GET("/pending", middleware.RequirePermission("requests.decide"), h.ListPending)
	}

	envelopes := router.Group("/api/envelopes")
	{
		envelopes.POST("/:id/decide", middleware.RequirePermission("requests.decide"), h.Decide)
		envelopes.GET("/:id/history", middleware.RequirePermission("requests.read"), h.EnvelopeHistory)
	}
}

func currentUserID(c *gin.Context) string {
	userID, _ := c.Get("userID")
	idStr, _ := userID.(string)
	return idStr
}

// SubmitRequest creates a request with its items and opens the first
// approval envelope
// @Summary      Submit a stock issuance request
// @Description  Creates a request, routes it to the requester's unit supervisor and opens the first approval pass
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.SubmitRequestInput  true  "Request payload"
// @Success      201      {object}  response.Response{data=service.SubmitResult}
// @Failure      400      {object}  response.Response
// @Router       /api/requests [post]
func (h *WorkflowHandler) SubmitRequest(c *gin.Context) {
	var input service.SubmitRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.workflow.SubmitRequest(c.Request.Context(), currentUserID(c), input)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// ListMyRequests returns the caller's requests
// @Summary      List my requests
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/requests/mine [get]
func (h *WorkflowHandler) ListMyRequests(c *gin.Context) {
	params := pagination.Parse(c)

	requests, total, err := h.workflow.ListMyRequests(c.Request.Context(), currentUserID(c), params.Page, params.Limit)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"requests": requests,
		"total":    total,
		"page":     params.Page,
		"limit":    params.Limit,
	}))
}

// GetRequest returns one request with its live envelope and audit trail
// @Summary      Get request detail
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RequestDetail}
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id} [get]
func (h *WorkflowHandler) GetRequest(c *gin.Context) {
	detail, err := h.workflow.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// Resubmit edits a returned request and opens the next approval pass
// @Summary      Resubmit a returned request
// @Description  Applies item edits, supersedes the returned envelope and opens a new pass; items approved earlier stay frozen
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true  "Request ID"
// @Param        payload  body      []service.ResubmitItemInput  true  "Edited items"
// @Success      200      {object}  response.Response{data=service.ResubmitResult}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/requests/{id}/resubmit [post]
func (h *WorkflowHandler) Resubmit(c *gin.Context) {
	var edits []service.ResubmitItemInput
	if err := c.ShouldBindJSON(&edits); err != nil {
		// Empty body is allowed: resubmission without edits
		edits = nil
	}

	result, err := h.workflow.Resubmit(c.Request.Context(), c.Param("id"), currentUserID(c), edits)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ListPending returns the caller's approval queue
// @Summary      List pending envelopes
// @Description  Envelopes currently assigned to the caller, oldest first
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/approvals/pending [get]
func (h *WorkflowHandler) ListPending(c *gin.Context) {
	params := pagination.Parse(c)

	envelopes, total, err := h.workflow.ListPending(c.Request.Context(), currentUserID(c), params.Page, params.Limit)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"envelopes": envelopes,
		"total":     total,
		"page":      params.Page,
		"limit":     params.Limit,
	}))
}

// Decide applies a batch of item decisions to an envelope
// @Summary      Decide envelope items
// @Description  Applies one or more item decisions atomically; the whole batch fails if any decision is invalid
// @Tags         approvals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                   true  "Envelope ID"
// @Param        payload  body      []service.DecisionInput  true  "Decision batch"
// @Success      200      {object}  response.Response{data=service.DecideResult}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/envelopes/{id}/decide [post]
func (h *WorkflowHandler) Decide(c *gin.Context) {
	var decisions []service.DecisionInput
	if err := c.ShouldBindJSON(&decisions); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.workflow.Decide(c.Request.Context(), c.Param("id"), currentUserID(c), decisions)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// EnvelopeHistory returns the audit trail of one envelope
// @Summary      Envelope history
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Envelope ID"
// @Success      200  {object}  response.Response
// @Router       /api/envelopes/{id}/history [get]
func (h *WorkflowHandler) EnvelopeHistory(c *gin.Context) {
	history, err := h.workflow.EnvelopeHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, history))
}
