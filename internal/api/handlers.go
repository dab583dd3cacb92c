package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/roach88/queryexec/internal/model"
)

// QueryService is the façade the handlers drive. *service.Service
// implements it.
type QueryService interface {
	CreateQuery(ctx context.Context, text string) (int64, error)
	ListQueries(ctx context.Context) ([]model.Query, error)
	ExecuteSync(ctx context.Context, queryID int64) (model.Result, error)
	ExecuteAsync(ctx context.Context, queryID int64) (string, error)
	GetAsyncStatus(executionID string) (model.Execution, error)
}

// QueryHandler serves the /queries routes.
type QueryHandler struct {
	svc QueryService
}

// NewQueryHandler creates a QueryHandler.
func NewQueryHandler(svc QueryService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

// CreateQueryRequest is the body of POST /queries.
type CreateQueryRequest struct {
	Query string `json:"query"`
}

// CreateQueryResponse is returned by POST /queries.
type CreateQueryResponse struct {
	ID int64 `json:"id"`
}

// AsyncAccepted is returned by POST /queries/execute/async.
type AsyncAccepted struct {
	ExecutionID string `json:"executionId"`
	StatusURL   string `json:"statusUrl"`
}

// Create registers a new query.
func (h *QueryHandler) Create(c *gin.Context) {
	var req CreateQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		abortBadRequest(c, "query is required")
		return
	}

	id, err := h.svc.CreateQuery(c.Request.Context(), req.Query)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreateQueryResponse{ID: id})
}

// List returns every registered query.
func (h *QueryHandler) List(c *gin.Context) {
	queries, err := h.svc.ListQueries(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, queries)
}

// Execute runs a query synchronously and returns its rows.
func (h *QueryHandler) Execute(c *gin.Context) {
	id, ok := queryIDParam(c)
	if !ok {
		return
	}

	result, err := h.svc.ExecuteSync(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExecuteAsync schedules a query and returns where to poll for it.
func (h *QueryHandler) ExecuteAsync(c *gin.Context) {
	id, ok := queryIDParam(c)
	if !ok {
		return
	}

	executionID, err := h.svc.ExecuteAsync(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, AsyncAccepted{
		ExecutionID: executionID,
		StatusURL:   "/queries/execute/async/" + executionID,
	})
}

// AsyncStatus returns the current status of an async execution.
func (h *QueryHandler) AsyncStatus(c *gin.Context) {
	status, err := h.svc.GetAsyncStatus(c.Param("executionId"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// queryIDParam parses the required ?query=<id> parameter, rendering a 400
// when it is missing or not an integer.
func queryIDParam(c *gin.Context) (int64, bool) {
	raw, present := c.GetQuery("query")
	if !present || raw == "" {
		abortBadRequest(c, "missing required parameter: query")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		abortBadRequest(c, "parameter query must be an integer, got "+strconv.Quote(raw))
		return 0, false
	}
	return id, true
}
