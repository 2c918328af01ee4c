// Package v1 exposes the query API: one endpoint that routes an analytical
// query to a summary table or the full dataset and returns its rows.
package v1

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lakeview-lab/eventlake/internal/core/catalog"
	httperr "github.com/lakeview-lab/eventlake/internal/core/errors"
	"github.com/lakeview-lab/eventlake/internal/core/query"
	"github.com/lakeview-lab/eventlake/internal/core/router"
	"github.com/lakeview-lab/eventlake/internal/exec"
	"github.com/lakeview-lab/eventlake/internal/storage/lake"
)

// QueryResponse is the result envelope for POST /v1/query.
type QueryResponse struct {
	Target     string     `json:"target"` // summary name or "full-scan"
	Columns    []string   `json:"columns"`
	Rows       []exec.Row `json:"rows"`
	RowCount   int        `json:"row_count"`
	DurationMS int64      `json:"duration_ms"`
}

// Service routes and executes queries for the HTTP surface.
type Service struct {
	store   *lake.Store
	catalog *catalog.Catalog
}

// NewService creates the query API service.
func NewService(store *lake.Store, cat *catalog.Catalog) *Service {
	return &Service{store: store, catalog: cat}
}

// RegisterRoutes registers the query API on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/query", s.HandleQuery)
}

// HandleQuery handles POST /v1/query. The body is the raw query object.
func (s *Service) HandleQuery(c *gin.Context) {
	var raw query.RawQuery
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid request body",
			Details:   err.Error(),
		})
		return
	}

	q, err := query.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpMalformedQueryError,
			Message:   "Malformed query",
			Details:   err.Error(),
		})
		return
	}

	start := time.Now()
	plan := router.Route(q, s.catalog)
	result, err := s.store.Execute(c.Request.Context(), plan)
	if err != nil {
		if errors.Is(err, lake.ErrExecution) {
			c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
				ErrorType: httperr.HttpExecutionError,
				Message:   "Query execution failed",
				Details:   err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to execute query",
			Details:   err.Error(),
		})
		return
	}

	rows := result.Rows
	if rows == nil {
		rows = []exec.Row{}
	}
	c.JSON(http.StatusOK, QueryResponse{
		Target:     result.Target,
		Columns:    result.Columns,
		Rows:       rows,
		RowCount:   len(rows),
		DurationMS: time.Since(start).Milliseconds(),
	})
}
