// Package api serves stored result sets over HTTP. It is read-only: result
// sets are written by the tune command and never changed here.
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/kerntune/internal/report"
	"github.com/samcharles93/kerntune/internal/results"
	"github.com/samcharles93/kerntune/internal/version"
)

type Server struct {
	store   results.Store
	metrics http.Handler
}

// NewServer serves sets from store. metrics may be nil, in which case
// /metrics is not registered.
func NewServer(store results.Store, metrics http.Handler) *Server {
	return &Server{store: store, metrics: metrics}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/runs/:id", s.handleGetRun)
	e.GET("/v1/runs/:id/results", s.handleListResults)
	e.GET("/v1/runs/:id/report", s.handleGetReport)
	if s.metrics != nil {
		RegisterMetrics(e, s.metrics)
	}
}

// RegisterMetrics exposes a Prometheus handler at /metrics.
func RegisterMetrics(e *echo.Echo, h http.Handler) {
	e.GET("/metrics", func(c *echo.Context) error {
		h.ServeHTTP(c.Response(), c.Request())
		return nil
	})
}

// RunSummary is the run metadata plus counts, without the result records.
type RunSummary struct {
	Run      results.Run `json:"run"`
	Kernels  []string    `json:"kernels"`
	Variants int         `json:"variants"`
	Results  int         `json:"results"`
}

type resultList struct {
	Object string                     `json:"object"`
	RunID  string                     `json:"run_id"`
	Data   []results.EvaluationResult `json:"data"`
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.String(),
	})
}

func (s *Server) handleGetRun(c *echo.Context) error {
	set, err := s.load(c)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, RunSummary{
		Run:      set.Run,
		Kernels:  set.Kernels(),
		Variants: set.Variants(),
		Results:  len(set.Results),
	})
}

func (s *Server) handleListResults(c *echo.Context) error {
	set, err := s.load(c)
	if err != nil {
		return writeErr(c, err)
	}

	data := set.Results
	if kernel := strings.TrimSpace(c.QueryParam("kernel")); kernel != "" {
		data = set.ForKernel(kernel)
		if len(data) == 0 {
			return writeNotFound(c, "kernel "+kernel+" not in run "+set.Run.ID)
		}
	}
	if data == nil {
		data = []results.EvaluationResult{}
	}
	return c.JSON(http.StatusOK, resultList{Object: "list", RunID: set.Run.ID, Data: data})
}

func (s *Server) handleGetReport(c *echo.Context) error {
	set, err := s.load(c)
	if err != nil {
		return writeErr(c, err)
	}
	rep, err := report.Build(set)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (s *Server) load(c *echo.Context) (*results.Set, error) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return nil, newInvalidRequest("run id is required")
	}
	return s.store.Load(c.Request().Context(), id)
}
