package server

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ReadinessState string

const (
	ReadinessStateReady    ReadinessState = "ready"
	ReadinessStateNotReady ReadinessState = "not_ready"
	ReadinessStateOptional ReadinessState = "optional"
)

type ReadinessIssue struct {
	ID       string            `json:"id"`
	Status   ReadinessState    `json:"status"`
	Evidence map[string]string `json:"evidence,omitempty"`
}

type ReadinessResponse struct {
	Ready       bool             `json:"ready"`
	SystemState ReadinessState   `json:"system_state"`
	Issues      []ReadinessIssue `json:"issues"`
}

const readinessTimeout = 2 * time.Second

func (s *Server) RegisterSystemRoutes() {
	s.engine.GET("/health", s.Health)
	s.engine.GET("/ready", s.GetSystemReadiness)
	s.engine.GET("/metrics", gin.WrapH(s.metricsHandler()))
}

// Health is a liveness probe and never touches dependencies.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetSystemReadiness reports whether the process can serve traffic.
func (s *Server) GetSystemReadiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	issues := []ReadinessIssue{
		s.checkDatabase(ctx),
		s.checkSchema(ctx),
		s.checkRedis(ctx),
		s.checkDocumentsDir(),
	}

	resp := ReadinessResponse{Ready: true, SystemState: ReadinessStateReady, Issues: issues}
	for _, issue := range issues {
		if issue.Status == ReadinessStateNotReady {
			resp.Ready = false
			resp.SystemState = ReadinessStateNotReady
		}
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (s *Server) checkDatabase(ctx context.Context) ReadinessIssue {
	issue := ReadinessIssue{ID: "database", Status: ReadinessStateReady}
	if s.db == nil {
		return notReady(issue, "database not configured")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return notReady(issue, err.Error())
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return notReady(issue, err.Error())
	}
	return issue
}

func (s *Server) checkSchema(ctx context.Context) ReadinessIssue {
	issue := ReadinessIssue{ID: "schema_gate", Status: ReadinessStateReady}
	if s.schemaGate == nil {
		return notReady(issue, "schema gate not configured")
	}
	if err := s.schemaGate.MustBeActive(ctx); err != nil {
		return notReady(issue, err.Error())
	}
	return issue
}

func (s *Server) checkRedis(ctx context.Context) ReadinessIssue {
	issue := ReadinessIssue{ID: "redis", Status: ReadinessStateReady}
	if s.redis == nil {
		issue.Status = ReadinessStateOptional
		issue.Evidence = map[string]string{"note": "in-process locks"}
		return issue
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return notReady(issue, err.Error())
	}
	return issue
}

func (s *Server) checkDocumentsDir() ReadinessIssue {
	issue := ReadinessIssue{ID: "documents_dir", Status: ReadinessStateReady}
	dir := s.cfg.Documents.Dir
	if dir == "" {
		dir = "documents"
	}
	info, err := os.Stat(dir)
	if err != nil {
		return notReady(issue, err.Error())
	}
	if !info.IsDir() {
		return notReady(issue, dir+" is not a directory")
	}
	return issue
}

func notReady(issue ReadinessIssue, reason string) ReadinessIssue {
	issue.Status = ReadinessStateNotReady
	issue.Evidence = map[string]string{"error": reason}
	return issue
}

func (s *Server) metricsHandler() http.Handler {
	if s.metrics == nil || s.metrics.Registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(prometheus.Gatherers{s.metrics.Registry}, promhttp.HandlerOpts{})
}
