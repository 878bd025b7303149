// Package api is the thin gin + websocket-upgrade transport layer over
// pkg/engine, pkg/graph, pkg/approval, and pkg/hub (spec.md §6). It owns no
// business logic: every handler validates its request shape, calls a single
// collaborator method, and maps the result (or a closed-taxonomy error) onto
// an HTTP response or websocket envelope.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/approval"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/database"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/engine"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/graph"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/hub"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/index"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/metrics"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/mutation"
)

// Server bundles every collaborator a handler might need. Fields are
// exported so tests can construct a Server directly with fakes.
type Server struct {
	Graph    graph.Repository
	Index    *index.Index
	Store    mutation.Store
	Approval *approval.Manager
	Engine   *engine.Engine
	Hub      *hub.Hub
	Metrics  *metrics.Registry
	DB       *database.Client // nil disables the /health database probe
}

// Router builds the gin engine for the mutation engine core's HTTP and
// websocket surface (spec.md §6). Router does not set the gin mode;
// callers set it once via gin.SetMode ("debug"/"release"/"test") before
// calling Router.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", s.handleMetrics)

	nodes := r.Group("/api/v1/nodes")
	{
		nodes.GET("", s.handleListNodes)
		nodes.GET("/:id", s.handleGetNode)
	}
	edges := r.Group("/api/v1/edges")
	{
		edges.GET("", s.handleListEdges)
	}

	r.GET("/api/v1/search", s.handleSearch)

	proposals := r.Group("/api/v1/proposals")
	{
		proposals.POST("", s.handleProposeMutation)
		proposals.GET("", s.handleListProposals)
		proposals.GET("/:id", s.handleGetProposal)
	}

	approvals := r.Group("/api/v1/approvals")
	{
		approvals.GET("/:id", s.handleGetApproval)
		approvals.POST("/:id/respond", s.handleRespondApproval)
	}

	r.GET("/ws", s.handleWebsocket)

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{"status": "healthy", "version": time.Now().UTC().Format(time.RFC3339)}

	if s.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		dbHealth, err := database.Health(ctx, s.DB.Pool())
		body["database"] = dbHealth
		if err != nil {
			body["status"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}

	c.JSON(http.StatusOK, body)
}

func (s *Server) handleMetrics(c *gin.Context) {
	if s.Metrics == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, s.Metrics.Snapshot())
}
